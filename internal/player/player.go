package player

import (
	"context"
	"time"
)

// Player is the identity side of a participant. Tournaments only ever store
// the ID; the display name is looked up when presenting results.
type Player struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Directory resolves player ids to display names.
type Directory interface {
	// Remember records a display name for id, replacing any previous one.
	Remember(ctx context.Context, p *Player) error
	// DisplayNames returns the known names for ids. Unknown ids are absent from the map.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}
