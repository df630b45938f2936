package bracket

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	ParticipantActive     ParticipantStatus = "active"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantAdvanced   ParticipantStatus = "advanced"
	ParticipantWinner     ParticipantStatus = "winner"
)

type Participant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	// Opaque identifier owned by the identity service
	PlayerID  string            `db:"player_id" json:"player_id"`
	Seed      *int              `db:"seed" json:"seed,omitempty"`
	Status    ParticipantStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

func (p *Participant) IsEliminated() bool {
	return p.Status == ParticipantEliminated
}
