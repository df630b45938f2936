package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to a tournament.
type EventType string

const (
	EventTournamentStarted   EventType = "tournament-started"
	EventMatchReady          EventType = "match-ready"
	EventMatchCompleted      EventType = "match-completed"
	EventRoundOpened         EventType = "round-opened"
	EventTournamentCompleted EventType = "tournament-completed"
	EventTournamentCancelled EventType = "tournament-cancelled"
)

type Event struct {
	Type         EventType  `json:"type"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
	// Player ids affected, e.g. both players of a ready match or the champion
	PlayerIDs  []string  `json:"player_ids,omitempty"`
	Round      int       `json:"round,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Dispatcher delivers events after the state change that caused them has
// been committed. A failed delivery never undoes that change.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// LogDispatcher writes events to the structured log. It is the default when
// no delivery transport is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

var _ Dispatcher = (*LogDispatcher)(nil)

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event) error {
	attrs := []any{
		"type", event.Type,
		"tournament_id", event.TournamentID,
	}
	if event.MatchID != nil {
		attrs = append(attrs, "match_id", *event.MatchID)
	}
	if len(event.PlayerIDs) > 0 {
		attrs = append(attrs, "players", event.PlayerIDs)
	}
	if event.Round > 0 {
		attrs = append(attrs, "round", event.Round)
	}
	d.logger.InfoContext(ctx, "tournament event", attrs...)
	return nil
}
