package bracket

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentInProgress   TournamentStatus = "in_progress"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCancelled    TournamentStatus = "cancelled"
)

type Format string

const (
	SingleElimination Format = "single_elimination"
	DoubleElimination Format = "double_elimination"
	RoundRobin        Format = "round_robin"
	Swiss             Format = "swiss"
)

// ParseFormat accepts the canonical names plus the short forms used by the CLI.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single_elimination", "single", "se":
		return SingleElimination, nil
	case "double_elimination", "double", "de":
		return DoubleElimination, nil
	case "round_robin", "roundrobin", "rr":
		return RoundRobin, nil
	case "swiss":
		return Swiss, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrValidation, s)
}

// ParseStatus accepts a tournament status name in any case.
func ParseStatus(s string) (TournamentStatus, error) {
	status := TournamentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case TournamentRegistration, TournamentInProgress, TournamentCompleted, TournamentCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// TournamentFilter narrows a tournament listing. Zero fields match everything.
type TournamentFilter struct {
	Status TournamentStatus
	Format Format
}

func (f Format) IsElimination() bool {
	return f == SingleElimination || f == DoubleElimination
}

type Tournament struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	Name            string           `db:"name" json:"name"`
	Format          Format           `db:"format" json:"format"`
	Status          TournamentStatus `db:"status" json:"status"`
	MinParticipants int              `db:"min_participants" json:"min_participants"`
	// Zero means no upper bound
	MaxParticipants int `db:"max_participants" json:"max_participants"`
	// Zero means ceil(log2(participants))
	SwissRounds  int        `db:"swiss_rounds" json:"swiss_rounds"`
	CurrentRound int        `db:"current_round" json:"current_round"`
	Version      int        `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

var allowedTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentRegistration: {TournamentInProgress, TournamentCancelled},
	TournamentInProgress:   {TournamentCompleted, TournamentCancelled},
	TournamentCompleted:    {},
	TournamentCancelled:    {},
}

func CanTransition(current, next TournamentStatus) bool {
	for _, allowed := range allowedTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the tournament to next or returns a conflict error.
func (t *Tournament) Transition(next TournamentStatus, now time.Time) error {
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: tournament cannot move from %s to %s", ErrConflict, t.Status, next)
	}
	t.Status = next
	switch next {
	case TournamentInProgress:
		t.StartedAt = &now
	case TournamentCompleted, TournamentCancelled:
		t.CompletedAt = &now
	}
	return nil
}

func (t *Tournament) MinimumToStart() int {
	return max(2, t.MinParticipants)
}

func (t *Tournament) IsFull(registered int) bool {
	return t.MaxParticipants > 0 && registered >= t.MaxParticipants
}

// RoundLimit is the number of rounds a Swiss tournament plays with the given field size.
func (t *Tournament) RoundLimit(participants int) int {
	if t.SwissRounds > 0 {
		return t.SwissRounds
	}
	if participants < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(participants))))
}

// Validate checks the creation parameters.
func (t *Tournament) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: tournament name is required", ErrValidation)
	}
	switch t.Format {
	case SingleElimination, DoubleElimination, RoundRobin, Swiss:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrValidation, t.Format)
	}
	if t.MinParticipants < 0 || t.MaxParticipants < 0 || t.SwissRounds < 0 {
		return fmt.Errorf("%w: participant limits and round counts must not be negative", ErrValidation)
	}
	if t.MaxParticipants > 0 && t.MaxParticipants < 2 {
		return fmt.Errorf("%w: max participants must allow at least 2 players", ErrValidation)
	}
	if t.MaxParticipants > 0 && t.MinParticipants > t.MaxParticipants {
		return fmt.Errorf("%w: min participants %d exceeds max participants %d", ErrValidation, t.MinParticipants, t.MaxParticipants)
	}
	if t.SwissRounds > 0 && t.Format != Swiss {
		return fmt.Errorf("%w: swiss rounds only apply to swiss tournaments", ErrValidation)
	}
	return nil
}
