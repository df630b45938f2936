package bracket

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type BracketSide string

const (
	WinnersSide BracketSide = "winners"
	LosersSide  BracketSide = "losers"
	FinalsSide  BracketSide = "finals"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the tournament. Losers bracket rounds are negative.
	BracketSide BracketSide `db:"bracket_side" json:"bracket_side"`
	RoundNumber int         `db:"round_number" json:"round_number"`
	MatchNumber int         `db:"match_number" json:"match_number"`

	Player1ID *uuid.UUID `db:"player1_id" json:"player1_id,omitempty"`
	Player2ID *uuid.UUID `db:"player2_id" json:"player2_id,omitempty"`
	WinnerID  *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`
	LoserID   *uuid.UUID `db:"loser_id" json:"loser_id,omitempty"`

	Score1 int         `db:"score1" json:"score1"`
	Score2 int         `db:"score2" json:"score2"`
	Status MatchStatus `db:"status" json:"status"`
	IsBye  bool        `db:"is_bye" json:"is_bye"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsReady reports whether both slots are filled and the match can be played.
func (m *Match) IsReady() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchCompleted
}

func (m *Match) Has(id uuid.UUID) bool {
	return m.Slot(id) != 0
}

// Slot returns 1 or 2 for the slot holding id, or 0.
func (m *Match) Slot(id uuid.UUID) int {
	switch {
	case m.Player1ID != nil && *m.Player1ID == id:
		return 1
	case m.Player2ID != nil && *m.Player2ID == id:
		return 2
	}
	return 0
}

func (m *Match) PlayerIn(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Player1ID
	}
	return m.Player2ID
}

func (m *Match) setSlot(slot int, id uuid.UUID) {
	if slot == 1 {
		m.Player1ID = &id
	} else {
		m.Player2ID = &id
	}
}

func (m *Match) IsWinner(slot int) bool {
	p := m.PlayerIn(slot)
	return m.IsCompleted() && p != nil && m.WinnerID != nil && *m.WinnerID == *p
}

func (m *Match) IsLoser(slot int) bool {
	p := m.PlayerIn(slot)
	return m.IsCompleted() && !m.IsBye && p != nil && m.LoserID != nil && *m.LoserID == *p
}

// Score is the result of a match from player 1's and player 2's point of view.
type Score struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

// ParseScore reads scores in the form "3-1". An empty string is a zero score.
func ParseScore(s string) (Score, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Score{}, nil
	}
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return Score{}, fmt.Errorf("%w: expected score like 3-1, got %q", ErrInvalidScore, s)
	}
	p1, err1 := strconv.Atoi(strings.TrimSpace(left))
	p2, err2 := strconv.Atoi(strings.TrimSpace(right))
	if err1 != nil || err2 != nil {
		return Score{}, fmt.Errorf("%w: expected score like 3-1, got %q", ErrInvalidScore, s)
	}
	score := Score{P1: p1, P2: p2}
	return score, score.Validate()
}

func (s Score) Validate() error {
	if s.P1 < 0 || s.P2 < 0 {
		return fmt.Errorf("%w: points must not be negative", ErrInvalidScore)
	}
	return nil
}

func (s Score) String() string {
	return strconv.Itoa(s.P1) + "-" + strconv.Itoa(s.P2)
}
