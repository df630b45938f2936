package bracket

import (
	"fmt"
	"time"
)

// Generate builds the opening match set for a tournament that is about to
// start. Elimination formats get their whole skeleton with round one byes
// already resolved and propagated, round robin gets the full schedule, and
// Swiss gets round one only.
func Generate(t Tournament, participants []Participant, now time.Time) ([]Match, error) {
	e, err := Build(t, participants, now)
	if err != nil {
		return nil, err
	}
	return e.Matches(), nil
}

// Build is Generate returning the engine, so callers can also collect the
// participant changes made while resolving byes.
func Build(t Tournament, participants []Participant, now time.Time) (*Engine, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: need at least 2, have %d", ErrNotEnoughParticipants, len(participants))
	}

	e := NewEngine(t, participants, nil).WithClock(func() time.Time { return now })
	ordered := Order(participants, t.ID)
	e.tournament.CurrentRound = 1

	switch t.Format {
	case SingleElimination, DoubleElimination:
		generateElimination(e, ordered)
	case RoundRobin:
		generateRoundRobin(e, ordered)
	case Swiss:
		generateSwiss(e, ordered)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrValidation, t.Format)
	}

	if err := e.settle(); err != nil {
		return nil, fmt.Errorf("failed to resolve byes: %w", err)
	}
	return e, nil
}

func generateElimination(e *Engine, ordered []Participant) {
	l := e.layout

	for r := 1; r <= l.WinnersRounds(); r++ {
		for m := 1; m <= l.WinnersMatches(r); m++ {
			match := e.create(WinnersSide, r, m, l.IsWinnersBye(r, m))
			if r != 1 {
				continue
			}
			match.Player1ID = &ordered[2*m-2].ID
			if 2*m-1 < len(ordered) {
				match.Player2ID = &ordered[2*m-1].ID
			}
		}
	}
	e.tournament.CurrentRound = 1

	if e.tournament.Format != DoubleElimination {
		return
	}

	for k := 1; k <= l.LosersRounds(); k++ {
		for m := 1; m <= l.LosersMatches(k); m++ {
			e.create(LosersSide, -k, m, l.IsLosersBye(k, m))
		}
	}
	e.create(FinalsSide, l.GrandFinalRound(), 1, false)
}

// Circle method: the first player stays put and everyone else rotates one
// place per round. An odd field gets a phantom player and whoever meets it
// sits the round out.
func generateRoundRobin(e *Engine, ordered []Participant) {
	ring := make([]*Participant, 0, len(ordered)+1)
	for i := range ordered {
		ring = append(ring, &ordered[i])
	}
	if len(ring)%2 == 1 {
		ring = append(ring, nil)
	}

	n := len(ring)
	for round := 1; round < n; round++ {
		number := 0
		for i := 0; i < n/2; i++ {
			home, away := ring[i], ring[n-1-i]
			if home == nil || away == nil {
				continue
			}
			number++
			m := e.create(WinnersSide, round, number, false)
			m.Player1ID = &home.ID
			m.Player2ID = &away.ID
		}
		ring = append([]*Participant{ring[0], ring[n-1]}, ring[1:n-1]...)
	}
	e.tournament.CurrentRound = 1
}

// RoundName labels a round for display.
func RoundName(format Format, participants int, side BracketSide, round int) string {
	switch format {
	case SingleElimination, DoubleElimination:
		return NewLayout(participants, format == DoubleElimination).RoundName(side, round)
	}
	return fmt.Sprintf("Round %d", round)
}
