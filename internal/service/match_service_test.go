package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResult_AdvancesWinner(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 4)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)

	match1 := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)
	match2 := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 2)

	result, err := env.matches.RecordResult(ctx, tournament.ID, match1.ID, p["p1"], bracket.Score{P1: 3, P2: 1})
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, result.Status)
	assert.Equal(t, p["p2"], *result.LoserID)

	final := env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, 1)
	require.NotNil(t, final.Player1ID)
	assert.Equal(t, p["p1"], *final.Player1ID)
	assert.Nil(t, final.Player2ID)

	_, err = env.matches.RecordResult(ctx, tournament.ID, match2.ID, p["p4"], bracket.Score{P1: 0, P2: 2})
	require.NoError(t, err)

	final = env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, 1)
	require.NotNil(t, final.Player2ID)
	assert.Equal(t, p["p4"], *final.Player2ID)

	// Final became playable with the second result
	readyFinal := 0
	for _, e := range env.notifier.DispatchCalls {
		if e.Type == notify.EventMatchReady && e.MatchID != nil && *e.MatchID == final.ID {
			readyFinal++
			assert.ElementsMatch(t, []string{"p1", "p4"}, e.PlayerIDs)
		}
	}
	assert.Equal(t, 1, readyFinal)

	stored, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentRound)
}

func TestRecordResult_Idempotent(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 4)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	match := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)

	_, err = env.matches.RecordResult(ctx, tournament.ID, match.ID, p["p1"], bracket.Score{P1: 2, P2: 0})
	require.NoError(t, err)
	before, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)

	again, err := env.matches.RecordResult(ctx, tournament.ID, match.ID, p["p1"], bracket.Score{P1: 2, P2: 0})
	require.NoError(t, err)
	assert.Equal(t, p["p1"], *again.WinnerID)

	after, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "repeat writes nothing")
	assert.Equal(t, 1, env.metrics.ResultsRecorded())

	_, err = env.matches.RecordResult(ctx, tournament.ID, match.ID, p["p2"], bracket.Score{P1: 0, P2: 2})
	assert.ErrorIs(t, err, bracket.ErrMatchCompleted)
}

func TestRecordResult_IdempotentAfterCompletion(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 2)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	final := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)

	_, err = env.matches.RecordResult(ctx, tournament.ID, final.ID, p["p1"], bracket.Score{P1: 3, P2: 0})
	require.NoError(t, err)
	before, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.Equal(t, bracket.TournamentCompleted, before.Status)
	events := len(env.notifier.Events())

	again, err := env.matches.RecordResult(ctx, tournament.ID, final.ID, p["p1"], bracket.Score{P1: 3, P2: 0})
	require.NoError(t, err, "a retried final result is not a conflict")
	assert.Equal(t, p["p1"], *again.WinnerID)

	after, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 1, env.metrics.ResultsRecorded())
	assert.Len(t, env.notifier.Events(), events)

	_, err = env.matches.RecordResult(ctx, tournament.ID, final.ID, p["p2"], bracket.Score{P1: 0, P2: 3})
	assert.ErrorIs(t, err, bracket.ErrTournamentNotActive)
	assert.ErrorIs(t, err, bracket.ErrConflict)
}

func TestRecordResult_Rejections(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 4)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)

	match := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)
	final := env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, 1)

	other, _ := env.setupTournament(t, bracket.SingleElimination, 2)

	tests := []struct {
		name       string
		tournament uuid.UUID
		match      uuid.UUID
		winner     uuid.UUID
		score      bracket.Score
		want       error
	}{
		{"Unknown match", tournament.ID, uuid.New(), p["p1"], bracket.Score{}, bracket.ErrMatchNotFound},
		{"Match of another tournament", other.ID, match.ID, p["p1"], bracket.Score{}, bracket.ErrTournamentNotActive},
		{"Winner not in match", tournament.ID, match.ID, p["p3"], bracket.Score{}, bracket.ErrWinnerNotInMatch},
		{"Negative score", tournament.ID, match.ID, p["p1"], bracket.Score{P1: -1}, bracket.ErrInvalidScore},
		{"Score contradicts winner", tournament.ID, match.ID, p["p1"], bracket.Score{P1: 0, P2: 3}, bracket.ErrInvalidScore},
		{"Match waiting for players", tournament.ID, final.ID, p["p1"], bracket.Score{}, bracket.ErrMatchNotReady},
		{"Unknown tournament", uuid.New(), match.ID, p["p1"], bracket.Score{}, bracket.ErrTournamentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.matches.RecordResult(ctx, tt.tournament, tt.match, tt.winner, tt.score)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)
	assert.Equal(t, bracket.MatchPending, stored.Status, "rejected results leave no trace")
	assert.Equal(t, 0, env.metrics.ResultsRecorded())
}

func TestRecordResult_ConcurrentSubmissions(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 8)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	match := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winner := p["p1"]
			if i%2 == 1 {
				winner = p["p2"]
			}
			_, err := env.matches.RecordResult(ctx, tournament.ID, match.ID, winner, bracket.Score{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, bracket.ErrMatchCompleted):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Whoever went first decided the match; same-winner repeats are no-ops
	assert.Equal(t, workers/2, succeeded)
	assert.Equal(t, workers/2, conflicts)
	assert.Equal(t, 1, env.metrics.ResultsRecorded())

	next := env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, 1)
	require.NotNil(t, next.Player1ID, "winner advanced exactly once")
	assert.Nil(t, next.Player2ID)
}

func TestRecordResult_ParallelMatches(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, _ := env.setupTournament(t, bracket.SingleElimination, 8)

	matches, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	before, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, m := range matches {
		if m.RoundNumber != 1 {
			continue
		}
		wg.Add(1)
		go func(m bracket.Match) {
			defer wg.Done()
			_, err := env.matches.RecordResult(ctx, tournament.ID, m.ID, *m.Player1ID, bracket.Score{})
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()

	for number := 1; number <= 2; number++ {
		m := env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, number)
		assert.True(t, m.IsReady(), "semi-final %d has both players", number)
	}
	stored, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version+4, stored.Version, "one version per result")
}

func TestBeginMatch(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 4)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	match := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)
	final := env.findMatch(t, tournament.ID, bracket.WinnersSide, 2, 1)

	begun, err := env.matches.BeginMatch(ctx, tournament.ID, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, begun.Status)

	again, err := env.matches.BeginMatch(ctx, tournament.ID, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, again.Status)

	_, err = env.matches.BeginMatch(ctx, tournament.ID, final.ID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotReady)

	_, err = env.matches.RecordResult(ctx, tournament.ID, match.ID, p["p2"], bracket.Score{P1: 1, P2: 2})
	require.NoError(t, err)

	_, err = env.matches.BeginMatch(ctx, tournament.ID, match.ID)
	assert.ErrorIs(t, err, bracket.ErrConflict)

	got, err := env.matches.GetMatch(ctx, tournament.ID, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, got.Status)

	_, err = env.matches.GetMatch(ctx, uuid.New(), match.ID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotFound)
}

func TestAdvanceRound_Swiss(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, _ := env.setupTournament(t, bracket.Swiss, 4)

	opening, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, opening, 2)

	_, _, err = env.matches.AdvanceRound(ctx, tournament.ID)
	assert.ErrorIs(t, err, bracket.ErrRoundNotComplete)

	for _, m := range opening {
		_, err := env.matches.RecordResult(ctx, tournament.ID, m.ID, *m.Player1ID, bracket.Score{P1: 2, P2: 0})
		require.NoError(t, err)
	}

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, data.Tournament.CurrentRound)
	assert.Len(t, data.Matches, 4, "second round opened by the last result")
	require.NotNil(t, data.NextMatchID)
	assert.Equal(t, 1, env.notifier.Count(notify.EventRoundOpened))

	env.playOut(t, tournament.ID, firstSlot)

	stored, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, stored.Status, "two rounds for four players")

	_, _, err = env.matches.AdvanceRound(ctx, tournament.ID)
	assert.ErrorIs(t, err, bracket.ErrTournamentNotActive)

	standings, err := env.tournaments.GetStandings(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, standings[0].Won)
	assert.Equal(t, bracket.ParticipantWinner, standings[0].Status)
}

func TestAdvanceRound_FormatRules(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	elimination, _ := env.setupTournament(t, bracket.DoubleElimination, 4)
	_, err := env.tournaments.StartTournament(ctx, elimination.ID)
	require.NoError(t, err)
	_, _, err = env.matches.AdvanceRound(ctx, elimination.ID)
	assert.ErrorIs(t, err, bracket.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, bracket.ErrValidation)

	roundRobin, _ := env.setupTournament(t, bracket.RoundRobin, 3)
	_, err = env.tournaments.StartTournament(ctx, roundRobin.ID)
	require.NoError(t, err)
	created, completed, err := env.matches.AdvanceRound(ctx, roundRobin.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.False(t, completed)

	registering, _ := env.setupTournament(t, bracket.Swiss, 4)
	_, _, err = env.matches.AdvanceRound(ctx, registering.ID)
	assert.ErrorIs(t, err, bracket.ErrTournamentNotActive)
}

func TestDispatchFailureKeepsResult(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.SingleElimination, 2)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)

	env.notifier.DispatchFunc = func(e notify.Event) error {
		if e.Type == notify.EventTournamentCompleted {
			panic("transport down")
		}
		return errors.New("transport down")
	}

	final := env.findMatch(t, tournament.ID, bracket.WinnersSide, 1, 1)
	_, err = env.matches.RecordResult(ctx, tournament.ID, final.ID, p["p2"], bracket.Score{})
	require.NoError(t, err)

	stored, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, stored.Status)
	assert.Equal(t, 2, env.metrics.NotificationsFailed(), "match completed and tournament completed")
}

func TestDoubleElimination_ResetFinal(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	tournament, p := env.setupTournament(t, bracket.DoubleElimination, 4)

	matches, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 6)

	// Losers bracket champion takes the grand final, winners champion takes the reset
	env.playOut(t, tournament.ID, func(m bracket.Match) uuid.UUID {
		if m.BracketSide == bracket.FinalsSide && m.RoundNumber == 3 {
			return *m.Player2ID
		}
		return *m.Player1ID
	})

	stored, err := env.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	require.Equal(t, bracket.TournamentCompleted, stored.Status)

	reset := env.findMatch(t, tournament.ID, bracket.FinalsSide, 4, 1)
	require.NotNil(t, reset.WinnerID)
	assert.Equal(t, p["p1"], *reset.WinnerID)

	players := make(map[uuid.UUID]string, len(p))
	for playerID, id := range p {
		players[id] = playerID
	}
	rank, ok, err := env.tournaments.GetPlacement(ctx, tournament.ID, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	rank, ok, err = env.tournaments.GetPlacement(ctx, tournament.ID, players[*reset.LoserID])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rank)
}

func TestLocker_SerializesPerKey(t *testing.T) {
	locks := NewLocker()
	id := uuid.New()

	unlock := locks.Lock(id)
	done := make(chan struct{})
	go func() {
		locks.Lock(id)()
		close(done)
	}()

	// Other keys are independent
	locks.Lock(uuid.New())()

	select {
	case <-done:
		t.Fatal("second holder acquired a held lock")
	default:
	}
	unlock()
	<-done

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks, "released entries are dropped")
}
