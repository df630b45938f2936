package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/cache"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/metrics"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.Migrate(database), "Failed to apply migrations")
	t.Cleanup(func() { database.Close() })
	return database
}

type testEnv struct {
	store       *store.TournamentStore
	tournaments *TournamentService
	matches     *MatchService
	metrics     *metrics.Mock
	notifier    *notify.Mock
	cache       *cache.Memory
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	database := setupTestDB(t)

	env := &testEnv{
		store:    store.NewTournamentStore(database),
		metrics:  metrics.NewMock(),
		notifier: notify.NewMock(),
		cache:    cache.NewMemory(),
	}
	deps := Dependencies{
		Locks:    NewLocker(),
		Cache:    env.cache,
		Notifier: env.notifier,
		Metrics:  env.metrics,
		Players:  store.NewPlayerStore(database),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.tournaments = NewTournamentService(database, env.store, deps)
	env.matches = NewMatchService(database, env.store, deps)
	return env
}

// setupTournament creates a tournament with players p1..pn seeded in order.
func (env *testEnv) setupTournament(t *testing.T, format bracket.Format, n int) (*bracket.Tournament, map[string]uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	tournament, err := env.tournaments.CreateTournament(ctx, CreateInput{Name: "Test Tournament", Format: format})
	require.NoError(t, err)

	ids := make(map[string]uuid.UUID, n)
	for i := 1; i <= n; i++ {
		playerID := fmt.Sprintf("p%d", i)
		p, err := env.tournaments.RegisterParticipant(ctx, tournament.ID, RegisterInput{
			PlayerID:    playerID,
			Seed:        utils.Ptr(i),
			DisplayName: fmt.Sprintf("Player %d", i),
		})
		require.NoError(t, err)
		ids[playerID] = p.ID
	}
	return tournament, ids
}

func (env *testEnv) findMatch(t *testing.T, tournamentID uuid.UUID, side bracket.BracketSide, round, number int) bracket.Match {
	t.Helper()
	matches, err := env.store.GetMatches(context.Background(), tournamentID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.BracketSide == side && m.RoundNumber == round && m.MatchNumber == number {
			return m
		}
	}
	t.Fatalf("no %s match %d in round %d", side, number, round)
	return bracket.Match{}
}

// playOut records results until nothing is playable, letting pick choose the winner.
func (env *testEnv) playOut(t *testing.T, tournamentID uuid.UUID, pick func(m bracket.Match) uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for {
		matches, err := env.store.GetMatches(ctx, tournamentID)
		require.NoError(t, err)

		var next *bracket.Match
		for i := range matches {
			if !matches[i].IsCompleted() && matches[i].IsReady() {
				next = &matches[i]
				break
			}
		}
		if next == nil {
			return
		}
		_, err = env.matches.RecordResult(ctx, tournamentID, next.ID, pick(*next), bracket.Score{})
		require.NoError(t, err)
	}
}

func firstSlot(m bracket.Match) uuid.UUID { return *m.Player1ID }
