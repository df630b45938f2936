package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/db"
	"github.com/AdamBeresnev/bracket-engine/internal/player"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.Migrate(database), "Failed to apply migrations")
	return database
}

func createTournament(t *testing.T, database *sqlx.DB, s *TournamentStore, format bracket.Format) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:        uuid.New(),
		Name:      "Test Tournament",
		Format:    format,
		Status:    bracket.TournamentRegistration,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateTournament(context.Background(), tx, tournament))
	require.NoError(t, tx.Commit())
	return tournament
}

func register(t *testing.T, database *sqlx.DB, s *TournamentStore, tournamentID uuid.UUID, playerID string, seed *int) (*bracket.Participant, error) {
	t.Helper()
	participant := &bracket.Participant{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Seed:         seed,
		Status:       bracket.ParticipantActive,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	if err := s.CreateParticipant(context.Background(), tx, participant); err != nil {
		return nil, err
	}
	require.NoError(t, tx.Commit())
	return participant, nil
}

func TestCreateTournament(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.SingleElimination)

	fetched, err := s.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, bracket.SingleElimination, fetched.Format)
	assert.Equal(t, bracket.TournamentRegistration, fetched.Status)
	assert.Equal(t, 0, fetched.Version)
	assert.Nil(t, fetched.StartedAt)

	all, err := s.ListTournaments(context.Background(), bracket.TournamentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListTournaments_Filters(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	createTournament(t, database, s, bracket.SingleElimination)
	createTournament(t, database, s, bracket.RoundRobin)
	started := createTournament(t, database, s, bracket.RoundRobin)

	started.Status = bracket.TournamentInProgress
	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTournament(ctx, tx, started))
	require.NoError(t, tx.Commit())

	tests := []struct {
		name   string
		filter bracket.TournamentFilter
		want   int
	}{
		{"No filter", bracket.TournamentFilter{}, 3},
		{"By format", bracket.TournamentFilter{Format: bracket.RoundRobin}, 2},
		{"By status", bracket.TournamentFilter{Status: bracket.TournamentRegistration}, 2},
		{"By both", bracket.TournamentFilter{Status: bracket.TournamentInProgress, Format: bracket.RoundRobin}, 1},
		{"Nothing matches", bracket.TournamentFilter{Format: bracket.Swiss}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTournaments(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, tournament := range got {
				if tt.filter.Format != "" {
					assert.Equal(t, tt.filter.Format, tournament.Format)
				}
				if tt.filter.Status != "" {
					assert.Equal(t, tt.filter.Status, tournament.Status)
				}
			}
		})
	}
}

func TestGetTournament_NotFound(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	_, err := NewTournamentStore(database).GetTournament(context.Background(), uuid.New())
	assert.ErrorIs(t, err, bracket.ErrTournamentNotFound)
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestUpdateTournament_CompareAndSwap(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.RoundRobin)

	stale := *tournament

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tournament.Transition(bracket.TournamentInProgress, time.Now().UTC()))
	require.NoError(t, s.UpdateTournament(ctx, tx, tournament))
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, tournament.Version)

	tx, err = database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, stale.Transition(bracket.TournamentCancelled, time.Now().UTC()))
	err = s.UpdateTournament(ctx, tx, &stale)
	assert.ErrorIs(t, err, bracket.ErrConcurrency)

	fetched, err := s.GetTournamentTx(ctx, tx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentInProgress, fetched.Status)
	assert.Equal(t, 1, fetched.Version)
	require.NotNil(t, fetched.StartedAt)
}

func TestCreateParticipant_Constraints(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.SingleElimination)

	_, err := register(t, database, s, tournament.ID, "alice", utils.Ptr(1))
	require.NoError(t, err)
	_, err = register(t, database, s, tournament.ID, "bob", nil)
	require.NoError(t, err)
	_, err = register(t, database, s, tournament.ID, "carol", nil)
	require.NoError(t, err, "unseeded players do not collide")

	_, err = register(t, database, s, tournament.ID, "alice", nil)
	assert.ErrorIs(t, err, bracket.ErrAlreadyRegistered)
	assert.ErrorIs(t, err, bracket.ErrValidation)

	_, err = register(t, database, s, tournament.ID, "dave", utils.Ptr(1))
	assert.ErrorIs(t, err, bracket.ErrSeedTaken)

	participants, err := s.GetParticipants(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, participants, 3)
	assert.Equal(t, "alice", participants[0].PlayerID, "seeded players sort first")

	assert.Nil(t, participants[1].Seed)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	count, err := s.CountParticipantsTx(ctx, tx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMatches_RoundTrip(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.DoubleElimination)

	var participants []bracket.Participant
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		p, err := register(t, database, s, tournament.ID, name, utils.Ptr(i+1))
		require.NoError(t, err)
		participants = append(participants, *p)
	}

	tournament.Status = bracket.TournamentInProgress
	matches, err := bracket.Generate(*tournament, participants, time.Now().UTC())
	require.NoError(t, err)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Commit())

	stored, err := s.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(matches))

	// Winners first, then losers by round, then the grand final
	assert.Equal(t, bracket.WinnersSide, stored[0].BracketSide)
	assert.Equal(t, bracket.FinalsSide, stored[len(stored)-1].BracketSide)

	var bye *bracket.Match
	for i := range stored {
		if stored[i].IsBye {
			bye = &stored[i]
			break
		}
	}
	require.NotNil(t, bye)
	assert.Equal(t, bracket.MatchCompleted, bye.Status)
	require.NotNil(t, bye.WinnerID)
	assert.Nil(t, bye.Player2ID)
	assert.NotNil(t, bye.CompletedAt)

	first := stored[0]
	require.True(t, first.IsReady())
	first.WinnerID = first.Player1ID
	first.LoserID = first.Player2ID
	first.Score1, first.Score2 = 2, 1
	first.Status = bracket.MatchCompleted
	first.CompletedAt = utils.Ptr(time.Now().UTC())

	tx, err = database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateMatches(ctx, tx, []bracket.Match{first}))
	require.NoError(t, tx.Commit())

	updated, err := s.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, updated.Status)
	assert.Equal(t, *first.Player1ID, *updated.WinnerID)
	assert.Equal(t, 2, updated.Score1)

	_, err = s.GetMatch(ctx, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrMatchNotFound)
}

func TestCreateMatches_LargeRoundRobin(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.RoundRobin)

	// 70 players make 2415 matches, more than one statement can bind
	const players = 70
	participants := make([]bracket.Participant, 0, players)
	for i := range players {
		p, err := register(t, database, s, tournament.ID, fmt.Sprintf("player-%02d", i), utils.Ptr(i+1))
		require.NoError(t, err)
		participants = append(participants, *p)
	}

	tournament.Status = bracket.TournamentInProgress
	matches, err := bracket.Generate(*tournament, participants, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, matches, players*(players-1)/2)
	require.Greater(t, len(matches), 2*matchInsertBatch)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Commit())

	stored, err := s.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(matches))

	ids := make(map[uuid.UUID]bool, len(stored))
	for _, m := range stored {
		ids[m.ID] = true
	}
	for _, m := range matches {
		assert.True(t, ids[m.ID], "match %d/%d missing", m.RoundNumber, m.MatchNumber)
	}
}

func TestCreateMatches_RollsBackWithTransaction(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.RoundRobin)

	var participants []bracket.Participant
	for i := range 40 {
		p, err := register(t, database, s, tournament.ID, fmt.Sprintf("player-%02d", i), nil)
		require.NoError(t, err)
		participants = append(participants, *p)
	}
	tournament.Status = bracket.TournamentInProgress
	matches, err := bracket.Generate(*tournament, participants, time.Now().UTC())
	require.NoError(t, err)
	require.Greater(t, len(matches), matchInsertBatch)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Rollback())

	stored, err := s.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, stored, "earlier batches must not outlive the transaction")
}

func TestUpdateParticipantStatuses(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewTournamentStore(database)
	tournament := createTournament(t, database, s, bracket.SingleElimination)
	p, err := register(t, database, s, tournament.ID, "alice", nil)
	require.NoError(t, err)

	p.Status = bracket.ParticipantEliminated
	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateParticipantStatuses(ctx, tx, []bracket.Participant{*p}))
	require.NoError(t, tx.Commit())

	participants, err := s.GetParticipants(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.True(t, participants[0].IsEliminated())
}

func TestPlayerStore_DisplayNames(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	ctx := context.Background()
	s := NewPlayerStore(database)

	require.NoError(t, s.Remember(ctx, &player.Player{ID: "p-1", DisplayName: "Alice", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.Remember(ctx, &player.Player{ID: "p-2", DisplayName: "Bob", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.Remember(ctx, &player.Player{ID: "p-1", DisplayName: "Alice B.", CreatedAt: time.Now().UTC()}))

	names, err := s.DisplayNames(ctx, []string{"p-1", "p-2", "p-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p-1": "Alice B.", "p-2": "Bob"}, names)

	p, err := s.GetPlayer(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, "Bob", p.DisplayName)

	_, err = s.GetPlayer(ctx, "p-3")
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}
