package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// 15 columns per match row keeps a batch at 7500 variables
const matchInsertBatch = 500

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, name, format, status, min_participants, max_participants, swiss_rounds, current_round, version, created_at, started_at, completed_at)
		VALUES (:id, :name, :format, :status, :min_participants, :max_participants, :swiss_rounds, :current_round, :version, :created_at, :started_at, :completed_at)
	`
	// Compare-and-swap on version; the caller passes the version it read
	updateTournamentQuery = `
		UPDATE tournaments SET
		status = ?,
		current_round = ?,
		started_at = ?,
		completed_at = ?,
		version = version + 1
		WHERE id = ? AND version = ?
	`
	createParticipantQuery = `
		INSERT INTO participants (id, tournament_id, player_id, seed, status, created_at)
		VALUES (:id, :tournament_id, :player_id, :seed, :status, :created_at)
	`
	updateParticipantStatusQuery = `UPDATE participants SET status = :status WHERE id = :id`
	createMatchQuery             = `
		INSERT INTO matches (id, tournament_id, bracket_side, round_number, match_number, player1_id, player2_id, winner_id, loser_id, score1, score2, status, is_bye, created_at, completed_at)
		VALUES (:id, :tournament_id, :bracket_side, :round_number, :match_number, :player1_id, :player2_id, :winner_id, :loser_id, :score1, :score2, :status, :is_bye, :created_at, :completed_at)
	`
	updateMatchQuery = `
		UPDATE matches SET
		player1_id = :player1_id,
		player2_id = :player2_id,
		winner_id = :winner_id,
		loser_id = :loser_id,
		score1 = :score1,
		score2 = :score2,
		status = :status,
		is_bye = :is_bye,
		completed_at = :completed_at
		WHERE id = :id
	`
	participantOrder = " ORDER BY seed IS NULL, seed ASC, created_at ASC, id ASC"
	matchOrder       = " ORDER BY CASE bracket_side WHEN 'winners' THEN 0 WHEN 'losers' THEN 1 ELSE 2 END, abs(round_number) ASC, match_number ASC"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return translate(err, nil)
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, translate(err, bracket.ErrTournamentNotFound)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, translate(err, bracket.ErrTournamentNotFound)
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context, filter bracket.TournamentFilter) ([]bracket.Tournament, error) {
	query := "SELECT * FROM tournaments WHERE 1 = 1"
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Format != "" {
		query += " AND format = ?"
		args = append(args, filter.Format)
	}

	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, query+" ORDER BY created_at DESC", args...)
	return tournaments, translate(err, nil)
}

// UpdateTournament writes the mutable tournament fields if nobody else has
// written since it was read, and bumps tournament.Version on success.
func (s *TournamentStore) UpdateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	res, err := tx.ExecContext(ctx, updateTournamentQuery,
		tournament.Status, tournament.CurrentRound, tournament.StartedAt, tournament.CompletedAt,
		tournament.ID, tournament.Version)
	if err != nil {
		return translate(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: tournament %s changed since version %d", bracket.ErrConcurrency, tournament.ID, tournament.Version)
	}
	tournament.Version++
	return nil
}

func (s *TournamentStore) CreateParticipant(ctx context.Context, tx *sqlx.Tx, participant *bracket.Participant) error {
	_, err := tx.NamedExecContext(ctx, createParticipantQuery, participant)
	return translate(err, nil)
}

func (s *TournamentStore) CountParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM participants WHERE tournament_id = ?", tournamentID)
	return count, translate(err, nil)
}

func (s *TournamentStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	participants := []bracket.Participant{}
	err := s.db.SelectContext(ctx, &participants, "SELECT * FROM participants WHERE tournament_id = ?"+participantOrder, tournamentID)
	return participants, translate(err, nil)
}

func (s *TournamentStore) GetParticipantsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	participants := []bracket.Participant{}
	err := tx.SelectContext(ctx, &participants, "SELECT * FROM participants WHERE tournament_id = ?"+participantOrder, tournamentID)
	return participants, translate(err, nil)
}

func (s *TournamentStore) UpdateParticipantStatuses(ctx context.Context, tx *sqlx.Tx, participants []bracket.Participant) error {
	for i := range participants {
		if _, err := tx.NamedExecContext(ctx, updateParticipantStatusQuery, &participants[i]); err != nil {
			return translate(err, nil)
		}
	}
	return nil
}

// CreateMatches inserts in batches so a large round robin stays under
// SQLite's limit on bound variables per statement.
func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	for batch := range slices.Chunk(matches, matchInsertBatch) {
		if _, err := tx.NamedExecContext(ctx, createMatchQuery, batch); err != nil {
			return translate(err, nil)
		}
	}
	return nil
}

func (s *TournamentStore) UpdateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	for i := range matches {
		if _, err := tx.NamedExecContext(ctx, updateMatchQuery, &matches[i]); err != nil {
			return translate(err, nil)
		}
	}
	return nil
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, translate(err, bracket.ErrMatchNotFound)
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ?"+matchOrder, tournamentID)
	return matches, translate(err, nil)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := tx.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ?"+matchOrder, tournamentID)
	return matches, translate(err, nil)
}
