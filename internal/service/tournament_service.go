package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/player"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/AdamBeresnev/bracket-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	*core
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, deps Dependencies) *TournamentService {
	return &TournamentService{core: newCore(db, store, deps)}
}

type CreateInput struct {
	Name            string         `json:"name"`
	Format          bracket.Format `json:"format"`
	MinParticipants int            `json:"min_participants"`
	MaxParticipants int            `json:"max_participants"`
	SwissRounds     int            `json:"swiss_rounds"`
}

type RegisterInput struct {
	PlayerID string `json:"player_id"`
	Seed     *int   `json:"seed,omitempty"`
	// Stored with the identity directory when set
	DisplayName string `json:"display_name,omitempty"`
}

type TournamentData struct {
	Tournament   *bracket.Tournament   `json:"tournament"`
	Participants []bracket.Participant `json:"participants"`
	Matches      []bracket.Match       `json:"matches"`
	Bracket      bracket.View          `json:"bracket"`
	NextMatchID  *uuid.UUID            `json:"next_match_id,omitempty"`
	Stats        TournamentStats       `json:"stats"`
}

// TournamentStats counts played matches only; byes are left out.
type TournamentStats struct {
	Participants     int `json:"participants"`
	TotalMatches     int `json:"total_matches"`
	CompletedMatches int `json:"completed_matches"`
	PendingMatches   int `json:"pending_matches"`
}

func summarize(participants []bracket.Participant, matches []bracket.Match) TournamentStats {
	stats := TournamentStats{Participants: len(participants)}
	for _, m := range matches {
		if m.IsBye {
			continue
		}
		stats.TotalMatches++
		if m.IsCompleted() {
			stats.CompletedMatches++
		} else {
			stats.PendingMatches++
		}
	}
	return stats
}

func (s *TournamentService) CreateTournament(ctx context.Context, in CreateInput) (*bracket.Tournament, error) {
	tournament := &bracket.Tournament{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(in.Name),
		Format:          in.Format,
		Status:          bracket.TournamentRegistration,
		MinParticipants: in.MinParticipants,
		MaxParticipants: in.MaxParticipants,
		SwissRounds:     in.SwissRounds,
		CreatedAt:       s.deps.Now(),
	}
	if err := tournament.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, store.Classify(err)
	}

	s.deps.Logger.InfoContext(ctx, "tournament created", "tournament_id", tournament.ID, "format", tournament.Format)
	return tournament, nil
}

func (s *TournamentService) RegisterParticipant(ctx context.Context, tournamentID uuid.UUID, in RegisterInput) (*bracket.Participant, error) {
	playerID := strings.TrimSpace(in.PlayerID)
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", bracket.ErrValidation)
	}
	if in.Seed != nil && *in.Seed < 1 {
		return nil, fmt.Errorf("%w: seed must be at least 1", bracket.ErrValidation)
	}

	participant := &bracket.Participant{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Seed:         in.Seed,
		Status:       bracket.ParticipantActive,
		CreatedAt:    s.deps.Now(),
	}

	err := s.mutate(ctx, "register_participant", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		if t.Status != bracket.TournamentRegistration {
			return false, fmt.Errorf("%w: status is %s", bracket.ErrRegistrationClosed, t.Status)
		}
		count, err := s.store.CountParticipantsTx(ctx, tx, t.ID)
		if err != nil {
			return false, fmt.Errorf("failed to count participants: %w", err)
		}
		if t.IsFull(count) {
			return false, fmt.Errorf("%w: %d of %d places taken", bracket.ErrTournamentFull, count, t.MaxParticipants)
		}
		if err := s.store.CreateParticipant(ctx, tx, participant); err != nil {
			return false, fmt.Errorf("failed to register %s: %w", playerID, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if name := utils.StringOrNil(in.DisplayName); name != nil && s.deps.Players != nil {
		p := &player.Player{ID: playerID, DisplayName: *name, CreatedAt: s.deps.Now()}
		if err := s.deps.Players.Remember(ctx, p); err != nil {
			s.deps.Logger.WarnContext(ctx, "failed to store display name", "player_id", playerID, "error", err)
		}
	}

	s.deps.Logger.InfoContext(ctx, "participant registered", "tournament_id", tournamentID, "player_id", playerID, "seed", utils.OrZero(participant.Seed))
	return participant, nil
}

// StartTournament closes registration and generates the bracket. The
// returned matches are the full opening match set, byes already resolved.
func (s *TournamentService) StartTournament(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var (
		matches []bracket.Match
		started *bracket.Tournament
		players map[uuid.UUID]string
	)

	err := s.mutate(ctx, "start_tournament", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		participants, err := s.store.GetParticipantsTx(ctx, tx, t.ID)
		if err != nil {
			return false, fmt.Errorf("failed to get participants: %w", err)
		}
		if t.Status == bracket.TournamentRegistration && len(participants) < t.MinimumToStart() {
			return false, fmt.Errorf("%w: need at least %d, have %d", bracket.ErrNotEnoughParticipants, t.MinimumToStart(), len(participants))
		}

		now := s.deps.Now()
		if err := t.Transition(bracket.TournamentInProgress, now); err != nil {
			return false, err
		}

		e, err := bracket.Build(*t, participants, now)
		if err != nil {
			return false, err
		}
		matches = e.Matches()
		if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
			return false, fmt.Errorf("failed to create matches: %w", err)
		}
		if err := s.store.UpdateParticipantStatuses(ctx, tx, e.ChangedParticipants()); err != nil {
			return false, fmt.Errorf("failed to update participants: %w", err)
		}

		t.CurrentRound = e.ActiveRound()
		started = t
		players = playerIDs(e.Participants())
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.IncTournamentsStarted(string(started.Format))
	s.deps.Logger.InfoContext(ctx, "tournament started", "tournament_id", tournamentID, "matches", len(matches))

	events := []notify.Event{{
		Type:         notify.EventTournamentStarted,
		TournamentID: tournamentID,
		Round:        started.CurrentRound,
		OccurredAt:   s.deps.Now(),
	}}
	events = append(events, readyEvents(tournamentID, matches, players, s.deps.Now())...)
	s.dispatch(ctx, events)
	return matches, nil
}

// CancelTournament stops a tournament that has not finished. Matches are left
// as they were.
func (s *TournamentService) CancelTournament(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	var cancelled *bracket.Tournament
	err := s.mutate(ctx, "cancel_tournament", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		if err := t.Transition(bracket.TournamentCancelled, s.deps.Now()); err != nil {
			return false, err
		}
		cancelled = t
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.IncTournamentsFinished(string(bracket.TournamentCancelled))
	s.deps.Logger.InfoContext(ctx, "tournament cancelled", "tournament_id", tournamentID)
	s.dispatch(ctx, []notify.Event{{
		Type:         notify.EventTournamentCancelled,
		TournamentID: tournamentID,
		OccurredAt:   s.deps.Now(),
	}})
	return cancelled, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	return s.store.GetTournament(ctx, tournamentID)
}

func (s *TournamentService) ListTournaments(ctx context.Context, filter bracket.TournamentFilter) ([]bracket.Tournament, error) {
	return s.store.ListTournaments(ctx, filter)
}

// GetTournamentData loads everything needed to show a tournament.
func (s *TournamentService) GetTournamentData(ctx context.Context, tournamentID uuid.UUID) (*TournamentData, error) {
	snap, err := s.snapshot(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	var nextMatchID *uuid.UUID
	for _, m := range snap.matches {
		if !m.IsCompleted() && m.IsReady() {
			id := m.ID
			nextMatchID = &id
			break
		}
	}

	return &TournamentData{
		Tournament:   snap.tournament,
		Participants: snap.participants,
		Matches:      snap.matches,
		Bracket:      bracket.PrepareView(snap.tournament.Format, len(snap.participants), snap.matches),
		NextMatchID:  nextMatchID,
		Stats:        summarize(snap.participants, snap.matches),
	}, nil
}

type snapshot struct {
	tournament   *bracket.Tournament
	participants []bracket.Participant
	matches      []bracket.Match
}

// snapshot reads a tournament with its participants and matches in parallel.
func (c *core) snapshot(ctx context.Context, tournamentID uuid.UUID) (*snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := c.store.GetTournament(gctx, tournamentID)
		if err != nil {
			return err
		}
		snap.tournament = t
		return nil
	})
	g.Go(func() error {
		participants, err := c.store.GetParticipants(gctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get participants: %w", err)
		}
		snap.participants = participants
		return nil
	})
	g.Go(func() error {
		matches, err := c.store.GetMatches(gctx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		snap.matches = matches
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func playerIDs(participants []bracket.Participant) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(participants))
	for _, p := range participants {
		out[p.ID] = p.PlayerID
	}
	return out
}

// readyEvents announces every match in matches that can now be played.
func readyEvents(tournamentID uuid.UUID, matches []bracket.Match, players map[uuid.UUID]string, now time.Time) []notify.Event {
	var events []notify.Event
	for _, m := range matches {
		if m.IsCompleted() || !m.IsReady() {
			continue
		}
		id := m.ID
		events = append(events, notify.Event{
			Type:         notify.EventMatchReady,
			TournamentID: tournamentID,
			MatchID:      &id,
			PlayerIDs:    []string{players[*m.Player1ID], players[*m.Player2ID]},
			Round:        m.RoundNumber,
			OccurredAt:   now,
		})
	}
	return events
}
