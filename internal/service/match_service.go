package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/ranking"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	*core
}

// NewMatchService shares the lock set and cache of deps with the tournament
// service, so both must be given the same Dependencies.
func NewMatchService(db *sqlx.DB, store *store.TournamentStore, deps Dependencies) *MatchService {
	return &MatchService{core: newCore(db, store, deps)}
}

func (s *MatchService) GetMatch(ctx context.Context, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.TournamentID != tournamentID {
		return nil, fmt.Errorf("%w: %s", bracket.ErrMatchNotFound, matchID)
	}
	return match, nil
}

// BeginMatch marks a ready match as in progress.
func (s *MatchService) BeginMatch(ctx context.Context, tournamentID, matchID uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := s.mutate(ctx, "begin_match", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		e, err := s.loadEngine(ctx, tx, t)
		if err != nil {
			return false, err
		}
		match, err = e.BeginMatch(matchID)
		if err != nil {
			return false, err
		}
		if updated, _ := e.Changes(); len(updated) == 0 {
			// Already in progress
			return false, nil
		}
		return true, s.persist(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// RecordResult completes a match, advances the bracket and finishes the
// tournament when nothing is left to play. Recording the same winner again
// returns the stored match without changing anything.
func (s *MatchService) RecordResult(ctx context.Context, tournamentID, matchID, winnerID uuid.UUID, score bracket.Score) (*bracket.Match, error) {
	var (
		match    bracket.Match
		events   []notify.Event
		applied  bool
		finished bool
	)

	err := s.mutate(ctx, "record_result", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		e, err := s.loadEngine(ctx, tx, t)
		if err != nil {
			return false, err
		}
		round := e.CurrentRound()

		match, applied, err = e.RecordResult(matchID, winnerID, score)
		if err != nil {
			return false, err
		}
		if !applied {
			return false, nil
		}

		finished, err = s.settle(e, t)
		if err != nil {
			return false, err
		}
		if err := s.persist(ctx, tx, e); err != nil {
			return false, err
		}
		events = s.progressEvents(e, t, match, round)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return &match, nil
	}

	s.deps.Metrics.IncResultsRecorded()
	if finished {
		s.deps.Metrics.IncTournamentsFinished(string(bracket.TournamentCompleted))
	}
	s.deps.Logger.InfoContext(ctx, "result recorded", "tournament_id", tournamentID, "match_id", matchID, "winner_id", winnerID, "score", score.String())
	s.dispatch(ctx, events)
	return &match, nil
}

// AdvanceRound opens the next Swiss round once the current one is finished.
// completed reports that the tournament has no further rounds.
func (s *MatchService) AdvanceRound(ctx context.Context, tournamentID uuid.UUID) (created []bracket.Match, completed bool, err error) {
	var (
		events   []notify.Event
		finished bool
	)

	err = s.mutate(ctx, "advance_round", tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bool, error) {
		e, err := s.loadEngine(ctx, tx, t)
		if err != nil {
			return false, err
		}
		round := e.CurrentRound()

		created, completed, err = e.AdvanceRound()
		if err != nil {
			return false, err
		}
		if len(created) == 0 && !completed {
			return false, nil
		}

		finished, err = s.settle(e, t)
		if err != nil {
			return false, err
		}
		if err := s.persist(ctx, tx, e); err != nil {
			return false, err
		}
		events = s.progressEvents(e, t, bracket.Match{}, round)
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}

	if finished {
		s.deps.Metrics.IncTournamentsFinished(string(bracket.TournamentCompleted))
	}
	s.deps.Logger.InfoContext(ctx, "round advanced", "tournament_id", tournamentID, "matches", len(created), "completed", completed)
	s.dispatch(ctx, events)
	return created, completed, nil
}

// settle copies the engine's round into t and completes t once the engine has
// nothing left to play. Round robin and Swiss crown the standings leader.
func (s *MatchService) settle(e *bracket.Engine, t *bracket.Tournament) (finished bool, err error) {
	t.CurrentRound = e.ActiveRound()
	if !e.IsComplete() {
		return false, nil
	}
	if !t.Format.IsElimination() {
		if leader, ok := ranking.Leader(t.Format, e.Participants(), e.Matches()); ok {
			e.Crown(leader)
		}
	}
	if err := t.Transition(bracket.TournamentCompleted, s.deps.Now()); err != nil {
		return false, err
	}
	return true, nil
}

// progressEvents describes what a write did: the completed match, matches
// that became playable, a newly opened round and the end of the tournament.
func (s *MatchService) progressEvents(e *bracket.Engine, t *bracket.Tournament, completed bracket.Match, roundBefore int) []notify.Event {
	now := s.deps.Now()
	players := playerIDs(e.Participants())
	events := []notify.Event{}

	if completed.ID != uuid.Nil {
		id := completed.ID
		event := notify.Event{
			Type:         notify.EventMatchCompleted,
			TournamentID: t.ID,
			MatchID:      &id,
			Round:        completed.RoundNumber,
			OccurredAt:   now,
		}
		if completed.WinnerID != nil {
			event.PlayerIDs = []string{players[*completed.WinnerID]}
		}
		events = append(events, event)
	}

	updated, created := e.Changes()
	touched := excluding(append(updated, created...), completed.ID)
	events = append(events, readyEvents(t.ID, touched, players, now)...)

	if round := e.CurrentRound(); t.Format == bracket.Swiss && round > roundBefore {
		events = append(events, notify.Event{
			Type:         notify.EventRoundOpened,
			TournamentID: t.ID,
			Round:        round,
			OccurredAt:   now,
		})
	}

	if t.Status == bracket.TournamentCompleted {
		event := notify.Event{
			Type:         notify.EventTournamentCompleted,
			TournamentID: t.ID,
			OccurredAt:   now,
		}
		for _, p := range e.Participants() {
			if p.Status == bracket.ParticipantWinner {
				event.PlayerIDs = []string{p.PlayerID}
			}
		}
		events = append(events, event)
	}
	return events
}

func excluding(matches []bracket.Match, id uuid.UUID) []bracket.Match {
	out := make([]bracket.Match, 0, len(matches))
	for _, m := range matches {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
