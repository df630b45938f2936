package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/ranking"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Every write bumps the tournament version, so a key never serves stale rows.
func standingsKey(tournamentID uuid.UUID, version int) string {
	return fmt.Sprintf("%sv%d", standingsPrefix(tournamentID), version)
}

// GetStandings ranks every participant from the committed match state.
func (s *TournamentService) GetStandings(ctx context.Context, tournamentID uuid.UUID) ([]ranking.Entry, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	key := standingsKey(tournamentID, t.Version)

	entries, ok := s.cachedStandings(ctx, key)
	if ok {
		s.deps.Metrics.IncCacheHits()
	} else {
		s.deps.Metrics.IncCacheMisses()
		v, err, _ := s.group.Do(key, func() (any, error) {
			return s.computeStandings(ctx, key, tournamentID)
		})
		if err != nil {
			return nil, err
		}
		entries = v.([]ranking.Entry)
	}

	// Shared with other callers through the cache and singleflight
	out := make([]ranking.Entry, len(entries))
	copy(out, entries)
	s.attachNames(ctx, out)
	return out, nil
}

func (s *TournamentService) cachedStandings(ctx context.Context, key string) ([]ranking.Entry, bool) {
	data, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "standings cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entries []ranking.Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		s.deps.Logger.WarnContext(ctx, "dropping undecodable standings", "key", key, "error", err)
		return nil, false
	}
	return entries, true
}

func (s *TournamentService) computeStandings(ctx context.Context, key string, tournamentID uuid.UUID) ([]ranking.Entry, error) {
	snap, err := s.snapshot(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	entries := ranking.Standings(snap.tournament.Format, snap.participants, snap.matches)

	// Only cache what matches the version the key was built from
	if standingsKey(tournamentID, snap.tournament.Version) == key {
		data, err := msgpack.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to encode standings: %w", err)
		}
		if err := s.deps.Cache.Set(ctx, key, data, s.deps.CacheTTL); err != nil {
			s.deps.Logger.WarnContext(ctx, "standings cache write failed", "key", key, "error", err)
		}
	}
	return entries, nil
}

func (s *TournamentService) attachNames(ctx context.Context, entries []ranking.Entry) {
	if s.deps.Players == nil || len(entries) == 0 {
		return
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PlayerID)
	}
	names, err := s.deps.Players.DisplayNames(ctx, ids)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to look up display names", "error", err)
		return
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].PlayerID]
	}
}

// GetPlacement returns the final rank of a player. ok is false while the
// tournament is still running or was cancelled.
func (s *TournamentService) GetPlacement(ctx context.Context, tournamentID uuid.UUID, playerID string) (rank int, ok bool, err error) {
	snap, err := s.snapshot(ctx, tournamentID)
	if err != nil {
		return 0, false, err
	}

	participantID := uuid.Nil
	for _, p := range snap.participants {
		if p.PlayerID == playerID {
			participantID = p.ID
			break
		}
	}
	if participantID == uuid.Nil {
		return 0, false, fmt.Errorf("%w: player %s", bracket.ErrParticipantNotFound, playerID)
	}

	rank, ok = ranking.Placement(*snap.tournament, snap.participants, snap.matches, participantID)
	return rank, ok, nil
}
