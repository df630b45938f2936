package store

import (
	"context"

	"github.com/AdamBeresnev/bracket-engine/internal/player"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

var _ player.Directory = (*PlayerStore)(nil)

const (
	getPlayerQuery    = "SELECT * FROM players WHERE id = ?"
	upsertPlayerQuery = `
		INSERT INTO players (id, display_name, created_at) VALUES
		(:id, :display_name, :created_at)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	var p player.Player
	err := s.db.GetContext(ctx, &p, getPlayerQuery, id)
	if err != nil {
		return nil, translate(err, errPlayerNotFound)
	}
	return &p, nil
}

func (s *PlayerStore) Remember(ctx context.Context, p *player.Player) error {
	_, err := s.db.NamedExecContext(ctx, upsertPlayerQuery, p)
	return translate(err, nil)
}

func (s *PlayerStore) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In("SELECT * FROM players WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var players []player.Player
	if err := s.db.SelectContext(ctx, &players, s.db.Rebind(query), args...); err != nil {
		return nil, translate(err, nil)
	}
	for _, p := range players {
		names[p.ID] = p.DisplayName
	}
	return names, nil
}
