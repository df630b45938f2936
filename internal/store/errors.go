package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/mattn/go-sqlite3"
)

var errPlayerNotFound = fmt.Errorf("%w: player not found", bracket.ErrNotFound)

// translate maps driver errors onto the engine's error kinds. notFound is
// returned for sql.ErrNoRows.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch {
	case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", bracket.ErrConcurrency, err)
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		switch {
		case strings.Contains(sqliteErr.Error(), "participants.seed"):
			return bracket.ErrSeedTaken
		case strings.Contains(sqliteErr.Error(), "participants.player_id"):
			return bracket.ErrAlreadyRegistered
		}
		return fmt.Errorf("%w: %v", bracket.ErrValidation, err)
	case sqliteErr.Code == sqlite3.ErrConstraint:
		return fmt.Errorf("%w: %v", bracket.ErrValidation, err)
	}
	return err
}

// Classify maps a driver error from outside the store, such as a failed
// commit, onto the engine's error kinds.
func Classify(err error) error {
	return translate(err, nil)
}
