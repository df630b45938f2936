package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/cache"
	"github.com/AdamBeresnev/bracket-engine/internal/metrics"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/player"
	"github.com/AdamBeresnev/bracket-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
)

// Dependencies are the collaborators shared by the services. Zero values are
// replaced with in-process defaults.
type Dependencies struct {
	Locks    *Locker
	Cache    cache.Cache
	CacheTTL time.Duration
	Notifier notify.Dispatcher
	Metrics  metrics.Metrics
	// Optional; without it standings carry no display names
	Players player.Directory
	Logger  *slog.Logger
	Now     func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Locks == nil {
		d.Locks = NewLocker()
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 30 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogDispatcher(d.Logger)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Discard
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Locker hands out one mutex per tournament. Entries are dropped once nobody
// holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the tournament's mutex is held and returns its release.
func (l *Locker) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// core is the state and transaction plumbing shared by the services.
type core struct {
	db    *sqlx.DB
	store *store.TournamentStore
	deps  Dependencies
	group singleflight.Group
}

func newCore(db *sqlx.DB, store *store.TournamentStore, deps Dependencies) *core {
	return &core{db: db, store: store, deps: deps.withDefaults()}
}

// mutation is the body of a write. It returns false when there was nothing to
// write, which rolls the transaction back without touching the version.
type mutation func(tx *sqlx.Tx, t *bracket.Tournament) (changed bool, err error)

// mutate runs fn under the tournament's lock in a single transaction, then
// writes the tournament back with a compare-and-swap on its version.
func (c *core) mutate(ctx context.Context, op string, tournamentID uuid.UUID, fn mutation) (err error) {
	start := time.Now()
	defer func() {
		c.deps.Metrics.ObserveOperationDuration(op, time.Since(start).Seconds())
		c.observe(ctx, op, tournamentID, err)
	}()

	unlock := c.deps.Locks.Lock(tournamentID)
	defer unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return store.Classify(err)
	}
	defer tx.Rollback()

	t, err := c.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return err
	}

	changed, err := fn(tx, t)
	if err != nil || !changed {
		return err
	}

	if err := c.store.UpdateTournament(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return store.Classify(err)
	}

	c.invalidate(ctx, tournamentID)
	return nil
}

// observe logs and counts the outcome of an operation.
func (c *core) observe(ctx context.Context, op string, tournamentID uuid.UUID, err error) {
	if err == nil {
		return
	}
	log := c.deps.Logger.With("operation", op, "tournament_id", tournamentID, "error", err)
	switch bracket.Kind(err) {
	case bracket.ErrConcurrency:
		c.deps.Metrics.IncConcurrencyConflicts()
		log.WarnContext(ctx, "concurrent modification")
	case nil:
		log.ErrorContext(ctx, "operation failed")
	default:
		log.WarnContext(ctx, "operation rejected")
	}
}

func standingsPrefix(tournamentID uuid.UUID) string {
	return fmt.Sprintf("standings:%s:", tournamentID)
}

func (c *core) invalidate(ctx context.Context, tournamentID uuid.UUID) {
	if err := c.deps.Cache.DeleteByPrefix(ctx, standingsPrefix(tournamentID)); err != nil {
		c.deps.Logger.WarnContext(ctx, "failed to invalidate standings cache", "tournament_id", tournamentID, "error", err)
	}
}

// dispatch delivers events one by one. Failures are logged and counted but
// never surface to the caller; the change they describe is already committed.
func (c *core) dispatch(ctx context.Context, events []notify.Event) {
	for _, event := range events {
		if err := c.send(ctx, event); err != nil {
			c.deps.Metrics.IncNotificationsFailed()
			c.deps.Logger.ErrorContext(ctx, "failed to dispatch notification",
				"type", event.Type, "tournament_id", event.TournamentID, "error", err)
		}
	}
}

func (c *core) send(ctx context.Context, event notify.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panicked: %v", r)
		}
	}()
	return c.deps.Notifier.Dispatch(ctx, event)
}

// loadEngine builds an engine over the tournament's current state inside tx.
func (c *core) loadEngine(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) (*bracket.Engine, error) {
	participants, err := c.store.GetParticipantsTx(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	matches, err := c.store.GetMatchesTx(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return bracket.NewEngine(*t, participants, matches).WithClock(c.deps.Now), nil
}

// persist writes everything the engine changed.
func (c *core) persist(ctx context.Context, tx *sqlx.Tx, e *bracket.Engine) error {
	updated, created := e.Changes()
	if err := c.store.CreateMatches(ctx, tx, created); err != nil {
		return fmt.Errorf("failed to create matches: %w", err)
	}
	if err := c.store.UpdateMatches(ctx, tx, updated); err != nil {
		return fmt.Errorf("failed to update matches: %w", err)
	}
	if err := c.store.UpdateParticipantStatuses(ctx, tx, e.ChangedParticipants()); err != nil {
		return fmt.Errorf("failed to update participants: %w", err)
	}
	return nil
}
