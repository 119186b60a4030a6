package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindd/internal/eventbus"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

var ErrClosed = errors.New("store closed")

// Config configures reminder persistence.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file":   atomic JSON snapshot, dependency-free
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the reminder collection. Every successful mutation publishes
// eventbus.EventRemindersChanged so the trigger engine can re-derive its
// schedules and geofence watches.
type Store interface {
	List(ctx context.Context) ([]reminder.Reminder, error)
	Get(ctx context.Context, id string) (reminder.Reminder, bool, error)
	Put(ctx context.Context, r reminder.Reminder) error
	Delete(ctx context.Context, id string) error
	// ReplaceAll swaps the whole collection in one step (import).
	ReplaceAll(ctx context.Context, rs []reminder.Reminder) error
	Close() error
}

// Open initializes the configured store and wraps it so mutations are
// validated and announced on the bus.
func Open(cfg Config, log logx.Logger, bus eventbus.Bus) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		st  Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "file":
		st, err = openFile(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return &announcing{inner: st, bus: bus}, nil
}

// announcing validates writes and publishes change events after they commit.
type announcing struct {
	inner Store
	bus   eventbus.Bus
}

func (a *announcing) List(ctx context.Context) ([]reminder.Reminder, error) {
	return a.inner.List(ctx)
}

func (a *announcing) Get(ctx context.Context, id string) (reminder.Reminder, bool, error) {
	return a.inner.Get(ctx, id)
}

func (a *announcing) Put(ctx context.Context, r reminder.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := a.inner.Put(ctx, r); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *announcing) Delete(ctx context.Context, id string) error {
	if err := a.inner.Delete(ctx, id); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *announcing) ReplaceAll(ctx context.Context, rs []reminder.Reminder) error {
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate reminder id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	if err := a.inner.ReplaceAll(ctx, rs); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *announcing) Close() error { return a.inner.Close() }

func (a *announcing) changed() {
	if a.bus != nil {
		a.bus.Publish(eventbus.Event{Type: eventbus.EventRemindersChanged})
	}
}
