// Package geofence tracks per-reminder inside/outside state over a stream
// of device positions and fires enter/leave transitions.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"remindd/internal/geo"
	"remindd/internal/position"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// TriggerFunc is invoked when a watched reminder's configured transition
// occurs. It runs on the watch goroutine and must not block for long.
type TriggerFunc func(r reminder.Reminder)

type Config struct {
	// BaselineTimeout bounds the wait for the initial fix that seeds
	// inside/outside state. Default 30s.
	BaselineTimeout time.Duration
}

// Service owns the id -> insideRadius map for the current watch session.
// State is rebuilt on every Start and discarded on Stop; a reminder is
// dropped from observation by omitting it from the next Start call.
type Service struct {
	log logx.Logger
	src position.Source
	cfg Config

	mu        sync.Mutex
	watched   []reminder.Reminder
	inside    map[string]bool
	onTrigger TriggerFunc
	cancelSub func()
	done      chan struct{} // nil when not watching

	errCh chan error
}

func New(cfg Config, src position.Source, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.BaselineTimeout <= 0 {
		cfg.BaselineTimeout = 30 * time.Second
	}
	return &Service{
		log:   log,
		src:   src,
		cfg:   cfg,
		errCh: make(chan error, 1),
	}
}

// Errors delivers at most one error per watch session: the position failure
// that ended it. The watch is already stopped by the time the error is
// readable; the caller decides what the user sees.
func (s *Service) Errors() <-chan error { return s.errCh }

// Start replaces any previous watch. It reads one baseline position (with a
// bounded wait) and seeds the inside/outside state for every supplied
// reminder from it, so the first continuous sample is compared against a
// known baseline instead of firing spuriously. Failure to obtain the
// baseline or to subscribe leaves the tracker stopped.
func (s *Service) Start(ctx context.Context, rs []reminder.Reminder, onTrigger TriggerFunc) error {
	s.Stop()

	watched := make([]reminder.Reminder, 0, len(rs))
	for _, r := range rs {
		if r.IsLocation() {
			watched = append(watched, r)
		}
	}
	if len(watched) == 0 {
		return nil
	}

	bctx, cancel := context.WithTimeout(ctx, s.cfg.BaselineTimeout)
	base, err := s.src.Current(bctx)
	cancel()
	if err != nil {
		return fmt.Errorf("geofence: baseline position: %w", err)
	}

	inside := make(map[string]bool, len(watched))
	for _, r := range watched {
		inside[r.ID] = geo.Distance(base.Lat, base.Lng, r.Lat, r.Lng) <= r.Radius
	}

	ch, cancelSub, err := s.src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("geofence: subscribe: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.watched = watched
	s.inside = inside
	s.onTrigger = onTrigger
	s.cancelSub = cancelSub
	s.done = done
	s.mu.Unlock()

	s.log.Info("geofence watch started", logx.Int("reminders", len(watched)))
	go s.loop(ch, done)
	return nil
}

// Stop cancels the continuous subscription and discards all state.
// Idempotent: safe to call when not started. The subscription may deliver
// one more in-flight sample after Stop; the loop ignores it because its
// done channel is no longer the live one.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	s.cancelSub()
	close(s.done)
	s.watched = nil
	s.inside = nil
	s.onTrigger = nil
	s.cancelSub = nil
	s.done = nil
	s.mu.Unlock()
	s.log.Info("geofence watch stopped")
}

func (s *Service) loop(ch <-chan position.Position, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case p, ok := <-ch:
			if !ok {
				s.fail(done, errors.New("geofence: position stream ended"))
				return
			}
			s.evaluate(p, done)
		}
	}
}

// fail ends the watch session and surfaces the error, unless the session
// was already replaced or stopped. No auto-retry: a persistent position
// failure would otherwise busy-loop through permission prompts.
func (s *Service) fail(done chan struct{}, err error) {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return
	}
	s.cancelSub()
	s.watched = nil
	s.inside = nil
	s.onTrigger = nil
	s.cancelSub = nil
	s.done = nil
	s.mu.Unlock()

	s.log.Error("geofence watch failed", logx.Err(err))
	select {
	case s.errCh <- err:
	default:
	}
}

// evaluate runs one sample against every watched reminder. The stored
// state is updated unconditionally after each comparison, whether or not
// the transition direction matched: that prevents re-firing on samples
// that stay on one side and lets the opposite transition fire later.
func (s *Service) evaluate(p position.Position, done chan struct{}) {
	s.mu.Lock()
	if s.done != done {
		// Stale sample delivered after Stop/restart.
		s.mu.Unlock()
		return
	}
	var fired []reminder.Reminder
	for _, r := range s.watched {
		isInside := geo.Distance(p.Lat, p.Lng, r.Lat, r.Lng) <= r.Radius
		was, seen := s.inside[r.ID]
		if seen && isInside != was {
			if (isInside && r.On == reminder.OnEnter) || (!isInside && r.On == reminder.OnLeave) {
				fired = append(fired, r)
			}
		}
		s.inside[r.ID] = isInside
	}
	onTrigger := s.onTrigger
	s.mu.Unlock()

	for _, r := range fired {
		s.log.Info("geofence transition fired", logx.String("id", r.ID), logx.String("direction", string(r.On)))
		if onTrigger != nil {
			onTrigger(r)
		}
	}
}
