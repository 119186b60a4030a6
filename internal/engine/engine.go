// Package engine is the trigger dispatcher: it re-derives timer and
// geofence state whenever the reminder collection changes, and routes
// fires to the alert sink. The engine never edits reminders except for
// removing a non-recurring one after it fired.
package engine

import (
	"context"
	"sync"
	"time"

	"remindd/internal/engine/geofence"
	"remindd/internal/engine/scheduler"
	"remindd/internal/eventbus"
	"remindd/internal/notifier"
	"remindd/internal/position"
	"remindd/internal/reminder"
	"remindd/internal/store"
	logx "remindd/pkg/logx"
)

// Sink receives alerts for fired reminders. Implemented by the notifier.
type Sink interface {
	Notify(a notifier.Alert) error
}

type Config struct {
	Timezone        string
	BaselineTimeout time.Duration
}

type Service struct {
	log   logx.Logger
	store store.Store
	bus   eventbus.Bus
	sink  Sink

	sched   *scheduler.Service
	tracker *geofence.Service

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, st store.Store, src position.Source, sink Sink, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Service{
		log:   log,
		store: st,
		bus:   bus,
		sink:  sink,
	}
	e.sched = scheduler.New(scheduler.Config{Timezone: cfg.Timezone}, e.dispatch, log.With(logx.String("comp", "scheduler")))
	e.tracker = geofence.New(geofence.Config{BaselineTimeout: cfg.BaselineTimeout}, src, log.With(logx.String("comp", "geofence")))
	return e
}

// Start performs the initial reconcile and then follows collection-change
// events until ctx is cancelled or Stop is called.
func (e *Service) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel
	e.mu.Unlock()

	events, unsub := e.bus.Subscribe(16)

	e.reconcile(runCtx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsub()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type == eventbus.EventRemindersChanged {
					e.reconcile(runCtx)
				}
			case err := <-e.tracker.Errors():
				// Fatal to the watch session; tell the user instead of
				// silently retrying through permission prompts.
				e.log.Error("location tracking stopped", logx.Err(err))
				_ = e.sink.Notify(notifier.Alert{
					Text: "Location reminders paused: " + err.Error(),
				})
			}
		}
	}()
	return nil
}

func (e *Service) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
	e.sched.Stop()
	e.tracker.Stop()
}

// ---- Exposed operations ----

// ScheduleAll re-arms the given time reminders; pending timers for absent
// ids are cancelled. Idempotent.
func (e *Service) ScheduleAll(rs []reminder.Reminder) { e.sched.ScheduleAll(rs) }

// Cancel discards the pending timer for id, if any.
func (e *Service) Cancel(id string) { e.sched.Cancel(id) }

// WatchLocations replaces the geofence watch with the given reminders.
func (e *Service) WatchLocations(ctx context.Context, rs []reminder.Reminder, onTrigger geofence.TriggerFunc) error {
	return e.tracker.Start(ctx, rs, onTrigger)
}

// StopWatching cancels the geofence watch. Idempotent.
func (e *Service) StopWatching() { e.tracker.Stop() }

// ---- Internals ----

// reconcile rebuilds both subsystems' state from the current collection.
func (e *Service) reconcile(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	rs, err := e.store.List(rctx)
	cancel()
	if err != nil {
		e.log.Error("reconcile: listing reminders failed", logx.Err(err))
		return
	}

	var timed, located []reminder.Reminder
	for _, r := range rs {
		switch {
		case r.IsTime():
			timed = append(timed, r)
		case r.IsLocation():
			located = append(located, r)
		}
	}

	e.sched.ScheduleAll(timed)

	if len(located) == 0 {
		e.tracker.Stop()
	} else if err := e.tracker.Start(ctx, located, e.dispatch); err != nil {
		e.log.Error("reconcile: geofence watch not started", logx.Err(err))
		_ = e.sink.Notify(notifier.Alert{
			Text: "Location reminders unavailable: " + err.Error(),
		})
	}

	e.log.Debug("reconciled reminders",
		logx.Int("time", len(timed)), logx.Int("location", len(located)))
}

// dispatch is the single fire path for both subsystems. The alert carries
// the definition captured at scheduling/watch-start time. Non-recurring
// reminders are removed from the collection here; the resulting change
// event prunes their timer/geofence state.
func (e *Service) dispatch(r reminder.Reminder) {
	err := e.sink.Notify(notifier.Alert{
		ReminderID: r.ID,
		Text:       r.Text,
		Vibrate:    r.Vibrate,
		Sound:      r.Sound,
		At:         time.Now(),
	})
	if err != nil {
		e.log.Warn("alert dropped", logx.String("id", r.ID), logx.Err(err))
	}

	if r.IsRecurring() {
		return
	}
	dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.Delete(dctx, r.ID); err != nil {
		e.log.Error("removing fired reminder failed", logx.String("id", r.ID), logx.Err(err))
	}
}
