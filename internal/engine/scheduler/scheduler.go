// Package scheduler arms one pending timer per time-triggered reminder and
// re-arms recurring reminders after each fire.
//
// Invariants:
//   - at most one live timer per reminder id (Schedule cancels first)
//   - re-arming is an explicit loop inside the timer goroutine, never
//     recursion, so long-lived recurring reminders don't grow stacks
//   - the fire callback always receives the definition captured at the
//     last Schedule call; edits take effect at the next Schedule
package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

// TriggerFunc is invoked when a reminder fires. It must not block for long:
// it runs on the timer goroutine that also computes the next occurrence.
type TriggerFunc func(r reminder.Reminder)

type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Berlin"; empty means time.Local
}

type Service struct {
	log       logx.Logger
	loc       *time.Location
	parser    cron.Parser
	onTrigger TriggerFunc

	// now is swapped in tests.
	now func() time.Time

	mu      sync.Mutex
	timers  map[string]*pending
	stopped bool
}

// pending is the handle for one armed reminder. Closing done cancels the
// timer goroutine; the goroutine checks done before every fire so a cancel
// that races the timer expiry still wins.
type pending struct {
	done chan struct{}
}

func New(cfg Config, onTrigger TriggerFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:       log,
		loc:       loadLocation(cfg.Timezone, log),
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		onTrigger: onTrigger,
		now:       time.Now,
		timers:    map[string]*pending{},
	}
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Schedule arms the reminder's next fire. Any previously pending timer for
// the same id is cancelled first, so calling it twice in a row leaves
// exactly one live timer. Non-time reminders and reminders with an
// incomplete trigger configuration arm nothing; that is an intentional
// no-op, not an error.
func (s *Service) Schedule(r reminder.Reminder) {
	if !r.IsTime() {
		return
	}
	delay, ok := s.nextDelay(r, s.now())

	s.mu.Lock()
	s.cancelLocked(r.ID)
	if s.stopped || !ok {
		s.mu.Unlock()
		if !ok {
			s.log.Debug("reminder not armed (incomplete trigger config)", logx.String("id", r.ID))
		}
		return
	}
	p := &pending{done: make(chan struct{})}
	s.timers[r.ID] = p
	s.mu.Unlock()

	s.log.Debug("reminder armed", logx.String("id", r.ID), logx.Duration("delay", delay))
	go s.run(r, delay, p)
}

// ScheduleAll reconciles the timer table against the given collection:
// pending timers whose ids are absent are cancelled, every time reminder
// present is (re-)armed. Safe to call on every collection change.
func (s *Service) ScheduleAll(rs []reminder.Reminder) {
	keep := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if r.IsTime() {
			keep[r.ID] = struct{}{}
		}
	}

	s.mu.Lock()
	for id := range s.timers {
		if _, ok := keep[id]; !ok {
			s.cancelLocked(id)
		}
	}
	s.mu.Unlock()

	for _, r := range rs {
		s.Schedule(r)
	}
}

// Cancel discards the pending timer for id, if any. Idempotent.
func (s *Service) Cancel(id string) {
	s.mu.Lock()
	s.cancelLocked(id)
	s.mu.Unlock()
}

func (s *Service) cancelLocked(id string) {
	if p, ok := s.timers[id]; ok {
		close(p.done)
		delete(s.timers, id)
	}
}

// Stop cancels every pending timer. The service stays usable only for
// Cancel; Schedule becomes a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.mu.Unlock()
	s.log.Info("scheduler stopped")
}

// Pending reports how many timers are currently armed.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// run waits for the fire instant, dispatches, and loops for recurring
// reminders. It owns exactly one time.Timer for its whole lifetime.
func (s *Service) run(r reminder.Reminder, delay time.Duration, p *pending) {
	t := time.NewTimer(delay)
	defer t.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-t.C:
		}
		// A cancel may have raced the expiry; it wins.
		select {
		case <-p.done:
			return
		default:
		}

		s.log.Info("reminder fired", logx.String("id", r.ID), logx.String("text", r.Text))
		if s.onTrigger != nil {
			s.onTrigger(r)
		}

		if !r.IsRecurring() {
			s.release(r.ID, p)
			return
		}
		next, ok := s.nextDelay(r, s.now())
		if !ok {
			s.release(r.ID, p)
			return
		}
		t.Reset(next)
	}
}

// release forgets the handle if it is still the current one for id. The
// handle may already have been replaced by a newer Schedule call.
func (s *Service) release(id string, p *pending) {
	s.mu.Lock()
	if cur, ok := s.timers[id]; ok && cur == p {
		delete(s.timers, id)
	}
	s.mu.Unlock()
}
