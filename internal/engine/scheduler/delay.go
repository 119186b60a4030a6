package scheduler

import (
	"time"

	"remindd/internal/reminder"
)

// nextDelay computes how long to wait before r's next fire, relative to
// now. ok is false when the trigger configuration is incomplete or the
// computed delay would not be in the future; in both cases nothing is
// armed.
func (s *Service) nextDelay(r reminder.Reminder, now time.Time) (delay time.Duration, ok bool) {
	switch r.TimeTrigger {
	case reminder.TimeInterval:
		return intervalDelay(r)
	case reminder.TimeExact:
		return exactDelay(r, now.In(s.loc))
	case reminder.TimeCron:
		return s.cronDelay(r, now)
	default:
		return 0, false
	}
}

// intervalDelay is purely relative to the call moment; there is no
// wall-clock anchoring. Minutes are 60s, hours 3600s, days a fixed 24h.
func intervalDelay(r reminder.Reminder) (time.Duration, bool) {
	unit, ok := r.Unit.Duration()
	if !ok || r.Interval <= 0 {
		return 0, false
	}
	return time.Duration(r.Interval) * unit, true
}

// exactDelay targets today's occurrence of TimeOfDay (seconds zeroed) in
// the scheduler location. If that instant has already passed:
//   - recurring: step forward by whole interval multiples until the target
//     is in the future, so the first live fire is the next matching
//     occurrence, never a backlog of missed ones;
//   - one-shot: the next day at the same wall-clock time.
//
// DST policy: day steps use calendar arithmetic (AddDate), which preserves
// the wall-clock HH:MM across DST transitions; minute and hour steps are
// fixed durations. A reminder for 09:00 therefore still fires at 09:00
// local the day the clocks change.
func exactDelay(r reminder.Reminder, now time.Time) (time.Duration, bool) {
	h, m, err := reminder.ParseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return 0, false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	if !target.After(now) {
		if r.Recurring {
			if r.Interval <= 0 {
				return 0, false
			}
			if r.Unit == reminder.UnitDays {
				for !target.After(now) {
					target = target.AddDate(0, 0, r.Interval)
				}
			} else {
				unit, ok := r.Unit.Duration()
				if !ok {
					return 0, false
				}
				step := time.Duration(r.Interval) * unit
				for !target.After(now) {
					target = target.Add(step)
				}
			}
		} else {
			target = target.AddDate(0, 0, 1)
		}
	}

	d := target.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

func (s *Service) cronDelay(r reminder.Reminder, now time.Time) (time.Duration, bool) {
	sched, err := s.parser.Parse(r.CronSpec)
	if err != nil {
		return 0, false
	}
	next := sched.Next(now.In(s.loc))
	if next.IsZero() || !next.After(now) {
		return 0, false
	}
	return next.Sub(now), true
}
