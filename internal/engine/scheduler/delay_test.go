package scheduler

import (
	"testing"
	"time"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

func newUTC(t *testing.T) *Service {
	t.Helper()
	s := New(Config{Timezone: "UTC"}, nil, logx.Nop())
	t.Cleanup(s.Stop)
	return s
}

func TestIntervalDelay(t *testing.T) {
	t.Parallel()
	s := newUTC(t)
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval int
		unit     reminder.IntervalUnit
		want     time.Duration
		ok       bool
	}{
		{name: "10 minutes", interval: 10, unit: reminder.UnitMinutes, want: 10 * time.Minute, ok: true},
		{name: "2 hours", interval: 2, unit: reminder.UnitHours, want: 2 * time.Hour, ok: true},
		{name: "3 days", interval: 3, unit: reminder.UnitDays, want: 72 * time.Hour, ok: true},
		{name: "zero interval", interval: 0, unit: reminder.UnitMinutes, ok: false},
		{name: "missing unit", interval: 5, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := reminder.Reminder{
				ID: "i", Trigger: reminder.TriggerTime, TimeTrigger: reminder.TimeInterval,
				Interval: tt.interval, Unit: tt.unit,
			}
			got, ok := s.nextDelay(r, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("delay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExactDelay(t *testing.T) {
	t.Parallel()
	s := newUTC(t)

	tests := []struct {
		name      string
		now       time.Time
		timeOfDay string
		recurring bool
		interval  int
		unit      reminder.IntervalUnit
		want      time.Duration
		ok        bool
	}{
		{
			name: "later today",
			now:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
			timeOfDay: "11:30",
			want: 90 * time.Minute, ok: true,
		},
		{
			name: "passed today, one-shot rolls to tomorrow",
			now:  time.Date(2024, 3, 12, 9, 5, 0, 0, time.UTC),
			timeOfDay: "09:00",
			want: 23*time.Hour + 55*time.Minute, ok: true,
		},
		{
			name: "seconds are zeroed before comparing",
			now:  time.Date(2024, 3, 12, 10, 0, 30, 0, time.UTC),
			timeOfDay: "10:00",
			want: 23*time.Hour + 59*time.Minute + 30*time.Second, ok: true,
		},
		{
			name: "recurring advances by whole interval multiples",
			now:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
			timeOfDay: "01:00",
			recurring: true, interval: 2, unit: reminder.UnitHours,
			// Slots: 01:00, 03:00, ... 09:00, 11:00. Next is 11:00.
			want: time.Hour, ok: true,
		},
		{
			name: "recurring daily rolls to tomorrow",
			now:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
			timeOfDay: "09:00",
			recurring: true, interval: 1, unit: reminder.UnitDays,
			want: 23 * time.Hour, ok: true,
		},
		{
			name: "recurring without interval never arms",
			now:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
			timeOfDay: "09:00",
			recurring: true,
			ok:   false,
		},
		{
			name: "missing time of day never arms",
			now:  time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
			ok:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := reminder.Reminder{
				ID: "e", Trigger: reminder.TriggerTime, TimeTrigger: reminder.TimeExact,
				TimeOfDay: tt.timeOfDay, Recurring: tt.recurring,
				Interval: tt.interval, Unit: tt.unit,
			}
			got, ok := s.nextDelay(r, tt.now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("delay = %v, want %v", got, tt.want)
			}
			if ok && (got <= 0 || got > 24*time.Hour) {
				t.Fatalf("delay %v outside (0, 24h]", got)
			}
		})
	}
}

func TestCronDelay(t *testing.T) {
	t.Parallel()
	s := newUTC(t)
	now := time.Date(2024, 3, 12, 10, 2, 0, 0, time.UTC)

	r := reminder.Reminder{
		ID: "c", Trigger: reminder.TriggerTime, TimeTrigger: reminder.TimeCron,
		CronSpec: "*/5 * * * *",
	}
	got, ok := s.nextDelay(r, now)
	if !ok {
		t.Fatal("expected cron reminder to arm")
	}
	if got != 3*time.Minute {
		t.Fatalf("delay = %v, want 3m", got)
	}

	r.CronSpec = "0 9 * * *"
	got, ok = s.nextDelay(r, now)
	if !ok || got != 22*time.Hour+58*time.Minute {
		t.Fatalf("daily cron delay = %v, %v", got, ok)
	}

	r.CronSpec = "not a cron spec"
	if _, ok := s.nextDelay(r, now); ok {
		t.Fatal("invalid cron spec must not arm")
	}
}

func TestNonTimeReminderNeverArms(t *testing.T) {
	t.Parallel()
	s := newUTC(t)
	r := reminder.Reminder{
		ID: "loc", Trigger: reminder.TriggerLocation,
		Lat: 1, Lng: 1, Radius: 100, On: reminder.OnEnter,
	}
	if _, ok := s.nextDelay(r, time.Now()); ok {
		t.Fatal("location reminder must not produce a time delay")
	}
	s.Schedule(r)
	if n := s.Pending(); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
}
