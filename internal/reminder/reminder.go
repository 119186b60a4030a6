// Package reminder defines the reminder record shared by the store, the
// trigger engine and the transports. The record is schema-stable: its JSON
// form is the import/export format and must round-trip field-for-field.
package reminder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TriggerType selects which trigger group of a reminder is populated.
type TriggerType string

const (
	TriggerTime     TriggerType = "time"
	TriggerLocation TriggerType = "location"
)

// TimeTriggerType selects how a time reminder computes its next fire.
type TimeTriggerType string

const (
	// TimeInterval fires after a relative delay from scheduling time.
	TimeInterval TimeTriggerType = "interval"
	// TimeExact fires at an absolute local time-of-day.
	TimeExact TimeTriggerType = "exact"
	// TimeCron fires at the next occurrence of a 5-field cron expression.
	// Cron reminders are always recurring.
	TimeCron TimeTriggerType = "cron"
)

// IntervalUnit scales the Interval field.
type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
)

// Duration returns the unit as a fixed duration. Days are a fixed
// 24 hours here; calendar-day stepping for exact-mode reminders is
// handled by the scheduler, not by this helper.
func (u IntervalUnit) Duration() (time.Duration, bool) {
	switch u {
	case UnitMinutes:
		return time.Minute, true
	case UnitHours:
		return time.Hour, true
	case UnitDays:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

// LocationTrigger selects the geofence transition direction that fires.
type LocationTrigger string

const (
	OnEnter LocationTrigger = "on_enter"
	OnLeave LocationTrigger = "on_leave"
)

// Reminder is an immutable record owned by the caller and referenced by ID.
// Exactly one of the time/location field groups is populated, matching
// Trigger.
type Reminder struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	Trigger TriggerType `json:"trigger"`

	// Time fields (Trigger == TriggerTime).
	TimeTrigger TimeTriggerType `json:"time_trigger,omitempty"`
	TimeOfDay   string          `json:"time_of_day,omitempty"` // "HH:MM", local
	Interval    int             `json:"interval,omitempty"`
	Unit        IntervalUnit    `json:"interval_unit,omitempty"`
	CronSpec    string          `json:"cron_spec,omitempty"`

	// Location fields (Trigger == TriggerLocation).
	Address string          `json:"address,omitempty"` // display only
	Lat     float64         `json:"lat,omitempty"`
	Lng     float64         `json:"lng,omitempty"`
	Radius  float64         `json:"radius,omitempty"` // meters
	On      LocationTrigger `json:"trigger_on,omitempty"`

	// Common fields.
	Recurring bool   `json:"recurring,omitempty"`
	Vibrate   bool   `json:"vibrate,omitempty"`
	Sound     string `json:"sound,omitempty"` // opaque sound identifier
}

var (
	ErrNoID          = errors.New("reminder: id is empty")
	ErrBadTrigger    = errors.New("reminder: unknown trigger type")
	ErrMixedTriggers = errors.New("reminder: time and location fields both set")
)

// Validate checks the invariants a stored reminder must hold. It does NOT
// require the trigger configuration to be complete: an incompletely filled
// reminder is storable, it just never arms (the scheduler treats it as a
// silent no-op).
func (r Reminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrNoID
	}
	switch r.Trigger {
	case TriggerTime:
		if r.Radius != 0 || r.On != "" || r.Address != "" {
			return ErrMixedTriggers
		}
		if r.Interval < 0 {
			return fmt.Errorf("reminder %s: interval must not be negative", r.ID)
		}
	case TriggerLocation:
		if r.TimeTrigger != "" || r.TimeOfDay != "" || r.CronSpec != "" {
			return ErrMixedTriggers
		}
		if r.Radius <= 0 {
			return fmt.Errorf("reminder %s: radius must be > 0", r.ID)
		}
		if r.Lat < -90 || r.Lat > 90 {
			return fmt.Errorf("reminder %s: lat out of range", r.ID)
		}
		if r.Lng < -180 || r.Lng > 180 {
			return fmt.Errorf("reminder %s: lng out of range", r.ID)
		}
		if r.On != OnEnter && r.On != OnLeave {
			return fmt.Errorf("reminder %s: trigger_on must be %s or %s", r.ID, OnEnter, OnLeave)
		}
	default:
		return ErrBadTrigger
	}
	return nil
}

// IsTime reports whether the reminder is time-triggered.
func (r Reminder) IsTime() bool { return r.Trigger == TriggerTime }

// IsLocation reports whether the reminder is location-triggered.
func (r Reminder) IsLocation() bool { return r.Trigger == TriggerLocation }

// IsRecurring reports whether a fire re-arms the reminder. Cron reminders
// re-arm unconditionally.
func (r Reminder) IsRecurring() bool {
	return r.Recurring || (r.Trigger == TriggerTime && r.TimeTrigger == TimeCron)
}

// ParseTimeOfDay parses an "HH:MM" wall-clock string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid time of day %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q: bad minute", s)
	}
	return h, m, nil
}
