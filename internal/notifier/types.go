package notifier

import (
	"context"
	"time"
)

// Alert is the user-visible payload of a fired reminder. Sound is an opaque
// identifier chosen by the user; the engine never interprets it.
type Alert struct {
	ReminderID string
	Text       string
	Vibrate    bool
	Sound      string
	At         time.Time
}

// Adapter delivers one alert. Implementations: Telegram, log fallback.
type Adapter interface {
	Send(ctx context.Context, a Alert) error
}

// Config controls the async alert pipeline.
type Config struct {
	Workers     int
	QueueSize   int
	RatePerSec  int
	SendTimeout time.Duration
	// DedupWindow suppresses repeat alerts for the same reminder id within
	// the window. Keep it well below the smallest legitimate recurrence
	// (one minute); it exists to absorb jittery geofence transitions, not
	// to rate-limit recurring reminders.
	DedupWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.DedupWindow < 0 {
		c.DedupWindow = 0
	}
	return c
}
