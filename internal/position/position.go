// Package position defines the device-position contract consumed by the
// geofence tracker. Implementations live in the transports (Telegram
// live-location) and in test fakes.
package position

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoFix means no position could be acquired within the allowed wait.
	ErrNoFix = errors.New("position: no fix available")
	// ErrPermission means the source is not allowed to report positions
	// (e.g. the user never shared their location).
	ErrPermission = errors.New("position: permission denied")
)

// Position is a single device fix.
type Position struct {
	Lat      float64
	Lng      float64
	Accuracy float64 // meters; 0 means unknown
	At       time.Time
}

// Source provides device positions.
//
// Current returns one fix, waiting at most until ctx is done.
// Watch returns a stream of fixes plus a cancel func; the channel is closed
// when the subscription ends (cancel called or the source shuts down).
// Both may fail with permission or hardware-style errors, which callers
// must treat as fatal to the current watch session.
type Source interface {
	Current(ctx context.Context) (Position, error)
	Watch(ctx context.Context) (<-chan Position, func(), error)
}

// Unavailable is the Source used when no transport can report positions.
// Every acquisition fails with ErrNoFix, so location reminders surface as
// "unavailable" instead of silently never firing.
type Unavailable struct{}

func (Unavailable) Current(ctx context.Context) (Position, error) {
	_ = ctx
	return Position{}, ErrNoFix
}

func (Unavailable) Watch(ctx context.Context) (<-chan Position, func(), error) {
	_ = ctx
	return nil, nil, ErrNoFix
}
