package fifu

import (
	"time"

	"go.uber.org/zap"

	"github.com/adharris/fifu-queue/pkg/timer"
)

// DefaultTTL is used when no WithTTL option is given.
const DefaultTTL = time.Hour

type options struct {
	ttl       time.Duration
	clock     timer.Clock
	ownsClock bool
	logger    *zap.Logger
}

func defaultOptions() options {
	return options{
		ttl:       DefaultTTL,
		clock:     timer.System(),
		ownsClock: true,
		logger:    zap.NewNop(),
	}
}

// Option configures a Queue.
type Option func(*options)

// WithTTL sets how long an item may stay queued. Zero means items expire
// immediately; a negative value makes New fail with ErrInvalidTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock sets the time source and expiry scheduler. Nil keeps the default.
// The caller keeps ownership of c: Close does not stop it, so one clock can
// serve several queues.
func WithClock(c timer.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
			o.ownsClock = false
		}
	}
}

// WithLogger sets the logger for expiry diagnostics. Nil keeps the default.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
