package pool

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Pool.
type Option[T any] func(*options[T])

type options[T any] struct {
	minimumSize  int
	maximumSize  int
	factory      func() (T, error)
	reset        func(T) bool
	release      func(T)
	diagnostics  bool
	leakRecovery bool
	logger       *zap.Logger
	name         string

	stampIdle bool
	now       func() time.Time
}

func defaultOptions[T any]() options[T] {
	return options[T]{
		minimumSize: DefaultMinimumSize,
		maximumSize: DefaultMaximumSize,
		now:         time.Now,
	}
}

func resolveOptions[T any](opts []Option[T]) options[T] {
	o := defaultOptions[T]()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithBounds sets the minimum and maximum size of the idle reserve.
func WithBounds[T any](minimum, maximum int) Option[T] {
	return func(o *options[T]) {
		o.minimumSize = minimum
		o.maximumSize = maximum
	}
}

// WithFactory sets the constructor used on a miss and when refilling.
// Without it, a pool of *E allocates new(E) and any other pool uses the zero value.
func WithFactory[T any](factory func() (T, error)) Option[T] {
	return func(o *options[T]) {
		o.factory = factory
	}
}

// WithReset overrides the value's own Reset when returning to the pool.
func WithReset[T any](reset func(T) bool) Option[T] {
	return func(o *options[T]) {
		o.reset = reset
	}
}

// WithRelease overrides the value's own Release or Close on destruction.
func WithRelease[T any](release func(T)) Option[T] {
	return func(o *options[T]) {
		o.release = release
	}
}

// WithDiagnostics enables the counters from the start.
func WithDiagnostics[T any]() Option[T] {
	return func(o *options[T]) {
		o.diagnostics = true
	}
}

// WithLeakRecovery registers a finalizer on every value so that values dropped
// by their caller without Put are taken back by the pool. It requires T to be a
// pointer to a struct embedding Pooled; for other types it is ignored.
func WithLeakRecovery[T any]() Option[T] {
	return func(o *options[T]) {
		o.leakRecovery = true
	}
}

// WithLogger sets the logger. Defaults to the process logger named "pool".
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = l
	}
}

// WithName labels the pool in logs and metrics.
func WithName[T any](name string) Option[T] {
	return func(o *options[T]) {
		o.name = name
	}
}

// withIdleStamps records the time each value entered the idle reserve.
func withIdleStamps[T any]() Option[T] {
	return func(o *options[T]) {
		o.stampIdle = true
	}
}

// withClock replaces time.Now.
func withClock[T any](now func() time.Time) Option[T] {
	return func(o *options[T]) {
		o.now = now
	}
}
