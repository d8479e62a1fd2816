package pool

import (
	"fmt"
	"io"
	"reflect"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
)

// State is the lifecycle state of a Pooled value.
type State int32

const (
	// StateNew is the zero state of a value no pool has seen yet. Putting it
	// adopts it into the pool.
	StateNew State = iota
	// StateIdle means the value is held by the pool and not handed out.
	StateIdle
	// StateInUse means a caller owns the value.
	StateInUse
	// StateReturning means the caller handed the value back and it awaits reset.
	StateReturning
	// StateResurrecting means the garbage collector found the value unreachable
	// while in use and the pool is deciding whether to take it back.
	StateResurrecting
	// StateDestroyed is terminal. The release hook has run (or is running).
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in_use"
	case StateReturning:
		return "returning"
	case StateResurrecting:
		return "resurrecting"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Resource is implemented by values that want to control their own recycling.
//
// Reset is called before the value goes back to the idle reserve. Returning
// false (or panicking) destroys the value instead. Release is called exactly
// once when the value is permanently destroyed.
type Resource interface {
	Reset() bool
	Release()
}

// Partial capabilities picked up when a value does not implement Resource.
type (
	resetter       interface{ Reset() bool }
	simpleResetter interface{ Reset() }
	releaser       interface{ Release() }
)

// Pooled is embedded in a struct to give it a pool-tracked lifecycle: a weak
// reference to its owning pool, an atomic state, and leak recovery through a
// finalizer when the pool is built with WithLeakRecovery.
//
//	type Conn struct {
//	    pool.Pooled
//	    sock net.Conn
//	}
//
// Pooled must be embedded in a struct that is handled by pointer and must not be
// copied after first use.
type Pooled struct {
	owner   weak.Pointer[home]
	state   atomic.Int32
	tracked atomic.Bool
}

func (p *Pooled) pooled() *Pooled { return p }

// State returns the current lifecycle state.
func (p *Pooled) State() State {
	return State(p.state.Load())
}

// Owned reports whether the value still has a live owning pool.
func (p *Pooled) Owned() bool {
	return p.owner.Value() != nil
}

// pooledValue is satisfied by any pointer to a struct embedding Pooled.
type pooledValue interface {
	pooled() *Pooled
}

var pooledValueType = reflect.TypeFor[pooledValue]()

// pooledOf returns the embedded Pooled of v, or nil when v has none.
func pooledOf(v any) *Pooled {
	pv, ok := v.(pooledValue)
	if !ok {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return pv.pooled()
}

// home is the non-generic record a Pooled value points back to. Values hold it
// only weakly, so they never keep their pool alive.
type home struct {
	name      string
	put       func(any) bool
	resurrect func(any)
}

// Return hands a Pooled value back to the pool it came from. It reports false
// when v does not embed Pooled or when its pool has been garbage collected, in
// which case the value is destroyed.
func Return(v any) bool {
	pd := pooledOf(v)
	if pd == nil {
		return false
	}
	if h := pd.owner.Value(); h != nil {
		return h.put(v)
	}
	discardOrphan(v, pd)
	return false
}

// discardOrphan destroys a value whose pool no longer exists.
func discardOrphan(v any, pd *Pooled) {
	if State(pd.state.Swap(int32(StateDestroyed))) == StateDestroyed {
		return
	}
	untrack(v, pd)
	if err := releaseValue(v, nil); err != nil {
		logger.Get().Warn("failed to release orphaned pooled value",
			zap.String("type", reflect.TypeOf(v).String()),
			zap.Error(err))
	}
}

// Wrapped adapts a value whose type cannot implement Resource. The reset and
// release closures stand in for the missing methods; either may be nil.
type Wrapped[T any] struct {
	Pooled
	Value   T
	reset   func(T) bool
	release func(T)
}

// Wrap returns a Wrapped around value with the given lifecycle closures.
func Wrap[T any](value T, reset func(T) bool, release func(T)) *Wrapped[T] {
	return &Wrapped[T]{Value: value, reset: reset, release: release}
}

// WrapFactory lifts a factory of T into a factory of *Wrapped[T], suitable for
// WithFactory on a Pool[*Wrapped[T]].
func WrapFactory[T any](factory func() (T, error), reset func(T) bool, release func(T)) func() (*Wrapped[T], error) {
	return func() (*Wrapped[T], error) {
		v, err := factory()
		if err != nil {
			return nil, err
		}
		return Wrap(v, reset, release), nil
	}
}

// Reset runs the injected reset closure. A nil closure always succeeds.
func (w *Wrapped[T]) Reset() bool {
	if w.reset == nil {
		return true
	}
	return w.reset(w.Value)
}

// Release runs the injected release closure, if any.
func (w *Wrapped[T]) Release() {
	if w.release != nil {
		w.release(w.Value)
	}
}

// resetValue applies fn or the value's own reset capability. Panics count as
// failure.
func resetValue(v any, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if fn != nil {
		return fn()
	}
	switch r := v.(type) {
	case resetter:
		return r.Reset()
	case simpleResetter:
		r.Reset()
	}
	return true
}

// releaseValue applies fn or the value's own release capability. Panics and
// Close errors are returned.
func releaseValue(v any, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &releasePanic{value: r}
		}
	}()

	if fn != nil {
		fn()
		return nil
	}
	switch r := v.(type) {
	case releaser:
		r.Release()
	case io.Closer:
		return r.Close()
	}
	return nil
}

type releasePanic struct {
	value any
}

func (p *releasePanic) Error() string {
	return fmt.Sprintf("panic during release: %v", p.value)
}
