package pool

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/lockfree"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// enqueueSpins bounds how long a release waits for a slot still being vacated
// by a concurrent Get before treating the value as overflow.
const enqueueSpins = 64

// entry is an idle value plus the time it entered the reserve (UnixNano, zero
// unless idle stamps are on).
type entry[T any] struct {
	value T
	since int64
}

// Pool is a bounded reserve of idle values of type T. Get never blocks: it
// serves an idle value or builds a new one. The maximum bounds only how many
// idle values are kept, not how many may be in use.
//
// A Pool is safe for concurrent use.
type Pool[T any] struct {
	name      string
	logger    *zap.Logger
	factory   func() (T, error)
	resetFn   func(T) bool
	releaseFn func(T)
	now       func() time.Time

	stampIdle    bool
	leakRecovery bool
	tracksState  bool

	// mu is write-locked only to swap idle for a larger queue.
	mu        sync.RWMutex
	idle      *lockfree.MPMCQueue[entry[T]]
	idleCount atomic.Int64

	boundsMu    sync.Mutex
	minimumSize atomic.Int64
	maximumSize atomic.Int64

	inUse     atomic.Int64
	diag      Diagnostics
	adjusting atomic.Bool

	lifecycle sync.Mutex
	closed    atomic.Bool
	wg        sync.WaitGroup

	home *home
}

// New creates a pool and fills its idle reserve to the minimum size.
// Invalid bounds return an ErrorTypeConfig error. A factory failure while
// filling returns an ErrorTypeFactory error and destroys what was built.
func New[T any](opts ...Option[T]) (*Pool[T], error) {
	o := resolveOptions(opts)
	if err := ValidateBounds(o.minimumSize, o.maximumSize); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		name:      o.name,
		factory:   o.factory,
		resetFn:   o.reset,
		releaseFn: o.release,
		now:       o.now,
		stampIdle: o.stampIdle,
		idle:      lockfree.NewMPMCQueue[entry[T]](o.maximumSize),
	}
	if p.name == "" {
		p.name = reflect.TypeFor[T]().String()
	}
	if p.factory == nil {
		p.factory = defaultFactory[T]()
	}
	if p.now == nil {
		p.now = time.Now
	}

	base := o.logger
	if base == nil {
		base = logger.Get().Named("pool")
	}
	p.logger = base.With(zap.String("pool", p.name))

	p.minimumSize.Store(int64(o.minimumSize))
	p.maximumSize.Store(int64(o.maximumSize))
	p.diag.setEnabled(o.diagnostics)

	typ := reflect.TypeFor[T]()
	p.tracksState = typ.Implements(pooledValueType)
	if o.leakRecovery {
		if typ.Kind() == reflect.Pointer && p.tracksState {
			p.leakRecovery = true
		} else {
			p.logger.Warn("leak recovery requires a pointer type embedding pool.Pooled; disabled",
				zap.String("type", typ.String()))
		}
	}

	p.home = newHome(p)

	if err := p.fill(); err != nil {
		p.Clear()
		return nil, err
	}

	p.logger.Debug("pool created",
		zap.Int("minimum_size", o.minimumSize),
		zap.Int("maximum_size", o.maximumSize),
		zap.Bool("diagnostics", o.diagnostics),
		zap.Bool("leak_recovery", p.leakRecovery))

	return p, nil
}

func newHome[T any](p *Pool[T]) *home {
	return &home{
		name: p.name,
		put: func(v any) bool {
			t, ok := v.(T)
			if !ok {
				return false
			}
			p.Put(t)
			return true
		},
		resurrect: func(v any) {
			if t, ok := v.(T); ok {
				p.release(t, true)
			}
		},
	}
}

func defaultFactory[T any]() func() (T, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		elem := typ.Elem()
		return func() (T, error) {
			return reflect.New(elem).Convert(typ).Interface().(T), nil
		}
	}
	return func() (T, error) {
		var zero T
		return zero, nil
	}
}

// Name returns the pool's label.
func (p *Pool[T]) Name() string { return p.name }

// Get returns an idle value, or a new one when the reserve is empty. Taking an
// idle value below the minimum schedules a background refill. After Close it
// returns ErrPoolClosed.
func (p *Pool[T]) Get() (T, error) {
	var zero T
	if p.closed.Load() {
		return zero, poolerrors.ErrPoolClosed
	}

	if e, ok := p.dequeue(); ok {
		p.diag.incr(&p.diag.hits)
		p.markInUse(e.value)
		p.inUse.Add(1)
		if p.idleCount.Load() < p.minimumSize.Load() {
			p.scheduleAdjust()
		}
		return e.value, nil
	}

	p.diag.incr(&p.diag.misses)
	v, err := p.create()
	if err != nil {
		return zero, err
	}
	p.markInUse(v)
	p.inUse.Add(1)
	return v, nil
}

// Put hands v back. It is reset and kept when the reserve has room, and
// destroyed otherwise. A Pooled value the pool did not create is adopted the
// same way. Putting a Pooled value that is idle or destroyed is a no-op.
func (p *Pool[T]) Put(v T) {
	p.release(v, false)
}

func (p *Pool[T]) release(v T, resurrect bool) {
	adopted := false
	if p.tracksState {
		if pd := pooledOf(v); pd != nil {
			next := StateReturning
			if resurrect {
				next = StateResurrecting
			}
			if !pd.state.CompareAndSwap(int32(StateInUse), int32(next)) {
				if resurrect || !pd.state.CompareAndSwap(int32(StateNew), int32(StateReturning)) {
					p.logger.Debug("ignoring release of value that is not in use",
						zap.Stringer("state", pd.State()))
					return
				}
				adopted = true
				pd.owner = weak.Make(p.home)
			}
		}
	}
	if !adopted {
		p.decrementInUse()
	}

	if resurrect {
		p.diag.incr(&p.diag.resurrected)
	}

	if p.closed.Load() {
		p.destroy(v)
		return
	}

	if !p.reserve(p.maximumSize.Load()) {
		p.diag.incr(&p.diag.overflow)
		p.destroy(v)
		return
	}

	if !p.resetOne(v) {
		p.idleCount.Add(-1)
		p.diag.incr(&p.diag.resetFailed)
		p.destroy(v)
		return
	}

	if resurrect || adopted {
		p.track(v)
	}
	p.markIdle(v)

	if !p.enqueue(v) {
		p.idleCount.Add(-1)
		p.diag.incr(&p.diag.overflow)
		p.destroy(v)
		return
	}
	p.diag.incr(&p.diag.returned)

	// Close may have drained the reserve between the check above and the enqueue.
	if p.closed.Load() {
		p.Clear()
	}
}

// reserve claims an idle slot if fewer than limit are claimed.
func (p *Pool[T]) reserve(limit int64) bool {
	for {
		n := p.idleCount.Load()
		if n >= limit {
			return false
		}
		if p.idleCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// enqueue publishes a value into a slot already claimed with reserve.
func (p *Pool[T]) enqueue(v T) bool {
	e := entry[T]{value: v}
	if p.stampIdle {
		e.since = p.now().UnixNano()
	}
	return p.enqueueEntry(e)
}

func (p *Pool[T]) enqueueEntry(e entry[T]) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := 0; i < enqueueSpins; i++ {
		if p.idle.Enqueue(e) {
			return true
		}
		runtime.Gosched()
	}
	return false
}

func (p *Pool[T]) dequeue() (entry[T], bool) {
	p.mu.RLock()
	e, ok := p.idle.Dequeue()
	p.mu.RUnlock()
	if ok {
		p.idleCount.Add(-1)
	}
	return e, ok
}

// decrementInUse never drops below zero. Values that do not embed Pooled carry
// no state, so a foreign one Put here is counted as if the pool had handed it
// out and InUse undercounts until the real ones come back.
func (p *Pool[T]) decrementInUse() {
	for {
		n := p.inUse.Load()
		if n <= 0 || p.inUse.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// create builds a new idle-state value through the factory.
func (p *Pool[T]) create() (T, error) {
	v, err := p.factory()
	if err != nil {
		var zero T
		return zero, poolerrors.Wrap(err, poolerrors.ErrorTypeFactory, "factory failed").
			WithDetail("pool", p.name)
	}
	if p.tracksState {
		if pd := pooledOf(v); pd != nil {
			pd.owner = weak.Make(p.home)
			pd.state.Store(int32(StateIdle))
		}
	}
	p.track(v)
	p.diag.incr(&p.diag.created)
	return v, nil
}

func (p *Pool[T]) markInUse(v T) {
	if !p.tracksState {
		return
	}
	if pd := pooledOf(v); pd != nil {
		pd.state.Store(int32(StateInUse))
	}
}

func (p *Pool[T]) markIdle(v T) {
	if !p.tracksState {
		return
	}
	if pd := pooledOf(v); pd != nil {
		pd.state.Store(int32(StateIdle))
	}
}

func (p *Pool[T]) resetOne(v T) bool {
	var fn func() bool
	if p.resetFn != nil {
		fn = func() bool { return p.resetFn(v) }
	}
	return resetValue(v, fn)
}

// destroy releases v permanently. For Pooled values the release hook runs at
// most once no matter how many paths race to destroy it.
func (p *Pool[T]) destroy(v T) {
	if p.tracksState {
		if pd := pooledOf(v); pd != nil {
			if State(pd.state.Swap(int32(StateDestroyed))) == StateDestroyed {
				return
			}
			untrack(v, pd)
		}
	}
	p.diag.incr(&p.diag.destroyed)

	var fn func()
	if p.releaseFn != nil {
		fn = func() { p.releaseFn(v) }
	}
	if err := releaseValue(v, fn); err != nil {
		p.diag.incr(&p.diag.releaseFailed)
		p.logger.Warn("failed to release pooled value", zap.Error(err))
	}
}

// scheduleAdjust starts a background adjust pass unless one is running.
func (p *Pool[T]) scheduleAdjust() {
	if !p.adjusting.CompareAndSwap(false, true) {
		return
	}

	p.lifecycle.Lock()
	if p.closed.Load() {
		p.lifecycle.Unlock()
		p.adjusting.Store(false)
		return
	}
	p.wg.Add(1)
	p.lifecycle.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.adjusting.Store(false)
		p.runAdjust()
	}()
}

// adjust runs one fill-and-trim pass unless another pass is already running,
// in which case it returns false immediately.
func (p *Pool[T]) adjust() bool {
	if !p.adjusting.CompareAndSwap(false, true) {
		return false
	}
	defer p.adjusting.Store(false)
	p.runAdjust()
	return true
}

// adjustNow waits for its turn and runs a full pass.
func (p *Pool[T]) adjustNow() {
	for !p.adjust() {
		runtime.Gosched()
	}
}

func (p *Pool[T]) runAdjust() {
	if err := p.fill(); err != nil {
		p.logger.Warn("failed to refill pool to minimum size", zap.Error(err))
	}
	p.trim()
}

// fill creates values until the reserve holds the minimum size.
func (p *Pool[T]) fill() error {
	for !p.closed.Load() {
		if !p.reserve(p.minimumSize.Load()) {
			return nil
		}
		v, err := p.create()
		if err != nil {
			p.idleCount.Add(-1)
			return err
		}
		if !p.enqueue(v) {
			p.idleCount.Add(-1)
			p.destroy(v)
			return nil
		}
	}
	return nil
}

// trim destroys idle values above the maximum size.
func (p *Pool[T]) trim() {
	for p.idleCount.Load() > p.maximumSize.Load() {
		e, ok := p.dequeue()
		if !ok {
			return
		}
		p.diag.incr(&p.diag.overflow)
		p.destroy(e.value)
	}
}

// grow replaces the idle queue with one of at least capacity slots.
func (p *Pool[T]) grow(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if capacity <= p.idle.Cap() {
		return
	}
	q := lockfree.NewMPMCQueue[entry[T]](capacity)
	for {
		e, ok := p.idle.Dequeue()
		if !ok {
			break
		}
		q.Enqueue(e)
	}
	p.idle = q
}

// SetMinimumSize changes the minimum and refills the reserve.
func (p *Pool[T]) SetMinimumSize(v int) error {
	p.boundsMu.Lock()
	maximum := int(p.maximumSize.Load())
	p.boundsMu.Unlock()
	return p.SetBounds(v, maximum)
}

// SetMaximumSize changes the maximum and trims the reserve.
func (p *Pool[T]) SetMaximumSize(v int) error {
	p.boundsMu.Lock()
	minimum := int(p.minimumSize.Load())
	p.boundsMu.Unlock()
	return p.SetBounds(minimum, v)
}

// SetBounds validates and applies both bounds, then runs an adjust pass. On
// error the previous bounds stay in place.
func (p *Pool[T]) SetBounds(minimum, maximum int) error {
	if err := ValidateBounds(minimum, maximum); err != nil {
		return err
	}

	p.boundsMu.Lock()
	p.grow(maximum)
	p.minimumSize.Store(int64(minimum))
	p.maximumSize.Store(int64(maximum))
	p.boundsMu.Unlock()

	p.logger.Debug("pool bounds changed",
		zap.Int("minimum_size", minimum),
		zap.Int("maximum_size", maximum))

	if !p.closed.Load() {
		p.adjustNow()
	}
	return nil
}

// Bounds returns the current minimum and maximum size.
func (p *Pool[T]) Bounds() (minimum, maximum int) {
	p.boundsMu.Lock()
	defer p.boundsMu.Unlock()
	return int(p.minimumSize.Load()), int(p.maximumSize.Load())
}

// Clear destroys every idle value. Values in use are untouched.
func (p *Pool[T]) Clear() {
	for {
		e, ok := p.dequeue()
		if !ok {
			return
		}
		p.destroy(e.value)
	}
}

// Close destroys the idle reserve and waits for background work. Later calls
// to Get, and a second Close, return ErrPoolClosed. Values still in use are
// destroyed when they are put back.
func (p *Pool[T]) Close() error {
	p.lifecycle.Lock()
	if p.closed.Load() {
		p.lifecycle.Unlock()
		return poolerrors.ErrPoolClosed
	}
	p.closed.Store(true)
	p.lifecycle.Unlock()

	p.wg.Wait()
	for !p.adjusting.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	p.Clear()
	p.adjusting.Store(false)

	p.logger.Debug("pool closed", zap.Int64("in_use", p.inUse.Load()))
	return nil
}

// Len returns the number of idle values.
func (p *Pool[T]) Len() int {
	n := p.idleCount.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// InUse returns the approximate number of values handed out and not returned.
// It is exact for Pooled values; Put of a foreign non-Pooled value lowers it.
func (p *Pool[T]) InUse() int64 {
	return p.inUse.Load()
}

// SetDiagnostics turns the counters on or off.
func (p *Pool[T]) SetDiagnostics(enabled bool) {
	p.diag.setEnabled(enabled)
}

// Diagnostics reports whether the counters are on.
func (p *Pool[T]) Diagnostics() bool {
	return p.diag.Enabled()
}

// Stats returns a snapshot of sizes and counters.
func (p *Pool[T]) Stats() Stats {
	minimum, maximum := p.Bounds()
	s := Stats{
		Name:        p.name,
		Idle:        p.Len(),
		InUse:       p.InUse(),
		MinimumSize: minimum,
		MaximumSize: maximum,
	}
	p.diag.fill(&s)
	return s
}
