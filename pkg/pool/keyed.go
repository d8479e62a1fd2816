package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// KeyedPool holds one Pool per key, created on first use. Lookups read an
// immutable map snapshot without locking; inserting a new key copies the map
// under a mutex, so concurrent first use of a key creates exactly one sub-pool.
type KeyedPool[K comparable, T any] struct {
	name    string
	factory func(K) (T, error)
	opts    []Option[T]
	release func(T)
	logger  *zap.Logger

	pools       atomic.Pointer[map[K]*Pool[T]]
	mu          sync.Mutex
	diagnostics bool // guarded by mu
	closed      atomic.Bool
}

// NewKeyed creates a keyed pool. Every sub-pool shares opts; factory receives
// the key the value is built for. A nil factory uses default construction.
func NewKeyed[K comparable, T any](factory func(K) (T, error), opts ...Option[T]) (*KeyedPool[K, T], error) {
	o := resolveOptions(opts)
	if err := ValidateBounds(o.minimumSize, o.maximumSize); err != nil {
		return nil, err
	}

	k := &KeyedPool[K, T]{
		name:        o.name,
		factory:     factory,
		opts:        opts,
		release:     o.release,
		diagnostics: o.diagnostics,
	}
	if k.name == "" {
		k.name = "keyed"
	}
	base := o.logger
	if base == nil {
		base = logger.Get().Named("pool")
	}
	k.logger = base.With(zap.String("pool", k.name))

	empty := make(map[K]*Pool[T])
	k.pools.Store(&empty)
	return k, nil
}

// Pool returns the sub-pool for key if it exists.
func (k *KeyedPool[K, T]) Pool(key K) (*Pool[T], bool) {
	p, ok := (*k.pools.Load())[key]
	return p, ok
}

func (k *KeyedPool[K, T]) poolFor(key K) (*Pool[T], error) {
	if p, ok := (*k.pools.Load())[key]; ok {
		return p, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed.Load() {
		return nil, poolerrors.ErrPoolClosed
	}

	current := *k.pools.Load()
	if p, ok := current[key]; ok {
		return p, nil
	}

	opts := make([]Option[T], 0, len(k.opts)+3)
	opts = append(opts, k.opts...)
	opts = append(opts, WithName[T](fmt.Sprintf("%s[%v]", k.name, key)))
	if k.factory != nil {
		factory := k.factory
		opts = append(opts, WithFactory(func() (T, error) { return factory(key) }))
	}
	if k.diagnostics {
		opts = append(opts, WithDiagnostics[T]())
	}

	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	// Diagnostics may have been switched off since construction.
	p.SetDiagnostics(k.diagnostics)

	next := make(map[K]*Pool[T], len(current)+1)
	for existing, sub := range current {
		next[existing] = sub
	}
	next[key] = p
	k.pools.Store(&next)

	k.logger.Debug("created sub-pool", zap.String("sub_pool", p.Name()), zap.Int("pools", len(next)))
	return p, nil
}

// Get acquires a value from the sub-pool for key, creating it if needed.
func (k *KeyedPool[K, T]) Get(key K) (T, error) {
	var zero T
	if k.closed.Load() {
		return zero, poolerrors.ErrPoolClosed
	}
	p, err := k.poolFor(key)
	if err != nil {
		return zero, err
	}
	return p.Get()
}

// Put returns v to the sub-pool for key. If the keyed pool is closed, v is
// destroyed.
func (k *KeyedPool[K, T]) Put(key K, v T) {
	p, err := k.poolFor(key)
	if err != nil {
		k.discard(v)
		return
	}
	p.Put(v)
}

func (k *KeyedPool[K, T]) discard(v T) {
	var fn func()
	if k.release != nil {
		fn = func() { k.release(v) }
	}
	if pd := pooledOf(v); pd != nil {
		if State(pd.state.Swap(int32(StateDestroyed))) == StateDestroyed {
			return
		}
		untrack(v, pd)
	}
	if err := releaseValue(v, fn); err != nil {
		k.logger.Warn("failed to release pooled value", zap.Error(err))
	}
}

// Clear empties every sub-pool's reserve. Sub-pools stay registered.
func (k *KeyedPool[K, T]) Clear() {
	for _, p := range *k.pools.Load() {
		p.Clear()
	}
}

// SetDiagnostics switches counters on every sub-pool, including ones created later.
func (k *KeyedPool[K, T]) SetDiagnostics(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.diagnostics = enabled
	for _, p := range *k.pools.Load() {
		p.SetDiagnostics(enabled)
	}
}

// Diagnostics reports whether counters are on.
func (k *KeyedPool[K, T]) Diagnostics() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.diagnostics
}

// Keys returns the keys that have a sub-pool, in no particular order.
func (k *KeyedPool[K, T]) Keys() []K {
	pools := *k.pools.Load()
	keys := make([]K, 0, len(pools))
	for key := range pools {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of sub-pools.
func (k *KeyedPool[K, T]) Len() int {
	return len(*k.pools.Load())
}

// Stats returns a snapshot per key.
func (k *KeyedPool[K, T]) Stats() map[K]Stats {
	pools := *k.pools.Load()
	out := make(map[K]Stats, len(pools))
	for key, p := range pools {
		out[key] = p.Stats()
	}
	return out
}

// Name returns the keyed pool's label.
func (k *KeyedPool[K, T]) Name() string { return k.name }

// Close closes every sub-pool. A second call returns ErrPoolClosed.
func (k *KeyedPool[K, T]) Close() error {
	k.mu.Lock()
	if k.closed.Load() {
		k.mu.Unlock()
		return poolerrors.ErrPoolClosed
	}
	k.closed.Store(true)
	pools := *k.pools.Load()
	k.mu.Unlock()

	for _, p := range pools {
		_ = p.Close()
	}
	return nil
}
