package pool

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
)

// track registers the leak finalizer on v. The finalizer cannot fire while v
// sits in the idle reserve because the pool references it; it fires only for a
// value its caller dropped without Put, or for the idle values of a pool that
// was itself dropped.
func (p *Pool[T]) track(v T) {
	if !p.leakRecovery {
		return
	}
	pd := pooledOf(v)
	if pd == nil || pd.tracked.Load() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("cannot register leak finalizer", zap.Any("panic", r))
		}
	}()
	runtime.SetFinalizer(v, finalizeLeaked[T])
	pd.tracked.Store(true)
}

// untrack clears the leak finalizer, if one is registered.
func untrack(v any, pd *Pooled) {
	if !pd.tracked.Swap(false) {
		return
	}
	defer func() {
		_ = recover()
	}()
	runtime.SetFinalizer(v, nil)
}

// finalizeLeaked runs on the finalizer goroutine. The runtime has already
// removed the finalizer, so a value the pool takes back gets a fresh one in
// release. It captures nothing, so it never keeps a pool alive.
func finalizeLeaked[T any](v T) {
	pd := pooledOf(v)
	if pd == nil {
		return
	}
	pd.tracked.Store(false)

	defer func() {
		if r := recover(); r != nil {
			logger.Get().Warn("panic while recovering leaked pooled value", zap.Any("panic", r))
		}
	}()

	if h := pd.owner.Value(); h != nil {
		h.resurrect(v)
		return
	}
	discardOrphan(v, pd)
}
