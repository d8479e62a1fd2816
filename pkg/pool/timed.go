package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// TimedPool is a Pool whose idle values expire after timeout. A background
// sweeper checks every interval. Close must be called to stop it.
type TimedPool[T any] struct {
	*Pool[T]

	timeout  time.Duration
	interval time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewTimed creates a pool whose idle values are destroyed once they have been
// idle longer than timeout. A non-positive interval defaults to timeout.
func NewTimed[T any](timeout, interval time.Duration, opts ...Option[T]) (*TimedPool[T], error) {
	if timeout <= 0 {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "idle timeout must be positive").
			WithDetail("timeout", timeout.String())
	}
	if interval <= 0 {
		interval = timeout
	}

	all := make([]Option[T], 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, withIdleStamps[T]())

	p, err := New(all...)
	if err != nil {
		return nil, err
	}

	t := &TimedPool[T]{
		Pool:     p,
		timeout:  timeout,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go t.sweepLoop()
	return t, nil
}

// Timeout returns the idle timeout.
func (t *TimedPool[T]) Timeout() time.Duration { return t.timeout }

// Interval returns the sweep interval.
func (t *TimedPool[T]) Interval() time.Duration { return t.interval }

func (t *TimedPool[T]) sweepLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-t.stopCh:
			return
		}
	}
}

// Sweep runs one expiry pass and returns how many values it destroyed. If any
// expired, the reserve is refilled to the minimum with fresh values.
func (t *TimedPool[T]) Sweep() int {
	if t.closed.Load() {
		return 0
	}
	expired := t.expire(t.timeout)
	if expired > 0 {
		t.logger.Debug("expired idle values", zap.Int("expired", expired))
		t.adjustNow()
	}
	return expired
}

// expire inspects only values it has dequeued itself, so a value handed to a
// concurrent Get is never considered.
func (p *Pool[T]) expire(timeout time.Duration) int {
	cutoff := p.now().Add(-timeout).UnixNano()

	n := p.Len()
	keep := make([]entry[T], 0, n)
	expired := 0
	for i := 0; i < n; i++ {
		e, ok := p.dequeue()
		if !ok {
			break
		}
		if e.since <= cutoff {
			expired++
			p.diag.incr(&p.diag.expired)
			p.destroy(e.value)
			continue
		}
		keep = append(keep, e)
	}

	for _, e := range keep {
		if !p.reserve(p.maximumSize.Load()) {
			p.diag.incr(&p.diag.overflow)
			p.destroy(e.value)
			continue
		}
		if !p.enqueueEntry(e) {
			p.idleCount.Add(-1)
			p.diag.incr(&p.diag.overflow)
			p.destroy(e.value)
		}
	}
	return expired
}

// Close stops the sweeper, then closes the pool.
func (t *TimedPool[T]) Close() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	<-t.doneCh
	return t.Pool.Close()
}
