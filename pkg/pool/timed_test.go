package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTimedWidgetPool(t *testing.T, timeout, interval time.Duration, minimum, maximum int, opts ...Option[*widget]) (*TimedPool[*widget], *atomic.Int64) {
	t.Helper()
	calls := &atomic.Int64{}
	all := []Option[*widget]{
		WithBounds[*widget](minimum, maximum),
		WithFactory(widgetFactory(calls)),
		WithDiagnostics[*widget](),
		WithLogger[*widget](testutil.TestLogger(t)),
	}
	tp, err := NewTimed(timeout, interval, append(all, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Close() })
	return tp, calls
}

func TestTimedPoolExpiresIdleValues(t *testing.T) {
	clock := newFakeClock()
	tp, _ := newTimedWidgetPool(t, time.Minute, time.Hour, 0, 4, withClock[*widget](clock.Now))

	a, err := tp.Get()
	require.NoError(t, err)
	b, err := tp.Get()
	require.NoError(t, err)
	tp.Put(a)
	tp.Put(b)
	require.Equal(t, 2, tp.Len())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 0, tp.Sweep())
	assert.Equal(t, 2, tp.Len())

	clock.Advance(31 * time.Second)
	assert.Equal(t, 2, tp.Sweep())
	assert.Equal(t, 0, tp.Len())
	assert.Equal(t, StateDestroyed, a.State())
	assert.Equal(t, StateDestroyed, b.State())
	assert.Equal(t, uint64(2), tp.Stats().Expired)
}

func TestTimedPoolKeepsFreshValues(t *testing.T) {
	clock := newFakeClock()
	tp, _ := newTimedWidgetPool(t, time.Minute, time.Hour, 0, 4, withClock[*widget](clock.Now))

	old, _ := tp.Get()
	fresh, _ := tp.Get()
	tp.Put(old)
	clock.Advance(50 * time.Second)
	tp.Put(fresh)
	clock.Advance(20 * time.Second)

	assert.Equal(t, 1, tp.Sweep())
	assert.Equal(t, 1, tp.Len())
	assert.Equal(t, StateDestroyed, old.State())
	assert.Equal(t, StateIdle, fresh.State())

	got, err := tp.Get()
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestTimedPoolRefillsMinimumAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	tp, calls := newTimedWidgetPool(t, time.Minute, time.Hour, 2, 4, withClock[*widget](clock.Now))
	require.Equal(t, 2, tp.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, tp.Sweep())

	assert.Equal(t, 2, tp.Len())
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, uint64(4), tp.Stats().Created)
}

func TestTimedPoolNeverExpiresValuesInUse(t *testing.T) {
	clock := newFakeClock()
	tp, _ := newTimedWidgetPool(t, time.Minute, time.Hour, 0, 4, withClock[*widget](clock.Now))

	held, _ := tp.Get()
	idle, _ := tp.Get()
	tp.Put(idle)

	clock.Advance(time.Hour)
	assert.Equal(t, 1, tp.Sweep())
	assert.Equal(t, StateInUse, held.State())
	assert.Equal(t, int32(0), held.releases.Load())
}

func TestTimedPoolBackgroundSweep(t *testing.T) {
	tp, _ := newTimedWidgetPool(t, 20*time.Millisecond, 5*time.Millisecond, 0, 4)

	w, err := tp.Get()
	require.NoError(t, err)
	tp.Put(w)

	testutil.AssertEventually(t, func() bool {
		return tp.Len() == 0 && tp.Stats().Expired == 1
	}, testWait, "sweeper should expire the idle value")
	assert.Equal(t, int32(1), w.releases.Load())
}

func TestTimedPoolSweepRacesAcquire(t *testing.T) {
	tp, _ := newTimedWidgetPool(t, time.Nanosecond, time.Millisecond, 1, 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 300; j++ {
				w, err := tp.Get()
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, StateInUse, w.State())
				assert.Equal(t, int32(0), w.releases.Load())
				tp.Put(w)
			}
		}()
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				tp.Sweep()
			}
		}
	}()

	wg.Wait()
	close(stop)
}

func TestTimedPoolClose(t *testing.T) {
	tp, _ := newTimedWidgetPool(t, time.Minute, time.Millisecond, 2, 4)

	require.NoError(t, tp.Close())
	assert.ErrorIs(t, tp.Close(), poolerrors.ErrPoolClosed)
	assert.Equal(t, 0, tp.Len())
	assert.Equal(t, 0, tp.Sweep())
	assert.Equal(t, time.Minute, tp.Timeout())
	assert.Equal(t, time.Millisecond, tp.Interval())
}

func TestNewTimedRejectsInvalidTimeout(t *testing.T) {
	_, err := NewTimed[*widget](0, time.Second)
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))

	tp, err := NewTimed[*widget](time.Second, 0, WithLogger[*widget](testutil.TestLogger(t)))
	require.NoError(t, err)
	defer tp.Close()
	assert.Equal(t, time.Second, tp.Interval())
}
