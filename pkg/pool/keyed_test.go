package pool

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

type tagged struct {
	Pooled
	key string
}

func newTaggedPool(t *testing.T, factory func(string) (*tagged, error), opts ...Option[*tagged]) *KeyedPool[string, *tagged] {
	t.Helper()
	all := []Option[*tagged]{
		WithBounds[*tagged](1, 4),
		WithLogger[*tagged](testutil.TestLogger(t)),
	}
	kp, err := NewKeyed(factory, append(all, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kp.Close() })
	return kp
}

func TestKeyedPoolOneSubPoolPerKey(t *testing.T) {
	var constructions atomic.Int64
	kp := newTaggedPool(t, func(key string) (*tagged, error) {
		constructions.Add(1)
		return &tagged{key: key}, nil
	})

	const racers = 32
	start := make(chan struct{})
	var mu sync.Mutex
	seen := map[string]map[*Pool[*tagged]]struct{}{}
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			<-start
			v, err := kp.Get(key)
			if assert.NoError(t, err) {
				assert.Equal(t, key, v.key)
				kp.Put(key, v)
			}
			sub, ok := kp.Pool(key)
			if !assert.True(t, ok) {
				return
			}
			mu.Lock()
			if seen[key] == nil {
				seen[key] = map[*Pool[*tagged]]struct{}{}
			}
			seen[key][sub] = struct{}{}
			mu.Unlock()
		}(key)
	}
	close(start)
	wg.Wait()

	keys := kp.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, 2, kp.Len())
	assert.GreaterOrEqual(t, constructions.Load(), int64(2))
	assert.Len(t, seen["a"], 1)
	assert.Len(t, seen["b"], 1)

	a, ok := kp.Pool("a")
	require.True(t, ok)
	again, ok := kp.Pool("a")
	require.True(t, ok)
	assert.Same(t, a, again)
	assert.Equal(t, "keyed[a]", a.Name())

	_, ok = kp.Pool("c")
	assert.False(t, ok)
}

func TestKeyedPoolFactoryReceivesKey(t *testing.T) {
	kp := newTaggedPool(t, func(key string) (*tagged, error) {
		return &tagged{key: "built-for-" + key}, nil
	}, WithName[*tagged]("conns"))

	v, err := kp.Get("eu-west")
	require.NoError(t, err)
	assert.Equal(t, "built-for-eu-west", v.key)

	sub, ok := kp.Pool("eu-west")
	require.True(t, ok)
	assert.Equal(t, "conns[eu-west]", sub.Name())
}

func TestKeyedPoolFactoryError(t *testing.T) {
	boom := errors.New("unreachable region")
	kp := newTaggedPool(t, func(key string) (*tagged, error) {
		return nil, boom
	})

	_, err := kp.Get("x")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, kp.Len(), "failed sub-pool must not be registered")
}

func TestKeyedPoolClearKeepsEntries(t *testing.T) {
	kp := newTaggedPool(t, nil)

	for _, key := range []string{"a", "b", "c"} {
		v, err := kp.Get(key)
		require.NoError(t, err)
		kp.Put(key, v)
	}
	kp.Clear()

	assert.Equal(t, 3, kp.Len())
	for key, s := range kp.Stats() {
		assert.Equal(t, 0, s.Idle, key)
	}
}

func TestKeyedPoolDiagnosticsFanOut(t *testing.T) {
	kp := newTaggedPool(t, nil)

	_, err := kp.Get("before")
	require.NoError(t, err)
	assert.False(t, kp.Diagnostics())

	kp.SetDiagnostics(true)
	assert.True(t, kp.Diagnostics())

	_, err = kp.Get("after")
	require.NoError(t, err)

	for key, s := range kp.Stats() {
		assert.True(t, s.Diagnostics, key)
	}

	kp.SetDiagnostics(false)
	for key, s := range kp.Stats() {
		assert.False(t, s.Diagnostics, key)
	}
}

func TestKeyedPoolClose(t *testing.T) {
	kp := newTaggedPool(t, nil)

	held, err := kp.Get("a")
	require.NoError(t, err)

	require.NoError(t, kp.Close())
	assert.ErrorIs(t, kp.Close(), poolerrors.ErrPoolClosed)

	_, err = kp.Get("a")
	assert.ErrorIs(t, err, poolerrors.ErrPoolClosed)

	kp.Put("a", held)
	assert.Equal(t, StateDestroyed, held.State())

	orphan := &tagged{}
	orphan.state.Store(int32(StateInUse))
	kp.Put("never-seen", orphan)
	assert.Equal(t, StateDestroyed, orphan.State())
}

func TestNewKeyedRejectsInvalidBounds(t *testing.T) {
	_, err := NewKeyed[string, *tagged](nil, WithBounds[*tagged](2, 1))
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}
