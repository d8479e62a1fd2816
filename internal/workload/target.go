package workload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/compression"
	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/memstream"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/strings"
)

// Target is a pool under load. Cycle acquires one value, uses it and gives
// it back, reporting how long the acquire took.
type Target interface {
	Flavor() string
	Cycle(ctx context.Context, worker, iteration int) (time.Duration, error)
	Stats() []pool.Stats
	Close() error
}

// Widget is the value pooled by the widget and keyed flavors.
type Widget struct {
	pool.Pooled
	Key     string
	Payload []byte
}

// Reset zeroes the payload so the next holder starts clean.
func (w *Widget) Reset() bool {
	clear(w.Payload)
	return true
}

// NewTarget builds the target selected by cfg.Workload.Flavor using the pool
// settings in cfg.Pool.
func NewTarget(cfg *config.Config, log *zap.Logger) (Target, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := cfg.Workload
	payload := bytes.Repeat([]byte{'r'}, w.PayloadSize)

	switch w.Flavor {
	case config.FlavorWidget:
		return newWidgetTarget(cfg.Pool, w, log)
	case config.FlavorKeyed:
		return newKeyedTarget(cfg.Pool, w, log)
	case config.FlavorBuffer:
		buffers, err := memstream.New(memstream.Config{
			MaximumIdle: cfg.Pool.MaximumSize,
			Diagnostics: cfg.Pool.Diagnostics,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return &bufferTarget{buffers: buffers, payload: payload, hold: w.Hold}, nil
	case config.FlavorBuilder:
		builders, err := strings.NewPools(strings.PoolsConfig{
			MaximumIdle:  cfg.Pool.MaximumSize,
			RetainFactor: 4,
			Diagnostics:  cfg.Pool.Diagnostics,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
		return &builderTarget{builders: builders, payload: string(payload), hold: w.Hold}, nil
	case config.FlavorCompressor:
		cp, err := compression.NewCompressorPool(&compression.Config{
			Algorithm:   compression.Algorithm(w.Algorithm),
			Level:       compression.Default,
			MaximumIdle: cfg.Pool.MaximumSize,
			Diagnostics: cfg.Pool.Diagnostics,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return &compressorTarget{pool: cp, payload: payload, hold: w.Hold}, nil
	default:
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "unknown workload flavor").
			WithDetail("flavor", w.Flavor)
	}
}

// hold keeps a value checked out for d or until ctx is done.
func hold(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func widgetOptions(pc config.PoolConfig, payloadSize int, log *zap.Logger) []pool.Option[*Widget] {
	opts := config.PoolOptions[*Widget](pc)
	return append(opts,
		pool.WithLogger[*Widget](log),
		pool.WithFactory(func() (*Widget, error) {
			return &Widget{Payload: make([]byte, payloadSize)}, nil
		}),
	)
}

type widgetTarget struct {
	pool    *pool.Pool[*Widget]
	close   func() error
	payload int
	hold    time.Duration
}

func newWidgetTarget(pc config.PoolConfig, w config.WorkloadConfig, log *zap.Logger) (*widgetTarget, error) {
	opts := widgetOptions(pc, w.PayloadSize, log)
	if pc.Timed() {
		tp, err := pool.NewTimed(pc.IdleTimeout, pc.SweepInterval, opts...)
		if err != nil {
			return nil, err
		}
		return &widgetTarget{pool: tp.Pool, close: tp.Close, payload: w.PayloadSize, hold: w.Hold}, nil
	}
	p, err := pool.New(opts...)
	if err != nil {
		return nil, err
	}
	return &widgetTarget{pool: p, close: p.Close, payload: w.PayloadSize, hold: w.Hold}, nil
}

func (t *widgetTarget) Flavor() string { return config.FlavorWidget }

func (t *widgetTarget) Cycle(ctx context.Context, worker, iteration int) (time.Duration, error) {
	start := time.Now()
	v, err := t.pool.Get()
	acquire := time.Since(start)
	if err != nil {
		return acquire, err
	}
	if len(v.Payload) > 0 {
		v.Payload[iteration%len(v.Payload)] = byte(worker)
	}
	hold(ctx, t.hold)
	t.pool.Put(v)
	return acquire, nil
}

func (t *widgetTarget) Stats() []pool.Stats { return []pool.Stats{t.pool.Stats()} }

func (t *widgetTarget) Close() error { return t.close() }

type keyedTarget struct {
	pool *pool.KeyedPool[string, *Widget]
	keys []string
	hold time.Duration
}

func newKeyedTarget(pc config.PoolConfig, w config.WorkloadConfig, log *zap.Logger) (*keyedTarget, error) {
	if pc.Name == "" {
		pc.Name = "workload"
	}
	opts := config.PoolOptions[*Widget](pc)
	opts = append(opts, pool.WithLogger[*Widget](log))

	size := w.PayloadSize
	kp, err := pool.NewKeyed(func(key string) (*Widget, error) {
		return &Widget{Key: key, Payload: make([]byte, size)}, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	keys := make([]string, w.Keys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	return &keyedTarget{pool: kp, keys: keys, hold: w.Hold}, nil
}

func (t *keyedTarget) Flavor() string { return config.FlavorKeyed }

func (t *keyedTarget) Cycle(ctx context.Context, worker, iteration int) (time.Duration, error) {
	key := t.keys[(worker+iteration)%len(t.keys)]

	start := time.Now()
	v, err := t.pool.Get(key)
	acquire := time.Since(start)
	if err != nil {
		return acquire, err
	}
	if v.Key != key {
		t.pool.Put(key, v)
		return acquire, poolerrors.New(poolerrors.ErrorTypeInternal, "keyed pool returned a value for another key").
			WithDetail("want", key).
			WithDetail("got", v.Key)
	}
	hold(ctx, t.hold)
	t.pool.Put(key, v)
	return acquire, nil
}

func (t *keyedTarget) Stats() []pool.Stats {
	stats := t.pool.Stats()
	out := make([]pool.Stats, 0, len(stats))
	for _, key := range t.keys {
		if s, ok := stats[key]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *keyedTarget) Close() error { return t.pool.Close() }

type bufferTarget struct {
	buffers *memstream.Pool
	payload []byte
	hold    time.Duration
}

func (t *bufferTarget) Flavor() string { return config.FlavorBuffer }

func (t *bufferTarget) Cycle(ctx context.Context, _, _ int) (time.Duration, error) {
	start := time.Now()
	b := t.buffers.Get(len(t.payload))
	acquire := time.Since(start)

	b.Write(t.payload)
	hold(ctx, t.hold)
	t.buffers.Put(b)
	return acquire, nil
}

func (t *bufferTarget) Stats() []pool.Stats {
	stats := t.buffers.Stats()
	out := make([]pool.Stats, 0, len(stats))
	for _, class := range t.buffers.Classes() {
		out = append(out, stats[class])
	}
	return out
}

func (t *bufferTarget) Close() error { return t.buffers.Close() }

type builderTarget struct {
	builders *strings.Pools
	payload  string
	hold     time.Duration
}

func (t *builderTarget) Flavor() string { return config.FlavorBuilder }

func (t *builderTarget) Cycle(ctx context.Context, _, _ int) (time.Duration, error) {
	start := time.Now()
	b := t.builders.Get(strings.SizeFor(len(t.payload)))
	acquire := time.Since(start)

	_, _ = b.WriteString(t.payload)
	_ = b.String()
	hold(ctx, t.hold)
	t.builders.Put(b)
	return acquire, nil
}

func (t *builderTarget) Stats() []pool.Stats { return t.builders.Stats() }

func (t *builderTarget) Close() error {
	t.builders.Close()
	return nil
}

// compressorTarget reports the whole compress call as the acquire time since
// codec checkout happens inside it.
type compressorTarget struct {
	pool    *compression.CompressorPool
	payload []byte
	hold    time.Duration
}

func (t *compressorTarget) Flavor() string { return config.FlavorCompressor }

func (t *compressorTarget) Cycle(ctx context.Context, _, _ int) (time.Duration, error) {
	start := time.Now()
	compressed, err := t.pool.Compress(t.payload)
	acquire := time.Since(start)
	if err != nil {
		return acquire, err
	}
	hold(ctx, t.hold)

	restored, err := t.pool.Decompress(compressed)
	if err != nil {
		return acquire, err
	}
	if len(restored) != len(t.payload) {
		return acquire, poolerrors.New(poolerrors.ErrorTypeCodec, "round trip changed payload size").
			WithDetail("want", len(t.payload)).
			WithDetail("got", len(restored))
	}
	return acquire, nil
}

func (t *compressorTarget) Stats() []pool.Stats { return t.pool.Stats() }

func (t *compressorTarget) Close() error { return t.pool.Close() }
