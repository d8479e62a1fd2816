// Package memstream pools bytes.Buffer values by capacity class. Each class
// is a sub-pool of a pool.KeyedPool keyed by the class capacity, so a caller
// asking for 3KB gets a buffer that was 4KB when it was created and never a
// 1MB buffer that happened to be idle.
package memstream

import (
	"bytes"
	"math/bits"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/pool"
)

const (
	// MinClass is the smallest pooled capacity.
	MinClass = 512
	// MaxClass is the largest pooled capacity. Larger requests get an
	// unpooled buffer.
	MaxClass = 1 << 20
)

// Config configures a Pool.
type Config struct {
	// MaximumIdle caps the idle buffers per class (default 32)
	MaximumIdle int
	Diagnostics bool
	Logger      *zap.Logger
}

// Pool hands out size-classed buffers.
type Pool struct {
	buckets *pool.KeyedPool[int, *bytes.Buffer]
}

// New creates a buffer pool.
func New(cfg Config) (*Pool, error) {
	if cfg.MaximumIdle == 0 {
		cfg.MaximumIdle = 32
	}
	opts := []pool.Option[*bytes.Buffer]{
		pool.WithName[*bytes.Buffer]("memstream"),
		pool.WithBounds[*bytes.Buffer](0, cfg.MaximumIdle),
		pool.WithReset(func(b *bytes.Buffer) bool {
			// Direct puts through Keyed can bypass the class check in Put
			if classFor(b.Cap()) == 0 {
				return false
			}
			b.Reset()
			return true
		}),
	}
	if cfg.Logger != nil {
		opts = append(opts, pool.WithLogger[*bytes.Buffer](cfg.Logger))
	}
	if cfg.Diagnostics {
		opts = append(opts, pool.WithDiagnostics[*bytes.Buffer]())
	}

	buckets, err := pool.NewKeyed(func(class int) (*bytes.Buffer, error) {
		return bytes.NewBuffer(make([]byte, 0, class)), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Pool{buckets: buckets}, nil
}

// ClassFor returns the capacity class that serves a request of n bytes, or 0
// when n is above MaxClass.
func ClassFor(n int) int {
	if n > MaxClass {
		return 0
	}
	if n <= MinClass {
		return MinClass
	}
	return 1 << bits.Len(uint(n-1))
}

// classFor returns the class a buffer of capacity c belongs to: the largest
// class not above c. Buffers outside [MinClass, MaxClass] have none.
func classFor(c int) int {
	if c < MinClass || c > MaxClass {
		return 0
	}
	return 1 << (bits.Len(uint(c)) - 1)
}

// Get returns an empty buffer with at least sizeHint bytes of capacity.
func (p *Pool) Get(sizeHint int) *bytes.Buffer {
	class := ClassFor(sizeHint)
	if class == 0 {
		return bytes.NewBuffer(make([]byte, 0, sizeHint))
	}
	b, err := p.buckets.Get(class)
	if err != nil {
		return bytes.NewBuffer(make([]byte, 0, class))
	}
	return b
}

// Put hands b back to the bucket matching its current capacity. Buffers that
// are too small or too large are left to the garbage collector.
func (p *Pool) Put(b *bytes.Buffer) {
	if b == nil {
		return
	}
	class := classFor(b.Cap())
	if class == 0 {
		return
	}
	// Counts a return even when b came from a different bucket; the keyed
	// pool tracks in-use per bucket, which is approximate by contract.
	p.buckets.Put(class, b)
}

// Bytes copies the contents of b into a new slice and returns b to the pool.
func (p *Pool) Bytes(b *bytes.Buffer) []byte {
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	p.Put(b)
	return out
}

// EncodeJSON encodes v with a pooled buffer and returns an owned copy.
func (p *Pool) EncodeJSON(v interface{}, sizeHint int) ([]byte, error) {
	b := p.Get(sizeHint)
	if err := json.NewEncoder(b).Encode(v); err != nil {
		p.Put(b)
		return nil, err
	}
	return p.Bytes(b), nil
}

// Classes returns the classes that currently have a bucket.
func (p *Pool) Classes() []int {
	return p.buckets.Keys()
}

// Stats returns one snapshot per bucket.
func (p *Pool) Stats() map[int]pool.Stats {
	return p.buckets.Stats()
}

// Keyed exposes the underlying keyed pool, for metrics registration.
func (p *Pool) Keyed() *pool.KeyedPool[int, *bytes.Buffer] {
	return p.buckets
}

// Close closes every bucket.
func (p *Pool) Close() error {
	return p.buckets.Close()
}
