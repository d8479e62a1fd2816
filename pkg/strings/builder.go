package strings

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/pool"
)

// Builder is a byte-slice string builder that can live in a pool. The
// embedded pool.Pooled lets pool.Return hand it back without knowing which
// pool it came from.
type Builder struct {
	pool.Pooled
	buf   []byte
	class BuilderSize
}

// NewBuilder creates a new string builder
func NewBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder
func (b *Builder) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer interface
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string using zero-copy conversion. The result is
// only valid until the builder is reset.
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Bytes returns the underlying byte slice
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the length of the built string
func (b *Builder) Len() int {
	return len(b.buf)
}

// Cap returns the capacity of the underlying buffer
func (b *Builder) Cap() int {
	return cap(b.buf)
}

// Reset resets the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// Grow grows the buffer capacity
func (b *Builder) Grow(n int) {
	if cap(b.buf)-len(b.buf) < n {
		newBuf := make([]byte, len(b.buf), len(b.buf)+2*cap(b.buf)+n)
		copy(newBuf, b.buf)
		b.buf = newBuf
	}
}

// BuilderSize represents different builder sizes
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
	Large                     // 16KB+
)

func (s BuilderSize) String() string {
	switch s {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	default:
		return "unknown"
	}
}

// initial capacity per class
var classCapacity = [...]int{
	Small:  1024,
	Medium: 16 * 1024,
	Large:  64 * 1024,
}

// SizeFor picks the class for an expected output length.
func SizeFor(n int) BuilderSize {
	switch {
	case n > 16*1024:
		return Large
	case n > 1024:
		return Medium
	default:
		return Small
	}
}

// PoolsConfig configures a set of builder pools.
type PoolsConfig struct {
	// MaximumIdle caps the idle builders kept per class
	MaximumIdle int
	// RetainFactor rejects builders whose capacity grew beyond
	// RetainFactor times the class capacity
	RetainFactor int
	Diagnostics  bool
	Logger       *zap.Logger
}

// DefaultPoolsConfig returns the settings used by Shared.
func DefaultPoolsConfig() PoolsConfig {
	return PoolsConfig{
		MaximumIdle:  64,
		RetainFactor: 4,
	}
}

// Pools holds one builder pool per size class.
type Pools struct {
	classes [3]*pool.Pool[*Builder]
}

// NewPools creates the small, medium and large builder pools.
func NewPools(cfg PoolsConfig) (*Pools, error) {
	if cfg.RetainFactor < 1 {
		cfg.RetainFactor = 1
	}
	base := cfg.Logger
	if base == nil {
		base = logger.Get().Named("pool")
	}

	ps := &Pools{}
	for _, class := range []BuilderSize{Small, Medium, Large} {
		capacity := classCapacity[class]
		limit := capacity * cfg.RetainFactor

		opts := []pool.Option[*Builder]{
			pool.WithName[*Builder]("builder-" + class.String()),
			pool.WithBounds[*Builder](0, cfg.MaximumIdle),
			pool.WithLogger[*Builder](base),
			pool.WithFactory(func() (*Builder, error) {
				b := NewBuilder(capacity)
				b.class = class
				return b, nil
			}),
			pool.WithReset(func(b *Builder) bool {
				if b.Cap() > limit {
					return false
				}
				b.Reset()
				return true
			}),
		}
		if cfg.Diagnostics {
			opts = append(opts, pool.WithDiagnostics[*Builder]())
		}

		p, err := pool.New(opts...)
		if err != nil {
			ps.Close()
			return nil, err
		}
		ps.classes[class] = p
	}
	return ps, nil
}

// Get retrieves a builder of the given size class.
func (ps *Pools) Get(size BuilderSize) *Builder {
	if size < Small || size > Large {
		size = Small
	}
	b, err := ps.classes[size].Get()
	if err != nil {
		// Closed pools still hand out fresh builders
		b = NewBuilder(classCapacity[size])
		b.class = size
	}
	return b
}

// Put returns a builder to the pool of its class.
func (ps *Pools) Put(b *Builder) {
	if b == nil {
		return
	}
	ps.classes[b.class].Put(b)
}

// Pool exposes the underlying pool of a class, for stats and tuning.
func (ps *Pools) Pool(size BuilderSize) *pool.Pool[*Builder] {
	return ps.classes[size]
}

// Stats returns one snapshot per class.
func (ps *Pools) Stats() []pool.Stats {
	out := make([]pool.Stats, 0, len(ps.classes))
	for _, p := range ps.classes {
		if p != nil {
			out = append(out, p.Stats())
		}
	}
	return out
}

// Close closes every class pool.
func (ps *Pools) Close() {
	for _, p := range ps.classes {
		if p != nil {
			_ = p.Close()
		}
	}
}

// BuildWith runs fn on a pooled builder of the given class and returns an
// owned copy of the result.
func (ps *Pools) BuildWith(size BuilderSize, fn func(*Builder)) string {
	b := ps.Get(size)
	defer ps.Put(b)

	fn(b)
	return Clone(b.String())
}

var (
	sharedOnce  sync.Once
	sharedPools *Pools
)

// Shared returns the process-wide builder pools, creating them with
// DefaultPoolsConfig on first use. The package-level helpers below use it.
func Shared() *Pools {
	sharedOnce.Do(func() {
		ps, err := NewPools(DefaultPoolsConfig())
		if err != nil {
			// default bounds are valid
			panic(err)
		}
		sharedPools = ps
	})
	return sharedPools
}

// GetBuilder retrieves a pooled builder of the specified size
func GetBuilder(size BuilderSize) *Builder {
	return Shared().Get(size)
}

// PutBuilder returns a builder to its pool
func PutBuilder(b *Builder) {
	Shared().Put(b)
}

// BuildString builds a small string with a pooled builder.
func BuildString(fn func(*Builder)) string {
	return Shared().BuildWith(Small, fn)
}

// Concat efficiently concatenates strings using pooled builder
func Concat(parts ...string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	total := 0
	for _, s := range parts {
		total += len(s)
	}

	return Shared().BuildWith(SizeFor(total), func(b *Builder) {
		for _, s := range parts {
			b.WriteString(s)
		}
	})
}

// JoinPooled joins strings with a delimiter using a pooled builder
func JoinPooled(parts []string, delimiter string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}

	total := (len(parts) - 1) * len(delimiter)
	for _, s := range parts {
		total += len(s)
	}

	return Shared().BuildWith(SizeFor(total), func(b *Builder) {
		b.WriteString(parts[0])
		for _, s := range parts[1:] {
			b.WriteString(delimiter)
			b.WriteString(s)
		}
	})
}

// Sprintf provides a pooled alternative to fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return Shared().BuildWith(SizeFor(len(format)+len(args)*16), func(b *Builder) {
		fmt.Fprintf(b, format, args...)
	})
}
