// Package compression provides pooled compression codecs for reservoir
// workloads. Every algorithm keeps its encoders and decoders in reservoir
// pools, so expensive codec state (zstd tables, gzip windows) is built once
// and reused across calls.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (Gzip, Snappy, LZ4, Zstd, S2, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Pooled writers and readers built on pool.Pool
//   - Pooled output buffers from memstream
//   - Both in-memory and streaming operations
//
// # Algorithm Selection
//
// Choose algorithms based on your requirements:
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip/Deflate: Wide compatibility, good compression
//
// # Basic Usage
//
//	cp, err := compression.NewCompressorPool(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//	if err != nil {
//	    return err
//	}
//	defer cp.Close()
//
//	compressed, err := cp.Compress(data)
//	original, err := cp.Decompress(compressed)
//
// In-memory and streaming operations produce the same framed format, so data
// written with CompressStream can be read with Decompress and vice versa.
package compression

import (
	"bytes"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/memstream"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// Algorithm represents a compression algorithm.
// Each algorithm has different trade-offs between speed and compression ratio.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	// The input data is not modified.
	Decompress(data []byte) ([]byte, error)

	// CompressStream compresses from reader to writer.
	CompressStream(dst io.Writer, src io.Reader) error

	// DecompressStream decompresses from reader to writer.
	DecompressStream(dst io.Writer, src io.Reader) error

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents compressor configuration.
//
// Example:
//
//	config := &compression.Config{
//	    Algorithm:   compression.Zstd,   // High compression
//	    Level:       compression.Better, // Favor compression ratio
//	    MaximumIdle: 32,                 // Idle codecs kept per direction
//	}
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
	// MaximumIdle caps idle writers and idle readers kept by the pool
	MaximumIdle int
	// MaxDecompressedSize rejects payloads that inflate beyond this many bytes
	MaxDecompressedSize int64
	Diagnostics         bool
	Logger              *zap.Logger
}

// DefaultConfig returns default compression configuration optimized for
// balance between speed and compression ratio.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:           Snappy,
		Level:               Default,
		MaximumIdle:         16,
		MaxDecompressedSize: 256 << 20,
	}
}

// ErrDecompressedTooLarge is returned when a payload inflates past
// Config.MaxDecompressedSize.
var ErrDecompressedTooLarge = &poolerrors.Error{Type: poolerrors.ErrorTypeCodec, Message: "decompressed data exceeds size limit"}

// codec is the per-algorithm engine behind a CompressorPool.
type codec interface {
	compress(dst *bytes.Buffer, data []byte) error
	decompress(dst *bytes.Buffer, data []byte, limit int64) error
	compressStream(dst io.Writer, src io.Reader) error
	decompressStream(dst io.Writer, src io.Reader, limit int64) error
	stats() []pool.Stats
	close()
}

// CompressorPool implements Compressor on top of pooled codecs and pooled
// output buffers. It is safe for concurrent use.
type CompressorPool struct {
	config  Config
	codec   codec
	buffers *memstream.Pool
	logger  *zap.Logger
}

var _ Compressor = (*CompressorPool)(nil)

// NewCompressorPool creates a pool for one algorithm and level. A nil config
// uses DefaultConfig.
//
// Example:
//
//	cp, err := compression.NewCompressorPool(&compression.Config{
//	    Algorithm: compression.LZ4,
//	    Level:     compression.Fastest,
//	})
func NewCompressorPool(config *Config) (*CompressorPool, error) {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaximumIdle == 0 {
		cfg.MaximumIdle = DefaultConfig().MaximumIdle
	}
	if cfg.MaxDecompressedSize <= 0 {
		cfg.MaxDecompressedSize = DefaultConfig().MaxDecompressedSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get().Named("compression")
	}

	buffers, err := memstream.New(memstream.Config{
		MaximumIdle: cfg.MaximumIdle,
		Diagnostics: cfg.Diagnostics,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	c, err := newCodec(cfg)
	if err != nil {
		_ = buffers.Close()
		return nil, err
	}

	cfg.Logger.Debug("compressor pool created",
		zap.String("algorithm", string(cfg.Algorithm)),
		zap.Int("level", int(cfg.Level)))

	return &CompressorPool{
		config:  cfg,
		codec:   c,
		buffers: buffers,
		logger:  cfg.Logger,
	}, nil
}

// Algorithm returns the compression algorithm
func (cp *CompressorPool) Algorithm() Algorithm { return cp.config.Algorithm }

// Level returns the compression level
func (cp *CompressorPool) Level() Level { return cp.config.Level }

// Compress compresses data using a pooled writer
func (cp *CompressorPool) Compress(data []byte) ([]byte, error) {
	if cp.config.Algorithm == None {
		return data, nil
	}
	buf := cp.buffers.Get(len(data)/2 + 64)
	if err := cp.codec.compress(buf, data); err != nil {
		cp.buffers.Put(buf)
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeCodec, "compress failed").
			WithDetail("algorithm", string(cp.config.Algorithm))
	}
	return cp.buffers.Bytes(buf), nil
}

// Decompress decompresses data using a pooled reader
func (cp *CompressorPool) Decompress(data []byte) ([]byte, error) {
	if cp.config.Algorithm == None {
		return data, nil
	}
	buf := cp.buffers.Get(len(data) * 3)
	if err := cp.codec.decompress(buf, data, cp.config.MaxDecompressedSize); err != nil {
		cp.buffers.Put(buf)
		return nil, cp.wrapDecompress(err)
	}
	return cp.buffers.Bytes(buf), nil
}

// CompressStream compresses from reader to writer
func (cp *CompressorPool) CompressStream(dst io.Writer, src io.Reader) error {
	if cp.config.Algorithm == None {
		_, err := io.Copy(dst, src)
		return err
	}
	if err := cp.codec.compressStream(dst, src); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeCodec, "compress stream failed").
			WithDetail("algorithm", string(cp.config.Algorithm))
	}
	return nil
}

// DecompressStream decompresses from reader to writer
func (cp *CompressorPool) DecompressStream(dst io.Writer, src io.Reader) error {
	if cp.config.Algorithm == None {
		_, err := io.Copy(dst, src)
		return err
	}
	if err := cp.codec.decompressStream(dst, src, cp.config.MaxDecompressedSize); err != nil {
		return cp.wrapDecompress(err)
	}
	return nil
}

func (cp *CompressorPool) wrapDecompress(err error) error {
	if errors.Is(err, ErrDecompressedTooLarge) {
		return ErrDecompressedTooLarge
	}
	return poolerrors.Wrap(err, poolerrors.ErrorTypeCodec, "decompress failed").
		WithDetail("algorithm", string(cp.config.Algorithm))
}

// Stats returns snapshots of the writer and reader pools.
func (cp *CompressorPool) Stats() []pool.Stats {
	if cp.codec == nil {
		return nil
	}
	return cp.codec.stats()
}

// Close releases every idle codec. zstd encoders and decoders are closed.
func (cp *CompressorPool) Close() error {
	if cp.codec != nil {
		cp.codec.close()
	}
	return cp.buffers.Close()
}

// limitedCopy copies at most limit bytes and fails if src has more.
func limitedCopy(dst io.Writer, src io.Reader, limit int64) error {
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return ErrDecompressedTooLarge
	}
	return nil
}
