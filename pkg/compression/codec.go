package compression

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// streamWriter is what every pooled encoder looks like.
type streamWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

// streamCodec keeps writers and readers of one algorithm in two pools.
type streamCodec[W streamWriter, R io.Reader] struct {
	writers     *pool.Pool[W]
	readers     *pool.Pool[R]
	resetReader func(R, io.Reader) error

	// optional whole-buffer fast paths
	encodeAll func(W, []byte, []byte) []byte
	decodeAll func(R, []byte, []byte) ([]byte, error)
}

type codecSpec[W streamWriter, R io.Reader] struct {
	newWriter     func() (W, error)
	newReader     func() (R, error)
	resetReader   func(R, io.Reader) error
	releaseWriter func(W)
	releaseReader func(R)
	encodeAll     func(W, []byte, []byte) []byte
	decodeAll     func(R, []byte, []byte) ([]byte, error)
}

func newStreamCodec[W streamWriter, R io.Reader](cfg Config, spec codecSpec[W, R]) (*streamCodec[W, R], error) {
	name := "compression-" + string(cfg.Algorithm)

	// Most codecs implement io.Closer with stream semantics; closing an idle
	// one would write trailers or touch a nil decompressor. Drop them instead.
	if spec.releaseWriter == nil {
		spec.releaseWriter = func(W) {}
	}
	if spec.releaseReader == nil {
		spec.releaseReader = func(R) {}
	}

	wopts := []pool.Option[W]{
		pool.WithName[W](name + "-writer"),
		pool.WithBounds[W](0, cfg.MaximumIdle),
		pool.WithFactory(spec.newWriter),
		pool.WithLogger[W](cfg.Logger),
		pool.WithRelease(spec.releaseWriter),
	}
	ropts := []pool.Option[R]{
		pool.WithName[R](name + "-reader"),
		pool.WithBounds[R](0, cfg.MaximumIdle),
		pool.WithFactory(spec.newReader),
		pool.WithLogger[R](cfg.Logger),
		pool.WithRelease(spec.releaseReader),
	}
	if cfg.Diagnostics {
		wopts = append(wopts, pool.WithDiagnostics[W]())
		ropts = append(ropts, pool.WithDiagnostics[R]())
	}

	writers, err := pool.New(wopts...)
	if err != nil {
		return nil, err
	}
	readers, err := pool.New(ropts...)
	if err != nil {
		_ = writers.Close()
		return nil, err
	}

	return &streamCodec[W, R]{
		writers:     writers,
		readers:     readers,
		resetReader: spec.resetReader,
		encodeAll:   spec.encodeAll,
		decodeAll:   spec.decodeAll,
	}, nil
}

func (c *streamCodec[W, R]) compress(dst *bytes.Buffer, data []byte) error {
	w, err := c.writers.Get()
	if err != nil {
		return err
	}
	if c.encodeAll != nil {
		defer c.writers.Put(w)
		dst.Write(c.encodeAll(w, data, dst.AvailableBuffer()))
		return nil
	}
	defer c.putWriter(w)

	w.Reset(dst)
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

// putWriter points w away from the caller's destination before it goes idle.
func (c *streamCodec[W, R]) putWriter(w W) {
	w.Reset(io.Discard)
	c.writers.Put(w)
}

func (c *streamCodec[W, R]) decompress(dst *bytes.Buffer, data []byte, limit int64) error {
	r, err := c.readers.Get()
	if err != nil {
		return err
	}
	defer c.readers.Put(r)

	if c.decodeAll != nil {
		out, err := c.decodeAll(r, data, dst.AvailableBuffer())
		if err != nil {
			return err
		}
		if int64(len(out)) > limit {
			return ErrDecompressedTooLarge
		}
		dst.Write(out)
		return nil
	}

	if err := c.resetReader(r, bytes.NewReader(data)); err != nil {
		return err
	}
	return limitedCopy(dst, r, limit)
}

func (c *streamCodec[W, R]) compressStream(dst io.Writer, src io.Reader) error {
	w, err := c.writers.Get()
	if err != nil {
		return err
	}
	defer c.putWriter(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (c *streamCodec[W, R]) decompressStream(dst io.Writer, src io.Reader, limit int64) error {
	r, err := c.readers.Get()
	if err != nil {
		return err
	}
	defer c.readers.Put(r)

	if err := c.resetReader(r, src); err != nil {
		return err
	}
	return limitedCopy(dst, r, limit)
}

func (c *streamCodec[W, R]) stats() []pool.Stats {
	return []pool.Stats{c.writers.Stats(), c.readers.Stats()}
}

func (c *streamCodec[W, R]) close() {
	_ = c.writers.Close()
	_ = c.readers.Close()
}

func newCodec(cfg Config) (codec, error) {
	switch cfg.Algorithm {
	case None:
		return nil, nil
	case Gzip:
		level := mapGzipLevel(cfg.Level)
		return newStreamCodec(cfg, codecSpec[*gzip.Writer, *gzip.Reader]{
			newWriter:   func() (*gzip.Writer, error) { return gzip.NewWriterLevel(io.Discard, level) },
			newReader:   func() (*gzip.Reader, error) { return new(gzip.Reader), nil },
			resetReader: func(r *gzip.Reader, src io.Reader) error { return r.Reset(src) },
		})
	case Snappy:
		return newStreamCodec(cfg, codecSpec[*snappy.Writer, *snappy.Reader]{
			newWriter:   func() (*snappy.Writer, error) { return snappy.NewBufferedWriter(io.Discard), nil },
			newReader:   func() (*snappy.Reader, error) { return snappy.NewReader(nil), nil },
			resetReader: func(r *snappy.Reader, src io.Reader) error { r.Reset(src); return nil },
		})
	case LZ4:
		level := mapLZ4Level(cfg.Level)
		return newStreamCodec(cfg, codecSpec[*lz4.Writer, *lz4.Reader]{
			newWriter: func() (*lz4.Writer, error) {
				w := lz4.NewWriter(io.Discard)
				if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
					return nil, err
				}
				return w, nil
			},
			newReader:   func() (*lz4.Reader, error) { return lz4.NewReader(nil), nil },
			resetReader: func(r *lz4.Reader, src io.Reader) error { r.Reset(src); return nil },
		})
	case Zstd:
		level := mapZstdLevel(cfg.Level)
		maxMemory := uint64(cfg.MaxDecompressedSize)
		return newStreamCodec(cfg, codecSpec[*zstd.Encoder, *zstd.Decoder]{
			newWriter: func() (*zstd.Encoder, error) {
				return zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
			},
			newReader: func() (*zstd.Decoder, error) {
				return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxMemory))
			},
			resetReader: func(d *zstd.Decoder, src io.Reader) error { return d.Reset(src) },
			releaseWriter: func(e *zstd.Encoder) {
				e.Reset(io.Discard)
				_ = e.Close()
			},
			releaseReader: func(d *zstd.Decoder) { d.Close() },
			encodeAll: func(e *zstd.Encoder, src, dst []byte) []byte { return e.EncodeAll(src, dst) },
			decodeAll: func(d *zstd.Decoder, src, dst []byte) ([]byte, error) {
				out, err := d.DecodeAll(src, dst)
				if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
					return nil, ErrDecompressedTooLarge
				}
				return out, err
			},
		})
	case S2:
		wopts := mapS2Options(cfg.Level)
		return newStreamCodec(cfg, codecSpec[*s2.Writer, *s2.Reader]{
			newWriter:   func() (*s2.Writer, error) { return s2.NewWriter(io.Discard, wopts...), nil },
			newReader:   func() (*s2.Reader, error) { return s2.NewReader(nil), nil },
			resetReader: func(r *s2.Reader, src io.Reader) error { r.Reset(src); return nil },
		})
	case Deflate:
		level := mapDeflateLevel(cfg.Level)
		return newStreamCodec(cfg, codecSpec[*flate.Writer, io.ReadCloser]{
			newWriter: func() (*flate.Writer, error) { return flate.NewWriter(io.Discard, level) },
			newReader: func() (io.ReadCloser, error) { return flate.NewReader(bytes.NewReader(nil)), nil },
			resetReader: func(r io.ReadCloser, src io.Reader) error {
				return r.(flate.Resetter).Reset(src, nil)
			},
		})
	default:
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(cfg.Algorithm))
	}
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
