package compression

import (
	"bytes"
	"context"
	"encoding/binary"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reservoir/pkg/lockfree"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// Parallel frame layout:
//   - Magic bytes (4): "PCMP"
//   - Version (1): 0x01
//   - uvarint chunk count, uvarint original size
//   - uvarint compressed length per chunk
//   - chunk payloads in order
var parallelMagic = []byte("PCMP")

const parallelVersion = 0x01

// ParallelConfig configures parallel compression
type ParallelConfig struct {
	NumWorkers int // 0 = auto (NumCPU)
	ChunkSize  int // Size of each chunk in bytes, 0 = 1MB
}

// ParallelCompressor splits large inputs into chunks and compresses them
// concurrently. Every worker borrows codecs from the shared CompressorPool,
// so the pool sees real contention.
type ParallelCompressor struct {
	pool       *CompressorPool
	numWorkers int
	chunkSize  int

	bytesProcessed  lockfree.AtomicCounter
	chunksProcessed lockfree.AtomicCounter
}

// NewParallelCompressor creates a parallel compressor over cp.
func NewParallelCompressor(cp *CompressorPool, config ParallelConfig) *ParallelCompressor {
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024 * 1024
	}
	return &ParallelCompressor{
		pool:       cp,
		numWorkers: config.NumWorkers,
		chunkSize:  config.ChunkSize,
	}
}

// CompressData compresses data in parallel and returns a PCMP frame.
func (pc *ParallelCompressor) CompressData(ctx context.Context, data []byte) ([]byte, error) {
	chunks := pc.splitIntoChunks(data)
	compressed := make([][]byte, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.numWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := pc.pool.Compress(chunk)
			if err != nil {
				return err
			}
			// None returns its input; the frame must not alias data
			if pc.pool.Algorithm() == None {
				out = bytes.Clone(out)
			}
			compressed[i] = out
			pc.bytesProcessed.Add(uint64(len(chunk)))
			pc.chunksProcessed.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	header := pc.createHeader(compressed, len(data))
	size := len(header)
	for _, c := range compressed {
		size += len(c)
	}
	out := make([]byte, 0, size)
	out = append(out, header...)
	for _, c := range compressed {
		out = append(out, c...)
	}
	return out, nil
}

// DecompressData reverses CompressData.
func (pc *ParallelCompressor) DecompressData(ctx context.Context, data []byte) ([]byte, error) {
	lengths, originalSize, offset, err := pc.readHeader(data)
	if err != nil {
		return nil, err
	}
	if int64(originalSize) > pc.pool.config.MaxDecompressedSize {
		return nil, ErrDecompressedTooLarge
	}

	chunks := make([][]byte, len(lengths))
	for i, n := range lengths {
		if n > uint64(len(data)-offset) {
			return nil, corruptFrame("chunk exceeds frame")
		}
		chunks[i] = data[offset : offset+int(n)]
		offset += int(n)
	}

	decompressed := make([][]byte, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.numWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := pc.pool.Decompress(chunk)
			if err != nil {
				return err
			}
			decompressed[i] = out
			pc.chunksProcessed.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, originalSize)
	for _, d := range decompressed {
		out = append(out, d...)
	}
	if len(out) != originalSize {
		return nil, corruptFrame("size mismatch")
	}
	pc.bytesProcessed.Add(uint64(len(out)))
	return out, nil
}

func (pc *ParallelCompressor) splitIntoChunks(data []byte) [][]byte {
	var chunks [][]byte
	for i := 0; i < len(data); i += pc.chunkSize {
		end := i + pc.chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

func (pc *ParallelCompressor) createHeader(chunks [][]byte, originalSize int) []byte {
	header := make([]byte, 0, 5+binary.MaxVarintLen64*(2+len(chunks)))
	header = append(header, parallelMagic...)
	header = append(header, parallelVersion)
	header = binary.AppendUvarint(header, uint64(len(chunks)))
	header = binary.AppendUvarint(header, uint64(originalSize))
	for _, c := range chunks {
		header = binary.AppendUvarint(header, uint64(len(c)))
	}
	return header
}

func (pc *ParallelCompressor) readHeader(data []byte) (lengths []uint64, originalSize, offset int, err error) {
	if len(data) < 5 || !bytes.Equal(data[:4], parallelMagic) {
		return nil, 0, 0, corruptFrame("missing magic")
	}
	if data[4] != parallelVersion {
		return nil, 0, 0, corruptFrame("unknown version")
	}
	offset = 5

	next := func() (uint64, bool) {
		v, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return 0, false
		}
		offset += n
		return v, true
	}

	count, ok := next()
	if !ok || count > uint64(len(data)) {
		return nil, 0, 0, corruptFrame("bad chunk count")
	}
	size, ok := next()
	if !ok || size > uint64(pc.pool.config.MaxDecompressedSize) {
		return nil, 0, 0, ErrDecompressedTooLarge
	}
	lengths = make([]uint64, count)
	for i := range lengths {
		if lengths[i], ok = next(); !ok {
			return nil, 0, 0, corruptFrame("bad chunk length")
		}
	}
	return lengths, int(size), offset, nil
}

func corruptFrame(reason string) error {
	return poolerrors.New(poolerrors.ErrorTypeCodec, "corrupt parallel frame").
		WithDetail("reason", reason)
}

// GetMetrics returns bytes and chunks processed so far.
func (pc *ParallelCompressor) GetMetrics() (bytesProcessed, chunksProcessed uint64) {
	return pc.bytesProcessed.Get(), pc.chunksProcessed.Get()
}
