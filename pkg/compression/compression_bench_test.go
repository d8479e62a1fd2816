package compression

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func generateJSONData(size int) []byte {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i := 0; buf.Len() < size; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"id":%d,"name":"user_%d","email":"user%d@example.com","active":%t}`,
			i, i, i, i%2 == 0)
	}
	buf.WriteString("]")
	return buf.Bytes()
}

func generateBinaryData(size int) []byte {
	data := make([]byte, size)
	rng := rand.New(rand.NewSource(42))
	_, _ = rng.Read(data)
	return data
}

func benchPool(b *testing.B, alg Algorithm) *CompressorPool {
	b.Helper()
	cp, err := NewCompressorPool(&Config{Algorithm: alg, Level: Default, Logger: zap.NewNop()})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = cp.Close() })
	return cp
}

func BenchmarkCompression(b *testing.B) {
	inputs := map[string][]byte{
		"json":   generateJSONData(64 * 1024),
		"binary": generateBinaryData(64 * 1024),
	}

	for _, alg := range Algorithms {
		for name, data := range inputs {
			b.Run(fmt.Sprintf("%s/%s", alg, name), func(b *testing.B) {
				cp := benchPool(b, alg)
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := cp.Compress(data); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkDecompression(b *testing.B) {
	data := generateJSONData(64 * 1024)

	for _, alg := range Algorithms {
		b.Run(string(alg), func(b *testing.B) {
			cp := benchPool(b, alg)
			compressed, err := cp.Compress(data)
			if err != nil {
				b.Fatal(err)
			}
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := cp.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Pooled codecs against a fresh codec per call
func BenchmarkCompressorPool(b *testing.B) {
	data := generateJSONData(100 * 1024)

	b.Run("WithPool", func(b *testing.B) {
		cp := benchPool(b, Zstd)
		b.SetBytes(int64(len(data)))
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := cp.Compress(data); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})

	b.Run("WithoutPool", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				cp, err := NewCompressorPool(&Config{Algorithm: Zstd, Level: Default, Logger: zap.NewNop()})
				if err != nil {
					b.Error(err)
					return
				}
				if _, err := cp.Compress(data); err != nil {
					b.Error(err)
				}
				_ = cp.Close()
			}
		})
	})
}

func BenchmarkParallelCompressor(b *testing.B) {
	data := []byte(strings.Repeat(string(generateJSONData(64*1024)), 16))
	cp := benchPool(b, Snappy)
	pc := NewParallelCompressor(cp, ParallelConfig{ChunkSize: 128 * 1024})
	ctx := context.Background()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pc.CompressData(ctx, data); err != nil {
			b.Fatal(err)
		}
	}
}
