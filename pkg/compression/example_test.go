package compression_test

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/compression"
)

// ExampleCompressorPool shows a round trip through pooled zstd codecs.
func ExampleCompressorPool() {
	cp, err := compression.NewCompressorPool(&compression.Config{
		Algorithm:   compression.Zstd,
		Level:       compression.Fastest,
		Diagnostics: true,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cp.Close()

	original := bytes.Repeat([]byte("pooled codecs "), 100)
	compressed, _ := cp.Compress(original)
	restored, _ := cp.Decompress(compressed)

	fmt.Println(bytes.Equal(original, restored))
	for _, s := range cp.Stats() {
		fmt.Printf("%s idle=%d created=%d\n", s.Name, s.Idle, s.Created)
	}

	// Output:
	// true
	// compression-zstd-writer idle=1 created=1
	// compression-zstd-reader idle=1 created=1
}
