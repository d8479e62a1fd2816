package strings

import (
	stdstrings "strings"
	"sync"
	"testing"
)

func generateTestStrings(count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = Sprintf("field_%d", i)
	}
	return out
}

func BenchmarkStringConcatenation(b *testing.B) {
	parts := generateTestStrings(32)

	b.Run("Pooled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = JoinPooled(parts, ",")
		}
	})

	b.Run("Stdlib", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = stdstrings.Join(parts, ",")
		}
	})
}

func BenchmarkBuilderPoolEfficiency(b *testing.B) {
	ps, err := NewPools(DefaultPoolsConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer ps.Close()

	syncPool := sync.Pool{New: func() interface{} { return NewBuilder(classCapacity[Small]) }}

	b.Run("Reservoir", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				sb := ps.Get(Small)
				sb.WriteString("hello")
				ps.Put(sb)
			}
		})
	})

	b.Run("SyncPool", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				sb := syncPool.Get().(*Builder)
				sb.WriteString("hello")
				sb.Reset()
				syncPool.Put(sb)
			}
		})
	})
}
