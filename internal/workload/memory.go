package workload

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
)

// memorySampler reads the resident set size of this process.
type memorySampler struct {
	proc   *process.Process
	peak   atomic.Uint64
	logger *zap.Logger
}

func newMemorySampler(log *zap.Logger) *memorySampler {
	s := &memorySampler{logger: log}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("process memory sampling disabled", zap.Error(err))
		return s
	}
	s.proc = proc
	return s
}

func (s *memorySampler) sample(ctx context.Context) uint64 {
	if s.proc == nil {
		return 0
	}
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		s.logger.Debug("failed to read process memory", zap.Error(err))
		return 0
	}

	metrics.ProcessMemory.Set(float64(info.RSS))
	observability.AddEvent(ctx, "rss.sample", attribute.Int64("rss_bytes", int64(info.RSS)))

	for {
		cur := s.peak.Load()
		if info.RSS <= cur || s.peak.CompareAndSwap(cur, info.RSS) {
			return info.RSS
		}
	}
}
