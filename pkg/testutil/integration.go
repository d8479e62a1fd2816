package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// FileSuite provides a temp directory and a context to suites that read and
// write configuration files.
type FileSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *FileSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "reservoir-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *FileSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *FileSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *FileSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile creates a file with content in the suite's temp directory
func (s *FileSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	err := os.WriteFile(path, content, 0o644)
	require.NoError(s.T(), err)
	return path
}

// PerformanceTest measures throughput and allocations of a pooled workload.
type PerformanceTest struct {
	t         *testing.T
	name      string
	threshold struct {
		minThroughput  float64 // ops/sec
		maxAllocsPerOp float64
	}
}

// NewPerformanceTest creates a new performance test
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputTarget sets minimum throughput requirement
func (p *PerformanceTest) WithThroughputTarget(opsPerSec float64) *PerformanceTest {
	p.threshold.minThroughput = opsPerSec
	return p
}

// WithAllocationTarget sets the maximum heap allocations per operation
func (p *PerformanceTest) WithAllocationTarget(allocsPerOp float64) *PerformanceTest {
	p.threshold.maxAllocsPerOp = allocsPerOp
	return p
}

// Run executes fn and checks the configured targets.
func (p *PerformanceTest) Run(fn func() (ops int64, duration time.Duration)) {
	p.t.Helper()

	before := CaptureMemoryProfile()
	ops, duration := fn()
	after := CaptureMemoryProfile()

	if ops == 0 || duration <= 0 {
		p.t.Logf("Performance Test: %s: no operations recorded", p.name)
		return
	}

	throughput := float64(ops) / duration.Seconds()
	allocsPerOp := float64(after.Mallocs-before.Mallocs) / float64(ops)

	p.t.Logf("Performance Test: %s", p.name)
	p.t.Logf("  Operations: %d", ops)
	p.t.Logf("  Duration: %v", duration)
	p.t.Logf("  Throughput: %.0f ops/sec", throughput)
	p.t.Logf("  Allocs/op: %.2f", allocsPerOp)
	p.t.Logf("  Heap In Use: %s", formatBytes(int64(after.HeapInuse)))

	if p.threshold.minThroughput > 0 && throughput < p.threshold.minThroughput {
		p.t.Errorf("Throughput %.0f ops/sec below target %.0f ops/sec",
			throughput, p.threshold.minThroughput)
	}

	if p.threshold.maxAllocsPerOp > 0 && allocsPerOp > p.threshold.maxAllocsPerOp {
		p.t.Errorf("Allocations %.2f/op exceed target %.2f/op",
			allocsPerOp, p.threshold.maxAllocsPerOp)
	}
}

// MemoryProfile captures memory statistics
type MemoryProfile struct {
	AllocBytes uint64
	TotalAlloc uint64
	Mallocs    uint64
	Frees      uint64
	HeapInuse  uint64
	NumGC      uint32
}

// CaptureMemoryProfile captures current memory profile
func CaptureMemoryProfile() *MemoryProfile {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &MemoryProfile{
		AllocBytes: m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
		Frees:      m.Frees,
		HeapInuse:  m.HeapInuse,
		NumGC:      m.NumGC,
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
