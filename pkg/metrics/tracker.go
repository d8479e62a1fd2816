package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkloadThroughput tracks acquire/release cycles per second of the
	// benchmark driver.
	// Labels: flavor (widget/keyed/buffer/builder/compressor)
	WorkloadThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workload_ops_per_second",
			Help:      "Current workload throughput in operations per second",
		},
		[]string{"flavor"},
	)

	// AcquireLatency tracks how long Get takes in nanoseconds. The buckets
	// separate idle hits from factory misses.
	AcquireLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workload_acquire_latency_nanoseconds",
			Help:      "Acquire latency in nanoseconds",
			Buckets: []float64{
				50,   // idle hit
				200,  // contended hit
				1000, // 1μs - cheap factory
				1e4,  // 10μs
				1e5,  // 100μs - expensive factory
				1e6,  // 1ms
				1e7,  // 10ms
			},
		},
		[]string{"flavor"},
	)

	// ProcessMemory tracks the resident set size sampled by the workload driver.
	ProcessMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workload_rss_bytes",
			Help:      "Resident set size of the process in bytes",
		},
	)
)

// Timer measures an operation from creation until Stop.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker counts operations and converts them to a rate on demand.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Operations since last reset
	lastReset time.Time // Time of last reset
	flavor    string
}

// NewThroughputTracker creates a tracker that reports under the given
// workload flavor.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("keyed")
//	for i := 0; i < n; i++ {
//	    cycle()
//	    tracker.Increment(1)
//	}
//	opsPerSec := tracker.GetAndReset()
func NewThroughputTracker(flavor string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		flavor:    flavor,
	}
}

// Increment adds n to the operation count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// GetAndReset calculates operations per second since the last reset,
// publishes it to WorkloadThroughput and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	WorkloadThroughput.WithLabelValues(t.flavor).Set(throughput)
	return throughput
}

// LatencyTracker keeps the most recent maxSize samples for percentile
// queries.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	next    int
	full    bool
	maxSize int
}

// NewLatencyTracker creates a new latency tracker. maxSize below 1 is
// treated as 1.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LatencyTracker{
		values:  make([]time.Duration, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value, overwriting the oldest once full.
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	l.values[l.next] = d
	l.next++
	if l.next == l.maxSize {
		l.next = 0
		l.full = true
	}
	l.mu.Unlock()
}

// Count returns the number of retained samples.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return l.maxSize
	}
	return l.next
}

// GetPercentile returns the nearest-rank percentile (0-100) of the retained
// samples, or 0 when there are none.
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	n := l.next
	if l.full {
		n = l.maxSize
	}
	sorted := make([]time.Duration, n)
	copy(sorted, l.values[:n])
	l.mu.Unlock()

	if n == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(math.Ceil(float64(n)*p/100)) - 1
	if index < 0 {
		index = 0
	}
	if index >= n {
		index = n - 1
	}
	return sorted[index]
}
