package pool

import (
	"sync/atomic"

	"github.com/ajitpratap0/reservoir/pkg/lockfree"
)

// Diagnostics holds the monotonic counters of a pool. Counters only move while
// diagnostics are enabled, which keeps the hot path free of shared writes in
// production.
type Diagnostics struct {
	enabled atomic.Bool

	created       lockfree.AtomicCounter
	destroyed     lockfree.AtomicCounter
	hits          lockfree.AtomicCounter
	misses        lockfree.AtomicCounter
	overflow      lockfree.AtomicCounter
	resetFailed   lockfree.AtomicCounter
	resurrected   lockfree.AtomicCounter
	returned      lockfree.AtomicCounter
	expired       lockfree.AtomicCounter
	releaseFailed lockfree.AtomicCounter
}

// Enabled reports whether counters are being updated.
func (d *Diagnostics) Enabled() bool { return d.enabled.Load() }

func (d *Diagnostics) setEnabled(v bool) { d.enabled.Store(v) }

func (d *Diagnostics) incr(c *lockfree.AtomicCounter) {
	if d.enabled.Load() {
		c.Increment()
	}
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Name        string `json:"name"`
	Idle        int    `json:"idle"`
	InUse       int64  `json:"in_use"`
	MinimumSize int    `json:"minimum_size"`
	MaximumSize int    `json:"maximum_size"`
	Diagnostics bool   `json:"diagnostics"`

	Created       uint64 `json:"created"`
	Destroyed     uint64 `json:"destroyed"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Overflow      uint64 `json:"overflow"`
	ResetFailed   uint64 `json:"reset_failed"`
	Resurrected   uint64 `json:"resurrected"`
	Returned      uint64 `json:"returned"`
	Expired       uint64 `json:"expired"`
	ReleaseFailed uint64 `json:"release_failed"`
}

// Live is the number of values created and not yet destroyed, as far as the
// counters know. It is only meaningful when diagnostics were enabled for the
// whole life of the pool.
func (s Stats) Live() int64 {
	if s.Destroyed > s.Created {
		return 0
	}
	return int64(s.Created - s.Destroyed)
}

// HitRate is hits / (hits + misses), or 0 before the first acquire.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (d *Diagnostics) fill(s *Stats) {
	s.Diagnostics = d.enabled.Load()
	s.Created = d.created.Get()
	s.Destroyed = d.destroyed.Get()
	s.Hits = d.hits.Get()
	s.Misses = d.misses.Get()
	s.Overflow = d.overflow.Get()
	s.ResetFailed = d.resetFailed.Get()
	s.Resurrected = d.resurrected.Get()
	s.Returned = d.returned.Get()
	s.Expired = d.expired.Get()
	s.ReleaseFailed = d.releaseFailed.Get()
}
