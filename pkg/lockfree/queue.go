// Package lockfree provides lock-free data structures backing the pool's idle reserve
package lockfree

import (
	"runtime"
	"sync/atomic"
)

// MPMCQueue implements a bounded lock-free multi-producer multi-consumer queue
// using sequence numbers for ordering and cache-line padding to avoid false sharing.
// Items are stored by value, so enqueueing a struct does not allocate.
type MPMCQueue[T any] struct {
	buffer   []slot[T]
	capacity uint64
	mask     uint64

	// Separate enqueue and dequeue indices on different cache lines
	enqueuePos atomic.Uint64
	_padding1  [7]uint64 //nolint:unused

	dequeuePos atomic.Uint64
	_padding2  [7]uint64 //nolint:unused
}

// slot represents a queue slot with sequence number for ordering.
// The sequence store after writing data publishes it to the consumer.
type slot[T any] struct {
	sequence atomic.Uint64
	data     T
}

// NewMPMCQueue creates a new multi-producer multi-consumer queue with the given capacity.
// Capacity will be rounded up to the next power of 2 for efficient masking.
func NewMPMCQueue[T any](capacity int) *MPMCQueue[T] {
	cap := uint64(1)
	for cap < uint64(capacity) {
		cap <<= 1
	}

	q := &MPMCQueue[T]{
		buffer:   make([]slot[T], cap),
		capacity: cap,
		mask:     cap - 1,
	}

	for i := uint64(0); i < cap; i++ {
		q.buffer[i].sequence.Store(i)
	}

	return q
}

// Enqueue adds an item to the queue.
// Returns false if the queue is full.
func (q *MPMCQueue[T]) Enqueue(item T) bool {
	for {
		pos := q.enqueuePos.Load()
		s := &q.buffer[pos&q.mask]
		seq := s.sequence.Load()

		diff := int64(seq) - int64(pos)

		if diff == 0 {
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				s.data = item
				s.sequence.Store(pos + 1)
				return true
			}
		} else if diff < 0 {
			return false
		}

		// Slot not ready yet, retry
		runtime.Gosched()
	}
}

// Dequeue removes the oldest item from the queue.
// Returns the zero value and false if the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (T, bool) {
	var zero T
	for {
		pos := q.dequeuePos.Load()
		s := &q.buffer[pos&q.mask]
		seq := s.sequence.Load()

		diff := int64(seq) - int64(pos+1)

		if diff == 0 {
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				item := s.data
				// Drop the reference so the slot does not pin the item
				s.data = zero
				s.sequence.Store(pos + q.capacity)
				return item, true
			}
		} else if diff < 0 {
			return zero, false
		}

		runtime.Gosched()
	}
}

// Len returns the number of claimed slots. This is an approximation in
// concurrent scenarios: it counts items whose producers have claimed a
// position but not yet published the data.
func (q *MPMCQueue[T]) Len() int {
	enq := q.enqueuePos.Load()
	deq := q.dequeuePos.Load()
	if enq <= deq {
		return 0
	}
	return int(enq - deq)
}

// Cap returns the fixed capacity of the queue.
func (q *MPMCQueue[T]) Cap() int {
	return int(q.capacity)
}

// AtomicCounter provides a lock-free counter for statistics and metrics collection
// with atomic operations for thread-safe updates.
type AtomicCounter struct {
	value atomic.Uint64
}

// NewAtomicCounter creates a new atomic counter initialized to zero.
func NewAtomicCounter() *AtomicCounter {
	return &AtomicCounter{}
}

// Increment atomically increments the counter by one.
func (c *AtomicCounter) Increment() {
	c.value.Add(1)
}

// Add atomically adds the given delta value to the counter.
func (c *AtomicCounter) Add(delta uint64) {
	c.value.Add(delta)
}

// Get returns the current value of the counter atomically.
func (c *AtomicCounter) Get() uint64 {
	return c.value.Load()
}
