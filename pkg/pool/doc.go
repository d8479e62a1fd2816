// Package pool implements a generic, thread-safe object pool that recycles
// expensive-to-construct values (buffers, encoders, builders, connections)
// instead of allocating and destroying them on every use.
//
// Architecture
//
// A Pool[T] keeps a bounded reserve of idle values in a lock-free MPMC queue.
// The bounds apply to the idle reserve only:
//
//   - minimum: the reserve is filled to this size on construction and refilled
//     in the background after a Get takes it below the minimum
//   - maximum: values put back beyond this size are destroyed (overflow)
//
// Get never blocks. It serves an idle value (hit) or builds a new one through
// the factory (miss), so the number of values in use is not limited.
//
// Core Types:
//
//   - Pool[T]: the pool itself
//   - KeyedPool[K, T]: one lazily created Pool per key
//   - TimedPool[T]: a Pool whose idle values expire after a timeout
//   - Pooled: embeddable base giving a value a tracked lifecycle
//   - Wrapped[T]: adapter for types that cannot carry lifecycle methods
//
// Lifecycle Hooks
//
// Before a value re-enters the reserve it is reset; when it is destroyed it is
// released. Hooks are resolved in order:
//
//	pool.WithReset / pool.WithRelease      // pool-level closures
//	Reset() bool / Release()               // the Resource interface
//	Reset() / Close() error                // common standard library shapes
//
// A reset that returns false or panics destroys the value instead of keeping it.
// Release panics and Close errors are recovered and logged; they never reach
// the caller of Put.
//
// Usage Patterns
//
// Basic pool usage:
//
//	p, err := pool.New[*bytes.Buffer](
//		pool.WithBounds[*bytes.Buffer](2, 64),
//	)
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	buf, err := p.Get()
//	if err != nil {
//		return err
//	}
//	defer p.Put(buf)
//
// A type with its own lifecycle:
//
//	type Conn struct {
//		pool.Pooled
//		sock net.Conn
//	}
//
//	func (c *Conn) Reset() bool { return c.sock != nil }
//	func (c *Conn) Release()    { c.sock.Close() }
//
//	p, _ := pool.New[*Conn](pool.WithFactory(dial), pool.WithLeakRecovery[*Conn]())
//	c, _ := p.Get()
//	defer pool.Return(c) // finds p through a weak back-reference
//
// Leak Recovery
//
// With WithLeakRecovery, each value embedding Pooled carries a finalizer. If a
// caller drops a value without returning it, the garbage collector runs the
// finalizer and the value is offered back to the pool (counted as resurrected).
// Values only hold a weak reference to their pool, so an abandoned pool is
// still collected, and its idle values are released by their finalizers.
//
// Values that do not embed Pooled cannot be recovered; a leak shows up as
// InUse and Live in Stats never coming back down.
//
// Diagnostics
//
// Counters are off by default. With WithDiagnostics or SetDiagnostics(true):
//   - created, destroyed: values built and permanently released
//   - hits, misses: Get served from the reserve or from the factory
//   - overflow: values destroyed because the reserve was full
//   - reset_failed, release_failed: hook failures
//   - resurrected: values recovered by their finalizer
//   - returned: values accepted back into the reserve
//   - expired: values destroyed by a TimedPool sweep
package pool
