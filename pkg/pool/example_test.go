// Package pool provides example usage of the object pool.
package pool_test

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ajitpratap0/reservoir/pkg/pool"
)

// ExampleNew demonstrates creating and using a pool of buffers.
func ExampleNew() {
	p, err := pool.New[*bytes.Buffer](pool.WithBounds[*bytes.Buffer](2, 8))
	if err != nil {
		panic(err)
	}
	defer p.Close()

	fmt.Printf("Idle after construction: %d\n", p.Len())

	buf, err := p.Get()
	if err != nil {
		panic(err)
	}
	buf.WriteString("Hello, reservoir!")
	fmt.Println(buf.String())

	// Put resets the buffer before it re-enters the reserve
	p.Put(buf)
	fmt.Printf("Length after Put: %d\n", buf.Len())

	// Output:
	// Idle after construction: 2
	// Hello, reservoir!
	// Length after Put: 0
}

type conn struct {
	pool.Pooled
	id      int
	healthy bool
}

func (c *conn) Reset() bool { return c.healthy }

func (c *conn) Release() { fmt.Printf("Released conn %d\n", c.id) }

// Example_lifecycle shows Reset and Release hooks on a type embedding Pooled.
func Example_lifecycle() {
	next := 0
	p, err := pool.New[*conn](
		pool.WithBounds[*conn](0, 1),
		pool.WithFactory(func() (*conn, error) {
			next++
			return &conn{id: next, healthy: true}, nil
		}),
	)
	if err != nil {
		panic(err)
	}

	first, _ := p.Get()
	second, _ := p.Get()

	// Return finds the owning pool through the value itself
	pool.Return(first)
	fmt.Printf("Idle: %d\n", p.Len())

	// The reserve is full, so the second conn is destroyed
	pool.Return(second)

	_ = p.Close()

	// Output:
	// Idle: 1
	// Released conn 2
	// Released conn 1
}

// ExampleWrap pools a type that has no lifecycle methods of its own.
func ExampleWrap() {
	factory := pool.WrapFactory(
		func() (map[string]int, error) { return make(map[string]int), nil },
		func(m map[string]int) bool {
			clear(m)
			return true
		},
		nil,
	)

	p, err := pool.New[*pool.Wrapped[map[string]int]](
		pool.WithBounds[*pool.Wrapped[map[string]int]](1, 4),
		pool.WithFactory(factory),
	)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	w, _ := p.Get()
	w.Value["requests"]++
	fmt.Printf("Requests: %d\n", w.Value["requests"])

	p.Put(w)
	fmt.Printf("Entries after Put: %d\n", len(w.Value))

	// Output:
	// Requests: 1
	// Entries after Put: 0
}

// ExampleNewKeyed keeps an independent pool per key.
func ExampleNewKeyed() {
	kp, err := pool.NewKeyed(
		func(size int) ([]byte, error) { return make([]byte, 0, size), nil },
		pool.WithBounds[[]byte](0, 4),
	)
	if err != nil {
		panic(err)
	}
	defer kp.Close()

	small, _ := kp.Get(512)
	large, _ := kp.Get(4096)
	fmt.Printf("Capacities: %d %d\n", cap(small), cap(large))

	kp.Put(512, small[:0])
	kp.Put(4096, large[:0])

	keys := kp.Keys()
	sort.Ints(keys)
	fmt.Printf("Keys: %v\n", keys)

	// Output:
	// Capacities: 512 4096
	// Keys: [512 4096]
}

// ExamplePool_Stats shows the diagnostics counters.
func ExamplePool_Stats() {
	p, err := pool.New[*bytes.Buffer](
		pool.WithBounds[*bytes.Buffer](0, 1),
		pool.WithDiagnostics[*bytes.Buffer](),
	)
	if err != nil {
		panic(err)
	}
	defer p.Close()

	a, _ := p.Get()
	b, _ := p.Get()
	p.Put(a)
	p.Put(b)

	s := p.Stats()
	fmt.Printf("created=%d hits=%d misses=%d returned=%d overflow=%d idle=%d\n",
		s.Created, s.Hits, s.Misses, s.Returned, s.Overflow, s.Idle)

	// Output:
	// created=2 hits=0 misses=2 returned=1 overflow=1 idle=1
}
