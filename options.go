// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

// Options configures queue creation and algorithm selection.
type Options struct {
	// Producer/Consumer constraints (determines queue type)
	singleProducer bool
	singleConsumer bool

	// Capacity; 0 selects the unbounded node-based algorithms
	capacity int

	// Reclamation proxy for the unbounded MPMC algorithm
	proxy *Proxy
}

// Builder creates queues with fluent configuration.
//
// Builder provides a fluent API for configuring and creating queues.
// The builder automatically selects the algorithm based on
// producer/consumer constraints and boundedness.
//
// Example:
//
//	// Unbounded SPSC queue with private node cache
//	q := lfc.BuildSPSC[Event](lfc.New().SingleProducer().SingleConsumer())
//
//	// Unbounded MPSC queue (event aggregation)
//	q := lfc.BuildMPSC[Event](lfc.New().SingleConsumer())
//
//	// Bounded MPMC queue (backpressure at 4096 elements)
//	q := lfc.BuildBounded[Request](lfc.New().Bounded(4096))
//
//	// Unbounded MPMC queue over a proxy collector
//	q := lfc.BuildMPMC[Request](lfc.New().Collector(lfc.NewProxy()))
type Builder struct {
	opts Options
}

// New creates a queue builder. The default configuration selects the
// unbounded node-based algorithms; use Bounded to select the array-based
// bounded queue instead.
func New() *Builder {
	return &Builder{}
}

// SingleProducer declares that only one goroutine will enqueue.
// Combined with SingleConsumer it enables the SPSC algorithm with its
// private node cache.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will dequeue.
// Enables the SPSC or MPSC algorithms, whose consumers reclaim nodes
// without a proxy collector.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Bounded selects the array-based bounded queue with the given capacity.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
// Bounded queues need no reclamation and reject enqueues when full.
func (b *Builder) Bounded(capacity int) *Builder {
	if capacity < 2 {
		panic("lfc: capacity must be >= 2")
	}
	b.opts.capacity = capacity
	return b
}

// Collector supplies the proxy collector used by the unbounded MPMC
// algorithm to retire dequeued nodes. Required when neither SingleProducer
// nor SingleConsumer nor Bounded is set.
func (b *Builder) Collector(p *Proxy) *Builder {
	b.opts.proxy = p
	return b
}

// Build creates a Queue[T] with automatic algorithm selection.
//
// Algorithm selection:
//
//	Bounded(n)                      → Bounded (sequence ring, any pattern)
//	SingleProducer + SingleConsumer → SPSC (linked, private node cache)
//	SingleConsumer only             → MPSC (Vyukov intrusive linked)
//	Neither                         → MPMC (linked, proxy reclamation)
//
// The unbounded MPMC selection requires Collector; Build panics without one.
//
// For type-safe returns with concrete types, use:
//   - BuildBounded[T](b) → *Bounded[T]
//   - BuildSPSC[T](b) → *SPSC[T]
//   - BuildMPSC[T](b) → *MPSC[T]
//   - BuildMPMC[T](b) → *MPMC[T]
func Build[T any](b *Builder) Queue[T] {
	switch {
	case b.opts.capacity > 0:
		return NewBounded[T](b.opts.capacity)
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSC[T]()
	case b.opts.singleConsumer:
		return NewMPSC[T]()
	case b.opts.singleProducer:
		panic("lfc: single-producer multi-consumer pattern requires Bounded")
	default:
		if b.opts.proxy == nil {
			panic("lfc: unbounded MPMC requires Collector")
		}
		return NewMPMC[T](b.opts.proxy)
	}
}

// BuildBounded creates a bounded MPMC queue with compile-time type safety.
// Panics if the builder is not configured with Bounded.
func BuildBounded[T any](b *Builder) *Bounded[T] {
	if b.opts.capacity == 0 {
		panic("lfc: BuildBounded requires Bounded(capacity)")
	}
	return NewBounded[T](b.opts.capacity)
}

// BuildSPSC creates an unbounded SPSC queue with compile-time type safety.
// Panics if the builder is not configured with SingleProducer().SingleConsumer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("lfc: BuildSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSC[T]()
}

// BuildMPSC creates an unbounded MPSC queue with compile-time type safety.
// Panics if the builder is not configured with SingleConsumer() only.
func BuildMPSC[T any](b *Builder) *MPSC[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("lfc: BuildMPSC requires SingleConsumer() without SingleProducer()")
	}
	return NewMPSC[T]()
}

// BuildMPMC creates an unbounded MPMC queue with compile-time type safety.
// Panics if the builder has producer/consumer constraints set or no Collector.
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.opts.singleProducer || b.opts.singleConsumer {
		panic("lfc: BuildMPMC requires no constraints")
	}
	if b.opts.proxy == nil {
		panic("lfc: BuildMPMC requires Collector")
	}
	return NewMPMC[T](b.opts.proxy)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
