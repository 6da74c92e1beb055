// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfc provides lock-free concurrent queues with safe memory
// reclamation.
//
// The package offers one bounded and three unbounded queue variants,
// a proxy-reference-count collector in two flavors, and an event-count
// for blocking on arbitrary predicates:
//
//   - Bounded: array-based MPMC queue with per-slot sequence numbers
//   - SPSC: unbounded linked queue with a private node cache
//   - MPSC: unbounded intrusive linked queue, single consumer reclaims
//   - MPMC: unbounded linked queue retired through a proxy collector
//   - Proxy / ProxyRing: deferred reclamation for lock-free readers
//   - EventCount: lost-wakeup-free blocking on a predicate
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := lfc.NewBounded[Event](1024)   // full ⇒ ErrWouldBlock
//	q := lfc.NewSPSC[Event]()          // one producer, one consumer
//	q := lfc.NewMPSC[Event]()          // many producers, one consumer
//	q := lfc.NewMPMC[Event](lfc.NewProxy())
//
// Builder API auto-selects the algorithm based on constraints:
//
//	q := lfc.Build[Event](lfc.New().SingleProducer().SingleConsumer()) // → SPSC
//	q := lfc.Build[Event](lfc.New().SingleConsumer())                  // → MPSC
//	q := lfc.Build[Event](lfc.New().Collector(lfc.NewProxy()))         // → MPMC
//	q := lfc.Build[Event](lfc.New().Bounded(4096))                     // → Bounded
//
// # Basic Usage
//
// All queues share the same interface for enqueueing and dequeueing:
//
//	q := lfc.NewBounded[int](1024)
//
//	// Enqueue (non-blocking)
//	value := 42
//	err := q.Enqueue(&value)
//	if lfc.IsWouldBlock(err) {
//	    // Bounded queue is full - handle backpressure
//	}
//
//	// Dequeue (non-blocking)
//	elem, err := q.Dequeue()
//	if lfc.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// The unbounded variants never report full; their Enqueue always
// returns nil and may touch the allocator instead.
//
// # Blocking Consumers
//
// The queues themselves never block. A consumer that wants to sleep
// until data arrives combines a queue with an EventCount:
//
//	q := lfc.NewMPSC[Event]()
//	ec := lfc.NewEventCount()
//
//	// Producers
//	go func() {
//	    for ev := range source {
//	        q.Enqueue(&ev)
//	        ec.Notify()
//	    }
//	}()
//
//	// Consumer
//	var ev Event
//	ec.Await(func() bool {
//	    e, err := q.Dequeue()
//	    if err != nil {
//	        return false
//	    }
//	    ev = e
//	    return true
//	})
//
// The double predicate check between PrepareWait and CommitWait means a
// Notify can never be lost, no matter how the goroutines interleave.
//
// # Memory Reclamation
//
// The bounded queue needs no reclamation: its cells live for the
// queue's lifetime. The SPSC queue recycles nodes through a producer
// private free list, and the MPSC consumer owns reclamation outright.
//
// The unbounded MPMC queue is different: a consumer that loses the tail
// race may still be reading a node the winner just unlinked, so nodes
// cannot be recycled in place. They are retired through a Proxy, which
// defers the recycling callback until every reader that acquired before
// the retirement has released:
//
//	p := lfc.NewProxy()
//	q := lfc.NewMPMC[Event](p)
//	// Dequeue internally brackets itself with p.Acquire/p.Release and
//	// hands unlinked nodes to p.DeferRecycle.
//
// Proxy pools its epoch collectors through a free list and places no
// bound on deferred work. ProxyRing is the fixed-fanout alternative:
// allocation-free after construction, bounded by its fanout, with a
// serialized quiesce transition. Use it to protect reader traversals of
// caller-owned structures built from ProxyNode:
//
//	ring := lfc.NewProxyRing(64, 4, freeNode)
//
//	// Reader
//	c := ring.Acquire()
//	for keepReading() {
//	    traverse()
//	    c = ring.Sync(c) // never pin a closing epoch
//	}
//	ring.Release(c)
//
//	// Writer
//	c := ring.Acquire()
//	ring.Collect(c, unlinked) // reclaimed after epoch+1 completes
//	ring.Release(c)
//
// # Ordering Guarantees
//
// Bounded: a successful enqueue at logical position p happens-before
// the matching dequeue at p. SPSC preserves full FIFO order. MPSC and
// MPMC preserve each producer's own order; across producers the order
// is the linearization of the head swaps. Fairness is not guaranteed
// anywhere.
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when operations cannot proceed. This
// error is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency.
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !lfc.IsWouldBlock(err) {
//	        return err // Unexpected error
//	    }
//	    backoff.Wait()
//	}
//
// # Thread Safety
//
// All operations are safe within their access pattern constraints:
//
//   - Bounded/MPMC: any number of producers and consumers
//   - MPSC: multiple producers, exactly one consumer goroutine
//   - SPSC: exactly one producer and one consumer goroutine
//
// Violating these constraints causes undefined behavior including data
// corruption. Proxy handles must be released exactly once and only by
// their acquirer.
//
// # Race Detection
//
// Go's race detector tracks explicit synchronization primitives but
// cannot observe happens-before relationships established through
// atomic memory orderings on separate variables, as the bounded queue's
// per-slot sequence numbers and the proxies' packed counters do. Those
// algorithms are correct, but the detector may report false positives.
// Tests incompatible with race detection are skipped via RaceEnabled.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions.
package lfc
