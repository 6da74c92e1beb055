// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "sync/atomic"

// SPSC is a single-producer single-consumer unbounded linked queue.
//
// A permanent stub node keeps head and tail non-null; the queue is
// logically empty when tail.next == nil. Enqueue never fails.
//
// Drained nodes are not freed by the consumer. The producer reclaims
// them through a private free list threaded through the same next
// field: nodes between first and tailCopy are recyclable, nodes
// between tailCopy and head are in flight. The release store on
// tail in Dequeue synchronizes with the load of tail in allocNode,
// so a recycled node is never still reachable by the consumer.
//
// Node links use sync/atomic pointers (sequentially consistent, a
// strengthening of the release/acquire edges the algorithm needs)
// so nodes stay visible to the garbage collector.
//
// Memory: one node per in-flight element, amortized by the cache
type SPSC[T any] struct {
	_ pad
	// producer-owned
	head     *spscNode[T] // most recently published node
	first    *spscNode[T] // oldest unused node in the cache
	tailCopy *spscNode[T] // cached view of the consumer's tail
	_        pad
	// consumer-owned
	tail atomic.Pointer[spscNode[T]]
	_    pad
}

type spscNode[T any] struct {
	next  atomic.Pointer[spscNode[T]]
	value T
}

// NewSPSC creates a new unbounded SPSC queue.
func NewSPSC[T any]() *SPSC[T] {
	n := &spscNode[T]{}
	q := &SPSC[T]{
		head:     n,
		first:    n,
		tailCopy: n,
	}
	q.tail.Store(n)
	return q
}

// Enqueue adds an element to the queue (producer only).
// Always returns nil; the queue is unbounded.
func (q *SPSC[T]) Enqueue(elem *T) error {
	n := q.allocNode(elem)
	n.next.Store(nil)
	q.head.next.Store(n)
	q.head = n
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSC[T]) Dequeue() (T, error) {
	tail := q.tail.Load()
	next := tail.next.Load()
	if next == nil {
		var zero T
		return zero, ErrWouldBlock
	}

	elem := next.value
	var zero T
	next.value = zero
	q.tail.Store(next)
	return elem, nil
}

// allocNode obtains a node for the next enqueue, preferring the
// private cache over the allocator. The cache is non-empty when
// first != tailCopy; when it looks empty the producer refreshes
// tailCopy from the consumer's tail and retries once before
// falling back to a fresh allocation.
func (q *SPSC[T]) allocNode(elem *T) *spscNode[T] {
	if q.first != q.tailCopy {
		n := q.first
		q.first = n.next.Load()
		n.value = *elem
		return n
	}

	q.tailCopy = q.tail.Load()
	if q.first != q.tailCopy {
		n := q.first
		q.first = n.next.Load()
		n.value = *elem
		return n
	}

	return &spscNode[T]{value: *elem}
}
