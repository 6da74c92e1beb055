// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync"
	"sync/atomic"
)

// MPSC is a multi-producer single-consumer unbounded linked queue.
//
// Producers swap the shared head pointer to claim their predecessor,
// then publish the link by storing into the predecessor's next field.
// The swap linearizes producer order; per-producer enqueue order is
// preserved, cross-producer order is the order of the swaps.
//
// The single consumer owns tail and reclaims drained nodes through a
// sync.Pool; no external reclamation is needed.
//
// Between a producer's swap and its next store there is a window in
// which tail.next is still nil even though later enqueues may already
// be linked behind it. Dequeue reports empty during that window; the
// consumer must retry. A producer goroutine must not be abandoned
// between the two writes or all later items are stranded.
type MPSC[T any] struct {
	_    pad
	head atomic.Pointer[mpscNode[T]] // producers swap here
	_    pad
	tail *mpscNode[T] // consumer-owned
	_    pad
	pool sync.Pool
}

type mpscNode[T any] struct {
	next  atomic.Pointer[mpscNode[T]]
	value T
}

// NewMPSC creates a new unbounded MPSC queue.
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{
		pool: sync.Pool{New: func() any {
			return new(mpscNode[T])
		}},
	}
	stub := &mpscNode[T]{}
	q.head.Store(stub)
	q.tail = stub
	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Always returns nil; the queue is unbounded.
func (q *MPSC[T]) Enqueue(elem *T) error {
	n := q.pool.Get().(*mpscNode[T])
	n.value = *elem
	n.next.Store(nil)

	prev := q.head.Swap(n)
	prev.next.Store(n)
	return nil
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty, including
// the window in which an enqueue has swapped head but not yet published
// the link.
func (q *MPSC[T]) Dequeue() (T, error) {
	tail := q.tail
	next := tail.next.Load()
	if next == nil {
		var zero T
		return zero, ErrWouldBlock
	}

	q.tail = next
	elem := next.value
	var zero T
	next.value = zero

	tail.next.Store(nil)
	q.pool.Put(tail)
	return elem, nil
}
