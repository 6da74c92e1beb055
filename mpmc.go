// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// MPMC is a multi-producer multi-consumer unbounded linked queue.
//
// The producer side is the MPSC enqueue: swap the shared head, publish
// the link through the predecessor's next field. The consumer side must
// CAS on tail because consumers race, and the losing consumer may still
// hold a pointer into the node the winner just unlinked. Dequeued nodes
// are therefore retired through a proxy collector instead of being
// recycled in place: the winner defers the node and the proxy runs the
// recycling callback once every reader that acquired before the
// retirement has released.
//
// The element copy happens before the tail CAS, so two racing consumers
// may both copy the same value before exactly one CAS wins. T must
// tolerate concurrent copying reads.
type MPMC[T any] struct {
	_     pad
	head  atomic.Pointer[mpmcNode[T]] // producers swap here
	_     pad
	tail  atomic.Pointer[mpmcNode[T]] // consumers CAS here
	_     pad
	proxy *Proxy
	pool  sync.Pool
}

type mpmcNode[T any] struct {
	next  atomic.Pointer[mpmcNode[T]]
	value T
}

// NewMPMC creates a new unbounded MPMC queue over the given proxy
// collector. The proxy may be shared between queues; it defers node
// recycling until no consumer can still hold a pointer into the node.
func NewMPMC[T any](p *Proxy) *MPMC[T] {
	if p == nil {
		panic("lfc: MPMC requires a proxy collector")
	}
	q := &MPMC[T]{
		proxy: p,
		pool: sync.Pool{New: func() any {
			return new(mpmcNode[T])
		}},
	}
	stub := &mpmcNode[T]{}
	q.head.Store(stub)
	q.tail.Store(stub)
	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Always returns nil; the queue is unbounded.
func (q *MPMC[T]) Enqueue(elem *T) error {
	n := q.pool.Get().(*mpmcNode[T])
	n.value = *elem
	n.next.Store(nil)

	prev := q.head.Swap(n)
	prev.next.Store(n)
	return nil
}

// Dequeue removes and returns an element (multiple consumers safe).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
//
// The whole operation runs under an acquired proxy handle: a consumer
// that loses the tail CAS has been reading a node another consumer
// already retired, and only the proxy reference keeps that node from
// being recycled under it.
func (q *MPMC[T]) Dequeue() (T, error) {
	h := q.proxy.Acquire()

	tail := q.tail.Load()
	sw := spin.Wait{}
	for {
		next := tail.next.Load()
		if next == nil {
			q.proxy.Release(h)
			var zero T
			return zero, ErrWouldBlock
		}

		elem := next.value
		if q.tail.CompareAndSwap(tail, next) {
			q.retire(tail)
			q.proxy.Release(h)
			return elem, nil
		}
		sw.Once()
		tail = q.tail.Load()
	}
}

// retire hands the unlinked node to the proxy. The callback clears and
// pools the node; it runs only when no reader can still reach it.
func (q *MPMC[T]) retire(n *mpmcNode[T]) {
	q.proxy.DeferRecycle(func() {
		var zero T
		n.value = zero
		n.next.Store(nil)
		q.pool.Put(n)
	})
}
