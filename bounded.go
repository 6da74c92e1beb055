// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Bounded is an array-based multi-producer multi-consumer bounded queue.
//
// Each cell carries a sequence number that alternates between "writable at
// position p" and "readable at position p". The difference between a cell's
// sequence and the current position classifies the slot:
//
//	seq - pos == 0  slot ready for this position
//	seq - pos  < 0  slot still holds the previous lap (full/empty)
//	seq - pos  > 0  another thread advanced the position; reload
//
// Wraparound is encoded in sequence increments of the capacity, so the
// sign test discriminates full/empty/lapped without separate counters.
// A producer's release store on the cell sequence transfers ownership of
// the payload to the consumer that observes it with an acquire load.
//
// No reclamation is needed: cells live for the queue's lifetime.
//
// Memory: n slots, each padded to a cache line
type Bounded[T any] struct {
	_          pad
	enqueuePos atomix.Uint64 // Producers CAS here
	_          pad
	dequeuePos atomix.Uint64 // Consumers CAS here
	_          pad
	buffer     []boundedCell[T]
	mask       uint64
	capacity   uint64
}

type boundedCell[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort // Pad to cache line
}

// NewBounded creates a new bounded MPMC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 2 {
		panic("lfc: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &Bounded[T]{
		buffer:   make([]boundedCell[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full. A full indication is
// immediate: the chosen cell still holds an unread element from the
// previous lap, and no retry can succeed until a consumer drains it.
func (q *Bounded[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		pos := q.enqueuePos.LoadAcquire()
		cell := &q.buffer[pos&q.mask]
		seq := cell.seq.LoadAcquire()
		diff := int64(seq) - int64(pos)

		if diff == 0 {
			if q.enqueuePos.CompareAndSwapAcqRel(pos, pos+1) {
				cell.data = *elem
				cell.seq.StoreRelease(pos + 1)
				return nil
			}
		} else if diff < 0 {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Bounded[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	for {
		pos := q.dequeuePos.LoadAcquire()
		cell := &q.buffer[pos&q.mask]
		seq := cell.seq.LoadAcquire()
		diff := int64(seq) - int64(pos+1)

		if diff == 0 {
			if q.dequeuePos.CompareAndSwapAcqRel(pos, pos+1) {
				elem := cell.data
				var zero T
				cell.data = zero
				cell.seq.StoreRelease(pos + q.capacity)
				return elem, nil
			}
		} else if diff < 0 {
			var zero T
			return zero, ErrWouldBlock
		}
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int {
	return int(q.capacity)
}
