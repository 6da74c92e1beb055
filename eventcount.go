// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// EventCount lets a consumer block on an arbitrary predicate without
// losing wakeups. It is a waiter/notifier adapter over a counting
// semaphore: the queues in this package never block, so a consumer that
// wants to sleep on "queue non-empty" brackets its predicate check with
// PrepareWait/CommitWait while producers call Notify after publishing.
//
// The protocol closes the lost-wakeup window by re-evaluating the
// predicate between PrepareWait and CommitWait: a Notify issued after
// PrepareWait either observes waiting and posts the semaphore, or its
// associated state change is visible to that second evaluation.
//
// EventCount supports no timeouts and no cancellation; CommitWait
// blocks until a Notify posts.
type EventCount struct {
	waiting atomix.Bool
	_       padShort
	sem     semaphore
}

// NewEventCount creates an event-count with no waiter and an empty
// semaphore.
func NewEventCount() *EventCount {
	ec := &EventCount{}
	ec.sem.cond.L = &ec.sem.mu
	return ec
}

// PrepareWait announces the caller's intent to block. Must be followed
// by CancelWait or CommitWait.
//
// The store is sequentially consistent: it must be ordered before the
// caller's re-evaluation of the predicate so that it cannot be
// reordered past the loads the predicate performs.
func (ec *EventCount) PrepareWait() {
	ec.waiting.Store(true)
}

// CancelWait withdraws an announced wait after the predicate turned
// true on re-evaluation.
func (ec *EventCount) CancelWait() {
	ec.waiting.StoreRelease(false)
}

// CommitWait blocks until a Notify posts the semaphore.
func (ec *EventCount) CommitWait() {
	ec.sem.wait()
}

// Notify wakes an announced waiter. Callers publish their state change
// before calling Notify; the acquire load pairs with the waiter's
// PrepareWait store.
func (ec *EventCount) Notify() {
	if ec.waiting.LoadAcquire() {
		ec.waiting.StoreRelease(false)
		ec.sem.post()
	}
}

// Await blocks until pred returns true and returns that result.
//
// The predicate is evaluated optimistically first; on failure the caller
// announces the wait, re-evaluates (closing the lost-wakeup window),
// and only then commits to the semaphore.
func (ec *EventCount) Await(pred func() bool) bool {
	result := pred()
	for !result {
		ec.PrepareWait()
		result = pred()
		if result {
			ec.CancelWait()
			break
		}
		ec.CommitWait()
		result = pred()
	}
	return result
}

// semaphore is a minimal counting semaphore initialized to zero.
// Posts accumulate; wait consumes one post or blocks.
type semaphore struct {
	mu   sync.Mutex
	cond sync.Cond
	n    int
}

func (s *semaphore) wait() {
	s.mu.Lock()
	for s.n == 0 {
		s.cond.Wait()
	}
	s.n--
	s.mu.Unlock()
}

func (s *semaphore) post() {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	s.cond.Signal()
}
