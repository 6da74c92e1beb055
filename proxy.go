// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Reference-count bit layout, shared by Collector.count and the sequence
// half of the proxy's packed words:
//
//	bit 0      GUARD    the collector is still the current tail
//	bits 1..   external references, in units of REFERENCE
const (
	proxyGuard     = 1
	proxyReference = 2
)

// Collector is one epoch of a Proxy. Callers obtain one from Acquire and
// must pass the same handle to Release.
type Collector struct {
	// count packs the GUARD bit with reference units (layout above).
	// It drains to zero when the epoch is retired and the last reader
	// has released.
	count atomix.Int64
	// next is a (sequence, pointer) pair linking to the successor epoch.
	next atomix.Uint128
	// deferred runs when the predecessor epoch drains.
	deferred func()
	// reg keeps every collector reachable by the garbage collector;
	// the packed words above hide their pointees from it.
	reg *Collector
}

func (c *Collector) reset() {
	c.count.Store(0)
	c.next.StoreRelaxed(0, 0)
	c.deferred = nil
}

// Proxy is a proxy-reference-count collector with pooled, linked epochs.
//
// Readers bracket their traversals with Acquire/Release. Writers retire
// objects with DeferRecycle; the retirement callback runs once every
// reader that acquired before the retirement has released. Each
// DeferRecycle opens a fresh epoch: the global tail is a
// (sequence, pointer) pair whose sequence half accumulates the external
// references handed out for the current epoch, and whose pointer half is
// swapped to the new collector. The sequence tag doubles as the ABA
// defense for the pointer.
//
// Epochs form a singly linked lifecycle list with two cursors: tail (the
// epoch new acquirers attach to) and the freeHead..freeTail span of
// drained, recyclable collectors. Collector allocation is amortized by
// that free list; the deferred-work depth is unbounded.
//
// Calling Release with a handle that was never acquired is undefined.
// Close may be called once no goroutine uses the proxy to run
// retirement callbacks that never became due during the run.
type Proxy struct {
	_        pad
	tail     atomix.Uint128 // lo=accumulated external refs, hi=*Collector
	_        pad
	freeHead atomix.Uint128 // lo=ABA tag, hi=*Collector
	_        pad
	freeTail atomix.Uint128 // lo=ABA tag, hi=*Collector
	_        pad
	registry atomic.Pointer[Collector]
}

// packCollector and unpackCollector are the unsafe kernel of the proxy:
// collector pointers ride in the hi half of 128-bit atomic words. Every
// collector is also linked into the proxy's registry through an ordinary
// pointer field, so the objects behind the packed words are always
// reachable and the round-trip through uintptr cannot outlive them.
func packCollector(c *Collector) uint64 {
	return uint64(uintptr(unsafe.Pointer(c)))
}

func unpackCollector(v uint64) *Collector {
	return (*Collector)(unsafe.Pointer(uintptr(v)))
}

// NewProxy creates a proxy collector with a single live epoch.
func NewProxy() *Proxy {
	p := &Proxy{}
	c := &Collector{}
	c.count.StoreRelaxed(proxyGuard + proxyReference)
	p.register(c)

	w := packCollector(c)
	p.tail.StoreRelaxed(0, w)
	p.freeHead.StoreRelaxed(0, w)
	p.freeTail.StoreRelaxed(0, w)
	return p
}

func (p *Proxy) register(c *Collector) {
	sw := spin.Wait{}
	for {
		head := p.registry.Load()
		c.reg = head
		if p.registry.CompareAndSwap(head, c) {
			return
		}
		sw.Once()
	}
}

// Acquire registers the caller as a reader of the current epoch.
// The returned handle must be passed to Release.
func (p *Proxy) Acquire() *Collector {
	sw := spin.Wait{}
	for {
		seq, ptr := p.tail.LoadRelaxed()
		if p.tail.CompareAndSwapRelaxed(seq, ptr, seq+proxyReference, ptr) {
			return unpackCollector(ptr)
		}
		sw.Once()
	}
}

// Release drops a reader reference obtained from Acquire. When the last
// reader of a retired epoch releases, the chain of due retirement
// callbacks runs and the drained collectors return to the free list.
func (p *Proxy) Release(c *Collector) {
	p.releaseAdjust(c, 0)
}

// DeferRecycle retires an object. f runs once every reader whose Acquire
// returned before this call has released. Each call installs a fresh
// collector as the new tail and transfers the old tail's accumulated
// external references into its internal count.
func (p *Proxy) DeferRecycle(f func()) {
	c := p.allocCollector()
	c.count.StoreRelaxed(proxyGuard + 2*proxyReference)
	c.deferred = f

	w := packCollector(c)
	sw := spin.Wait{}
	for {
		seq, ptr := p.tail.LoadAcquire()
		if p.tail.CompareAndSwapAcqRel(seq, ptr, 0, w) {
			old := unpackCollector(ptr)
			old.next.StoreRelaxed(0, w)
			p.releaseAdjust(old, int64(seq)-proxyGuard)
			return
		}
		sw.Once()
	}
}

// releaseAdjust subtracts adjust-corrected references from c and walks
// the epoch chain while collectors drain to zero. Each drained collector
// is appended to the free span; its successor's deferred callback is now
// safe and runs. After the first hop the adjustment is a plain reader
// release (REFERENCE).
func (p *Proxy) releaseAdjust(c *Collector, adjust int64) {
	current := c
	adjusted := int64(proxyReference) - adjust

	for current.count.LoadAcquire() == adjusted ||
		current.count.AddAcqRel(-adjusted) == 0 {
		_, nextPtr := current.next.LoadRelaxed()

		// the drained collector becomes recyclable: advance freeTail
		sw := spin.Wait{}
		for {
			ftSeq, ftPtr := p.freeTail.LoadAcquire()
			ftNextSeq, ftNextPtr := unpackCollector(ftPtr).next.LoadRelaxed()
			if p.freeTail.CompareAndSwapAcqRel(ftSeq, ftPtr, ftNextSeq, ftNextPtr) {
				break
			}
			sw.Once()
		}

		current = unpackCollector(nextPtr)
		if current.deferred != nil {
			current.deferred()
			current.deferred = nil
		}
		adjusted = proxyReference
	}
}

// allocCollector pops a drained collector off the freeHead..freeTail
// span, or allocates a fresh one when the span is empty. The sequence
// half of freeHead is bumped on every pop so a recycled pointer cannot
// be mistaken for the value an in-flight CAS expects.
func (p *Proxy) allocCollector() *Collector {
	sw := spin.Wait{}
	for {
		hSeq, hPtr := p.freeHead.LoadAcquire()
		_, tPtr := p.freeTail.LoadRelaxed()
		if hPtr == tPtr {
			break
		}

		_, nPtr := unpackCollector(hPtr).next.LoadRelaxed()
		if p.freeHead.CompareAndSwapAcqRel(hSeq, hPtr, hSeq+proxyGuard, nPtr) {
			c := unpackCollector(hPtr)
			c.reset()
			return c
		}
		sw.Once()
	}

	c := &Collector{}
	p.register(c)
	return c
}

// Close runs the retirement callbacks still parked on the lifecycle
// list, including ones stranded by an abandoned handle. It must not be
// called concurrently with any other operation.
func (p *Proxy) Close() {
	_, ptr := p.freeHead.LoadRelaxed()
	for c := unpackCollector(ptr); c != nil; {
		if c.deferred != nil {
			c.deferred()
			c.deferred = nil
		}
		_, next := c.next.LoadRelaxed()
		c = unpackCollector(next)
	}
}
