// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Packed word layout, shared by ProxyRing.current and RingCollector.count:
//
//	bits 0..3  collector index (current only; always zero in count)
//	bit 4      GUARD (0x10)    epoch is quiescing (count only)
//	bits 5..   references, in units of 0x20
const (
	ringIndexMask = 0xF
	ringGuard     = 0x10
	ringReference = 0x20
)

// ProxyNode is an intrusive node managed by a ProxyRing. Callers embed
// their payload around it and may use Next for their own lock-free
// structures (stacks, lists); deferNext is the collector's private link.
type ProxyNode struct {
	Next      atomic.Pointer[ProxyNode]
	deferNext *ProxyNode
}

// RingCollector is one slot of a ProxyRing. Callers obtain one from
// Acquire and pass the same handle to Release, Sync and Collect.
type RingCollector struct {
	deferred   atomic.Pointer[ProxyNode] // retired nodes of this epoch
	deferCount atomix.Int64
	count      atomix.Int64 // GUARD + reference units (layout above)
	_          padShort
}

// ProxyRing is a proxy-reference-count collector with a fixed fanout of
// collectors in an array. Unlike Proxy it is allocation-free after
// construction, at the cost of bounding the epoch fanout and
// serializing epoch advancement through a single quiesce flag.
//
// A single atomic word packs the active collector index with a global
// reference count; Acquire bumps the word and decodes the index, so
// registering a reader is one fetch-add. Epoch advancement (quiesce)
// rotates the index, transfers the accumulated count into the old
// collector along with the GUARD bit, and the last releaser of the old
// epoch completes the transition.
//
// The proxy keeps the previous epoch's retired nodes until the next
// quiesce completes: a node retired in epoch E is reclaimed no earlier
// than the completion of epoch E+1, after every reader present during E
// has released.
type ProxyRing struct {
	_          pad
	current    atomix.Uint64 // index + reference accumulator (layout above)
	_          pad
	quiesce    atomix.Bool // serializes epoch advancement
	_          pad
	deferred   *ProxyNode // previous epoch's nodes; quiesce-holder owned
	collectors []RingCollector
	mask       uint64
	deferLimit int64
	reclaim    func(*ProxyNode)
}

// NewProxyRing creates an indexed proxy collector.
//
// fanout is the number of collectors: a power of two in [2, 16]
// (the index rides in the low nibble of the packed word). deferLimit
// is the retirement threshold: a collector accumulating
// deferLimit/2 retired nodes triggers quiescence. reclaim runs for
// every retired node once it is safe; nil drops the nodes and lets the
// garbage collector take them.
func NewProxyRing(deferLimit, fanout int, reclaim func(*ProxyNode)) *ProxyRing {
	if fanout < 2 || fanout > 16 || fanout&(fanout-1) != 0 {
		panic("lfc: fanout must be a power of 2 in [2, 16]")
	}
	if deferLimit < 2 {
		panic("lfc: deferLimit must be >= 2")
	}
	return &ProxyRing{
		collectors: make([]RingCollector, fanout),
		mask:       uint64(fanout - 1),
		deferLimit: int64(deferLimit),
		reclaim:    reclaim,
	}
}

// Acquire registers the caller as a reader of the current epoch.
// One fetch-add bumps the global reference count and selects the
// active collector.
func (p *ProxyRing) Acquire() *RingCollector {
	current := p.current.AddAcqRel(ringReference) - ringReference
	return &p.collectors[current&ringIndexMask]
}

// Release drops a reader reference. The releaser that observes the
// GUARD bit with exactly its own reference remaining completes the
// pending quiescence.
func (p *ProxyRing) Release(c *RingCollector) {
	count := c.count.AddAcqRel(-ringReference)
	if count&^int64(ringIndexMask) == ringGuard {
		p.quiesceComplete(c)
	}
}

// Sync exchanges a handle into a closing epoch for a fresh one. If c is
// not quiescing it is returned unchanged; long-running readers call
// Sync periodically so they never pin a retired epoch.
func (p *ProxyRing) Sync(c *RingCollector) *RingCollector {
	if c.count.LoadRelaxed()&ringGuard != 0 {
		p.Release(c)
		return p.Acquire()
	}
	return c
}

// Collect retires n under the handle c. The node is reclaimed once
// every reader present in c's epoch has released and the following
// epoch has completed. Crossing the retirement threshold begins
// quiescence.
func (p *ProxyRing) Collect(c *RingCollector, n *ProxyNode) {
	if n == nil {
		return
	}

	prev := c.deferred.Swap(n)
	n.deferNext = prev

	count := c.deferCount.Add(1)
	if count >= p.deferLimit/2 {
		p.quiesceBegin()
	}
}

// Quiesce begins epoch advancement without retiring anything. Reaper
// threads call it to bound the latency of deferred reclamation when
// writers go idle.
func (p *ProxyRing) Quiesce() {
	p.quiesceBegin()
}

func (p *ProxyRing) quiesceBegin() {
	// only one thread advances the epoch at a time
	if !p.quiesce.CompareAndSwapAcqRel(false, true) {
		return
	}

	// rotate current to the next collector, dropping the packed
	// reference accumulator in the same exchange
	var old uint64
	sw := spin.Wait{}
	for {
		cur := p.current.LoadRelaxed()
		if p.current.CompareAndSwapAcqRel(cur, ((cur&ringIndexMask)+1)&p.mask) {
			old = cur
			break
		}
		sw.Once()
	}
	c := &p.collectors[old&ringIndexMask]

	// transfer the accumulated references into the old collector and
	// set GUARD; if every referencing reader has already released, the
	// count lands exactly on GUARD and the transition completes here
	refs := int64(old &^ uint64(ringIndexMask))
	if c.count.AddAcqRel(refs+ringGuard) == ringGuard {
		p.quiesceComplete(c)
	}
}

func (p *ProxyRing) quiesceComplete(c *RingCollector) {
	// c is quiescent: no reader can reach its retired nodes anymore.
	// Maintain the back link: reclaim the previous epoch's nodes and
	// hold this epoch's until the next completion.
	n := p.deferred
	p.deferred = c.deferred.Load()
	c.deferred.Store(nil)

	c.count.StoreRelaxed(0)
	c.deferCount.StoreRelaxed(0)

	p.quiesce.StoreRelease(false)

	p.destroy(n)
}

func (p *ProxyRing) destroy(n *ProxyNode) {
	for n != nil {
		next := n.deferNext
		n.deferNext = nil
		if p.reclaim != nil {
			p.reclaim(n)
		}
		n = next
	}
}

// Close reclaims everything still deferred. It must not be called
// concurrently with any other operation; outstanding handles must have
// been released.
func (p *ProxyRing) Close() {
	p.destroy(p.deferred)
	p.deferred = nil
	for i := range p.collectors {
		c := &p.collectors[i]
		p.destroy(c.deferred.Load())
		c.deferred.Store(nil)
		c.deferCount.StoreRelaxed(0)
	}
}
