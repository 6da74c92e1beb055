// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/lfc"
)

// =============================================================================
// Bounded Queue - Basic Operations
// =============================================================================

// TestBoundedBasic tests the fill/fail/drain cycle at minimum capacity.
func TestBoundedBasic(t *testing.T) {
	q := lfc.NewBounded[int](2)

	if q.Cap() != 2 {
		t.Fatalf("Cap: got %d, want 2", q.Cap())
	}

	// Enqueue to capacity
	for i := range 2 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	// Full queue returns ErrWouldBlock
	v := 2
	if err := q.Enqueue(&v); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}

	// Dequeue in FIFO order
	for i := range 2 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i)
		}
	}

	// Empty queue returns ErrWouldBlock
	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestBoundedRoundUp tests capacity rounding to the next power of 2.
func TestBoundedRoundUp(t *testing.T) {
	if got := lfc.NewBounded[int](3).Cap(); got != 4 {
		t.Fatalf("Cap(3): got %d, want 4", got)
	}
	if got := lfc.NewBounded[int](1000).Cap(); got != 1024 {
		t.Fatalf("Cap(1000): got %d, want 1024", got)
	}
}

// TestBoundedLaps tests that the sequence numbers survive multiple laps
// around the cell array.
func TestBoundedLaps(t *testing.T) {
	q := lfc.NewBounded[int](4)

	for lap := range 16 {
		for i := range 4 {
			v := lap*4 + i
			if err := q.Enqueue(&v); err != nil {
				t.Fatalf("lap %d: Enqueue(%d): %v", lap, i, err)
			}
		}
		for i := range 4 {
			val, err := q.Dequeue()
			if err != nil {
				t.Fatalf("lap %d: Dequeue(%d): %v", lap, i, err)
			}
			if val != lap*4+i {
				t.Fatalf("lap %d: Dequeue(%d): got %d, want %d", lap, i, val, lap*4+i)
			}
		}
	}
}

// =============================================================================
// SPSC Queue - Basic Operations
// =============================================================================

// TestSPSCBasic tests sequential enqueue/dequeue on the unbounded SPSC queue.
func TestSPSCBasic(t *testing.T) {
	q := lfc.NewSPSC[int]()

	// Empty queue returns ErrWouldBlock
	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}

	// Unbounded: enqueue never fails
	for i := range 100 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := range 100 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on drained: got %v, want ErrWouldBlock", err)
	}
}

// TestSPSCNodeCache tests that drained nodes are recycled: interleaved
// enqueue/dequeue cycles run the allocator path only for in-flight nodes.
func TestSPSCNodeCache(t *testing.T) {
	q := lfc.NewSPSC[int]()

	// Repeated cycles exercise alloc, recycle, and tailCopy refresh.
	for round := range 1000 {
		for i := range 4 {
			v := round*4 + i
			if err := q.Enqueue(&v); err != nil {
				t.Fatalf("round %d: Enqueue: %v", round, err)
			}
		}
		for i := range 4 {
			val, err := q.Dequeue()
			if err != nil {
				t.Fatalf("round %d: Dequeue: %v", round, err)
			}
			if val != round*4+i {
				t.Fatalf("round %d: got %d, want %d", round, val, round*4+i)
			}
		}
	}
}

// =============================================================================
// MPSC Queue - Basic Operations
// =============================================================================

// TestMPSCBasic tests sequential enqueue/dequeue on the unbounded MPSC queue.
func TestMPSCBasic(t *testing.T) {
	q := lfc.NewMPSC[int]()

	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}

	for i := range 100 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := range 100 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on drained: got %v, want ErrWouldBlock", err)
	}
}

// =============================================================================
// MPMC Unbounded Queue - Basic Operations
// =============================================================================

// TestMPMCBasic tests sequential enqueue/dequeue on the proxy-backed
// unbounded MPMC queue.
func TestMPMCBasic(t *testing.T) {
	p := lfc.NewProxy()
	q := lfc.NewMPMC[int](p)

	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}

	for i := range 100 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := range 100 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, lfc.ErrWouldBlock) {
		t.Fatalf("Dequeue on drained: got %v, want ErrWouldBlock", err)
	}
}

// TestMPMCNilProxy tests that construction without a proxy panics.
func TestMPMCNilProxy(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewMPMC(nil): expected panic")
		}
	}()
	lfc.NewMPMC[int](nil)
}

// =============================================================================
// Builder
// =============================================================================

// TestBuilderSelection tests algorithm selection from builder constraints.
func TestBuilderSelection(t *testing.T) {
	if _, ok := lfc.Build[int](lfc.New().SingleProducer().SingleConsumer()).(*lfc.SPSC[int]); !ok {
		t.Fatal("SP+SC: want *SPSC")
	}
	if _, ok := lfc.Build[int](lfc.New().SingleConsumer()).(*lfc.MPSC[int]); !ok {
		t.Fatal("SC: want *MPSC")
	}
	if _, ok := lfc.Build[int](lfc.New().Collector(lfc.NewProxy())).(*lfc.MPMC[int]); !ok {
		t.Fatal("no constraints: want *MPMC")
	}
	if _, ok := lfc.Build[int](lfc.New().Bounded(64)).(*lfc.Bounded[int]); !ok {
		t.Fatal("Bounded: want *Bounded")
	}
}

// TestBuilderConstraintPanics tests typed builder constraint enforcement.
func TestBuilderConstraintPanics(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		f()
	}

	mustPanic("BuildSPSC", func() { lfc.BuildSPSC[int](lfc.New()) })
	mustPanic("BuildMPSC", func() { lfc.BuildMPSC[int](lfc.New().SingleProducer().SingleConsumer()) })
	mustPanic("BuildMPMC", func() { lfc.BuildMPMC[int](lfc.New().SingleConsumer()) })
	mustPanic("BuildMPMC no proxy", func() { lfc.BuildMPMC[int](lfc.New()) })
	mustPanic("BuildBounded", func() { lfc.BuildBounded[int](lfc.New()) })
	mustPanic("Bounded(1)", func() { lfc.New().Bounded(1) })
	mustPanic("Build MPMC no proxy", func() { lfc.Build[int](lfc.New()) })
}

// TestBuilderTyped tests the typed builder constructors.
func TestBuilderTyped(t *testing.T) {
	q := lfc.BuildBounded[int](lfc.New().Bounded(8))
	if q.Cap() != 8 {
		t.Fatalf("Cap: got %d, want 8", q.Cap())
	}

	s := lfc.BuildSPSC[int](lfc.New().SingleProducer().SingleConsumer())
	v := 7
	if err := s.Enqueue(&v); err != nil {
		t.Fatalf("SPSC Enqueue: %v", err)
	}
	got, err := s.Dequeue()
	if err != nil || got != 7 {
		t.Fatalf("SPSC Dequeue: got (%d, %v), want (7, nil)", got, err)
	}

	m := lfc.BuildMPSC[int](lfc.New().SingleConsumer())
	if err := m.Enqueue(&v); err != nil {
		t.Fatalf("MPSC Enqueue: %v", err)
	}

	u := lfc.BuildMPMC[int](lfc.New().Collector(lfc.NewProxy()))
	if err := u.Enqueue(&v); err != nil {
		t.Fatalf("MPMC Enqueue: %v", err)
	}
}

// =============================================================================
// Error Classification
// =============================================================================

func TestErrorClassification(t *testing.T) {
	if !lfc.IsWouldBlock(lfc.ErrWouldBlock) {
		t.Fatal("IsWouldBlock(ErrWouldBlock): want true")
	}
	if !lfc.IsSemantic(lfc.ErrWouldBlock) {
		t.Fatal("IsSemantic(ErrWouldBlock): want true")
	}
	if !lfc.IsNonFailure(nil) {
		t.Fatal("IsNonFailure(nil): want true")
	}
	if !lfc.IsNonFailure(lfc.ErrWouldBlock) {
		t.Fatal("IsNonFailure(ErrWouldBlock): want true")
	}
	if lfc.IsWouldBlock(errors.New("boom")) {
		t.Fatal("IsWouldBlock(other): want false")
	}
}
