package shmtopic

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/horus-robotics/horus-core/horuserr"
)

// S1: single producer, single consumer throughput sanity.
func TestPushPopSanity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t1")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()

	cons, err := Open[uint64](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cons.Close()

	for _, v := range []uint64{4, 5, 6} {
		if err := prod.Push(v); err != nil {
			t.Fatalf("Push(%d): %v", v, err)
		}
	}

	for _, want := range []uint64{4, 5, 6} {
		got, ok := cons.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}
	if _, ok := cons.Pop(); ok {
		t.Fatal("fourth Pop should be empty")
	}
}

// S2: fullness backpressure with no consumer attached.
func TestFullnessBackpressure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()

	for i := uint64(1); i <= 6; i++ {
		if err := prod.Push(i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	err = prod.Push(7)
	if err == nil {
		t.Fatal("7th push should fail with Full")
	}
	if horuserr.KindOf(err) != horuserr.KindFull {
		t.Errorf("KindOf = %v, want Full", horuserr.KindOf(err))
	}
}

// S3: late-joining consumer only sees messages published after it opens.
func TestLateJoiningConsumer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t3")
	prod, err := Create[uint64](path, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()

	firstConsumer, err := Open[uint64](path)
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	defer firstConsumer.Close()

	for i := uint64(0); i < 20; i++ {
		if err := prod.Push(i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
		if _, ok := firstConsumer.Pop(); !ok {
			t.Fatalf("first consumer should see message %d", i)
		}
	}

	late, err := Open[uint64](path)
	if err != nil {
		t.Fatalf("Open late: %v", err)
	}
	defer late.Close()

	if _, ok := late.Pop(); ok {
		t.Fatal("late consumer should see nothing before a new push")
	}

	if err := prod.Push(20); err != nil {
		t.Fatalf("Push(20): %v", err)
	}
	got, ok := late.Pop()
	if !ok || got != 20 {
		t.Fatalf("late.Pop() = %d, %v; want 20, true", got, ok)
	}
}

// P4: element size recorded at create equals what a later open reports.
func TestElementSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t4")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()

	type wrongShape struct{ A, B, C uint64 }
	_, err = Open[wrongShape](path)
	if err == nil {
		t.Fatal("expected ElementSizeMismatch")
	}
	if horuserr.KindOf(err) != horuserr.KindElementSizeMismatch {
		t.Errorf("KindOf = %v, want ElementSizeMismatch", horuserr.KindOf(err))
	}
}

// B2: pop on an empty ring returns ok=false and leaves the cursor put.
func TestPopEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t5")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()
	cons, err := Open[uint64](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cons.Close()

	if _, ok := cons.Pop(); ok {
		t.Fatal("expected empty ring")
	}
	before := cons.consumerTail
	if _, ok := cons.Pop(); ok {
		t.Fatal("still expected empty ring")
	}
	if cons.consumerTail != before {
		t.Errorf("consumer cursor moved on empty pop: %d -> %d", before, cons.consumerTail)
	}
}

func TestLoanCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t6")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()
	cons, err := Open[uint64](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cons.Close()

	h, err := prod.Loan()
	if err != nil {
		t.Fatalf("Loan: %v", err)
	}
	*h.Value() = 42
	if err := h.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, ok := cons.Pop()
	if !ok || got != 42 {
		t.Fatalf("Pop() = %d, %v; want 42, true", got, ok)
	}
}

// TestLeakCountDetectsUncommittedHandle covers spec §9: a WriteHandle
// dropped without Commit or Abort must eventually be counted as leaked,
// while a properly committed one must not.
func TestLeakCountDetectsUncommittedHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t8")
	prod, err := Create[uint64](path, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()

	good, err := prod.Loan()
	if err != nil {
		t.Fatalf("Loan (good): %v", err)
	}
	*good.Value() = 1
	if err := good.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	good = nil

	func() {
		leaked, err := prod.Loan()
		if err != nil {
			t.Fatalf("Loan (leaked): %v", err)
		}
		*leaked.Value() = 2
		leaked = nil // dropped without Commit or Abort
	}()

	deadline := time.Now().Add(2 * time.Second)
	for prod.LeakCount() == 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
	if prod.LeakCount() != 1 {
		t.Fatalf("LeakCount() = %d, want 1", prod.LeakCount())
	}
}

func TestInvalidCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t7")
	if _, err := Create[uint64](path, 1); err == nil {
		t.Fatal("expected CapacityOutOfRange for capacity below minimum")
	}
}
