package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingNode struct {
	name      string
	initN     int32
	tickN     int32
	shutdownN int32
	failTicks bool
}

func (n *countingNode) Name() string { return n.name }

func (n *countingNode) Init(ctx context.Context) error {
	atomic.AddInt32(&n.initN, 1)
	return nil
}

func (n *countingNode) Tick(ctx context.Context) error {
	atomic.AddInt32(&n.tickN, 1)
	if n.failTicks {
		return context.DeadlineExceeded
	}
	return nil
}

func (n *countingNode) Shutdown(ctx context.Context) error {
	atomic.AddInt32(&n.shutdownN, 1)
	return nil
}

func TestRunnerLifecycle(t *testing.T) {
	a := &countingNode{name: "a"}
	b := &countingNode{name: "b", failTicks: true}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	r := &Runner{TickInterval: 5 * time.Millisecond}
	if err := r.Run(ctx, []Node{a, b}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if atomic.LoadInt32(&a.initN) != 1 {
		t.Errorf("node a Init called %d times, want 1", a.initN)
	}
	if atomic.LoadInt32(&b.initN) != 1 {
		t.Errorf("node b Init called %d times, want 1", b.initN)
	}
	if atomic.LoadInt32(&a.shutdownN) != 1 {
		t.Errorf("node a Shutdown called %d times, want 1", a.shutdownN)
	}
	if atomic.LoadInt32(&b.shutdownN) != 1 {
		t.Errorf("node b Shutdown called %d times, want 1", b.shutdownN)
	}
	if atomic.LoadInt32(&a.tickN) == 0 {
		t.Error("node a should have ticked at least once")
	}
	// Failing ticks must not stop the node's own loop or block its peer.
	if atomic.LoadInt32(&b.tickN) == 0 {
		t.Error("node b should have kept ticking despite Tick errors")
	}
}
