package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Node is the minimal contract spec §9 describes between the scheduler
// and a node: init exactly once before the first tick, tick serially,
// shutdown exactly once after the last tick.
type Node interface {
	Name() string
	Init(ctx context.Context) error
	Tick(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Runner drives a fixed set of nodes. Each node's own ticks run serially
// on one goroutine (spec §5: "the Node contract guarantees tick() is
// invoked from at most one thread at a time per node"); different nodes
// run concurrently on an errgroup, which is the OS-level parallelism half
// of spec §5's scheduling model. Priority ordering and worker-count
// policy are explicitly scheduler concerns the core does not mandate
// (spec §4.6/§9) — this is the minimal reference runner, not the policy.
type Runner struct {
	TickInterval time.Duration
}

// Run blocks until ctx is done, ticking every node at TickInterval.
func (r *Runner) Run(ctx context.Context, nodes []Node) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		g.Go(func() error { return r.runNode(gctx, n) })
	}
	return g.Wait()
}

func (r *Runner) runNode(ctx context.Context, n Node) error {
	if err := n.Init(ctx); err != nil {
		return fmt.Errorf("node %s: init: %w", n.Name(), err)
	}

	interval := r.TickInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return n.Shutdown(context.Background())
		case <-ticker.C:
			if err := n.Tick(ctx); err != nil {
				// Tick failures are the node's own concern to classify
				// (spec §7: recoverable vs fatal); the runner discards the
				// error without logging it and keeps ticking until ctx
				// is done.
				continue
			}
		}
	}
}
