package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/horus-robotics/horus-core/scheduler"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func writeHeartbeat(t *testing.T, root, node string, hb map[string]any) {
	t.Helper()
	dir := filepath.Join(root, "heartbeats")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(hb)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, node), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestHeartbeatFreshness covers spec scenarios B5/S4: a stale heartbeat
// for a Running node is reported Frozen/Critical by discovery.
func TestHeartbeatFreshness(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	t0 := now.Add(-35 * time.Second)

	touch(t, filepath.Join(root, "pubsub_metadata", "alpha_ticks_pub"), now)
	writeHeartbeat(t, root, "alpha", map[string]any{
		"state":               "Running",
		"health":              "Healthy",
		"tick_count":          42,
		"target_rate_hz":      10,
		"actual_rate_hz":      10,
		"error_count":         0,
		"last_tick_timestamp": t0.Unix(),
		"heartbeat_timestamp": t0.Unix(),
	})

	d := New(root, "")
	snap, err := d.Scan(now)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Nodes) != 1 {
		t.Fatalf("Nodes = %+v, want 1 entry", snap.Nodes)
	}
	n := snap.Nodes[0]
	if n.State != "Frozen" || n.Health != "Critical" {
		t.Errorf("node state/health = %s/%s, want Frozen/Critical", n.State, n.Health)
	}
}

// TestTopicGCAfterInactivity covers spec scenario R2.
func TestTopicGCAfterInactivity(t *testing.T) {
	root := t.TempDir()
	topicPath := filepath.Join(root, "sessions", "s1", "topics", "t1")
	now := time.Now()
	old := now.Add(-61 * time.Second) // beyond default T_gc of 60s
	touch(t, topicPath, old)

	d := New(root, "")
	snap, err := d.Scan(now)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, top := range snap.Topics {
		if top.Name == "t1" {
			t.Fatalf("expected t1 to be garbage collected, got %+v", top)
		}
	}
	if _, err := os.Stat(topicPath); !os.IsNotExist(err) {
		t.Error("expected topic file to be unlinked after GC window")
	}
}

// TestMultiSchedulerDiscovery covers spec scenario S6.
func TestMultiSchedulerDiscovery(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	now := time.Now()

	touch(t, filepath.Join(root, "pubsub_metadata", "camera_frames_pub"), now)
	touch(t, filepath.Join(root, "pubsub_metadata", "lidar_scan_pub"), now)

	aliveReg := scheduler.Registry{
		PID: os.Getpid(), SchedulerName: "sched-a", WorkingDir: "/tmp/a",
		Nodes: []scheduler.NodeEntry{{Name: "camera", Priority: 1}},
	}
	deadReg := scheduler.Registry{
		PID: 999999, SchedulerName: "sched-b", WorkingDir: "/tmp/b",
		Nodes: []scheduler.NodeEntry{{Name: "lidar", Priority: 2}},
	}
	if _, err := aliveReg.Write(home); err != nil {
		t.Fatal(err)
	}
	deadPath, err := deadReg.Write(home)
	if err != nil {
		t.Fatal(err)
	}

	d := New(root, home)
	snap, err := d.Scan(now)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("Nodes = %+v, want union of both schedulers' nodes", snap.Nodes)
	}

	// Discovery should have deleted the dead scheduler's registry (R3).
	if _, err := os.Stat(deadPath); !os.IsNotExist(err) {
		t.Error("expected dead scheduler's registry file to be removed")
	}
}

func TestCacheCollapsesRapidScans(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(root, "pubsub_metadata", "alpha_ticks_pub"), now)

	d := New(root, "")
	first, err := d.Scan(now)
	if err != nil {
		t.Fatal(err)
	}
	// A node appearing after the first scan should not show up until the
	// cache window elapses.
	touch(t, filepath.Join(root, "pubsub_metadata", "beta_ticks_pub"), now)
	second, err := d.Scan(now.Add(1 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Nodes) != len(first.Nodes) {
		t.Fatalf("cached scan should be reused within CacheTTL, got %d vs %d nodes", len(second.Nodes), len(first.Nodes))
	}

	third, err := d.Scan(now.Add(DefaultCacheTTL + time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if len(third.Nodes) != 2 {
		t.Fatalf("expected a fresh scan after CacheTTL to see both nodes, got %d", len(third.Nodes))
	}
}
