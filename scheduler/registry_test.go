package scheduler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryWriteReadRemove(t *testing.T) {
	home := t.TempDir()
	reg := Registry{
		PID:           4242,
		SchedulerName: "demo-scheduler",
		WorkingDir:    "/tmp/demo",
		Nodes: []NodeEntry{
			{
				Name:        "camera",
				Priority:    1,
				Publishers:  []PubSubEntry{{Topic: "frames", Type: "image"}},
				Subscribers: nil,
			},
		},
	}

	path, err := reg.Write(home)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	wantPath := RegistryPath(home, reg.PID)
	if path != wantPath {
		t.Errorf("Write path = %s, want %s", path, wantPath)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.SchedulerName != reg.SchedulerName || len(got.Nodes) != 1 {
		t.Fatalf("Read = %+v, want match of %+v", got, reg)
	}
	if got.Nodes[0].Publishers[0].Topic != "frames" {
		t.Errorf("Nodes[0].Publishers[0].Topic = %q, want frames", got.Nodes[0].Publishers[0].Topic)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be gone after Remove", path)
	}

	// Remove is idempotent (spec §4.6: shutdown removes the registry;
	// a scheduler that crashes mid-shutdown may retry).
	if err := Remove(path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestListRegistryFiles(t *testing.T) {
	home := t.TempDir()
	for _, pid := range []int{10, 20, 30} {
		reg := Registry{PID: pid, SchedulerName: "s", WorkingDir: home}
		if _, err := reg.Write(home); err != nil {
			t.Fatalf("Write pid=%d: %v", pid, err)
		}
	}
	// A non-registry file in the same directory must not be picked up.
	if err := os.WriteFile(filepath.Join(home, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	matches, err := ListRegistryFiles(home)
	if err != nil {
		t.Fatalf("ListRegistryFiles: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("ListRegistryFiles returned %d entries, want 3: %v", len(matches), matches)
	}
}
