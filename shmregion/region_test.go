package shmregion

import (
	"path/filepath"
	"testing"

	"github.com/horus-robotics/horus-core/horuserr"
)

func TestCreateOpenDestroy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topics", "t1")

	r, err := Create(path, 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Size() != 4096 {
		t.Errorf("Size = %d, want 4096", r.Size())
	}

	if _, err := Create(path, 4096); err == nil {
		t.Fatal("expected AlreadyExists on second Create")
	}

	r2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r2 != r {
		t.Fatalf("Open of a live region should return the same handle")
	}

	if err := r.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	// second holder still alive
	if err := r2.Drop(); err != nil {
		t.Fatalf("Drop (last): %v", err)
	}

	// region can be reopened fresh now that refcount hit zero.
	r3, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after drop: %v", err)
	}
	defer r3.Drop()

	if err := Destroy(path); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error")
	}
	if horuserr.KindOf(err) != horuserr.KindNotFound {
		t.Errorf("KindOf = %v, want NotFound", horuserr.KindOf(err))
	}
}
