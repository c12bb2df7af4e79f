package params

import (
	"path/filepath"
	"testing"
)

func TestSetSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")

	s, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := s.Get("max_speed"); ok {
		t.Fatal("expected empty store")
	}

	s.Set("max_speed", 2.5)
	if _, ok := s.Get("max_speed"); !ok {
		t.Fatal("Set should be visible in-process immediately")
	}

	s2, err := Init(path)
	if err != nil {
		t.Fatalf("Init (reload before save): %v", err)
	}
	if _, ok := s2.Get("max_speed"); ok {
		t.Fatal("a second store should not see an unsaved Set")
	}

	if err := s.SaveToDisk(); err != nil {
		t.Fatalf("SaveToDisk: %v", err)
	}

	s3, err := Init(path)
	if err != nil {
		t.Fatalf("Init (reload after save): %v", err)
	}
	v, ok := s3.Get("max_speed")
	if !ok {
		t.Fatal("expected max_speed after reload")
	}
	if f, ok := v.(float64); !ok || f != 2.5 {
		t.Errorf("max_speed = %v (%T), want 2.5", v, v)
	}
}
