// Package scheduler implements the registry+heartbeat contract spec §4.6
// assigns to scheduler processes, plus a minimal reference Runner that
// exercises that contract end-to-end. Execution policy (priority order,
// worker count) is explicitly not specified by spec §4.6/§9 — Runner is
// the simplest thing that honors "call init once, tick serially, call
// shutdown once, write/remove the registry".
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PubSubEntry is one declared publisher or subscriber in a registry node
// entry (spec §6).
type PubSubEntry struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

// NodeEntry describes one node under a scheduler (spec §4.6/§6).
type NodeEntry struct {
	Name        string        `json:"name"`
	Priority    uint32        `json:"priority"`
	Publishers  []PubSubEntry `json:"publishers"`
	Subscribers []PubSubEntry `json:"subscribers"`
}

// Registry is the scheduler bookkeeping file (spec §4.6/§6).
type Registry struct {
	PID           int         `json:"pid"`
	SchedulerName string      `json:"scheduler_name"`
	WorkingDir    string      `json:"working_dir"`
	Nodes         []NodeEntry `json:"nodes"`
}

// RegistryPath builds the per-process registry filename under home, e.g.
// $HOME/.horus_registry_1234.json (spec §6: "filename must uniquely
// identify it").
func RegistryPath(home string, pid int) string {
	return filepath.Join(home, fmt.Sprintf(".horus_registry_%d.json", pid))
}

// Write creates the registry file. It must remain present while the
// scheduler runs (spec §4.6).
func (r Registry) Write(home string) (string, error) {
	path := RegistryPath(home, r.PID)
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write registry %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes the registry file, as a scheduler must on shutdown
// (spec §4.6).
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove registry %s: %w", path, err)
	}
	return nil
}

// Read parses a registry file.
func Read(path string) (Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("read registry %s: %w", path, err)
	}
	var r Registry
	if err := json.Unmarshal(b, &r); err != nil {
		return Registry{}, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return r, nil
}

// ListRegistryFiles globs every $HOME/.horus_registry*.json file.
func ListRegistryFiles(home string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(home, ".horus_registry*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob registries in %s: %w", home, err)
	}
	return matches, nil
}
