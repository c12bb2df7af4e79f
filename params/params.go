// Package params implements the runtime parameter store (spec §4.7): a
// flat key->JSON-value mapping persisted under the user's HORUS data
// directory. Parameters are not a messaging channel — changes made via
// Set are only visible to other processes after SaveToDisk and their own
// reload.
package params

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/horus-robotics/horus-core/horuserr"
)

// DefaultPath is $HOME/.horus/params.yaml (spec §6).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w: %v", horuserr.ErrIO, err)
	}
	return filepath.Join(home, ".horus", "params.yaml"), nil
}

// Store is the flat key->value parameter map.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// Init loads path from disk, or returns an empty store if it does not
// exist yet (spec §4.7 init()).
func Init(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]any)}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w: %v", path, horuserr.ErrIO, err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(b, &s.values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", path, horuserr.ErrConfiguration, err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	return s, nil
}

// GetAll returns a copy of every parameter currently held in memory.
func (s *Store) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value in memory. It is not visible to other processes
// until SaveToDisk is called.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SaveToDisk persists the in-memory parameter map as YAML, whole-file
// replace (temp-then-rename), the same atomic-write discipline the
// heartbeat writer uses.
func (s *Store) SaveToDisk() error {
	s.mu.RLock()
	b, err := yaml.Marshal(s.values)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal params: %w: %v", horuserr.ErrConfiguration, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w: %v", dir, horuserr.ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, ".params-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp params: %w: %v", horuserr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp params: %w: %v", horuserr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp params: %w: %v", horuserr.ErrIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename params into place: %w: %v", horuserr.ErrIO, err)
	}
	return nil
}
