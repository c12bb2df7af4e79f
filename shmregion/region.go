// Package shmregion implements ShmRegion (spec §4.1): a named,
// size-validated, memory-mapped byte window rooted at a session-scoped
// filesystem path. It is the allocation/mapping/teardown primitive that
// shmtopic builds its ring on top of.
//
// The mmap calls follow the same create-truncate-map shape the feeder's
// shm/matrix.go used with the syscall package; this version uses
// golang.org/x/sys/unix, the maintained superset of that package, while
// keeping the exact same sequence of operations.
package shmregion

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/horus-robotics/horus-core/horuserr"
)

// The ring bounds of spec I3 (shmtopic's MinCapacity, MaxCapacity and
// MaxTotalBytes) are enforced by shmtopic at create time; Region itself
// only validates that size is positive and at most MaxRegionSize.
const MaxRegionSize = 1 << 34 // 16 GiB; guards against absurd overflowed requests

// Region is a named, reference-counted, memory-mapped byte window.
type Region struct {
	name string
	path string
	data []byte

	mu       sync.Mutex
	refcount int
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Region{}
)

// Create allocates and maps a new region of exactly size bytes at path.
// It fails with ErrAlreadyExists if the backing file is already present.
func Create(path string, size int) (*Region, error) {
	if size <= 0 || size > MaxRegionSize {
		return nil, fmt.Errorf("region size %d: %w", size, horuserr.ErrInvalidSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), horuserr.ErrIO)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[path]; ok {
		return nil, fmt.Errorf("region %s: %w", path, horuserr.ErrAlreadyExists)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("region %s: %w", path, horuserr.ErrAlreadyExists)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w: %v", path, horuserr.ErrIO, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("truncate %s: %w: %v", path, horuserr.ErrIO, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("mmap %s: %w: %v", path, horuserr.ErrIO, err)
	}

	r := &Region{name: filepath.Base(path), path: path, data: data, refcount: 1}
	registry[path] = r
	return r, nil
}

// Open maps an existing region. It fails with ErrNotFound if the backing
// file does not exist.
func Open(path string) (*Region, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if r, ok := registry[path]; ok {
		r.mu.Lock()
		r.refcount++
		r.mu.Unlock()
		return r, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", path, horuserr.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w: %v", path, horuserr.ErrIO, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %v", path, horuserr.ErrIO, err)
	}
	size := int(st.Size())
	if size <= 0 {
		return nil, fmt.Errorf("region %s has zero size: %w", path, horuserr.ErrIO)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w: %v", path, horuserr.ErrIO, err)
	}

	r := &Region{name: filepath.Base(path), path: path, data: data, refcount: 1}
	registry[path] = r
	return r, nil
}

// Bytes returns the mapped byte window. Callers must not retain it past
// Drop.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the mapped region size in bytes.
func (r *Region) Size() int { return len(r.data) }

// Name returns the region's filesystem basename.
func (r *Region) Name() string { return r.name }

// Drop decrements the reference count, unmapping when it reaches zero.
// It never removes the backing file — only Destroy does that.
func (r *Region) Drop() error {
	registryMu.Lock()
	defer registryMu.Unlock()

	r.mu.Lock()
	r.refcount--
	last := r.refcount <= 0
	r.mu.Unlock()

	if !last {
		return nil
	}
	delete(registry, r.path)
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("munmap %s: %w: %v", r.path, horuserr.ErrIO, err)
	}
	return nil
}

// Destroy unlinks the backing file. Used only by explicit session
// teardown, never implicitly by Drop (spec §4.1).
func Destroy(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("destroy %s: %w: %v", path, horuserr.ErrIO, err)
	}
	return nil
}
