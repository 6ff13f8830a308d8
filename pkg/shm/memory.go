package shm

import (
	"fmt"
	"sync"
)

// MemRegion is an in-process region. It is used in tests and to feed
// the provider from a simulated producer without touching the OS.
type MemRegion struct {
	mu     sync.RWMutex
	data   []byte
	closed bool
}

func NewMemRegion(size int) *MemRegion {
	return &MemRegion{data: make([]byte, size)}
}

func (m *MemRegion) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off >= int64(len(m.data)) {
		return 0, ErrTruncatedRead
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, ErrTruncatedRead
	}
	return n, nil
}

func (m *MemRegion) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	return copy(m.data[off:], p), nil
}

// Truncate shrinks or grows the region.
func (m *MemRegion) Truncate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < len(m.data) {
		m.data = m.data[:size]
		return
	}
	m.data = append(m.data, make([]byte, size-len(m.data))...)
}

// Close marks the region closed. The data stays accessible so the region
// can be reopened through MemRegistry.
func (m *MemRegion) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemRegion) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// MemRegistry is a set of named MemRegions with an OpenFunc.
type MemRegistry struct {
	mu      sync.Mutex
	regions map[string]*MemRegion
	opened  int
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{regions: make(map[string]*MemRegion)}
}

func (r *MemRegistry) Add(name string, region *MemRegion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[name] = region
}

func (r *MemRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regions, name)
}

// Opened returns the number of successful Open calls.
func (r *MemRegistry) Opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

func (r *MemRegistry) Open(name string, _ int) (Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	region, ok := r.regions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegionUnavailable, name)
	}
	region.mu.Lock()
	region.closed = false
	region.mu.Unlock()
	r.opened++
	return region, nil
}
