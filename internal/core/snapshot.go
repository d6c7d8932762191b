package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSnapshotSize bounds the in-memory heading snapshot cache.
const DefaultSnapshotSize = 4096

// SnapshotStore remembers the last observed heading list of each document.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	Get(path string) ([]string, bool)
	Put(path string, headings []string)
}

// MemorySnapshots is a process-local SnapshotStore. Entries are never removed
// explicitly; the least recently used entry is dropped once size is reached.
type MemorySnapshots struct {
	cache *lru.Cache[string, []string]
}

// NewMemorySnapshots returns a store holding up to size documents.
// size <= 0 selects DefaultSnapshotSize.
func NewMemorySnapshots(size int) *MemorySnapshots {
	if size <= 0 {
		size = DefaultSnapshotSize
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, []string](size)
	return &MemorySnapshots{cache: cache}
}

// Get returns a copy of the stored headings for path.
func (m *MemorySnapshots) Get(path string) ([]string, bool) {
	hs, ok := m.cache.Get(path)
	if !ok {
		return nil, false
	}
	return append([]string(nil), hs...), true
}

// Put replaces the stored headings for path.
func (m *MemorySnapshots) Put(path string, headings []string) {
	m.cache.Add(path, append([]string(nil), headings...))
}

// Len returns the number of documents currently remembered.
func (m *MemorySnapshots) Len() int {
	return m.cache.Len()
}
