package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryAdapter keeps items in a private map for the lifetime of the process.
type MemoryAdapter struct {
	prefix string

	items map[string][]byte

	mu sync.RWMutex
}

// NewMemoryAdapter creates a memory adapter scoped by prefix.
func NewMemoryAdapter(prefix string) *MemoryAdapter {
	return &MemoryAdapter{
		prefix: prefix,
		items:  make(map[string][]byte),
	}
}

// GetItem retrieves a copy of the stored value.
func (m *MemoryAdapter) GetItem(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[m.prefix+key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// SetItem stores a copy of value.
func (m *MemoryAdapter) SetItem(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[m.prefix+key] = stored
	return nil
}

// RemoveItem deletes a stored value. Removing a missing key is not an error.
func (m *MemoryAdapter) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, m.prefix+key)
	return nil
}

// Clear removes every item under the adapter's prefix.
func (m *MemoryAdapter) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.items {
		if strings.HasPrefix(k, m.prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

// Keys returns all stored keys in sorted order.
func (m *MemoryAdapter) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		if strings.HasPrefix(k, m.prefix) {
			keys = append(keys, strings.TrimPrefix(k, m.prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored items.
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

// Close releases the map.
func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string][]byte)
	return nil
}
