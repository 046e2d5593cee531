package local

import (
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by SetItem when the write would take the
// store past its byte quota.
var ErrQuotaExceeded = errors.New("quota exceeded")

// StringStore is a synchronous string key/value store in the shape of the
// browser's localStorage.
type StringStore interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string)
	Keys() []string
}

// Memory is an in-process StringStore guarded by a RWMutex. A positive
// Quota caps the summed length of keys and values in bytes.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
	used  int
	quota int
}

// NewMemory creates an empty store. quota <= 0 means unlimited.
func NewMemory(quota int) *Memory {
	return &Memory{items: make(map[string]string), quota: quota}
}

func (m *Memory) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// SetItem stores value under key. On quota failure the previous value
// stays in place.
func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(key) + len(value)
	if old, ok := m.items[key]; ok {
		used -= len(key) + len(old)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.items[key] = value
	m.used = used
	return nil
}

func (m *Memory) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.items, key)
	}
}

// Keys returns all keys in unspecified order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

// Used returns the bytes currently counted against the quota.
func (m *Memory) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
