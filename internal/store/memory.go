package store

import (
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store with the same quota semantics as SQLite.
// Used for ephemeral sessions and tests.
type Memory struct {
	quota int64

	mu   sync.RWMutex
	data map[string]string
	used int64
}

// NewMemory returns an empty in-memory store. quotaBytes zero or negative
// means unlimited.
func NewMemory(quotaBytes int64) *Memory {
	return &Memory{
		quota: quotaBytes,
		data:  make(map[string]string),
	}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var old int64
	if prev, ok := m.data[key]; ok {
		old = size(key, prev)
	}

	next := m.used - old + size(key, value)
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("writing %q (%d bytes over %d): %w", key, next-m.quota, m.quota, ErrQuotaExceeded)
	}

	m.data[key] = value
	m.used = next
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.data[key]; ok {
		m.used -= size(key, prev)
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
