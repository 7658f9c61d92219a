package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is applied when Set is called with a non-positive TTL.
const DefaultTTL = 10 * time.Minute

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process StateCache. It is safe for concurrent use
// and runs a background sweeper that evicts expired entries.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory cache whose default TTL is ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Memory{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(ttl / 2),
		done:    make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the value for key without consuming it.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Take atomically retrieves and deletes the value for key. Expired
// entries are treated as absent.
func (m *Memory) Take(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(m.entries, key)

	if time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) cleanupLoop() {
	for {
		select {
		case <-m.cleanup.C:
			m.evictExpired()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) evictExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// Len returns the current number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweeper goroutine.
func (m *Memory) Close() {
	m.once.Do(func() {
		m.cleanup.Stop()
		close(m.done)
	})
}
