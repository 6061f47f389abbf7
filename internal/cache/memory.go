// Package cache provides answer memos that sit in front of the record
// store: an in-process TTL map and a Redis-backed variant.
package cache

import (
	"context"
	"sync"
	"time"
)

const defaultTTL = 24 * time.Hour

type entry struct {
	answer    string
	expiresAt time.Time
}

// Memory is a process-local memo. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	// nextSweep is when Set next drops every expired entry.
	nextSweep time.Time
}

// NewMemory returns an empty memo with the given entry TTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Memory{entries: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the answer for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.answer, true, nil
}

// Set stores answer under key. At most once per TTL it also evicts every
// expired entry, so keys that are never read again do not accumulate.
func (m *Memory) Set(_ context.Context, key, answer string) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !now.Before(m.nextSweep) {
		for k, e := range m.entries {
			if now.After(e.expiresAt) {
				delete(m.entries, k)
			}
		}
		m.nextSweep = now.Add(m.ttl)
	}
	m.entries[key] = entry{answer: answer, expiresAt: now.Add(m.ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
