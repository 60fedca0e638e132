// Package cache provides IdentityCache backings: an in-process TTL map for
// single-instance deployments and a Redis store for shared ones.
package cache

import (
	"context"
	"sync"
	"time"

	"petregistry/internal/auth"
)

type memoryEntry struct {
	identity  auth.Identity
	expiresAt time.Time
}

// Memory is a mutex-guarded TTL map. Expiry is lazy on read with an
// opportunistic sweep when the map outgrows its cap; last write wins.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	now        func() time.Time
	maxEntries int
}

func NewMemory() *Memory {
	return &Memory{
		entries:    make(map[string]memoryEntry),
		now:        func() time.Time { return time.Now().UTC() },
		maxEntries: 10000,
	}
}

// WithClock substitutes the wall clock, for deterministic expiry tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, accountID string) (auth.Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[accountID]
	if !ok {
		return auth.Identity{}, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, accountID)
		return auth.Identity{}, false, nil
	}

	return entry.identity, true, nil
}

func (m *Memory) Put(_ context.Context, accountID string, identity auth.Identity, ttl time.Duration) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[accountID] = memoryEntry{identity: identity, expiresAt: now.Add(ttl)}

	if len(m.entries) > m.maxEntries {
		for id, entry := range m.entries {
			if !now.Before(entry.expiresAt) {
				delete(m.entries, id)
			}
		}
	}

	return nil
}

func (m *Memory) Invalidate(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, accountID)
	return nil
}

var _ auth.IdentityCache = (*Memory)(nil)
