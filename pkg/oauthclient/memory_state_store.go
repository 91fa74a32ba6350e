package oauthclient

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore is the single-process fallback used when no Redis
// is configured. Pending connections live only as long as the process;
// a restart mid-flow forces the user to start over, an acceptable loss
// given the short (≤10 minute) TTL.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	pc        PendingConnection
	expiresAt time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStateStore) Put(_ context.Context, pc PendingConnection, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[pc.State] = memoryEntry{pc: pc, expiresAt: time.Now().Add(ttl)}
	return nil
}

// PopAndValidate removes and returns the entry under the lock that
// also guards Put, so a concurrent callback replay for the same state
// can never both observe it present.
func (m *MemoryStateStore) PopAndValidate(_ context.Context, state string) (*PendingConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[state]
	delete(m.entries, state)
	if !ok {
		return nil, clientErrors.New(ErrStateNotFound).WithDetail("state", state)
	}
	if time.Now().After(entry.expiresAt) {
		return nil, clientErrors.New(ErrStateNotFound).WithDetail("state", state).WithDetail("reason", "expired")
	}
	pc := entry.pc
	return &pc, nil
}
