package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yungbote/medscribe-backend/internal/agent"
)

// MemoryStore is the in-process backend for tests and local development.
// Snapshots are stored as serialized bytes so a saved state can never be
// mutated through a retained pointer.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string][]byte
	leases map[string]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: map[string][]byte{},
		leases: map[string]chan struct{}{},
	}
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (*agent.State, error) {
	m.mu.Lock()
	raw, ok := m.states[threadID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var s agent.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot for thread %s: %w", threadID, err)
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, threadID string, s *agent.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot for thread %s: %w", threadID, err)
	}
	m.mu.Lock()
	m.states[threadID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Acquire(ctx context.Context, threadID string) (func(), error) {
	m.mu.Lock()
	lease, ok := m.leases[threadID]
	if !ok {
		lease = make(chan struct{}, 1)
		m.leases[threadID] = lease
	}
	m.mu.Unlock()

	select {
	case lease <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-lease }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MemoryStore) Close() error { return nil }
