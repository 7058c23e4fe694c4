package session

import (
	"context"
	"sync"

	"ghedit-go/internal/ws"
)

// MemoryStore keeps the session for the lifetime of the process.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	state *ws.SessionState
}

var _ ws.SessionStorage = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*ws.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, state ws.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
