// Package snapshot provides the storage media for the workspace document.
package snapshot

import (
	"bytes"
	"context"
	"sync"

	"ghedit-go/internal/ws"
)

// MemoryStorage keeps the workspace document in memory.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

var _ ws.WorkspaceStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	return bytes.Clone(m.data), nil
}

func (m *MemoryStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = bytes.Clone(data)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
