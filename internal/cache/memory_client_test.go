package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryClient is an in-process Client.
type MemoryClient struct {
	mu     sync.RWMutex
	data   map[string][]byte
	expiry map[string]time.Time
	closed bool
}

// NewMemoryClient creates an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		data:   make(map[string][]byte),
		expiry: make(map[string]time.Time),
	}
}

// Set stores a value with TTL.
func (m *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("client closed")
	}

	m.data[key] = append([]byte(nil), value...)
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

// Get retrieves a value.
func (m *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errors.New("client closed")
	}
	if exp, ok := m.expiry[key]; ok && time.Now().After(exp) {
		return nil, ErrNotFound
	}
	val, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

// Close marks the client closed.
func (m *MemoryClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
