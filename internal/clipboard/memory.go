package clipboard

import (
	"context"
	"sync"
	"time"
)

// MemoryClipboard keeps the content in process memory
type MemoryClipboard struct {
	mu         sync.Mutex
	config     Config
	data       []byte
	expiration time.Time
	now        func() time.Time
}

// NewMemoryClipboard creates an in-memory clipboard
func NewMemoryClipboard(config Config) *MemoryClipboard {
	return &MemoryClipboard{config: config, now: time.Now}
}

// Put replaces the clipboard content
func (m *MemoryClipboard) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = append([]byte(nil), data...)
	m.expiration = time.Time{}
	if m.config.TTL > 0 {
		m.expiration = m.now().Add(m.config.TTL)
	}
	return nil
}

// Get returns the clipboard content
func (m *MemoryClipboard) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.expiration.IsZero() && m.now().After(m.expiration) {
		m.data = nil
		m.expiration = time.Time{}
	}
	if m.data == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.data...), nil
}

// Clear empties the clipboard
func (m *MemoryClipboard) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.expiration = time.Time{}
	return nil
}
