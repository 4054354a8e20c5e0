package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store.Get when no session exists for the
// channel address.
var ErrNotFound = errors.New("session: not found")

// Store is the persistence interface for sessions.
// Implementations must be safe for concurrent use and must hand out deep
// copies; mutating a returned session has no effect until Put is called.
type Store interface {
	// Get returns the session for channelID, or ErrNotFound.
	Get(ctx context.Context, channelID string) (*Session, error)

	// Put persists the session, creating or overwriting it.
	Put(ctx context.Context, sess *Session) error
}

// MemoryStore is an in-memory Store, used in tests and single-node
// deployments that can tolerate losing conversation position on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns a copy of the stored session or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, channelID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Put stores a copy of sess keyed by its channel address.
func (m *MemoryStore) Put(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ChannelID] = sess.Clone()
	return nil
}
