// Package history records interpretation sessions.
package history

import (
	"context"
	"errors"
	"sync"

	"drawing-interpreter/internal/interpreter/models"
)

var ErrNotFound = errors.New("session not found")

// Store is the session history. Implementations are safe for concurrent use.
type Store interface {
	Append(ctx context.Context, s models.InterpretationSession) error
	// List returns the newest sessions first. A limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]models.InterpretationSession, error)
	Get(ctx context.Context, id string) (models.InterpretationSession, error)
}

// ============================================================
// Memory Store
// ============================================================

type MemoryStore struct {
	mu       sync.Mutex
	sessions []models.InterpretationSession
	capacity int
}

// NewMemoryStore keeps at most capacity sessions; zero keeps everything.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Append(_ context.Context, s models.InterpretationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = append(m.sessions, s)
	if m.capacity > 0 && len(m.sessions) > m.capacity {
		m.sessions = append([]models.InterpretationSession(nil), m.sessions[len(m.sessions)-m.capacity:]...)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]models.InterpretationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.sessions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.InterpretationSession, 0, n)
	for i := len(m.sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.sessions[i])
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (models.InterpretationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].ID == id {
			return m.sessions[i], nil
		}
	}
	return models.InterpretationSession{}, ErrNotFound
}
