package repository

import (
	"context"
	"sync"

	"github.com/foodlink/foodlink/pkg/model"
)

// Memory is an in-process Repository. Reads and writes copy the database so callers
// never share memory with the store.
type Memory struct {
	mu sync.RWMutex
	db *model.Database
}

// NewMemory creates a Memory repository seeded with db (may be nil)
func NewMemory(db *model.Database) *Memory {
	return &Memory{db: db.Clone()}
}

func (m *Memory) GetDatabase(ctx context.Context) (*model.Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Clone(), nil
}

func (m *Memory) PutDatabase(ctx context.Context, db *model.Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db.Clone()
	return nil
}

func (m *Memory) update(ctx context.Context, fn func(db *model.Database) error) (*model.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.db.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	m.db = work
	return work.Clone(), nil
}
