package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/km2209/onion-gateway/internal/core/domain"
)

type memoryEntry struct {
	mu      sync.Mutex
	res     domain.Resource
	deleted bool
}

// MemoryAdapter is the default in-process backend. A store-wide lock guards
// the maps; a per-entry lock serializes mutations on a single resource so
// operations on different ids do not block each other.
type MemoryAdapter struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	order      []string
	tombstones map[string]struct{}
	newID      func() string
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entries:    make(map[string]*memoryEntry),
		tombstones: make(map[string]struct{}),
		newID:      uuid.NewString,
	}
}

// freshID returns an id this store has never handed out, live or
// tombstoned. Caller holds m.mu.
func (m *MemoryAdapter) freshID() string {
	for {
		id := m.newID()
		if _, ok := m.tombstones[id]; ok {
			continue
		}
		if _, ok := m.entries[id]; ok {
			continue
		}
		return id
	}
}

func (m *MemoryAdapter) Create(ctx context.Context, title, description string) (domain.Resource, error) {
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Resource{}, err
	}

	now := time.Now().UTC()
	res := domain.Resource{
		Title:       title,
		Description: description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	res.ID = m.freshID()
	m.entries[res.ID] = &memoryEntry{res: res}
	m.order = append(m.order, res.ID)
	m.mu.Unlock()

	return res, nil
}

func (m *MemoryAdapter) Get(ctx context.Context, id string) (domain.Resource, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Resource{}, domain.ErrNotFound
	}
	return e.res, nil
}

func (m *MemoryAdapter) List(ctx context.Context) ([]domain.Resource, error) {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	entries := make([]*memoryEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	out := make([]domain.Resource, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.res)
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (m *MemoryAdapter) Update(ctx context.Context, id string, expectedVersion int64, title, description *string) (domain.Resource, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return domain.Resource{}, domain.ErrNotFound
	}
	if e.res.Version != expectedVersion {
		return domain.Resource{}, domain.ErrVersionConflict
	}
	if title != nil {
		if err := domain.ValidateTitle(*title); err != nil {
			return domain.Resource{}, err
		}
		e.res.Title = *title
	}
	if description != nil {
		e.res.Description = *description
	}
	e.res.Version++
	e.res.UpdatedAt = time.Now().UTC()

	return e.res, nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, id string, expectedVersion int64) error {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	if e.res.Version != expectedVersion {
		e.mu.Unlock()
		return domain.ErrVersionConflict
	}
	e.deleted = true
	e.mu.Unlock()

	// Tombstone: the id stays unknown forever and is never reissued.
	m.mu.Lock()
	delete(m.entries, id)
	m.tombstones[id] = struct{}{}
	m.mu.Unlock()

	return nil
}

func (m *MemoryAdapter) Close(ctx context.Context) error {
	return nil
}
