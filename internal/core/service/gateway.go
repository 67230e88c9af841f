package service

import (
	"context"
	"sync"
	"time"

	"github.com/km2209/onion-gateway/internal/core/domain"
	"github.com/km2209/onion-gateway/internal/port"
)

// Gateway dispatches validated operations to the resource store once the
// declared host clears the guard. Every successful mutation is pushed onto
// the change queue for the async audit workers.
type Gateway struct {
	guard *HostGuard
	store port.ResourceStore

	mu      sync.RWMutex
	closed  bool
	changes chan domain.Change
}

func NewGateway(guard *HostGuard, store port.ResourceStore, queueSize int) *Gateway {
	return &Gateway{
		guard:   guard,
		store:   store,
		changes: make(chan domain.Change, queueSize),
	}
}

// AuthorizeHost exposes the guard decision for routes that do not touch
// the store, such as the health probe.
func (g *Gateway) AuthorizeHost(declaredHost string) bool {
	return g.guard.Authorize(declaredHost)
}

func (g *Gateway) CreateResource(ctx context.Context, declaredHost, title, description string) (domain.Resource, error) {
	if !g.guard.Authorize(declaredHost) {
		return domain.Resource{}, domain.ErrHostRejected
	}

	res, err := g.store.Create(ctx, title, description)
	if err != nil {
		return domain.Resource{}, err
	}
	g.emit(domain.ChangeKindCreated, res.ID, res.Version)
	return res, nil
}

func (g *Gateway) GetResource(ctx context.Context, declaredHost, id string) (domain.Resource, error) {
	if !g.guard.Authorize(declaredHost) {
		return domain.Resource{}, domain.ErrHostRejected
	}
	return g.store.Get(ctx, id)
}

func (g *Gateway) ListResources(ctx context.Context, declaredHost string) ([]domain.Resource, error) {
	if !g.guard.Authorize(declaredHost) {
		return nil, domain.ErrHostRejected
	}
	return g.store.List(ctx)
}

func (g *Gateway) UpdateResource(ctx context.Context, declaredHost, id string, expectedVersion int64, title, description *string) (domain.Resource, error) {
	if !g.guard.Authorize(declaredHost) {
		return domain.Resource{}, domain.ErrHostRejected
	}

	res, err := g.store.Update(ctx, id, expectedVersion, title, description)
	if err != nil {
		return domain.Resource{}, err
	}
	g.emit(domain.ChangeKindUpdated, res.ID, res.Version)
	return res, nil
}

func (g *Gateway) DeleteResource(ctx context.Context, declaredHost, id string, expectedVersion int64) error {
	if !g.guard.Authorize(declaredHost) {
		return domain.ErrHostRejected
	}

	if err := g.store.Delete(ctx, id, expectedVersion); err != nil {
		return err
	}
	g.emit(domain.ChangeKindDeleted, id, expectedVersion)
	return nil
}

func (g *Gateway) emit(kind domain.ChangeKind, id string, version int64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		// Shutdown raced an in-flight mutation: the request already
		// committed, so drop its journal entry instead of panicking on
		// the closed queue.
		return
	}
	g.changes <- domain.Change{
		Kind:       kind,
		ResourceID: id,
		Version:    version,
		At:         time.Now().UTC(),
	}
}

func (g *Gateway) Changes() <-chan domain.Change {
	return g.changes
}

// Close stops the change queue. Safe to call while requests are still in
// flight, including the force-close shutdown path: in-flight emits finish
// first, later ones skip the journal.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	close(g.changes)
}
