package dedup

import (
	"context"
	"sync"
)

// DurableBackend is the second storage tried by the Guard, typically the
// sqlite client_events table.
type DurableBackend interface {
	ClaimClientEvent(ctx context.Context, key string) (bool, error)
}

// Guard suppresses repeated client-side purchase pushes for the same order.
// Two backends are tried in sequence: process memory first, then the
// durable backend, so neither a restart nor a cleared cache alone defeats
// it.
type Guard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	durable DurableBackend
}

func NewGuard(durable DurableBackend) *Guard {
	return &Guard{
		seen:    make(map[string]struct{}),
		durable: durable,
	}
}

// Claim returns true if this is the first push for the key. A durable
// backend error is not fatal: the memory claim alone decides, since the
// guard is best-effort by contract.
func (g *Guard) Claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	_, dup := g.seen[key]
	g.seen[key] = struct{}{}
	g.mu.Unlock()

	if g.durable == nil {
		return !dup, nil
	}

	fresh, err := g.durable.ClaimClientEvent(ctx, key)
	if err != nil {
		return !dup, err
	}
	return !dup && fresh, nil
}
