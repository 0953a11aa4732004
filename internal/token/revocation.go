package token

import (
	"context"
	"sync"
	"time"
)

// RevocationRegistry tracks revoked access-token identifiers (jti claims)
// until at least their original expiry. One instance lives for the whole
// process; multi-node deployments swap in the Redis implementation.
type RevocationRegistry interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const pruneInterval = time.Minute

type MemoryRegistry struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	nextPrune time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries:   make(map[string]time.Time),
		nextPrune: time.Now().Add(pruneInterval),
	}
}

func (r *MemoryRegistry) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[jti]; !ok || expiresAt.After(existing) {
		r.entries[jti] = expiresAt
	}

	// opportunistic cleanup, correctness does not depend on it
	if now := time.Now(); now.After(r.nextPrune) {
		r.pruneLocked(now)
		r.nextPrune = now.Add(pruneInterval)
	}
	return nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[jti]
	return ok, nil
}

// Prune drops entries whose recorded expiry has passed. Entries with a
// future expiry are never removed.
func (r *MemoryRegistry) Prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
}

func (r *MemoryRegistry) pruneLocked(now time.Time) {
	for jti, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, jti)
		}
	}
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
