package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_RevokeAndCheck(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRegistry_Revoke_Idempotent(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, r.Revoke(ctx, "jti-1", exp))
	require.NoError(t, r.Revoke(ctx, "jti-1", exp))

	assert.Equal(t, 1, r.Len())
}

func TestMemoryRegistry_RevokedStaysRevokedPastExpiry(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()

	// expiry already passed, entry must still read revoked until pruned
	require.NoError(t, r.Revoke(ctx, "jti-old", time.Now().Add(-time.Hour)))

	revoked, err := r.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRegistry_Prune(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Revoke(ctx, "jti-past", now.Add(-time.Hour)))
	require.NoError(t, r.Revoke(ctx, "jti-future", now.Add(time.Hour)))

	r.Prune(now)

	revoked, err := r.IsRevoked(ctx, "jti-past")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-future")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, r.Len())
}

func TestMemoryRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jti := fmt.Sprintf("jti-%d", i)
			_ = r.Revoke(ctx, jti, exp)
			revoked, err := r.IsRevoked(ctx, jti)
			assert.NoError(t, err)
			assert.True(t, revoked)
			r.Prune(time.Now())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
