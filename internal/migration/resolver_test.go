package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(store *fakeStore) (*OwnerResolver, *ReadThroughCache, *Stats, *AuditLog) {
	cache := NewReadThroughCache(100, time.Minute)
	stats := NewStats()
	audit := NewAuditLog(200)
	resolver := NewOwnerResolver(store, cache, stats, audit, testLogger(), "users", "companyId", 3)
	return resolver, cache, stats, audit
}

func TestResolverFirstMatchWins(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "A", map[string]any{"companyId": "CO-1"})
	seedUser(store, "B", map[string]any{"companyId": "CO-2"})

	resolver, _, _, _ := newTestResolver(store)

	// Both candidates resolve to valid owners; the first always wins even
	// though B is also valid.
	res, found := resolver.Resolve(context.Background(), "conv1", []any{"A", "B"})
	require.True(t, found)
	assert.Equal(t, "CO-1", res.OwnerID)
	assert.Equal(t, 0, res.ResolverIndex)
	assert.Equal(t, 1, res.CandidatesChecked)
}

func TestResolverSkipsInvalidCandidatesInOrder(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "noOwner", map[string]any{"name": "orphan"})
	seedUser(store, "good", map[string]any{"companyId": "CO-9"})

	resolver, _, stats, _ := newTestResolver(store)

	res, found := resolver.Resolve(context.Background(), "conv1",
		[]any{"", "missing", "noOwner", "good"})
	require.True(t, found)
	assert.Equal(t, "CO-9", res.OwnerID)
	assert.Equal(t, 3, res.ResolverIndex)
	assert.Equal(t, 4, res.CandidatesChecked)

	snap := stats.Snapshot("idle")
	assert.Equal(t, uint64(4), snap.TotalCandidatesChecked)
	assert.Equal(t, uint64(1), snap.UsersWithoutOwner)
	assert.Equal(t, uint64(1), snap.DataIntegrityIssues)
	assert.Equal(t, uint64(1), snap.ValidUsersFound)
}

func TestResolverNotFoundAfterExhaustion(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "u1", map[string]any{"companyId": ""})

	resolver, _, stats, audit := newTestResolver(store)

	_, found := resolver.Resolve(context.Background(), "conv1", []any{"u1", "ghost"})
	assert.False(t, found)

	snap := stats.Snapshot("idle")
	assert.Equal(t, uint64(1), snap.NoValidCandidateFound)

	entries := audit.Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusError, entries[0].Status)
}

func TestResolverWrongTypeCandidateCountsValidationError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "good", map[string]any{"companyId": "CO-3"})

	resolver, _, stats, _ := newTestResolver(store)

	res, found := resolver.Resolve(context.Background(), "conv1", []any{42.0, "good"})
	require.True(t, found)
	assert.Equal(t, 1, res.ResolverIndex)

	snap := stats.Snapshot("idle")
	assert.Equal(t, uint64(1), snap.ValidationErrors)
}

func TestResolverCacheCorrectness(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "hot", map[string]any{"companyId": "CO-7"})

	resolver, cache, _, _ := newTestResolver(store)

	// N resolutions of the same candidate inside the TTL window hit the
	// store exactly once.
	const n = 5
	for i := 0; i < n; i++ {
		res, found := resolver.Resolve(context.Background(), "conv", []any{"hot"})
		require.True(t, found)
		assert.Equal(t, "CO-7", res.OwnerID)
	}
	assert.Equal(t, 1, store.getCalls)

	stats := cache.Stats()
	assert.Equal(t, uint64(n-1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestResolverCacheExpiryTriggersReload(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedUser(store, "hot", map[string]any{"companyId": "CO-7"})

	resolver, cache, _, _ := newTestResolver(store)
	current := time.Now()
	cache.now = func() time.Time { return current }

	_, found := resolver.Resolve(context.Background(), "conv", []any{"hot"})
	require.True(t, found)
	require.Equal(t, 1, store.getCalls)

	current = current.Add(2 * time.Minute)
	_, found = resolver.Resolve(context.Background(), "conv", []any{"hot"})
	require.True(t, found)
	assert.Equal(t, 2, store.getCalls, "expired entry must trigger a fresh point read")
}
