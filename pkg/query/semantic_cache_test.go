package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/query"
)

func cacheKey(snapshotID string) query.SemanticCacheKey {
	return query.SemanticCacheKey{
		ModelID:             "embedding-default-v1",
		SnapshotID:          snapshotID,
		Mode:                query.ModeEvidence,
		SearchMode:          query.SearchLocal,
		EffectiveSearchMode: query.SearchLocal,
		TopK:                5,
		TraversalDepth:      2,
	}
}

func TestSemanticCacheHitsForSimilarQuery(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          16,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             true,
	})
	key := cacheKey("wal-lsn-10")
	cache.Insert(key, "Toyota EV strategy in 2024", 42)

	hit, ok := cache.Lookup(key, "2024 Toyota EV strategy overview")
	require.True(t, ok)
	require.Equal(t, 42, hit)
}

func TestSemanticCacheIsolatedBySnapshotID(t *testing.T) {
	cache := query.NewSemanticCache[int](query.DefaultSemanticCacheConfig())
	cache.Insert(cacheKey("wal-lsn-10"), "Toyota EV strategy", 1)

	_, ok := cache.Lookup(cacheKey("wal-lsn-11"), "Toyota EV strategy")
	require.False(t, ok)
}

func TestSemanticCacheEvictsInLRUOrder(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          2,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             true,
		EvictionPolicy:      query.EvictionLRU,
	})
	key := cacheKey("wal-lsn-10")

	cache.Insert(key, "query one", 1)
	cache.Insert(key, "query two", 2)
	cache.Insert(key, "query three", 3)

	_, ok := cache.Lookup(key, "query one")
	require.False(t, ok)

	hit, ok := cache.Lookup(key, "query two")
	require.True(t, ok)
	require.Equal(t, 2, hit)

	hit, ok = cache.Lookup(key, "query three")
	require.True(t, ok)
	require.Equal(t, 3, hit)
}

func TestSemanticCacheRespectsTTL(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          16,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             true,
		TTL:                 10 * time.Millisecond,
	})
	key := cacheKey("wal-lsn-10")
	cache.Insert(key, "test query", 42)

	hit, ok := cache.Lookup(key, "test query")
	require.True(t, ok)
	require.Equal(t, 42, hit)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Lookup(key, "test query")
	require.False(t, ok)
}

func TestSemanticCacheRespectsMinQueryLength(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          16,
		SimilarityThreshold: 0.6,
		MinQueryLength:      10,
		Enabled:             true,
	})
	key := cacheKey("wal-lsn-10")

	cache.Insert(key, "hi", 42)
	_, ok := cache.Lookup(key, "hi")
	require.False(t, ok)

	cache.Insert(key, "hello world query", 43)
	hit, ok := cache.Lookup(key, "hello world query")
	require.True(t, ok)
	require.Equal(t, 43, hit)
}

func TestSemanticCacheCanBeDisabled(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          16,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             false,
	})
	key := cacheKey("wal-lsn-10")

	cache.Insert(key, "test query", 42)
	_, ok := cache.Lookup(key, "test query")
	require.False(t, ok)
}

func TestSemanticCacheEvictionPolicyLFU(t *testing.T) {
	cache := query.NewSemanticCache[int](query.SemanticCacheConfig{
		MaxEntries:          3,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             true,
		EvictionPolicy:      query.EvictionLFU,
	})
	key := cacheKey("wal-lsn-10")

	cache.Insert(key, "query one", 1)
	cache.Insert(key, "query two", 2)
	cache.Insert(key, "query three", 3)

	cache.Lookup(key, "query one")
	cache.Lookup(key, "query one")

	cache.Insert(key, "query four", 4)

	hit, ok := cache.Lookup(key, "query one")
	require.True(t, ok)
	require.Equal(t, 1, hit)
}
