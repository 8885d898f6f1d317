package query

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// EvictionPolicy selects which entry SemanticCache discards when it is
// full.
type EvictionPolicy int

const (
	// EvictionLRU evicts the entry with the oldest last access.
	EvictionLRU EvictionPolicy = iota
	// EvictionLFU evicts the entry with the fewest accesses.
	EvictionLFU
)

// SemanticCacheConfig configures a SemanticCache's capacity, matching
// threshold, and eviction behavior.
type SemanticCacheConfig struct {
	// MaxEntries caps the number of cached responses; 0 disables insertion.
	MaxEntries int
	// SimilarityThreshold is the minimum token-Jaccard similarity between
	// a new query and a cached one for the cached entry to count as a hit.
	SimilarityThreshold float64
	// TTL expires entries older than this; zero means no expiration.
	TTL time.Duration
	// MinQueryLength excludes very short queries from caching, where
	// token-Jaccard similarity is too noisy to be meaningful.
	MinQueryLength int
	Enabled        bool
	EvictionPolicy EvictionPolicy
}

// DefaultSemanticCacheConfig mirrors the reference defaults: 256 entries,
// similarity threshold 0.6, no TTL, minimum query length 3, LRU eviction.
func DefaultSemanticCacheConfig() SemanticCacheConfig {
	return SemanticCacheConfig{
		MaxEntries:          256,
		SimilarityThreshold: 0.6,
		MinQueryLength:      3,
		Enabled:             true,
		EvictionPolicy:      EvictionLRU,
	}
}

// SemanticCacheKey identifies the execution parameters a cached value was
// produced under. Two requests with an equal key and similar enough query
// text are considered cache-equivalent.
type SemanticCacheKey struct {
	ModelID                string
	SnapshotID             string
	Mode                   Mode
	SearchMode             SearchMode
	EffectiveSearchMode    SearchMode
	TopK                   int
	TraversalDepth         int
	EntityType             []string
	RelationType           []string
	TraversalRelationTypes []string
	TimeRangeFrom          string
	TimeRangeTo            string
	TimeTravel             string
}

// NewSemanticCacheKey derives a cache key from a validated Request plus
// the snapshot id and effective search mode the engine resolved it to.
func NewSemanticCacheKey(req Request, snapshotID string, effective SearchMode) SemanticCacheKey {
	key := SemanticCacheKey{
		ModelID:                req.ModelID,
		SnapshotID:             snapshotID,
		Mode:                   req.Mode,
		SearchMode:             req.SearchMode,
		EffectiveSearchMode:    effective,
		TopK:                   req.TopK,
		TraversalDepth:         req.Traversal.Depth,
		EntityType:             sortedUnique(req.Filters.EntityType),
		RelationType:           sortedUnique(req.Filters.RelationType),
		TraversalRelationTypes: sortedUnique(req.Traversal.RelationTypes),
		TimeTravel:             req.TimeTravel,
	}
	if req.Filters.TimeRange != nil {
		key.TimeRangeFrom = req.Filters.TimeRange.From
		key.TimeRangeTo = req.Filters.TimeRange.To
	}
	return key
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	deduped := out[:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			deduped = append(deduped, v)
		}
	}
	return deduped
}

func (k SemanticCacheKey) equal(o SemanticCacheKey) bool {
	return k.ModelID == o.ModelID &&
		k.SnapshotID == o.SnapshotID &&
		k.Mode == o.Mode &&
		k.SearchMode == o.SearchMode &&
		k.EffectiveSearchMode == o.EffectiveSearchMode &&
		k.TopK == o.TopK &&
		k.TraversalDepth == o.TraversalDepth &&
		k.TimeRangeFrom == o.TimeRangeFrom &&
		k.TimeRangeTo == o.TimeRangeTo &&
		k.TimeTravel == o.TimeTravel &&
		stringSlicesEqual(k.EntityType, o.EntityType) &&
		stringSlicesEqual(k.RelationType, o.RelationType) &&
		stringSlicesEqual(k.TraversalRelationTypes, o.TraversalRelationTypes)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type semanticCacheEntry[T any] struct {
	key             SemanticCacheKey
	normalizedQuery string
	queryTokens     map[string]bool
	value           T
	createdAt       time.Time
	lastAccessed    time.Time
	accessCount     int
}

// SemanticCache caches values (in the engine's case, Responses) keyed by
// execution parameters and matched across paraphrases by token-Jaccard
// similarity between query texts, so repeated or reworded questions under
// identical filters/model/snapshot can skip re-running the pipeline.
// Entries are scanned linearly, same as the reference's VecDeque walk;
// the expected working set (per-process query cache) is small enough
// that this beats the complexity of an indexed structure.
type SemanticCache[T any] struct {
	mu      sync.Mutex
	config  SemanticCacheConfig
	entries []semanticCacheEntry[T]
}

// NewSemanticCache returns an empty cache governed by config.
func NewSemanticCache[T any](config SemanticCacheConfig) *SemanticCache[T] {
	return &SemanticCache[T]{config: config}
}

// Lookup returns the cached value for the best-matching entry under key,
// or ok=false when the cache is disabled, empty, too-short a query, or no
// entry meets the similarity threshold. A hit bumps the entry's access
// metadata and moves it to the back of the eviction queue.
func (c *SemanticCache[T]) Lookup(key SemanticCacheKey, query string) (value T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || len(c.entries) == 0 || len(query) < c.config.MinQueryLength {
		return value, false
	}

	normalized := normalizeQuery(query)
	tokens := tokenize(normalized)

	now := time.Now()
	bestIdx := -1
	bestScore := -1.0
	for i := range c.entries {
		e := &c.entries[i]
		if !e.key.equal(key) {
			continue
		}
		if c.config.TTL > 0 && now.Sub(e.createdAt) > c.config.TTL {
			continue
		}
		score := querySimilarity(e.normalizedQuery, e.queryTokens, normalized, tokens)
		if score < c.config.SimilarityThreshold {
			continue
		}
		if score > bestScore || (score == bestScore && i > bestIdx) {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return value, false
	}

	entry := c.entries[bestIdx]
	c.entries = append(c.entries[:bestIdx], c.entries[bestIdx+1:]...)
	entry.accessCount++
	entry.lastAccessed = now
	c.entries = append(c.entries, entry)
	return entry.value, true
}

// Insert stores value under key/query, evicting per EvictionPolicy if the
// cache is at MaxEntries. A no-op when the cache is disabled, MaxEntries
// is 0, or the query is shorter than MinQueryLength.
func (c *SemanticCache[T]) Insert(key SemanticCacheKey, query string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled || c.config.MaxEntries == 0 || len(query) < c.config.MinQueryLength {
		return
	}

	normalized := normalizeQuery(query)
	tokens := tokenize(normalized)

	for i, e := range c.entries {
		if e.key.equal(key) && e.normalizedQuery == normalized {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}

	for len(c.entries) >= c.config.MaxEntries {
		c.evictOneLocked()
	}

	now := time.Now()
	c.entries = append(c.entries, semanticCacheEntry[T]{
		key:             key,
		normalizedQuery: normalized,
		queryTokens:     tokens,
		value:           value,
		createdAt:       now,
		lastAccessed:    now,
	})
}

func (c *SemanticCache[T]) evictOneLocked() {
	if len(c.entries) == 0 {
		return
	}
	idx := 0
	for i, e := range c.entries {
		switch c.config.EvictionPolicy {
		case EvictionLFU:
			if e.accessCount < c.entries[idx].accessCount {
				idx = i
			}
		default:
			if e.lastAccessed.Before(c.entries[idx].lastAccessed) {
				idx = i
			}
		}
	}
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// querySimilarity is 1.0 for identical normalized text, otherwise the
// token-Jaccard similarity (0.0 if either side tokenizes to nothing).
func querySimilarity(lhsQuery string, lhsTokens map[string]bool, rhsQuery string, rhsTokens map[string]bool) float64 {
	if lhsQuery == rhsQuery {
		return 1.0
	}
	return jaccard(lhsTokens, rhsTokens)
}
