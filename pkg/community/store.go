package community

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/graphrag/pkg/types"
)

// Store holds the most recently built community hierarchy for a running
// process, so the query engine's global mode always reads a point-in-time
// snapshot rather than recomputing it per query.
type Store struct {
	engine    *Engine
	summaries atomic.Pointer[[]types.CommunitySummary]
	mu        sync.Mutex
}

// NewStore wraps an Engine with a summaries cache satisfying
// query.CommunityProvider.
func NewStore(engine *Engine) *Store {
	s := &Store{engine: engine}
	empty := []types.CommunitySummary{}
	s.summaries.Store(&empty)
	return s
}

// Summaries returns the last hierarchy built by Rebuild.
func (s *Store) Summaries() []types.CommunitySummary {
	return *s.summaries.Load()
}

// Rebuild recomputes the community hierarchy from the given node ids and
// edges and atomically publishes it. Concurrent rebuilds are serialized.
func (s *Store) Rebuild(nodeIDs []uint64, edges []types.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := s.engine.Build(nodeIDs, edges)
	s.summaries.Store(&summaries)
}
