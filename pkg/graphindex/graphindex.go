// Package graphindex implements the id->outgoing-edges adjacency structure
// from spec §4.3: upsert-on-logical-key edges, node removal cascading to
// incident edges, neighbor iteration, and bounded BFS expansion.
package graphindex

import (
	"sync"

	"github.com/cuemby/graphrag/pkg/types"
)

// Neighbor is one outgoing edge as returned by Neighbors.
type Neighbor struct {
	Target   uint64
	Relation string
	Weight   float32
}

// Index is a thread-safe adjacency map. It tracks both outgoing and
// incoming edges so RemoveNode can evict incident edges in either
// direction without a full scan.
type Index struct {
	mu  sync.RWMutex
	out map[uint64]map[types.EdgeKey]float32
	in  map[uint64]map[types.EdgeKey]bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		out: make(map[uint64]map[types.EdgeKey]float32),
		in:  make(map[uint64]map[types.EdgeKey]bool),
	}
}

// UpsertEdge replaces any prior edge with the same (source, target,
// relation) key.
func (idx *Index) UpsertEdge(source, target uint64, relation string, weight float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := types.EdgeKey{Source: source, Target: target, Relation: relation}
	if idx.out[source] == nil {
		idx.out[source] = make(map[types.EdgeKey]float32)
	}
	idx.out[source][key] = weight
	if idx.in[target] == nil {
		idx.in[target] = make(map[types.EdgeKey]bool)
	}
	idx.in[target][key] = true
}

// RemoveEdge removes exactly the edge identified by key, if present.
func (idx *Index) RemoveEdge(key types.EdgeKey) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeEdgeLocked(key)
}

func (idx *Index) removeEdgeLocked(key types.EdgeKey) {
	if m := idx.out[key.Source]; m != nil {
		delete(m, key)
		if len(m) == 0 {
			delete(idx.out, key.Source)
		}
	}
	if m := idx.in[key.Target]; m != nil {
		delete(m, key)
		if len(m) == 0 {
			delete(idx.in, key.Target)
		}
	}
}

// RemoveNode removes every edge where id is the source or the target.
func (idx *Index) RemoveNode(id uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for key := range idx.out[id] {
		idx.removeEdgeLocked(key)
	}
	for key := range idx.in[id] {
		idx.removeEdgeLocked(key)
	}
	delete(idx.out, id)
	delete(idx.in, id)
}

// Neighbors returns the outgoing edges of id.
func (idx *Index) Neighbors(id uint64) []Neighbor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	m := idx.out[id]
	result := make([]Neighbor, 0, len(m))
	for key, weight := range m {
		result = append(result, Neighbor{Target: key.Target, Relation: key.Relation, Weight: weight})
	}
	return result
}

// EdgeWeight returns the weight of the edge identified by key and whether it
// exists.
func (idx *Index) EdgeWeight(key types.EdgeKey) (float32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m := idx.out[key.Source]
	if m == nil {
		return 0, false
	}
	w, ok := m[key]
	return w, ok
}

// AllEdges returns every edge currently in the index, for snapshotting and
// community detection.
func (idx *Index) AllEdges() []types.Edge {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var edges []types.Edge
	for source, m := range idx.out {
		for key, weight := range m {
			edges = append(edges, types.Edge{Source: source, Target: key.Target, Relation: key.Relation, Weight: weight})
		}
	}
	return edges
}

// Hop is one step of a BFS expansion result.
type Hop struct {
	NodeID uint64
	Hop    int
}

// Expand performs a breadth-first search from start, visiting each
// reachable node at most once (at its minimum hop distance), optionally
// restricted to an allow-list of relation names (nil or empty means allow
// all). It returns (node, hop) for hops 1..=maxHops; start itself is never
// included unless a cycle reaches it again at hop>=1, which BFS's
// visited-set prevents by construction.
func (idx *Index) Expand(start uint64, maxHops int, allowedRelations map[string]bool) []Hop {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if maxHops <= 0 {
		return nil
	}

	visited := map[uint64]bool{start: true}
	frontier := []uint64{start}
	var results []Hop

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []uint64
		for _, node := range frontier {
			for key := range idx.out[node] {
				if len(allowedRelations) > 0 && !allowedRelations[key.Relation] {
					continue
				}
				if visited[key.Target] {
					continue
				}
				visited[key.Target] = true
				results = append(results, Hop{NodeID: key.Target, Hop: hop})
				next = append(next, key.Target)
			}
		}
		frontier = next
	}
	return results
}

// FilteredRelations returns the set of relation names traversed but
// excluded by the allow-list during an Expand call starting at start, used
// by the query engine to populate the relation_filtered:<relation>
// exclusion. maxHops and allowedRelations mirror Expand's arguments.
func (idx *Index) FilteredRelations(start uint64, maxHops int, allowedRelations map[string]bool) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(allowedRelations) == 0 || maxHops <= 0 {
		return nil
	}

	visited := map[uint64]bool{start: true}
	frontier := []uint64{start}
	seenRelations := make(map[string]bool)

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []uint64
		for _, node := range frontier {
			for key := range idx.out[node] {
				if !allowedRelations[key.Relation] {
					seenRelations[key.Relation] = true
					continue
				}
				if visited[key.Target] {
					continue
				}
				visited[key.Target] = true
				next = append(next, key.Target)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(seenRelations))
	for r := range seenRelations {
		out = append(out, r)
	}
	return out
}
