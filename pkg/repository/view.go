package repository

import (
	"github.com/cuemby/graphrag/pkg/graphindex"
	"github.com/cuemby/graphrag/pkg/types"
	"github.com/cuemby/graphrag/pkg/vectorindex"
)

// ReadView is the read surface the query engine runs against. Both the live
// Repository and a pinned SnapshotView satisfy it, so a query can target
// either without the query engine knowing which.
type ReadView interface {
	SnapshotID() string
	GetNode(id uint64) (types.Node, bool)
	ListNodeIDs() []uint64
	GetNodesByIDs(ids []uint64) []types.Node
	EmbeddingDimension() int
	GetEdgeMetadata(key types.EdgeKey) (map[string]string, bool)
	GetEdgeMetadataBulk(keys []types.EdgeKey) map[types.EdgeKey]map[string]string
	VectorSearch(query []float32, k int) []vectorindex.Scored
	GraphExpand(start uint64, maxHops int, allowedRelations map[string]bool) []graphindex.Hop
	GraphFilteredRelations(start uint64, maxHops int, allowedRelations map[string]bool) []string
	GraphNeighbors(id uint64) []graphindex.Neighbor
	ResolveAlias(surface string) (uint64, bool)
}

var (
	_ ReadView = (*Repository)(nil)
	_ ReadView = (*SnapshotView)(nil)
)

func (v *SnapshotView) GetNode(id uint64) (types.Node, bool) { return v.state.getNode(id) }

func (v *SnapshotView) ListNodeIDs() []uint64 { return v.state.listNodeIDs() }

func (v *SnapshotView) GetNodesByIDs(ids []uint64) []types.Node { return v.state.getNodesByIDs(ids) }

func (v *SnapshotView) EmbeddingDimension() int { return v.state.embeddingDimension() }

func (v *SnapshotView) GetEdgeMetadata(key types.EdgeKey) (map[string]string, bool) {
	return v.state.getEdgeMetadata(key)
}

func (v *SnapshotView) GetEdgeMetadataBulk(keys []types.EdgeKey) map[types.EdgeKey]map[string]string {
	return v.state.getEdgeMetadataBulk(keys)
}

func (v *SnapshotView) VectorSearch(query []float32, k int) []vectorindex.Scored {
	v.state.indexMu.RLock()
	defer v.state.indexMu.RUnlock()
	return v.state.index.Vector.Search(query, k)
}

func (v *SnapshotView) GraphExpand(start uint64, maxHops int, allowedRelations map[string]bool) []graphindex.Hop {
	v.state.indexMu.RLock()
	defer v.state.indexMu.RUnlock()
	return v.state.index.Graph.Expand(start, maxHops, allowedRelations)
}

func (v *SnapshotView) GraphFilteredRelations(start uint64, maxHops int, allowedRelations map[string]bool) []string {
	v.state.indexMu.RLock()
	defer v.state.indexMu.RUnlock()
	return v.state.index.Graph.FilteredRelations(start, maxHops, allowedRelations)
}

func (v *SnapshotView) GraphNeighbors(id uint64) []graphindex.Neighbor {
	v.state.indexMu.RLock()
	defer v.state.indexMu.RUnlock()
	return v.state.index.Graph.Neighbors(id)
}

func (v *SnapshotView) ResolveAlias(surface string) (uint64, bool) {
	v.state.indexMu.RLock()
	defer v.state.indexMu.RUnlock()
	return v.state.index.ResolveAlias(surface)
}
