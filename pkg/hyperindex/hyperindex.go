// Package hyperindex composes the vector index and graph index into the
// single joint structure the Repository mutates under its write locks, plus
// an alias map for entities that resolve to more than one surface form
// (spec §4.3's HyperIndex).
package hyperindex

import (
	"sync"

	"github.com/cuemby/graphrag/pkg/graphindex"
	"github.com/cuemby/graphrag/pkg/vectorindex"
)

// HyperIndex bundles a VectorIndex and GraphIndex under one roof, plus a
// small alias table mapping alternate surface forms to a canonical node id.
// The alias table is filled only through SetAlias; the extraction worker
// does not write to it.
type HyperIndex struct {
	Vector *vectorindex.Index
	Graph  *graphindex.Index

	mu      sync.RWMutex
	aliases map[string]uint64
}

// New returns an empty HyperIndex.
func New() *HyperIndex {
	return &HyperIndex{
		Vector:  vectorindex.New(),
		Graph:   graphindex.New(),
		aliases: make(map[string]uint64),
	}
}

// SetAlias records that surface resolves to canonical node id.
func (h *HyperIndex) SetAlias(surface string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aliases[surface] = id
}

// ResolveAlias returns the canonical id for surface, if recorded.
func (h *HyperIndex) ResolveAlias(surface string) (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.aliases[surface]
	return id, ok
}

// RemoveNode evicts id from the vector and graph indices. Aliases pointing
// at a removed id are left in place; ResolveAlias callers are expected to
// validate the node still exists via the repository.
func (h *HyperIndex) RemoveNode(id uint64) {
	h.Vector.Delete(id)
	h.Graph.RemoveNode(id)
}
