package repository

import (
	"sort"
	"sync"

	"github.com/cuemby/graphrag/pkg/hyperindex"
	"github.com/cuemby/graphrag/pkg/types"
)

// state is the in-memory materialization a Repository (or a historical
// SnapshotView) reads and mutates. Splitting it out of Repository lets
// load_snapshot_view build one in isolation without touching the live
// instance's locks or WAL handle.
type state struct {
	nodesMu sync.RWMutex
	nodes   map[uint64]*types.Node

	indexMu sync.RWMutex
	index   *hyperindex.HyperIndex

	edgeMetaMu sync.RWMutex
	edgeMeta   map[types.EdgeKey]map[string]string

	idemMu      sync.Mutex
	idempotency map[string][]uint64
}

func newState() *state {
	return &state{
		nodes:       make(map[uint64]*types.Node),
		index:       hyperindex.New(),
		edgeMeta:    make(map[types.EdgeKey]map[string]string),
		idempotency: make(map[string][]uint64),
	}
}

// knownIDs returns a snapshot of every node id currently present, used by
// transaction validation.
func (s *state) knownIDs() map[uint64]bool {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	ids := make(map[uint64]bool, len(s.nodes))
	for id := range s.nodes {
		ids[id] = true
	}
	return ids
}

// apply performs muts in order. Callers must hold nodesMu, indexMu, and
// edgeMetaMu for writing across the whole batch so partial application is
// never observable.
func (s *state) apply(muts []Mutation) {
	for _, m := range muts {
		switch v := m.(type) {
		case PutNode:
			n := v.Node
			cp := n
			cp.Metadata = cloneStringMap(n.Metadata)
			s.nodes[n.ID] = &cp
			s.index.Vector.Insert(n.ID, n.Embedding)
		case PutEdge:
			e := v.Edge
			s.index.Graph.UpsertEdge(e.Source, e.Target, e.Relation, e.Weight)
			key := types.EdgeKey{Source: e.Source, Target: e.Target, Relation: e.Relation}
			if len(e.Metadata) == 0 {
				delete(s.edgeMeta, key)
			} else {
				s.edgeMeta[key] = cloneStringMap(e.Metadata)
			}
		case DeleteNode:
			delete(s.nodes, v.ID)
			s.index.RemoveNode(v.ID)
			for key := range s.edgeMeta {
				if key.Source == v.ID || key.Target == v.ID {
					delete(s.edgeMeta, key)
				}
			}
		}
	}
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s *state) getNode(id uint64) (types.Node, bool) {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return types.Node{}, false
	}
	return *n, true
}

func (s *state) listNodeIDs() []uint64 {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	ids := make([]uint64, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *state) getNodesByIDs(ids []uint64) []types.Node {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	out := make([]types.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, *n)
		}
	}
	return out
}

func (s *state) embeddingDimension() int {
	return s.index.Vector.Dimension()
}

func (s *state) getEdgeMetadata(key types.EdgeKey) (map[string]string, bool) {
	s.edgeMetaMu.RLock()
	defer s.edgeMetaMu.RUnlock()
	m, ok := s.edgeMeta[key]
	return cloneStringMap(m), ok
}

func (s *state) getEdgeMetadataBulk(keys []types.EdgeKey) map[types.EdgeKey]map[string]string {
	s.edgeMetaMu.RLock()
	defer s.edgeMetaMu.RUnlock()
	out := make(map[types.EdgeKey]map[string]string, len(keys))
	for _, k := range keys {
		if m, ok := s.edgeMeta[k]; ok {
			out[k] = cloneStringMap(m)
		}
	}
	return out
}

func (s *state) checkIdempotency(key string) ([]uint64, bool) {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	ids, ok := s.idempotency[key]
	return ids, ok
}

// recordIdempotency is first-write-wins: if key is already recorded the
// previously recorded ids are returned unchanged.
func (s *state) recordIdempotency(key string, ids []uint64) []uint64 {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	if existing, ok := s.idempotency[key]; ok {
		return existing
	}
	cp := append([]uint64(nil), ids...)
	s.idempotency[key] = cp
	return cp
}

// backupSnapshot is the JSON-encoded form a backup snapshot file holds.
// cuemby-warren's raft snapshots serialize the FSM's bucket store the same
// way (pkg/manager/fsm.go Snapshot/Restore); this repository has no raft
// layer, so the format is simply "everything state.apply would need to
// reconstruct the same map contents".
type backupSnapshot struct {
	LSN         uint64                       `json:"lsn"`
	Nodes       []types.Node                 `json:"nodes"`
	Edges       []types.Edge                 `json:"edges"`
	EdgeMeta    []edgeMetaEntry              `json:"edge_metadata"`
	Idempotency []types.IdempotencyRecord    `json:"idempotency"`
}

type edgeMetaEntry struct {
	Key      types.EdgeKey     `json:"key"`
	Metadata map[string]string `json:"metadata"`
}

func (s *state) toBackupSnapshot(lsn uint64) backupSnapshot {
	s.nodesMu.RLock()
	nodes := make([]types.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, *n)
	}
	s.nodesMu.RUnlock()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := s.index.Graph.AllEdges()
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Relation < edges[j].Relation
	})

	s.edgeMetaMu.RLock()
	meta := make([]edgeMetaEntry, 0, len(s.edgeMeta))
	for k, v := range s.edgeMeta {
		meta = append(meta, edgeMetaEntry{Key: k, Metadata: v})
	}
	s.edgeMetaMu.RUnlock()
	sort.Slice(meta, func(i, j int) bool {
		if meta[i].Key.Source != meta[j].Key.Source {
			return meta[i].Key.Source < meta[j].Key.Source
		}
		if meta[i].Key.Target != meta[j].Key.Target {
			return meta[i].Key.Target < meta[j].Key.Target
		}
		return meta[i].Key.Relation < meta[j].Key.Relation
	})

	s.idemMu.Lock()
	idem := make([]types.IdempotencyRecord, 0, len(s.idempotency))
	for k, ids := range s.idempotency {
		idem = append(idem, types.IdempotencyRecord{Key: k, NodeIDs: ids})
	}
	s.idemMu.Unlock()
	sort.Slice(idem, func(i, j int) bool { return idem[i].Key < idem[j].Key })

	return backupSnapshot{LSN: lsn, Nodes: nodes, Edges: edges, EdgeMeta: meta, Idempotency: idem}
}

func stateFromBackupSnapshot(b backupSnapshot) *state {
	s := newState()
	for _, n := range b.Nodes {
		cp := n
		s.nodes[n.ID] = &cp
		s.index.Vector.Insert(n.ID, n.Embedding)
	}
	for _, e := range b.Edges {
		s.index.Graph.UpsertEdge(e.Source, e.Target, e.Relation, e.Weight)
	}
	for _, m := range b.EdgeMeta {
		s.edgeMeta[m.Key] = m.Metadata
	}
	for _, rec := range b.Idempotency {
		s.idempotency[rec.Key] = rec.NodeIDs
	}
	return s
}
