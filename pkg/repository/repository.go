// Package repository implements the transactional façade described in the
// knowledge store's design: a WAL-durable, write-locked node map plus
// HyperIndex plus edge-metadata table, with snapshot-based reproducibility
// layered on top. Its shape — a single struct owning a durable log, an
// in-memory index, and a directory lock — is grounded on cuemby-warren's
// pkg/storage.Store (durable local store) and pkg/manager/fsm.go (apply
// protocol: validate, append, apply under lock).
package repository

import (
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/cuemby/graphrag/pkg/cipher"
	"github.com/cuemby/graphrag/pkg/graphindex"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/rerr"
	"github.com/cuemby/graphrag/pkg/snapshotstore"
	"github.com/cuemby/graphrag/pkg/types"
	"github.com/cuemby/graphrag/pkg/vectorindex"
	"github.com/cuemby/graphrag/pkg/wal"
)

// Config configures a Repository's on-disk layout.
type Config struct {
	// Dir is the repository's data directory. It holds wal.log, a .lock
	// file, and a snapshots/ subdirectory.
	Dir string
	// Cipher encrypts WAL records at rest; backup snapshot files are written
	// with the plain encoded state and are not encrypted by it. Nil means
	// cipher.Identity (no encryption), the right default for local/dev use;
	// production deployments supply cipher.AESGCM keyed from their KMS.
	Cipher cipher.Cipher
}

// Repository is the durable, transactional store behind the knowledge
// graph. One process may hold a Repository open on a given Dir at a time;
// Open fails fast if another process already holds the directory lock.
type Repository struct {
	dir    string
	lock   *flock.Flock
	wal    *wal.WAL
	snaps  *snapshotstore.Store
	cipher cipher.Cipher

	// txSerializer orders the five-step apply_index_transaction protocol:
	// validate, encode, WAL append+flush, apply-under-locks, release. Only
	// one transaction runs end to end at a time; reads proceed concurrently
	// against whichever state a transaction has not yet swapped in.
	txSerializer sync.Mutex

	*state
}

func Open(cfg Config) (*Repository, error) {
	if cfg.Dir == "" {
		return nil, rerr.New(rerr.InvalidArgument, "repository.Open", "dir is required")
	}
	c := cfg.Cipher
	if c == nil {
		c = cipher.Identity{}
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "repository.Open")
	}

	fl := flock.New(lockFilePath(cfg.Dir))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, rerr.Wrap(err, rerr.Storage, "repository.Open")
	}
	if !locked {
		return nil, rerr.New(rerr.Conflict, "repository.Open", "data directory is already locked by another process")
	}

	w, err := wal.Open(walPath(cfg.Dir), c)
	if err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	snaps, err := snapshotstore.New(snapshotsDir(cfg.Dir))
	if err != nil {
		_ = w.Close()
		_ = fl.Unlock()
		return nil, err
	}

	r := &Repository{
		dir:    cfg.Dir,
		lock:   fl,
		wal:    w,
		snaps:  snaps,
		cipher: c,
	}

	if err := r.loadFromDisk(nil); err != nil {
		_ = w.Close()
		_ = fl.Unlock()
		return nil, err
	}

	log.WithComponent("repository").Info().Str("dir", cfg.Dir).Uint64("lsn", w.NextLSN()).Msg("repository opened")
	return r, nil
}

// Close flushes and releases the repository's WAL and directory lock. It
// does not take a backup snapshot; callers that want one should call
// CreateBackupSnapshot explicitly before Close.
func (r *Repository) Close() error {
	werr := r.wal.Close()
	lerr := r.lock.Unlock()
	if werr != nil {
		return werr
	}
	if lerr != nil {
		return rerr.Wrap(lerr, rerr.Storage, "repository.Close")
	}
	return nil
}

// Apply runs muts as a single WAL-durable transaction: validate, encode,
// append+flush, apply under lock. Either every mutation in the batch
// becomes visible or none do.
func (r *Repository) Apply(muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	r.txSerializer.Lock()
	defer r.txSerializer.Unlock()

	if err := r.validate(muts); err != nil {
		return err
	}

	encoded, err := encodeTransaction(muts)
	if err != nil {
		return err
	}

	lsn, err := r.wal.Append(encoded)
	if err != nil {
		return err
	}
	if err := r.wal.Flush(); err != nil {
		return err
	}

	r.state.nodesMu.Lock()
	r.state.indexMu.Lock()
	r.state.edgeMetaMu.Lock()
	r.state.apply(muts)
	r.state.edgeMetaMu.Unlock()
	r.state.indexMu.Unlock()
	r.state.nodesMu.Unlock()

	log.WithComponent("repository").Debug().Uint64("lsn", lsn).Int("ops", len(muts)).Msg("transaction applied")
	return nil
}

// validate checks every PutEdge's endpoints and every DeleteNode's target
// resolve to a node that exists already or is introduced earlier in the
// same batch. A violation fails the whole batch before anything is
// written to the WAL.
func (r *Repository) validate(muts []Mutation) error {
	existing := r.state.knownIDs()
	pending := make(map[uint64]bool)

	known := func(id uint64) bool { return existing[id] || pending[id] }

	for _, m := range muts {
		switch v := m.(type) {
		case PutNode:
			pending[v.Node.ID] = true
		case PutEdge:
			if !known(v.Edge.Source) {
				return rerr.Newf(rerr.NotFound, "repository.Apply", "edge source node %d does not exist", v.Edge.Source)
			}
			if !known(v.Edge.Target) {
				return rerr.Newf(rerr.NotFound, "repository.Apply", "edge target node %d does not exist", v.Edge.Target)
			}
		case DeleteNode:
			if !known(v.ID) {
				return rerr.Newf(rerr.NotFound, "repository.Apply", "node %d does not exist", v.ID)
			}
		}
	}
	return nil
}

// PutNode upserts a single node as a one-mutation transaction.
func (r *Repository) PutNode(n types.Node) error { return r.Apply([]Mutation{PutNode{Node: n}}) }

// PutEdge upserts a single edge as a one-mutation transaction.
func (r *Repository) PutEdge(e types.Edge) error { return r.Apply([]Mutation{PutEdge{Edge: e}}) }

// DeleteNode removes a single node as a one-mutation transaction.
func (r *Repository) DeleteNode(id uint64) error { return r.Apply([]Mutation{DeleteNode{ID: id}}) }

// CurrentSnapshotID returns the identifier of the repository's current
// position in the WAL, in the form "wal-lsn-<N>".
func (r *Repository) CurrentSnapshotID() string {
	return formatSnapshotID(r.wal.NextLSN())
}

func formatSnapshotID(lsn uint64) string {
	return fmt.Sprintf("wal-lsn-%d", lsn)
}

// SnapshotID satisfies ReadView alongside SnapshotView.SnapshotID; it
// returns the same value as CurrentSnapshotID.
func (r *Repository) SnapshotID() string { return r.CurrentSnapshotID() }

// CreateBackupSnapshot materializes the current state to an immutable,
// atomically published snapshot file and returns its path.
func (r *Repository) CreateBackupSnapshot() (string, error) {
	r.txSerializer.Lock()
	defer r.txSerializer.Unlock()

	lsn := r.wal.NextLSN()
	snap := r.state.toBackupSnapshot(lsn)
	data, err := encodeBackupSnapshot(snap)
	if err != nil {
		return "", err
	}
	path, err := r.snaps.Create(lsn, data)
	if err != nil {
		return "", err
	}
	log.WithComponent("repository").Info().Str("path", path).Uint64("lsn", lsn).Msg("backup snapshot created")
	return path, nil
}

// RestoreFromLatestBackup discards the current in-memory state and rebuilds
// it from the newest backup snapshot plus any WAL records appended since.
func (r *Repository) RestoreFromLatestBackup() error {
	r.txSerializer.Lock()
	defer r.txSerializer.Unlock()
	return r.loadFromDisk(nil)
}

// SnapshotView is a read-only, immutable view of the repository pinned at
// a specific snapshot id, returned by LoadSnapshotView. It shares no
// mutable state with the live Repository.
type SnapshotView struct {
	snapshotID string
	*state
}

// SnapshotID returns the id this view is pinned to.
func (v *SnapshotView) SnapshotID() string { return v.snapshotID }

// LoadSnapshotView reconstructs the repository's state as of id (the
// format CurrentSnapshotID produces) for time-travel queries. It fails
// with NotFound if id names an lsn beyond the repository's current
// position.
func (r *Repository) LoadSnapshotView(id string) (*SnapshotView, error) {
	lsn, err := parseSnapshotID(id)
	if err != nil {
		return nil, err
	}
	if lsn > r.wal.NextLSN() {
		return nil, rerr.Newf(rerr.NotFound, "repository.LoadSnapshotView", "snapshot id %q is ahead of the repository", id)
	}

	st, err := r.buildState(lsn)
	if err != nil {
		return nil, err
	}
	return &SnapshotView{snapshotID: id, state: st}, nil
}

func parseSnapshotID(id string) (uint64, error) {
	var lsn uint64
	if _, err := fmt.Sscanf(id, "wal-lsn-%d", &lsn); err != nil {
		return 0, rerr.Newf(rerr.InvalidArgument, "repository.parseSnapshotID", "invalid snapshot id %q", id)
	}
	return lsn, nil
}

// loadFromDisk rebuilds the repository's live state in place from the
// newest backup snapshot plus WAL replay up to the repository's current
// lsn.
func (r *Repository) loadFromDisk(targetLSN *uint64) error {
	target := r.wal.NextLSN()
	if targetLSN != nil {
		target = *targetLSN
	}
	st, err := r.buildState(target)
	if err != nil {
		return err
	}
	r.state = st
	return nil
}

// buildState replays a base backup snapshot (if any) plus WAL records up to
// and including target, without touching the live Repository's state.
func (r *Repository) buildState(target uint64) (*state, error) {
	var st *state
	basePath, baseLSN, ok, err := r.snaps.LatestAtOrBefore(target)
	if err != nil {
		return nil, err
	}
	if ok {
		if baseLSN > target {
			return nil, rerr.Newf(rerr.NotFound, "repository.buildState", "base snapshot lsn %d exceeds target %d", baseLSN, target)
		}
		raw, err := r.snaps.Read(basePath)
		if err != nil {
			return nil, err
		}
		snap, err := decodeBackupSnapshot(raw)
		if err != nil {
			return nil, err
		}
		st = stateFromBackupSnapshot(snap)
	} else {
		st = newState()
		baseLSN = 0
	}

	_, _, err = r.wal.Replay(func(lsn uint64, plaintext []byte) error {
		if lsn <= baseLSN || lsn > target {
			return nil
		}
		muts, err := decodeTransaction(plaintext)
		if err != nil {
			return err
		}
		st.apply(muts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetNode returns the node with id, if present.
func (r *Repository) GetNode(id uint64) (types.Node, bool) { return r.state.getNode(id) }

// ListNodeIDs returns every node id in ascending order.
func (r *Repository) ListNodeIDs() []uint64 { return r.state.listNodeIDs() }

// GetNodesByIDs returns the subset of ids that exist, in no particular
// order; callers that need index-preserving order should re-sort.
func (r *Repository) GetNodesByIDs(ids []uint64) []types.Node { return r.state.getNodesByIDs(ids) }

// EmbeddingDimension returns the dimensionality of stored embeddings, or 0
// if none have been inserted yet.
func (r *Repository) EmbeddingDimension() int { return r.state.embeddingDimension() }

// GetEdgeMetadata returns the metadata recorded for key, if any.
func (r *Repository) GetEdgeMetadata(key types.EdgeKey) (map[string]string, bool) {
	return r.state.getEdgeMetadata(key)
}

// GetEdgeMetadataBulk resolves many edge keys under a single lock
// acquisition, for the query engine's evidence-enrichment step.
func (r *Repository) GetEdgeMetadataBulk(keys []types.EdgeKey) map[types.EdgeKey]map[string]string {
	return r.state.getEdgeMetadataBulk(keys)
}

// CheckIdempotency returns the node ids previously recorded under key, if
// any.
func (r *Repository) CheckIdempotency(key string) ([]uint64, bool) {
	return r.state.checkIdempotency(key)
}

// RecordIdempotency records ids under key if key has not been recorded
// before, and always returns the ids now on file for key (first write
// wins).
func (r *Repository) RecordIdempotency(key string, ids []uint64) []uint64 {
	return r.state.recordIdempotency(key, ids)
}

// VectorSearch returns the top-k nearest neighbors of query by cosine
// similarity.
func (r *Repository) VectorSearch(query []float32, k int) []vectorindex.Scored {
	r.state.indexMu.RLock()
	defer r.state.indexMu.RUnlock()
	return r.state.index.Vector.Search(query, k)
}

// GraphExpand performs a bounded BFS from start, optionally restricted to
// an allow-list of relation names.
func (r *Repository) GraphExpand(start uint64, maxHops int, allowedRelations map[string]bool) []graphindex.Hop {
	r.state.indexMu.RLock()
	defer r.state.indexMu.RUnlock()
	return r.state.index.Graph.Expand(start, maxHops, allowedRelations)
}

// GraphFilteredRelations returns relation names traversed but excluded by
// allowedRelations during the same BFS shape as GraphExpand, for surfacing
// relation_filtered:<relation> exclusions.
func (r *Repository) GraphFilteredRelations(start uint64, maxHops int, allowedRelations map[string]bool) []string {
	r.state.indexMu.RLock()
	defer r.state.indexMu.RUnlock()
	return r.state.index.Graph.FilteredRelations(start, maxHops, allowedRelations)
}

// GraphNeighbors returns the outgoing edges of id.
func (r *Repository) GraphNeighbors(id uint64) []graphindex.Neighbor {
	r.state.indexMu.RLock()
	defer r.state.indexMu.RUnlock()
	return r.state.index.Graph.Neighbors(id)
}

// ResolveAlias resolves a surface form to a canonical node id, if recorded.
// Aliases are a non-durable convenience cache: they are not written to the
// WAL or to backup snapshots, nothing rebuilds them, and they are empty
// again after a restart until SetAlias is called.
func (r *Repository) ResolveAlias(surface string) (uint64, bool) {
	r.state.indexMu.RLock()
	defer r.state.indexMu.RUnlock()
	return r.state.index.ResolveAlias(surface)
}

// SetAlias records that surface resolves to the canonical node id.
func (r *Repository) SetAlias(surface string, id uint64) {
	r.state.indexMu.Lock()
	defer r.state.indexMu.Unlock()
	r.state.index.SetAlias(surface, id)
}
