package repository_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

func openRepo(t *testing.T) (*repository.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := repository.Open(repository.Config{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, dir
}

func TestPutNodeThenGetNode(t *testing.T) {
	r, _ := openRepo(t)

	require.NoError(t, r.PutNode(types.Node{ID: 1, Embedding: []float32{1, 0}, Data: "alpha"}))

	got, ok := r.GetNode(1)
	require.True(t, ok)
	require.Equal(t, "alpha", got.Data)
	require.Equal(t, []uint64{1}, r.ListNodeIDs())
}

func TestPutEdgeRejectsUnknownEndpoints(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1}))

	err := r.PutEdge(types.Edge{Source: 1, Target: 99, Relation: "mentions"})
	require.Error(t, err)

	// The whole transaction must be rejected: no half-applied edge.
	_, ok := r.GetEdgeMetadata(types.EdgeKey{Source: 1, Target: 99, Relation: "mentions"})
	require.False(t, ok)
}

func TestBatchCanReferenceNodeIntroducedEarlierInTheSameBatch(t *testing.T) {
	r, _ := openRepo(t)

	err := r.Apply([]repository.Mutation{
		repository.PutNode{Node: types.Node{ID: 1}},
		repository.PutNode{Node: types.Node{ID: 2}},
		repository.PutEdge{Edge: types.Edge{Source: 1, Target: 2, Relation: "related_to"}},
	})
	require.NoError(t, err)

	neighbors := r.GraphNeighbors(1)
	require.Len(t, neighbors, 1)
	require.Equal(t, uint64(2), neighbors[0].Target)
}

func TestDeleteNodeCascadesIncidentEdgeMetadata(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1}))
	require.NoError(t, r.PutNode(types.Node{ID: 2}))
	require.NoError(t, r.PutEdge(types.Edge{
		Source: 1, Target: 2, Relation: "mentions",
		Metadata: map[string]string{"chunk": "c1"},
	}))

	require.NoError(t, r.DeleteNode(2))

	_, ok := r.GetNode(2)
	require.False(t, ok)
	_, ok = r.GetEdgeMetadata(types.EdgeKey{Source: 1, Target: 2, Relation: "mentions"})
	require.False(t, ok)
}

func TestEdgeMetadataUpsertReplacesWholeMap(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1}))
	require.NoError(t, r.PutNode(types.Node{ID: 2}))
	key := types.EdgeKey{Source: 1, Target: 2, Relation: "mentions"}

	require.NoError(t, r.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "mentions", Metadata: map[string]string{"a": "1", "b": "2"}}))
	meta, ok := r.GetEdgeMetadata(key)
	require.True(t, ok)
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, meta)

	require.NoError(t, r.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "mentions", Metadata: map[string]string{"c": "3"}}))
	meta, ok = r.GetEdgeMetadata(key)
	require.True(t, ok)
	require.Equal(t, map[string]string{"c": "3"}, meta)

	require.NoError(t, r.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "mentions"}))
	_, ok = r.GetEdgeMetadata(key)
	require.False(t, ok, "an upsert with no metadata clears the prior entry")
}

func TestIdempotencyIsFirstWriteWins(t *testing.T) {
	r, _ := openRepo(t)

	got := r.RecordIdempotency("req-1", []uint64{1, 2, 3})
	require.Equal(t, []uint64{1, 2, 3}, got)

	got = r.RecordIdempotency("req-1", []uint64{9, 9, 9})
	require.Equal(t, []uint64{1, 2, 3}, got, "a second record under the same key must not overwrite the first")

	ids, ok := r.CheckIdempotency("req-1")
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2, 3}, ids)

	_, ok = r.CheckIdempotency("never-seen")
	require.False(t, ok)
}

func TestCrashRestartReplaysWAL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	r, err := repository.Open(repository.Config{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, r.PutNode(types.Node{ID: 1, Embedding: []float32{1, 0, 0}, Data: "alpha"}))
	require.NoError(t, r.PutNode(types.Node{ID: 2, Embedding: []float32{0, 1, 0}, Data: "beta"}))
	require.NoError(t, r.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "related_to", Weight: 0.5}))
	snapshotBeforeClose := r.CurrentSnapshotID()
	require.NoError(t, r.Close())

	r2, err := repository.Open(repository.Config{Dir: dir})
	require.NoError(t, err)
	defer r2.Close()

	require.Equal(t, snapshotBeforeClose, r2.CurrentSnapshotID())
	got, ok := r2.GetNode(1)
	require.True(t, ok)
	require.Equal(t, "alpha", got.Data)
	neighbors := r2.GraphNeighbors(1)
	require.Len(t, neighbors, 1)
	require.Equal(t, uint64(2), neighbors[0].Target)
}

func TestSnapshotPinningIsolatesLaterWrites(t *testing.T) {
	r, _ := openRepo(t)

	require.NoError(t, r.PutNode(types.Node{ID: 1, Data: "v1"}))
	pinned := r.CurrentSnapshotID()

	require.NoError(t, r.PutNode(types.Node{ID: 1, Data: "v2"}))
	require.NoError(t, r.PutNode(types.Node{ID: 2, Data: "only-after-pin"}))

	view, err := r.LoadSnapshotView(pinned)
	require.NoError(t, err)
	require.Equal(t, pinned, view.SnapshotID())

	n, ok := view.GetNode(1)
	require.True(t, ok)
	require.Equal(t, "v1", n.Data)

	_, ok = view.GetNode(2)
	require.False(t, ok, "a node created after the pinned snapshot must not be visible through it")

	live, ok := r.GetNode(1)
	require.True(t, ok)
	require.Equal(t, "v2", live.Data)
}

func TestLoadSnapshotViewRejectsFutureID(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1}))

	_, err := r.LoadSnapshotView("wal-lsn-999999")
	require.Error(t, err)
}

func TestLoadSnapshotViewRejectsMalformedID(t *testing.T) {
	r, _ := openRepo(t)
	_, err := r.LoadSnapshotView("not-a-snapshot-id")
	require.Error(t, err)
}

func TestBackupSnapshotAndRestore(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1, Embedding: []float32{1, 0}, Data: "alpha"}))
	require.NoError(t, r.PutNode(types.Node{ID: 2, Embedding: []float32{0, 1}, Data: "beta"}))
	require.NoError(t, r.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "related_to"}))

	path, err := r.CreateBackupSnapshot()
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, r.PutNode(types.Node{ID: 3, Data: "gamma"}))
	require.NoError(t, r.DeleteNode(1))

	require.NoError(t, r.RestoreFromLatestBackup())

	// RestoreFromLatestBackup replays the backup plus every WAL record since
	// (including the ones taken after the backup), so the live state should
	// reflect everything up to the repository's current lsn, not just the
	// backup's contents.
	_, ok := r.GetNode(3)
	require.True(t, ok)
	_, ok = r.GetNode(1)
	require.False(t, ok)
}

func TestSecondOpenOnSameDirIsRejected(t *testing.T) {
	dir := t.TempDir()
	r, err := repository.Open(repository.Config{Dir: dir})
	require.NoError(t, err)
	defer r.Close()

	_, err = repository.Open(repository.Config{Dir: dir})
	require.Error(t, err)
}

func TestVectorSearchReturnsTopKByCosineSimilarity(t *testing.T) {
	r, _ := openRepo(t)
	require.NoError(t, r.PutNode(types.Node{ID: 1, Embedding: []float32{1, 0}}))
	require.NoError(t, r.PutNode(types.Node{ID: 2, Embedding: []float32{0, 1}}))
	require.NoError(t, r.PutNode(types.Node{ID: 3, Embedding: []float32{0.9, 0.1}}))

	results := r.VectorSearch([]float32{1, 0}, 2)
	require.Len(t, results, 2)
	require.Equal(t, uint64(1), results[0].ID)
	require.Equal(t, uint64(3), results[1].ID)
}
