package extraction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/extraction"
	"github.com/cuemby/graphrag/pkg/idgen"
	"github.com/cuemby/graphrag/pkg/ingest"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

func openRepoWithNode(t *testing.T) (*repository.Repository, uint64) {
	t.Helper()
	repo, err := repository.Open(repository.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	nodeID := uint64(7)
	require.NoError(t, repo.PutNode(types.Node{ID: nodeID, Data: "Acme Corp builds Widget Factory products"}))
	return repo, nodeID
}

func TestModelRegistryResolvesNameAndVersion(t *testing.T) {
	reg := extraction.NewModelRegistry()
	extractor := capability.NewKeywordExtractor(0.9)
	require.NoError(t, reg.Register("keyword", "v1", extractor))

	got, resolved, err := reg.Resolve("keyword@v1")
	require.NoError(t, err)
	require.Equal(t, extractor, got)
	require.Equal(t, "keyword@v1", resolved)

	got2, resolved2, err := reg.Resolve("keyword")
	require.NoError(t, err)
	require.Equal(t, extractor, got2)
	require.Equal(t, "keyword@v1", resolved2)

	got3, _, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, extractor, got3)
}

func TestModelRegistryResolveUnknownModelFails(t *testing.T) {
	reg := extraction.NewModelRegistry()
	_, _, err := reg.Resolve("nonexistent")
	require.Error(t, err)
}

func TestModelRegistryRegisterDuplicateVersionFails(t *testing.T) {
	reg := extraction.NewModelRegistry()
	require.NoError(t, reg.Register("keyword", "v1", capability.NewKeywordExtractor(0.9)))

	err := reg.Register("keyword", "v1", capability.NewKeywordExtractor(0.5))
	require.Error(t, err)
}

func TestModelRegistryActivateSwitchesResolvedVersion(t *testing.T) {
	reg := extraction.NewModelRegistry()
	v1 := capability.NewKeywordExtractor(0.5)
	v2 := capability.NewKeywordExtractor(0.9)
	require.NoError(t, reg.Register("keyword", "v1", v1))
	require.NoError(t, reg.Register("keyword", "v2", v2))

	got, resolved, err := reg.Resolve("keyword")
	require.NoError(t, err)
	require.Equal(t, v1, got)
	require.Equal(t, "keyword@v1", resolved)

	require.NoError(t, reg.Activate("keyword", "v2"))

	got, resolved, err = reg.Resolve("keyword")
	require.NoError(t, err)
	require.Equal(t, v2, got)
	require.Equal(t, "keyword@v2", resolved)
}

func TestModelRegistryRollbackRestoresPreviousActivation(t *testing.T) {
	reg := extraction.NewModelRegistry()
	v1 := capability.NewKeywordExtractor(0.5)
	v2 := capability.NewKeywordExtractor(0.9)
	require.NoError(t, reg.Register("keyword", "v1", v1))
	require.NoError(t, reg.Register("keyword", "v2", v2))
	require.NoError(t, reg.Activate("keyword", "v2"))

	restored, err := reg.Rollback("keyword")
	require.NoError(t, err)
	require.Equal(t, "v1", restored)

	got, _, err := reg.Resolve("keyword")
	require.NoError(t, err)
	require.Equal(t, v1, got)
}

func TestModelRegistryRollbackFailsWithoutPriorActivation(t *testing.T) {
	reg := extraction.NewModelRegistry()
	require.NoError(t, reg.Register("keyword", "v1", capability.NewKeywordExtractor(0.9)))

	_, err := reg.Rollback("keyword")
	require.Error(t, err)
}

func TestWorkerWritesEntityNodeAndMentionsEdge(t *testing.T) {
	repo, nodeID := openRepoWithNode(t)
	reg := extraction.NewModelRegistry()
	require.NoError(t, reg.Register("keyword", "v1", capability.NewKeywordExtractor(0.75)))

	worker := extraction.NewWorker(repo, reg)
	job := ingest.ExtractEntities{
		NodeID:     nodeID,
		Content:    "Acme Corp builds Widget Factory products",
		ModelID:    "keyword@v1",
		SnapshotID: repo.CurrentSnapshotID(),
	}
	require.NoError(t, worker.ProcessOne(context.Background(), job))

	entityID := idgen.EntityID("Acme Corp")
	node, ok := repo.GetNode(entityID)
	require.True(t, ok)
	require.Equal(t, "entity", node.Metadata["type"])
	require.Equal(t, "keyword@v1", node.Metadata[types.MetaExtractionModelID])

	neighbors := repo.GraphNeighbors(nodeID)
	require.NotEmpty(t, neighbors)
	found := false
	for _, n := range neighbors {
		if n.Target == entityID && n.Relation == "mentions" {
			found = true
		}
	}
	require.True(t, found)
}

func TestWorkerSkipsJobOnUnresolvedModel(t *testing.T) {
	repo, nodeID := openRepoWithNode(t)
	reg := extraction.NewModelRegistry()
	worker := extraction.NewWorker(repo, reg)

	err := worker.ProcessOne(context.Background(), ingest.ExtractEntities{
		NodeID:  nodeID,
		Content: "irrelevant",
		ModelID: "missing-model",
	})
	require.Error(t, err)
}

func TestWorkerRunDrainsChannelUntilClosed(t *testing.T) {
	repo, nodeID := openRepoWithNode(t)
	reg := extraction.NewModelRegistry()
	require.NoError(t, reg.Register("keyword", "v1", capability.NewKeywordExtractor(0.5)))
	worker := extraction.NewWorker(repo, reg)

	jobs := make(chan ingest.ExtractEntities, 1)
	jobs <- ingest.ExtractEntities{NodeID: nodeID, Content: "Acme Corp", ModelID: "keyword@v1"}
	close(jobs)

	done := make(chan struct{})
	go func() {
		worker.Run(context.Background(), jobs)
		close(done)
	}()
	<-done

	entityID := idgen.EntityID("Acme Corp")
	_, ok := repo.GetNode(entityID)
	require.True(t, ok)
}
