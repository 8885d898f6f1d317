package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/query"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(repository.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedNode(t *testing.T, repo *repository.Repository, id uint64, data string, embedding []float32, metadata map[string]string) {
	t.Helper()
	require.NoError(t, repo.PutNode(types.Node{ID: id, Data: data, Embedding: embedding, Metadata: metadata}))
}

func TestValidateRejectsEmptyQuery(t *testing.T) {
	_, err := query.NewRequest(query.Request{Query: "   "})
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeTopK(t *testing.T) {
	_, err := query.NewRequest(query.Request{Query: "hello", TopK: 0})
	require.NoError(t, err) // zero is normalized to the default of 20

	_, err = query.NewRequest(query.Request{Query: "hello", TopK: 5000})
	require.Error(t, err)
}

func TestValidateRejectsEmptyStringInFilterLists(t *testing.T) {
	_, err := query.NewRequest(query.Request{
		Query:   "hello",
		Filters: query.Filters{EntityType: []string{""}},
	})
	require.Error(t, err)
}

func TestValidateRejectsBadTimeRange(t *testing.T) {
	_, err := query.NewRequest(query.Request{
		Query:   "hello",
		Filters: query.Filters{TimeRange: &query.TimeRange{From: "2026-05-01", To: "2026-01-01"}},
	})
	require.Error(t, err)
}

func TestExecuteReturnsEmptyEvidenceOnEmptyRepository(t *testing.T) {
	repo := openRepo(t)
	engine := query.New(repo, query.Options{})

	resp, err := engine.Execute(context.Background(), query.Request{Query: "anything", SearchMode: query.SearchLocal}, "", "")
	require.NoError(t, err)
	require.Empty(t, resp.Evidence)
	require.Contains(t, resp.Exclusions, "no_nodes_available")
}

func TestExecuteFindsLexicallyMatchingNode(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "the quick brown fox jumps over the lazy dog", nil, nil)
	seedNode(t, repo, 2, "completely unrelated content about spreadsheets", nil, nil)

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query:      "quick brown fox",
		SearchMode: query.SearchLocal,
		Mode:       query.ModeEvidence,
	}, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Evidence)
	require.Equal(t, uint64(1), resp.Evidence[0].NodeID)
}

func TestExecuteAppliesEntityTypeFilter(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "alpha beta gamma", nil, map[string]string{"entity_type": "person"})
	seedNode(t, repo, 2, "alpha beta gamma delta", nil, map[string]string{"entity_type": "organization"})

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query:      "alpha beta gamma",
		SearchMode: query.SearchLocal,
		Mode:       query.ModeEvidence,
		Filters:    query.Filters{EntityType: []string{"person"}},
	}, "", "")
	require.NoError(t, err)
	for _, e := range resp.Evidence {
		require.Equal(t, uint64(1), e.NodeID)
	}
}

func TestExecuteGraphExpandsToEdgeConnectedNode(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "root document about graph databases", nil, nil)
	seedNode(t, repo, 2, "unrelated text with no lexical overlap whatsoever", nil, nil)
	require.NoError(t, repo.PutEdge(types.Edge{Source: 1, Target: 2, Relation: "mentions", Weight: 0.9}))

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query:      "graph databases",
		SearchMode: query.SearchLocal,
		Mode:       query.ModeEvidence,
		Traversal:  query.Traversal{Depth: 2},
	}, "", "")
	require.NoError(t, err)

	ids := make(map[uint64]bool)
	for _, e := range resp.Evidence {
		ids[e.NodeID] = true
	}
	require.True(t, ids[1])
	require.True(t, ids[2])
}

func TestExecuteAutoFallsBackToDrift(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "solitary node with no neighbors", nil, nil)

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query:      "solitary node",
		SearchMode: query.SearchLocal,
		Mode:       query.ModeEvidence,
	}, "", "")
	require.NoError(t, err)
	require.Contains(t, resp.Exclusions, "auto_fallback_to_drift_due_to_insufficient_evidence")
}

func TestExecuteGlobalModeFallsBackWithoutCommunityData(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "overall theme of the corpus", nil, nil)

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query: "what is the global summary theme",
	}, "", "")
	require.NoError(t, err)
	require.Contains(t, resp.Exclusions, "no_community_data_fallback_to_vector")
}

type staticCommunities struct {
	summaries []types.CommunitySummary
}

func (s staticCommunities) Summaries() []types.CommunitySummary { return s.summaries }

func TestExecuteGlobalModeSynthesizesFromCommunitySummaries(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "overall theme of the corpus is widgets", nil, nil)

	engine := query.New(repo, query.Options{
		Communities: staticCommunities{summaries: []types.CommunitySummary{
			{Level: 0, CommunityID: 0, TopNodes: []uint64{1}, Summary: "overall theme widgets summary"},
		}},
	})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query: "what is the overall theme",
	}, "", "")
	require.NoError(t, err)
	require.NotNil(t, resp.Answer)
	require.Contains(t, *resp.Answer, "Global synthesis")
}

func TestExecuteSnapshotIDPinsToHistoricalView(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "first version of the document", nil, nil)
	pinned := repo.CurrentSnapshotID()
	seedNode(t, repo, 2, "second version of the document", nil, nil)

	engine := query.New(repo, query.Options{})
	resp, err := engine.Execute(context.Background(), query.Request{
		Query:      "version of the document",
		SearchMode: query.SearchLocal,
		Mode:       query.ModeEvidence,
		SnapshotID: pinned,
	}, "", "")
	require.NoError(t, err)
	require.Equal(t, pinned, resp.SnapshotID)
	for _, e := range resp.Evidence {
		require.NotEqual(t, uint64(2), e.NodeID)
	}
}

type countingEmbedder struct {
	calls int
	inner capability.Embedder
}

func (c *countingEmbedder) Embed(modelID, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(modelID, text)
}

func TestExecuteSemanticCacheSkipsPipelineOnSimilarRepeatQuery(t *testing.T) {
	repo := openRepo(t)
	seedNode(t, repo, 1, "the quick brown fox jumps over the lazy dog", nil, nil)

	embedder := &countingEmbedder{inner: capability.NewDeterministicEmbedder(16)}
	engine := query.New(repo, query.Options{
		Embedder: embedder,
		Cache:    query.NewSemanticCache[query.Response](query.DefaultSemanticCacheConfig()),
	})

	req := query.Request{Query: "quick brown fox", SearchMode: query.SearchLocal, Mode: query.ModeEvidence}
	first, err := engine.Execute(context.Background(), req, "", "")
	require.NoError(t, err)
	// One local pass plus two drift rounds: a single seeded node is too
	// little evidence, so the local query falls back to drift.
	require.Equal(t, 3, embedder.calls)

	second, err := engine.Execute(context.Background(), query.Request{
		Query: "brown fox quick", SearchMode: query.SearchLocal, Mode: query.ModeEvidence,
	}, "", "")
	require.NoError(t, err)
	require.Equal(t, 3, embedder.calls, "a similar repeat query should be served from cache without re-embedding")
	require.Equal(t, first.Evidence, second.Evidence)
}
