package community_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/community"
	"github.com/cuemby/graphrag/pkg/types"
)

// twoCliques builds two dense triangles (1,2,3) and (4,5,6) joined by a
// single weak bridge edge, the canonical Leiden smoke test: local-move
// should recover exactly the two triangles as communities.
func twoCliques() ([]uint64, []types.Edge) {
	nodes := []uint64{1, 2, 3, 4, 5, 6}
	edges := []types.Edge{
		{Source: 1, Target: 2, Relation: "rel", Weight: 5},
		{Source: 2, Target: 3, Relation: "rel", Weight: 5},
		{Source: 1, Target: 3, Relation: "rel", Weight: 5},
		{Source: 4, Target: 5, Relation: "rel", Weight: 5},
		{Source: 5, Target: 6, Relation: "rel", Weight: 5},
		{Source: 4, Target: 6, Relation: "rel", Weight: 5},
		{Source: 3, Target: 4, Relation: "rel", Weight: 1},
	}
	return nodes, edges
}

func TestBuildRecoversTwoCliquesAtLevelZero(t *testing.T) {
	nodes, edges := twoCliques()
	eng := community.NewEngine(4, nil)
	summaries := eng.Build(nodes, edges)
	require.NotEmpty(t, summaries)

	levelZero := make([]types.CommunitySummary, 0)
	for _, s := range summaries {
		if s.Level == 0 {
			levelZero = append(levelZero, s)
		}
	}
	require.Len(t, levelZero, 2)

	membership := make(map[uint64]uint32)
	for _, s := range levelZero {
		for _, id := range s.TopNodes {
			membership[id] = s.CommunityID
		}
	}
	// the two triangles must not collapse into a single community
	seen := make(map[uint32]bool)
	for _, s := range levelZero {
		seen[s.CommunityID] = true
	}
	require.Len(t, seen, 2)
}

func TestBuildIsDeterministicAcrossRepeatedRuns(t *testing.T) {
	nodes, edges := twoCliques()
	eng := community.NewEngine(4, nil)

	first := eng.Build(nodes, edges)
	second := eng.Build(nodes, edges)
	require.Equal(t, first, second)
}

func TestBuildOnEmptyGraphReturnsNil(t *testing.T) {
	eng := community.NewEngine(4, nil)
	require.Nil(t, eng.Build(nil, nil))
}

func TestBuildAssignsNonEmptySummaryText(t *testing.T) {
	nodes, edges := twoCliques()
	eng := community.NewEngine(4, nil)
	summaries := eng.Build(nodes, edges)
	for _, s := range summaries {
		require.NotEmpty(t, s.Summary)
		require.NotEmpty(t, s.TopNodes)
	}
}

func TestCustomSummarizerIsUsed(t *testing.T) {
	nodes, edges := twoCliques()
	called := false
	eng := community.NewEngine(4, func(level, communityID uint32, topNodes, allMembers []uint64) string {
		called = true
		return "custom"
	})
	summaries := eng.Build(nodes, edges)
	require.True(t, called)
	for _, s := range summaries {
		require.Equal(t, "custom", s.Summary)
	}
}

func TestBuildSingleIsolatedNodeYieldsSingleCommunity(t *testing.T) {
	eng := community.NewEngine(4, nil)
	summaries := eng.Build([]uint64{42}, nil)
	require.Len(t, summaries, 1)
	require.Equal(t, []uint64{42}, summaries[0].TopNodes)
}
