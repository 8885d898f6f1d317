// Package community implements the Leiden-style local-move community
// detection, weighted PageRank, and hierarchical summarization the query
// engine's global search mode reads from (spec §4.8). It is a pure,
// value-typed computation over a snapshot of the graph index — it holds no
// reference to repository state, matching the "graph traversal & community
// detection" re-architecture note in spec §9. Grounded on cuemby-warren's
// pkg/scheduler (deterministic, pure scoring passes over a point-in-time
// snapshot of cluster state) generalized from bin-packing scores to
// modularity gain.
package community

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cuemby/graphrag/pkg/types"
)

// Summarizer produces the human-readable summary for one community. The
// default summarizer is DefaultSummarizer.
type Summarizer func(level, communityID uint32, topNodes, allMembers []uint64) string

// Engine runs community detection and summarization over a graph
// snapshot.
type Engine struct {
	MaxLevels  int
	Summarizer Summarizer
}

// NewEngine returns an Engine with maxLevels capped levels (minimum 1) and
// the default summarizer if summarizer is nil.
func NewEngine(maxLevels int, summarizer Summarizer) *Engine {
	if maxLevels < 1 {
		maxLevels = 1
	}
	if summarizer == nil {
		summarizer = DefaultSummarizer
	}
	return &Engine{MaxLevels: maxLevels, Summarizer: summarizer}
}

// DefaultSummarizer implements the spec's default summary format.
func DefaultSummarizer(level, communityID uint32, _ []uint64, allMembers []uint64) string {
	return formatSummary(level, communityID, allMembers)
}

// Build runs the full pipeline over nodeIDs and edges and returns the
// community hierarchy, ordered by level then community id ascending.
func (e *Engine) Build(nodeIDs []uint64, edges []types.Edge) []types.CommunitySummary {
	if len(nodeIDs) == 0 {
		return nil
	}
	nodes := append([]uint64(nil), nodeIDs...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	topNodes := topNodesByPageRank(nodes, edges)
	topSet := make(map[uint64]bool, len(topNodes))
	for _, id := range topNodes {
		topSet[id] = true
	}

	undirected := buildUndirected(edges)

	var summaries []types.CommunitySummary
	level := uint32(0)
	currentGraph := undirected
	currentMembers := identityMembers(nodes)

	for {
		partition := localMove(currentGraph, membersKeys(currentMembers))
		communities := refineIntoComponents(currentGraph, partition)

		for _, c := range communities {
			flattened := flatten(c.members, currentMembers)
			sort.Slice(flattened, func(i, j int) bool { return flattened[i] < flattened[j] })
			top := intersect(flattened, topSet)
			if len(top) == 0 && len(flattened) > 0 {
				top = []uint64{flattened[0]}
			}
			summaries = append(summaries, types.CommunitySummary{
				Level:       level,
				CommunityID: c.id,
				TopNodes:    top,
				Summary:     e.Summarizer(level, c.id, top, flattened),
			})
		}

		prevNodeCount := len(currentGraph)
		if len(communities) <= 1 || len(communities) >= prevNodeCount || int(level)+1 >= e.MaxLevels {
			break
		}

		currentGraph, currentMembers = buildSuperGraph(currentGraph, communities, currentMembers)
		level++
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Level != summaries[j].Level {
			return summaries[i].Level < summaries[j].Level
		}
		return summaries[i].CommunityID < summaries[j].CommunityID
	})
	return summaries
}

func formatSummary(level, communityID uint32, members []uint64) string {
	ids := make([]string, len(members))
	for i, id := range members {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("L%d-C%d: %d nodes, key [%s]", level, communityID, len(members), strings.Join(ids, " "))
}

func intersect(sorted []uint64, set map[uint64]bool) []uint64 {
	var out []uint64
	for _, id := range sorted {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func identityMembers(nodes []uint64) map[uint64][]uint64 {
	m := make(map[uint64][]uint64, len(nodes))
	for _, n := range nodes {
		m[n] = []uint64{n}
	}
	return m
}

func membersKeys(m map[uint64][]uint64) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func flatten(unitNodes []uint64, members map[uint64][]uint64) []uint64 {
	var out []uint64
	for _, u := range unitNodes {
		out = append(out, members[u]...)
	}
	return out
}

func topNodesByPageRank(nodes []uint64, edges []types.Edge) []uint64 {
	pr := pageRank(nodes, edges, 30, 0.85)
	type scored struct {
		id uint64
		pr float64
	}
	scoredNodes := make([]scored, len(nodes))
	for i, id := range nodes {
		scoredNodes[i] = scored{id: id, pr: pr[id]}
	}
	sort.Slice(scoredNodes, func(i, j int) bool {
		if scoredNodes[i].pr != scoredNodes[j].pr {
			return scoredNodes[i].pr > scoredNodes[j].pr
		}
		return scoredNodes[i].id < scoredNodes[j].id
	})
	k := int(math.Ceil(float64(len(nodes)) * 0.10))
	if k < 1 {
		k = 1
	}
	if k > len(scoredNodes) {
		k = len(scoredNodes)
	}
	out := make([]uint64, k)
	for i := 0; i < k; i++ {
		out[i] = scoredNodes[i].id
	}
	return out
}
