package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

// runGlobal runs the local pipeline with a widened vector_top_k, then
// scores community summaries against the query and reduces the top 5
// into a synthesized answer (spec §4.7 "Global mode").
func (e *Engine) runGlobal(view repository.ReadView, req Request, p plan) pipelineResult {
	result := e.runLocal(view, req, p.vectorTopK, p.expansionDepth)
	result.steps = p.steps

	if e.opts.Communities == nil {
		result.exclusions = append(result.exclusions, "no_community_data_fallback_to_vector")
		return result
	}
	summaries := e.opts.Communities.Summaries()
	if len(summaries) == 0 {
		result.exclusions = append(result.exclusions, "no_community_data_fallback_to_vector")
		return result
	}
	if len(req.Filters.RelationType) > 0 {
		result.exclusions = append(result.exclusions, "relation_filter_disables_global_synthesis")
		return result
	}

	surviving := make(map[uint64]bool, len(result.survivors))
	for _, s := range result.survivors {
		surviving[s.node.ID] = true
	}

	queryTokens := tokenize(req.Query)
	type scoredSummary struct {
		summary types.CommunitySummary
		score   float64
	}
	var scored []scoredSummary
	for _, cs := range summaries {
		score := jaccard(queryTokens, tokenize(cs.Summary))
		if score <= 0 {
			continue
		}
		matchesSurvivor := false
		for _, id := range cs.TopNodes {
			if surviving[id] {
				matchesSurvivor = true
				break
			}
		}
		if !matchesSurvivor {
			continue
		}
		scored = append(scored, scoredSummary{summary: cs, score: score})
	}
	if len(scored) == 0 {
		result.exclusions = append(result.exclusions, "no_community_summary_matched")
		return result
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].summary.Level != scored[j].summary.Level {
			return scored[i].summary.Level < scored[j].summary.Level
		}
		return scored[i].summary.CommunityID < scored[j].summary.CommunityID
	})
	if len(scored) > 5 {
		scored = scored[:5]
	}

	parts := make([]string, len(scored))
	for i, s := range scored {
		parts[i] = fmt.Sprintf("[Community L%d-C%d] %s", s.summary.Level, s.summary.CommunityID, s.summary.Summary)
	}
	answer := fmt.Sprintf("Global synthesis from %d community summaries: %s", len(scored), strings.Join(parts, " | "))
	result.globalAnswer = &answer
	return result
}

// runDrift iterates the local pipeline over widening rounds, keeping the
// best state by evidence count (spec §4.7 "Drift mode").
func (e *Engine) runDrift(view repository.ReadView, req Request, p plan) pipelineResult {
	baseDepth := req.Traversal.Depth
	baseTopK := req.TopK

	var best pipelineResult
	bestCount := -1
	for i := 0; i < 4; i++ {
		depth := minInt(baseDepth+i, 8)
		vectorTopK := minInt(baseTopK+2*i, 50)
		round := e.runLocal(view, req, vectorTopK, depth)

		improved := len(round.survivors) > bestCount
		if improved {
			best = round
			bestCount = len(round.survivors)
		}
		if len(round.survivors) >= 3 {
			break
		}
		if i > 0 && !improved {
			break
		}
	}

	best.steps = append(append([]string{}, best.steps...), "drift_iterative_expansion")
	if len(best.survivors) == 0 {
		best.exclusions = append(best.exclusions, "drift_exhausted_no_evidence")
	}
	return best
}
