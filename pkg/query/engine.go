package query

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/graphrag/pkg/audit"
	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/graphindex"
	"github.com/cuemby/graphrag/pkg/ingest"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
	"github.com/cuemby/graphrag/pkg/vectorindex"
)

// CommunityProvider supplies the current community hierarchy for global
// search. Rebuilds happen out of band (outside the query critical path);
// the engine only ever reads the latest snapshot a provider returns.
type CommunityProvider interface {
	Summaries() []types.CommunitySummary
}

// Options configures an Engine's optional collaborators.
type Options struct {
	Embedder    capability.Embedder
	Communities CommunityProvider
	Sink        audit.Sink
	// Cache, when set, short-circuits pipeline execution for queries whose
	// execution parameters match a prior request's SemanticCacheKey and
	// whose text is similar enough (see SemanticCacheConfig). Nil disables
	// caching entirely.
	Cache *SemanticCache[Response]
}

// Engine is the QueryEngine: it runs validated requests against a
// Repository's current state or a pinned SnapshotView, with no observable
// side effect beyond audit emission.
type Engine struct {
	repo *repository.Repository
	opts Options
}

// New returns an Engine reading from repo.
func New(repo *repository.Repository, opts Options) *Engine {
	return &Engine{repo: repo, opts: opts}
}

// Execute normalizes and validates req, resolves its view, runs the
// planned pipeline, and returns the composed Response.
func (e *Engine) Execute(ctx context.Context, req Request, actor, tenant string) (Response, error) {
	normalized, err := NewRequest(req)
	if err != nil {
		e.audit(audit.OutcomeFailed, actor, tenant, normalized.ModelID, "", err)
		return Response{}, err
	}

	view, snapshotID, err := e.resolveView(normalized)
	if err != nil {
		e.audit(audit.OutcomeFailed, actor, tenant, normalized.ModelID, snapshotID, err)
		return Response{}, err
	}

	effective := normalized.SearchMode
	if effective == SearchAuto {
		effective = inferAutoMode(normalized.Query)
	}

	// The cache key is keyed on the planner's mode choice, not on whatever
	// the insufficient-evidence fallback below ends up doing — the
	// fallback decision is itself deterministic for a given (request,
	// snapshot), so keying on the pre-fallback mode still yields a stable
	// key across repeated identical requests while letting a cache hit
	// skip the pipeline before any fallback work happens.
	cacheKey := NewSemanticCacheKey(normalized, snapshotID, effective)
	if e.opts.Cache != nil {
		if cached, ok := e.opts.Cache.Lookup(cacheKey, normalized.Query); ok {
			e.audit(audit.OutcomeSucceeded, actor, tenant, normalized.ModelID, snapshotID, nil)
			return cached, nil
		}
	}

	p := planFor(effective, normalized)

	var result pipelineResult
	switch effective {
	case SearchGlobal:
		result = e.runGlobal(view, normalized, p)
	case SearchDrift:
		result = e.runDrift(view, normalized, p)
	default:
		result = e.runLocal(view, normalized, p.vectorTopK, p.expansionDepth)
	}

	if effective == SearchLocal && len(result.survivors) < 2 {
		driftPlan := planFor(SearchDrift, normalized)
		result = e.runDrift(view, normalized, driftPlan)
		result.exclusions = append(result.exclusions, "auto_fallback_to_drift_due_to_insufficient_evidence")
		effective = SearchDrift
	}

	resp := e.compose(result, normalized, effective, snapshotID)
	if e.opts.Cache != nil {
		e.opts.Cache.Insert(cacheKey, normalized.Query, resp)
	}
	e.audit(audit.OutcomeSucceeded, actor, tenant, normalized.ModelID, snapshotID, nil)
	return resp, nil
}

func (e *Engine) resolveView(req Request) (repository.ReadView, string, error) {
	if req.SnapshotID != "" {
		view, err := e.repo.LoadSnapshotView(req.SnapshotID)
		if err != nil {
			return nil, "", err
		}
		return view, req.SnapshotID, nil
	}
	return e.repo, e.repo.CurrentSnapshotID(), nil
}

func (e *Engine) audit(outcome audit.Outcome, actor, tenant, modelID, snapshotID string, err error) {
	if e.opts.Sink == nil {
		return
	}
	meta := map[string]string(nil)
	if err != nil {
		meta = map[string]string{"error": err.Error()}
	}
	_, _ = e.opts.Sink.Append(audit.Event{
		Operation:  audit.OperationQuery,
		Outcome:    outcome,
		Actor:      actor,
		Tenant:     tenant,
		ModelID:    modelID,
		SnapshotID: snapshotID,
		Metadata:   meta,
	})
}

// plan is the planner's output for one effective search mode.
type plan struct {
	vectorTopK     int
	expansionDepth int
	steps          []string
}

func planFor(mode SearchMode, req Request) plan {
	switch mode {
	case SearchGlobal:
		depth := req.Traversal.Depth
		if depth < 2 {
			depth = 2
		}
		return plan{vectorTopK: maxInt(req.TopK, 10), expansionDepth: depth, steps: []string{"vector_search", "graph_expand", "community_score", "reduce"}}
	case SearchDrift:
		depth := req.Traversal.Depth
		if depth < 3 {
			depth = 3
		}
		if depth > 8 {
			depth = 8
		}
		return plan{vectorTopK: req.TopK, expansionDepth: depth, steps: []string{"drift_iterative_expansion"}}
	default:
		return plan{vectorTopK: req.TopK, expansionDepth: req.Traversal.Depth, steps: []string{"vector_search", "graph_expand", "score", "compose"}}
	}
}

// pipelineResult is the local pipeline's output before Response
// composition (provenance, citations, groundedness, answer synthesis).
type pipelineResult struct {
	survivors    []scoredNode
	edges        []EdgeEvidence
	exclusions   []string
	steps        []string
	globalAnswer *string
}

type scoredNode struct {
	node  types.Node
	score float32
	hop   int
}

type reachCandidate struct {
	anchorScore float32
	hop         int
}

func (e *Engine) embedQuery(view repository.ReadView, modelID, query string) []float32 {
	if modelID == "" {
		modelID = ingest.DefaultModelID
	}
	if e.opts.Embedder != nil {
		v, _ := e.opts.Embedder.Embed(modelID, query)
		return v
	}
	dim := view.EmbeddingDimension()
	if dim == 0 {
		dim = 256
	}
	v, _ := capability.NewDeterministicEmbedder(dim).Embed(modelID, query)
	return v
}

func (e *Engine) runLocal(view repository.ReadView, req Request, vectorTopK, expansionDepth int) pipelineResult {
	var exclusions []string

	queryEmbedding := e.embedQuery(view, req.ModelID, req.Query)
	anchors := view.VectorSearch(queryEmbedding, vectorTopK)

	if len(anchors) == 0 {
		ids := view.ListNodeIDs()
		if len(ids) == 0 {
			return pipelineResult{exclusions: []string{"no_nodes_available"}, steps: []string{"vector_search"}}
		}
		anchors = []vectorindex.Scored{{ID: ids[0], Score: 0}}
	}

	allowed := relationUnion(req.Filters.RelationType, req.Traversal.RelationTypes)

	reach := make(map[uint64][]reachCandidate)
	for _, a := range anchors {
		reach[a.ID] = append(reach[a.ID], reachCandidate{anchorScore: a.Score, hop: 0})
		for _, h := range view.GraphExpand(a.ID, expansionDepth, allowed) {
			reach[h.NodeID] = append(reach[h.NodeID], reachCandidate{anchorScore: a.Score, hop: h.Hop})
		}
		for _, rel := range view.GraphFilteredRelations(a.ID, expansionDepth, allowed) {
			exclusions = append(exclusions, "relation_filtered:"+rel)
		}
	}

	ids := make([]uint64, 0, len(reach))
	for id := range reach {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := view.GetNodesByIDs(ids)
	nodeByID := make(map[uint64]types.Node, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	queryTokens := tokenize(req.Query)
	now := time.Now().Unix()

	var survivors []scoredNode
	for _, id := range ids {
		node, ok := nodeByID[id]
		if !ok {
			continue
		}

		if raw, ok := node.Metadata[types.MetaRetentionUntilUnix]; ok && raw != "" {
			if retention, err := strconv.ParseInt(raw, 10, 64); err == nil && now >= retention {
				exclusions = append(exclusions, "retention_expired")
				continue
			}
		}
		if len(req.Filters.EntityType) > 0 && !contains(req.Filters.EntityType, node.Metadata[types.MetaEntityType]) {
			exclusions = append(exclusions, "entity_type_filtered")
			continue
		}
		if req.Filters.TimeRange != nil && !withinTimeRange(node.Metadata[types.MetaTimestamp], *req.Filters.TimeRange) {
			exclusions = append(exclusions, "time_range_filtered")
			continue
		}

		lexical := jaccard(queryTokens, nodeTokens(node.Data, node.Metadata))
		best := bestCandidate(reach[id], lexical)
		score := candidateScore(best.anchorScore, lexical, best.hop)
		survivors = append(survivors, scoredNode{node: node, score: score, hop: best.hop})
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].node.ID < survivors[j].node.ID
	})
	if len(survivors) > req.TopK {
		for range survivors[req.TopK:] {
			exclusions = append(exclusions, "pruned_by_top_k")
		}
		survivors = survivors[:req.TopK]
	}

	edges := e.collectEdges(view, survivors, allowed)

	return pipelineResult{survivors: survivors, edges: edges, exclusions: exclusions, steps: []string{"vector_search", "graph_expand", "score", "compose"}}
}

func bestCandidate(candidates []reachCandidate, lexical float64) reachCandidate {
	best := reachCandidate{hop: 0}
	var bestScore float32 = -1
	for _, c := range candidates {
		s := candidateScore(c.anchorScore, lexical, c.hop)
		if s > bestScore {
			bestScore = s
			best = c
		}
	}
	return best
}

func (e *Engine) collectEdges(view repository.ReadView, survivors []scoredNode, allowed map[string]bool) []EdgeEvidence {
	surviving := make(map[uint64]bool, len(survivors))
	for _, s := range survivors {
		surviving[s.node.ID] = true
	}

	type key struct {
		source, target uint64
		relation       string
	}
	byKey := make(map[key]graphindex.Neighbor)
	var order []key
	for _, s := range survivors {
		for _, n := range view.GraphNeighbors(s.node.ID) {
			if !surviving[n.Target] {
				continue
			}
			if len(allowed) > 0 && !allowed[n.Relation] {
				continue
			}
			k := key{source: s.node.ID, target: n.Target, relation: n.Relation}
			if _, exists := byKey[k]; !exists {
				order = append(order, k)
			}
			byKey[k] = n
		}
	}

	edgeKeys := make([]types.EdgeKey, 0, len(order))
	for _, k := range order {
		edgeKeys = append(edgeKeys, types.EdgeKey{Source: k.source, Target: k.target, Relation: k.relation})
	}
	meta := view.GetEdgeMetadataBulk(edgeKeys)

	edges := make([]EdgeEvidence, 0, len(order))
	for _, k := range order {
		n := byKey[k]
		edges = append(edges, EdgeEvidence{
			Source:   k.source,
			Target:   k.target,
			Relation: k.relation,
			Weight:   n.Weight,
			Metadata: meta[types.EdgeKey{Source: k.source, Target: k.target, Relation: k.relation}],
		})
	}
	return edges
}

func relationUnion(a, b []string) map[string]bool {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]bool, len(a)+len(b))
	for _, r := range a {
		out[r] = true
	}
	for _, r := range b {
		out[r] = true
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func withinTimeRange(timestamp string, r TimeRange) bool {
	if timestamp == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		t, err = time.Parse("2006-01-02", timestamp)
		if err != nil {
			return false
		}
	}
	from, err := time.Parse("2006-01-02", r.From)
	if err != nil {
		return false
	}
	to, err := time.Parse("2006-01-02", r.To)
	if err != nil {
		return false
	}
	day := t.Truncate(24 * time.Hour)
	return !day.Before(from) && !day.After(to)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// compose turns a pipelineResult into a Response: provenance, citations,
// groundedness, and (for mode=answer) answer synthesis.
func (e *Engine) compose(result pipelineResult, req Request, effective SearchMode, snapshotID string) Response {
	resp := Response{
		EffectiveSearchMode: effective,
		SnapshotID:          snapshotID,
		TimeTravel:          req.TimeTravel,
		Steps:               result.steps,
		Exclusions:          result.exclusions,
		Edges:               result.edges,
	}

	var scores []float64
	seenSources := make(map[string]bool)
	for _, s := range result.survivors {
		prov := types.Provenance{
			Source:            s.node.Metadata[types.MetaSource],
			ExtractionModelID: s.node.Metadata[types.MetaExtractionModelID],
			SnapshotID:        s.node.Metadata[types.MetaSnapshotID],
			IngestedAt:        s.node.Metadata[types.MetaIngestedAt],
		}
		confidence := s.score
		if raw, ok := s.node.Metadata[types.MetaConfidence]; ok {
			if parsed, err := strconv.ParseFloat(raw, 32); err == nil {
				confidence = float32(parsed)
			}
		}
		resp.Evidence = append(resp.Evidence, Evidence{
			NodeID:     s.node.ID,
			Data:       s.node.Data,
			Score:      s.score,
			Confidence: confidence,
			Hop:        s.hop,
			Provenance: prov,
		})
		scores = append(scores, float64(s.score))

		if src := s.node.Metadata[types.MetaSource]; src != "" && !seenSources[src] {
			seenSources[src] = true
			resp.Citations = append(resp.Citations, Citation{
				NodeID:     s.node.ID,
				Source:     src,
				Span:       [2]int{0, minInt(len(s.node.Data), 80)},
				Confidence: confidence,
			})
		}
	}

	var meanScore float64
	for _, s := range scores {
		meanScore += s
	}
	if len(scores) > 0 {
		meanScore /= float64(len(scores))
	}
	hasEdges := 0.0
	if len(result.edges) > 0 {
		hasEdges = 1
	}
	resp.Groundedness = clamp01(
		0.5*meanScore +
			0.2*minFloat(float64(len(seenSources))/3, 1) +
			0.15*hasEdges +
			0.15*minFloat(float64(len(result.survivors))/3, 1),
	)

	if req.Mode == ModeAnswer {
		if result.globalAnswer != nil {
			resp.Answer = result.globalAnswer
		} else {
			resp.Answer = synthesizeAnswer(resp.Evidence)
		}
	}
	return resp
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func synthesizeAnswer(evidence []Evidence) *string {
	if len(evidence) == 0 {
		return nil
	}
	n := minInt(3, len(evidence))
	var parts []string
	for i := 0; i < n; i++ {
		parts = append(parts, strings.TrimSpace(evidence[i].Data))
	}
	answer := strings.Join(parts, " ")
	return &answer
}
