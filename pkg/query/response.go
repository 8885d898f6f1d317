package query

import "github.com/cuemby/graphrag/pkg/types"

// Evidence is one scored, filtered node surfaced by a query.
type Evidence struct {
	NodeID     uint64
	Data       string
	Score      float32
	Confidence float32
	Hop        int
	Provenance types.Provenance
}

// EdgeEvidence is one retained edge between two surviving evidence nodes.
type EdgeEvidence struct {
	Source   uint64
	Target   uint64
	Relation string
	Weight   float32
	Metadata map[string]string
}

// Citation points from a piece of evidence back to its source metadata.
type Citation struct {
	NodeID     uint64
	Source     string
	Span       [2]int
	Confidence float32
}

// Response is the result of Engine.Execute.
type Response struct {
	EffectiveSearchMode SearchMode
	SnapshotID          string
	TimeTravel          string
	Evidence            []Evidence
	Edges               []EdgeEvidence
	Citations           []Citation
	Groundedness        float64
	Answer              *string
	Steps               []string
	Exclusions          []string
}
