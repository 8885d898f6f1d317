// Package query implements the QueryEngine: the local/global/drift
// retrieval pipelines described in spec §4.7, including their shared
// input DSL, validation, and planning step. Its read surface is
// repository.ReadView so a query can run against the live repository or
// a pinned SnapshotView without caring which.
package query

import (
	"strings"
	"time"

	"github.com/cuemby/graphrag/pkg/rerr"
)

// Mode is the response shape requested.
type Mode string

const (
	ModeAnswer   Mode = "answer"
	ModeEvidence Mode = "evidence"
)

// SearchMode selects (or lets the planner select) the retrieval strategy.
type SearchMode string

const (
	SearchLocal  SearchMode = "local"
	SearchGlobal SearchMode = "global"
	SearchDrift  SearchMode = "drift"
	SearchAuto   SearchMode = "auto"
)

// Traversal configures graph expansion from vector-search anchors.
type Traversal struct {
	Depth         int
	RelationTypes []string
}

// Filters restricts which candidate nodes and edges survive scoring.
type Filters struct {
	EntityType   []string
	RelationType []string
	TimeRange    *TimeRange
}

// TimeRange bounds metadata.timestamp, inclusive, as ISO YYYY-MM-DD dates.
type TimeRange struct {
	From string
	To   string
}

// Request is the validated input DSL for one query.
type Request struct {
	Query      string
	Mode       Mode
	SearchMode SearchMode
	TopK       int
	Traversal  Traversal
	Filters    Filters
	ModelID    string
	SnapshotID string
	TimeTravel string
}

// Normalize fills in every default the spec specifies, without
// validating. Call Validate after Normalize (or use NewRequest, which
// does both).
func (r Request) Normalize() Request {
	if r.Mode == "" {
		r.Mode = ModeAnswer
	}
	if r.SearchMode == "" {
		r.SearchMode = SearchAuto
	}
	if r.TopK == 0 {
		r.TopK = 20
	}
	if r.Traversal.Depth == 0 {
		r.Traversal.Depth = 1
	}
	return r
}

// NewRequest normalizes then validates r, returning the request ready for
// Engine.Execute.
func NewRequest(r Request) (Request, error) {
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks every DSL constraint from spec §4.7. It assumes
// Normalize has already been applied (zero values are treated as
// violations, not defaults, once Validate runs standalone).
func (r Request) Validate() error {
	const op = "query.Request.Validate"

	if strings.TrimSpace(r.Query) == "" {
		return rerr.New(rerr.InvalidArgument, op, "query must not be empty")
	}
	if r.Mode != ModeAnswer && r.Mode != ModeEvidence {
		return rerr.Newf(rerr.InvalidArgument, op, "mode %q is not one of answer|evidence", r.Mode)
	}
	if r.SearchMode != SearchLocal && r.SearchMode != SearchGlobal && r.SearchMode != SearchDrift && r.SearchMode != SearchAuto {
		return rerr.Newf(rerr.InvalidArgument, op, "search_mode %q is not one of local|global|drift|auto", r.SearchMode)
	}
	if r.TopK < 1 || r.TopK > 1000 {
		return rerr.Newf(rerr.InvalidArgument, op, "top_k %d is out of range [1, 1000]", r.TopK)
	}
	if r.Traversal.Depth < 1 || r.Traversal.Depth > 8 {
		return rerr.Newf(rerr.InvalidArgument, op, "traversal.depth %d is out of range [1, 8]", r.Traversal.Depth)
	}
	if err := validateNonEmptyStrings(op, "traversal.relation_types", r.Traversal.RelationTypes); err != nil {
		return err
	}
	if err := validateNonEmptyStrings(op, "filters.entity_type", r.Filters.EntityType); err != nil {
		return err
	}
	if err := validateNonEmptyStrings(op, "filters.relation_type", r.Filters.RelationType); err != nil {
		return err
	}
	if r.Filters.TimeRange != nil {
		from, err := time.Parse("2006-01-02", r.Filters.TimeRange.From)
		if err != nil {
			return rerr.Newf(rerr.InvalidArgument, op, "filters.time_range.from is not an ISO date: %v", err)
		}
		to, err := time.Parse("2006-01-02", r.Filters.TimeRange.To)
		if err != nil {
			return rerr.Newf(rerr.InvalidArgument, op, "filters.time_range.to is not an ISO date: %v", err)
		}
		if from.After(to) {
			return rerr.New(rerr.InvalidArgument, op, "filters.time_range.from must be <= to")
		}
	}
	if r.TimeTravel != "" {
		if _, err := parseTimeTravel(r.TimeTravel); err != nil {
			return rerr.Newf(rerr.InvalidArgument, op, "time_travel is not parseable: %v", err)
		}
	}
	return nil
}

func validateNonEmptyStrings(op, field string, values []string) error {
	for _, v := range values {
		if v == "" {
			return rerr.Newf(rerr.InvalidArgument, op, "%s must not contain an empty string", field)
		}
	}
	return nil
}

func parseTimeTravel(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// globalKeywords are the fixed multilingual keyword set that forces
// auto-mode to resolve to global search.
var globalKeywords = []string{
	"全体", "主要テーマ", "総括", "包括", "俯瞰",
	"global", "overall", "theme", "themes", "summary",
}

func inferAutoMode(query string) SearchMode {
	lowered := strings.ToLower(query)
	for _, kw := range globalKeywords {
		if strings.Contains(lowered, kw) {
			return SearchGlobal
		}
	}
	return SearchLocal
}
