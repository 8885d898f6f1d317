// Package audit implements the write-only event stream the ingestion
// pipeline and query engine emit to. Its shape — a struct describing one
// event, and a Sink interface multiple backends implement — follows
// cuemby-warren's pkg/events.Broker, generalized from cluster lifecycle
// events to ingest/query audit events and reduced from pub/sub fan-out to
// a single append-only sink per process (the spec calls for at-least-once
// append, not pub/sub delivery).
package audit

import "github.com/google/uuid"

// Operation is the kind of request an audit event records.
type Operation string

const (
	OperationIngest Operation = "ingest"
	OperationQuery  Operation = "query"
)

// Outcome is the result of the recorded request.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDenied    Outcome = "denied"
	OutcomeFailed    Outcome = "failed"
)

// Event is one audit record. Sequence orders events within a single sink;
// ID is a globally unique identifier stable across sinks, for correlating
// an event with logs or traces emitted outside the audit stream.
type Event struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Operation  Operation         `json:"operation"`
	Outcome    Outcome           `json:"outcome"`
	Actor      string            `json:"actor,omitempty"`
	Tenant     string            `json:"tenant,omitempty"`
	ModelID    string            `json:"model_id,omitempty"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Sink appends an audit event durably (at least once) and assigns it the
// sink's next sequence number.
type Sink interface {
	Append(e Event) (Event, error)
}
