// Package types defines the data model shared across the repository, query
// engine, ingestion pipeline, and community detection packages.
package types

import "fmt"

// Node is a unit of the knowledge store: an ingested chunk or an extracted
// entity. Embedding may be nil for nodes created before an embedder was
// configured; callers that need a dimension should consult
// Repository.EmbeddingDimension instead of len(Embedding) on any one node.
type Node struct {
	ID        uint64            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Data      string            `json:"data"`
	Metadata  map[string]string `json:"metadata"`
}

// Well-known Node.Metadata keys.
const (
	MetaSource              = "source"
	MetaEntityType           = "entity_type"
	MetaTimestamp            = "timestamp"
	MetaContentHash          = "content_hash"
	MetaIdempotencyKey       = "idempotency_key"
	MetaModelID              = "model_id"
	MetaExtractionModelID    = "extraction_model_id"
	MetaSnapshotID           = "snapshot_id"
	MetaIngestedAt           = "ingested_at"
	MetaConfidence           = "confidence"
	MetaTenant               = "tenant"
	MetaResidencyRegion      = "residency_region"
	MetaRetentionUntilUnix   = "retention_until_unix"
	MetaKMSKeyID             = "kms_key_id"
	MetaModality             = "modality"
	MetaChunkIndex           = "chunk_index"
	MetaChunkChars           = "chunk_chars"
	MetaChunkOverlap         = "chunk_overlap"
	MetaFilename             = "filename"
	MetaMimeType             = "mime_type"
)

// Edge connects two nodes. Its logical key is (Source, Target, Relation);
// PutEdge is an upsert on that key.
type Edge struct {
	Source   uint64            `json:"source"`
	Target   uint64            `json:"target"`
	Relation string            `json:"relation"`
	Weight   float32           `json:"weight"`
	Metadata map[string]string `json:"metadata"`
}

// EdgeKey is the logical identity of an Edge, used as a map key throughout
// the graph index and edge-metadata table.
type EdgeKey struct {
	Source   uint64
	Target   uint64
	Relation string
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%d->%d:%s", k.Source, k.Target, k.Relation)
}

// IdempotencyRecord maps a caller-supplied idempotency key or a computed
// content hash to the node ids produced by the ingest that first recorded
// it.
type IdempotencyRecord struct {
	Key     string   `json:"key"`
	NodeIDs []uint64 `json:"node_ids"`
}

// CommunitySummary is one node of the community hierarchy CommunityEngine
// builds from the graph index.
type CommunitySummary struct {
	Level       uint32   `json:"level"`
	CommunityID uint32   `json:"community_id"`
	TopNodes    []uint64 `json:"top_nodes"`
	Summary     string   `json:"summary"`
}

// Provenance is the subset of a node's metadata the query engine surfaces
// alongside each piece of evidence.
type Provenance struct {
	Source             string `json:"source,omitempty"`
	ExtractionModelID   string `json:"extraction_model_id,omitempty"`
	SnapshotID          string `json:"snapshot_id,omitempty"`
	IngestedAt          string `json:"ingested_at,omitempty"`
}
