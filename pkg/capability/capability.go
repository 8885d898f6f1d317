// Package capability defines the small, pluggable interfaces the
// ingestion pipeline and extraction worker depend on instead of concrete
// embedding/chunking/extraction libraries — the same shape cuemby-warren
// uses for pkg/volume.Driver and pkg/dns.Backend (narrow interface, swap
// implementations without touching callers). This package also ships the
// deterministic reference implementations the spec's design notes (§9)
// describe, used when no richer capability is configured.
package capability

import "context"

// Embedder produces a fixed-length embedding for text under a named
// model. Implementations must be deterministic: identical (modelID, text)
// must always yield an identical vector, since the query engine re-embeds
// the query under the same model the ingest used.
type Embedder interface {
	Embed(modelID, text string) ([]float32, error)
}

// Chunker splits text into overlapping windows for per-chunk embedding.
type Chunker interface {
	Chunk(text string) []Chunk
}

// Chunk is one output of a Chunker.
type Chunk struct {
	Text    string
	Index   int
	Chars   int
	Overlap int
}

// Entity is one extraction result.
type Entity struct {
	Text       string
	Label      string
	Confidence float32
}

// Extractor pulls entities out of chunk content. Extraction is treated as
// a potentially slow, potentially remote operation, hence context.Context.
type Extractor interface {
	Extract(ctx context.Context, content string) ([]Entity, error)
}

// ContentPolicy gates ingested content before it is chunked. Policy is
// applied once per document, not per chunk.
type ContentPolicy interface {
	// Check returns a non-nil error to reject the content. The error
	// should be wrapped with rerr.Policy by the caller.
	Check(content string) error
}
