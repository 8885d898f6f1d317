// Package ingest implements the IngestionPipeline: the deduplicated,
// idempotent, policy-gated chunk→embed→persist flow that turns an
// IngestionRequest into Repository nodes and enqueued extraction jobs.
// Its shape — validate, lock, check idempotency, transform, persist,
// record, audit — is grounded on cuemby-warren's pkg/manager/fsm.go apply
// protocol, generalized from cluster-object upserts to document ingest.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cuemby/graphrag/pkg/audit"
	"github.com/cuemby/graphrag/pkg/authz"
	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/governance"
	"github.com/cuemby/graphrag/pkg/idgen"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/rerr"
	"github.com/cuemby/graphrag/pkg/types"
)

// ContentKind is the detected shape of a File request's bytes.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindMarkdown    ContentKind = "markdown"
	KindJSON        ContentKind = "json"
	KindPDF         ContentKind = "pdf"
	KindUnsupported ContentKind = "unsupported"
)

// DefaultModelID is used when a request does not specify model_id.
const DefaultModelID = "embedding-default-v1"

// Request is the tagged union of ingest request variants. Implementations
// are Text and File.
type Request interface {
	idempotencyKey() string
	modelID() string
	baseMetadata() map[string]string
	domainSeparator() string
	variantBytes() [][]byte
	extractText(pdf capability.PDFExtractor) (string, error)
}

// Text is a plain-text ingestion request.
type Text struct {
	Content        string
	Metadata       map[string]string
	IdempotencyKey string
	ModelID        string
}

func (t Text) idempotencyKey() string          { return t.IdempotencyKey }
func (t Text) modelID() string                 { return t.ModelID }
func (t Text) baseMetadata() map[string]string { return t.Metadata }
func (t Text) domainSeparator() string         { return "text" }
func (t Text) variantBytes() [][]byte          { return [][]byte{[]byte(t.Content)} }
func (t Text) extractText(capability.PDFExtractor) (string, error) { return t.Content, nil }

// File is a binary ingestion request, dispatched on detected ContentKind.
type File struct {
	Filename       string
	Content        []byte
	MimeType       string
	Metadata       map[string]string
	IdempotencyKey string
	ModelID        string
}

func (f File) idempotencyKey() string          { return f.IdempotencyKey }
func (f File) modelID() string                 { return f.ModelID }
func (f File) baseMetadata() map[string]string { return f.Metadata }
func (f File) domainSeparator() string         { return "file" }
func (f File) variantBytes() [][]byte {
	return [][]byte{[]byte(f.MimeType), []byte(f.Filename), f.Content}
}

func (f File) extractText(pdf capability.PDFExtractor) (string, error) {
	switch detectKind(f.MimeType, f.Filename) {
	case KindText, KindMarkdown, KindJSON:
		if !utf8.Valid(f.Content) {
			return "", rerr.New(rerr.Policy, "ingest.extractText", "content is not valid UTF-8")
		}
		return string(f.Content), nil
	case KindPDF:
		text, err := pdf.ExtractText(f.Content)
		if err != nil {
			return "", rerr.Wrap(err, rerr.Policy, "ingest.extractText")
		}
		if text == "" {
			return "", rerr.New(rerr.Policy, "ingest.extractText", "pdf extraction produced no text")
		}
		return text, nil
	default:
		return "", rerr.New(rerr.Policy, "ingest.extractText", "unsupported content kind")
	}
}

func detectKind(mimeType, filename string) ContentKind {
	mt := strings.ToLower(mimeType)
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(mt, "pdf") || strings.HasSuffix(name, ".pdf"):
		return KindPDF
	case strings.Contains(mt, "json") || strings.HasSuffix(name, ".json"):
		return KindJSON
	case strings.Contains(mt, "markdown") || strings.HasSuffix(name, ".md"):
		return KindMarkdown
	case strings.HasPrefix(mt, "text/") || strings.HasSuffix(name, ".txt"):
		return KindText
	default:
		return KindUnsupported
	}
}

// ExtractEntities is the job enqueued for the ExtractionWorker after each
// chunk is persisted.
type ExtractEntities struct {
	NodeID     uint64
	Content    string
	ModelID    string
	SnapshotID string
}

// Options configures a Pipeline's optional collaborators. Every field may
// be left zero-valued; Pipeline falls back to permissive/deterministic
// defaults (no authz, no governance, the reference chunker/embedder,
// an allow-everything content policy, no job queue).
type Options struct {
	Authorizer     authz.Authorizer
	Governance     governance.Store
	Embedder       capability.Embedder
	Chunker        capability.Chunker
	Policy         capability.ContentPolicy
	PDFExtractor   capability.PDFExtractor
	Sink           audit.Sink
	Jobs           chan<- ExtractEntities
}

// Pipeline is the IngestionPipeline. One Pipeline wraps one Repository.
type Pipeline struct {
	repo *repository.Repository
	opts Options

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// New returns a Pipeline over repo configured with opts.
func New(repo *repository.Repository, opts Options) *Pipeline {
	if opts.Embedder == nil {
		opts.Embedder = capability.NewDeterministicEmbedder(256)
	}
	if opts.Chunker == nil {
		opts.Chunker = capability.NewFixedWidthChunker(512, 64)
	}
	if opts.PDFExtractor == nil {
		opts.PDFExtractor = capability.UnsupportedPDFExtractor{}
	}
	if opts.Sink == nil {
		opts.Sink = audit.NewInMemorySink()
	}
	return &Pipeline{repo: repo, opts: opts, inFlight: make(map[string]bool)}
}

// Principal/Resource are forwarded to Authorizer.Authorize when Ingest is
// called via IngestAuthorized; a zero Principal and Resource mean "no
// authorization required" for the plain Ingest entry point.

// Ingest runs the pipeline without an authorization check (step 1 of
// spec §4.5 is skipped). Use IngestAuthorized when a principal is known.
func (p *Pipeline) Ingest(ctx context.Context, req Request, tenant string) ([]uint64, error) {
	return p.ingest(ctx, req, tenant, nil, authz.Principal{}, authz.Resource{})
}

// IngestAuthorized runs the full pipeline including the authorization
// check against principal/resource.
func (p *Pipeline) IngestAuthorized(ctx context.Context, req Request, tenant string, principal authz.Principal, resource authz.Resource) ([]uint64, error) {
	return p.ingest(ctx, req, tenant, p.opts.Authorizer, principal, resource)
}

func (p *Pipeline) ingest(ctx context.Context, req Request, tenant string, authorizer authz.Authorizer, principal authz.Principal, resource authz.Resource) ([]uint64, error) {
	modelID := req.modelID()
	if modelID == "" {
		modelID = DefaultModelID
	}

	if authorizer != nil {
		decision := authorizer.Authorize(principal, "ingest", resource)
		if decision != authz.Allowed {
			p.audit(audit.OutcomeDenied, principal.ID, tenant, modelID, "", map[string]string{"decision": string(decision)})
			return nil, authz.DecisionError(decision)
		}
	}

	ids, err := p.ingestLocked(ctx, req, tenant, modelID)
	if err != nil {
		p.audit(audit.OutcomeFailed, principal.ID, tenant, modelID, "", map[string]string{"error": err.Error()})
		return nil, err
	}
	p.audit(audit.OutcomeSucceeded, principal.ID, tenant, modelID, p.repo.CurrentSnapshotID(), nil)
	return ids, nil
}

func (p *Pipeline) ingestLocked(ctx context.Context, req Request, tenant, modelID string) ([]uint64, error) {
	baseMeta := req.baseMetadata()

	if err := p.governancePreflight(tenant, baseMeta["region"]); err != nil {
		return nil, err
	}

	contentHash := idgen.ContentHash(req.domainSeparator(), req.variantBytes()...)
	contentHashHex := fmt.Sprintf("%x", contentHash)

	lockKey := req.idempotencyKey()
	if lockKey == "" {
		lockKey = contentHashHex
	}

	if err := p.acquire(lockKey); err != nil {
		return nil, err
	}
	defer p.release(lockKey)

	if ids, ok := p.checkExistingIdempotency(req.idempotencyKey(), contentHashHex); ok {
		return ids, nil
	}

	text, err := req.extractText(p.opts.PDFExtractor)
	if err != nil {
		return nil, err
	}

	metadata := mergeMetadata(baseMeta, req, contentHashHex, modelID, tenant)
	if p.opts.Governance != nil && tenant != "" {
		if policy, ok := p.opts.Governance.GetPolicy(tenant); ok {
			if policy.ResidencyRegion != "" {
				metadata[types.MetaResidencyRegion] = policy.ResidencyRegion
			}
			if until := governance.RetentionUntil(policy, time.Now().Unix()); until > 0 {
				metadata[types.MetaRetentionUntilUnix] = strconv.FormatInt(until, 10)
			}
			if policy.Encryption.AtRest && policy.Encryption.KMSKeyID != "" {
				metadata[types.MetaKMSKeyID] = policy.Encryption.KMSKeyID
			}
		}
	}

	if p.opts.Policy != nil {
		if err := p.opts.Policy.Check(text); err != nil {
			return nil, rerr.Wrap(err, rerr.Policy, "ingest.Pipeline")
		}
	}

	chunks := p.opts.Chunker.Chunk(text)
	nodeIDs := make([]uint64, 0, len(chunks))
	snapshotID := p.repo.CurrentSnapshotID()

	for _, chunk := range chunks {
		embedding, err := p.opts.Embedder.Embed(modelID, chunk.Text)
		if err != nil {
			return nil, rerr.Wrap(err, rerr.Internal, "ingest.Pipeline")
		}

		chunkMeta := cloneMetadata(metadata)
		chunkMeta[types.MetaChunkIndex] = fmt.Sprintf("%d", chunk.Index)
		chunkMeta[types.MetaChunkChars] = fmt.Sprintf("%d", chunk.Chars)
		chunkMeta[types.MetaChunkOverlap] = fmt.Sprintf("%d", chunk.Overlap)

		nodeID := idgen.ChunkID(contentHash, chunk.Index)
		node := types.Node{ID: nodeID, Embedding: embedding, Data: chunk.Text, Metadata: chunkMeta}
		if err := p.repo.PutNode(node); err != nil {
			return nil, err
		}
		nodeIDs = append(nodeIDs, nodeID)

		p.enqueue(ExtractEntities{NodeID: nodeID, Content: chunk.Text, ModelID: modelID, SnapshotID: snapshotID})
	}

	if req.idempotencyKey() != "" {
		p.repo.RecordIdempotency(req.idempotencyKey(), nodeIDs)
	}
	p.repo.RecordIdempotency(contentHashHex, nodeIDs)

	return nodeIDs, nil
}

func (p *Pipeline) governancePreflight(tenant, region string) error {
	if p.opts.Governance == nil || tenant == "" {
		return nil
	}
	policy, ok := p.opts.Governance.GetPolicy(tenant)
	if !ok {
		return nil
	}
	return governance.EnsureResidency(policy, region)
}

func (p *Pipeline) acquire(key string) error {
	p.inFlightMu.Lock()
	defer p.inFlightMu.Unlock()
	if p.inFlight[key] {
		return rerr.Newf(rerr.Conflict, "ingest.Pipeline", "ingest already in flight for key %q", key)
	}
	p.inFlight[key] = true
	return nil
}

func (p *Pipeline) release(key string) {
	p.inFlightMu.Lock()
	defer p.inFlightMu.Unlock()
	delete(p.inFlight, key)
}

func (p *Pipeline) checkExistingIdempotency(idempotencyKey, contentHashHex string) ([]uint64, bool) {
	if idempotencyKey != "" {
		if ids, ok := p.repo.CheckIdempotency(idempotencyKey); ok {
			return ids, true
		}
	}
	if ids, ok := p.repo.CheckIdempotency(contentHashHex); ok {
		return ids, true
	}
	return nil, false
}

func mergeMetadata(base map[string]string, req Request, contentHashHex, modelID, tenant string) map[string]string {
	merged := cloneMetadata(base)
	merged[types.MetaContentHash] = contentHashHex
	merged[types.MetaModelID] = modelID
	if key := req.idempotencyKey(); key != "" {
		merged[types.MetaIdempotencyKey] = key
	}
	if tenant != "" {
		merged[types.MetaTenant] = tenant
	}
	return merged
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (p *Pipeline) enqueue(job ExtractEntities) {
	if p.opts.Jobs == nil {
		return
	}
	select {
	case p.opts.Jobs <- job:
	default:
		log.WithComponent("ingest").Warn().Uint64("node_id", job.NodeID).Msg("extraction job queue full, dropping enqueue")
	}
}

func (p *Pipeline) audit(outcome audit.Outcome, actor, tenant, modelID, snapshotID string, metadata map[string]string) {
	if p.opts.Sink == nil {
		return
	}
	_, err := p.opts.Sink.Append(audit.Event{
		Operation:  audit.OperationIngest,
		Outcome:    outcome,
		Actor:      actor,
		Tenant:     tenant,
		ModelID:    modelID,
		SnapshotID: snapshotID,
		Metadata:   metadata,
	})
	if err != nil {
		log.WithComponent("ingest").Error().Err(err).Msg("failed to append audit event")
	}
}
