// Package extraction implements the ExtractionWorker: a single consumer
// that drains ExtractEntities jobs, invokes a registered extraction
// model, and writes entity nodes plus "mentions" edges back into the
// repository. Its single-consumer-channel shape is grounded on
// cuemby-warren's pkg/worker (a bounded job channel drained by one
// background goroutine), generalized from container-build jobs to
// entity-extraction jobs.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/idgen"
	"github.com/cuemby/graphrag/pkg/ingest"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/rerr"
	"github.com/cuemby/graphrag/pkg/types"
)

const mentionsRelation = "mentions"

// modelFamily is every registered version of one named model, plus which
// version is currently active and the order in which versions became
// active (oldest first), so Rollback can step back one activation.
type modelFamily struct {
	versions          map[string]capability.Extractor
	activeVersion     string
	activationHistory []string
}

// ModelRegistry resolves a requested model reference (syntax "name" or
// "name@version") to an Extractor and the version string to record in
// node/edge metadata. Beyond plain resolution it tracks, per model name,
// which version is active and lets a caller Activate a different
// registered version or Rollback to the one active before that.
type ModelRegistry struct {
	mu          sync.Mutex
	defaultName string
	families    map[string]*modelFamily
}

// NewModelRegistry returns an empty registry. Register at least one model
// before calling Resolve with an empty name, or set a default via
// SetDefault.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{families: make(map[string]*modelFamily)}
}

// Register adds extractor under name@version. The first version ever
// registered for a name becomes that name's active version automatically.
// Registering a version that already exists for name fails with Conflict;
// re-registering under the same name/version pair is not an update path,
// Activate is.
func (r *ModelRegistry) Register(name, version string, extractor capability.Extractor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	family := r.families[name]
	if family == nil {
		family = &modelFamily{versions: make(map[string]capability.Extractor)}
		r.families[name] = family
	}
	if _, exists := family.versions[version]; exists {
		return rerr.Newf(rerr.Conflict, "extraction.ModelRegistry.Register", "model version already registered: %s@%s", name, version)
	}
	family.versions[version] = extractor

	if family.activeVersion == "" {
		family.activeVersion = version
		family.activationHistory = append(family.activationHistory, version)
	}
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// SetDefault overrides which registered model name is used when a job
// requests an empty model reference.
func (r *ModelRegistry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Activate makes version the active one for name, so future unpinned
// Resolve calls for name return it. Activating the already-active version
// is a no-op that does not grow the rollback history.
func (r *ModelRegistry) Activate(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	family, ok := r.families[name]
	if !ok {
		return rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Activate", "no extraction model registered under %q", name)
	}
	if _, ok := family.versions[version]; !ok {
		return rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Activate", "model %q has no version %q registered", name, version)
	}
	if family.activeVersion != version {
		family.activeVersion = version
		family.activationHistory = append(family.activationHistory, version)
	}
	return nil
}

// Rollback reactivates the version that was active immediately before the
// current one, for the given model name, and pops the current one off the
// activation history. It fails with NotFound when that history holds fewer
// than two entries, since there is nothing to roll back to; earlier
// rollbacks shrink the history, so repeated rollbacks eventually fail.
func (r *ModelRegistry) Rollback(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	family, ok := r.families[name]
	if !ok {
		return "", rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Rollback", "no extraction model registered under %q", name)
	}
	if len(family.activationHistory) < 2 {
		return "", rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Rollback", "no rollback target available for model %q", name)
	}
	family.activationHistory = family.activationHistory[:len(family.activationHistory)-1]
	previous := family.activationHistory[len(family.activationHistory)-1]
	family.activeVersion = previous
	return previous, nil
}

// Resolve parses ref as "name" or "name@version" and returns the matching
// extractor plus the "name@version" string to record in metadata. An
// unpinned name resolves to that name's currently active version.
func (r *ModelRegistry) Resolve(ref string) (capability.Extractor, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, version := ref, ""
	if idx := strings.IndexByte(ref, '@'); idx >= 0 {
		name, version = ref[:idx], ref[idx+1:]
	}
	if name == "" {
		name = r.defaultName
	}
	family, ok := r.families[name]
	if !ok {
		return nil, "", rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Resolve", "no extraction model registered under %q", name)
	}
	if version == "" {
		version = family.activeVersion
	}
	extractor, ok := family.versions[version]
	if !ok {
		return nil, "", rerr.Newf(rerr.NotFound, "extraction.ModelRegistry.Resolve", "model %q has no version %q registered", name, version)
	}
	return extractor, fmt.Sprintf("%s@%s", name, version), nil
}

// Worker drains ExtractEntities jobs from a channel and writes entity
// nodes and mentions edges. It runs on a single goroutine; Run blocks
// until jobs is closed or ctx is cancelled.
type Worker struct {
	repo     *repository.Repository
	registry *ModelRegistry
}

// NewWorker returns a Worker writing into repo using registry to resolve
// model references.
func NewWorker(repo *repository.Repository, registry *ModelRegistry) *Worker {
	return &Worker{repo: repo, registry: registry}
}

// Run consumes jobs until the channel is closed or ctx is done. A failure
// processing one job is logged and the job is dropped; extraction is
// at-most-once best-effort, never retried.
func (w *Worker) Run(ctx context.Context, jobs <-chan ingest.ExtractEntities) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				log.WithComponent("extraction").Warn().
					Uint64("node_id", job.NodeID).
					Err(err).
					Msg("extraction job failed, skipping")
			}
		}
	}
}

// ProcessOne runs a single job synchronously, for callers that drive the
// worker without a channel (e.g. tests, or a synchronous CLI path).
func (w *Worker) ProcessOne(ctx context.Context, job ingest.ExtractEntities) error {
	return w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job ingest.ExtractEntities) error {
	extractor, resolvedModelID, err := w.registry.Resolve(job.ModelID)
	if err != nil {
		return err
	}

	entities, err := extractor.Extract(ctx, job.Content)
	if err != nil {
		return rerr.Wrap(err, rerr.Internal, "extraction.Worker.process")
	}

	for _, entity := range entities {
		entityID := idgen.EntityID(entity.Text)
		entityNode := types.Node{
			ID:   entityID,
			Data: entity.Text,
			Metadata: map[string]string{
				"type":                        "entity",
				"label":                       entity.Label,
				types.MetaExtractionModelID:    resolvedModelID,
				types.MetaSnapshotID:           job.SnapshotID,
			},
		}
		edge := types.Edge{
			Source:   job.NodeID,
			Target:   entityID,
			Relation: mentionsRelation,
			Weight:   entity.Confidence,
			Metadata: map[string]string{
				types.MetaExtractionModelID: resolvedModelID,
				types.MetaSnapshotID:        job.SnapshotID,
			},
		}
		if err := w.repo.Apply([]repository.Mutation{
			repository.PutNode{Node: entityNode},
			repository.PutEdge{Edge: edge},
		}); err != nil {
			return err
		}
	}
	return nil
}
