package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/graphrag/pkg/repository"
)

// RepositoryCheck reports whether the repository answers a cheap read
// (its current snapshot id and node id list) without panicking, rather than
// appending a probe mutation. It does not inspect the directory lock or the
// WAL file.
type RepositoryCheck struct {
	Repo *repository.Repository
}

// NewRepositoryCheck wraps an open repository for health reporting.
func NewRepositoryCheck(repo *repository.Repository) *RepositoryCheck {
	return &RepositoryCheck{Repo: repo}
}

func (c *RepositoryCheck) Check(ctx context.Context) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Healthy:   false,
				Message:   fmt.Sprintf("repository panicked during health check: %v", r),
				CheckedAt: start,
				Duration:  time.Since(start),
			}
		}
	}()

	if c.Repo == nil {
		return Result{
			Healthy:   false,
			Message:   "repository not initialized",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	snapshot := c.Repo.CurrentSnapshotID()
	_ = c.Repo.ListNodeIDs()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("repository reachable at snapshot %s", snapshot),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (c *RepositoryCheck) Type() CheckType { return CheckTypeRepository }

// QueueDepthCheck reports unhealthy once a buffered job channel's backlog
// crosses a configured fraction of its capacity, catching a stalled
// ExtractionWorker before its queue fills and ingestion starts dropping jobs.
type QueueDepthCheck[T any] struct {
	Jobs      chan T
	MaxFilled float64 // fraction of capacity, e.g. 0.9
}

// NewQueueDepthCheck builds a QueueDepthCheck over a buffered channel.
func NewQueueDepthCheck[T any](jobs chan T, maxFilled float64) *QueueDepthCheck[T] {
	if maxFilled <= 0 {
		maxFilled = 0.9
	}
	return &QueueDepthCheck[T]{Jobs: jobs, MaxFilled: maxFilled}
}

func (c *QueueDepthCheck[T]) Check(ctx context.Context) Result {
	start := time.Now()
	capacity := cap(c.Jobs)
	if capacity == 0 {
		return Result{Healthy: true, Message: "queue unbounded or unset", CheckedAt: start, Duration: time.Since(start)}
	}
	depth := len(c.Jobs)
	fraction := float64(depth) / float64(capacity)
	healthy := fraction < c.MaxFilled
	message := fmt.Sprintf("extraction queue %d/%d (%.0f%%)", depth, capacity, fraction*100)
	return Result{Healthy: healthy, Message: message, CheckedAt: start, Duration: time.Since(start)}
}

func (c *QueueDepthCheck[T]) Type() CheckType { return CheckTypeQueue }
