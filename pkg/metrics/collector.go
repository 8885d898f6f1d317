package metrics

import (
	"fmt"
	"time"

	"github.com/cuemby/graphrag/pkg/repository"
)

// Collector periodically samples repository size and snapshot progress into
// the gauges above, the same start/collect/stop shape the teacher uses for
// polling cluster state off its manager.
type Collector struct {
	repo   *repository.Repository
	stopCh chan struct{}
}

// NewCollector wraps an open repository for periodic metric collection.
func NewCollector(repo *repository.Repository) *Collector {
	return &Collector{
		repo:   repo,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval, collecting once
// immediately so a freshly started process does not report zero values
// until the first tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.repo == nil {
		return
	}
	ids := c.repo.ListNodeIDs()
	RepositoryNodesTotal.Set(float64(len(ids)))

	edges := 0
	for _, id := range ids {
		edges += len(c.repo.GraphNeighbors(id))
	}
	RepositoryEdgesTotal.Set(float64(edges))

	var lsn uint64
	if _, err := fmt.Sscanf(c.repo.CurrentSnapshotID(), "wal-lsn-%d", &lsn); err == nil {
		RepositorySnapshotLSN.Set(float64(lsn))
	}
}
