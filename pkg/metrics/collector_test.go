package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/metrics"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

func TestCollectorSetsRepositoryNodeGauge(t *testing.T) {
	repo, err := repository.Open(repository.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.PutNode(types.Node{ID: 1, Data: "a"}))
	require.NoError(t, repo.PutNode(types.Node{ID: 2, Data: "b"}))

	collector := metrics.NewCollector(repo)
	collector.Start()
	defer collector.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RepositoryNodesTotal) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestCollectorStartThenStop(t *testing.T) {
	repo, err := repository.Open(repository.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	collector := metrics.NewCollector(repo)
	collector.Start()
	collector.Stop()
}
