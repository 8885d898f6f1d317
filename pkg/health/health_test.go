package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/health"
	"github.com/cuemby/graphrag/pkg/repository"
)

func openRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(repository.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryCheckHealthyOnOpenRepository(t *testing.T) {
	repo := openRepo(t)
	check := health.NewRepositoryCheck(repo)

	result := check.Check(context.Background())
	require.True(t, result.Healthy)
	require.Equal(t, health.CheckTypeRepository, check.Type())
}

func TestRepositoryCheckUnhealthyOnNilRepository(t *testing.T) {
	check := health.NewRepositoryCheck(nil)

	result := check.Check(context.Background())
	require.False(t, result.Healthy)
}

func TestQueueDepthCheckHealthyWhenEmpty(t *testing.T) {
	jobs := make(chan int, 10)
	check := health.NewQueueDepthCheck(jobs, 0.9)

	result := check.Check(context.Background())
	require.True(t, result.Healthy)
}

func TestQueueDepthCheckUnhealthyWhenNearlyFull(t *testing.T) {
	jobs := make(chan int, 2)
	jobs <- 1
	jobs <- 2
	check := health.NewQueueDepthCheck(jobs, 0.5)

	result := check.Check(context.Background())
	require.False(t, result.Healthy)
}

func TestRegistryReportAggregatesUnhealthyComponent(t *testing.T) {
	registry := health.NewRegistry()
	repo := openRepo(t)
	registry.Register("repository", health.NewRepositoryCheck(repo))
	registry.Register("broken", health.NewRepositoryCheck(nil))

	report := registry.Report(context.Background())
	require.Equal(t, "unhealthy", report.Status)
	require.Contains(t, report.Components["repository"], "healthy")
	require.Contains(t, report.Components["broken"], "unhealthy")
}

func TestRegistryHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	registry := health.NewRegistry()
	registry.Register("broken", health.NewRepositoryCheck(nil))

	server := httptest.NewServer(registry.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLivenessHandlerAlwaysReturnsOK(t *testing.T) {
	server := httptest.NewServer(health.LivenessHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
