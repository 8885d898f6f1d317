package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/graphrag/pkg/community"
	"github.com/cuemby/graphrag/pkg/extraction"
	"github.com/cuemby/graphrag/pkg/health"
	"github.com/cuemby/graphrag/pkg/ingest"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/metrics"
	"github.com/cuemby/graphrag/pkg/repository"
	"github.com/cuemby/graphrag/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction worker and health/metrics endpoints",
	Long: `Serve opens the repository, starts the background entity
extraction worker, periodically rebuilds the community hierarchy, and
exposes /health, /live, /metrics, and /communities over HTTP until
interrupted. It does not expose an ingest or query network API; those
are driven by the ingest/query subcommands against the same repository
directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:9090", "Address for the health/metrics HTTP server")
	serveCmd.Flags().Int("community-rebuild-interval", 300, "Seconds between community hierarchy rebuilds (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	rebuildSeconds, _ := cmd.Flags().GetInt("community-rebuild-interval")

	repo, err := openRepository(cmd)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	registry := extraction.NewModelRegistry()
	registry.SetDefault("keyword-extractor")
	if err := registry.Register("keyword-extractor", "v1", defaultExtractor()); err != nil {
		return fmt.Errorf("failed to register extraction model: %w", err)
	}
	worker := extraction.NewWorker(repo, registry)

	jobs := make(chan ingest.ExtractEntities, 1024)
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.Run(runCtx, jobs)

	collector := metrics.NewCollector(repo)
	collector.Start()
	defer collector.Stop()

	communityStore := community.NewStore(community.NewEngine(4, community.DefaultSummarizer))
	if rebuildSeconds > 0 {
		go rebuildCommunitiesPeriodically(runCtx, repo, communityStore, time.Duration(rebuildSeconds)*time.Second)
	}

	registryHealth := health.NewRegistry()
	registryHealth.Register("repository", health.NewRepositoryCheck(repo))
	registryHealth.Register("extraction_queue", health.NewQueueDepthCheck(jobs, 0.9))

	mux := http.NewServeMux()
	mux.Handle("/health", registryHealth.Handler())
	mux.HandleFunc("/live", health.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/communities", communitiesHandler(communityStore))

	server := &http.Server{Addr: listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.WithComponent("serve").Info().Str("listen", listen).Msg("graphrag serve started")
	fmt.Printf("Health:      http://%s/health\n", listen)
	fmt.Printf("Live:        http://%s/live\n", listen)
	fmt.Printf("Metrics:     http://%s/metrics\n", listen)
	fmt.Printf("Communities: http://%s/communities\n", listen)
	fmt.Println("Press Ctrl+C to stop.")

	select {
	case <-runCtx.Done():
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nhealth/metrics server error: %v\n", err)
	}

	close(jobs)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = server.Shutdown(shutdownCtx)

	fmt.Println("Shutdown complete")
	return nil
}

// rebuildCommunitiesPeriodically recomputes the community hierarchy from
// the repository's current graph on a fixed interval until ctx is done.
func rebuildCommunitiesPeriodically(ctx context.Context, repo *repository.Repository, store *community.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rebuildCommunitiesOnce(repo, store)
		}
	}
}

func rebuildCommunitiesOnce(repo *repository.Repository, store *community.Store) {
	nodeIDs := repo.ListNodeIDs()
	var edges []types.Edge
	for _, id := range nodeIDs {
		for _, n := range repo.GraphNeighbors(id) {
			edges = append(edges, types.Edge{Source: id, Target: n.Target, Relation: n.Relation, Weight: n.Weight})
		}
	}
	store.Rebuild(nodeIDs, edges)
}

func communitiesHandler(store *community.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(store.Summaries())
	}
}
