// Command graphrag runs and administers a tenant-aware graph-plus-vector
// knowledge store: ingest documents, run retrieval queries, and manage
// repository snapshots, all against a single on-disk repository directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/graphrag/pkg/capability"
	"github.com/cuemby/graphrag/pkg/log"
	"github.com/cuemby/graphrag/pkg/repository"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphrag",
	Short: "graphrag - tenant-aware graph-plus-vector knowledge store",
	Long: `graphrag ingests documents into a durable node/edge graph with
vector search, extracts entities into a knowledge graph, and answers
retrieval queries in local, global, or drift search modes.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"graphrag version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "./graphrag-data", "Repository data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("tenant", "default", "Tenant id applied to this command")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openRepository opens the repository rooted at the --data-dir flag. The
// caller owns the returned Repository and must Close it.
func openRepository(cmd *cobra.Command) (*repository.Repository, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return repository.Open(repository.Config{Dir: dataDir})
}

func tenantFlag(cmd *cobra.Command) string {
	tenant, _ := cmd.Flags().GetString("tenant")
	return tenant
}

// defaultExtractor returns the reference entity extractor used when no
// real extraction model is configured.
func defaultExtractor() *capability.KeywordExtractor {
	return capability.NewKeywordExtractor(0.6)
}
