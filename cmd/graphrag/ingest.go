package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/graphrag/pkg/extraction"
	"github.com/cuemby/graphrag/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a document into the knowledge store",
	Long: `Ingest reads a file, chunks and embeds its text, persists the
resulting nodes, and extracts entities for each chunk.

Examples:
  graphrag ingest -f report.txt --tenant acme
  graphrag ingest -f notes.md --idempotency-key weekly-digest-2026-07-31`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringP("file", "f", "", "File to ingest (required)")
	ingestCmd.Flags().String("idempotency-key", "", "Caller-supplied idempotency key")
	ingestCmd.Flags().String("model-id", "", "Embedding model id (defaults to the pipeline default)")
	ingestCmd.Flags().String("mime-type", "", "MIME type override (detected from extension if omitted)")
	_ = ingestCmd.MarkFlagRequired("file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	idempotencyKey, _ := cmd.Flags().GetString("idempotency-key")
	modelID, _ := cmd.Flags().GetString("model-id")
	mimeType, _ := cmd.Flags().GetString("mime-type")
	tenant := tenantFlag(cmd)

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(filename))
	}

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

	jobs := make(chan ingest.ExtractEntities, 256)
	pipeline := ingest.New(repo, ingest.Options{Jobs: jobs})

	var (
		ids       []uint64
		ingestErr error
	)
	if mimeType == "" || strings.HasPrefix(mimeType, "text/") {
		// Plain text is the common case; route it through Text so a
		// missing/unrecognized MIME type does not fail closed.
		ids, ingestErr = pipeline.Ingest(cmd.Context(), ingest.Text{
			Content:        string(content),
			IdempotencyKey: idempotencyKey,
			ModelID:        modelID,
		}, tenant)
	} else {
		ids, ingestErr = pipeline.Ingest(cmd.Context(), ingest.File{
			Filename:       filepath.Base(filename),
			Content:        content,
			MimeType:       mimeType,
			IdempotencyKey: idempotencyKey,
			ModelID:        modelID,
		}, tenant)
	}
	close(jobs)
	for job := range jobs {
		if err := worker.ProcessOne(cmd.Context(), job); err != nil {
			fmt.Fprintf(os.Stderr, "warning: extraction failed for node %d: %v\n", job.NodeID, err)
		}
	}
	if ingestErr != nil {
		return fmt.Errorf("ingest failed: %w", ingestErr)
	}

	return printJSON(map[string]any{"node_ids": ids, "snapshot_id": repo.CurrentSnapshotID()})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
