package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print repository size and snapshot identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		defer repo.Close()

		nodeIDs := repo.ListNodeIDs()
		edges := 0
		for _, id := range nodeIDs {
			edges += len(repo.GraphNeighbors(id))
		}

		return printJSON(map[string]any{
			"snapshot_id":   repo.CurrentSnapshotID(),
			"nodes_total":   len(nodeIDs),
			"edges_total":   edges,
			"embedding_dim": repo.EmbeddingDimension(),
		})
	},
}
