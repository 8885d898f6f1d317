package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/graphrag/pkg/query"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run a retrieval query against the knowledge store",
	Long: `Query runs the local, global, or drift retrieval pipeline and
prints the resulting evidence, citations, and synthesized answer as JSON.

Examples:
  graphrag query "what products does Acme sell" --search-mode local
  graphrag query "overall theme of the corpus" --search-mode global`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("mode", string(query.ModeAnswer), "Response shape: answer or evidence")
	queryCmd.Flags().String("search-mode", string(query.SearchAuto), "Search strategy: local, global, drift, or auto")
	queryCmd.Flags().Int("top-k", 20, "Maximum evidence nodes to return")
	queryCmd.Flags().Int("depth", 1, "Graph traversal depth from vector-search anchors")
	queryCmd.Flags().StringSlice("relation-types", nil, "Restrict traversal to these relation types")
	queryCmd.Flags().StringSlice("entity-type", nil, "Filter evidence to these entity types")
	queryCmd.Flags().StringSlice("relation-type", nil, "Filter evidence edges to these relation types")
	queryCmd.Flags().String("model-id", "", "Embedding model id used to embed the query")
	queryCmd.Flags().String("snapshot-id", "", "Pin the query to a historical snapshot")
	queryCmd.Flags().String("time-travel", "", "Echoed in the response; does not change the data read")
}

func runQuery(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	searchMode, _ := cmd.Flags().GetString("search-mode")
	topK, _ := cmd.Flags().GetInt("top-k")
	depth, _ := cmd.Flags().GetInt("depth")
	relationTypes, _ := cmd.Flags().GetStringSlice("relation-types")
	entityType, _ := cmd.Flags().GetStringSlice("entity-type")
	relationType, _ := cmd.Flags().GetStringSlice("relation-type")
	modelID, _ := cmd.Flags().GetString("model-id")
	snapshotID, _ := cmd.Flags().GetString("snapshot-id")
	timeTravel, _ := cmd.Flags().GetString("time-travel")
	tenant := tenantFlag(cmd)

	repo, err := openRepository(cmd)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	engine := query.New(repo, query.Options{})

	req, err := query.NewRequest(query.Request{
		Query:      strings.TrimSpace(args[0]),
		Mode:       query.Mode(mode),
		SearchMode: query.SearchMode(searchMode),
		TopK:       topK,
		Traversal: query.Traversal{
			Depth:         depth,
			RelationTypes: relationTypes,
		},
		Filters: query.Filters{
			EntityType:   entityType,
			RelationType: relationType,
		},
		ModelID:    modelID,
		SnapshotID: snapshotID,
		TimeTravel: timeTravel,
	})
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	resp, err := engine.Execute(cmd.Context(), req, "cli", tenant)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return printJSON(resp)
}
