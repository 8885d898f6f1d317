package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage repository backup snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup snapshot of the current repository state",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		defer repo.Close()

		path, err := repo.CreateBackupSnapshot()
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		return printJSON(map[string]any{"path": path})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the repository from its latest backup snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		defer repo.Close()

		if err := repo.RestoreFromLatestBackup(); err != nil {
			return fmt.Errorf("failed to restore from backup: %w", err)
		}
		return printJSON(map[string]any{"snapshot_id": repo.CurrentSnapshotID(), "restored": true})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}
