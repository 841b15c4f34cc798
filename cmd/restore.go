package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/core"
)

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the database file from its automatic backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBPath(); err != nil {
				return err
			}
			if err := core.RestoreBackup(dbPath); err != nil {
				return err
			}
			fmt.Printf("Restored %s from %s\n", dbPath, core.BackupFilePath(dbPath))
			return nil
		},
	}
}
