package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/core"
)

func historyCmd() *cobra.Command {
	var diff bool

	cmd := &cobra.Command{
		Use:   "history <entry>",
		Short: "Show the version history of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			entry, err := findEntry(db, args[0])
			if err != nil {
				return err
			}

			history := entry.History()
			if len(history) == 0 {
				fmt.Println("No history.")
				return nil
			}

			for i, item := range history {
				fmt.Printf("#%d  %s  %s\n", i+1,
					item.TimeInfo().LastModificationTime.Format("2006-01-02 15:04:05"),
					item.Title())

				if diff {
					newer := entry
					if i+1 < len(history) {
						newer = history[i+1]
					}
					for _, change := range core.DiffEntries(item, newer) {
						fmt.Printf("    %s: %s\n", change.Key, change.Diff)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&diff, "diff", false, "Show field-level differences between versions")
	return cmd
}
