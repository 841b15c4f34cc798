package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/recent"
)

func recentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := recent.Open(recentIndexPath())
			if err != nil {
				return err
			}
			defer store.Close()

			vaults, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(vaults) == 0 {
				fmt.Println("No recently opened databases.")
				return nil
			}
			for _, vault := range vaults {
				name := vault.Name
				if name == "" {
					name = "-"
				}
				fmt.Printf("%s  %-20s %s\n", vault.LastOpened.Format("2006-01-02 15:04"), name, vault.Path)
			}
			return nil
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget <path>",
		Short: "Remove a database from the recent list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := recent.Open(recentIndexPath())
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Forget(args[0])
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", recent.DefaultLimit, "Maximum number of entries to show")
	cmd.AddCommand(forgetCmd)
	return cmd
}
