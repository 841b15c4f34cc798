package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rmCmd() *cobra.Command {
	var permanent bool
	var group bool

	cmd := &cobra.Command{
		Use:   "rm <entry|group>",
		Short: "Move an entry or group to the recycle bin, or destroy it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			if group {
				g, err := findGroup(db, args[0])
				if err != nil {
					return err
				}
				if g == db.RootGroup() {
					return fmt.Errorf("cannot remove the root group")
				}
				if permanent || g.IsRecycled() {
					g.Delete()
					fmt.Printf("Destroyed group %s\n", args[0])
				} else {
					db.RecycleGroup(g)
					fmt.Printf("Moved group %s to the recycle bin\n", args[0])
				}
				return saveDatabase(db)
			}

			entry, err := findEntry(db, args[0])
			if err != nil {
				return err
			}
			// a second rm on something already in the bin destroys it
			if permanent || entry.IsRecycled() {
				entry.Delete()
				fmt.Printf("Destroyed %s\n", args[0])
			} else {
				db.RecycleEntry(entry)
				fmt.Printf("Moved %s to the recycle bin\n", args[0])
			}
			return saveDatabase(db)
		},
	}
	cmd.Flags().BoolVar(&permanent, "permanent", false, "Destroy instead of recycling")
	cmd.Flags().BoolVarP(&group, "group", "g", false, "Remove a group instead of an entry")
	return cmd
}

func emptyBinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "empty-bin",
		Short: "Destroy everything in the recycle bin",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			bin := db.RecycleBin()
			if bin == nil {
				fmt.Println("Recycle bin is empty.")
				return nil
			}
			count := len(bin.EntriesRecursive())
			db.EmptyRecycleBin()

			if err := saveDatabase(db); err != nil {
				return err
			}
			fmt.Printf("Destroyed %d entries.\n", count)
			return nil
		},
	}
}
