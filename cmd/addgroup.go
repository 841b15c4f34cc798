package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/core"
)

func addGroupCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "add-group <path>",
		Short: "Add a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			parentPath, name := path.Split(path.Clean("/" + args[0]))
			if name == "" {
				return fmt.Errorf("invalid group path: %s", args[0])
			}
			parent, err := findGroup(db, parentPath)
			if err != nil {
				return err
			}
			if parent.FindChildByName(name) != nil {
				return fmt.Errorf("group already exists: %s", args[0])
			}

			group := core.NewGroup()
			group.SetName(name)
			group.SetNotes(notes)
			group.SetParent(parent)

			if err := saveDatabase(db); err != nil {
				return err
			}
			fmt.Printf("Added group %s\n", group.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Group notes")
	return cmd
}
