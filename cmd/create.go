package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/core"
	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/format"
	"github.com/keywarden/keywarden/internal/password"
)

func createCmd() *cobra.Command {
	var name string
	var setDefault bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new encrypted database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBPath(); err != nil {
				return err
			}
			if _, err := os.Stat(dbPath); err == nil {
				return fmt.Errorf("%s already exists", dbPath)
			}

			pw := password.FromEnv()
			if pw == nil {
				var err error
				pw, err = password.ReadConfirm()
				if err != nil {
					return err
				}
			}
			defer crypto.ClearBytes(pw)

			key, err := buildKey(pw)
			if err != nil {
				return err
			}

			db, err := core.NewDatabase()
			if err != nil {
				return err
			}
			if err := db.SetKey(key); err != nil {
				return err
			}
			db.Metadata().SetName(name)
			db.Initialize()

			if err := core.SaveAs(db, format.New(), dbPath, core.SaveOptions{Atomic: true}); err != nil {
				return err
			}

			if setDefault {
				cfg.DefaultDatabase = dbPath
				if err := saveConfig(); err != nil {
					return err
				}
			}

			touchRecent(db)
			fmt.Printf("Created %s\n", dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Database display name")
	cmd.Flags().BoolVar(&setDefault, "default", false, "Record this database as the default")
	return cmd
}
