package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/kdf"
	"github.com/keywarden/keywarden/internal/keyring"
	"github.com/keywarden/keywarden/internal/password"
)

func passwdCmd() *cobra.Command {
	var rotateKdf bool

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			pw, err := password.ReadConfirm()
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(pw)

			key, err := buildKey(pw)
			if err != nil {
				return err
			}
			// new password means new salts
			if err := db.SetKeyWithOptions(key, true, true, true); err != nil {
				return err
			}

			if rotateKdf {
				fresh, err := kdf.NewArgon2()
				if err != nil {
					return err
				}
				if err := db.ChangeKdf(fresh); err != nil {
					return err
				}
			}

			if err := saveDatabase(db); err != nil {
				return err
			}

			if cfg.UseKeyring && keyring.HasPassword(dbPath) {
				if err := keyring.SavePassword(dbPath, string(pw)); err != nil {
					log.Warn().Err(err).Msg("failed to update cached password")
				}
			}

			fmt.Println("Master password changed.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&rotateKdf, "rotate-kdf", false, "Also re-derive with fresh KDF parameters")
	return cmd
}
