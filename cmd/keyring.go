package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/keyring"
	"github.com/keywarden/keywarden/internal/password"
)

func keyringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the master password cached in the OS keyring",
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Verify the password and cache it in the OS keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			// the unlock doubles as password verification
			pw, err := password.Read("Enter password: ")
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(pw)

			if err := verifyPassword(pw); err != nil {
				return err
			}

			if err := keyring.SavePassword(dbPath, string(pw)); err != nil {
				return fmt.Errorf("failed to save to keyring: %w", err)
			}
			cfg.UseKeyring = true
			if err := saveConfig(); err != nil {
				return err
			}
			fmt.Println("Password saved to keyring")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the cached password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBPath(); err != nil {
				return err
			}
			if err := keyring.DeletePassword(dbPath); err != nil {
				fmt.Println("No password stored in keyring")
				return nil
			}
			fmt.Println("Password removed from keyring")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a password is cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDBPath(); err != nil {
				return err
			}
			if keyring.HasPassword(dbPath) {
				fmt.Println("Password: stored in keyring")
			} else {
				fmt.Println("Password: not stored")
			}
			return nil
		},
	}

	cmd.AddCommand(saveCmd, deleteCmd, statusCmd)
	return cmd
}
