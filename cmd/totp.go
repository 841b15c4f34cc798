package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/totp"
)

func totpCmd() *cobra.Command {
	var setSeed string

	cmd := &cobra.Command{
		Use:   "totp <entry>",
		Short: "Print the current one-time code for an entry",
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

			if setSeed != "" {
				settings, err := totp.Parse(setSeed)
				if err != nil {
					return err
				}
				entry.BeginUpdate()
				entry.SetTotp(settings)
				entry.EndUpdate()
				if err := saveDatabase(db); err != nil {
					return err
				}
				fmt.Println("TOTP configured.")
				return nil
			}

			code, err := entry.Totp()
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}
	cmd.Flags().StringVar(&setSeed, "set", "", "Configure the entry's TOTP seed or otpauth:// URI")
	return cmd
}
