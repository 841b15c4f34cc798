package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/core"
)

func showCmd() *cobra.Command {
	var showPassword, raw bool

	cmd := &cobra.Command{
		Use:   "show <entry>",
		Short: "Show an entry with placeholders resolved",
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

			value := func(key string) string {
				if raw {
					return entry.Attribute(key)
				}
				return entry.ResolvedAttribute(key)
			}

			fmt.Printf("UUID:     %s\n", entry.UUID())
			fmt.Printf("Title:    %s\n", value(core.TitleKey))
			fmt.Printf("Username: %s\n", value(core.UserNameKey))
			if showPassword {
				fmt.Printf("Password: %s\n", value(core.PasswordKey))
			} else {
				fmt.Printf("Password: ********\n")
			}
			fmt.Printf("URL:      %s\n", value(core.URLKey))
			if notes := value(core.NotesKey); notes != "" {
				fmt.Printf("Notes:    %s\n", notes)
			}
			if tags := entry.Tags(); tags != "" {
				fmt.Printf("Tags:     %s\n", tags)
			}
			for _, key := range entry.Attributes().CustomKeys() {
				if entry.Attributes().IsProtected(key) && !showPassword {
					fmt.Printf("%s: ********\n", key)
					continue
				}
				fmt.Printf("%s: %s\n", key, value(key))
			}
			if names := entry.Attachments().Names(); len(names) > 0 {
				fmt.Printf("Attachments: %v\n", names)
			}
			if entry.HasTotp() {
				code, err := entry.Totp()
				if err == nil {
					fmt.Printf("TOTP:     %s\n", code)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showPassword, "show-password", "s", false, "Print protected values in clear")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print stored values without placeholder resolution")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls [group]",
		Aliases: []string{"list"},
		Short:   "List groups and entries",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			group := db.RootGroup()
			if len(args) == 1 {
				if group, err = findGroup(db, args[0]); err != nil {
					return err
				}
			}

			printGroup(group, "")
			return nil
		},
	}
	return cmd
}

func printGroup(group *core.Group, indent string) {
	marker := ""
	if group.IsRecycled() {
		marker = " [bin]"
	}
	fmt.Printf("%s%s/%s\n", indent, group.Name(), marker)
	for _, entry := range group.Entries() {
		fmt.Printf("%s  %s\n", indent, entry.ResolvedTitle())
	}
	for _, child := range group.Children() {
		printGroup(child, indent+"  ")
	}
}
