package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/password"
	"github.com/keywarden/keywarden/internal/totp"
)

func addCmd() *cobra.Command {
	var group, username, url, notes, tags, totpSeed string
	var promptPassword bool

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}

			target := db.RootGroup()
			if group != "" {
				if target, err = findGroup(db, group); err != nil {
					return err
				}
			}

			entry := newEntryInGroup(target)
			entry.SetTitle(args[0])
			if username != "" {
				entry.SetUsername(username)
			} else if def := db.Metadata().DefaultUserName(); def != "" {
				entry.SetUsername(def)
			} else if known := db.RootGroup().UsernamesRecursive(5); len(known) > 0 {
				fmt.Printf("No username set. Known usernames: %v\n", known)
			}
			entry.SetURL(url)
			entry.SetNotes(notes)
			entry.SetTags(tags)

			if promptPassword {
				pw, err := password.ReadConfirm()
				if err != nil {
					return err
				}
				entry.SetPassword(string(pw))
				crypto.ClearBytes(pw)
			}

			if totpSeed != "" {
				settings, err := totp.Parse(totpSeed)
				if err != nil {
					return err
				}
				entry.SetTotp(settings)
			}

			if err := saveDatabase(db); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", args[0], entry.UUID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Group path to add the entry to")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&url, "url", "", "URL")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&totpSeed, "totp", "", "TOTP seed or otpauth:// URI")
	cmd.Flags().BoolVarP(&promptPassword, "password", "p", false, "Prompt for an entry password")
	return cmd
}

func editCmd() *cobra.Command {
	var title, username, url, notes, tags string
	var promptPassword bool

	cmd := &cobra.Command{
		Use:   "edit <entry>",
		Short: "Edit an entry, recording the previous version in its history",
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

			entry.BeginUpdate()
			if cmd.Flags().Changed("title") {
				entry.SetTitle(title)
			}
			if cmd.Flags().Changed("username") {
				entry.SetUsername(username)
			}
			if cmd.Flags().Changed("url") {
				entry.SetURL(url)
			}
			if cmd.Flags().Changed("notes") {
				entry.SetNotes(notes)
			}
			if cmd.Flags().Changed("tags") {
				entry.SetTags(tags)
			}
			if promptPassword {
				pw, err := password.ReadConfirm()
				if err != nil {
					entry.EndUpdate()
					return err
				}
				entry.SetPassword(string(pw))
				crypto.ClearBytes(pw)
			}

			if !entry.EndUpdate() {
				fmt.Println("No changes.")
				return nil
			}

			if err := saveDatabase(db); err != nil {
				return err
			}
			fmt.Println("Updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&username, "username", "u", "", "New username")
	cmd.Flags().StringVar(&url, "url", "", "New URL")
	cmd.Flags().StringVar(&notes, "notes", "", "New notes")
	cmd.Flags().StringVar(&tags, "tags", "", "New tags")
	cmd.Flags().BoolVarP(&promptPassword, "password", "p", false, "Prompt for a new entry password")
	return cmd
}
