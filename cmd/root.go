// Package cmd implements the kw command line interface.
package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/metrics"
)

var (
	log = zerolog.Nop()

	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "kw",
	Short:         "Local encrypted credential vault",
	Long:          "kw manages an encrypted credential database: entries, groups, history, and recovery.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()

		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()

		if dbPath == "" {
			dbPath = cfg.DefaultDatabase
		}

		if cfg.MetricsListen != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
					log.Debug().Err(err).Msg("metrics listener stopped")
				}
			}()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Msg(err.Error())
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database file (defaults to the configured default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(addGroupCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(emptyBinCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(passwdCmd())
	rootCmd.AddCommand(keyringCmd())
	rootCmd.AddCommand(recentCmd())
	rootCmd.AddCommand(totpCmd())
	rootCmd.AddCommand(restoreCmd())
}
