package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/GetStream/duosync/config"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfgPath string
	conf    *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "duosync",
	Short: "Sync a partner conversation and notification feed",
	Long: `duosync keeps a two-person conversation and a notification inbox in sync with
the backend, applying changes optimistically and rolling them back on failure.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		conf = c
		logger = c.Log.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path")
}
