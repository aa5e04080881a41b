// Package cmd implements the upkeep command tree.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamancini/upkeep/internal/output"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	logLevel     string
	logFile      string
	baseURL      string
	postUpdate   bool
)

// build metadata, set by Execute
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

func Execute(version, commit, date string) error {
	buildVersion, buildCommit, buildDate = version, commit, date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "upkeep",
		Short: "Keep a desktop application up to date",
		Long: `upkeep checks an update host for a newer release of an application, downloads
and verifies the package, and hands the installation over to a helper that
replaces the files and restarts the application.

Run 'upkeep update' for a one-off check or 'upkeep run' to check periodically.`,
		Version:      buildVersion,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if postUpdate {
				return runPostUpdate(cmd)
			}
			return cmd.Help()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: panic, fatal, error, warn, info, debug, trace")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path, or 'console' for stderr")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Update host base URL")
	rootCmd.Flags().BoolVar(&postUpdate, "post-update", false, "Finish an update: prune backups and report the new version")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}
