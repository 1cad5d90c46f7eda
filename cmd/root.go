// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/gitdash/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "gitdash",
	Short: "A CLI tool to aggregate GitHub repository statistics.",
	Long: `gitdash aggregates GitHub repository statistics for a dashboard:
repository overviews, collaborator activity, weekly commit series and code
changes. Results are cached in Redis when GITDASH_REDIS_URL is set.
The credential is read from the GITHUB_TOKEN environment variable.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		return 1
	}
	switch de.Kind {
	case domain.KindValidation:
		return 2
	case domain.KindAuthentication:
		return 3
	case domain.KindNotFound:
		return 4
	default:
		return 1
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().Bool("refresh", false, "Ignore cached results and fetch fresh data")
}
