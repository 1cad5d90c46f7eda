package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/gitdash/internal/usecase"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Lists the repositories visible to the credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetUserRepositories(ctx, token)
		})
	},
}

var repoCmd = &cobra.Command{
	Use:   "repo <owner/repo | url>",
	Short: "Shows a repository given as owner/repo or as a GitHub URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetRepositoryByOwnerRepo(ctx, token, args[0])
		})
	},
}

var commitsCmd = &cobra.Command{
	Use:   "commits <owner/repo>",
	Short: "Lists the most recent commits of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetRepositoryCommits(ctx, token, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(reposCmd, repoCmd, commitsCmd)
}
