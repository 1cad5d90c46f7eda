package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/usecase"
)

var overviewCmd = &cobra.Command{
	Use:   "overview <owner/repo>",
	Short: "Shows KPIs, open work and peak activity of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeRange, _ := cmd.Flags().GetString("range")
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetRepositoryOverviewStats(ctx, token, args[0], timeRange)
		})
	},
}

var collaboratorsCmd = &cobra.Command{
	Use:   "collaborators <owner/repo>",
	Short: "Lists collaborators with their commit, pull request and issue counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeRange, _ := cmd.Flags().GetString("range")
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetRepositoryCollaborators(ctx, token, args[0], timeRange)
		})
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity <owner/repo> <login>",
	Short: "Shows commits, pull requests, issues and reviews of one collaborator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeRange, _ := cmd.Flags().GetString("range")
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetCollaboratorActivity(ctx, token, args[0], args[1], timeRange)
		})
	},
}

var codeChangesCmd = &cobra.Command{
	Use:   "code-changes <owner/repo> <login>",
	Short: "Sums the lines added and deleted by one collaborator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeRange, _ := cmd.Flags().GetString("range")
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			return agg.GetCollaboratorCodeChanges(ctx, token, args[0], args[1], timeRange)
		})
	},
}

// weeklyOutput reports an unavailable series as available=false with no weeks.
type weeklyOutput struct {
	Available bool  `json:"available"`
	Weeks     []int `json:"weeks"`
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly <owner/repo> <login>",
	Short: "Shows one collaborator's commit counts for the last 12 weeks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error) {
			series, ok, err := agg.GetCollaboratorWeeklyActivity(ctx, token, args[0], args[1])
			if err != nil {
				return nil, err
			}
			return weeklyOutput{Available: ok, Weeks: series.Weeks}, nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{overviewCmd, collaboratorsCmd, activityCmd, codeChangesCmd} {
		c.Flags().StringP("range", "r", string(domain.OneWeek), "Time range: '1 week', '1 month' or '3 months' (or 1w, 1m, 3m)")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(weeklyCmd)
}
