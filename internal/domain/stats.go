// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// RepositoryOverviewStats is the dashboard overview of one repository
// within a time window.
type RepositoryOverviewStats struct {
	Kpis         Kpis         `json:"kpis"`
	Labels       KpiLabels    `json:"labels"`
	OpenWork     OpenWork     `json:"openWork"`
	PeakActivity PeakActivity `json:"peakActivity"`
}

type Kpis struct {
	Commits      int `json:"commits"`
	PRsMerged    int `json:"prsMerged"`
	IssuesClosed int `json:"issuesClosed"`
}

// KpiLabels holds the qualitative labels derived from Kpis.
type KpiLabels struct {
	Commits      string `json:"commits"`
	PRsMerged    string `json:"prsMerged"`
	IssuesClosed string `json:"issuesClosed"`
}

type OpenWork struct {
	OpenPRs     int `json:"openPrs"`
	OpenIssues  int `json:"openIssues"`
	NeedsReview int `json:"needsReview"`
}

// PeakActivity describes when a repository is busiest. PeakHourUTC is nil
// when the heat-map holds no commits.
type PeakActivity struct {
	MostActiveDay string  `json:"mostActiveDay"`
	PeakHourUTC   *string `json:"peakHourUtc"`
	TeamSize      int     `json:"teamSize"`
}

// CollaboratorSummary is one row of the collaborators table.
type CollaboratorSummary struct {
	Login        string `json:"login"`
	AvatarURL    string `json:"avatarUrl"`
	Role         Role   `json:"role"`
	Commits      int    `json:"commits"`
	PullRequests int    `json:"pullRequests"`
	Issues       int    `json:"issues"`
}

// CollaboratorActivity is the per-collaborator detail view. Each sub-metric
// is fetched on its own and defaults to zero when that fetch fails.
type CollaboratorActivity struct {
	Commits      CommitStats      `json:"commits"`
	PullRequests PullRequestStats `json:"pullRequests"`
	Issues       IssueStats       `json:"issues"`
	Reviews      ReviewStats      `json:"reviews"`
}

type CommitStats struct {
	TotalCount int `json:"totalCount"`
}

type PullRequestStats struct {
	TotalCount  int `json:"totalCount"`
	MergedCount int `json:"mergedCount"`
}

type IssueStats struct {
	TotalCount  int `json:"totalCount"`
	ClosedCount int `json:"closedCount"`
}

type ReviewStats struct {
	GivenCount int `json:"givenCount"`
}

// WeeklyActivitySeries holds commit counts for the last 12 weeks, oldest first.
type WeeklyActivitySeries struct {
	Weeks []int `json:"weeks"`
}

// Valid reports whether the series has exactly 12 non-negative entries.
func (s WeeklyActivitySeries) Valid() bool {
	if len(s.Weeks) != WeeksInSeries {
		return false
	}
	for _, n := range s.Weeks {
		if n < 0 {
			return false
		}
	}
	return true
}

// CodeChangeTotals sums line changes over a set of commits. Commits and
// MedianCommitSize are only set on totals built by SumCodeChanges.
type CodeChangeTotals struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Commits   int `json:"commits,omitempty"`
	// MedianCommitSize is the median of additions+deletions per commit.
	MedianCommitSize float64 `json:"medianCommitSize,omitempty"`
}

// SumCodeChanges adds up the per-commit totals and reports the median
// commit size.
func SumCodeChanges(changes []CodeChangeTotals) (CodeChangeTotals, error) {
	if len(changes) == 0 {
		return CodeChangeTotals{}, nil
	}
	var total CodeChangeTotals
	sizes := make(stats.Float64Data, len(changes))
	for i, c := range changes {
		total.Additions += c.Additions
		total.Deletions += c.Deletions
		sizes[i] = float64(c.Additions + c.Deletions)
	}
	median, err := sizes.Median()
	if err != nil {
		return CodeChangeTotals{}, fmt.Errorf("failed to compute median commit size: %w", err)
	}
	total.Commits = len(changes)
	total.MedianCommitSize = median
	return total, nil
}
