package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/gateway"
)

// GetRepositoryOverviewStats builds the overview of repo for the time range.
// Each figure is fetched separately and a failed fetch leaves it at zero,
// except for authentication failures, which abort the call.
func (a *Aggregator) GetRepositoryOverviewStats(ctx context.Context, token, repo, timeRange string) (domain.RepositoryOverviewStats, error) {
	const op = "repository overview"
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return domain.RepositoryOverviewStats{}, err
	}
	tr, err := domain.ParseTimeRange(timeRange)
	if err != nil {
		return domain.RepositoryOverviewStats{}, err
	}
	key := cacheKey{op: opOverview, repo: &id, timeRange: tr, token: token}.String()

	return cached(ctx, a, key, a.ttls.Overview, func(ctx context.Context) (domain.RepositoryOverviewStats, error) {
		a.logger.Debug("building repository overview", "repo", id, "range", tr)
		since := tr.Since(a.now())

		var (
			kpis     domain.Kpis
			openWork domain.OpenWork
			heatmap  domain.ActivityHeatmap
			teamSize int
		)
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		count := func(metric string, dst *int, filter gateway.IssueFilter) func() error {
			return func() error {
				n, err := a.fetcher.CountIssues(egCtx, token, id, filter)
				if err != nil {
					return a.tolerate(op, metric, err)
				}
				*dst = n
				return nil
			}
		}

		eg.Go(func() error {
			commits, err := a.fetcher.ListCommits(egCtx, token, id, gateway.CommitFilter{Since: since})
			if err != nil {
				return a.tolerate(op, "commits", err)
			}
			kpis.Commits = len(commits)
			return nil
		})
		eg.Go(count("merged pull requests", &kpis.PRsMerged, gateway.IssueFilter{
			Type: gateway.ItemPullRequest, Merged: true, DateField: "merged", Since: since,
		}))
		eg.Go(count("closed issues", &kpis.IssuesClosed, gateway.IssueFilter{
			Type: gateway.ItemIssue, State: "closed", DateField: "closed", Since: since,
		}))
		eg.Go(count("open pull requests", &openWork.OpenPRs, gateway.IssueFilter{
			Type: gateway.ItemPullRequest, State: "open",
		}))
		eg.Go(count("open issues", &openWork.OpenIssues, gateway.IssueFilter{
			Type: gateway.ItemIssue, State: "open",
		}))
		eg.Go(count("pull requests awaiting review", &openWork.NeedsReview, gateway.IssueFilter{
			Type: gateway.ItemPullRequest, State: "open", ReviewRequired: true,
		}))
		eg.Go(func() error {
			h, err := a.fetcher.GetActivityHeatmap(egCtx, token, id)
			if err != nil {
				return a.tolerate(op, "activity heatmap", err)
			}
			heatmap = h
			return nil
		})
		eg.Go(func() error {
			collaborators, err := a.fetcher.ListCollaborators(egCtx, token, id)
			if err != nil {
				return a.tolerate(op, "team size", err)
			}
			teamSize = len(collaborators)
			return nil
		})
		if err := eg.Wait(); err != nil {
			return domain.RepositoryOverviewStats{}, err
		}
		if err := ctx.Err(); err != nil {
			return domain.RepositoryOverviewStats{}, err
		}

		return domain.RepositoryOverviewStats{
			Kpis:         kpis,
			Labels:       domain.LabelKpis(kpis),
			OpenWork:     openWork,
			PeakActivity: domain.DerivePeakActivity(heatmap, teamSize),
		}, nil
	})
}

// GetRepositoryCollaborators lists the collaborators of repo together with
// their commit, pull request and issue counts within the time range. A count
// that cannot be fetched is reported as zero.
func (a *Aggregator) GetRepositoryCollaborators(ctx context.Context, token, repo, timeRange string) ([]domain.CollaboratorSummary, error) {
	const op = "repository collaborators"
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return nil, err
	}
	tr, err := domain.ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}
	key := cacheKey{op: opCollaborators, repo: &id, timeRange: tr, token: token}.String()

	return cached(ctx, a, key, a.ttls.Collaborators, func(ctx context.Context) ([]domain.CollaboratorSummary, error) {
		since := tr.Since(a.now())
		collaborators, err := a.fetcher.ListCollaborators(ctx, token, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list collaborators of %s: %w", id, err)
		}
		a.logger.Debug("collecting collaborator counts", "repo", id, "range", tr, "collaborators", len(collaborators))

		summaries := make([]domain.CollaboratorSummary, len(collaborators))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		for i, c := range collaborators {
			summaries[i] = domain.CollaboratorSummary{Login: c.Login, AvatarURL: c.AvatarURL, Role: c.Role}
			s := &summaries[i]
			eg.Go(func() error {
				commits, err := a.fetcher.ListCommits(egCtx, token, id, gateway.CommitFilter{Author: c.Login, Since: since})
				if err != nil {
					return a.tolerate(op, "commits of "+c.Login, err)
				}
				s.Commits = len(commits)
				return nil
			})
			eg.Go(func() error {
				n, err := a.fetcher.CountIssues(egCtx, token, id, gateway.IssueFilter{
					Type: gateway.ItemPullRequest, Author: c.Login, DateField: "created", Since: since,
				})
				if err != nil {
					return a.tolerate(op, "pull requests of "+c.Login, err)
				}
				s.PullRequests = n
				return nil
			})
			eg.Go(func() error {
				n, err := a.fetcher.CountIssues(egCtx, token, id, gateway.IssueFilter{
					Type: gateway.ItemIssue, Author: c.Login, DateField: "created", Since: since,
				})
				if err != nil {
					return a.tolerate(op, "issues of "+c.Login, err)
				}
				s.Issues = n
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return summaries, nil
	})
}
