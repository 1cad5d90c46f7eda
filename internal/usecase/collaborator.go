package usecase

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/gateway"
)

// GetCollaboratorWeeklyActivity returns the login's commit counts for the
// last 12 weeks, oldest first. The series is all-or-nothing: when any week
// cannot be fetched because it is missing or temporarily failing, ok is false
// and nothing is cached. Authentication and unexpected failures are returned.
func (a *Aggregator) GetCollaboratorWeeklyActivity(ctx context.Context, token, repo, login string) (series domain.WeeklyActivitySeries, ok bool, err error) {
	const op = "collaborator weekly activity"
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return series, false, err
	}
	login, err = validateLogin(op, login)
	if err != nil {
		return series, false, err
	}
	key := cacheKey{op: opWeeklyActivity, repo: &id, login: login, token: token}.String()

	series, err = cached(ctx, a, key, a.ttls.WeeklyActivity, func(ctx context.Context) (domain.WeeklyActivitySeries, error) {
		counts, err := a.fetcher.GetWeeklyCommitCounts(ctx, token, id, login)
		if err != nil {
			switch domain.KindOf(err) {
			case domain.KindNotFound, domain.KindTransient:
				a.logger.Warn("weekly activity unavailable", "repo", id, "login", login, "kind", domain.KindOf(err), "err", err)
				return domain.WeeklyActivitySeries{}, errUnavailable
			default:
				return domain.WeeklyActivitySeries{}, fmt.Errorf("%s: %w", op, err)
			}
		}
		s := domain.WeeklyActivitySeries{Weeks: counts}
		if !s.Valid() {
			a.logger.Warn("weekly activity malformed", "repo", id, "login", login, "weeks", len(counts))
			return domain.WeeklyActivitySeries{}, errUnavailable
		}
		return s, nil
	})
	if errors.Is(err, errUnavailable) {
		return domain.WeeklyActivitySeries{}, false, nil
	}
	if err != nil {
		return domain.WeeklyActivitySeries{}, false, err
	}
	return series, true, nil
}

// GetCollaboratorActivity gathers the login's commits, pull requests, issues
// and reviews within the time range. Each figure is fetched separately and a
// failed fetch leaves it at zero, except for authentication failures.
func (a *Aggregator) GetCollaboratorActivity(ctx context.Context, token, repo, login, timeRange string) (domain.CollaboratorActivity, error) {
	const op = "collaborator activity"
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return domain.CollaboratorActivity{}, err
	}
	login, err = validateLogin(op, login)
	if err != nil {
		return domain.CollaboratorActivity{}, err
	}
	tr, err := domain.ParseTimeRange(timeRange)
	if err != nil {
		return domain.CollaboratorActivity{}, err
	}
	key := cacheKey{op: opActivity, repo: &id, timeRange: tr, login: login, token: token}.String()

	return cached(ctx, a, key, a.ttls.Activity, func(ctx context.Context) (domain.CollaboratorActivity, error) {
		now := a.now()
		since := tr.Since(now)
		var activity domain.CollaboratorActivity

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		eg.Go(func() error {
			commits, err := a.fetcher.ListCommits(egCtx, token, id, gateway.CommitFilter{Author: login, Since: since, Until: now})
			if err != nil {
				return a.tolerate(op, "commits", err)
			}
			activity.Commits.TotalCount = len(commits)
			return nil
		})
		eg.Go(func() error {
			prs, err := a.fetcher.GetPullRequestStats(egCtx, token, id, login, since, now)
			if err != nil {
				return a.tolerate(op, "pull requests", err)
			}
			activity.PullRequests = prs
			return nil
		})
		eg.Go(func() error {
			issues, err := a.fetcher.GetIssueStats(egCtx, token, id, login, since, now)
			if err != nil {
				return a.tolerate(op, "issues", err)
			}
			activity.Issues = issues
			return nil
		})
		eg.Go(func() error {
			reviews, err := a.fetcher.GetReviewStats(egCtx, token, id, login, since, now)
			if err != nil {
				return a.tolerate(op, "reviews", err)
			}
			activity.Reviews = reviews
			return nil
		})
		if err := eg.Wait(); err != nil {
			return domain.CollaboratorActivity{}, err
		}
		if err := ctx.Err(); err != nil {
			return domain.CollaboratorActivity{}, err
		}
		return activity, nil
	})
}

// GetCollaboratorCodeChanges sums the lines added and deleted by the login's
// commits within the time range. Any failed fetch fails the call.
func (a *Aggregator) GetCollaboratorCodeChanges(ctx context.Context, token, repo, login, timeRange string) (domain.CodeChangeTotals, error) {
	const op = "collaborator code changes"
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return domain.CodeChangeTotals{}, err
	}
	login, err = validateLogin(op, login)
	if err != nil {
		return domain.CodeChangeTotals{}, err
	}
	tr, err := domain.ParseTimeRange(timeRange)
	if err != nil {
		return domain.CodeChangeTotals{}, err
	}
	key := cacheKey{op: opCodeChanges, repo: &id, timeRange: tr, login: login, token: token}.String()

	return cached(ctx, a, key, a.ttls.CodeChanges, func(ctx context.Context) (domain.CodeChangeTotals, error) {
		now := a.now()
		commits, err := a.fetcher.ListCommits(ctx, token, id, gateway.CommitFilter{
			Author: login, Since: tr.Since(now), Until: now, Limit: a.commitLimit,
		})
		if err != nil {
			return domain.CodeChangeTotals{}, fmt.Errorf("%s: %w", op, err)
		}
		a.logger.Debug("summing code changes", "repo", id, "login", login, "commits", len(commits))

		changes := make([]domain.CodeChangeTotals, len(commits))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		for i, c := range commits {
			eg.Go(func() error {
				totals, err := a.fetcher.GetCommitChanges(egCtx, token, id, c.SHA)
				if err != nil {
					return fmt.Errorf("%s: commit %s: %w", op, c.SHA, err)
				}
				changes[i] = totals
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return domain.CodeChangeTotals{}, err
		}
		return domain.SumCodeChanges(changes)
	})
}
