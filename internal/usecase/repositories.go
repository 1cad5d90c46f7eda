package usecase

import (
	"context"
	"fmt"

	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/gateway"
)

// GetUserRepositories lists the repositories visible to the credential.
func (a *Aggregator) GetUserRepositories(ctx context.Context, token string) ([]domain.Repository, error) {
	key := cacheKey{op: opRepositories, token: token}.String()
	return cached(ctx, a, key, a.ttls.Repositories, func(ctx context.Context) ([]domain.Repository, error) {
		a.logger.Debug("fetching user repositories")
		repos, err := a.fetcher.ListUserRepositories(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", err)
		}
		return repos, nil
	})
}

// GetRepositoryCommits returns the most recent commits of repo, newest first,
// up to the configured commit limit.
func (a *Aggregator) GetRepositoryCommits(ctx context.Context, token, repo string) ([]domain.Commit, error) {
	id, err := domain.ParseRepositoryIdentifier(repo)
	if err != nil {
		return nil, err
	}
	key := cacheKey{op: opCommits, repo: &id, token: token}.String()
	return cached(ctx, a, key, a.ttls.Commits, func(ctx context.Context) ([]domain.Commit, error) {
		commits, err := a.fetcher.ListCommits(ctx, token, id, gateway.CommitFilter{Limit: a.commitLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to list commits of %s: %w", id, err)
		}
		return commits, nil
	})
}

// GetRepositoryByOwnerRepo looks up a repository from "owner/name" or a
// github.com URL.
func (a *Aggregator) GetRepositoryByOwnerRepo(ctx context.Context, token, ref string) (domain.Repository, error) {
	id, err := domain.ParseRepositoryReference(ref)
	if err != nil {
		return domain.Repository{}, err
	}
	key := cacheKey{op: opRepository, repo: &id, token: token}.String()
	return cached(ctx, a, key, a.ttls.Repository, func(ctx context.Context) (domain.Repository, error) {
		r, err := a.fetcher.GetRepository(ctx, token, id)
		if err != nil {
			return domain.Repository{}, fmt.Errorf("failed to get repository %s: %w", id, err)
		}
		return r, nil
	})
}
