// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/naka-gawa/gitdash/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
// Every call takes the caller's credential; implementations keep no per-call state.
type Fetcher interface {
	ListUserRepositories(ctx context.Context, token string) ([]domain.Repository, error)
	GetRepository(ctx context.Context, token string, repo domain.RepositoryIdentifier) (domain.Repository, error)
	ListCommits(ctx context.Context, token string, repo domain.RepositoryIdentifier, filter CommitFilter) ([]domain.Commit, error)
	ListCollaborators(ctx context.Context, token string, repo domain.RepositoryIdentifier) ([]domain.Collaborator, error)
	CountIssues(ctx context.Context, token string, repo domain.RepositoryIdentifier, filter IssueFilter) (int, error)
	GetActivityHeatmap(ctx context.Context, token string, repo domain.RepositoryIdentifier) (domain.ActivityHeatmap, error)
	GetWeeklyCommitCounts(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string) ([]int, error)
	GetPullRequestStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.PullRequestStats, error)
	GetIssueStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.IssueStats, error)
	GetReviewStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.ReviewStats, error)
	GetCommitChanges(ctx context.Context, token string, repo domain.RepositoryIdentifier, sha string) (domain.CodeChangeTotals, error)
}

// Options configures a GitHubGateway. Zero values select GitHub.com and
// conservative defaults.
type Options struct {
	RESTBaseURL       string
	GraphQLURL        string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxConcurrency    int
	Now               func() time.Time
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	transport   http.RoundTripper
	restBaseURL *url.URL
	graphqlURL  string
	timeout     time.Duration
	limiter     *rate.Limiter
	concurrency int
	now         func() time.Time
	logger      *log.Logger
}

var _ Fetcher = (*GitHubGateway)(nil)

// reviewCountQuery counts pull requests matching a search without paging through them.
type reviewCountQuery struct {
	Search struct {
		IssueCount int
	} `graphql:"search(query: $query, type: ISSUE, first: 1)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	g := &GitHubGateway{
		transport:   rateLimitWaiter,
		graphqlURL:  "https://api.github.com/graphql",
		timeout:     opts.Timeout,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		concurrency: opts.MaxConcurrency,
		now:         opts.Now,
		logger:      logger,
	}
	if opts.RESTBaseURL != "" {
		base := opts.RESTBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		g.restBaseURL, err = url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid REST base url: %w", err)
		}
	}
	if opts.GraphQLURL != "" {
		g.graphqlURL = opts.GraphQLURL
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if g.concurrency <= 0 {
		g.concurrency = 4
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// clients builds REST and GraphQL clients authenticated with token. They share
// the gateway's rate-limit-aware transport and are discarded after the call.
func (g *GitHubGateway) clients(token string) (*github.Client, *githubv4.Client) {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   g.transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
		Timeout: g.timeout,
	}
	rest := github.NewClient(httpClient)
	if g.restBaseURL != nil {
		rest.BaseURL = g.restBaseURL
	}
	return rest, githubv4.NewEnterpriseClient(g.graphqlURL, httpClient)
}

// wait paces outbound requests through the shared limiter.
func (g *GitHubGateway) wait(ctx context.Context, op string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return classify(op, err)
	}
	return nil
}

func (g *GitHubGateway) ListUserRepositories(ctx context.Context, token string) ([]domain.Repository, error) {
	const op = "list user repositories"
	g.logger.Debug("fetching repositories of the authenticated user")
	rest, _ := g.clients(token)
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	repos := []domain.Repository{}
	for {
		if err := g.wait(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := rest.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, classify(op, err)
		}
		for _, r := range page {
			repos = append(repos, toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of repositories", "page", resp.NextPage)
	}
	g.logger.Debug("completed fetching repositories", "count", len(repos))
	return repos, nil
}

func (g *GitHubGateway) GetRepository(ctx context.Context, token string, repo domain.RepositoryIdentifier) (domain.Repository, error) {
	const op = "get repository"
	rest, _ := g.clients(token)
	if err := g.wait(ctx, op); err != nil {
		return domain.Repository{}, err
	}
	r, _, err := rest.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return domain.Repository{}, classify(op, err)
	}
	return toRepository(r), nil
}

func (g *GitHubGateway) ListCommits(ctx context.Context, token string, repo domain.RepositoryIdentifier, filter CommitFilter) ([]domain.Commit, error) {
	const op = "list commits"
	g.logger.Debug("fetching commits", "repo", repo, "author", filter.Author, "since", filter.Since, "until", filter.Until)
	rest, _ := g.clients(token)
	opts := &github.CommitsListOptions{
		Author:      filter.Author,
		Since:       filter.Since,
		Until:       filter.Until,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	commits := []domain.Commit{}
	for {
		if err := g.wait(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := rest.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			if isStatus(err, http.StatusConflict) {
				// An empty repository answers 409.
				return []domain.Commit{}, nil
			}
			return nil, classify(op, err)
		}
		for _, c := range page {
			commits = append(commits, toCommit(c))
			if filter.Limit > 0 && len(commits) >= filter.Limit {
				return commits, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of commits", "repo", repo, "page", resp.NextPage)
	}
	return commits, nil
}

func (g *GitHubGateway) ListCollaborators(ctx context.Context, token string, repo domain.RepositoryIdentifier) ([]domain.Collaborator, error) {
	const op = "list collaborators"
	g.logger.Debug("fetching collaborators", "repo", repo)
	rest, _ := g.clients(token)
	opts := &github.ListCollaboratorsOptions{
		Affiliation: "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	collaborators := []domain.Collaborator{}
	for {
		if err := g.wait(ctx, op); err != nil {
			return nil, err
		}
		page, resp, err := rest.Repositories.ListCollaborators(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, classify(op, err)
		}
		for _, u := range page {
			collaborators = append(collaborators, domain.Collaborator{
				Login:     u.GetLogin(),
				AvatarURL: u.GetAvatarURL(),
				Role:      roleFromPermissions(u.GetPermissions()),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return collaborators, nil
}

func (g *GitHubGateway) CountIssues(ctx context.Context, token string, repo domain.RepositoryIdentifier, filter IssueFilter) (int, error) {
	const op = "count issues"
	rest, _ := g.clients(token)
	return g.countIssues(ctx, rest, op, filter.Query(repo))
}

func (g *GitHubGateway) countIssues(ctx context.Context, rest *github.Client, op, query string) (int, error) {
	if err := g.wait(ctx, op); err != nil {
		return 0, err
	}
	g.logger.Debug("searching issues", "query", query)
	result, _, err := rest.Search.Issues(ctx, query, &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		return 0, classify(op, fmt.Errorf("failed to search issues with REST API: %w", err))
	}
	return result.GetTotal(), nil
}

func (g *GitHubGateway) GetActivityHeatmap(ctx context.Context, token string, repo domain.RepositoryIdentifier) (domain.ActivityHeatmap, error) {
	const op = "get activity heatmap"
	var heatmap domain.ActivityHeatmap
	rest, _ := g.clients(token)
	if err := g.wait(ctx, op); err != nil {
		return heatmap, err
	}
	cards, _, err := rest.Repositories.ListPunchCard(ctx, repo.Owner, repo.Name)
	if err != nil {
		return heatmap, classify(op, err)
	}
	for _, card := range cards {
		day, hour := card.GetDay(), card.GetHour()
		if day < 0 || day > 6 || hour < 0 || hour > 23 {
			continue
		}
		heatmap[day][hour] += card.GetCommits()
	}
	return heatmap, nil
}

// GetWeeklyCommitCounts counts the login's commits in each of the last 12
// weeks, oldest first. The weeks are fetched concurrently and a failure on
// any one of them fails the whole call.
func (g *GitHubGateway) GetWeeklyCommitCounts(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string) ([]int, error) {
	g.logger.Debug("fetching weekly commit counts", "repo", repo, "login", login)
	windows := domain.WeekWindows(g.now())
	counts := make([]int, len(windows))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, w := range windows {
		eg.Go(func() error {
			// until is inclusive upstream; stop a second early so a commit on the
			// boundary lands only in the later bucket.
			commits, err := g.ListCommits(egCtx, token, repo, CommitFilter{Author: login, Since: w.Since, Until: w.Until.Add(-time.Second)})
			if err != nil {
				return fmt.Errorf("week %d: %w", i+1, err)
			}
			counts[i] = len(commits)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (g *GitHubGateway) GetPullRequestStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.PullRequestStats, error) {
	const op = "get pull request stats"
	var stats domain.PullRequestStats
	rest, _ := g.clients(token)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		stats.TotalCount, err = g.countIssues(egCtx, rest, op, IssueFilter{
			Type: ItemPullRequest, Author: login, DateField: "created", Since: since, Until: until,
		}.Query(repo))
		return err
	})
	eg.Go(func() error {
		var err error
		stats.MergedCount, err = g.countIssues(egCtx, rest, op, IssueFilter{
			Type: ItemPullRequest, Merged: true, Author: login, DateField: "merged", Since: since, Until: until,
		}.Query(repo))
		return err
	})
	if err := eg.Wait(); err != nil {
		return domain.PullRequestStats{}, err
	}
	return stats, nil
}

func (g *GitHubGateway) GetIssueStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.IssueStats, error) {
	const op = "get issue stats"
	var stats domain.IssueStats
	rest, _ := g.clients(token)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		stats.TotalCount, err = g.countIssues(egCtx, rest, op, IssueFilter{
			Type: ItemIssue, Author: login, DateField: "created", Since: since, Until: until,
		}.Query(repo))
		return err
	})
	eg.Go(func() error {
		var err error
		stats.ClosedCount, err = g.countIssues(egCtx, rest, op, IssueFilter{
			Type: ItemIssue, State: "closed", Author: login, DateField: "closed", Since: since, Until: until,
		}.Query(repo))
		return err
	})
	if err := eg.Wait(); err != nil {
		return domain.IssueStats{}, err
	}
	return stats, nil
}

// GetReviewStats counts pull requests the login reviewed, using the GraphQL
// search issueCount so no result pages are transferred.
func (g *GitHubGateway) GetReviewStats(ctx context.Context, token string, repo domain.RepositoryIdentifier, login string, since, until time.Time) (domain.ReviewStats, error) {
	const op = "get review stats"
	_, graphqlClient := g.clients(token)
	if err := g.wait(ctx, op); err != nil {
		return domain.ReviewStats{}, err
	}
	query := IssueFilter{
		Type: ItemPullRequest, ReviewedBy: login, DateField: "updated", Since: since, Until: until,
	}.Query(repo)
	variables := map[string]interface{}{"query": githubv4.String(query)}

	var q reviewCountQuery
	if err := graphqlClient.Query(ctx, &q, variables); err != nil {
		return domain.ReviewStats{}, classify(op, fmt.Errorf("failed to execute GraphQL query for reviews: %w", err))
	}
	return domain.ReviewStats{GivenCount: q.Search.IssueCount}, nil
}

func (g *GitHubGateway) GetCommitChanges(ctx context.Context, token string, repo domain.RepositoryIdentifier, sha string) (domain.CodeChangeTotals, error) {
	const op = "get commit"
	rest, _ := g.clients(token)
	if err := g.wait(ctx, op); err != nil {
		return domain.CodeChangeTotals{}, err
	}
	c, _, err := rest.Repositories.GetCommit(ctx, repo.Owner, repo.Name, sha, nil)
	if err != nil {
		return domain.CodeChangeTotals{}, classify(op, err)
	}
	return domain.CodeChangeTotals{
		Additions: c.GetStats().GetAdditions(),
		Deletions: c.GetStats().GetDeletions(),
	}, nil
}

func toRepository(r *github.Repository) domain.Repository {
	return domain.Repository{
		ID:              r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.GetDescription(),
		HTMLURL:         r.GetHTMLURL(),
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		Language:        r.GetLanguage(),
		CreatedAt:       r.GetCreatedAt().Time,
		UpdatedAt:       r.GetUpdatedAt().Time,
	}
}

func toCommit(c *github.RepositoryCommit) domain.Commit {
	author := c.GetCommit().GetAuthor()
	additions, deletions := c.GetStats().GetAdditions(), c.GetStats().GetDeletions()
	return domain.Commit{
		SHA:          c.GetSHA(),
		Message:      c.GetCommit().GetMessage(),
		AuthorName:   author.GetName(),
		AuthorEmail:  author.GetEmail(),
		AuthorLogin:  c.GetAuthor().GetLogin(),
		Date:         author.GetDate().Time,
		Additions:    additions,
		Deletions:    deletions,
		TotalChanges: additions + deletions,
	}
}

func roleFromPermissions(perms map[string]bool) domain.Role {
	switch {
	case perms["admin"]:
		return domain.RoleAdmin
	case perms["maintain"], perms["push"]:
		return domain.RoleWrite
	default:
		return domain.RoleRead
	}
}
