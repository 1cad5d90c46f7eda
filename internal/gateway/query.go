package gateway

import (
	"strings"
	"time"

	"github.com/naka-gawa/gitdash/internal/domain"
)

// ItemType selects pull requests or issues in a search query.
type ItemType string

const (
	ItemPullRequest ItemType = "pr"
	ItemIssue       ItemType = "issue"
)

// IssueFilter describes a search over a repository's issues or pull requests.
// Only non-zero fields become qualifiers.
type IssueFilter struct {
	Type           ItemType
	State          string // "open" or "closed"
	Merged         bool
	ReviewRequired bool
	Author         string
	ReviewedBy     string
	// DateField is the qualifier Since and Until apply to: created, merged, closed or updated.
	DateField string
	Since     time.Time
	Until     time.Time
}

// CommitFilter narrows a commit listing. Limit caps the number of commits
// returned; zero means no cap.
type CommitFilter struct {
	Author string
	Since  time.Time
	Until  time.Time
	Limit  int
}

const searchTimeLayout = "2006-01-02T15:04:05Z"

// Query renders the filter as a GitHub search query scoped to repo.
func (f IssueFilter) Query(repo domain.RepositoryIdentifier) string {
	parts := []string{"repo:" + repo.FullName()}
	if f.Type != "" {
		parts = append(parts, "is:"+string(f.Type))
	}
	if f.State != "" {
		parts = append(parts, "is:"+f.State)
	}
	if f.Merged {
		parts = append(parts, "is:merged")
	}
	if f.ReviewRequired {
		parts = append(parts, "review:required")
	}
	if f.Author != "" {
		parts = append(parts, "author:"+f.Author)
	}
	if f.ReviewedBy != "" {
		parts = append(parts, "reviewed-by:"+f.ReviewedBy)
	}
	if r := dateRange(f.Since, f.Until); f.DateField != "" && r != "" {
		parts = append(parts, f.DateField+":"+r)
	}
	return strings.Join(parts, " ")
}

func dateRange(since, until time.Time) string {
	switch {
	case since.IsZero() && until.IsZero():
		return ""
	case until.IsZero():
		return ">=" + since.UTC().Format(searchTimeLayout)
	case since.IsZero():
		return "<" + until.UTC().Format(searchTimeLayout)
	default:
		return since.UTC().Format(searchTimeLayout) + ".." + until.UTC().Format(searchTimeLayout)
	}
}
