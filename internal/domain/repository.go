package domain

import (
	"net/url"
	"strings"
	"time"
)

// RepositoryIdentifier names a repository as owner/name.
type RepositoryIdentifier struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r RepositoryIdentifier) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r RepositoryIdentifier) String() string {
	return r.FullName()
}

// ParseRepositoryIdentifier parses "owner/name". The string must contain exactly
// one slash separating two non-empty segments.
func ParseRepositoryIdentifier(s string) (RepositoryIdentifier, error) {
	const op = "parse repository"
	s = strings.TrimSpace(s)
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepositoryIdentifier{}, Validationf(op, "invalid repository %q: expected format 'owner/repo'", s)
	}
	if strings.ContainsAny(s, " \t\n") {
		return RepositoryIdentifier{}, Validationf(op, "invalid repository %q: whitespace is not allowed", s)
	}
	return RepositoryIdentifier{Owner: owner, Name: name}, nil
}

// ParseRepositoryReference accepts either the owner/name shorthand or a GitHub
// URL such as https://github.com/owner/name/tree/main.
func ParseRepositoryReference(ref string) (RepositoryIdentifier, error) {
	const op = "parse repository reference"
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return RepositoryIdentifier{}, Validationf(op, "repository reference is empty")
	}
	if !strings.Contains(ref, "github.com") {
		return ParseRepositoryIdentifier(ref)
	}
	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return RepositoryIdentifier{}, Validationf(op, "invalid repository URL %q: %v", ref, err)
	}
	if host := strings.ToLower(u.Hostname()); host != "github.com" && host != "www.github.com" {
		return RepositoryIdentifier{}, Validationf(op, "invalid repository URL %q: not a github.com address", ref)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return RepositoryIdentifier{}, Validationf(op, "invalid repository URL %q: missing owner or name", ref)
	}
	return ParseRepositoryIdentifier(segments[0] + "/" + strings.TrimSuffix(segments[1], ".git"))
}

// Repository is the normalized metadata of a GitHub repository.
type Repository struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"fullName"`
	Description     string    `json:"description,omitempty"`
	HTMLURL         string    `json:"htmlUrl"`
	StargazersCount int       `json:"stargazersCount"`
	ForksCount      int       `json:"forksCount"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Commit is a single commit as listed by the repository commits endpoint.
// Additions and deletions are only populated when the commit was fetched
// individually.
type Commit struct {
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"authorName"`
	AuthorEmail  string    `json:"authorEmail"`
	AuthorLogin  string    `json:"authorLogin,omitempty"`
	Date         time.Time `json:"date"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	TotalChanges int       `json:"totalChanges"`
}

// Role is a collaborator's access level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleWrite Role = "write"
	RoleRead  Role = "read"
)

// Collaborator is a repository collaborator as returned by the upstream API.
type Collaborator struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
	Role      Role   `json:"role"`
}
