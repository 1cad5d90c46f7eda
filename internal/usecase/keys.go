package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/naka-gawa/gitdash/internal/domain"
)

// Operation names used as the first cache key segment.
const (
	opRepositories   = "repos"
	opCommits        = "commits"
	opCollaborators  = "collaborators"
	opOverview       = "overview"
	opWeeklyActivity = "weekly"
	opActivity       = "activity"
	opCodeChanges    = "codechanges"
	opRepository     = "repository"
)

// cacheKey identifies one cached result. The credential is represented only
// by its fingerprint.
type cacheKey struct {
	op        string
	repo      *domain.RepositoryIdentifier
	timeRange domain.TimeRange
	login     string
	token     string
}

// String renders the key as op[:repo=..][:range=..][:login=..]:fp=<sha256>.
// Repository names and logins are case-insensitive on GitHub and are lower-cased.
func (k cacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.op)
	if k.repo != nil {
		b.WriteString(":repo=")
		b.WriteString(strings.ToLower(k.repo.FullName()))
	}
	if k.timeRange != "" {
		b.WriteString(":range=")
		b.WriteString(k.timeRange.Key())
	}
	if k.login != "" {
		b.WriteString(":login=")
		b.WriteString(strings.ToLower(k.login))
	}
	b.WriteString(":fp=")
	b.WriteString(fingerprint(k.token))
	return b.String()
}

// fingerprint is the hex SHA-256 digest of a credential.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
