package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"

	"github.com/naka-gawa/gitdash/internal/domain"
)

func TestIssueFilter_Query(t *testing.T) {
	since := time.Date(2026, time.October, 11, 12, 0, 0, 0, time.UTC)
	until := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		filter   IssueFilter
		expected string
	}{
		{
			name:     "repository only",
			filter:   IssueFilter{},
			expected: "repo:octo/demo",
		},
		{
			name:     "merged pull requests since",
			filter:   IssueFilter{Type: ItemPullRequest, Merged: true, DateField: "merged", Since: since},
			expected: "repo:octo/demo is:pr is:merged merged:>=2026-10-11T12:00:00Z",
		},
		{
			name:     "awaiting review",
			filter:   IssueFilter{Type: ItemPullRequest, State: "open", ReviewRequired: true},
			expected: "repo:octo/demo is:pr is:open review:required",
		},
		{
			name:     "closed issues by author in window",
			filter:   IssueFilter{Type: ItemIssue, State: "closed", Author: "alice", DateField: "closed", Since: since, Until: until},
			expected: "repo:octo/demo is:issue is:closed author:alice closed:2026-10-11T12:00:00Z..2026-10-18T12:00:00Z",
		},
		{
			name:     "reviewed before",
			filter:   IssueFilter{Type: ItemPullRequest, ReviewedBy: "bob", DateField: "updated", Until: until},
			expected: "repo:octo/demo is:pr reviewed-by:bob updated:<2026-10-18T12:00:00Z",
		},
		{
			name:     "dates without a field are ignored",
			filter:   IssueFilter{Type: ItemIssue, Since: since},
			expected: "repo:octo/demo is:issue",
		},
		{
			name:     "non-UTC times are normalized",
			filter:   IssueFilter{DateField: "created", Since: since.In(time.FixedZone("JST", 9*60*60))},
			expected: "repo:octo/demo created:>=2026-10-11T12:00:00Z",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.filter.Query(testRepo))
		})
	}
}

func TestClassify(t *testing.T) {
	response := func(status int) *http.Response {
		return &http.Response{StatusCode: status, Request: httptest.NewRequest(http.MethodGet, "/repos/octo/demo", nil)}
	}

	testCases := []struct {
		name     string
		err      error
		expected domain.Kind
	}{
		{name: "bad credentials", err: &github.ErrorResponse{Response: response(http.StatusUnauthorized)}, expected: domain.KindAuthentication},
		{name: "missing repository", err: &github.ErrorResponse{Response: response(http.StatusNotFound)}, expected: domain.KindNotFound},
		{name: "search validation failure", err: &github.ErrorResponse{Response: response(http.StatusUnprocessableEntity)}, expected: domain.KindNotFound},
		{name: "server error", err: &github.ErrorResponse{Response: response(http.StatusServiceUnavailable)}, expected: domain.KindTransient},
		{name: "too many requests", err: &github.ErrorResponse{Response: response(http.StatusTooManyRequests)}, expected: domain.KindTransient},
		{name: "primary rate limit", err: &github.RateLimitError{Response: response(http.StatusForbidden)}, expected: domain.KindTransient},
		{name: "secondary rate limit", err: &github.AbuseRateLimitError{Response: response(http.StatusForbidden)}, expected: domain.KindTransient},
		{name: "statistics still computing", err: &github.AcceptedError{}, expected: domain.KindTransient},
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), expected: domain.KindTransient},
		{name: "network", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: domain.KindTransient},
		{name: "graphql unauthorized", err: errors.New(`non-200 OK status code: 401 Unauthorized body: "{}"`), expected: domain.KindAuthentication},
		{name: "graphql bad gateway", err: errors.New(`non-200 OK status code: 502 Bad Gateway body: ""`), expected: domain.KindTransient},
		{name: "unknown", err: errors.New("boom"), expected: domain.KindUnexpected},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err)

			assert.Equal(t, tc.expected, domain.KindOf(err))
			assert.True(t, errors.Is(err, tc.err))
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classify("op", nil))
	})

	t.Run("cancellation is preserved", func(t *testing.T) {
		err := classify("op", context.Canceled)

		assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
