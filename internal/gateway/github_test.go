package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/gitdash/internal/domain"
)

var (
	testRepo = domain.RepositoryIdentifier{Owner: "octo", Name: "demo"}
	testNow  = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := NewGitHubGateway(Options{
		RESTBaseURL:    server.URL,
		GraphQLURL:     server.URL + "/graphql",
		Timeout:        5 * time.Second,
		MaxConcurrency: 3,
		Now:            func() time.Time { return testNow },
	}, log.New(io.Discard))
	require.NoError(t, err)

	return gateway, server
}

func TestGitHubGateway_SendsBearerToken(t *testing.T) {
	var authHeader string
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id": 1, "name": "demo", "full_name": "octo/demo"}`)
	}))

	_, err := gateway.GetRepository(context.Background(), "secret-token", testRepo)

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", authHeader)
}

func TestGitHubGateway_ListUserRepositories(t *testing.T) {
	var serverURL string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/repos", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 2, "name": "second", "full_name": "octo/second", "language": "Go"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, serverURL))
		fmt.Fprint(w, `[{"id": 1, "name": "demo", "full_name": "octo/demo", "stargazers_count": 5, "forks_count": 2, "html_url": "https://github.com/octo/demo", "created_at": "2024-01-02T03:04:05Z"}]`)
	})
	gateway, server := setupTestGateway(t, handler)
	serverURL = server.URL

	repos, err := gateway.ListUserRepositories(context.Background(), "token")

	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, domain.Repository{
		ID:              1,
		Name:            "demo",
		FullName:        "octo/demo",
		HTMLURL:         "https://github.com/octo/demo",
		StargazersCount: 5,
		ForksCount:      2,
		CreatedAt:       time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
	}, repos[0])
	assert.Equal(t, "octo/second", repos[1].FullName)
	assert.Equal(t, "Go", repos[1].Language)
}

func TestGitHubGateway_ErrorClassification(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected domain.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expected: domain.KindAuthentication},
		{name: "not found", status: http.StatusNotFound, expected: domain.KindNotFound},
		{name: "forbidden", status: http.StatusForbidden, expected: domain.KindNotFound},
		{name: "server error", status: http.StatusBadGateway, expected: domain.KindTransient},
		{name: "teapot", status: http.StatusTeapot, expected: domain.KindUnexpected},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"message": "nope"}`)
			}))

			_, err := gateway.GetRepository(context.Background(), "token", testRepo)

			require.Error(t, err)
			assert.Equal(t, tc.expected, domain.KindOf(err))
		})
	}
}

func TestGitHubGateway_ListCommits(t *testing.T) {
	t.Run("passes filters and normalizes commits", func(t *testing.T) {
		since := testNow.AddDate(0, 0, -7)
		gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/octo/demo/commits", r.URL.Path)
			assert.Equal(t, "alice", r.URL.Query().Get("author"))
			assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("since"))
			fmt.Fprint(w, `[{"sha": "abc", "author": {"login": "alice"}, "commit": {"message": "fix", "author": {"name": "Alice", "email": "a@example.com", "date": "2026-10-17T10:00:00Z"}}}]`)
		}))

		commits, err := gateway.ListCommits(context.Background(), "token", testRepo, CommitFilter{Author: "alice", Since: since})

		require.NoError(t, err)
		assert.Equal(t, []domain.Commit{{
			SHA:         "abc",
			Message:     "fix",
			AuthorName:  "Alice",
			AuthorEmail: "a@example.com",
			AuthorLogin: "alice",
			Date:        time.Date(2026, time.October, 17, 10, 0, 0, 0, time.UTC),
		}}, commits)
	})

	t.Run("limit stops paging", func(t *testing.T) {
		var calls atomic.Int32
		var serverURL string
		gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/demo/commits?page=2>; rel="next"`, serverURL))
			fmt.Fprint(w, `[{"sha": "a"}, {"sha": "b"}, {"sha": "c"}]`)
		}))
		serverURL = server.URL

		commits, err := gateway.ListCommits(context.Background(), "token", testRepo, CommitFilter{Limit: 2})

		require.NoError(t, err)
		assert.Len(t, commits, 2)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty repository yields no commits", func(t *testing.T) {
		gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"message": "Git Repository is empty."}`)
		}))

		commits, err := gateway.ListCommits(context.Background(), "token", testRepo, CommitFilter{})

		require.NoError(t, err)
		assert.Empty(t, commits)
	})
}

func TestGitHubGateway_ListCollaborators(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/demo/collaborators", r.URL.Path)
		fmt.Fprint(w, `[
			{"login": "alice", "avatar_url": "https://a", "permissions": {"admin": true, "push": true, "pull": true}},
			{"login": "bob", "avatar_url": "https://b", "permissions": {"maintain": true, "pull": true}},
			{"login": "carol", "avatar_url": "https://c", "permissions": {"push": true, "pull": true}},
			{"login": "dave", "avatar_url": "https://d", "permissions": {"pull": true}}
		]`)
	}))

	collaborators, err := gateway.ListCollaborators(context.Background(), "token", testRepo)

	require.NoError(t, err)
	assert.Equal(t, []domain.Collaborator{
		{Login: "alice", AvatarURL: "https://a", Role: domain.RoleAdmin},
		{Login: "bob", AvatarURL: "https://b", Role: domain.RoleWrite},
		{Login: "carol", AvatarURL: "https://c", Role: domain.RoleWrite},
		{Login: "dave", AvatarURL: "https://d", Role: domain.RoleRead},
	}, collaborators)
}

func TestGitHubGateway_CountIssues(t *testing.T) {
	var query string
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		query = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"total_count": 42, "items": []}`)
	}))

	count, err := gateway.CountIssues(context.Background(), "token", testRepo, IssueFilter{Type: ItemPullRequest, State: "open"})

	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.Equal(t, "repo:octo/demo is:pr is:open", query)
}

func TestGitHubGateway_GetActivityHeatmap(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/demo/stats/punch_card", r.URL.Path)
		fmt.Fprint(w, `[[0, 0, 5], [1, 14, 9], [6, 23, 1], [9, 0, 100]]`)
	}))

	heatmap, err := gateway.GetActivityHeatmap(context.Background(), "token", testRepo)

	require.NoError(t, err)
	assert.Equal(t, 5, heatmap[0][0])
	assert.Equal(t, 9, heatmap[1][14])
	assert.Equal(t, 1, heatmap[6][23])
}

func TestGitHubGateway_GetWeeklyCommitCounts(t *testing.T) {
	windows := domain.WeekWindows(testNow)
	// weekOf maps a request back to its bucket index; -1 flags an unknown window.
	weekOf := func(r *http.Request) int {
		since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
		if !assert.NoError(t, err) {
			return -1
		}
		for i, w := range windows {
			if w.Since.Equal(since) {
				return i
			}
		}
		t.Errorf("unexpected window starting at %s", since)
		return -1
	}

	t.Run("one count per week, oldest first", func(t *testing.T) {
		var calls atomic.Int32
		gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "alice", r.URL.Query().Get("author"))
			week := weekOf(r)
			if week < 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			until, err := time.Parse(time.RFC3339, r.URL.Query().Get("until"))
			if assert.NoError(t, err) {
				assert.Equal(t, windows[week].Until.Add(-time.Second), until, "until stops before the next bucket")
			}
			shas := make([]string, week)
			for i := range shas {
				shas[i] = fmt.Sprintf(`{"sha": "%d-%d"}`, week, i)
			}
			fmt.Fprintf(w, "[%s]", strings.Join(shas, ","))
		}))

		counts, err := gateway.GetWeeklyCommitCounts(context.Background(), "token", testRepo, "alice")

		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, counts)
		assert.Equal(t, int32(domain.WeeksInSeries), calls.Load())
	})

	t.Run("a single failing week fails the call", func(t *testing.T) {
		gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if weekOf(r) == 4 {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
				return
			}
			fmt.Fprint(w, `[]`)
		}))

		counts, err := gateway.GetWeeklyCommitCounts(context.Background(), "token", testRepo, "alice")

		assert.Nil(t, counts)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestGitHubGateway_PullRequestAndIssueStats(t *testing.T) {
	since := testNow.AddDate(0, -1, 0)
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "is:merged"):
			fmt.Fprint(w, `{"total_count": 3}`)
		case strings.Contains(q, "is:pr"):
			fmt.Fprint(w, `{"total_count": 5}`)
		case strings.Contains(q, "is:closed"):
			fmt.Fprint(w, `{"total_count": 1}`)
		case strings.Contains(q, "is:issue"):
			fmt.Fprint(w, `{"total_count": 4}`)
		default:
			t.Errorf("unexpected query %q", q)
		}
		assert.Contains(t, q, "author:alice")
	}))

	prs, err := gateway.GetPullRequestStats(context.Background(), "token", testRepo, "alice", since, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.PullRequestStats{TotalCount: 5, MergedCount: 3}, prs)

	issues, err := gateway.GetIssueStats(context.Background(), "token", testRepo, "alice", since, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStats{TotalCount: 4, ClosedCount: 1}, issues)
}

// TestGitHubGateway_GetReviewStats covers the GraphQL path.
func TestGitHubGateway_GetReviewStats(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		responseBody string
		expected     domain.ReviewStats
		expectedKind domain.Kind
		expectError  bool
	}{
		{
			name:         "happy path",
			status:       http.StatusOK,
			responseBody: `{"data":{"search":{"issueCount":7}}}`,
			expected:     domain.ReviewStats{GivenCount: 7},
		},
		{
			name:         "graphql error payload",
			status:       http.StatusOK,
			responseBody: `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:  true,
			expectedKind: domain.KindUnexpected,
		},
		{
			name:         "bad credentials",
			status:       http.StatusUnauthorized,
			responseBody: `{"message":"Bad credentials"}`,
			expectError:  true,
			expectedKind: domain.KindAuthentication,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.Contains(t, string(body), "reviewed-by:alice")
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

			stats, err := gateway.GetReviewStats(context.Background(), "token", testRepo, "alice", testNow.AddDate(0, 0, -7), testNow)

			if tc.expectError {
				require.Error(t, err)
				assert.Equal(t, tc.expectedKind, domain.KindOf(err))
				assert.Contains(t, err.Error(), "failed to execute GraphQL query")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, stats)
		})
	}
}

func TestGitHubGateway_GetCommitChanges(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/demo/commits/abc", r.URL.Path)
		fmt.Fprint(w, `{"sha": "abc", "stats": {"additions": 12, "deletions": 4, "total": 16}}`)
	}))

	changes, err := gateway.GetCommitChanges(context.Background(), "token", testRepo, "abc")

	require.NoError(t, err)
	assert.Equal(t, domain.CodeChangeTotals{Additions: 12, Deletions: 4}, changes)
}

func TestGitHubGateway_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	gateway, _ := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{}`)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.GetRepository(ctx, "token", testRepo)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}
