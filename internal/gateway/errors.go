package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/go-github/v62/github"

	"github.com/naka-gawa/gitdash/internal/domain"
)

// graphqlStatusRE extracts the HTTP status from the transport errors returned
// by the GraphQL client, e.g. "non-200 OK status code: 401 Unauthorized body: ...".
var graphqlStatusRE = regexp.MustCompile(`non-200 OK status code: (\d{3})`)

// classify maps an upstream failure onto the domain error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rateErr     *github.RateLimitError
		abuseErr    *github.AbuseRateLimitError
		acceptedErr *github.AcceptedError
		respErr     *github.ErrorResponse
		netErr      net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return domain.NewError(domain.KindUnexpected, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTransient, op, err)
	case errors.As(err, &rateErr), errors.As(err, &abuseErr), errors.As(err, &acceptedErr):
		return domain.NewError(domain.KindTransient, op, err)
	case errors.As(err, &respErr) && respErr.Response != nil:
		return domain.NewError(kindForStatus(respErr.Response.StatusCode), op, err)
	case errors.As(err, &netErr):
		return domain.NewError(domain.KindTransient, op, err)
	}
	if m := graphqlStatusRE.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return domain.NewError(kindForStatus(status), op, err)
	}
	return domain.NewError(domain.KindUnexpected, op, err)
}

func kindForStatus(status int) domain.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return domain.KindAuthentication
	case status == http.StatusForbidden, status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		// 403 without rate-limit headers means the credential cannot see the
		// resource; 422 is what search answers for unknown repos or users.
		return domain.KindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return domain.KindTransient
	default:
		return domain.KindUnexpected
	}
}

func isStatus(err error, status int) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == status
}
