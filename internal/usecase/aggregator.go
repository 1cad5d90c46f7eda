// Package usecase contains the business logic of the application.
//
// The Aggregator answers dashboard queries with the cache-aside pattern: every
// operation validates its input, derives a cache key, returns a cached result
// when one exists and otherwise fetches, derives and caches a fresh one.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/gitdash/internal/cache"
	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/gateway"
)

// TTLs holds the cache lifetime of each operation's result.
type TTLs struct {
	Repositories   time.Duration
	Commits        time.Duration
	Collaborators  time.Duration
	Overview       time.Duration
	WeeklyActivity time.Duration
	Activity       time.Duration
	CodeChanges    time.Duration
	Repository     time.Duration
}

// DefaultTTLs returns the lifetimes used when none are configured.
func DefaultTTLs() TTLs {
	return TTLs{
		Repositories:   10 * time.Minute,
		Commits:        10 * time.Minute,
		Collaborators:  15 * time.Minute,
		Overview:       15 * time.Minute,
		WeeklyActivity: 30 * time.Minute,
		Activity:       15 * time.Minute,
		CodeChanges:    30 * time.Minute,
		Repository:     30 * time.Minute,
	}
}

// Options tunes an Aggregator. Zero values select the defaults.
type Options struct {
	TTLs           TTLs
	MaxConcurrency int
	// CommitLimit caps how many commits GetRepositoryCommits and
	// GetCollaboratorCodeChanges look at.
	CommitLimit int
	Now         func() time.Time
}

const (
	defaultMaxConcurrency = 4
	defaultCommitLimit    = 500
)

// Aggregator is the use case for aggregating GitHub stats.
// It orchestrates the fetching, caching and combining of data.
type Aggregator struct {
	fetcher     gateway.Fetcher
	cache       *cache.Store
	logger      *log.Logger
	ttls        TTLs
	concurrency int
	commitLimit int
	now         func() time.Time
	flight      singleflight.Group

	mu      sync.Mutex
	flights map[string]*flightContext
}

// flightContext is the context a shared fetch runs under. It is detached from
// any single caller and cancelled once every waiting caller has left.
type flightContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, store *cache.Store, logger *log.Logger, opts Options) *Aggregator {
	a := &Aggregator{
		fetcher:     fetcher,
		cache:       store,
		logger:      logger,
		ttls:        opts.TTLs,
		concurrency: opts.MaxConcurrency,
		commitLimit: opts.CommitLimit,
		now:         opts.Now,
		flights:     make(map[string]*flightContext),
	}
	if a.ttls == (TTLs{}) {
		a.ttls = DefaultTTLs()
	}
	if a.concurrency <= 0 {
		a.concurrency = defaultMaxConcurrency
	}
	if a.commitLimit <= 0 {
		a.commitLimit = defaultCommitLimit
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

type refreshKey struct{}

// WithRefresh marks ctx so that operations drop their cached entry and
// fetch a fresh result.
func WithRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey{}, true)
}

func refreshRequested(ctx context.Context) bool {
	refresh, _ := ctx.Value(refreshKey{}).(bool)
	return refresh
}

// errUnavailable tells cached not to store the result and lets the caller
// report "no data" instead of an error.
var errUnavailable = errors.New("result unavailable")

// maxFlightAttempts bounds how often a caller retries after landing on a
// shared fetch that its other callers cancelled.
const maxFlightAttempts = 2

// cached runs the cache-aside flow for key. Concurrent misses on the same key
// share one call to fetch. Each caller stops waiting as soon as its own context
// ends; the shared fetch is cancelled only when no caller is left waiting.
func cached[T any](ctx context.Context, a *Aggregator, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	refresh := refreshRequested(ctx)
	if refresh {
		a.cache.Remove(ctx, key)
	} else if v, ok := cache.Get[T](ctx, a.cache, key); ok {
		return v, nil
	}

	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= maxFlightAttempts; attempt++ {
		v, err = shareFetch(ctx, a, key, ttl, refresh, fetch)
		if !errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}
		a.logger.Debug("shared fetch cancelled by its other callers", "key", key, "attempt", attempt)
	}
	return v, err
}

func shareFetch[T any](ctx context.Context, a *Aggregator, key string, ttl time.Duration, refresh bool, fetch func(context.Context) (T, error)) (T, error) {
	fctx, leave := a.joinFlight(ctx, key)
	defer leave()

	ch := a.flight.DoChan(key, func() (any, error) {
		// A flight that finished between our lookup and DoChan has already filled the cache.
		if !refresh {
			if v, ok := cache.Get[T](fctx, a.cache, key); ok {
				return v, nil
			}
		}
		start := time.Now()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		cache.Set(fctx, a.cache, key, v, ttl)
		a.logger.Debug("result computed", "key", key, "elapsed", time.Since(start))
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			a.logger.Debug("joined in-flight fetch", "key", key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// joinFlight registers the caller as a waiter on key and returns the context
// the shared fetch runs under. The returned func must be called once the
// caller stops waiting.
func (a *Aggregator) joinFlight(ctx context.Context, key string) (context.Context, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flightContext{ctx: fctx, cancel: cancel}
		a.flights[key] = f
	}
	f.waiters++
	return f.ctx, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
			if a.flights[key] == f {
				delete(a.flights, key)
			}
		}
	}
}

// tolerate applies the partial-failure policy to one sub-metric: an
// authentication failure or a cancellation aborts the whole aggregate, any
// other failure leaves the metric at zero.
func (a *Aggregator) tolerate(op, metric string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	switch domain.KindOf(err) {
	case domain.KindAuthentication:
		return fmt.Errorf("%s: %s: %w", op, metric, err)
	default:
		a.logger.Warn("sub-metric unavailable, defaulting to zero", "op", op, "metric", metric, "kind", domain.KindOf(err), "err", err)
		return nil
	}
}

func validateLogin(op, login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", domain.Validationf(op, "collaborator login is required")
	}
	if strings.ContainsAny(login, " \t\n/") {
		return "", domain.Validationf(op, "invalid collaborator login %q", login)
	}
	return login, nil
}
