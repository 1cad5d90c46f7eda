package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/gitdash/internal/cache"
	"github.com/naka-gawa/gitdash/internal/config"
	"github.com/naka-gawa/gitdash/internal/domain"
	"github.com/naka-gawa/gitdash/internal/gateway"
	"github.com/naka-gawa/gitdash/internal/logging"
	"github.com/naka-gawa/gitdash/internal/usecase"
)

// app holds the dependencies of one CLI invocation.
type app struct {
	aggregator *usecase.Aggregator
	logger     *log.Logger
	token      string
	closers    []func() error
}

// newApp loads the configuration and wires the gateway, cache and aggregator.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, "load config", err)
	}
	if cfg.GitHub.Token == "" {
		return nil, domain.NewError(domain.KindAuthentication, "read credential",
			errors.New("GITHUB_TOKEN environment variable is not set"))
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log, verbose)
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, "configure logging", err)
	}
	logger = logger.With("run", uuid.NewString())

	a := &app{logger: logger, token: cfg.GitHub.Token}

	var backend cache.Backend = cache.DisabledBackend{}
	if cfg.Redis.URL != "" {
		client, err := cache.DialRedis(cfg.Redis.URL, cfg.Redis.DialTimeout.Duration)
		if err != nil {
			return nil, domain.NewError(domain.KindValidation, "configure cache", err)
		}
		a.closers = append(a.closers, client.Close)
		backend = cache.NewRedisBackend(client)
	} else {
		logger.Debug("no redis url configured, caching disabled")
	}
	store := cache.NewStore(backend, cfg.Redis.Prefix, cfg.Cache.DefaultTTL.Duration, logger)

	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		RESTBaseURL:       cfg.GitHub.APIURL,
		GraphQLURL:        cfg.GitHub.GraphQLURL,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Burst:             cfg.GitHub.Burst,
		Timeout:           cfg.GitHub.Timeout.Duration,
		MaxConcurrency:    cfg.Aggregation.MaxConcurrency,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	ttl := cfg.Cache.TTL
	a.aggregator = usecase.NewAggregator(githubGateway, store, logger, usecase.Options{
		TTLs: usecase.TTLs{
			Repositories:   ttl.Repositories.Duration,
			Commits:        ttl.Commits.Duration,
			Collaborators:  ttl.Collaborators.Duration,
			Overview:       ttl.Overview.Duration,
			WeeklyActivity: ttl.WeeklyActivity.Duration,
			Activity:       ttl.Activity.Duration,
			CodeChanges:    ttl.CodeChanges.Duration,
			Repository:     ttl.Repository.Duration,
		},
		MaxConcurrency: cfg.Aggregation.MaxConcurrency,
		CommitLimit:    cfg.Aggregation.CommitLimit,
	})
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("failed to release resource", "err", err)
		}
	}
}

// runQuery wires the application, runs query and prints its result as
// pretty-printed JSON on the command's output.
func runQuery(cmd *cobra.Command, query func(ctx context.Context, agg *usecase.Aggregator, token string) (any, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		ctx = usecase.WithRefresh(ctx)
	}

	a.logger.Debug("running command", "command", cmd.Name())
	result, err := query(ctx, a.aggregator, a.token)
	if err != nil {
		a.logger.Debug("command failed", "command", cmd.Name(), "kind", domain.KindOf(err))
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
