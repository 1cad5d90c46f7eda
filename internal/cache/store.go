// Package cache provides a fail-open, TTL-based key-value cache for query results.
//
// A Store never returns errors to its callers: a backend that is down, slow or
// holding undecodable data behaves like an empty cache, and the failure is logged.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTTL applies when Set is called without a positive TTL.
const DefaultTTL = 30 * time.Minute

// ErrMiss is returned by a Backend when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Backend is the raw storage behind a Store. Unlike Store, it reports failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store wraps a Backend with JSON encoding, key namespacing and the fail-open policy.
type Store struct {
	backend    Backend
	prefix     string
	defaultTTL time.Duration
	logger     *log.Logger
}

// NewStore creates a Store. An empty prefix leaves keys untouched and a
// non-positive defaultTTL falls back to DefaultTTL.
func NewStore(backend Backend, prefix string, defaultTTL time.Duration, logger *log.Logger) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Store{
		backend:    backend,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Remove deletes key. Backend failures are logged and ignored.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.backend.Del(ctx, s.key(key)); err != nil {
		s.logger.Error("cache remove failed", "key", key, "err", err)
		return
	}
	s.logger.Debug("cache entry removed", "key", key)
}

func (s *Store) getRaw(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.backend.Get(ctx, s.key(key))
	switch {
	case errors.Is(err, ErrMiss):
		s.logger.Debug("cache miss", "key", key)
		return nil, false
	case err != nil:
		s.logger.Error("cache read failed", "key", key, "err", err)
		return nil, false
	case len(data) == 0:
		s.logger.Debug("cache miss", "key", key)
		return nil, false
	}
	s.logger.Debug("cache hit", "key", key)
	return data, true
}

func (s *Store) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.backend.Set(ctx, s.key(key), data, ttl); err != nil {
		s.logger.Error("cache write failed", "key", key, "err", err)
		return
	}
	s.logger.Debug("cache entry stored", "key", key, "ttl", ttl)
}

// Get decodes the value stored under key. A missing key, a backend failure and
// an undecodable payload all report ok == false.
func Get[T any](ctx context.Context, s *Store, key string) (value T, ok bool) {
	data, found := s.getRaw(ctx, key)
	if !found {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Warn("cache entry could not be decoded", "key", key, "err", err)
		var zero T
		return zero, false
	}
	return value, true
}

// Set encodes value and stores it under key for ttl, or for the store's
// default TTL when ttl is not positive.
func Set[T any](ctx context.Context, s *Store, key string, value T, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("cache entry could not be encoded", "key", key, "err", err)
		return
	}
	s.setRaw(ctx, key, data, ttl)
}
