package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entry is one cached payload plus the instant it was stored.
type Entry struct {
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists entries. Implementations must treat keys as opaque except for
// prefix deletion, which is the invalidation primitive the engines rely on.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// FetchFunc produces a fresh payload when the cache has nothing usable.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Option customises the cache service.
type Option func(*Service)

// WithStore swaps the backing store. The default is the in-process memory
// store; pass NewRedisStore for a shared multi-process cache.
func WithStore(store Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTTL bounds entry freshness. Zero disables expiry: invalidation is then
// the only consistency mechanism, matching the engine contract.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is an explicit, injectable cache: a mapping from key to
// {data, timestamp} with prefix invalidation. Views declare their key and a
// fetch function; any mutation invalidates the relevant keys so the next read
// refetches instead of trusting stale data. There is no optimistic local
// mutation.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New constructs a cache service with the provided options.
func New(options ...Option) *Service {
	s := &Service{
		store: NewMemoryStore(),
		now:   time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Fetch returns the cached payload for key, calling fn to populate the cache
// on a miss or an expired entry. Store read failures degrade to a direct
// fetch; store write failures are returned since a cache that silently stops
// persisting would mask invalidation bugs.
func (s *Service) Fetch(ctx context.Context, key string, fn FetchFunc) ([]byte, error) {
	if fn == nil {
		return nil, errors.New("cache: fetch function is required")
	}

	entry, ok, err := s.store.Get(ctx, key)
	if err == nil && ok && !s.expired(entry) {
		return entry.Data, nil
	}

	data, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key, Entry{Data: data, Timestamp: s.now()}); err != nil {
		return nil, fmt.Errorf("cache: store %q: %w", key, err)
	}
	return data, nil
}

// Peek reports the cached entry without triggering a fetch.
func (s *Service) Peek(ctx context.Context, key string) (Entry, bool, error) {
	entry, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok || s.expired(entry) {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Invalidate drops every entry whose key starts with prefix. Invalidating an
// already-empty prefix is a no-op, so repeated invalidation without an
// intervening mutation has no extra side effects.
func (s *Service) Invalidate(ctx context.Context, prefix string) error {
	if err := s.store.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", prefix, err)
	}
	return nil
}

func (s *Service) expired(entry Entry) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(entry.Timestamp) > s.ttl
}
