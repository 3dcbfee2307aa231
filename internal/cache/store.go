package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// ErrCache marks failures inside the cache boundary. They are never surfaced to API callers.
var ErrCache = errors.New("cache operation failed")

// CacheError records which operation failed and on which key.
type CacheError struct {
	Op  string // get, set, delete
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() []error {
	return []error{ErrCache, e.Err}
}

// Outcome is the tagged result of a cache read.
type Outcome int

const (
	Miss Outcome = iota
	Hit
	Error
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Error:
		return "error"
	default:
		return "miss"
	}
}

// Lookup is the result of Store.Get. Record is set only on Hit; Err only on Error.
type Lookup struct {
	Outcome Outcome
	Record  models.WeatherRecord
	Err     error
}

// Store serializes WeatherRecords over a Backend. The absolute expiry is embedded in every
// stored payload so readers can report remaining validity without backend metadata.
type Store struct {
	backend Backend
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for expiry stamping and checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore wraps backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get reads key. Backend failures and undecodable payloads are reported as Error, never panics
// or partial records. An entry whose embedded expiry has passed is a Miss.
func (s *Store) Get(ctx context.Context, key string) Lookup {
	start := time.Now()
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s.finish(start, Lookup{Outcome: Miss})
	}
	if err != nil {
		return s.fail(start, "get", "backend", &CacheError{Op: "get", Key: key, Err: err})
	}

	var rec models.WeatherRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return s.fail(start, "get", "deserialize", &CacheError{Op: "get", Key: key, Err: err})
	}
	if rec.CacheExpiresAt != nil && !s.now().Before(*rec.CacheExpiresAt) {
		return s.finish(start, Lookup{Outcome: Miss})
	}
	rec.Cached = true
	return s.finish(start, Lookup{Outcome: Hit, Record: rec})
}

func (s *Store) finish(start time.Time, l Lookup) Lookup {
	observability.CacheLookupsTotal.WithLabelValues(l.Outcome.String()).Inc()
	observability.CacheOperationDurationSeconds.WithLabelValues("get", l.Outcome.String()).Observe(time.Since(start).Seconds())
	return l
}

func (s *Store) fail(start time.Time, op, category string, err error) Lookup {
	observability.CacheErrorsTotal.WithLabelValues(op, category).Inc()
	return s.finish(start, Lookup{Outcome: Error, Err: err})
}

// Set writes rec under key with expiry now+ttl. The stored copy carries cached=false and the
// absolute expiry; the caller's record is not modified.
func (s *Store) Set(ctx context.Context, key string, rec models.WeatherRecord, ttl time.Duration) error {
	start := time.Now()
	expiresAt := s.now().Add(ttl).UTC()
	rec.Cached = false
	rec.CacheExpiresAt = &expiresAt

	raw, err := json.Marshal(rec)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", "serialize").Inc()
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", "backend").Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(start).Seconds())
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "ok").Observe(time.Since(start).Seconds())
	return nil
}

// Delete removes key. Deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("delete", "backend").Inc()
		return &CacheError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Healthy runs the backend liveness probe.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.backend.Ping(ctx) == nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
