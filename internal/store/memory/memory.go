// Package memory provides the TTL-backed in-memory store used when
// chartgen runs without a database. Generation requests expire after a
// configurable TTL; saved charts live until deleted.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/B-Step62/mlflow-sub000/internal/chartgen"
)

const (
	// DefaultRequestTTL bounds how long a finished or abandoned
	// generation request stays pollable.
	DefaultRequestTTL = 1 * time.Hour

	purgeInterval = 10 * time.Minute
)

// Store is an in-memory implementation of the request and chart
// repositories. Safe for concurrent use.
//
// Records and charts are copied on the way in and out, so callers can
// never mutate shared state through returned pointers.
type Store struct {
	// mu serializes status transitions. Reads and chart operations rely
	// on the cache's own locking.
	mu    sync.Mutex
	cache *cache.Cache
}

// New creates a Store whose generation requests expire after
// requestTTL. A non-positive requestTTL falls back to
// DefaultRequestTTL.
func New(requestTTL time.Duration) *Store {
	if requestTTL <= 0 {
		requestTTL = DefaultRequestTTL
	}
	return &Store{
		cache: cache.New(requestTTL, purgeInterval),
	}
}

// CreateRequest stores a new generation record under its request id.
func (s *Store) CreateRequest(_ context.Context, rec *chartgen.Record) error {
	s.cache.Set(rec.RequestID, cloneRecord(rec), cache.DefaultExpiration)
	return nil
}

// GetRequest returns the record for id, or ErrRequestNotFound when it
// does not exist or has expired.
func (s *Store) GetRequest(_ context.Context, id string) (*chartgen.Record, error) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, chartgen.ErrRequestNotFound
	}
	return cloneRecord(x.(*chartgen.Record)), nil
}

// ClaimPending atomically claims the oldest pending record, moving it
// to processing. It returns (nil, nil) when nothing is pending.
func (s *Store) ClaimPending(_ context.Context) (*chartgen.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*chartgen.Record
	for key, item := range s.cache.Items() {
		if !strings.HasPrefix(key, "req_") {
			continue
		}
		rec := item.Object.(*chartgen.Record)
		if rec.Status == chartgen.StatusPending {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	claimed := cloneRecord(pending[0])
	claimed.Status = chartgen.StatusProcessing
	claimed.UpdatedAt = time.Now().UTC()
	s.cache.Set(claimed.RequestID, cloneRecord(claimed), cache.DefaultExpiration)
	return claimed, nil
}

// CompleteRequest moves a processing record to completed with its
// result.
func (s *Store) CompleteRequest(_ context.Context, id string, res *chartgen.Result) error {
	return s.finish(id, func(rec *chartgen.Record) {
		rec.Status = chartgen.StatusCompleted
		rec.Result = cloneResult(res)
		rec.ErrorMessage = ""
	})
}

// FailRequest moves a processing record to failed with an error
// message.
func (s *Store) FailRequest(_ context.Context, id string, msg string) error {
	return s.finish(id, func(rec *chartgen.Record) {
		rec.Status = chartgen.StatusFailed
		rec.Result = nil
		rec.ErrorMessage = msg
	})
}

func (s *Store) finish(id string, apply func(*chartgen.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(id)
	if !found {
		return chartgen.ErrRequestNotFound
	}
	rec := cloneRecord(x.(*chartgen.Record))
	if rec.Status != chartgen.StatusProcessing {
		return chartgen.ErrInvalidTransition
	}
	apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	s.cache.Set(id, rec, cache.DefaultExpiration)
	return nil
}

// DeleteExpired is a no-op for the memory store: expiry is enforced by
// the cache itself (lazily on read plus a periodic purge).
func (s *Store) DeleteExpired(_ context.Context) (int, error) {
	return 0, nil
}

// SaveChart stores a saved chart. Charts never expire.
func (s *Store) SaveChart(_ context.Context, c *chartgen.Chart) error {
	s.cache.Set(c.ChartID, cloneChart(c), cache.NoExpiration)
	return nil
}

// GetChart returns the chart for id, or ErrChartNotFound.
func (s *Store) GetChart(_ context.Context, id string) (*chartgen.Chart, error) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, chartgen.ErrChartNotFound
	}
	return cloneChart(x.(*chartgen.Chart)), nil
}

// ListCharts returns saved charts matching the filter, newest first.
func (s *Store) ListCharts(_ context.Context, f chartgen.ChartFilter) ([]chartgen.Chart, error) {
	var out []chartgen.Chart
	for key, item := range s.cache.Items() {
		if !strings.HasPrefix(key, "chart_") {
			continue
		}
		c := item.Object.(*chartgen.Chart)
		if f.Matches(*c) {
			out = append(out, *cloneChart(c))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ChartID < out[j].ChartID
	})
	return out, nil
}

// DeleteChart removes a saved chart, or returns ErrChartNotFound.
func (s *Store) DeleteChart(_ context.Context, id string) error {
	if _, found := s.cache.Get(id); !found {
		return chartgen.ErrChartNotFound
	}
	s.cache.Delete(id)
	return nil
}

func cloneRecord(rec *chartgen.Record) *chartgen.Record {
	out := *rec
	out.Result = cloneResult(rec.Result)
	return &out
}

func cloneResult(res *chartgen.Result) *chartgen.Result {
	if res == nil {
		return nil
	}
	out := *res
	if res.DataSources != nil {
		out.DataSources = make([]chartgen.DataSource, len(res.DataSources))
		copy(out.DataSources, res.DataSources)
	}
	return &out
}

func cloneChart(c *chartgen.Chart) *chartgen.Chart {
	out := *c
	if c.DataSources != nil {
		out.DataSources = make([]chartgen.DataSource, len(c.DataSources))
		copy(out.DataSources, c.DataSources)
	}
	return &out
}
