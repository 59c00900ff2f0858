package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"saldo/internal/metrics"
)

// Store persists the last good rate table across restarts.
type Store interface {
	SaveRates(ctx context.Context, t Table) error
	LoadRates(ctx context.Context) (Table, bool, error)
}

// Refresher keeps a Cache up to date. A failed or cancelled fetch leaves the
// cached table untouched.
type Refresher struct {
	fetcher  Fetcher
	cache    *Cache
	store    Store
	interval time.Duration
	timeout  time.Duration
	group    singleflight.Group
}

// NewRefresher wires a refresher. store may be nil.
func NewRefresher(fetcher Fetcher, cache *Cache, store Store, interval, timeout time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{
		fetcher:  fetcher,
		cache:    cache,
		store:    store,
		interval: interval,
		timeout:  timeout,
	}
}

// Cache returns the cache the refresher writes to.
func (r *Refresher) Cache() *Cache {
	return r.cache
}

// Warm seeds the cache from the store so conversions work before the first fetch.
func (r *Refresher) Warm(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	t, ok, err := r.store.LoadRates(ctx)
	if err != nil {
		return fmt.Errorf("load cached rates: %w", err)
	}
	if ok {
		r.cache.Store(t)
		metrics.RateTableAge.Set(float64(t.FetchedAt.Unix()))
		slog.InfoContext(ctx, "Loaded cached rate table", "base", t.Base, "currencies", len(t.Rates), "fetched_at", t.FetchedAt)
	}
	return nil
}

// Refresh fetches a new table. Concurrent callers share one fetch. On failure
// the cached table is returned together with the fetch error.
func (r *Refresher) Refresh(ctx context.Context) (Table, error) {
	v, err, shared := r.group.Do("rates", func() (interface{}, error) {
		return r.fetch(ctx)
	})
	if err != nil {
		metrics.RateRefreshes.WithLabelValues(metrics.ResultFallback).Inc()
		slog.WarnContext(ctx, "Rate refresh failed, using cached table", "error", err)
		return r.cache.Latest(), err
	}
	if shared {
		slog.DebugContext(ctx, "Rate refresh shared with concurrent caller")
	}
	return v.(Table), nil
}

func (r *Refresher) fetch(ctx context.Context) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	t, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.RateRefreshes.WithLabelValues(metrics.ResultFailure).Inc()
		return Table{}, err
	}

	r.cache.Store(t)
	metrics.RateRefreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.RateTableAge.Set(float64(t.FetchedAt.Unix()))
	slog.InfoContext(ctx, "Rate table refreshed", "base", t.Base, "currencies", len(t.Rates))

	if r.store != nil {
		if err := r.store.SaveRates(ctx, t); err != nil {
			// The cache is already updated; only the restart copy is stale.
			slog.WarnContext(ctx, "Failed to persist rate table", "error", err)
		}
	}
	return r.cache.Latest(), nil
}

// Run refreshes immediately and then on every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting rate refresher", "interval", r.interval, "timeout", r.timeout)

	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Rate refresher stopped")
			return nil
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}
