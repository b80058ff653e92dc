// Package cache memoizes query results. A QueryCache fronts a Store
// (Redis when configured, an in-process LRU otherwise) and collapses
// concurrent computations of the same key.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cvangysel/gondri/internal/searcher"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

const keyPrefix = "gondri:query:"

// Key identifies a query evaluation. Every field that changes the result
// is part of the key.
type Key struct {
	Model     string
	Query     string
	Results   int
	Snippets  bool
	Documents []int
}

// String hashes the normalized key.
func (k Key) String() string {
	docs := append([]int(nil), k.Documents...)
	sort.Ints(docs)
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = strconv.Itoa(d)
	}
	raw := fmt.Sprintf("%s|%s|n=%d|s=%t|d=%s",
		k.Model, normalizeQuery(k.Query), k.Results, k.Snippets, strings.Join(parts, ","))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery collapses case and whitespace. Term order is kept since
// it can change snippet and tie behaviour.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Store holds encoded results.
type Store interface {
	Get(ctx context.Context, key string) (*searcher.Result, bool, error)
	Set(ctx context.Context, key string, res *searcher.Result) error
	Invalidate(ctx context.Context) (int64, error)
	Name() string
}

type QueryCache struct {
	store   Store
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, m *metrics.Metrics, l *slog.Logger) *QueryCache {
	return &QueryCache{
		store:   store,
		metrics: m,
		logger:  logger.Component(l, "query-cache").With("store", store.Name()),
	}
}

// Get returns a cached result. Store failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key Key) (*searcher.Result, bool) {
	k := key.String()
	res, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.logger.Error("cache get failed", "key", k, "error", err)
	}
	if !ok || err != nil {
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return res, true
}

// Set stores res; failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, key Key, res *searcher.Result) {
	k := key.String()
	if err := c.store.Set(ctx, k, res); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result for key or computes and stores
// it. Concurrent callers with the same key share one computation, which
// runs detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx is done. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (*searcher.Result, error)) (*searcher.Result, bool, error) {
	if res, ok := c.Get(ctx, key); ok {
		return res, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		res, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*searcher.Result), false, nil
	}
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.Invalidate(ctx)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats reports hits and misses since creation.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("results").Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("results").Inc()
	}
}
