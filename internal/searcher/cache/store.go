package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cvangysel/gondri/internal/searcher"
	pkgredis "github.com/cvangysel/gondri/pkg/redis"
	"github.com/cvangysel/gondri/pkg/resilience"
)

// RedisStore keeps JSON-encoded results in Redis under keyPrefix.
type RedisStore struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewRedisStore(client *pkgredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Get(ctx context.Context, key string) (*searcher.Result, bool, error) {
	data, err := s.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var res searcher.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return &res, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, res *searcher.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl)
}

func (s *RedisStore) Invalidate(ctx context.Context) (int64, error) {
	return s.client.FlushByPattern(ctx, keyPrefix+"*")
}

// LRUStore keeps results in process, bounded by size and optionally
// expiring after ttl.
type LRUStore struct {
	lru *expirable.LRU[string, *searcher.Result]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{lru: expirable.NewLRU[string, *searcher.Result](size, nil, ttl)}
}

func (s *LRUStore) Name() string { return "lru" }

func (s *LRUStore) Get(_ context.Context, key string) (*searcher.Result, bool, error) {
	res, ok := s.lru.Get(key)
	return res, ok, nil
}

func (s *LRUStore) Set(_ context.Context, key string, res *searcher.Result) error {
	s.lru.Add(key, res)
	return nil
}

func (s *LRUStore) Invalidate(context.Context) (int64, error) {
	n := int64(s.lru.Len())
	s.lru.Purge()
	return n, nil
}

// Len is the number of cached results.
func (s *LRUStore) Len() int {
	return s.lru.Len()
}

// GuardedStore stops calling a failing remote store until its breaker
// lets a probe through. Rejected calls surface as errors, which the
// QueryCache treats as misses.
type GuardedStore struct {
	Store
	breaker *resilience.Breaker
}

func NewGuardedStore(s Store, b *resilience.Breaker) *GuardedStore {
	return &GuardedStore{Store: s, breaker: b}
}

func (s *GuardedStore) Get(ctx context.Context, key string) (res *searcher.Result, ok bool, err error) {
	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		res, ok, err = s.Store.Get(ctx, key)
		return err
	})
	return res, ok, err
}

func (s *GuardedStore) Set(ctx context.Context, key string, res *searcher.Result) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.Store.Set(ctx, key, res)
	})
}
