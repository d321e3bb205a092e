// Package ratelimit implements a fixed-window request limiter:
// per-principal minute/hour/day counters backed by Redis INCR+EXPIRE.
// Each window's counter starts at the principal's first recorded request
// and resets when its key expires one period later; the windows do not
// slide.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window identifies one of the three checked granularities, in the fixed
// check order required: minute, then hour, then day.
type Window struct {
	Name string
	Period time.Duration
}

var windows = []Window{
	{Name: "minute", Period: time.Minute},
	{Name: "hour", Period: time.Hour},
	{Name: "day", Period: 24 * time.Hour},
}

// Limits holds the three per-window thresholds for one class of principal.
type Limits struct {
	Minute int
	Hour int
	Day int
}

// DefaultAuthenticated and DefaultAnonymous are the defaults.
var (
	DefaultAuthenticated = Limits{Minute: 60, Hour: 1000, Day: 10000}
	DefaultAnonymous = Limits{Minute: 10, Hour: 100, Day: 500}
)

func (l Limits) forWindow(name string) int {
	switch name {
	case "minute":
		return l.Minute
	case "hour":
		return l.Hour
	case "day":
		return l.Day
	default:
		return 0
	}
}

// CounterBackend is the subset of *store.Store used for write-through
// durability of counters, independent of their Redis expiry.
type CounterBackend interface {
	IncrementCounter(ctx context.Context, key string, windowStart time.Time) (int64, error)
}

// Result reports the outcome of a Check call.
type Result struct {
	Allowed bool
	ExceededWindow string
	RetryAfterSeconds int
}

// RateLimiter checks and records per-principal request counts.
type RateLimiter struct {
	redis *redis.Client
	store CounterBackend
}

// New creates a RateLimiter.
func New(rdb *redis.Client, backend CounterBackend) *RateLimiter {
	return &RateLimiter{redis: rdb, store: backend}
}

// Ping checks Redis connectivity for readiness/health reporting.
func (r *RateLimiter) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// Check evaluates all three windows in order (minute, hour, day) without
// incrementing anything — it only reads the current counts.
func (r *RateLimiter) Check(ctx context.Context, principal string, limits Limits) (Result, error) {
	now := time.Now()
	for _, w := range windows {
		limit := limits.forWindow(w.Name)
		if limit <= 0 {
			continue
		}

		key := redisKey(principal, w.Name)
		count, err := r.redis.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			return Result{}, fmt.Errorf("checking rate limit window %s: %w", w.Name, err)
		}

		if count >= limit {
			ttl, err := r.redis.TTL(ctx, key).Result()
			if err != nil {
				return Result{}, fmt.Errorf("getting ttl for window %s: %w", w.Name, err)
			}
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = secondsUntilNextBucket(now, w.Period)
			}
			return Result{Allowed: false, ExceededWindow: w.Name, RetryAfterSeconds: retryAfter}, nil
		}
	}

	return Result{Allowed: true}, nil
}

// Record increments all three window counters. Callers MUST only call this
// after a non-rate-limited decision has been produced, so a 429 response
// never consumes a slot in the caller's budget.
func (r *RateLimiter) Record(ctx context.Context, principal string, limits Limits) error {
	now := time.Now()
	pipe := r.redis.Pipeline()
	incrs := make(map[string]*redis.IntCmd, len(windows))

	for _, w := range windows {
		if limits.forWindow(w.Name) <= 0 {
			continue
		}
		key := redisKey(principal, w.Name)
		incrs[w.Name] = pipe.Incr(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording rate limit counters: %w", err)
	}

	for _, w := range windows {
		cmd, ok := incrs[w.Name]
		if !ok {
			continue
		}
		if cmd.Val() == 1 {
			r.redis.Expire(ctx, redisKey(principal, w.Name), w.Period)
		}
		if r.store != nil {
			bucket := now.Truncate(w.Period)
			if _, err := r.store.IncrementCounter(ctx, storeKey(principal, w.Name), bucket); err != nil {
				return fmt.Errorf("write-through counter for window %s: %w", w.Name, err)
			}
		}
	}

	return nil
}

func secondsUntilNextBucket(now time.Time, period time.Duration) int {
	elapsed := now.UnixNano() % period.Nanoseconds()
	remaining := period.Nanoseconds() - elapsed
	return int(time.Duration(remaining).Seconds()) + 1
}

const redisKeyPrefix = "edon:ratelimit:"

func redisKey(principal, window string) string {
	return fmt.Sprintf("%s%s:%s", redisKeyPrefix, principal, window)
}

func storeKey(principal, window string) string {
	return fmt.Sprintf("ratelimit:%s:%s", principal, window)
}
