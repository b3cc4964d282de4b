/**
 * @description
 * Redis-backed rate limiting for checkout creation. Each user gets a
 * fixed-window counter maintained inside a Lua script so that every billing
 * instance draws from the same budget.
 */
package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// checkoutWindowScript bumps the caller's window counter and reports the new
// count together with the window's remaining lifetime in one round trip.
var checkoutWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisCheckoutRateLimiter caps how many checkouts a user may start per
// window, shared across billing instances.
type RedisCheckoutRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisCheckoutRateLimiter creates a limiter allowing `limit` checkouts
// per `window` for each user. A limit of zero disables the limiter.
func NewRedisCheckoutRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisCheckoutRateLimiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "billing:rate_limit"
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisCheckoutRateLimiter{
		client: client,
		prefix: p,
		limit:  limit,
		window: window,
	}
}

// AllowCheckout consumes one attempt from the user's current window and
// reports whether it fit, how much quota is left, and — when denied — how
// long until the window resets.
func (r *RedisCheckoutRateLimiter) AllowCheckout(ctx context.Context, userID uuid.UUID) (RateLimitDecision, error) {
	if r == nil || r.client == nil || r.limit <= 0 {
		return RateLimitDecision{Allowed: true}, nil
	}

	key := fmt.Sprintf("%s:checkout:%s", r.prefix, userID)
	raw, err := checkoutWindowScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Result()
	if err != nil {
		return RateLimitDecision{}, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return RateLimitDecision{}, fmt.Errorf("unexpected limiter reply shape: %T", raw)
	}
	hits, ok := values[0].(int64)
	if !ok {
		return RateLimitDecision{}, fmt.Errorf("unexpected limiter hit count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return RateLimitDecision{}, fmt.Errorf("unexpected limiter ttl type: %T", values[1])
	}

	decision := RateLimitDecision{Allowed: hits <= int64(r.limit)}
	if remaining := r.limit - int(hits); remaining > 0 {
		decision.Remaining = remaining
	}
	if !decision.Allowed {
		decision.RetryAfterSeconds = int(math.Ceil(float64(ttlMs) / 1000.0))
		if decision.RetryAfterSeconds < 1 {
			decision.RetryAfterSeconds = 1
		}
	}
	return decision, nil
}
