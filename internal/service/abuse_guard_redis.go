package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{client: client, prefix: prefix, policy: policy.withDefaults()}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	now := time.Now()
	var longest time.Duration
	for _, key := range g.keysFor(scope, identity, ip) {
		state, err := g.loadState(ctx, key)
		if err != nil {
			return 0, err
		}
		if state == nil {
			continue
		}
		if remaining := state.cooldownUntil.Sub(now); remaining > longest {
			longest = remaining
		}
	}
	if longest < 0 {
		longest = 0
	}
	return longest, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	now := time.Now()
	var longest time.Duration
	for _, key := range g.keysFor(scope, identity, ip) {
		state, err := g.loadState(ctx, key)
		if err != nil {
			return 0, err
		}
		failures := int64(0)
		if state != nil && now.Sub(state.lastFailure) <= g.policy.ResetWindow {
			failures = state.failures
		}
		failures++

		cooldown := g.cooldownFor(failures)
		until := now.Add(cooldown)
		err = g.client.HSet(ctx, key,
			"failures", failures,
			"last_failure_ms", now.UnixMilli(),
			"cooldown_until_ms", until.UnixMilli(),
		).Err()
		if err != nil {
			return 0, err
		}
		if err := g.client.Expire(ctx, key, g.policy.ResetWindow+g.policy.MaxDelay).Err(); err != nil {
			return 0, err
		}
		if cooldown > longest {
			longest = cooldown
		}
	}
	return longest, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity, ip string) error {
	keys := g.keysFor(scope, identity, ip)
	if len(keys) == 0 {
		return nil
	}
	return g.client.Del(ctx, keys...).Err()
}

func (g *RedisAuthAbuseGuard) cooldownFor(failures int64) time.Duration {
	over := failures - int64(g.policy.FreeAttempts)
	if over <= 0 {
		return 0
	}
	cooldown := time.Duration(float64(g.policy.BaseDelay) * math.Pow(g.policy.Multiplier, float64(over-1)))
	if cooldown > g.policy.MaxDelay || cooldown <= 0 {
		cooldown = g.policy.MaxDelay
	}
	return cooldown
}

type abuseState struct {
	failures      int64
	lastFailure   time.Time
	cooldownUntil time.Time
}

func (g *RedisAuthAbuseGuard) loadState(ctx context.Context, key string) (*abuseState, error) {
	values, err := g.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	state := &abuseState{}
	if raw, ok := values["failures"]; ok {
		state.failures, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse abuse state %q failures: %w", key, err)
		}
	}
	lastMs, err := parseStateMillis(values, "last_failure_ms", key)
	if err != nil {
		return nil, err
	}
	untilMs, err := parseStateMillis(values, "cooldown_until_ms", key)
	if err != nil {
		return nil, err
	}
	state.lastFailure = time.UnixMilli(lastMs)
	state.cooldownUntil = time.UnixMilli(untilMs)
	return state, nil
}

func parseStateMillis(values map[string]string, field, key string) (int64, error) {
	raw, ok := values[field]
	if !ok {
		return 0, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse abuse state %q %s: %w", key, field, err)
	}
	return ms, nil
}

func (g *RedisAuthAbuseGuard) keysFor(scope AuthAbuseScope, identity, ip string) []string {
	keys := make([]string, 0, 2)
	if id := normalizeAuthIdentity(identity); id != "" {
		keys = append(keys, g.stateKey(scope, "id", id))
	}
	if ip != "" {
		keys = append(keys, g.stateKey(scope, "ip", ip))
	}
	return keys
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, dimension, value string) string {
	return fmt.Sprintf("%s:%s:%s:%s", g.prefix, scope, dimension, value)
}
