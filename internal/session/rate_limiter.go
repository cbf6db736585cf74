// internal/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limits for the local throttles applied before calling the auth service
type Limits struct {
	SignInAttempts int64
	SignInWindow   time.Duration
	ResetAttempts  int64
	ResetWindow    time.Duration
}

// DefaultLimits mirrors the service's own per-address budgets.
func DefaultLimits() Limits {
	return Limits{
		SignInAttempts: 5,
		SignInWindow:   15 * time.Minute,
		ResetAttempts:  3,
		ResetWindow:    time.Hour,
	}
}

type RateLimiter struct {
	client *redis.Client
	limits Limits
}

func NewRateLimiter(client *redis.Client, limits Limits) *RateLimiter {
	return &RateLimiter{client: client, limits: limits}
}

// CheckSignInAttempt checks if a sign-in attempt is allowed
func (r *RateLimiter) CheckSignInAttempt(ctx context.Context, email string) (bool, int64, error) {
	key := signInKey(email)

	count, err := r.incr(ctx, key, r.limits.SignInWindow)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment sign-in attempt: %w", err)
	}

	remaining := r.limits.SignInAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= r.limits.SignInAttempts, remaining, nil
}

// ResetSignInAttempts resets the sign-in attempt counter
func (r *RateLimiter) ResetSignInAttempts(ctx context.Context, email string) error {
	return r.client.Del(ctx, signInKey(email)).Err()
}

// CheckPasswordResetAttempt checks password reset rate limit
func (r *RateLimiter) CheckPasswordResetAttempt(ctx context.Context, email string) (bool, error) {
	count, err := r.incr(ctx, resetKey(email), r.limits.ResetWindow)
	if err != nil {
		return false, fmt.Errorf("failed to increment password reset attempt: %w", err)
	}
	return count <= r.limits.ResetAttempts, nil
}

// incr bumps a fixed-window counter, setting the window on first use
func (r *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func signInKey(email string) string {
	return fmt.Sprintf("ratelimit:signin:%s", strings.ToLower(strings.TrimSpace(email)))
}

func resetKey(email string) string {
	return fmt.Sprintf("ratelimit:password_reset:%s", strings.ToLower(strings.TrimSpace(email)))
}
