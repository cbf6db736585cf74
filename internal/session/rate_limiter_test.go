package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSignInAttemptWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRateLimiter(rdb, DefaultLimits())
	ctx := t.Context()

	for i := int64(1); i <= 5; i++ {
		allowed, remaining, err := rl.CheckSignInAttempt(ctx, "Ada@Example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 5-i, remaining)
	}

	allowed, remaining, err := rl.CheckSignInAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	assert.Equal(t, 15*time.Minute, mr.TTL("ratelimit:signin:ada@example.com"))

	mr.FastForward(16 * time.Minute)
	allowed, _, err = rl.CheckSignInAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResetSignInAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRateLimiter(rdb, Limits{SignInAttempts: 1, SignInWindow: time.Minute, ResetAttempts: 1, ResetWindow: time.Minute})
	ctx := t.Context()

	_, _, err := rl.CheckSignInAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, rl.ResetSignInAttempts(ctx, "ada@example.com"))

	allowed, _, err := rl.CheckSignInAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckPasswordResetAttempt(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRateLimiter(rdb, DefaultLimits())
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		allowed, err := rl.CheckPasswordResetAttempt(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := rl.CheckPasswordResetAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:password_reset:ada@example.com"))
}

func TestLimiterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	rl := NewRateLimiter(rdb, DefaultLimits())
	_, _, err := rl.CheckSignInAttempt(t.Context(), "ada@example.com")
	assert.Error(t, err)
}
