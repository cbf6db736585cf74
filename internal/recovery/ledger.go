package recovery

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// RedisLedger remembers which recovery tokens were already used. Only a digest of the token
// is stored.
type RedisLedger struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisLedger(client redis.UniversalClient, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "recovery:used"
	}
	return &RedisLedger{redis: client, prefix: prefix}
}

// Claim marks token as used for ttl. It returns false when the token was claimed before.
func (l *RedisLedger) Claim(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := l.redis.SetNX(ctx, l.key(token), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record recovery token: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) key(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return l.prefix + ":" + hex.EncodeToString(sum[:])
}
