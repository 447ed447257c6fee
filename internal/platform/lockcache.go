package platform

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iaros/commerce-core/internal/apperror"
)

// releaseLockScript deletes the lock key only if it still holds this
// holder's token, the standard single-instance Redis lock pattern: a plain
// GET-then-DEL would race against a lock that expired and was
// re-acquired by someone else between the two calls.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// OrderLockCache is the per-order async lock acquired by the create-charge
// pipeline. Backed by Redis SETNX with a TTL so a crashed holder doesn't
// wedge the order forever.
type OrderLockCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderLockCache(rdb *redis.Client, ttl time.Duration) *OrderLockCache {
	return &OrderLockCache{rdb: rdb, ttl: ttl}
}

// Acquire blocks-free attempts a single lock acquisition; callers that need
// to wait should retry with backoff themselves (no built-in blocking, to
// keep HTTP handlers from hanging indefinitely on lock contention).
func (l *OrderLockCache) Acquire(ctx context.Context, orderID string) (release func(context.Context) error, err error) {
	token, err := randomToken()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	key := lockKey(orderID)
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	if !ok {
		return nil, apperror.ErrOrderAlreadySyncing
	}
	return func(releaseCtx context.Context) error {
		return l.rdb.Eval(releaseCtx, releaseLockScript, []string{key}, token).Err()
	}, nil
}

func lockKey(orderID string) string { return "order-lock:" + orderID }

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
