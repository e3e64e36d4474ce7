package archive

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// 永続化中の確保の有効期限。プロセスが落ちても再送を受け付けられるように短くする
	pendingClaimTTL = time.Minute

	claimPending = "pending"
	claimDone    = "done"
)

// RedisGuard は記録IDごとに pending / done の状態を保持する
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration // done を保持する期間
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func guardKey(recordID string) string {
	return "archive:" + recordID
}

func (g *RedisGuard) Claim(ctx context.Context, recordID string) (ClaimResult, error) {
	key := guardKey(recordID)
	ok, err := g.rdb.SetNX(ctx, key, claimPending, pendingClaimTTL).Result()
	if err != nil {
		return Claimed, err
	}
	if ok {
		return Claimed, nil
	}

	state, err := g.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// 確認の間に期限切れになった。次の再送で確保できる
		return InFlight, nil
	case err != nil:
		return Claimed, err
	case state == claimDone:
		return AlreadyArchived, nil
	}
	return InFlight, nil
}

func (g *RedisGuard) Complete(ctx context.Context, recordID string) error {
	return g.rdb.Set(ctx, guardKey(recordID), claimDone, g.ttl).Err()
}

func (g *RedisGuard) Release(ctx context.Context, recordID string) error {
	return g.rdb.Del(ctx, guardKey(recordID)).Err()
}
