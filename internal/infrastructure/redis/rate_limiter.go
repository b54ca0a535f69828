package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
)

// rollingWindowScript はソート済みセットでローリングウィンドウ内の
// 試行回数を数え、上限未満なら今回の試行を記録する
const rollingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
	local count = redis.call("ZCARD", key)
	if count >= limit then
		return 0
	end
	redis.call("ZADD", key, now, now .. "-" .. math.random(1000000))
	redis.call("PEXPIRE", key, window)
	return 1
`

// HoldRateLimiter はホールド作成を作成者・予約単位でレート制限する
// Redis障害時は制限せずに通す（フェイルオープン）
type HoldRateLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

func NewHoldRateLimiter(client *redis.Client, window time.Duration, limit int) *HoldRateLimiter {
	return &HoldRateLimiter{client: client, window: window, limit: limit}
}

// Allow はキーに対する今回の試行が上限内かを返す
func (r *HoldRateLimiter) Allow(ctx context.Context, key string) bool {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true
	}

	redisKey := fmt.Sprintf("ratelimit:hold:%s", key)
	now := time.Now().UnixMilli()
	result, err := r.client.Eval(ctx, rollingWindowScript,
		[]string{redisKey}, now, r.window.Milliseconds(), r.limit).Int()
	if err != nil {
		logger.Warn("レート制限の判定に失敗したため許可します",
			zap.String("key", key), zap.Error(err))
		return true
	}
	return result == 1
}
