package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaMarkOnce 通过 SETNX 锁保证同一个键只被标记一次。
const luaMarkOnce = `
local key = KEYS[1]
local ttlSec = tonumber(ARGV[1])

if redis.call('SETNX', key, '1') == 1 then
  redis.call('EXPIRE', key, ttlSec)
  return 1
end
return 0
`

const markerTTL = 7 * 24 * time.Hour

// IsEventProcessed 查询某笔支付是否已有完成标记。
// 仅作重复投递的快速短路；真正的幂等防线是 DB 里的条件更新，
// Redis 不可用时直接当没标记处理。
func IsEventProcessed(ctx context.Context, rdb *rd.Client, gatewayPaymentID string) (bool, error) {
	n, err := rdb.Exists(ctx, ProcessedEventKey(gatewayPaymentID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEventProcessed 对账提交后写入完成标记。
// 首次标记返回 true，重复标记返回 false。
func MarkEventProcessed(ctx context.Context, rdb *rd.Client, gatewayPaymentID string) (bool, error) {
	return markOnce(ctx, rdb, ProcessedEventKey(gatewayPaymentID))
}

// MarkConfirmationSent 确认邮件消费者的幂等标记，语义同上。
func MarkConfirmationSent(ctx context.Context, rdb *rd.Client, gatewayPaymentID string) (bool, error) {
	return markOnce(ctx, rdb, ConfirmationSentKey(gatewayPaymentID))
}

func markOnce(ctx context.Context, rdb *rd.Client, key string) (bool, error) {
	const ttlSec = int64(markerTTL / time.Second)
	n, err := rdb.Eval(ctx, luaMarkOnce, []string{key}, ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
