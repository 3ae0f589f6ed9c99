package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// RefreshProductStock 把 DB 里的最新余量写进缓存，商品页展示用。
// 缓存只是展示加速，允许短暂落后，失败由调用方记日志后忽略。
func RefreshProductStock(ctx context.Context, rdb *rd.Client, productID uint, quantity int64, ttl time.Duration) error {
	return rdb.Set(ctx, ProductStockKey(productID), quantity, ttl).Err()
}

// RefreshVariantStock 规格库存缓存，语义同上。
func RefreshVariantStock(ctx context.Context, rdb *rd.Client, variantID uint, quantity int64, ttl time.Duration) error {
	return rdb.Set(ctx, VariantStockKey(variantID), quantity, ttl).Err()
}

// GetCachedStock 读缓存余量。found=false 表示缓存内没有，走 DB 兜底。
func GetCachedStock(ctx context.Context, rdb *rd.Client, key string) (int64, bool, error) {
	val, err := rdb.Get(ctx, key).Int64()
	if err != nil {
		if err == rd.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return val, true, nil
}
