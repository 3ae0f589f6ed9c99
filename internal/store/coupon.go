package store

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// ErrCouponNotFound 订单引用的优惠码在库里不存在。
var ErrCouponNotFound = errors.New("coupon not found")

// CouponStore 优惠码使用计数。只在外部事务内调用。
type CouponStore struct{}

// IncrementUsage 使用次数加一。UsageLimit 不在这里校验——那是下单时的事，
// 支付确认只如实记账。码不存在视为数据不一致，报错让事务回滚。
func (CouponStore) IncrementUsage(ctx context.Context, tx *gorm.DB, code string) error {
	res := tx.WithContext(ctx).Model(&model.Coupon{}).
		Where("code = ?", code).
		Update("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponNotFound
	}
	return nil
}
