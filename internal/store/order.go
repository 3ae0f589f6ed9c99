package store

import (
	"context"
	"errors"
	"time"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// ErrOrderNotFound 网关订单号在本地找不到对应订单。
var ErrOrderNotFound = errors.New("order not found")

// OrderStore 封装订单读写。所有方法都显式接收 *gorm.DB，
// 事务内操作由调用方传入事务句柄，不持有全局连接。
type OrderStore struct{}

// FindByPaymentRef 按网关订单号查订单，预加载订单行。
func (OrderStore) FindByPaymentRef(ctx context.Context, db *gorm.DB, ref string) (*model.Order, error) {
	var order model.Order
	err := db.WithContext(ctx).Preload("Items").Where("payment_ref = ?", ref).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ConditionalMarkPaid 把订单标记为已支付，返回本次调用是否真正完成了状态迁移。
//
// 这是并发安全的关键：UPDATE 自带 payment_status = 'PENDING' 前置条件，
// 靠受影响行数判断是否赢得竞争。事务前的状态读取可能已经过期，
// 不能作为并发防线，只能算快速短路。
func (OrderStore) ConditionalMarkPaid(ctx context.Context, tx *gorm.DB, orderID uint, gatewayPaymentID string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentPending).
		Updates(map[string]any{
			"status":         model.OrderProcessing,
			"payment_status": model.PaymentPaid,
			"payment_id":     gatewayPaymentID,
			"paid_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
