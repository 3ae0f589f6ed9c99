package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/store"
	rediskey "storefront/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Outcome 对账结果。除 DB 层失败（Reconcile 返回 error，HTTP 500 触发网关重试）外，
// 其余所有结果都应答 200：重试解决不了的问题不值得让网关重试。
type Outcome string

const (
	// OutcomePaid 本次投递完成了 PENDING -> PAID 迁移及全部副作用。
	OutcomePaid Outcome = "paid"
	// OutcomeAlreadyPaid 订单已是 PAID，或条件更新输给了并发投递。重复投递的正常结局。
	OutcomeAlreadyPaid Outcome = "already_paid"
	// OutcomeUnhandled 事件类型不在处理范围内，确认但不产生任何变更。
	OutcomeUnhandled Outcome = "unhandled"
	// OutcomeOrderMissing 网关订单号没有对应本地订单。重试不可能修复"订单不存在"，
	// 记警告后确认，可能意味着与网关之间的数据同步出了问题。
	OutcomeOrderMissing Outcome = "order_missing"
	// OutcomeInsufficientStock 某行库存不足，整个事务已回滚，订单停在 PENDING 等人工介入。
	OutcomeInsufficientStock Outcome = "insufficient_stock"
)

// Reconciler 把网关的支付确认收敛到本地状态：
// 订单标记 PAID、逐行扣库存、优惠码计数加一，三者在一个事务内全成或全不成。
type Reconciler struct {
	db         *gorm.DB
	rdb        *rd.Client // 可为 nil，Redis 只承担快速短路与缓存
	dispatcher notify.Dispatcher
	logger     *slog.Logger

	orders  store.OrderStore
	stock   store.StockStore
	coupons store.CouponStore

	stockCacheTTL time.Duration
	now           func() time.Time
}

func New(db *gorm.DB, rdb *rd.Client, dispatcher notify.Dispatcher, logger *slog.Logger, stockCacheTTL time.Duration) *Reconciler {
	return &Reconciler{
		db:            db,
		rdb:           rdb,
		dispatcher:    dispatcher,
		logger:        logger,
		stockCacheTTL: stockCacheTTL,
		now:           time.Now,
	}
}

// Reconcile 处理一次回调投递。投递是 at-least-once 且可能并发重复，
// 幂等防线分三层：Redis 完成标记（快速短路）、事务前的状态读取（快速短路）、
// 事务内带 payment_status = 'PENDING' 前置条件的条件更新（真正的防线）。
// 前两层随时可能读到过期数据，正确性只依赖第三层。
func (r *Reconciler) Reconcile(ctx context.Context, evt gateway.Event) (Outcome, error) {
	if evt.Kind != gateway.KindOrderPaid {
		r.logger.Debug("unhandled gateway event", "event", evt.RawEvent)
		return OutcomeUnhandled, nil
	}

	if r.rdb != nil {
		done, err := rediskey.IsEventProcessed(ctx, r.rdb, evt.GatewayPaymentID)
		if err != nil {
			// Redis 故障不拦路，继续走 DB。
			r.logger.Warn("processed marker lookup", "payment_id", evt.GatewayPaymentID, "err", err)
		} else if done {
			return OutcomeAlreadyPaid, nil
		}
	}

	order, err := r.orders.FindByPaymentRef(ctx, r.db, evt.GatewayOrderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			r.logger.Warn("webhook for unknown order",
				"gateway_order_id", evt.GatewayOrderID,
				"gateway_payment_id", evt.GatewayPaymentID)
			return OutcomeOrderMissing, nil
		}
		return "", fmt.Errorf("find order: %w", err)
	}

	if order.PaymentStatus == model.PaymentPaid {
		return OutcomeAlreadyPaid, nil
	}

	paidAt := r.now()
	won := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := r.orders.ConditionalMarkPaid(ctx, tx, order.ID, evt.GatewayPaymentID, paidAt)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !ok {
			// 并发投递先到一步，Order 已不在 PENDING。
			// 跳过库存与优惠码，不能重复施加副作用。
			return nil
		}
		won = true

		for _, item := range order.Items {
			ref := store.StockRef{ProductID: item.ProductID, VariantID: item.VariantID}
			if err := r.stock.Decrement(ctx, tx, ref, item.Quantity); err != nil {
				return fmt.Errorf("decrement stock product=%d: %w", item.ProductID, err)
			}
		}

		if order.CouponCode != "" {
			if err := r.coupons.IncrementUsage(ctx, tx, order.CouponCode); err != nil {
				return fmt.Errorf("increment coupon %s: %w", order.CouponCode, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			// 回滚已完成，订单保持 PENDING/PENDING。网关重试变不出库存，
			// 确认这次投递并大声记录，等人工处理。
			r.logger.Error("insufficient stock, order left pending",
				"payment_ref", order.PaymentRef,
				"gateway_payment_id", evt.GatewayPaymentID,
				"err", err)
			return OutcomeInsufficientStock, nil
		}
		return "", fmt.Errorf("reconcile transaction: %w", err)
	}

	if !won {
		return OutcomeAlreadyPaid, nil
	}

	// 提交之后的收尾全部是尽力而为：失败记日志，不回滚、不影响应答。
	r.afterCommit(ctx, order, evt, paidAt)
	return OutcomePaid, nil
}

// afterCommit 写 Redis 完成标记、刷新库存缓存、投递确认通知。
func (r *Reconciler) afterCommit(ctx context.Context, order *model.Order, evt gateway.Event, paidAt time.Time) {
	if r.rdb != nil {
		if _, err := rediskey.MarkEventProcessed(ctx, r.rdb, evt.GatewayPaymentID); err != nil {
			r.logger.Warn("mark event processed", "payment_id", evt.GatewayPaymentID, "err", err)
		}
		r.refreshStockCache(ctx, order)
	}

	if r.dispatcher == nil {
		return
	}
	msg := notify.ConfirmationMessage{
		PaymentRef:       order.PaymentRef,
		GatewayPaymentID: evt.GatewayPaymentID,
		OrderID:          order.ID,
		Total:            order.Total,
		CouponCode:       order.CouponCode,
		PaidAt:           paidAt.UTC().Format(time.RFC3339),
	}
	if err := r.dispatcher.DispatchOrderConfirmation(ctx, msg); err != nil {
		r.logger.Error("dispatch order confirmation",
			"payment_ref", order.PaymentRef, "err", err)
	}
}

func (r *Reconciler) refreshStockCache(ctx context.Context, order *model.Order) {
	for _, item := range order.Items {
		ref := store.StockRef{ProductID: item.ProductID, VariantID: item.VariantID}
		qty, err := r.stock.Available(ctx, r.db, ref)
		if err != nil {
			r.logger.Warn("read stock for cache refresh", "product_id", item.ProductID, "err", err)
			continue
		}
		if ref.VariantID != nil {
			err = rediskey.RefreshVariantStock(ctx, r.rdb, *ref.VariantID, qty, r.stockCacheTTL)
		} else {
			err = rediskey.RefreshProductStock(ctx, r.rdb, ref.ProductID, qty, r.stockCacheTTL)
		}
		if err != nil {
			r.logger.Warn("refresh stock cache", "product_id", item.ProductID, "err", err)
		}
	}
}
