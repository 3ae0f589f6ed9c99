package notify

import (
	"context"

	rd "github.com/redis/go-redis/v9"
)

// Dispatcher 是对账器看到的通知出口。实现必须快速返回：
// 调用发生在事务提交之后，失败只记日志，不影响已提交的状态
// 与已经给网关的应答。
type Dispatcher interface {
	DispatchOrderConfirmation(ctx context.Context, msg ConfirmationMessage) error
}

// StreamDispatcher 把确认事件写进 Redis Stream 作为 outbox，
// 由 Relay 异步转发 Kafka。相比直写 Kafka，进程崩溃或 broker
// 抖动时消息仍留在流里等待重试。
type StreamDispatcher struct {
	rdb    *rd.Client
	stream string
}

func NewStreamDispatcher(rdb *rd.Client, stream string) *StreamDispatcher {
	return &StreamDispatcher{rdb: rdb, stream: stream}
}

func (d *StreamDispatcher) DispatchOrderConfirmation(ctx context.Context, msg ConfirmationMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return d.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"payment_ref":        msg.PaymentRef,
			"gateway_payment_id": msg.GatewayPaymentID,
			"order_id":           int64(msg.OrderID),
			"total":              msg.Total,
			"coupon_code":        msg.CouponCode,
			"paid_at":            msg.PaidAt,
		},
	}).Err()
}
