package notify

import "fmt"

// ConfirmationMessage 是支付确认通知事件，经 Redis Stream outbox 转 Kafka。
type ConfirmationMessage struct {
	PaymentRef       string `json:"payment_ref"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	OrderID          uint   `json:"order_id"`
	Total            int64  `json:"total"` // 分
	CouponCode       string `json:"coupon_code,omitempty"`
	PaidAt           string `json:"paid_at"` // RFC3339
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m ConfirmationMessage) Validate() error {
	if m.PaymentRef == "" {
		return fmt.Errorf("payment_ref is required")
	}
	if m.GatewayPaymentID == "" {
		return fmt.Errorf("gateway_payment_id is required")
	}
	if m.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if m.Total <= 0 {
		return fmt.Errorf("total must be > 0")
	}
	if m.PaidAt == "" {
		return fmt.Errorf("paid_at is required")
	}
	return nil
}
