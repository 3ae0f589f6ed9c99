package gateway

import "encoding/json"

// EventKind 回调事件的封闭标签集合。
// 未知类型显式表示为 KindUnhandled 而不是丢弃：上层仍需返回 200 确认，
// 否则网关会对我们有意忽略的事件无限重试。
type EventKind string

const (
	KindOrderPaid EventKind = "order_paid"
	KindUnhandled EventKind = "unhandled"
)

// 网关事件类型到内部标签的映射。gateway 侧叫 "order.paid"。
const rawKindOrderPaid = "order.paid"

// Event 已解析的回调事件。Kind == KindOrderPaid 时两个网关 ID 必有值。
type Event struct {
	Kind             EventKind
	GatewayOrderID   string
	GatewayPaymentID string
	// RawEvent 保留网关原始事件名，未处理事件打日志用。
	RawEvent string
}

// webhookBody 仅为解码所需的最小结构：
// {"event": "...", "payload": {"order": {"entity": {...}}, "payment": {"entity": {...}}}}
type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseEvent 把已通过签名校验的 body 解码为类型化事件。
// 松散的 map 不出此边界；后续事务逻辑只看 Event。
// JSON 非法、字段缺失、类型不认识，统一归为 KindUnhandled。
func ParseEvent(rawBody []byte) Event {
	var body webhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return Event{Kind: KindUnhandled, RawEvent: "malformed"}
	}

	if body.Event != rawKindOrderPaid {
		return Event{Kind: KindUnhandled, RawEvent: body.Event}
	}

	orderID := body.Payload.Order.Entity.ID
	if orderID == "" {
		// 部分网关 payload 只在 payment 实体里带 order_id。
		orderID = body.Payload.Payment.Entity.OrderID
	}
	paymentID := body.Payload.Payment.Entity.ID
	if orderID == "" || paymentID == "" {
		return Event{Kind: KindUnhandled, RawEvent: body.Event}
	}

	return Event{
		Kind:             KindOrderPaid,
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		RawEvent:         body.Event,
	}
}
