package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	rediskey "storefront/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Consumer 消费 Kafka 确认事件并调用 EmailSender。
// Stream -> Kafka -> 这里整条链路是 at-least-once，
// 所以发送前先抢 SETNX 幂等标记，同一笔支付只发一封。
type Consumer struct {
	r      *kafka.Reader
	rdb    *rd.Client
	sender EmailSender
	logger *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, rdb *rd.Client, sender EmailSender, logger *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		rdb:    rdb,
		sender: sender,
		logger: logger,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开
		}

		var msg ConfirmationMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.logger.Warn("consumer unmarshal", "err", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			c.logger.Warn("consumer invalid message", "err", err)
			continue
		}

		first, err := rediskey.MarkConfirmationSent(ctx, c.rdb, msg.GatewayPaymentID)
		if err != nil {
			// 标记失败宁可冒重复发送的险，也不丢通知。
			c.logger.Warn("consumer mark sent", "payment_id", msg.GatewayPaymentID, "err", err)
			first = true
		}
		if !first {
			continue
		}

		if err := c.sender.SendOrderConfirmation(ctx, msg); err != nil {
			c.logger.Error("consumer send confirmation",
				"payment_ref", msg.PaymentRef, "err", err)
		}
	}
}
