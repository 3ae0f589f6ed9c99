package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// EmailSender 是确认邮件的发送边界。SMTP/SMS 传输细节不在本服务范围内，
// 这里只约定接口，由部署环境注入实现。
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, msg ConfirmationMessage) error
}

// LogSender 把确认邮件以日志形式"发出"，本地开发与测试用。
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOrderConfirmation(_ context.Context, msg ConfirmationMessage) error {
	s.logger.Info("order confirmation email",
		"payment_ref", msg.PaymentRef,
		"order_id", msg.OrderID,
		"total", fmt.Sprintf("%.2f", float64(msg.Total)/100),
		"paid_at", msg.PaidAt,
	)
	return nil
}
