package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	// WebhookSecret 与支付网关共享，用于校验回调签名。
	WebhookSecret string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、确认通知 Topic、邮件消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（对账提交后入流，Relay 异步转 Kafka）
	ConfirmationStream   string
	ConfirmationGroup    string
	ConfirmationConsumer string

	// 回调接口限流与库存缓存策略
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
	StockCacheTTL     time.Duration

	// 商品管理接口的简单管理员令牌
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
// WEBHOOK_SECRET 没有默认值：缺了它所有回调都会被拒。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DBPath:               getEnv("DB_PATH", "storefront.db"),
		WebhookSecret:        getEnv("WEBHOOK_SECRET", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              0,
		KafkaBrokers:         splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "order-confirmations"),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "order-confirmation-mailer"),
		ConfirmationStream:   getEnv("CONFIRMATION_STREAM", "storefront:confirmation_events"),
		ConfirmationGroup:    getEnv("CONFIRMATION_GROUP", "storefront-relay-group"),
		ConfirmationConsumer: getEnv("CONFIRMATION_CONSUMER", "storefront-relay-1"),
		WebhookRateLimit:     100,
		WebhookRateWindow:    time.Second,
		StockCacheTTL:        24 * time.Hour,
		AdminToken:           getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	if cfg.WebhookSecret == "" {
		return AppConfig{}, fmt.Errorf("WEBHOOK_SECRET must not be empty")
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("WEBHOOK_RATE_LIMIT", cfg.WebhookRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WEBHOOK_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("WEBHOOK_RATE_LIMIT must be > 0")
	}
	cfg.WebhookRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("WEBHOOK_RATE_WINDOW_SEC", int(cfg.WebhookRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WEBHOOK_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("WEBHOOK_RATE_WINDOW_SEC must be > 0")
	}
	cfg.WebhookRateWindow = time.Duration(rateWindowSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.ConfirmationStream == "" {
		return AppConfig{}, fmt.Errorf("CONFIRMATION_STREAM must not be empty")
	}
	if cfg.ConfirmationGroup == "" {
		return AppConfig{}, fmt.Errorf("CONFIRMATION_GROUP must not be empty")
	}
	if cfg.ConfirmationConsumer == "" {
		return AppConfig{}, fmt.Errorf("CONFIRMATION_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
