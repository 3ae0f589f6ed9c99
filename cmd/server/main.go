package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"
	"storefront/internal/notify"
	"storefront/internal/reconcile"
	"storefront/internal/router"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load", "err", err)
		os.Exit(1)
	}

	// 连接与迁移集中在进程启动期完成，之后连接对象显式传给各组件，
	// 不设全局单例。
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Error("db open", "err", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&model.Product{},
		&model.ProductVariant{},
		&model.Order{},
		&model.OrderItem{},
		&model.Coupon{},
	); err != nil {
		logger.Error("db migrate", "err", err)
		os.Exit(1)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis ping", "addr", cfg.RedisAddr, "err", err)
		cancelPing()
		os.Exit(1)
	}
	cancelPing()

	producer := notify.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	dispatcher := notify.NewStreamDispatcher(rdb, cfg.ConfirmationStream)
	relay := notify.NewRelay(rdb, producer, logger,
		cfg.ConfirmationStream, cfg.ConfirmationGroup, cfg.ConfirmationConsumer)
	mailer := notify.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
		rdb, notify.NewLogSender(logger), logger)

	rec := reconcile.New(db, rdb, dispatcher, logger, cfg.StockCacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go relay.Run(ctx)
	go mailer.Run(ctx)

	r := gin.Default()
	router.Setup(r, db, rdb, rec, cfg, logger)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// 先停 HTTP 入口，再停后台消费者，最后释放客户端。
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if err := mailer.Close(); err != nil {
		logger.Warn("mailer close", "err", err)
	}
	if err := producer.Close(); err != nil {
		logger.Warn("producer close", "err", err)
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close", "err", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
