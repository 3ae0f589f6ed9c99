package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/reconcile"
	"storefront/internal/store"
	rediskey "storefront/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SignatureHeader 网关在该请求头内携带 HMAC-SHA256 十六进制签名。
const SignatureHeader = "X-Gateway-Signature"

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, rec *reconcile.Reconciler, cfg config.AppConfig, logger *slog.Logger) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	// Catalog
	r.GET("/api/products", listProducts(db, rdb))
	r.POST("/api/products", createProduct(db, cfg.AdminToken))
	// Orders
	r.GET("/api/orders/:payment_ref", getOrder(db))
	// Payment gateway webhook
	webhookHandlers := []gin.HandlerFunc{}
	if rdb != nil {
		webhookHandlers = append(webhookHandlers,
			middleware.RedisRateLimit(rdb, cfg.WebhookRateLimit, cfg.WebhookRateWindow))
	}
	webhookHandlers = append(webhookHandlers, paymentWebhook([]byte(cfg.WebhookSecret), rec, logger))
	r.POST("/api/payments/webhook", webhookHandlers...)
}

// paymentWebhook 是支付网关回调入口。
// 关键流程：
// 1. 读原始 body（签名必须对未解析字节计算，任何重编码都会破坏签名）
// 2. 常数时间校验 HMAC，失败 400，不再往下走
// 3. 解析为类型化事件，交给对账器
// 4. 除 DB 层失败（500，让网关重试）外一律 200 {"received": true}
func paymentWebhook(secret []byte, rec *reconcile.Reconciler, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deliveryID := uuid.New().String()

		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		if !gateway.VerifySignature(rawBody, c.GetHeader(SignatureHeader), secret) {
			logger.Warn("webhook signature rejected",
				"delivery_id", deliveryID, "remote", c.ClientIP())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		evt := gateway.ParseEvent(rawBody)
		outcome, err := rec.Reconcile(c.Request.Context(), evt)
		if err != nil {
			// 事务级失败：没有部分状态残留，告诉网关重试是安全的。
			logger.Error("reconcile failed",
				"delivery_id", deliveryID,
				"gateway_order_id", evt.GatewayOrderID,
				"err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		logger.Info("webhook processed",
			"delivery_id", deliveryID,
			"event", evt.RawEvent,
			"outcome", string(outcome))
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// listProducts 商品列表，余量优先读缓存，缺失时退回 DB 值。
func listProducts(db *gorm.DB, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Preload("Variants").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if rdb != nil {
			ctx := c.Request.Context()
			for i := range list {
				if qty, ok, err := rediskey.GetCachedStock(ctx, rdb, rediskey.ProductStockKey(list[i].ID)); err == nil && ok {
					list[i].Quantity = qty
				}
				for j := range list[i].Variants {
					v := &list[i].Variants[j]
					if qty, ok, err := rediskey.GetCachedStock(ctx, rdb, rediskey.VariantStockKey(v.ID)); err == nil && ok {
						v.Quantity = qty
					}
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createProduct 创建商品（可带规格），管理端点要求简单管理员 token。
func createProduct(db *gorm.DB, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid admin token"})
			return
		}

		var req struct {
			Name     string `json:"name" binding:"required"`
			Price    int64  `json:"price" binding:"required,min=1"`
			Quantity int64  `json:"quantity" binding:"min=0"`
			Variants []struct {
				Name     string `json:"name" binding:"required"`
				Price    int64  `json:"price" binding:"required,min=1"`
				Quantity int64  `json:"quantity" binding:"min=0"`
			} `json:"variants" binding:"omitempty,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		p := &model.Product{
			Name:     req.Name,
			Price:    req.Price,
			Quantity: req.Quantity,
		}
		for _, v := range req.Variants {
			p.Variants = append(p.Variants, model.ProductVariant{
				Name:     v.Name,
				Price:    v.Price,
				Quantity: v.Quantity,
			})
		}
		if err := db.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// getOrder 按网关订单号查询订单与支付状态。
func getOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("payment_ref")
		if ref == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "payment_ref is required"})
			return
		}

		order, err := store.OrderStore{}.FindByPaymentRef(c.Request.Context(), db, ref)
		if err != nil {
			if errors.Is(err, store.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}
