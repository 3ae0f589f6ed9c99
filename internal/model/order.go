package model

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单履约状态机。
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// PaymentStatus 支付状态机。本服务只负责 PENDING -> PAID 这一条边，
// FAILED / REFUNDED 由其他事件类型与后台操作推进。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Order 订单。结账流程（不在本服务范围内）以 PENDING/PENDING 创建，
// 支付回调对账负责推进到 PROCESSING/PAID。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// PaymentRef 是网关侧订单号，回调事件用它定位本地订单。
	PaymentRef    string        `gorm:"size:64;uniqueIndex;not null" json:"payment_ref"`
	Status        OrderStatus   `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:16;not null;default:PENDING;index" json:"payment_status"`
	// PaymentID 网关支付流水号，标记 PAID 时一并写入。
	PaymentID  string     `gorm:"size:64" json:"payment_id"`
	PaidAt     *time.Time `json:"paid_at"`
	CouponCode string     `gorm:"size:64" json:"coupon_code"`
	Total      int64      `gorm:"not null" json:"total"` // 总金额，单位分

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 订单行，创建后不可变；单价为下单时刻快照。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID   uint  `gorm:"not null;index" json:"order_id"`
	ProductID uint  `gorm:"not null;index" json:"product_id"`
	VariantID *uint `gorm:"index" json:"variant_id"`
	Quantity  int64 `gorm:"not null;default:1" json:"quantity"`
	UnitPrice int64 `gorm:"not null" json:"unit_price"` // 单位分
}

func (OrderItem) TableName() string { return "order_items" }
