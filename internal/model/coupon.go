package model

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠码。UsageLimit 的校验发生在下单时（不在本服务范围内），
// 对账只负责在支付确认后把 UsageCount 加一。
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code       string `gorm:"size:64;uniqueIndex;not null" json:"code"`
	UsageCount int64  `gorm:"not null;default:0" json:"usage_count"`
	UsageLimit *int64 `json:"usage_limit"`
}

func (Coupon) TableName() string { return "coupons" }
