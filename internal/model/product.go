package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品：名称、价格、库存。
// Quantity 即库存台账，对账扣减与商品页展示共享这一份数据。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:128;not null" json:"name"`
	Price    int64  `gorm:"not null" json:"price"` // 单位：分
	Quantity int64  `gorm:"not null;default:0" json:"quantity"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

func (Product) TableName() string { return "products" }

// ProductVariant 规格（颜色/尺码等），持有独立库存。
// 订单行指定了规格时扣其库存，否则扣商品本体库存。
type ProductVariant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductID uint   `gorm:"not null;index" json:"product_id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Price     int64  `gorm:"not null" json:"price"`
	Quantity  int64  `gorm:"not null;default:0" json:"quantity"`
}

func (ProductVariant) TableName() string { return "product_variants" }
