package store

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// ErrInsufficientStock 库存不足，扣减被拒绝。
var ErrInsufficientStock = errors.New("insufficient stock")

// StockRef 指向一条库存台账：规格库存或商品本体库存。
type StockRef struct {
	ProductID uint
	VariantID *uint
}

// StockStore 库存扣减。只在外部事务内调用。
type StockStore struct{}

// Decrement 扣减库存，UPDATE 谓词自带 quantity >= amount 下限保护。
// 受影响行数为 0 说明余量不足（或目标不存在），返回 ErrInsufficientStock，
// 由调用方回滚整个事务——不允许负库存，也不允许部分扣减。
func (StockStore) Decrement(ctx context.Context, tx *gorm.DB, ref StockRef, amount int64) error {
	if amount <= 0 {
		return nil
	}

	var res *gorm.DB
	if ref.VariantID != nil {
		res = tx.WithContext(ctx).Model(&model.ProductVariant{}).
			Where("id = ? AND quantity >= ?", *ref.VariantID, amount).
			Update("quantity", gorm.Expr("quantity - ?", amount))
	} else {
		res = tx.WithContext(ctx).Model(&model.Product{}).
			Where("id = ? AND quantity >= ?", ref.ProductID, amount).
			Update("quantity", gorm.Expr("quantity - ?", amount))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// Available 读当前余量，商品列表接口的 DB 兜底路径。
func (StockStore) Available(ctx context.Context, db *gorm.DB, ref StockRef) (int64, error) {
	if ref.VariantID != nil {
		var v model.ProductVariant
		if err := db.WithContext(ctx).Select("quantity").First(&v, *ref.VariantID).Error; err != nil {
			return 0, err
		}
		return v.Quantity, nil
	}
	var p model.Product
	if err := db.WithContext(ctx).Select("quantity").First(&p, ref.ProductID).Error; err != nil {
		return 0, err
	}
	return p.Quantity, nil
}
