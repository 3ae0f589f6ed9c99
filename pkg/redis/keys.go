package redis

import "fmt"

// ProductStockKey 统一约定商品本体库存缓存键名。
func ProductStockKey(productID uint) string {
	return fmt.Sprintf("storefront:stock:product:%d", productID)
}

// VariantStockKey 规格库存缓存键名。
func VariantStockKey(variantID uint) string {
	return fmt.Sprintf("storefront:stock:variant:%d", variantID)
}

// ProcessedEventKey 标记某个网关支付流水号是否已完成对账。
func ProcessedEventKey(gatewayPaymentID string) string {
	return fmt.Sprintf("storefront:webhook:processed:%s", gatewayPaymentID)
}

// ConfirmationSentKey 标记某笔支付的确认邮件是否已发出。
func ConfirmationSentKey(gatewayPaymentID string) string {
	return fmt.Sprintf("storefront:confirmation:sent:%s", gatewayPaymentID)
}
