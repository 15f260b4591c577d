package domain

import "time"

// ShippingConfig — единственный админский документ с политикой доставки.
// Не версионируется: правка действует на все последующие расчёты сразу,
// но никогда задним числом — стоимость уже созданных заказов заморожена.
type ShippingConfig struct {
	// BaseCost — базовая стоимость доставки в CLP.
	BaseCost int64
	// FreeThreshold — порог бесплатной доставки по subtotal корзины.
	FreeThreshold int64
	// FreeEnabled включает бесплатную доставку от порога.
	FreeEnabled bool
	UpdatedAt   time.Time
}

// DefaultShippingConfig — значения по умолчанию для свежей установки.
func DefaultShippingConfig() ShippingConfig {
	return ShippingConfig{
		BaseCost:      3990,
		FreeThreshold: 30000,
		FreeEnabled:   true,
	}
}
