package domain

import "time"

// Product — товар каталога. Для ядра корзины/заказов он read-only:
// каталогом владеет отдельный сервис (internal/service/catalog).
type Product struct {
	ID int64
	// Code — внешний артикул товара (печатается на этикетке).
	Code string
	Name string
	// Price — цена за единицу в целых CLP (у валюты нет дробной части).
	Price int64
	// Stock — доступный остаток; не может быть отрицательным.
	Stock int64
	Category string
	// Active управляет видимостью товара в витрине.
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты товара.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
