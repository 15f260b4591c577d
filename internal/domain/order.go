package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в витрине.
// Строковые значения — испанские, унаследованы от исходного фронтенда
// и сохраняются как wire-формат.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ только что оформлен покупателем.
	OrderStatusConfirmed OrderStatus = "confirmado"
	// OrderStatusPreparing — заказ собирается на складе.
	OrderStatusPreparing OrderStatus = "en-preparacion"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "enviado"
	// OrderStatusDelivered — заказ вручён покупателю. Терминальный статус.
	OrderStatusDelivered OrderStatus = "entregado"
	// OrderStatusCanceled — заказ отменён до вручения. Терминальный статус.
	OrderStatusCanceled OrderStatus = "cancelado"
)

// statusTransitions — направленный граф допустимых переходов.
// entregado и cancelado — поглощающие состояния: из них переходов нет.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCanceled},
	OrderStatusPreparing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered: {},
	OrderStatusCanceled:  {},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус поглощающим.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanTransitionTo проверяет переход по графу статусов.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Contact — замороженный снапшот контактных данных покупателя.
// Валидация формата email/телефона — ответственность вызывающего слоя.
type Contact struct {
	Name    string
	Surname string
	Email   string
	Phone   string
}

// ShippingInfo — замороженный снапшот адреса и стоимости доставки.
type ShippingInfo struct {
	Address    string
	City       string
	Region     string
	PostalCode string
	Notes      string
	// Cost — стоимость доставки, зафиксированная в момент оформления.
	// Последующие правки конфигурации доставки на неё не влияют.
	Cost int64
	Free bool
}

// OrderItem — снапшот позиции корзины, скопированный в заказ при создании.
// Неизменяем: изменения каталога задним числом заказ не трогают.
type OrderItem struct {
	ProductID int64
	Name      string
	UnitPrice int64
	Quantity  int64
	Subtotal  int64
}

// Order — append-only запись оформленного заказа. Создаётся один раз,
// никогда не удаляется; мутируется только переходом статуса и флагом Read.
type Order struct {
	ID string
	// Customer — опциональный снапшот авторизованного пользователя.
	Customer *UserSnapshot
	Contact  Contact
	Shipping ShippingInfo
	Items    []OrderItem
	Subtotal int64
	// ShippingCost дублирует Shipping.Cost на верхнем уровне для сверки Total.
	ShippingCost int64
	Total        int64
	Status       OrderStatus
	// Read — админский флаг «прочитано».
	Read bool
	// Version — счётчик optimistic locking для репозиториев.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет денежные инварианты заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	var calc int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if item.UnitPrice < 0 {
			errs = append(errs, ErrPriceNegative)
		}
		if item.Subtotal != item.Quantity*item.UnitPrice {
			errs = append(errs, ErrSubtotalMismatch)
		}
		calc += item.Subtotal
	}
	if calc != o.Subtotal {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if o.ShippingCost < 0 {
		errs = append(errs, ErrShippingCostNegative)
	}
	if o.Total != o.Subtotal+o.ShippingCost {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
