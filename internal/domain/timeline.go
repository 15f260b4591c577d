package domain

import "time"

// Типы событий жизненного цикла заказа.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
	TimelineOrderMarkedRead    = "OrderMarkedRead"
	TimelineCheckoutFailed     = "CheckoutFailed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
