package domain

import "errors"

var (
	// ErrQuantityInvalid — количество должно быть больше нуля.
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// ErrStockExceeded — запрошенное количество превышает остаток товара.
	ErrStockExceeded = errors.New("requested quantity exceeds product stock")
	// ErrStockNegative — остаток товара не может быть отрицательным.
	ErrStockNegative = errors.New("product stock must be non-negative")
	// ErrPriceNegative — цена не может быть отрицательной.
	ErrPriceNegative = errors.New("price must be non-negative")
	// ErrProductNameRequired — у товара должно быть название.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// Ошибка расхождения subtotal позиции с qty * unitPrice.
	ErrSubtotalMismatch = errors.New("subtotal does not match quantity * unit price")
	// Ошибка расхождения total корзины с суммой позиций.
	ErrCartTotalMismatch = errors.New("cart total does not match sum of line subtotals")
	// Ошибка расхождения счётчика позиций корзины.
	ErrCartCountMismatch = errors.New("cart item count does not match lines")
	// Ошибка дублирующейся позиции: на один товар — не более одной строки.
	ErrDuplicateCartLine = errors.New("duplicate cart line for product")
	// ErrCartEmpty — оформление пустой корзины невозможно.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной стоимости доставки.
	ErrShippingCostNegative = errors.New("shipping cost must be non-negative")
	// Ошибка расхождения total заказа с subtotal + shippingCost.
	ErrTotalMismatch = errors.New("order total does not match subtotal + shipping cost")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidStatus — неизвестное значение статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition — переход запрещён графом статусов.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key недопустим.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса недопустим.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — записи с таким ключом нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound объединяет проверки «не найдено» для товаров, заказов и пользователей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
