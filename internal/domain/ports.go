package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает все заказы, свежие — первыми.
	List() ([]Order, error)
	// ListByEmail возвращает заказы с точным (case-sensitive) совпадением
	// email из замороженного контакта.
	ListByEmail(email string) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// ProductRepository описывает хранилище каталога.
type ProductRepository interface {
	List() ([]Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(id int64) (Product, error)
	// Create сохраняет новый товар, выдавая ID из счётчика коллекции.
	Create(product Product) (Product, error)
	// Save перезаписывает существующий товар.
	Save(product Product) error
}

// CartRepository персистит корзины по идентификатору сессии.
type CartRepository interface {
	// Load возвращает корзину сессии; для новой сессии — пустую корзину.
	Load(sessionID string) (*Cart, error)
	// Save сохраняет корзину после мутации.
	Save(cart *Cart) error
	// Delete удаляет корзину сессии (logout / успешное оформление).
	Delete(sessionID string) error
}

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	List() ([]User, error)
	// GetByEmail возвращает пользователя или ErrUserNotFound.
	GetByEmail(email string) (User, error)
	Create(user User) (User, error)
}

// ShippingConfigRepository хранит единственный документ политики доставки.
type ShippingConfigRepository interface {
	// Get читает конфигурацию; для пустого хранилища — значения по умолчанию.
	Get() (ShippingConfig, error)
	Set(cfg ShippingConfig) error
}

// ProductCatalog — узкий read-интерфейс каталога, через который ядро
// корзины видит цены и остатки.
type ProductCatalog interface {
	GetAll() ([]Product, error)
	GetByID(id int64) (Product, error)
}

// StockAdjuster корректирует остатки после создания заказа. Отдельный от
// создания заказа шаг: оба шага связывает компенсирующая сага checkout.
type StockAdjuster interface {
	// AdjustStock прибавляет delta к остатку (delta < 0 — списание);
	// уход в минус запрещён и возвращает ErrStockExceeded.
	AdjustStock(id int64, delta int64) (Product, error)
}

// SessionReader отдаёт снапшот текущего пользователя сессии (или nil).
type SessionReader interface {
	CurrentUser(sessionID string) (*UserSnapshot, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
