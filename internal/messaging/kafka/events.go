// Package kafka — транспорт доменных событий витрины: producer с
// идемпотентной записью, consumer-group с retry/DLQ и конверт, в котором
// outbox-воркер публикует события.
package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// EventType определяет тип события в topic'ах витрины.
type EventType string

const (
	EventTypeOrderCreated       EventType = EventType(domain.EventOrderCreated)
	EventTypeOrderStatusChanged EventType = EventType(domain.EventOrderStatusChanged)

	EventTypeCheckoutCompleted EventType = EventType(domain.EventCheckoutCompleted)
	EventTypeCheckoutFailed    EventType = EventType(domain.EventCheckoutFailed)
)

// Topic'и витрины. DLQ общая для заказов и checkout.
const (
	TopicOrderEvents     = "almacen.order.events"
	TopicCheckoutEvents  = "almacen.checkout.events"
	TopicDeadLetterQueue = "almacen.dlq"
)

// Заголовки retry-механики consumer'а.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — конверт, в котором события уходят в Kafka: метаданные
// outbox-записи плюс исходный payload без изменений.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ParseEnvelope разбирает конверт из значения Kafka-сообщения.
// Конверт отличается от голого события обязательным полем id.
func ParseEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.ID == "" || env.EventType == "" {
		return Envelope{}, errors.New("event envelope must carry id and event_type")
	}
	return env, nil
}

// OrderEvent — событие заказа в том виде, в котором его видят подписчики.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CheckoutEvent — событие оформления заказа.
type CheckoutEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Total     int64                  `json:"total"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт событие заказа с текущей меткой времени.
func NewOrderEvent(eventType EventType, orderID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewCheckoutEvent создаёт событие оформления с текущей меткой времени.
func NewCheckoutEvent(eventType EventType, orderID string, total int64, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		OrderID:   orderID,
		Total:     total,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// OrderEventFromEnvelope разворачивает конверт в OrderEvent. Поля,
// которых нет в payload, остаются пустыми.
func OrderEventFromEnvelope(env Envelope) (*OrderEvent, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal order event payload: %w", err)
		}
	}

	event := NewOrderEvent(EventType(env.EventType), env.AggregateID, payload.Status, nil)
	if !env.PublishedAt.IsZero() {
		event.Timestamp = env.PublishedAt
	}
	return event, nil
}

// CheckoutEventFromEnvelope разворачивает конверт в CheckoutEvent.
func CheckoutEventFromEnvelope(env Envelope) (*CheckoutEvent, error) {
	var payload struct {
		Total  int64  `json:"total"`
		Reason string `json:"reason"`
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal checkout event payload: %w", err)
		}
	}

	var metadata map[string]interface{}
	if payload.Reason != "" {
		metadata = map[string]interface{}{"reason": payload.Reason}
	}

	event := NewCheckoutEvent(EventType(env.EventType), env.AggregateID, payload.Total, metadata)
	if !env.PublishedAt.IsZero() {
		event.Timestamp = env.PublishedAt
	}
	return event, nil
}
