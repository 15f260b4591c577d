package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// OutboxRouter направляет outbox-сообщения в topic по типу агрегата:
// checkout-события — в TopicCheckoutEvents, остальные — в TopicOrderEvents.
type OutboxRouter struct {
	orders   domain.OutboxPublisher
	checkout domain.OutboxPublisher
}

// NewOutboxRouter создаёт маршрутизирующий паблишер поверх одного producer.
func NewOutboxRouter(producer *Producer) domain.OutboxPublisher {
	return &OutboxRouter{
		orders:   NewOutboxPublisher(producer, TopicOrderEvents),
		checkout: NewOutboxPublisher(producer, TopicCheckoutEvents),
	}
}

func (r *OutboxRouter) Publish(event domain.OutboxMessage) error {
	if event.AggregateType == domain.AggregateCheckout {
		return r.checkout.Publish(event)
	}
	return r.orders.Publish(event)
}

var _ domain.OutboxPublisher = (*OutboxRouter)(nil)
