// Package orders реализует жизненный цикл заказа: создание снимка,
// управляемые переходы статусов по направленному графу и флаг прочтения.
// Заказы append-only: позиции и суммы после создания не меняются.
package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/metrics"
)

// Engine управляет заказами поверх OrderRepository.
type Engine struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics

	now func() time.Time
}

// NewEngine создаёт движок заказов. timeline, outbox и metrics опциональны.
func NewEngine(
	orders domain.OrderRepository,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	m *metrics.CheckoutMetrics,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Engine{
		orders:   orders,
		timeline: timeline,
		outbox:   outbox,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput — данные для создания заказа. Позиции уже содержат
// замороженные цены; суммы пересчитываются и сверяются при создании.
type CreateInput struct {
	Customer     *domain.UserSnapshot
	Contact      domain.Contact
	Shipping     domain.ShippingInfo
	Items        []domain.OrderItem
	ShippingCost int64
}

// Create создаёт заказ в статусе confirmado с собственным ID формата
// PED-<unix_ms><4 случайные цифры>. Итоговые суммы вычисляются из позиций,
// снимок валидируется перед записью.
func (e *Engine) Create(in CreateInput) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	if in.ShippingCost < 0 {
		return domain.Order{}, domain.ErrShippingCostNegative
	}

	now := e.now()
	var subtotal int64
	items := make([]domain.OrderItem, len(in.Items))
	for i, item := range in.Items {
		item.Subtotal = item.Quantity * item.UnitPrice
		items[i] = item
		subtotal += item.Subtotal
	}

	order := domain.Order{
		ID:           e.generateID(now),
		Customer:     in.Customer,
		Contact:      in.Contact,
		Shipping:     in.Shipping,
		Items:        items,
		Subtotal:     subtotal,
		ShippingCost: in.ShippingCost,
		Total:        subtotal + in.ShippingCost,
		Status:       domain.OrderStatusConfirmed,
		Read:         false,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	order.Shipping.Cost = in.ShippingCost
	order.Shipping.Free = in.ShippingCost == 0

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}
	if err := e.orders.Create(order); err != nil {
		return domain.Order{}, err
	}

	e.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.Total,
		"items":    len(order.Items),
	}).Info("order created")

	e.emitEvent(order, domain.EventOrderCreated, domain.TimelineOrderCreated, map[string]interface{}{
		"total":  order.Total,
		"status": string(order.Status),
		"ts":     now.Format(time.RFC3339Nano),
	})
	if e.metrics != nil {
		e.metrics.RecordOrderCreated()
	}
	return order, nil
}

// Get возвращает заказ по ID.
func (e *Engine) Get(id string) (domain.Order, error) {
	return e.orders.Get(id)
}

// ListAll возвращает все заказы, новые первыми.
func (e *Engine) ListAll() ([]domain.Order, error) {
	return e.orders.List()
}

// ListByUser возвращает заказы пользователя по точному совпадению email.
func (e *Engine) ListByUser(email string) ([]domain.Order, error) {
	return e.orders.ListByEmail(email)
}

// Timeline возвращает события жизненного цикла заказа в хронологическом
// порядке.
func (e *Engine) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if e.timeline == nil {
		return nil, nil
	}
	return e.timeline.List(orderID)
}

// TransitionStatus переводит заказ в новый статус. Разрешены только рёбра
// графа переходов; терминальные статусы поглощающие. Конфликты версий
// разрешаются перечитыванием и повтором.
func (e *Engine) TransitionStatus(orderID string, next domain.OrderStatus, reason string) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := e.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if order.Status == next {
			return order, nil
		}
		if !order.Status.CanTransitionTo(next) {
			return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
		}

		order.Status = next
		order.UpdatedAt = e.now()
		prevVersion := order.Version

		if err := e.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				e.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")
			return domain.Order{}, err
		}

		order.Version = prevVersion + 1
		e.emitEvent(order, domain.EventOrderStatusChanged, domain.TimelineOrderStatusChanged, map[string]interface{}{
			"status": string(next),
			"reason": reason,
			"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
		})
		if e.metrics != nil {
			e.metrics.RecordStatusTransition(string(next))
		}
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// MarkRead помечает перечисленные заказы прочитанными. Неизвестные ID
// молча пропускаются; уже прочитанные заказы не перезаписываются.
func (e *Engine) MarkRead(orderIDs []string) (int, error) {
	marked := 0
	for _, id := range orderIDs {
		order, err := e.orders.Get(id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return marked, err
		}
		if order.Read {
			continue
		}
		order.Read = true
		order.UpdatedAt = e.now()
		if err := e.orders.Save(order); err != nil {
			return marked, err
		}
		marked++
		if e.timeline != nil {
			event := domain.TimelineEvent{
				OrderID:  id,
				Type:     domain.TimelineOrderMarkedRead,
				Occurred: order.UpdatedAt,
			}
			if err := e.timeline.Append(event); err != nil {
				e.logger.WithError(err).WithField("order_id", id).Warn("append timeline event failed")
			}
		}
	}
	return marked, nil
}

// UnreadCount возвращает число непрочитанных заказов.
func (e *Engine) UnreadCount() (int, error) {
	all, err := e.orders.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, o := range all {
		if !o.Read {
			count++
		}
	}
	return count, nil
}

func (e *Engine) generateID(now time.Time) string {
	suffix := rand.Intn(10000)
	return fmt.Sprintf("PED-%d%04d", now.UnixMilli(), suffix)
}

func (e *Engine) emitEvent(order domain.Order, eventType, timelineType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID

	if e.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("marshal event failed")
		} else {
			msg := domain.OutboxMessage{
				AggregateType: domain.AggregateOrder,
				AggregateID:   order.ID,
				EventType:     eventType,
				Payload:       data,
			}
			if _, err := e.outbox.Enqueue(msg); err != nil {
				e.logger.WithError(err).WithFields(log.Fields{
					"order_id": order.ID,
					"event":    eventType,
				}).Error("enqueue event failed")
			} else if e.metrics != nil {
				e.metrics.RecordOutboxEvent()
			}
		}
	}

	if e.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     timelineType,
			Reason:   reason,
			Occurred: order.UpdatedAt,
		}
		if err := e.timeline.Append(event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}
}
