// Package checkout оркестрирует оформление заказа: снимок корзины,
// свежая котировка доставки, создание заказа, списание остатков с
// компенсацией при частичном отказе и очистка корзины.
package checkout

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/cart"
	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/metrics"
	"github.com/cmoralesdiaz/almacen/internal/service/orders"
	"github.com/cmoralesdiaz/almacen/internal/service/shipping"
)

// Orchestrator проводит checkout-сагу. Каждый шаг либо завершается, либо
// компенсируется: заказ не остаётся подтверждённым при недосписанном стоке.
type Orchestrator struct {
	carts    *cart.Manager
	shipping *shipping.Policy
	orders   *orders.Engine
	stock    domain.StockAdjuster
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
}

// NewOrchestrator создаёт оркестратор. timeline, outbox и metrics опциональны.
func NewOrchestrator(
	carts *cart.Manager,
	shippingPolicy *shipping.Policy,
	ordersEngine *orders.Engine,
	stock domain.StockAdjuster,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	m *metrics.CheckoutMetrics,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Orchestrator{
		carts:    carts,
		shipping: shippingPolicy,
		orders:   ordersEngine,
		stock:    stock,
		timeline: timeline,
		outbox:   outbox,
		logger:   logger,
		metrics:  m,
	}
}

// Input — данные оформления заказа.
type Input struct {
	SessionID string
	Customer  *domain.UserSnapshot
	Contact   domain.Contact
	Shipping  domain.ShippingInfo
}

// Checkout выполняет оформление целиком и возвращает созданный заказ.
// При отказе списания остатков уже списанные позиции возвращаются,
// заказ отменяется и возвращается исходная ошибка.
func (o *Orchestrator) Checkout(in Input) (domain.Order, error) {
	started := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}

	order, err := o.run(in)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed()
		}
		return domain.Order{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted()
		o.metrics.RecordCheckoutDuration(time.Since(started))
	}
	return order, nil
}

func (o *Orchestrator) run(in Input) (domain.Order, error) {
	snapshot, err := o.carts.Get(in.SessionID)
	if err != nil {
		return domain.Order{}, err
	}
	if snapshot.IsEmpty() {
		return domain.Order{}, domain.ErrCartEmpty
	}

	quote, err := o.shipping.ComputeCost(snapshot.Total)
	if err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, len(snapshot.Lines))
	for i, line := range snapshot.Lines {
		items[i] = domain.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		}
	}

	order, err := o.orders.Create(orders.CreateInput{
		Customer:     in.Customer,
		Contact:      in.Contact,
		Shipping:     in.Shipping,
		Items:        items,
		ShippingCost: quote.Cost,
	})
	if err != nil {
		return domain.Order{}, err
	}

	if err := o.decrementStock(order); err != nil {
		o.failCheckout(order, err)
		return domain.Order{}, err
	}

	if err := o.carts.Clear(in.SessionID); err != nil {
		// Заказ уже создан и сток списан; висячая корзина — меньшее зло.
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"session_id": in.SessionID,
		}).Warn("failed to clear cart after checkout")
	}

	o.emitCheckoutEvent(order, domain.EventCheckoutCompleted, "")
	o.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.Total,
		"items":    len(order.Items),
	}).Info("checkout completed")
	return order, nil
}

// decrementStock списывает остатки по позициям заказа. При отказе на
// i-й позиции уже списанные 0..i-1 возвращаются обратно.
func (o *Orchestrator) decrementStock(order domain.Order) error {
	for i, item := range order.Items {
		if _, err := o.stock.AdjustStock(item.ProductID, -item.Quantity); err != nil {
			o.compensateStock(order, order.Items[:i])
			return fmt.Errorf("decrement stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func (o *Orchestrator) compensateStock(order domain.Order, decremented []domain.OrderItem) {
	for _, item := range decremented {
		if _, err := o.stock.AdjustStock(item.ProductID, item.Quantity); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
				"qty":        item.Quantity,
			}).Error("stock compensation failed")
			continue
		}
		if o.metrics != nil {
			o.metrics.RecordStockCompensation()
		}
	}
}

// failCheckout отменяет заказ после неудачного списания остатков и
// фиксирует причину в timeline.
func (o *Orchestrator) failCheckout(order domain.Order, rootErr error) {
	reason := rootErr.Error()
	if _, err := o.orders.TransitionStatus(order.ID, domain.OrderStatusCanceled, reason); err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("failed to cancel order after checkout failure")
	}

	if o.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineCheckoutFailed,
			Reason:   reason,
			Occurred: time.Now().UTC(),
		}
		if err := o.timeline.Append(event); err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Warn("append timeline event failed")
		} else if o.metrics != nil {
			o.metrics.RecordTimelineEvent()
		}
	}

	o.emitCheckoutEvent(order, domain.EventCheckoutFailed, reason)
	o.logger.WithError(rootErr).WithField("order_id", order.ID).Warn("checkout failed, order cancelled")
}

func (o *Orchestrator) emitCheckoutEvent(order domain.Order, eventType, reason string) {
	if o.outbox == nil {
		return
	}
	payload := map[string]interface{}{
		"order_id": order.ID,
		"total":    order.Total,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateCheckout,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}
