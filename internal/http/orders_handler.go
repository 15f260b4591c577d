package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/service/orders"
)

// OrdersHandler обслуживает просмотр и администрирование заказов.
type OrdersHandler struct {
	engine *orders.Engine
}

// NewOrdersHandler создаёт обработчик заказов.
func NewOrdersHandler(engine *orders.Engine) *OrdersHandler {
	return &OrdersHandler{engine: engine}
}

type orderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	Contact      contactPayload      `json:"contact"`
	Shipping     shippingPayload     `json:"shipping"`
	Items        []orderItemResponse `json:"items"`
	Subtotal     int64               `json:"subtotal"`
	ShippingCost int64               `json:"shipping_cost"`
	Total        int64               `json:"total"`
	Status       string              `json:"status"`
	Read         bool                `json:"read"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type contactPayload struct {
	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

type shippingPayload struct {
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Cost       int64  `json:"cost"`
	Free       bool   `json:"free"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}
	return orderResponse{
		ID: o.ID,
		Contact: contactPayload{
			Name:    o.Contact.Name,
			Surname: o.Contact.Surname,
			Email:   o.Contact.Email,
			Phone:   o.Contact.Phone,
		},
		Shipping: shippingPayload{
			Address:    o.Shipping.Address,
			City:       o.Shipping.City,
			Region:     o.Shipping.Region,
			PostalCode: o.Shipping.PostalCode,
			Notes:      o.Shipping.Notes,
			Cost:       o.Shipping.Cost,
			Free:       o.Shipping.Free,
		},
		Items:        items,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		Status:       string(o.Status),
		Read:         o.Read,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// List возвращает все заказы (admin) либо, с параметром email, заказы
// одного покупателя. Сопоставление email строгое.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		list []domain.Order
		err  error
	)
	if email := r.URL.Query().Get("email"); email != "" {
		list, err = h.engine.ListByUser(email)
	} else {
		list, err = h.engine.ListAll()
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := make([]orderResponse, len(list))
	for i, o := range list {
		out[i] = toOrderResponse(o)
	}
	respondJSON(w, http.StatusOK, out)
}

// Get возвращает заказ по ID.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// Timeline возвращает события жизненного цикла заказа.
func (h *OrdersHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, err := h.engine.Get(orderID); err != nil {
		respondDomainError(w, err)
		return
	}

	events, err := h.engine.Timeline(orderID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	out := make([]timelineEventResponse, len(events))
	for i, ev := range events {
		out[i] = timelineEventResponse{
			Type:     ev.Type,
			Reason:   ev.Reason,
			Occurred: ev.Occurred,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Transition переводит заказ в новый статус (admin).
func (h *OrdersHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.engine.TransitionStatus(chi.URLParam(r, "id"), domain.OrderStatus(req.Status), req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

type markReadRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type markReadResponse struct {
	Marked int `json:"marked"`
}

// MarkRead помечает заказы прочитанными (admin). Неизвестные ID
// игнорируются.
func (h *OrdersHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	marked, err := h.engine.MarkRead(req.OrderIDs)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, markReadResponse{Marked: marked})
}

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

// UnreadCount возвращает число непрочитанных заказов (admin).
func (h *OrdersHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.UnreadCount()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, unreadCountResponse{Unread: count})
}
