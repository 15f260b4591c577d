package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmoralesdiaz/almacen/internal/cart"
	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// CartHandler обслуживает корзину текущей сессии.
type CartHandler struct {
	carts *cart.Manager
}

// NewCartHandler создаёт обработчик корзины.
func NewCartHandler(carts *cart.Manager) *CartHandler {
	return &CartHandler{carts: carts}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type cartLineResponse struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int64     `json:"quantity"`
	Subtotal  int64     `json:"subtotal"`
	AddedAt   time.Time `json:"added_at"`
}

type cartResponse struct {
	SessionID string             `json:"session_id"`
	Lines     []cartLineResponse `json:"lines"`
	Total     int64              `json:"total"`
	ItemCount int64              `json:"item_count"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toCartResponse(c *domain.Cart) cartResponse {
	lines := make([]cartLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal,
			AddedAt:   l.AddedAt,
		}
	}
	return cartResponse{
		SessionID: c.SessionID,
		Lines:     lines,
		Total:     c.Total,
		ItemCount: c.ItemCount,
		UpdatedAt: c.UpdatedAt,
	}
}

// GetCart возвращает корзину текущей сессии.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())
	c, err := h.carts.Get(sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// AddItem добавляет товар в корзину.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	c, err := h.carts.AddItem(sessionID, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartResponse(c))
}

// UpdateQuantity перезаписывает количество позиции; ноль удаляет её.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateQuantity(sessionID, productID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// RemoveItem убирает позицию из корзины.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	c, err := h.carts.RemoveItem(sessionID, productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// ClearCart опустошает корзину.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())
	if err := h.carts.Clear(sessionID); err != nil {
		respondDomainError(w, err)
		return
	}
	c, err := h.carts.Get(sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}
