package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/service/shipping"
)

// ShippingHandler обслуживает политику доставки и котировки.
type ShippingHandler struct {
	policy *shipping.Policy
}

// NewShippingHandler создаёт обработчик доставки.
func NewShippingHandler(policy *shipping.Policy) *ShippingHandler {
	return &ShippingHandler{policy: policy}
}

type shippingConfigResponse struct {
	BaseCost      int64     `json:"base_cost"`
	FreeThreshold int64     `json:"free_threshold"`
	FreeEnabled   bool      `json:"free_enabled"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type shippingConfigRequest struct {
	BaseCost      int64 `json:"base_cost"`
	FreeThreshold int64 `json:"free_threshold"`
	FreeEnabled   bool  `json:"free_enabled"`
}

type quoteResponse struct {
	Subtotal int64 `json:"subtotal"`
	Cost     int64 `json:"cost"`
	Free     bool  `json:"free"`
}

// GetConfig возвращает активную политику доставки.
func (h *ShippingHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.policy.GetConfig()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shippingConfigResponse{
		BaseCost:      cfg.BaseCost,
		FreeThreshold: cfg.FreeThreshold,
		FreeEnabled:   cfg.FreeEnabled,
		UpdatedAt:     cfg.UpdatedAt,
	})
}

// SetConfig обновляет политику доставки (admin).
func (h *ShippingHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req shippingConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cfg := domain.ShippingConfig{
		BaseCost:      req.BaseCost,
		FreeThreshold: req.FreeThreshold,
		FreeEnabled:   req.FreeEnabled,
	}
	if err := h.policy.SetConfig(cfg); err != nil {
		respondDomainError(w, err)
		return
	}
	h.GetConfig(w, r)
}

// Quote возвращает котировку доставки для переданной суммы.
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	subtotal, err := strconv.ParseInt(r.URL.Query().Get("subtotal"), 10, 64)
	if err != nil || subtotal < 0 {
		respondError(w, http.StatusBadRequest, "invalid_subtotal", "subtotal must be a non-negative integer")
		return
	}

	quote, err := h.policy.ComputeCost(subtotal)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quoteResponse{
		Subtotal: quote.Subtotal,
		Cost:     quote.Cost,
		Free:     quote.Free,
	})
}
