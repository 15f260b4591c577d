package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// ProductsHandler обслуживает витрину каталога.
type ProductsHandler struct {
	catalog domain.ProductCatalog
}

// NewProductsHandler создаёт обработчик каталога.
func NewProductsHandler(catalog domain.ProductCatalog) *ProductsHandler {
	return &ProductsHandler{catalog: catalog}
}

type productResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int64     `json:"stock"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Category:  p.Category,
		Active:    p.Active,
		UpdatedAt: p.UpdatedAt,
	}
}

// List возвращает активные товары витрины.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.GetAll()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	respondJSON(w, http.StatusOK, out)
}

// Get возвращает товар по ID.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}

	product, err := h.catalog.GetByID(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(product))
}
