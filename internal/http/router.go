package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/cart"
	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/service/checkout"
	"github.com/cmoralesdiaz/almacen/internal/service/orders"
	"github.com/cmoralesdiaz/almacen/internal/service/shipping"
)

// RouterDeps — зависимости REST API.
type RouterDeps struct {
	Carts        *cart.Manager
	Catalog      domain.ProductCatalog
	Shipping     *shipping.Policy
	Orders       *orders.Engine
	Checkout     *checkout.Orchestrator
	Idempotency  domain.IdempotencyRepository
	Users        domain.UserRepository
	Logger       *log.Entry
	ReadyChecker func() error
}

// NewRouter собирает chi-роутер витрины.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	cartHandler := NewCartHandler(deps.Carts)
	productsHandler := NewProductsHandler(deps.Catalog)
	shippingHandler := NewShippingHandler(deps.Shipping)
	ordersHandler := NewOrdersHandler(deps.Orders)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Idempotency, deps.Users, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.ReadyChecker != nil {
			if err := deps.ReadyChecker(); err != nil {
				respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productsHandler.List)
			r.Get("/{id}", productsHandler.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Post("/checkout", checkoutHandler.Checkout)

		r.Route("/shipping", func(r chi.Router) {
			r.Get("/", shippingHandler.GetConfig)
			r.Get("/quote", shippingHandler.Quote)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.List)
			r.Get("/{id}", ordersHandler.Get)
			r.Get("/{id}/timeline", ordersHandler.Timeline)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Put("/shipping", shippingHandler.SetConfig)
			r.Post("/orders/{id}/status", ordersHandler.Transition)
			r.Post("/orders/read", ordersHandler.MarkRead)
			r.Get("/orders/unread-count", ordersHandler.UnreadCount)
		})
	})

	return r
}
