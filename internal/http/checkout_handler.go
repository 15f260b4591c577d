package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/service/checkout"
)

// HeaderIdempotencyKey защищает checkout от двойного сабмита: повтор с
// тем же ключом получает сохранённый ответ вместо второго заказа.
const HeaderIdempotencyKey = "Idempotency-Key"

const idempotencyTTL = 24 * time.Hour

// CheckoutHandler обслуживает оформление заказа.
type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	idempotency  domain.IdempotencyRepository
	users        domain.UserRepository
	logger       *log.Entry
}

// NewCheckoutHandler создаёт обработчик checkout. idempotency и users опциональны.
func NewCheckoutHandler(orchestrator *checkout.Orchestrator, idempotency domain.IdempotencyRepository, users domain.UserRepository, logger *log.Entry) *CheckoutHandler {
	if logger == nil {
		logger = log.New().WithField("component", "checkout-http")
	}
	return &CheckoutHandler{
		orchestrator: orchestrator,
		idempotency:  idempotency,
		users:        users,
		logger:       logger,
	}
}

type checkoutRequest struct {
	Contact struct {
		Name    string `json:"name"`
		Surname string `json:"surname"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
	} `json:"contact"`
	Shipping struct {
		Address    string `json:"address"`
		City       string `json:"city"`
		Region     string `json:"region"`
		PostalCode string `json:"postal_code"`
		Notes      string `json:"notes"`
	} `json:"shipping"`
}

// Checkout оформляет заказ из корзины текущей сессии.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key != "" && h.idempotency != nil {
		requestHash := hashBody(body)
		if replayed := h.claimIdempotencyKey(w, key, requestHash); replayed {
			return
		}
		h.checkoutWithRecording(w, r, body, key)
		return
	}

	status, payload := h.process(r, body)
	respondJSON(w, status, payload)
}

// claimIdempotencyKey пытается занять ключ. Возвращает true, если ответ
// уже отправлен (повтор или конфликт).
func (h *CheckoutHandler) claimIdempotencyKey(w http.ResponseWriter, key, requestHash string) bool {
	_, err := h.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		respondDomainError(w, err)
		return true
	}
	if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		record, getErr := h.idempotency.Get(key)
		if getErr != nil {
			respondDomainError(w, getErr)
			return true
		}
		if record.Status == domain.IdempotencyStatusProcessing {
			respondError(w, http.StatusConflict, "request_in_flight", "checkout with this key is still processing")
			return true
		}
		// done или failed: повторяем сохранённый ответ байт в байт.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		if _, writeErr := w.Write(record.ResponseBody); writeErr != nil {
			h.logger.WithError(writeErr).Warn("failed to replay idempotent response")
		}
		return true
	}

	respondDomainError(w, err)
	return true
}

func (h *CheckoutHandler) checkoutWithRecording(w http.ResponseWriter, r *http.Request, body []byte, key string) {
	status, payload := h.process(r, body)

	encoded, err := json.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal checkout response")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if status >= 200 && status < 300 {
		if markErr := h.idempotency.MarkDone(key, encoded, status); markErr != nil {
			h.logger.WithError(markErr).WithField("key", key).Warn("failed to mark idempotency key done")
		}
	} else {
		if markErr := h.idempotency.MarkFailed(key, encoded, status); markErr != nil {
			h.logger.WithError(markErr).WithField("key", key).Warn("failed to mark idempotency key failed")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(encoded); err != nil {
		h.logger.WithError(err).Warn("failed to write checkout response")
	}
}

// process выполняет checkout и возвращает статус с телом ответа, не
// записывая их в ResponseWriter.
func (h *CheckoutHandler) process(r *http.Request, body []byte) (int, interface{}) {
	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "invalid_request"}
	}
	if req.Contact.Name == "" || req.Contact.Email == "" {
		return http.StatusBadRequest, ErrorResponse{Error: "contact name and email are required", Code: "invalid_contact"}
	}
	if req.Shipping.Address == "" {
		return http.StatusBadRequest, ErrorResponse{Error: "shipping address is required", Code: "invalid_shipping"}
	}

	order, err := h.orchestrator.Checkout(checkout.Input{
		SessionID: sessionIDFromContext(r.Context()),
		Customer:  h.resolveCustomer(req.Contact.Email),
		Contact: domain.Contact{
			Name:    req.Contact.Name,
			Surname: req.Contact.Surname,
			Email:   req.Contact.Email,
			Phone:   req.Contact.Phone,
		},
		Shipping: domain.ShippingInfo{
			Address:    req.Shipping.Address,
			City:       req.Shipping.City,
			Region:     req.Shipping.Region,
			PostalCode: req.Shipping.PostalCode,
			Notes:      req.Shipping.Notes,
		},
	})
	if err != nil {
		return checkoutErrorStatus(err), checkoutErrorPayload(err)
	}

	return http.StatusCreated, toOrderResponse(order)
}

func checkoutErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStockExceeded):
		return http.StatusConflict
	case domain.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func checkoutErrorPayload(err error) ErrorResponse {
	switch {
	case errors.Is(err, domain.ErrCartEmpty):
		return ErrorResponse{Error: err.Error(), Code: "cart_empty"}
	case errors.Is(err, domain.ErrStockExceeded):
		return ErrorResponse{Error: err.Error(), Code: "stock_exceeded"}
	case domain.IsNotFound(err):
		return ErrorResponse{Error: err.Error(), Code: "not_found"}
	default:
		return ErrorResponse{Error: "internal server error", Code: "internal_error"}
	}
}

// resolveCustomer ищет зарегистрированного пользователя по email контакта.
// Гостевой заказ остаётся без снапшота.
func (h *CheckoutHandler) resolveCustomer(email string) *domain.UserSnapshot {
	if h.users == nil {
		return nil
	}
	user, err := h.users.GetByEmail(email)
	if err != nil {
		if !domain.IsNotFound(err) {
			h.logger.WithError(err).WithField("email", email).Warn("failed to resolve customer")
		}
		return nil
	}
	return user.Snapshot()
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}
