// Package cart управляет агрегатом корзины на протяжении сессии:
// регидрирует его из document store при первом обращении и персистит
// после каждой мутации.
package cart

import (
	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/metrics"
)

// Manager — явно владеемая обёртка над корзинами сессий; не синглтон.
// Создаётся при старте приложения и внедряется в слои, которым нужна
// корзина. Дисциплина — один writer на сессию.
type Manager struct {
	repo    domain.CartRepository
	catalog domain.ProductCatalog
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
}

// NewManager создаёт менеджер корзин.
func NewManager(repo domain.CartRepository, catalog domain.ProductCatalog, logger *log.Entry, m *metrics.CheckoutMetrics) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Manager{repo: repo, catalog: catalog, logger: logger, metrics: m}
}

// Get регидрирует корзину сессии (пустую — для новой сессии).
func (m *Manager) Get(sessionID string) (*domain.Cart, error) {
	return m.repo.Load(sessionID)
}

// AddItem добавляет товар по ID, сверяясь с текущим остатком каталога.
// Отказ по стоку не оставляет частичных мутаций и не персистится.
func (m *Manager) AddItem(sessionID string, productID, qty int64) (*domain.Cart, error) {
	product, err := m.catalog.GetByID(productID)
	if err != nil {
		m.recordCartOp("add", "not_found")
		return nil, err
	}

	cart, err := m.repo.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if err := cart.AddItem(product, qty); err != nil {
		if err == domain.ErrStockExceeded {
			m.recordCartOp("add", "stock_exceeded")
			m.logger.WithFields(log.Fields{
				"session_id": sessionID,
				"product_id": productID,
				"qty":        qty,
				"stock":      product.Stock,
			}).Info("add to cart rejected by stock")
		}
		return nil, err
	}
	if err := m.repo.Save(cart); err != nil {
		return nil, err
	}
	m.recordCartOp("add", "ok")
	return cart, nil
}

// UpdateQuantity перезаписывает количество позиции; qty <= 0 удаляет её.
func (m *Manager) UpdateQuantity(sessionID string, productID, qty int64) (*domain.Cart, error) {
	cart, err := m.repo.Load(sessionID)
	if err != nil {
		return nil, err
	}
	cart.UpdateQuantity(productID, qty)
	if err := m.repo.Save(cart); err != nil {
		return nil, err
	}
	m.recordCartOp("update", "ok")
	return cart, nil
}

// RemoveItem убирает позицию из корзины.
func (m *Manager) RemoveItem(sessionID string, productID int64) (*domain.Cart, error) {
	cart, err := m.repo.Load(sessionID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	if err := m.repo.Save(cart); err != nil {
		return nil, err
	}
	m.recordCartOp("remove", "ok")
	return cart, nil
}

// Clear опустошает корзину сессии.
func (m *Manager) Clear(sessionID string) error {
	cart, err := m.repo.Load(sessionID)
	if err != nil {
		return err
	}
	cart.Clear()
	if err := m.repo.Save(cart); err != nil {
		return err
	}
	m.recordCartOp("clear", "ok")
	return nil
}

// Drop удаляет корзину сессии целиком (logout).
func (m *Manager) Drop(sessionID string) error {
	return m.repo.Delete(sessionID)
}

func (m *Manager) recordCartOp(op, result string) {
	if m.metrics != nil {
		m.metrics.RecordCartOp(op, result)
	}
}
