// Package catalog предоставляет чтение каталога товаров и контролируемую
// корректировку остатков. Остаток никогда не опускается ниже нуля.
package catalog

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// Service реализует domain.ProductCatalog и domain.StockAdjuster поверх
// репозитория товаров.
type Service struct {
	repo   domain.ProductRepository
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(repo domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{repo: repo, logger: logger}
}

// GetAll возвращает только активные товары в порядке хранения.
func (s *Service) GetAll() ([]domain.Product, error) {
	products, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	active := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// GetByID возвращает товар независимо от флага Active: снятый с витрины
// товар всё ещё нужен заказам и корзинам, созданным ранее.
func (s *Service) GetByID(id int64) (domain.Product, error) {
	return s.repo.Get(id)
}

// AdjustStock атомарно меняет остаток на delta. Отрицательный итог
// запрещён: возвращается ErrStockExceeded и товар не меняется.
func (s *Service) AdjustStock(id int64, delta int64) (domain.Product, error) {
	product, err := s.repo.Get(id)
	if err != nil {
		return domain.Product{}, err
	}

	next := product.Stock + delta
	if next < 0 {
		s.logger.WithFields(log.Fields{
			"product_id": id,
			"stock":      product.Stock,
			"delta":      delta,
		}).Warn("stock adjustment rejected")
		return domain.Product{}, domain.ErrStockExceeded
	}

	product.Stock = next
	product.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

var _ domain.ProductCatalog = (*Service)(nil)
var _ domain.StockAdjuster = (*Service)(nil)
