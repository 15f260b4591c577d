// Package shipping вычисляет стоимость доставки по активной политике.
// Политика перечитывается из хранилища при каждом расчёте: изменение
// конфигурации действует на все последующие котировки немедленно.
package shipping

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cmoralesdiaz/almacen/internal/domain"
)

// Quote — результат расчёта доставки для конкретной суммы корзины.
type Quote struct {
	Cost     int64
	Free     bool
	Subtotal int64
}

// Policy реализует расчёт доставки поверх ShippingConfigRepository.
type Policy struct {
	repo   domain.ShippingConfigRepository
	logger *log.Entry
}

// NewPolicy создаёт политику доставки.
func NewPolicy(repo domain.ShippingConfigRepository, logger *log.Entry) *Policy {
	if logger == nil {
		logger = log.New().WithField("component", "shipping")
	}
	return &Policy{repo: repo, logger: logger}
}

// ComputeCost возвращает котировку для суммы корзины. Порог бесплатной
// доставки строгий по границе: subtotal >= threshold даёт ноль.
// Порог 0 при включённом флаге означает бесплатную доставку для всех.
func (p *Policy) ComputeCost(subtotal int64) (Quote, error) {
	cfg, err := p.repo.Get()
	if err != nil {
		return Quote{}, err
	}
	return computeQuote(cfg, subtotal), nil
}

func computeQuote(cfg domain.ShippingConfig, subtotal int64) Quote {
	q := Quote{Subtotal: subtotal, Cost: cfg.BaseCost}
	if cfg.FreeEnabled && subtotal >= cfg.FreeThreshold {
		q.Cost = 0
		q.Free = true
	}
	return q
}

// GetConfig возвращает актуальную политику.
func (p *Policy) GetConfig() (domain.ShippingConfig, error) {
	return p.repo.Get()
}

// SetConfig валидирует и сохраняет новую политику.
func (p *Policy) SetConfig(cfg domain.ShippingConfig) error {
	if cfg.BaseCost < 0 || cfg.FreeThreshold < 0 {
		return domain.ErrShippingCostNegative
	}
	cfg.UpdatedAt = time.Now().UTC()
	if err := p.repo.Set(cfg); err != nil {
		return err
	}
	p.logger.WithFields(log.Fields{
		"base_cost":      cfg.BaseCost,
		"free_threshold": cfg.FreeThreshold,
		"free_enabled":   cfg.FreeEnabled,
	}).Info("shipping policy updated")
	return nil
}
