package jsondoc

import (
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

type shippingConfigDoc struct {
	BaseCost      int64     `json:"baseCost"`
	FreeThreshold int64     `json:"freeThreshold"`
	FreeEnabled   bool      `json:"freeEnabled"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type shippingRepository struct {
	store *docstore.Store
}

// NewShippingConfigRepository хранит единственный документ политики
// доставки в коллекции despacho.
func NewShippingConfigRepository(store *docstore.Store) domain.ShippingConfigRepository {
	return &shippingRepository{store: store}
}

// Get читает конфигурацию с диска без какого-либо кэширования: правка
// админа видна следующему же расчёту стоимости.
func (r *shippingRepository) Get() (domain.ShippingConfig, error) {
	docs, err := readTyped[shippingConfigDoc](r.store, collectionShipping)
	if err != nil {
		return domain.ShippingConfig{}, err
	}
	if len(docs) == 0 {
		return domain.DefaultShippingConfig(), nil
	}
	return domain.ShippingConfig(docs[0]), nil
}

func (r *shippingRepository) Set(cfg domain.ShippingConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	return writeTyped(r.store, collectionShipping, []shippingConfigDoc{shippingConfigDoc(cfg)})
}

var _ domain.ShippingConfigRepository = (*shippingRepository)(nil)
