package jsondoc

import (
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

// productDoc — дисковое представление товара.
type productDoc struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int64     `json:"stock"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toProductDoc(p domain.Product) productDoc {
	return productDoc(p)
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product(d)
}

type productRepository struct {
	store *docstore.Store
}

// NewProductRepository создаёт репозиторий каталога поверх document store.
func NewProductRepository(store *docstore.Store) domain.ProductRepository {
	return &productRepository{store: store}
}

func (r *productRepository) List() ([]domain.Product, error) {
	docs, err := readTyped[productDoc](r.store, collectionProducts)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toDomain())
	}
	return products, nil
}

func (r *productRepository) Get(id int64) (domain.Product, error) {
	docs, err := readTyped[productDoc](r.store, collectionProducts)
	if err != nil {
		return domain.Product{}, err
	}
	for _, doc := range docs {
		if doc.ID == id {
			return doc.toDomain(), nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Create выдаёт товару ID из счётчика коллекции и добавляет его.
func (r *productRepository) Create(product domain.Product) (domain.Product, error) {
	id, err := r.store.NextID(collectionProducts)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	docs, err := readTyped[productDoc](r.store, collectionProducts)
	if err != nil {
		return domain.Product{}, err
	}
	docs = append(docs, toProductDoc(product))
	if err := writeTyped(r.store, collectionProducts, docs); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Save перезаписывает товар целиком (цикл read/mutate/write всей коллекции).
func (r *productRepository) Save(product domain.Product) error {
	docs, err := readTyped[productDoc](r.store, collectionProducts)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		if doc.ID == product.ID {
			product.UpdatedAt = time.Now().UTC()
			docs[i] = toProductDoc(product)
			return writeTyped(r.store, collectionProducts, docs)
		}
	}
	return domain.ErrProductNotFound
}

var _ domain.ProductRepository = (*productRepository)(nil)
