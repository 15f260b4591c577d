package jsondoc

import (
	"sort"
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

// Дисковые представления заказа и вложенных снапшотов.

type contactDoc struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type shippingDoc struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Cost       int64  `json:"cost"`
	Free       bool   `json:"free"`
}

type orderItemDoc struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type userSnapshotDoc struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type orderDoc struct {
	ID           string           `json:"id"`
	Customer     *userSnapshotDoc `json:"customer,omitempty"`
	Contact      contactDoc       `json:"contact"`
	Shipping     shippingDoc      `json:"shipping"`
	Items        []orderItemDoc   `json:"items"`
	Subtotal     int64            `json:"subtotal"`
	ShippingCost int64            `json:"shippingCost"`
	Total        int64            `json:"total"`
	Status       string           `json:"status"`
	Read         bool             `json:"read"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func toOrderDoc(o domain.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDoc(item))
	}
	var customer *userSnapshotDoc
	if o.Customer != nil {
		c := userSnapshotDoc(*o.Customer)
		customer = &c
	}
	return orderDoc{
		ID:           o.ID,
		Customer:     customer,
		Contact:      contactDoc(o.Contact),
		Shipping:     shippingDoc(o.Shipping),
		Items:        items,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
		Status:       string(o.Status),
		Read:         o.Read,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem(item))
	}
	var customer *domain.UserSnapshot
	if d.Customer != nil {
		c := domain.UserSnapshot(*d.Customer)
		customer = &c
	}
	return domain.Order{
		ID:           d.ID,
		Customer:     customer,
		Contact:      domain.Contact(d.Contact),
		Shipping:     domain.ShippingInfo(d.Shipping),
		Items:        items,
		Subtotal:     d.Subtotal,
		ShippingCost: d.ShippingCost,
		Total:        d.Total,
		Status:       domain.OrderStatus(d.Status),
		Read:         d.Read,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type orderRepository struct {
	store *docstore.Store
}

// NewOrderRepository создаёт репозиторий заказов поверх document store.
// Коллекция append-only: заказы никогда не удаляются.
func NewOrderRepository(store *docstore.Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

// Create добавляет новый заказ в конец коллекции.
func (r *orderRepository) Create(order domain.Order) error {
	docs, err := readTyped[orderDoc](r.store, collectionOrders)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID == order.ID {
			return domain.ErrOrderVersionConflict
		}
	}
	docs = append(docs, toOrderDoc(order))
	return writeTyped(r.store, collectionOrders, docs)
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	docs, err := readTyped[orderDoc](r.store, collectionOrders)
	if err != nil {
		return domain.Order{}, err
	}
	for _, doc := range docs {
		if doc.ID == id {
			return doc.toDomain(), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (r *orderRepository) List() ([]domain.Order, error) {
	docs, err := readTyped[orderDoc](r.store, collectionOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.toDomain())
	}
	sortOrders(orders)
	return orders, nil
}

// ListByEmail фильтрует по замороженному email контакта. Сравнение
// строго case-sensitive.
func (r *orderRepository) ListByEmail(email string) ([]domain.Order, error) {
	docs, err := readTyped[orderDoc](r.store, collectionOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0)
	for _, doc := range docs {
		if doc.Contact.Email == email {
			orders = append(orders, doc.toDomain())
		}
	}
	sortOrders(orders)
	return orders, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(order domain.Order) error {
	docs, err := readTyped[orderDoc](r.store, collectionOrders)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		if doc.ID != order.ID {
			continue
		}
		if doc.Version != order.Version {
			return domain.ErrOrderVersionConflict
		}
		order.Version++
		docs[i] = toOrderDoc(order)
		return writeTyped(r.store, collectionOrders, docs)
	}
	return domain.ErrOrderNotFound
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

var _ domain.OrderRepository = (*orderRepository)(nil)
