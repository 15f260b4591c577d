package jsondoc

import (
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

type cartLineDoc struct {
	ProductID int64     `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unitPrice"`
	Quantity  int64     `json:"quantity"`
	Subtotal  int64     `json:"subtotal"`
	AddedAt   time.Time `json:"addedAt"`
}

type cartDoc struct {
	SessionID string        `json:"sessionId"`
	Lines     []cartLineDoc `json:"lines"`
	Total     int64         `json:"total"`
	ItemCount int64         `json:"itemCount"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type cartRepository struct {
	store *docstore.Store
}

// NewCartRepository персистит корзины в коллекции carritos, по одному
// документу на сессию.
func NewCartRepository(store *docstore.Store) domain.CartRepository {
	return &cartRepository{store: store}
}

// Load регидрирует корзину сессии; для новой сессии возвращает пустую.
func (r *cartRepository) Load(sessionID string) (*domain.Cart, error) {
	docs, err := readTyped[cartDoc](r.store, collectionCarts)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.SessionID != sessionID {
			continue
		}
		cart := domain.NewCart(sessionID)
		for _, line := range doc.Lines {
			cart.Lines = append(cart.Lines, domain.CartLine(line))
		}
		cart.Total = doc.Total
		cart.ItemCount = doc.ItemCount
		cart.UpdatedAt = doc.UpdatedAt
		return cart, nil
	}
	return domain.NewCart(sessionID), nil
}

// Save перезаписывает документ корзины после каждой мутации.
func (r *cartRepository) Save(cart *domain.Cart) error {
	docs, err := readTyped[cartDoc](r.store, collectionCarts)
	if err != nil {
		return err
	}

	lines := make([]cartLineDoc, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineDoc(line))
	}
	doc := cartDoc{
		SessionID: cart.SessionID,
		Lines:     lines,
		Total:     cart.Total,
		ItemCount: cart.ItemCount,
		UpdatedAt: cart.UpdatedAt,
	}

	replaced := false
	for i := range docs {
		if docs[i].SessionID == cart.SessionID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return writeTyped(r.store, collectionCarts, docs)
}

// Delete убирает документ корзины; отсутствие — no-op.
func (r *cartRepository) Delete(sessionID string) error {
	docs, err := readTyped[cartDoc](r.store, collectionCarts)
	if err != nil {
		return err
	}
	kept := docs[:0]
	for _, doc := range docs {
		if doc.SessionID != sessionID {
			kept = append(kept, doc)
		}
	}
	if len(kept) == len(docs) {
		return nil
	}
	return writeTyped(r.store, collectionCarts, kept)
}

var _ domain.CartRepository = (*cartRepository)(nil)
