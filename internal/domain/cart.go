package domain

import "time"

// CartLine — одна позиция корзины. Ссылается на товар по ID, но не владеет им.
type CartLine struct {
	ProductID int64
	// Name копируется из каталога в момент добавления, чтобы снапшот заказа
	// не зависел от последующих переименований товара.
	Name string
	// UnitPrice фиксируется в момент создания позиции и НЕ следует за
	// изменениями цены в каталоге. Это контракт, защищающий покупателя
	// от смены цены посреди сессии, а не побочный эффект merge-логики.
	UnitPrice int64
	Quantity  int64
	// Subtotal = Quantity * UnitPrice; пересчитывается после каждой мутации.
	Subtotal int64
	AddedAt  time.Time
}

// Cart агрегирует позиции покупателя до оформления заказа.
// На каждый ProductID — не более одной позиции.
type Cart struct {
	SessionID string
	Lines     []CartLine
	// Total и ItemCount — производные поля; пересчитываются синхронно
	// после каждой мутации, чтение всегда O(1).
	Total     int64
	ItemCount int64
	UpdatedAt time.Time
}

// NewCart создаёт пустую корзину для сессии.
func NewCart(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Lines: []CartLine{}}
}

// AddItem добавляет товар в корзину или увеличивает количество существующей
// позиции. Итоговое количество сверяется с текущим остатком товара: при
// превышении возвращается ErrStockExceeded и корзина остаётся без изменений
// (никаких частичных мутаций).
func (c *Cart) AddItem(product Product, qty int64) error {
	if qty <= 0 {
		return ErrQuantityInvalid
	}

	idx := c.lineIndex(product.ID)
	final := qty
	if idx >= 0 {
		final += c.Lines[idx].Quantity
	}
	if final > product.Stock {
		return ErrStockExceeded
	}

	if idx >= 0 {
		c.Lines[idx].Quantity = final
		c.Lines[idx].Subtotal = final * c.Lines[idx].UnitPrice
	} else {
		c.Lines = append(c.Lines, CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  qty,
			Subtotal:  qty * product.Price,
			AddedAt:   time.Now().UTC(),
		})
	}

	c.recompute()
	return nil
}

// UpdateQuantity безусловно перезаписывает количество позиции.
// qty <= 0 эквивалентно RemoveItem. Остаток товара здесь намеренно
// не перепроверяется — сверка со складом выполняется только в AddItem.
func (c *Cart) UpdateQuantity(productID, qty int64) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}

	idx := c.lineIndex(productID)
	if idx < 0 {
		return
	}
	c.Lines[idx].Quantity = qty
	c.Lines[idx].Subtotal = qty * c.Lines[idx].UnitPrice
	c.recompute()
}

// RemoveItem удаляет позицию; если её нет — no-op.
func (c *Cart) RemoveItem(productID int64) {
	idx := c.lineIndex(productID)
	if idx < 0 {
		return
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	c.recompute()
}

// Clear опустошает корзину и обнуляет производные суммы.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
	c.recompute()
}

// Line возвращает копию позиции по ID товара.
func (c *Cart) Line(productID int64) (CartLine, bool) {
	idx := c.lineIndex(productID)
	if idx < 0 {
		return CartLine{}, false
	}
	return c.Lines[idx], true
}

// Snapshot возвращает копию позиций: вызывающий не должен алиасить
// внутреннее состояние корзины.
func (c *Cart) Snapshot() []CartLine {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return lines
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) lineIndex(productID int64) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute() {
	var total, count int64
	for i := range c.Lines {
		total += c.Lines[i].Subtotal
		count += c.Lines[i].Quantity
	}
	c.Total = total
	c.ItemCount = count
	c.UpdatedAt = time.Now().UTC()
}

// ValidateInvariants сверяет производные поля с позициями.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	var total, count int64
	seen := make(map[int64]struct{}, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if line.Subtotal != line.Quantity*line.UnitPrice {
			errs = append(errs, ErrSubtotalMismatch)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateCartLine)
		}
		seen[line.ProductID] = struct{}{}
		total += line.Subtotal
		count += line.Quantity
	}
	if total != c.Total {
		errs = append(errs, ErrCartTotalMismatch)
	}
	if count != c.ItemCount {
		errs = append(errs, ErrCartCountMismatch)
	}

	return errs
}
