package commerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKey builds the deterministic cart identity key for a product and an
// optional variant. Two items with the same key always refer to the same
// purchasable unit.
func ItemKey(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + "_" + variantID
}

// CartItem represents a line in the shopping cart
type CartItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	RemoteID  string          `json:"remote_id,omitempty"` // server-side line id, known after a remote load
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	Storage   string          `json:"storage,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// Key returns the identity key of the item
func (i CartItem) Key() string {
	return ItemKey(i.ProductID, i.VariantID)
}

// LineTotal returns unit price multiplied by quantity
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the item invariants. Violations indicate a programming
// error in the caller, not an environmental condition.
func (i CartItem) Validate() error {
	if i.ProductID == "" {
		return ErrInvalidProductID
	}
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Cart is the in-memory cart model. At most one item exists per identity
// key; adding an item whose key is already present accumulates quantity.
// Cart is not safe for concurrent use; the synchronizer serializes access.
type Cart struct {
	items map[string]*CartItem
	order []string // insertion order, for stable UI listing
}

// NewCart creates an empty cart
func NewCart() *Cart {
	return &Cart{
		items: make(map[string]*CartItem),
	}
}

// RestoreCart rebuilds a cart from a persisted snapshot. Items that fail
// validation are dropped rather than rejected, so a partially corrupt
// snapshot degrades to the valid subset.
func RestoreCart(items []CartItem) *Cart {
	cart := NewCart()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			continue
		}
		_ = cart.Add(item)
	}
	return cart
}

// Add inserts the item or, if an item with the same key exists, sums the
// quantities. The existing item keeps its original AddedAt.
func (c *Cart) Add(item CartItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	key := item.Key()
	if existing, ok := c.items[key]; ok {
		existing.Quantity += item.Quantity
		// A remote load may have attached a server line id since
		existing.RemoteID = firstNonEmpty(existing.RemoteID, item.RemoteID)
		return nil
	}

	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	c.items[key] = &item
	c.order = append(c.order, key)
	return nil
}

// Remove deletes the item with the given key. Removing an absent key is a
// no-op and returns false.
func (c *Cart) Remove(key string) bool {
	if _, ok := c.items[key]; !ok {
		return false
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// UpdateQuantity replaces the quantity of an existing item. A quantity of
// zero or less is equivalent to removal.
func (c *Cart) UpdateQuantity(key string, quantity int) error {
	if quantity <= 0 {
		c.Remove(key)
		return nil
	}
	item, ok := c.items[key]
	if !ok {
		return ErrItemNotFound
	}
	item.Quantity = quantity
	return nil
}

// Item returns the item with the given key
func (c *Cart) Item(key string) (CartItem, bool) {
	item, ok := c.items[key]
	if !ok {
		return CartItem{}, false
	}
	return *item, true
}

// Items returns all items in insertion order
func (c *Cart) Items() []CartItem {
	items := make([]CartItem, 0, len(c.order))
	for _, key := range c.order {
		items = append(items, *c.items[key])
	}
	return items
}

// Len returns the number of distinct items
func (c *Cart) Len() int {
	return len(c.items)
}

// TotalItemCount returns the sum of all quantities
func (c *Cart) TotalItemCount() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// Subtotal returns the sum of price multiplied by quantity over all items
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// Clear removes all items
func (c *Cart) Clear() {
	c.items = make(map[string]*CartItem)
	c.order = nil
}

// Snapshot returns the items in a form suitable for persistence
func (c *Cart) Snapshot() []CartItem {
	return c.Items()
}

// EncodeCart serializes a cart snapshot for the local store
func EncodeCart(items []CartItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCart parses a persisted cart snapshot. Any parse failure yields an
// empty slice: a corrupt local value is treated as an empty cart, never as
// a fatal condition.
func DecodeCart(raw string) []CartItem {
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
