package commerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// FavoriteItem represents a favorited product together with a denormalized
// summary cached for offline display.
type FavoriteItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Rating    float64         `json:"rating,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// Validate checks the item invariants
func (f FavoriteItem) Validate() error {
	if f.ProductID == "" {
		return ErrInvalidProductID
	}
	if f.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Favorites is the in-memory favorites model with set semantics: a product
// id appears at most once. Not safe for concurrent use; the synchronizer
// serializes access.
type Favorites struct {
	items map[string]FavoriteItem
	order []string
}

// NewFavorites creates an empty favorites set
func NewFavorites() *Favorites {
	return &Favorites{
		items: make(map[string]FavoriteItem),
	}
}

// RestoreFavorites rebuilds favorites from a persisted snapshot, dropping
// entries that fail validation.
func RestoreFavorites(items []FavoriteItem) *Favorites {
	favorites := NewFavorites()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			continue
		}
		_, _ = favorites.Add(item)
	}
	return favorites
}

// Add inserts the product. If it is already a favorite the cached summary
// is refreshed but membership does not change; the second return reports
// whether membership changed.
func (f *Favorites) Add(item FavoriteItem) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, err
	}

	if existing, ok := f.items[item.ProductID]; ok {
		item.AddedAt = existing.AddedAt
		f.items[item.ProductID] = item
		return false, nil
	}

	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	f.items[item.ProductID] = item
	f.order = append(f.order, item.ProductID)
	return true, nil
}

// Remove deletes the product from the set. Removing a product that was
// never favorited is a no-op and returns false.
func (f *Favorites) Remove(productID string) bool {
	if _, ok := f.items[productID]; !ok {
		return false
	}
	delete(f.items, productID)
	for i, id := range f.order {
		if id == productID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports membership
func (f *Favorites) Contains(productID string) bool {
	_, ok := f.items[productID]
	return ok
}

// Item returns the cached summary for a favorited product
func (f *Favorites) Item(productID string) (FavoriteItem, bool) {
	item, ok := f.items[productID]
	return item, ok
}

// Items returns all favorites in insertion order
func (f *Favorites) Items() []FavoriteItem {
	items := make([]FavoriteItem, 0, len(f.order))
	for _, id := range f.order {
		items = append(items, f.items[id])
	}
	return items
}

// ProductIDs returns the favorited product ids in insertion order
func (f *Favorites) ProductIDs() []string {
	ids := make([]string, len(f.order))
	copy(ids, f.order)
	return ids
}

// Len returns the number of favorites
func (f *Favorites) Len() int {
	return len(f.items)
}

// Clear removes all favorites
func (f *Favorites) Clear() {
	f.items = make(map[string]FavoriteItem)
	f.order = nil
}

// Snapshot returns the items in a form suitable for persistence
func (f *Favorites) Snapshot() []FavoriteItem {
	return f.Items()
}

// EncodeFavorites serializes a favorites snapshot for the local store
func EncodeFavorites(items []FavoriteItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFavorites parses a persisted favorites snapshot, treating any
// parse failure as an empty set.
func DecodeFavorites(raw string) []FavoriteItem {
	var items []FavoriteItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
