// Package gateway is the client's boundary to the remote commerce backend.
// It exposes one canonical shape for cart and favorites data regardless of
// the envelope the backend wraps responses in, so the synchronizers never
// shape-sniff.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Common gateway errors. Network-class failures wrap
// ErrGatewayUnavailable; HTTP-level rejections wrap ErrRequestFailed;
// undecodable bodies wrap ErrInvalidResponse.
var (
	ErrGatewayUnavailable = errors.New("gateway: remote unreachable")
	ErrRequestFailed      = errors.New("gateway: request rejected")
	ErrInvalidResponse    = errors.New("gateway: invalid response")
)

// CartLine is one canonical cart line as known to the server
type CartLine struct {
	ItemID    string          `json:"item_id"`
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	Storage   string          `json:"storage,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// CartSnapshot is the server's authoritative cart state
type CartSnapshot struct {
	Lines []CartLine
}

// FavoriteEntry is one canonical favorites entry
type FavoriteEntry struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	Rating    float64         `json:"rating,omitempty"`
}

// AddCartItemInput carries a cart add operation to the server
type AddCartItemInput struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Gateway is the remote commerce backend as seen by the sync core
type Gateway interface {
	// FetchCart returns the current server-side cart
	FetchCart(ctx context.Context) (*CartSnapshot, error)
	// AddCartItem adds quantity of a product (variant optional)
	AddCartItem(ctx context.Context, input AddCartItemInput) error
	// UpdateCartItem replaces the quantity of a cart line
	UpdateCartItem(ctx context.Context, itemID string, quantity int) error
	// RemoveCartItem removes a cart line
	RemoveCartItem(ctx context.Context, itemID string) error
	// ClearCart empties the server-side cart
	ClearCart(ctx context.Context) error

	// FetchFavorites returns the current server-side favorites
	FetchFavorites(ctx context.Context) ([]FavoriteEntry, error)
	// AddFavorite marks a product as favorite
	AddFavorite(ctx context.Context, productID string) error
	// RemoveFavorite unmarks a product
	RemoveFavorite(ctx context.Context, productID string) error

	// MergeSession associates an anonymous session's activity with the
	// now-authenticated account. Safe to call repeatedly for the same id.
	MergeSession(ctx context.Context, sessionID string) error
	// RecordProductView reports a product view for the given session
	RecordProductView(ctx context.Context, sessionID, productID string) error
}
