package syncer

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
)

// fakeGateway is an in-memory stand-in for the remote backend. It applies
// server-side semantics to its own state and records every call so tests
// can assert which remote operations were issued.
type fakeGateway struct {
	mu        sync.Mutex
	cart      []gateway.CartLine
	favorites []gateway.FavoriteEntry
	merged    []string
	views     [][2]string
	calls     []string
	errs      map[string]error // op name -> error to return
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: make(map[string]error)}
}

func (f *fakeGateway) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeGateway) record(op string) error {
	f.calls = append(f.calls, op)
	return f.errs[op]
}

func (f *fakeGateway) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call == op {
			count++
		}
	}
	return count
}

func (f *fakeGateway) FetchCart(ctx context.Context) (*gateway.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cart.fetch"); err != nil {
		return nil, err
	}
	lines := make([]gateway.CartLine, len(f.cart))
	copy(lines, f.cart)
	return &gateway.CartSnapshot{Lines: lines}, nil
}

func (f *fakeGateway) AddCartItem(ctx context.Context, input gateway.AddCartItemInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cart.add_item"); err != nil {
		return err
	}
	key := commerce.ItemKey(input.ProductID, input.VariantID)
	for i := range f.cart {
		if commerce.ItemKey(f.cart[i].ProductID, f.cart[i].VariantID) == key {
			f.cart[i].Quantity += input.Quantity
			return nil
		}
	}
	f.cart = append(f.cart, gateway.CartLine{
		ItemID:    "srv-" + key,
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  input.Quantity,
	})
	return nil
}

func (f *fakeGateway) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cart.update_item"); err != nil {
		return err
	}
	for i := range f.cart {
		if f.cart[i].ItemID == itemID {
			f.cart[i].Quantity = quantity
			return nil
		}
	}
	return nil
}

func (f *fakeGateway) RemoveCartItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cart.remove_item"); err != nil {
		return err
	}
	for i := range f.cart {
		if f.cart[i].ItemID == itemID {
			f.cart = append(f.cart[:i], f.cart[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeGateway) ClearCart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cart.clear"); err != nil {
		return err
	}
	f.cart = nil
	return nil
}

func (f *fakeGateway) FetchFavorites(ctx context.Context) ([]gateway.FavoriteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("favorites.fetch"); err != nil {
		return nil, err
	}
	entries := make([]gateway.FavoriteEntry, len(f.favorites))
	copy(entries, f.favorites)
	return entries, nil
}

func (f *fakeGateway) AddFavorite(ctx context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("favorites.add"); err != nil {
		return err
	}
	for _, entry := range f.favorites {
		if entry.ProductID == productID {
			return nil
		}
	}
	f.favorites = append(f.favorites, gateway.FavoriteEntry{
		ProductID: productID,
		Title:     "Product " + productID,
		Price:     decimal.NewFromInt(10),
	})
	return nil
}

func (f *fakeGateway) RemoveFavorite(ctx context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("favorites.remove"); err != nil {
		return err
	}
	for i, entry := range f.favorites {
		if entry.ProductID == productID {
			f.favorites = append(f.favorites[:i], f.favorites[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeGateway) MergeSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("session.merge"); err != nil {
		return err
	}
	f.merged = append(f.merged, sessionID)
	return nil
}

func (f *fakeGateway) RecordProductView(ctx context.Context, sessionID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("session.record_view"); err != nil {
		return err
	}
	f.views = append(f.views, [2]string{sessionID, productID})
	return nil
}

var _ gateway.Gateway = (*fakeGateway)(nil)

// env bundles the collaborators most syncer tests need
type env struct {
	store    *store.MemoryStore
	gw       *fakeGateway
	resolver *identity.Resolver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	return &env{
		store:    st,
		gw:       newFakeGateway(),
		resolver: identity.NewResolver(st, zap.NewNop()),
	}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.resolver.Login(context.Background(), "user-1", "token-1"))
}

func cartItem(productID string, quantity int) commerce.CartItem {
	return commerce.CartItem{
		ProductID: productID,
		Name:      "Product " + productID,
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  quantity,
	}
}

func favoriteItem(productID string) commerce.FavoriteItem {
	return commerce.FavoriteItem{
		ProductID: productID,
		Title:     "Product " + productID,
		Price:     decimal.NewFromInt(10),
	}
}
