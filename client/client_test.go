package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/config"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
	"github.com/trendmart/commerce-sync/syncer"

	"github.com/shopspring/decimal"
)

// stubGateway answers every remote call from in-memory state
type stubGateway struct {
	mu        sync.Mutex
	cart      []gateway.CartLine
	favorites []gateway.FavoriteEntry
	merged    []string
}

func (s *stubGateway) FetchCart(ctx context.Context) (*gateway.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]gateway.CartLine, len(s.cart))
	copy(lines, s.cart)
	return &gateway.CartSnapshot{Lines: lines}, nil
}

func (s *stubGateway) AddCartItem(ctx context.Context, input gateway.AddCartItemInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = append(s.cart, gateway.CartLine{
		ItemID:    "srv-" + commerce.ItemKey(input.ProductID, input.VariantID),
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  input.Quantity,
	})
	return nil
}

func (s *stubGateway) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	return nil
}

func (s *stubGateway) RemoveCartItem(ctx context.Context, itemID string) error { return nil }

func (s *stubGateway) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
	return nil
}

func (s *stubGateway) FetchFavorites(ctx context.Context) ([]gateway.FavoriteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]gateway.FavoriteEntry, len(s.favorites))
	copy(entries, s.favorites)
	return entries, nil
}

func (s *stubGateway) AddFavorite(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = append(s.favorites, gateway.FavoriteEntry{ProductID: productID})
	return nil
}

func (s *stubGateway) RemoveFavorite(ctx context.Context, productID string) error { return nil }

func (s *stubGateway) MergeSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged = append(s.merged, sessionID)
	return nil
}

func (s *stubGateway) RecordProductView(ctx context.Context, sessionID, productID string) error {
	return nil
}

var _ gateway.Gateway = (*stubGateway)(nil)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "commerce-sync", Env: "development"},
		Gateway: config.GatewayConfig{BaseURL: "https://api.example.com", Timeout: 5 * time.Second},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Sync:    config.SyncConfig{MergeRetryBudget: time.Second, RecentCapacity: 20},
		Log:     config.LogConfig{Level: "info", Format: "console", Output: "stdout"},
	}
}

func newTestClient(t *testing.T) (*Client, *stubGateway) {
	t.Helper()
	gw := &stubGateway{}
	c, err := New(testConfig(),
		WithGateway(gw),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return c, gw
}

func TestClient_StartAnonymous(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))

	id := c.Identity.Current()
	assert.Equal(t, identity.KindAnonymous, id.Kind())
	assert.NotEmpty(t, id.SessionID())
	assert.Zero(t, c.Cart.TotalItemCount())
}

func TestClient_LoginMergesAndReloads(t *testing.T) {
	c, gw := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	item := commerce.CartItem{
		ProductID: "P1",
		Name:      "Product P1",
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  2,
	}
	require.NoError(t, c.Cart.AddItem(ctx, item))

	// The backend's post-merge cart carries the migrated line
	gw.mu.Lock()
	gw.cart = []gateway.CartLine{{
		ItemID:    "srv-P1",
		ProductID: "P1",
		Name:      "Product P1",
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  2,
	}}
	gw.mu.Unlock()

	require.NoError(t, c.Login(ctx, "user-1", "token-1"))

	assert.True(t, c.Identity.Current().IsAuthenticated())
	assert.Equal(t, syncer.MergeStateMerged, c.MergeState())
	require.Len(t, gw.merged, 1)
	assert.Equal(t, 2, c.Cart.TotalItemCount())
	require.NoError(t, c.Close())
}

func TestClient_LogoutClearsLocalState(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Login(ctx, "user-1", "token-1"))

	item := commerce.CartItem{
		ProductID: "P1",
		Name:      "Product P1",
		UnitPrice: decimal.NewFromInt(10),
		Quantity:  1,
	}
	require.NoError(t, c.Cart.AddItem(ctx, item))
	require.NoError(t, c.Logout(ctx))

	id := c.Identity.Current()
	assert.Equal(t, identity.KindAnonymous, id.Kind())
	assert.Zero(t, c.Cart.TotalItemCount())
	assert.Equal(t, syncer.MergeStateUnmerged, c.MergeState())
	require.NoError(t, c.Close())
}

func TestClient_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "etcd"

	_, err := New(cfg, WithLogger(zap.NewNop()))
	require.Error(t, err)
}

func TestClient_StoreOverride(t *testing.T) {
	st := store.NewMemoryStore()
	c, err := New(testConfig(),
		WithStore(st),
		WithGateway(&stubGateway{}),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	// The anonymous session was minted into the provided store
	_, err = st.Get(context.Background(), store.KeyAnonymousSession)
	assert.NoError(t, err)
}
