package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
)

// CartSynchronizer owns the cart item lifecycle: optimistic local
// mutation, durable local snapshots, and best-effort remote
// reconciliation when the identity is authenticated. A remote failure
// never discards locally-expressed intent; remote state overwrites local
// state only inside Load/Refresh.
type CartSynchronizer struct {
	store    store.Store
	gw       gateway.Gateway
	resolver *identity.Resolver
	logger   *zap.Logger
	policy   *remotePolicy
	changes  notifier

	mu   sync.Mutex
	cart *commerce.Cart
}

// NewCartSynchronizer creates a cart synchronizer with an empty model;
// call Load to populate it.
func NewCartSynchronizer(st store.Store, gw gateway.Gateway, resolver *identity.Resolver, logger *zap.Logger) *CartSynchronizer {
	return &CartSynchronizer{
		store:    st,
		gw:       gw,
		resolver: resolver,
		logger:   logger,
		policy:   newRemotePolicy(logger),
		cart:     commerce.NewCart(),
	}
}

// Load rebuilds the model. When authenticated, the remote cart wins; on
// any remote failure the last local snapshot is the fallback of record.
// When anonymous, the local snapshot is the only source.
func (s *CartSynchronizer) Load(ctx context.Context) error {
	if s.resolver.Current().IsAuthenticated() {
		snapshot, err := s.gw.FetchCart(ctx)
		if err == nil {
			s.replaceFromRemote(ctx, snapshot)
			return nil
		}
		s.logger.Warn("remote cart load failed, using local snapshot", zap.Error(err))
	}

	s.loadLocal(ctx)
	return ctx.Err()
}

// Refresh is an alias for Load, used after reconnecting or after a
// session merge.
func (s *CartSynchronizer) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// AddItem applies the add optimistically (accumulating quantity for an
// existing identity key) and reconciles remotely best-effort.
func (s *CartSynchronizer) AddItem(ctx context.Context, item commerce.CartItem) error {
	s.mu.Lock()
	if err := s.cart.Add(item); err != nil {
		s.mu.Unlock()
		return err
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()

	if s.resolver.Current().IsAuthenticated() {
		input := gateway.AddCartItemInput{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
		s.policy.run(ctx, "cart.add_item", func(ctx context.Context) error {
			return s.gw.AddCartItem(ctx, input)
		})
	}
	return nil
}

// RemoveItem removes the item optimistically, then issues a best-effort
// remote delete. Removing an absent key is a no-op.
func (s *CartSynchronizer) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	item, ok := s.cart.Item(key)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.cart.Remove(key)
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()

	if s.resolver.Current().IsAuthenticated() {
		remoteID := remoteItemID(item)
		s.policy.run(ctx, "cart.remove_item", func(ctx context.Context) error {
			return s.gw.RemoveCartItem(ctx, remoteID)
		})
	}
	return nil
}

// UpdateQuantity replaces the item's quantity. A quantity of zero or less
// delegates to RemoveItem.
func (s *CartSynchronizer) UpdateQuantity(ctx context.Context, key string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, key)
	}

	s.mu.Lock()
	if err := s.cart.UpdateQuantity(key, quantity); err != nil {
		s.mu.Unlock()
		return err
	}
	item, _ := s.cart.Item(key)
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()

	if s.resolver.Current().IsAuthenticated() {
		remoteID := remoteItemID(item)
		s.policy.run(ctx, "cart.update_item", func(ctx context.Context) error {
			return s.gw.UpdateCartItem(ctx, remoteID, quantity)
		})
	}
	return nil
}

// Clear empties the model and the local snapshot, then issues a
// best-effort remote clear.
func (s *CartSynchronizer) Clear(ctx context.Context) error {
	s.clearLocal(ctx)

	if s.resolver.Current().IsAuthenticated() {
		s.policy.run(ctx, "cart.clear", func(ctx context.Context) error {
			return s.gw.ClearCart(ctx)
		})
	}
	return nil
}

// ClearLocal drops the model and the local snapshot without touching the
// server. Used on logout, when the cached cart belongs to the account
// that just signed out.
func (s *CartSynchronizer) ClearLocal(ctx context.Context) {
	s.clearLocal(ctx)
}

// Item returns the item with the given identity key
func (s *CartSynchronizer) Item(key string) (commerce.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Item(key)
}

// Items returns the cart contents in insertion order
func (s *CartSynchronizer) Items() []commerce.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

// TotalItemCount returns the sum of quantities. Pure read, no I/O.
func (s *CartSynchronizer) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItemCount()
}

// Subtotal returns the sum of price times quantity. Pure read, no I/O.
func (s *CartSynchronizer) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// Subscribe registers a change notification callback and returns an
// unsubscribe func.
func (s *CartSynchronizer) Subscribe(fn func()) func() {
	return s.changes.subscribe(fn)
}

// Flush waits for in-flight remote reconciliation calls. Intended for
// shutdown and tests.
func (s *CartSynchronizer) Flush() {
	s.policy.flush()
}

func (s *CartSynchronizer) clearLocal(ctx context.Context) {
	s.mu.Lock()
	s.cart.Clear()
	if err := s.store.Remove(ctx, store.KeyCart); err != nil {
		s.logger.Warn("failed to clear cart snapshot", zap.Error(err))
	}
	s.mu.Unlock()
	s.changes.notify()
}

// replaceFromRemote swaps the model for the server's snapshot and mirrors
// it into the local store. This is the only path where remote state
// overwrites local state.
func (s *CartSynchronizer) replaceFromRemote(ctx context.Context, snapshot *gateway.CartSnapshot) {
	cart := commerce.NewCart()
	for _, line := range snapshot.Lines {
		if err := cart.Add(cartItemFromLine(line)); err != nil {
			s.logger.Warn("skipping invalid remote cart line",
				zap.String("product_id", line.ProductID),
				zap.Error(err),
			)
		}
	}

	s.mu.Lock()
	s.cart = cart
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()
}

// loadLocal rebuilds the model from the local snapshot, treating a
// missing or corrupt value as an empty cart.
func (s *CartSynchronizer) loadLocal(ctx context.Context) {
	raw, err := s.store.Get(ctx, store.KeyCart)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		s.logger.Warn("failed to read cart snapshot", zap.Error(err))
	}

	s.mu.Lock()
	s.cart = commerce.RestoreCart(commerce.DecodeCart(raw))
	s.mu.Unlock()
	s.changes.notify()
}

// persistLocked mirrors the model into the local store. Persistence
// failures are logged, not propagated: the in-memory model remains valid
// and a later write will repair the snapshot.
func (s *CartSynchronizer) persistLocked(ctx context.Context) {
	encoded, err := commerce.EncodeCart(s.cart.Snapshot())
	if err != nil {
		s.logger.Error("failed to encode cart snapshot", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, store.KeyCart, encoded); err != nil {
		s.logger.Warn("failed to persist cart snapshot", zap.Error(err))
	}
}

// remoteItemID returns the server-side line id when a remote load has
// attached one, falling back to the identity key which the backend also
// accepts.
func remoteItemID(item commerce.CartItem) string {
	if item.RemoteID != "" {
		return item.RemoteID
	}
	return item.Key()
}

// cartItemFromLine converts a canonical gateway line to the domain model
func cartItemFromLine(line gateway.CartLine) commerce.CartItem {
	return commerce.CartItem{
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		RemoteID:  line.ItemID,
		Name:      line.Name,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Color:     line.Color,
		Storage:   line.Storage,
		ImageURL:  line.ImageURL,
	}
}
