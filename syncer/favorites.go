package syncer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
)

// FavoritesSynchronizer owns the favorite-product set with the same
// reconciliation pattern as the cart: optimistic local mutation, local
// snapshot mirror, best-effort remote calls when authenticated.
type FavoritesSynchronizer struct {
	store    store.Store
	gw       gateway.Gateway
	resolver *identity.Resolver
	logger   *zap.Logger
	policy   *remotePolicy
	changes  notifier

	mu        sync.Mutex
	favorites *commerce.Favorites
}

// NewFavoritesSynchronizer creates a favorites synchronizer with an empty
// model; call Load to populate it.
func NewFavoritesSynchronizer(st store.Store, gw gateway.Gateway, resolver *identity.Resolver, logger *zap.Logger) *FavoritesSynchronizer {
	return &FavoritesSynchronizer{
		store:     st,
		gw:        gw,
		resolver:  resolver,
		logger:    logger,
		policy:    newRemotePolicy(logger),
		favorites: commerce.NewFavorites(),
	}
}

// Load rebuilds the model, remote-wins when authenticated with local
// snapshot fallback on any remote failure.
func (s *FavoritesSynchronizer) Load(ctx context.Context) error {
	if s.resolver.Current().IsAuthenticated() {
		entries, err := s.gw.FetchFavorites(ctx)
		if err == nil {
			s.replaceFromRemote(ctx, entries)
			return nil
		}
		s.logger.Warn("remote favorites load failed, using local snapshot", zap.Error(err))
	}

	s.loadLocal(ctx)
	return ctx.Err()
}

// Refresh is an alias for Load
func (s *FavoritesSynchronizer) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Add marks the product as a favorite optimistically, then reconciles
// remotely best-effort. Adding an existing favorite refreshes the cached
// summary without a remote call.
func (s *FavoritesSynchronizer) Add(ctx context.Context, product commerce.FavoriteItem) error {
	s.mu.Lock()
	added, err := s.favorites.Add(product)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()

	if added && s.resolver.Current().IsAuthenticated() {
		productID := product.ProductID
		s.policy.run(ctx, "favorites.add", func(ctx context.Context) error {
			return s.gw.AddFavorite(ctx, productID)
		})
	}
	return nil
}

// Remove unmarks the product. Removing a product that was never favorited
// is a silent no-op with no remote call.
func (s *FavoritesSynchronizer) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	removed := s.favorites.Remove(productID)
	if removed {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if !removed {
		return nil
	}
	s.changes.notify()

	if s.resolver.Current().IsAuthenticated() {
		s.policy.run(ctx, "favorites.remove", func(ctx context.Context) error {
			return s.gw.RemoveFavorite(ctx, productID)
		})
	}
	return nil
}

// Toggle flips membership: favorited products are removed, everything
// else is added. Returns the resulting membership.
func (s *FavoritesSynchronizer) Toggle(ctx context.Context, product commerce.FavoriteItem) (bool, error) {
	if s.IsFavorite(product.ProductID) {
		return false, s.Remove(ctx, product.ProductID)
	}
	return true, s.Add(ctx, product)
}

// IsFavorite reports membership. Pure lookup, no I/O.
func (s *FavoritesSynchronizer) IsFavorite(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Contains(productID)
}

// Items returns the favorites in insertion order
func (s *FavoritesSynchronizer) Items() []commerce.FavoriteItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Items()
}

// Len returns the number of favorites
func (s *FavoritesSynchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Len()
}

// Sync performs the deliberate two-way reconciliation: local-only
// products are added remotely, remote-only products are removed
// remotely. With no intervening local changes it is idempotent: a second
// run issues no remote operations. Network failures degrade to a logged
// no-op.
func (s *FavoritesSynchronizer) Sync(ctx context.Context) error {
	if !s.resolver.Current().IsAuthenticated() {
		return nil
	}

	entries, err := s.gw.FetchFavorites(ctx)
	if err != nil {
		s.logger.Warn("favorites sync skipped, remote fetch failed", zap.Error(err))
		return nil
	}

	remote := make(map[string]bool, len(entries))
	for _, entry := range entries {
		remote[entry.ProductID] = true
	}

	s.mu.Lock()
	local := s.favorites.ProductIDs()
	localSet := make(map[string]bool, len(local))
	for _, id := range local {
		localSet[id] = true
	}
	s.mu.Unlock()

	for _, id := range local {
		if !remote[id] {
			if err := s.gw.AddFavorite(ctx, id); err != nil {
				s.logger.Warn("favorites sync: remote add failed",
					zap.String("product_id", id),
					zap.Error(err),
				)
			}
		}
	}
	for id := range remote {
		if !localSet[id] {
			if err := s.gw.RemoveFavorite(ctx, id); err != nil {
				s.logger.Warn("favorites sync: remote remove failed",
					zap.String("product_id", id),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Clear empties the model and the local snapshot, without a remote call:
// the backend has no bulk favorites clear.
func (s *FavoritesSynchronizer) Clear(ctx context.Context) {
	s.mu.Lock()
	s.favorites.Clear()
	if err := s.store.Remove(ctx, store.KeyFavorites); err != nil {
		s.logger.Warn("failed to clear favorites snapshot", zap.Error(err))
	}
	s.mu.Unlock()
	s.changes.notify()
}

// ClearLocal is Clear under its logout-path name, matching the cart
// synchronizer.
func (s *FavoritesSynchronizer) ClearLocal(ctx context.Context) {
	s.Clear(ctx)
}

// Subscribe registers a change notification callback
func (s *FavoritesSynchronizer) Subscribe(fn func()) func() {
	return s.changes.subscribe(fn)
}

// Flush waits for in-flight remote reconciliation calls
func (s *FavoritesSynchronizer) Flush() {
	s.policy.flush()
}

func (s *FavoritesSynchronizer) replaceFromRemote(ctx context.Context, entries []gateway.FavoriteEntry) {
	favorites := commerce.NewFavorites()
	for _, entry := range entries {
		if _, err := favorites.Add(favoriteFromEntry(entry)); err != nil {
			s.logger.Warn("skipping invalid remote favorite",
				zap.String("product_id", entry.ProductID),
				zap.Error(err),
			)
		}
	}

	s.mu.Lock()
	s.favorites = favorites
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.changes.notify()
}

func (s *FavoritesSynchronizer) loadLocal(ctx context.Context) {
	raw, err := s.store.Get(ctx, store.KeyFavorites)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		s.logger.Warn("failed to read favorites snapshot", zap.Error(err))
	}

	s.mu.Lock()
	s.favorites = commerce.RestoreFavorites(commerce.DecodeFavorites(raw))
	s.mu.Unlock()
	s.changes.notify()
}

func (s *FavoritesSynchronizer) persistLocked(ctx context.Context) {
	encoded, err := commerce.EncodeFavorites(s.favorites.Snapshot())
	if err != nil {
		s.logger.Error("failed to encode favorites snapshot", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, store.KeyFavorites, encoded); err != nil {
		s.logger.Warn("failed to persist favorites snapshot", zap.Error(err))
	}
}

// favoriteFromEntry converts a canonical gateway entry to the domain model
func favoriteFromEntry(entry gateway.FavoriteEntry) commerce.FavoriteItem {
	return commerce.FavoriteItem{
		ProductID: entry.ProductID,
		Title:     entry.Title,
		Price:     entry.Price,
		ImageURL:  entry.ImageURL,
		Rating:    entry.Rating,
	}
}
