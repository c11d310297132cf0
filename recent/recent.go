// Package recent tracks the products the shopper viewed most recently.
// The list lives locally with a bounded length; each view is also pushed
// to the backend best-effort so the view history follows the session
// through a merge.
package recent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/commerce"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/store"
)

// defaultCapacity bounds the list; the oldest view falls off first
const defaultCapacity = 20

// View is one recently-viewed entry
type View struct {
	ProductID string    `json:"product_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithCapacity overrides the maximum list length
func WithCapacity(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// Tracker owns the recently-viewed list. Recording a view moves the
// product to the front, persists the list locally, and reports the view
// to the backend without blocking the caller.
type Tracker struct {
	store    store.Store
	gw       gateway.Gateway
	resolver *identity.Resolver
	logger   *zap.Logger
	capacity int

	mu    sync.Mutex
	views []View
	wg    sync.WaitGroup
}

// NewTracker creates a tracker with an empty list; call Load to populate it
func NewTracker(st store.Store, gw gateway.Gateway, resolver *identity.Resolver, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:    st,
		gw:       gw,
		resolver: resolver,
		logger:   logger,
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load rebuilds the list from the local snapshot, treating a missing or
// corrupt value as an empty list.
func (t *Tracker) Load(ctx context.Context) error {
	raw, err := t.store.Get(ctx, store.KeyRecentlyViewed)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		t.logger.Warn("failed to read recently-viewed snapshot", zap.Error(err))
	}

	var views []View
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &views); err != nil {
			t.logger.Warn("discarding corrupt recently-viewed snapshot", zap.Error(err))
			views = nil
		}
	}
	if len(views) > t.capacity {
		views = views[:t.capacity]
	}

	t.mu.Lock()
	t.views = views
	t.mu.Unlock()
	return ctx.Err()
}

// Record notes a product view: the product moves to the front of the
// list, re-viewing deduplicates, and the list is trimmed to capacity.
// The backend report carries the anonymous session id when one exists so
// the history can later be merged into the account.
func (t *Tracker) Record(ctx context.Context, productID string) error {
	if productID == "" {
		return commerce.ErrInvalidProductID
	}

	t.mu.Lock()
	next := make([]View, 0, len(t.views)+1)
	next = append(next, View{ProductID: productID, ViewedAt: time.Now().UTC()})
	for _, v := range t.views {
		if v.ProductID == productID {
			continue
		}
		next = append(next, v)
	}
	if len(next) > t.capacity {
		next = next[:t.capacity]
	}
	t.views = next
	t.persistLocked(ctx)
	t.mu.Unlock()

	sessionID := t.resolver.Current().SessionID()
	detached := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.gw.RecordProductView(detached, sessionID, productID); err != nil {
			t.logger.Warn("product view report failed",
				zap.String("product_id", productID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Items returns the list, most recent first
func (t *Tracker) Items() []View {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]View, len(t.views))
	copy(out, t.views)
	return out
}

// Len returns the number of tracked views
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.views)
}

// Clear empties the list and the local snapshot
func (t *Tracker) Clear(ctx context.Context) {
	t.mu.Lock()
	t.views = nil
	if err := t.store.Remove(ctx, store.KeyRecentlyViewed); err != nil {
		t.logger.Warn("failed to clear recently-viewed snapshot", zap.Error(err))
	}
	t.mu.Unlock()
}

// Flush waits for in-flight view reports. Intended for shutdown and tests.
func (t *Tracker) Flush() {
	t.wg.Wait()
}

func (t *Tracker) persistLocked(ctx context.Context) {
	encoded, err := json.Marshal(t.views)
	if err != nil {
		t.logger.Error("failed to encode recently-viewed snapshot", zap.Error(err))
		return
	}
	if err := t.store.Set(ctx, store.KeyRecentlyViewed, string(encoded)); err != nil {
		t.logger.Warn("failed to persist recently-viewed snapshot", zap.Error(err))
	}
}
