package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/store"
)

// MergeState is the state of the session merge for the current login event
type MergeState string

const (
	// MergeStateUnmerged holds while anonymous or immediately after login,
	// before a merge has succeeded.
	MergeStateUnmerged MergeState = "UNMERGED"
	// MergeStateMerged is terminal for the anonymous session id that was
	// merged.
	MergeStateMerged MergeState = "MERGED"
)

// IsValid checks if the state is a valid MergeState
func (s MergeState) IsValid() bool {
	switch s {
	case MergeStateUnmerged, MergeStateMerged:
		return true
	}
	return false
}

// String returns the string representation of MergeState
func (s MergeState) String() string {
	return string(s)
}

// defaultMergeRetryBudget bounds the in-call retry loop; a merge that
// exhausts it stays retryable on the next app foreground.
const defaultMergeRetryBudget = 15 * time.Second

// Reloader is a synchronizer that can rebuild itself from the remote
// source of truth after a merge.
type Reloader interface {
	Refresh(ctx context.Context) error
}

// CoordinatorOption configures a SessionMergeCoordinator
type CoordinatorOption func(*SessionMergeCoordinator)

// WithMergeRetryBudget bounds the exponential-backoff retry loop inside a
// single merge attempt.
func WithMergeRetryBudget(budget time.Duration) CoordinatorOption {
	return func(c *SessionMergeCoordinator) {
		c.retryBudget = budget
	}
}

// SessionMergeCoordinator migrates anonymous-session-scoped data (cart,
// favorites, recently viewed) into the authenticated account exactly once
// per login event, then retires the anonymous session id. A failed merge
// preserves the session id so the merge can be retried without data loss.
type SessionMergeCoordinator struct {
	store       store.Store
	gw          gateway.Gateway
	logger      *zap.Logger
	reloaders   []Reloader
	retryBudget time.Duration

	mu    sync.Mutex
	state MergeState
}

// NewSessionMergeCoordinator creates a coordinator in the Unmerged state.
// The reloaders are refreshed after a successful merge so the UI reflects
// the now-authoritative merged remote state.
func NewSessionMergeCoordinator(st store.Store, gw gateway.Gateway, logger *zap.Logger, reloaders []Reloader, opts ...CoordinatorOption) *SessionMergeCoordinator {
	c := &SessionMergeCoordinator{
		store:       st,
		gw:          gw,
		logger:      logger,
		reloaders:   reloaders,
		retryBudget: defaultMergeRetryBudget,
		state:       MergeStateUnmerged,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current merge state
func (c *SessionMergeCoordinator) State() MergeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns the coordinator to Unmerged for the next login event.
// Call it when a fresh anonymous session begins (logout).
func (c *SessionMergeCoordinator) Reset() {
	c.mu.Lock()
	c.state = MergeStateUnmerged
	c.mu.Unlock()
}

// MergeOnLogin runs the Unmerged -> Merged transition. It is safe to call
// repeatedly: once Merged, it returns immediately without a remote call.
// Two concurrent attempts (app backgrounded mid-merge, then foregrounded)
// serialize on the coordinator's mutex, and the merge endpoint itself is
// idempotent per session id, so a duplicate remote call is harmless.
func (c *SessionMergeCoordinator) MergeOnLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == MergeStateMerged {
		return nil
	}

	sessionID, err := c.store.Get(ctx, store.KeyAnonymousSession)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			// No anonymous activity to merge; the remote state is already
			// authoritative.
			c.state = MergeStateMerged
			c.reload(ctx)
			return nil
		}
		// A failing local read must not skip a merge the session id may
		// still need; stay Unmerged and let the caller retry.
		return fmt.Errorf("merge: failed to read anonymous session: %w", err)
	}
	if sessionID == "" {
		c.state = MergeStateMerged
		c.reload(ctx)
		return nil
	}

	if err := retryRemote(ctx, c.retryBudget, func() error {
		err := c.gw.MergeSession(ctx, sessionID)
		if errors.Is(err, gateway.ErrRequestFailed) {
			// The server rejected the merge outright; retrying the same
			// request will not change its mind.
			return backoff.Permanent(err)
		}
		return err
	}); err != nil {
		c.logger.Warn("session merge failed, will retry later",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return fmt.Errorf("merge: %w", err)
	}

	// The session id is retired only after the server has owned the data.
	// If the removal itself fails, a later merge re-sends the same id,
	// which the idempotent endpoint absorbs.
	if err := c.store.Remove(ctx, store.KeyAnonymousSession); err != nil {
		c.logger.Warn("failed to retire anonymous session id", zap.Error(err))
	}

	c.state = MergeStateMerged
	c.logger.Info("anonymous session merged",
		zap.String("session_id", sessionID),
	)
	c.reload(ctx)
	return nil
}

// reload refreshes the synchronizers from the remote source of truth
func (c *SessionMergeCoordinator) reload(ctx context.Context) {
	for _, r := range c.reloaders {
		if err := r.Refresh(ctx); err != nil {
			c.logger.Warn("post-merge reload failed", zap.Error(err))
		}
	}
}

// Ensure the synchronizers satisfy Reloader
var (
	_ Reloader = (*CartSynchronizer)(nil)
	_ Reloader = (*FavoritesSynchronizer)(nil)
)
