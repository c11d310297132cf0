package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/store"
)

// Subscriber is notified whenever the active identity changes
type Subscriber func(Identity)

// LoginPrompt surfaces an interactive login request to the UI. It must not
// block; callers re-invoke the original action after a successful login.
type LoginPrompt func(actionDescription string)

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithLoginPrompt sets the prompt invoked by RequireAuthenticated when the
// current identity is anonymous.
func WithLoginPrompt(prompt LoginPrompt) ResolverOption {
	return func(r *Resolver) {
		r.loginPrompt = prompt
	}
}

// Resolver holds the current Identity and notifies subscribers on change.
// It owns the anonymous session lifecycle and the stored credential.
type Resolver struct {
	store  store.Store
	logger *zap.Logger

	mu          sync.RWMutex
	current     Identity
	subscribers map[int]Subscriber
	nextSubID   int
	loginPrompt LoginPrompt
}

// NewResolver creates a resolver. The identity is Anonymous("") until
// Restore runs.
func NewResolver(st store.Store, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       st,
		logger:      logger,
		current:     Anonymous(""),
		subscribers: make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore determines the identity on process start: a stored, still-valid
// credential restores the authenticated identity; otherwise the resolver
// falls back to anonymous, minting and persisting a session id if none is
// stored.
func (r *Resolver) Restore(ctx context.Context) (Identity, error) {
	token, err := r.store.Get(ctx, store.KeyCredential)
	if err == nil {
		credential, parseErr := ParseCredential(token)
		if parseErr == nil {
			return r.setIdentity(Authenticated(credential.UserID, credential.Token)), nil
		}
		r.logger.Info("discarding stored credential",
			zap.Error(parseErr),
		)
		if removeErr := r.store.Remove(ctx, store.KeyCredential); removeErr != nil {
			r.logger.Warn("failed to remove stale credential", zap.Error(removeErr))
		}
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		r.logger.Warn("failed to read stored credential", zap.Error(err))
	}

	sessionID, err := r.restoreSession(ctx)
	if err != nil {
		return Identity{}, err
	}
	return r.setIdentity(Anonymous(sessionID)), nil
}

// restoreSession returns the stored anonymous session id, minting and
// persisting a fresh one when absent.
func (r *Resolver) restoreSession(ctx context.Context) (string, error) {
	sessionID, err := r.store.Get(ctx, store.KeyAnonymousSession)
	if err == nil && sessionID != "" {
		return sessionID, nil
	}
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		r.logger.Warn("failed to read anonymous session", zap.Error(err))
	}

	session := NewAnonymousSession()
	if err := r.store.Set(ctx, store.KeyAnonymousSession, session.ID); err != nil {
		return "", fmt.Errorf("identity: failed to persist anonymous session: %w", err)
	}
	return session.ID, nil
}

// Current returns the active identity
func (r *Resolver) Current() Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers a change subscriber and returns an unsubscribe func
func (r *Resolver) Subscribe(fn Subscriber) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Login transitions to an authenticated identity, persisting the
// credential so a restart restores the session.
func (r *Resolver) Login(ctx context.Context, userID, token string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if err := r.store.Set(ctx, store.KeyCredential, token); err != nil {
		r.logger.Warn("failed to persist credential", zap.Error(err))
	}
	r.setIdentity(Authenticated(userID, token))
	return nil
}

// Logout clears the stored credential and mints a fresh anonymous session
// for any further anonymous activity.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.store.Remove(ctx, store.KeyCredential); err != nil {
		r.logger.Warn("failed to remove credential", zap.Error(err))
	}

	session := NewAnonymousSession()
	if err := r.store.Set(ctx, store.KeyAnonymousSession, session.ID); err != nil {
		return fmt.Errorf("identity: failed to persist anonymous session: %w", err)
	}
	r.setIdentity(Anonymous(session.ID))
	return nil
}

// RequireAuthenticated returns true immediately when authenticated. When
// anonymous it surfaces the login prompt (if configured) and returns false
// without blocking.
func (r *Resolver) RequireAuthenticated(actionDescription string) bool {
	if r.Current().IsAuthenticated() {
		return true
	}
	r.mu.RLock()
	prompt := r.loginPrompt
	r.mu.RUnlock()
	if prompt != nil {
		prompt(actionDescription)
	}
	return false
}

// setIdentity swaps the active identity and notifies subscribers outside
// the lock.
func (r *Resolver) setIdentity(next Identity) Identity {
	r.mu.Lock()
	r.current = next
	subscribers := make([]Subscriber, 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subscribers = append(subscribers, fn)
	}
	r.mu.Unlock()

	for _, fn := range subscribers {
		fn(next)
	}
	return next
}
