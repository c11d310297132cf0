// Package client assembles the library into the single object a UI layer
// holds: configuration, logging, local storage, the remote gateway, the
// identity resolver, the synchronizers, and the session merge
// coordinator, with login and logout orchestration on top.
package client

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/trendmart/commerce-sync/config"
	"github.com/trendmart/commerce-sync/gateway"
	"github.com/trendmart/commerce-sync/identity"
	"github.com/trendmart/commerce-sync/logger"
	"github.com/trendmart/commerce-sync/recent"
	"github.com/trendmart/commerce-sync/store"
	"github.com/trendmart/commerce-sync/syncer"
)

// Option configures a Client
type Option func(*options)

type options struct {
	store       store.Store
	gw          gateway.Gateway
	logger      *zap.Logger
	loginPrompt identity.LoginPrompt
}

// WithStore overrides the config-selected store backend
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

// WithGateway overrides the HTTP gateway. Intended for tests.
func WithGateway(gw gateway.Gateway) Option {
	return func(o *options) { o.gw = gw }
}

// WithLogger overrides the config-built logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLoginPrompt installs the UI callback invoked when an action needs
// an authenticated identity.
func WithLoginPrompt(prompt identity.LoginPrompt) Option {
	return func(o *options) { o.loginPrompt = prompt }
}

// Client is the top-level facade over the synchronizers
type Client struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store

	Identity  *identity.Resolver
	Cart      *syncer.CartSynchronizer
	Favorites *syncer.FavoritesSynchronizer
	Recent    *recent.Tracker

	merge *syncer.SessionMergeCoordinator
}

// New builds a Client from configuration
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		var err error
		log, err = logger.New(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("client: failed to build logger: %w", err)
		}
	}

	st := o.store
	if st == nil {
		var err error
		st, err = openStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("client: failed to open %s store: %w", cfg.Storage.Backend, err)
		}
	}

	var resolverOpts []identity.ResolverOption
	if o.loginPrompt != nil {
		resolverOpts = append(resolverOpts, identity.WithLoginPrompt(o.loginPrompt))
	}
	resolver := identity.NewResolver(st, log, resolverOpts...)

	gw := o.gw
	if gw == nil {
		var err error
		gw, err = gateway.NewHTTPGateway(
			gateway.Config{BaseURL: cfg.Gateway.BaseURL, Timeout: cfg.Gateway.Timeout},
			func() string { return resolver.Current().Token() },
		)
		if err != nil {
			return nil, fmt.Errorf("client: failed to build gateway: %w", err)
		}
	}

	cart := syncer.NewCartSynchronizer(st, gw, resolver, log)
	favorites := syncer.NewFavoritesSynchronizer(st, gw, resolver, log)
	tracker := recent.NewTracker(st, gw, resolver, log,
		recent.WithCapacity(cfg.Sync.RecentCapacity))
	merge := syncer.NewSessionMergeCoordinator(st, gw, log,
		[]syncer.Reloader{cart, favorites},
		syncer.WithMergeRetryBudget(cfg.Sync.MergeRetryBudget))

	return &Client{
		cfg:       cfg,
		logger:    log,
		store:     st,
		Identity:  resolver,
		Cart:      cart,
		Favorites: favorites,
		Recent:    tracker,
		merge:     merge,
	}, nil
}

// openStore builds the store backend named by the configuration
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendFile:
		return store.NewFileStore(cfg.Storage.Dir)
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.Storage.Path)
	case config.BackendRedis:
		return store.NewRedisStore(store.RedisConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Start restores the persisted identity and loads every collection. A
// restored authenticated identity also gets a merge attempt, in case a
// previous login never completed its merge.
func (c *Client) Start(ctx context.Context) error {
	id, err := c.Identity.Restore(ctx)
	if err != nil {
		return fmt.Errorf("client: identity restore failed: %w", err)
	}

	if err := c.Cart.Load(ctx); err != nil {
		return err
	}
	if err := c.Favorites.Load(ctx); err != nil {
		return err
	}
	if err := c.Recent.Load(ctx); err != nil {
		return err
	}

	if id.IsAuthenticated() {
		if err := c.merge.MergeOnLogin(ctx); err != nil {
			c.logger.Warn("startup session merge failed, will retry on next login", zap.Error(err))
		}
	}
	return nil
}

// Login records the authenticated identity, merges the anonymous
// session's data into the account, and reloads each collection from the
// now-authoritative remote state. A merge failure does not fail the
// login; RetryMerge can finish it later.
func (c *Client) Login(ctx context.Context, userID, token string) error {
	if err := c.Identity.Login(ctx, userID, token); err != nil {
		return err
	}

	c.merge.Reset()
	if err := c.merge.MergeOnLogin(ctx); err != nil {
		c.logger.Warn("session merge failed after login", zap.Error(err))
	}
	return nil
}

// Logout clears the authenticated identity and every account-scoped
// local collection, then begins a fresh anonymous session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Identity.Logout(ctx); err != nil {
		return err
	}

	c.Cart.ClearLocal(ctx)
	c.Favorites.ClearLocal(ctx)
	c.Recent.Clear(ctx)
	c.merge.Reset()
	return nil
}

// MergeState reports the session merge state for the current login event
func (c *Client) MergeState() syncer.MergeState {
	return c.merge.State()
}

// RetryMerge re-attempts a merge that failed during Login or Start
func (c *Client) RetryMerge(ctx context.Context) error {
	return c.merge.MergeOnLogin(ctx)
}

// Close waits for in-flight remote reconciliation and flushes the logger
func (c *Client) Close() error {
	c.Cart.Flush()
	c.Favorites.Flush()
	c.Recent.Flush()

	if closer, ok := c.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("failed to close store", zap.Error(err))
		}
	}

	// Sync on stdout/stderr returns ENOTTY on some platforms; nothing
	// actionable either way.
	_ = c.logger.Sync()
	return nil
}
