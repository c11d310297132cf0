// Package store provides the durable key-value storage the sync core
// persists its snapshots into. The interface mirrors the platform storage
// primitive: no transactions across keys, and consumers must tolerate a
// missing or partially written value by treating it as empty.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no value exists for the key
var ErrKeyNotFound = errors.New("store: key not found")

// Well-known keys used by the sync core
const (
	KeyCart             = "commerce:cart"
	KeyFavorites        = "commerce:favorites"
	KeyAnonymousSession = "commerce:anonymous_session"
	KeyCredential       = "commerce:credential"
	KeyRecentlyViewed   = "commerce:recently_viewed"
)

// Store is the persistent local key-value store
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set writes the value for key
	Set(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
