// Package identity models the current actor of the commerce client: an
// anonymous visitor identified by a client-generated session id, or an
// authenticated user identified by a user id and an access token. Exactly
// one identity is active at a time; the Resolver owns the transitions.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the identity variant
type Kind string

const (
	KindAnonymous     Kind = "ANONYMOUS"
	KindAuthenticated Kind = "AUTHENTICATED"
)

// IsValid checks if the kind is a valid Kind
func (k Kind) IsValid() bool {
	switch k {
	case KindAnonymous, KindAuthenticated:
		return true
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Identity is a tagged variant: Anonymous(sessionID) or
// Authenticated(userID, token).
type Identity struct {
	kind      Kind
	sessionID string
	userID    string
	token     string
}

// Anonymous constructs an anonymous identity for the given session id
func Anonymous(sessionID string) Identity {
	return Identity{kind: KindAnonymous, sessionID: sessionID}
}

// Authenticated constructs an authenticated identity
func Authenticated(userID, token string) Identity {
	return Identity{kind: KindAuthenticated, userID: userID, token: token}
}

// Kind returns the identity variant
func (id Identity) Kind() Kind {
	return id.kind
}

// IsAuthenticated reports whether the identity is authenticated
func (id Identity) IsAuthenticated() bool {
	return id.kind == KindAuthenticated
}

// SessionID returns the anonymous session id, or "" when authenticated
func (id Identity) SessionID() string {
	return id.sessionID
}

// UserID returns the authenticated user id, or "" when anonymous
func (id Identity) UserID() string {
	return id.userID
}

// Token returns the access token, or "" when anonymous
func (id Identity) Token() string {
	return id.token
}

// AnonymousSession represents a not-yet-authenticated visitor's session.
// The id is client-generated and stable for the lifetime of the anonymous
// visit; it is destroyed after a successful merge into an account.
type AnonymousSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAnonymousSession mints a fresh session with a random id
func NewAnonymousSession() AnonymousSession {
	return AnonymousSession{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}
