package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_IsValid(t *testing.T) {
	tests := []struct {
		kind    Kind
		isValid bool
	}{
		{KindAnonymous, true},
		{KindAuthenticated, true},
		{Kind("GUEST"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.kind.IsValid())
		})
	}
}

func TestIdentity_Variants(t *testing.T) {
	anon := Anonymous("sid-1")
	assert.Equal(t, KindAnonymous, anon.Kind())
	assert.False(t, anon.IsAuthenticated())
	assert.Equal(t, "sid-1", anon.SessionID())
	assert.Empty(t, anon.UserID())
	assert.Empty(t, anon.Token())

	auth := Authenticated("user-1", "token-1")
	assert.Equal(t, KindAuthenticated, auth.Kind())
	assert.True(t, auth.IsAuthenticated())
	assert.Equal(t, "user-1", auth.UserID())
	assert.Equal(t, "token-1", auth.Token())
	assert.Empty(t, auth.SessionID())
}

func TestNewAnonymousSession(t *testing.T) {
	first := NewAnonymousSession()
	second := NewAnonymousSession()

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}
