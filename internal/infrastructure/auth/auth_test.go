package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, h.Verify(hash, "correct horse"))
	assert.True(t, errors.Is(h.Verify(hash, "wrong horse"), shared.ErrInvalidCredentials))
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", "featherlingo", time.Hour)

	token, expires, err := m.Issue("user-1", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", "featherlingo", time.Hour)
	token, _, err := m.Issue("user-1", "user")
	require.NoError(t, err)

	other := NewTokenManager("another-secret-value!", "featherlingo", time.Hour)
	_, err = other.Verify(token)
	assert.True(t, shared.IsUnauthenticated(err))

	wrongIssuer := NewTokenManager("0123456789abcdef0123", "someone-else", time.Hour)
	_, err = wrongIssuer.Verify(token)
	assert.True(t, shared.IsUnauthenticated(err))

	_, err = m.Verify("")
	assert.True(t, errors.Is(err, shared.ErrMissingToken))

	_, err = m.Verify("not.a.jwt")
	assert.True(t, shared.IsUnauthenticated(err))
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123", "featherlingo", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue("user-1", "user")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	assert.True(t, shared.IsUnauthenticated(err))
}
