package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParseSession_ExtractsClaims(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, Claims{
		UserID:      "u1",
		Email:       "admin@example.com",
		Roles:       []string{"admin"},
		Permissions: []string{"users:write"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	})

	sess, err := ParseSession(access, "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, access, sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)
	assert.True(t, sess.ExpiresAt.Equal(expiry))
	assert.Equal(t, "u1", sess.User.ID)
	assert.Equal(t, "admin@example.com", sess.User.Email)
	assert.Equal(t, []string{"admin"}, sess.User.Roles)
	assert.Equal(t, []string{"users:write"}, sess.User.Permissions)
}

func TestParseSession_EmptyToken(t *testing.T) {
	_, err := ParseSession("", "refresh")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseSession("   ", "refresh")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSession_MalformedToken(t *testing.T) {
	_, err := ParseSession("not-a-jwt", "refresh")
	assert.Error(t, err)
}

func TestParseSession_MissingExpiry(t *testing.T) {
	access := signedToken(t, Claims{UserID: "u1"})

	_, err := ParseSession(access, "refresh")
	assert.ErrorIs(t, err, ErrMissingExpiry)
}
