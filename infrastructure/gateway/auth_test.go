package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/domain/session"
	apperrors "admincore/pkg/errors"
)

func accessToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		UserID: "u1",
		Email:  "admin@example.com",
		Roles:  []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestAuthClient_Login(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	access := accessToken(t, expiry)

	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-1",
		})
	}))
	defer server.Close()

	client := NewAuthClient(newTestGateway(server.URL, staticTokens{}), zap.NewNop())
	sess, err := client.Login(context.Background(), session.Credentials{
		Email:    "admin@example.com",
		Password: "pw",
	})

	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", gotBody["email"])
	assert.Equal(t, "pw", gotBody["password"])
	assert.Equal(t, access, sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)
	assert.True(t, sess.ExpiresAt.Equal(expiry))
	assert.Equal(t, "u1", sess.User.ID)
}

func TestAuthClient_Login_RejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer server.Close()

	client := NewAuthClient(newTestGateway(server.URL, staticTokens{}), zap.NewNop())
	_, err := client.Login(context.Background(), session.Credentials{Email: "a@b.c", Password: "no"})

	require.Error(t, err)
	assert.True(t, apperrors.IsProtocol(err))
}

func TestAuthClient_Refresh(t *testing.T) {
	access := accessToken(t, time.Now().Add(time.Hour))

	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-2",
		})
	}))
	defer server.Close()

	client := NewAuthClient(newTestGateway(server.URL, staticTokens{}), zap.NewNop())
	sess, err := client.Refresh(context.Background(), "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, "refresh-1", gotBody["refresh_token"])
	assert.Equal(t, "refresh-2", sess.RefreshToken)
}

func TestAuthClient_MalformedTokenResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"not-a-jwt","refresh_token":"r"}`))
	}))
	defer server.Close()

	client := NewAuthClient(newTestGateway(server.URL, staticTokens{}), zap.NewNop())
	_, err := client.Login(context.Background(), session.Credentials{Email: "a@b.c", Password: "pw"})

	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrorTypeInternal, appErr.Type)
}
