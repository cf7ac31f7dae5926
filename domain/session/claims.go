package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingExpiry = errors.New("token has no expiry claim")
)

// Claims represents the JWT claims carried by an access token
type Claims struct {
	UserID      string   `json:"sub"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// ParseSession builds a Session from a token pair issued by the server. The
// signature is not verified here: the server signed the token and the client
// only needs the claims (identity, roles, expiry) to manage its lifecycle.
func ParseSession(accessToken, refreshToken string) (Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Session{}, ErrInvalidToken
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return Session{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return Session{}, ErrMissingExpiry
	}

	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
		User: User{
			ID:          claims.UserID,
			Email:       claims.Email,
			Roles:       claims.Roles,
			Permissions: claims.Permissions,
		},
	}, nil
}

// User is the read-only identity projection of the current session
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Session holds the authentication tokens and identity for one login. It is
// owned exclusively by the Manager; consumers only ever see a Snapshot.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}
