package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"admincore/domain/session"
	"admincore/pkg/errors"
)

// tokenResponse is the wire shape of the auth endpoints
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthClient implements session.Authenticator over the gateway's
// unauthenticated auth endpoints
type AuthClient struct {
	gw     *Gateway
	logger *zap.Logger
}

// NewAuthClient creates the auth client
func NewAuthClient(gw *Gateway, logger *zap.Logger) *AuthClient {
	return &AuthClient{gw: gw, logger: logger}
}

// Login exchanges credentials for a token pair
func (c *AuthClient) Login(ctx context.Context, creds session.Credentials) (session.Session, error) {
	raw, err := c.gw.Execute(ctx, Operation{
		Method:          http.MethodPost,
		Path:            "/auth/login",
		Body:            creds,
		Unauthenticated: true,
	})
	if err != nil {
		return session.Session{}, err
	}
	return c.decode(raw)
}

// Refresh exchanges the refresh token for a new token pair
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (session.Session, error) {
	raw, err := c.gw.Execute(ctx, Operation{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refresh_token": refreshToken},
		// The access token may already be moments from expiry; the refresh
		// token in the body is the credential here
		Unauthenticated: true,
	})
	if err != nil {
		return session.Session{}, err
	}
	return c.decode(raw)
}

func (c *AuthClient) decode(raw json.RawMessage) (session.Session, error) {
	var tokens tokenResponse
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return session.Session{}, errors.NewInternalError("malformed token response").WithCause(err)
	}

	sess, err := session.ParseSession(tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return session.Session{}, errors.NewInternalError("unusable access token").WithCause(err)
	}
	return sess, nil
}
