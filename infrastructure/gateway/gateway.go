// Package gateway normalizes outbound HTTP calls to the admin API into a
// single error shape: network failures, protocol rejections and client-side
// validation failures each map to one error family, and every authenticated
// call carries the current access token.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"admincore/pkg/errors"
	"admincore/pkg/observability"
)

// TokenProvider supplies the access token for outbound calls. It reports a
// session-expired error when the session lifecycle manager says the session
// is expired, so the gateway can fail fast without dialing.
type TokenProvider interface {
	Token() (string, error)
}

// Operation describes a single outbound call
type Operation struct {
	Method string      `validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Path   string      `validate:"required,startswith=/"`
	Body   interface{} `validate:"-"`

	// Unauthenticated marks the login/refresh endpoints, which must not
	// carry a token
	Unauthenticated bool `validate:"-"`
}

// Config holds gateway settings
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Circuit breaker tuning
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold float64
	BreakerMinRequests      uint32
}

// DefaultConfig returns gateway defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                 baseURL,
		Timeout:                 15 * time.Second,
		BreakerMaxRequests:      5,
		BreakerInterval:         30 * time.Second,
		BreakerTimeout:          60 * time.Second,
		BreakerFailureThreshold: 0.8,
		BreakerMinRequests:      5,
	}
}

// Gateway executes operations against the admin API
type Gateway struct {
	baseURL  string
	client   *http.Client
	tokens   TokenProvider
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *observability.Collector
	tracer   trace.Tracer
}

// NewGateway creates a gateway. The circuit breaker trips on repeated
// network-level failures; protocol rejections below 500 are the server
// doing its job and never trip it.
func NewGateway(cfg Config, tokens TokenProvider, logger *zap.Logger, metrics *observability.Collector) *Gateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-gateway",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if appErr := errors.GetAppError(err); appErr != nil &&
				appErr.Type == errors.ErrorTypeProtocol && appErr.HTTPStatus < 500 {
				return true
			}
			return false
		},
	})

	return &Gateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		tokens:   tokens,
		breaker:  breaker,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("admincore.infrastructure.gateway"),
	}
}

// Execute performs the operation and returns the raw response body. Every
// error it returns belongs to exactly one family: validation errors never
// went on the wire, network errors got no response, protocol errors carry
// the server's status and message, and an expired session fails fast
// without a network call.
func (g *Gateway) Execute(ctx context.Context, op Operation) (json.RawMessage, error) {
	ctx, span := g.tracer.Start(ctx, "Gateway.Execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", op.Method),
			attribute.String("http.path", op.Path),
		),
	)
	defer span.End()

	if err := g.validate.Struct(op); err != nil {
		span.SetStatus(codes.Error, "invalid operation")
		return nil, errors.NewValidationError(fmt.Sprintf("invalid operation: %v", err))
	}

	var token string
	if !op.Unauthenticated {
		var err error
		token, err = g.tokens.Token()
		if err != nil {
			g.record(op.Method, "session_expired")
			span.RecordError(err)
			span.SetStatus(codes.Error, "session expired")
			return nil, err
		}
	}

	var payload []byte
	if op.Body != nil {
		var err error
		payload, err = json.Marshal(op.Body)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.do(ctx, op, token, payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		switch err {
		case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
			g.record(op.Method, "breaker_open")
			return nil, errors.NewNetworkError("remote gateway unavailable: circuit open", err)
		}
		if errors.IsAppError(err) {
			return nil, err
		}
		g.record(op.Method, "network")
		return nil, errors.NewNetworkError("request failed", err)
	}

	g.record(op.Method, "success")
	span.SetStatus(codes.Ok, "")
	return result.(json.RawMessage), nil
}

// do performs the HTTP round trip inside the breaker
func (g *Gateway) do(ctx context.Context, op Operation, token string, payload []byte) (interface{}, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, g.baseURL+op.Path, body)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Includes timeouts and context cancellation: no response reached us
		g.record(op.Method, "network")
		return nil, errors.NewNetworkError("no response from server", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		g.record(op.Method, "network")
		return nil, errors.NewNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.record(op.Method, "protocol")
		g.logger.Debug("Server rejected request",
			zap.String("method", op.Method),
			zap.String("path", op.Path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, errors.NewProtocolError(resp.StatusCode, serverMessage(raw))
	}

	return json.RawMessage(raw), nil
}

// record increments the gateway request counter when metrics are wired
func (g *Gateway) record(method, outcome string) {
	if g.metrics != nil {
		g.metrics.GatewayRequests.WithLabelValues(method, outcome).Inc()
	}
}

// serverMessage extracts the human-readable message from an error response
// body, falling back to the raw body
func serverMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}

	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
