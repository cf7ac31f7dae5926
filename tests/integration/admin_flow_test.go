package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/application/dataclient"
	"admincore/application/mutation"
	"admincore/domain/cache"
	"admincore/domain/optimistic"
	"admincore/domain/session"
	"admincore/infrastructure/gateway"
	"admincore/infrastructure/storage"
	apperrors "admincore/pkg/errors"
	"admincore/pkg/sched"
)

// fakeAPI is a scripted admin API backing the whole stack. Token expiry is
// issued relative to the test clock so refresh scheduling is deterministic.
type fakeAPI struct {
	mu           sync.Mutex
	now          func() time.Time
	failCreates  bool
	failRefresh  bool
	createdID    string
	lastAuth     string
	refreshCalls int
}

func (a *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds session.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		a.writeTokens(t, w)
	})

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.refreshCalls++
		fail := a.failRefresh
		a.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"refresh token revoked"}`))
			return
		}
		a.writeTokens(t, w)
	})

	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.lastAuth = r.Header.Get("Authorization")
		fail := a.failCreates
		a.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"email already taken"}`))
			return
		}

		var fields map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     a.createdID,
			"fields": fields,
		})
	})

	return mux
}

func (a *fakeAPI) writeTokens(t *testing.T, w http.ResponseWriter) {
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		UserID:      "u1",
		Email:       "admin@example.com",
		Roles:       []string{"admin"},
		Permissions: []string{"users:write"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(a.now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  access,
		"refresh_token": "refresh-1",
	})
}

// stack wires the full client the way the container does, against a test
// server and a fake clock
type stack struct {
	client   *dataclient.Client
	store    *cache.Store
	sessions *session.Manager
	monitor  *session.Monitor
	clock    *sched.Fake
}

func newStack(t *testing.T, api *fakeAPI) *stack {
	t.Helper()
	logger := zap.NewNop()
	clock := sched.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	api.now = clock.Now

	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	store := cache.NewStore(5*time.Minute, clock, nil, logger)
	engine := optimistic.NewEngine(store, logger)

	var sessions *session.Manager
	tokens := tokenFunc(func() (string, error) { return sessions.Token() })
	gw := gateway.NewGateway(gateway.DefaultConfig(server.URL), tokens, logger, nil)
	auth := gateway.NewAuthClient(gw, logger)

	fileStore, err := storage.NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"), logger)
	require.NoError(t, err)

	sessions = session.NewManager(auth, fileStore, store, clock, 5*time.Minute, logger, nil)
	monitor := session.NewMonitor(session.MonitorConfig{
		SessionTimeout: 30 * time.Minute,
		WarningWindow:  5 * time.Minute,
		TickInterval:   30 * time.Second,
	}, sessions, clock, logger)

	return &stack{
		client:   dataclient.New(store, engine, gw, sessions, monitor, logger, nil),
		store:    store,
		sessions: sessions,
		monitor:  monitor,
		clock:    clock,
	}
}

type tokenFunc func() (string, error)

func (f tokenFunc) Token() (string, error) { return f() }

func login(t *testing.T, s *stack) {
	t.Helper()
	err := s.client.Login(context.Background(), session.Credentials{
		Email:    "admin@example.com",
		Password: "correct",
	})
	require.NoError(t, err)
}

func TestAdminFlow_LoginMutateCommit(t *testing.T) {
	api := &fakeAPI{createdID: "u42"}
	s := newStack(t, api)

	login(t, s)
	require.True(t, s.client.HasRole("admin"))
	require.True(t, s.client.HasPermission("users:write"))

	// A list view primes the cache after its initial fetch
	_, err := s.client.Prime("users", nil, []cache.Record{
		{ID: "u1", Fields: map[string]interface{}{"name": "alice"}},
	})
	require.NoError(t, err)

	var events []cache.Event
	unsubscribe, err := s.client.Subscribe("users", nil, func(e cache.Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	defer unsubscribe()

	result, err := s.client.IssueMutation(context.Background(), mutation.CreateCommand{
		Targets: []mutation.Target{{Resource: "users"}},
		Path:    "/users",
		Fields:  map[string]interface{}{"name": "bob"},
	})

	require.NoError(t, err)
	assert.Equal(t, mutation.StateCommitted, result.State)

	// The committed entry carries the server-assigned ID and is flagged for
	// background refresh
	entry, found, err := s.client.ReadCache("users", nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entry.Data, 2)
	assert.Equal(t, "u42", entry.Data[1].ID)
	assert.True(t, entry.Invalidated)

	// Subscribers saw the optimistic apply, the reconcile and the
	// invalidation
	require.NotEmpty(t, events)
	assert.Equal(t, cache.EventInvalidated, events[len(events)-1].Type)

	// The mutation went out with the bearer token from login
	assert.Contains(t, api.lastAuth, "Bearer ")
}

func TestAdminFlow_FailedMutationRollsBack(t *testing.T) {
	api := &fakeAPI{failCreates: true}
	s := newStack(t, api)
	login(t, s)

	_, err := s.client.Prime("users", nil, []cache.Record{
		{ID: "u1", Fields: map[string]interface{}{"name": "alice"}},
	})
	require.NoError(t, err)

	result, err := s.client.IssueMutation(context.Background(), mutation.CreateCommand{
		Targets: []mutation.Target{{Resource: "users"}},
		Path:    "/users",
		Fields:  map[string]interface{}{"name": "bob"},
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsProtocol(err))
	assert.Equal(t, mutation.StateRolledBack, result.State)

	// The speculative record is gone and the original list is intact
	entry, found, err := s.client.ReadCache("users", nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, entry.Data, 1)
	assert.Equal(t, "u1", entry.Data[0].ID)
	assert.False(t, entry.Invalidated)
}

func TestAdminFlow_RefreshFailureExpiresSession(t *testing.T) {
	api := &fakeAPI{createdID: "u42", failRefresh: true}
	s := newStack(t, api)
	login(t, s)

	_, err := s.client.Prime("users", nil, []cache.Record{{ID: "u1"}})
	require.NoError(t, err)

	// Stay active so the idle timeout never interferes; the scheduled
	// refresh fires at expiry minus the five-minute lead and fails. There
	// is no stale-session mode.
	s.clock.Advance(20 * time.Minute)
	s.client.NotifyActivity()
	s.clock.Advance(20 * time.Minute)
	s.client.NotifyActivity()
	s.clock.Advance(15 * time.Minute)

	assert.Equal(t, session.StateExpired, s.client.Session().State)
	assert.Equal(t, 0, s.store.Len())
	assert.False(t, s.client.HasRole("admin"))

	// Authenticated calls now fail fast without dialing
	_, err = s.client.IssueMutation(context.Background(), mutation.DeleteCommand{
		Targets: []mutation.Target{{Resource: "users"}},
		Path:    "/users/u1",
		ID:      "u1",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
}

func TestAdminFlow_LogoutClearsEverything(t *testing.T) {
	api := &fakeAPI{createdID: "u42"}
	s := newStack(t, api)
	login(t, s)

	_, err := s.client.Prime("users", nil, []cache.Record{{ID: "u1"}})
	require.NoError(t, err)

	s.client.Logout()

	assert.Equal(t, session.StateUnauthenticated, s.client.Session().State)
	assert.Equal(t, 0, s.store.Len())

	// Neither the refresh timer nor the inactivity ticker survives logout
	s.clock.Advance(2 * time.Hour)
	assert.Equal(t, session.StateUnauthenticated, s.client.Session().State)
	assert.Zero(t, api.refreshCalls)
}

func TestAdminFlow_IdleTimeoutForcesLogout(t *testing.T) {
	api := &fakeAPI{createdID: "u42"}
	s := newStack(t, api)
	login(t, s)

	_, err := s.client.Prime("users", nil, []cache.Record{{ID: "u1"}})
	require.NoError(t, err)

	// Keep the session fresh enough that the token refresh never interferes
	s.clock.Advance(20 * time.Minute)
	require.Equal(t, session.StateAuthenticated, s.client.Session().State)

	// Ten more idle minutes reach the 30 minute timeout
	s.clock.Advance(10 * time.Minute)

	assert.Equal(t, session.StateUnauthenticated, s.client.Session().State)
	assert.Equal(t, 0, s.store.Len())
}

func TestAdminFlow_ActivityKeepsSessionAlive(t *testing.T) {
	api := &fakeAPI{createdID: "u42"}
	s := newStack(t, api)
	login(t, s)

	// Interact every 20 minutes; the idle timeout never fires
	for i := 0; i < 3; i++ {
		s.clock.Advance(20 * time.Minute)
		s.client.NotifyActivity()
	}

	assert.Equal(t, session.StateAuthenticated, s.client.Session().State)
}

func TestAdminFlow_SessionRestoreAcrossRestart(t *testing.T) {
	api := &fakeAPI{createdID: "u42"}
	logger := zap.NewNop()
	clock := sched.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	api.now = clock.Now
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)
	sessionPath := filepath.Join(t.TempDir(), "session.json")

	build := func() *session.Manager {
		store := cache.NewStore(5*time.Minute, clock, nil, logger)
		var sessions *session.Manager
		tokens := tokenFunc(func() (string, error) { return sessions.Token() })
		gw := gateway.NewGateway(gateway.DefaultConfig(server.URL), tokens, logger, nil)
		fileStore, err := storage.NewFileSessionStore(sessionPath, logger)
		require.NoError(t, err)
		sessions = session.NewManager(gateway.NewAuthClient(gw, logger), fileStore, store, clock, 5*time.Minute, logger, nil)
		return sessions
	}

	first := build()
	require.NoError(t, first.Login(context.Background(), session.Credentials{
		Email:    "admin@example.com",
		Password: "correct",
	}))

	// A new process picks the persisted session up without re-login
	second := build()
	second.Restore()

	assert.Equal(t, session.StateAuthenticated, second.State())
	assert.True(t, second.HasRole("admin"))
}
