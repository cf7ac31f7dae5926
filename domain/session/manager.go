package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"admincore/pkg/errors"
	"admincore/pkg/observability"
	"admincore/pkg/sched"
)

// State represents the session lifecycle state
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAuthenticating  State = "AUTHENTICATING"
	StateAuthenticated   State = "AUTHENTICATED"
	StateRefreshing      State = "REFRESHING"
	StateExpired         State = "EXPIRED"
)

// Credentials carry a login request
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Snapshot is the read-only projection of the current session exposed to
// consumers. It never contains tokens.
type Snapshot struct {
	State     State     `json:"state"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Authenticator performs the unauthenticated login and refresh calls against
// the remote API
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
}

// PersistentStore keeps the session alive across process restarts
type PersistentStore interface {
	Save(session Session) error
	Load() (Session, bool, error)
	Wipe() error
}

// CacheClearer is the slice of the cache store the manager needs on logout
type CacheClearer interface {
	Clear()
}

// Manager owns the AuthSession and its lifecycle state. It schedules a
// refresh ahead of token expiry and cascades logout across the cache store
// and the persistent session store. One instance is constructed per
// application and passed explicitly; there is no ambient global session.
type Manager struct {
	mu           sync.Mutex
	state        State
	session      Session
	refreshTimer sched.Timer

	auth        Authenticator
	store       PersistentStore
	cache       CacheClearer
	scheduler   sched.Scheduler
	refreshLead time.Duration
	logger      *zap.Logger
	metrics     *observability.Collector
}

// NewManager creates a session lifecycle manager. refreshLead is how long
// before token expiry the refresh fires; firing strictly before expiry
// avoids a window where every in-flight request is rejected.
func NewManager(
	auth Authenticator,
	store PersistentStore,
	cache CacheClearer,
	scheduler sched.Scheduler,
	refreshLead time.Duration,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Manager {
	return &Manager{
		state:       StateUnauthenticated,
		auth:        auth,
		store:       store,
		cache:       cache,
		scheduler:   scheduler,
		refreshLead: refreshLead,
		logger:      logger,
		metrics:     metrics,
	}
}

// Restore loads a persisted session, if any, so a process restart does not
// force re-login. A token already past its expiry is discarded.
func (m *Manager) Restore() {
	session, found, err := m.store.Load()
	if err != nil {
		m.logger.Warn("Failed to load persisted session", zap.Error(err))
		return
	}
	if !found {
		return
	}

	if !session.ExpiresAt.After(m.scheduler.Now()) {
		m.logger.Info("Discarding expired persisted session",
			zap.String("user_id", session.User.ID),
		)
		if err := m.store.Wipe(); err != nil {
			m.logger.Warn("Failed to wipe expired session", zap.Error(err))
		}
		return
	}

	m.mu.Lock()
	m.session = session
	m.state = StateAuthenticated
	m.armRefreshLocked()
	m.mu.Unlock()

	m.logger.Info("Session restored",
		zap.String("user_id", session.User.ID),
		zap.Time("expires_at", session.ExpiresAt),
	)
}

// Login authenticates against the remote API, stores the token pair and
// schedules the pre-expiry refresh
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	if m.state != StateUnauthenticated && m.state != StateExpired {
		state := m.state
		m.mu.Unlock()
		return errors.NewValidationError("login not allowed in state " + string(state))
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	session, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.mu.Lock()
		m.state = StateUnauthenticated
		m.mu.Unlock()
		m.logger.Warn("Login failed", zap.Error(err))
		return errors.Wrap(err, "login failed")
	}

	m.mu.Lock()
	m.session = session
	m.state = StateAuthenticated
	m.armRefreshLocked()
	m.mu.Unlock()

	if err := m.store.Save(session); err != nil {
		m.logger.Warn("Failed to persist session", zap.Error(err))
	}

	m.logger.Info("Login succeeded",
		zap.String("user_id", session.User.ID),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return nil
}

// Refresh exchanges the refresh token for a new token pair. On failure the
// session is unconditionally torn down: there is no degraded stale-session
// mode, the state becomes expired and stays so until a fresh login.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		state := m.state
		m.mu.Unlock()
		return errors.NewValidationError("refresh not allowed in state " + string(state))
	}
	m.state = StateRefreshing
	refreshToken := m.session.RefreshToken
	m.mu.Unlock()

	session, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		if m.metrics != nil {
			m.metrics.SessionRefreshes.WithLabelValues("failure").Inc()
		}
		m.logger.Warn("Refresh failed, expiring session", zap.Error(err))
		m.teardown(StateExpired, "refresh_failed")
		return errors.NewSessionExpiredError().WithCause(err)
	}

	m.mu.Lock()
	m.session = session
	m.state = StateAuthenticated
	m.armRefreshLocked()
	m.mu.Unlock()

	if err := m.store.Save(session); err != nil {
		m.logger.Warn("Failed to persist refreshed session", zap.Error(err))
	}

	if m.metrics != nil {
		m.metrics.SessionRefreshes.WithLabelValues("success").Inc()
	}
	m.logger.Info("Session refreshed", zap.Time("expires_at", session.ExpiresAt))
	return nil
}

// Logout clears tokens, wipes the persisted session, clears the cache store
// and cancels the refresh timer. Safe to call from any state.
func (m *Manager) Logout() {
	m.teardown(StateUnauthenticated, "explicit")
}

// teardown performs the logout cascade and leaves the manager in finalState
func (m *Manager) teardown(finalState State, reason string) {
	m.mu.Lock()
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.session = Session{}
	m.state = finalState
	m.mu.Unlock()

	if err := m.store.Wipe(); err != nil {
		m.logger.Warn("Failed to wipe persisted session", zap.Error(err))
	}
	m.cache.Clear()

	if m.metrics != nil {
		m.metrics.SessionLogouts.WithLabelValues(reason).Inc()
	}
	m.logger.Info("Session torn down",
		zap.String("reason", reason),
		zap.String("state", string(finalState)),
	)
}

// armRefreshLocked schedules the refresh timer for expiresAt minus the lead
// time; callers must hold the lock
func (m *Manager) armRefreshLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
	}

	delay := m.session.ExpiresAt.Sub(m.scheduler.Now()) - m.refreshLead
	if delay < 0 {
		delay = 0
	}
	m.refreshTimer = m.scheduler.AfterFunc(delay, func() {
		// Errors are already logged and reflected in state by Refresh
		_ = m.Refresh(context.Background())
	})
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the read-only projection of the current session
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{State: m.state}
	if m.state == StateAuthenticated || m.state == StateRefreshing {
		snap.User = m.session.User
		snap.ExpiresAt = m.session.ExpiresAt
	}
	return snap
}

// Token returns the access token for outbound calls. An expired session
// fails fast so the gateway never dials with a token the server will reject.
// An unauthenticated session yields an empty token: the only calls it can
// make are the unauthenticated auth endpoints.
func (m *Manager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateExpired:
		return "", errors.NewSessionExpiredError()
	case StateAuthenticated, StateRefreshing:
		return m.session.AccessToken, nil
	default:
		return "", nil
	}
}

// HasRole reports whether the current session carries the role. Pure read,
// never triggers a network call.
func (m *Manager) HasRole(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated && m.state != StateRefreshing {
		return false
	}
	for _, role := range m.session.User.Roles {
		if role == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the current session carries the permission.
// Pure read, never triggers a network call.
func (m *Manager) HasPermission(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated && m.state != StateRefreshing {
		return false
	}
	for _, permission := range m.session.User.Permissions {
		if permission == name {
			return true
		}
	}
	return false
}
