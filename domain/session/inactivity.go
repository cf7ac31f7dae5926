package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"admincore/pkg/sched"
)

// Lifecycle is the slice of the Manager the inactivity monitor drives
type Lifecycle interface {
	Logout()
	Refresh(ctx context.Context) error
}

// MonitorConfig configures the inactivity monitor
type MonitorConfig struct {
	// SessionTimeout is the idle duration after which logout is forced
	SessionTimeout time.Duration
	// WarningWindow is how long before the timeout the countdown warning
	// becomes active
	WarningWindow time.Duration
	// TickInterval is how often idle time is evaluated
	TickInterval time.Duration

	// OnWarning is invoked when the warning becomes active, with the time
	// remaining until forced logout
	OnWarning func(remaining time.Duration)
	// OnWarningDismissed is invoked when activity cancels an active warning
	OnWarningDismissed func()
}

// Monitor forces logout after an idle timeout, surfacing a countdown warning
// during the grace window first. It is a pure timer-driven state machine: it
// makes no network calls of its own, and its only external effects are
// invoking Logout or, on an explicit extend, Refresh.
type Monitor struct {
	mu            sync.Mutex
	lastActivity  time.Time
	warningActive bool
	loggedOut     bool
	tick          sched.Timer
	stopped       bool

	cfg       MonitorConfig
	lifecycle Lifecycle
	scheduler sched.Scheduler
	logger    *zap.Logger
}

// NewMonitor creates an inactivity monitor. It does not start ticking until
// Start is called.
func NewMonitor(cfg MonitorConfig, lifecycle Lifecycle, scheduler sched.Scheduler, logger *zap.Logger) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	return &Monitor{
		cfg:       cfg,
		lifecycle: lifecycle,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start begins idle tracking, counting from now
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastActivity = m.scheduler.Now()
	m.warningActive = false
	m.loggedOut = false
	m.stopped = false
	m.armTickLocked()
}

// Stop halts idle tracking
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
}

// NotifyActivity records user interaction, resetting the idle clock and
// dismissing an active warning
func (m *Monitor) NotifyActivity() {
	m.mu.Lock()
	if m.stopped || m.loggedOut {
		m.mu.Unlock()
		return
	}
	m.lastActivity = m.scheduler.Now()
	dismissed := m.warningActive
	m.warningActive = false
	m.mu.Unlock()

	if dismissed && m.cfg.OnWarningDismissed != nil {
		m.cfg.OnWarningDismissed()
	}
}

// ExtendSession handles the explicit "stay signed in" action: it resets the
// idle clock and refreshes the token so the extension actually outlives the
// current token
func (m *Monitor) ExtendSession(ctx context.Context) error {
	m.NotifyActivity()
	return m.lifecycle.Refresh(ctx)
}

// WarningActive reports whether the countdown warning is currently showing
func (m *Monitor) WarningActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningActive
}

// onTick evaluates elapsed idle time and advances the warning/logout state
func (m *Monitor) onTick() {
	m.mu.Lock()
	if m.stopped || m.loggedOut {
		m.mu.Unlock()
		return
	}

	idle := m.scheduler.Now().Sub(m.lastActivity)

	if idle >= m.cfg.SessionTimeout {
		m.loggedOut = true
		m.warningActive = false
		if m.tick != nil {
			m.tick.Stop()
			m.tick = nil
		}
		m.mu.Unlock()

		m.logger.Info("Idle timeout reached, forcing logout",
			zap.Duration("idle", idle),
		)
		m.lifecycle.Logout()
		return
	}

	surfaceWarning := false
	var remaining time.Duration
	if idle >= m.cfg.SessionTimeout-m.cfg.WarningWindow && !m.warningActive {
		m.warningActive = true
		surfaceWarning = true
		remaining = m.cfg.SessionTimeout - idle
	}
	m.armTickLocked()
	m.mu.Unlock()

	if surfaceWarning {
		m.logger.Info("Idle warning active",
			zap.Duration("idle", idle),
			zap.Duration("remaining", remaining),
		)
		if m.cfg.OnWarning != nil {
			m.cfg.OnWarning(remaining)
		}
	}
}

// armTickLocked schedules the next tick; callers must hold the lock
func (m *Monitor) armTickLocked() {
	if m.tick != nil {
		m.tick.Stop()
	}
	m.tick = m.scheduler.AfterFunc(m.cfg.TickInterval, m.onTick)
}
