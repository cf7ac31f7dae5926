package di

import (
	"sync"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"admincore/application/dataclient"
	"admincore/application/mutation"
	"admincore/domain/cache"
	"admincore/domain/optimistic"
	"admincore/domain/session"
	"admincore/infrastructure/config"
	"admincore/infrastructure/gateway"
	"admincore/infrastructure/storage"
	"admincore/interfaces/devtools"
	"admincore/pkg/observability"
	"admincore/pkg/sched"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Scheduler    sched.Scheduler
	Store        *cache.Store
	Engine       *optimistic.Engine
	Gateway      *gateway.Gateway
	AuthClient   *gateway.AuthClient
	SessionStore *storage.FileSessionStore
	Sessions     *session.Manager
	Monitor      *session.Monitor
	Hub          *devtools.Hub
	Client       *dataclient.Client
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideScheduler,
	ProvideMetrics,
	ProvideStore,
	ProvideEngine,
	ProvideTokenBridge,
	ProvideGateway,
	ProvideAuthClient,
	ProvideSessionStore,
	ProvideSessionManager,
	ProvideHub,
	ProvideMonitor,
	ProvideClient,
	wire.Struct(new(Container), "*"),
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideScheduler creates the wall-clock scheduler
func ProvideScheduler() sched.Scheduler {
	return sched.NewReal()
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideStore creates the cache store
func ProvideStore(cfg *config.Config, scheduler sched.Scheduler, metrics *observability.Collector, logger *zap.Logger) *cache.Store {
	return cache.NewStore(cfg.StaleAfter, scheduler, metrics, logger)
}

// ProvideEngine creates the optimistic update engine
func ProvideEngine(store *cache.Store, logger *zap.Logger) *optimistic.Engine {
	return optimistic.NewEngine(store, logger)
}

// TokenBridge breaks the construction cycle between the gateway (which
// annotates outbound calls with the current token) and the session manager
// (whose authenticator calls through that same gateway). The gateway is
// built against the bridge; the manager is bound into it afterwards.
type TokenBridge struct {
	mu       sync.RWMutex
	provider gateway.TokenProvider
}

// Token implements gateway.TokenProvider
func (b *TokenBridge) Token() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.provider == nil {
		return "", nil
	}
	return b.provider.Token()
}

// Bind attaches the real token provider
func (b *TokenBridge) Bind(provider gateway.TokenProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.provider = provider
}

// ProvideTokenBridge creates the token bridge
func ProvideTokenBridge() *TokenBridge {
	return &TokenBridge{}
}

// ProvideGateway creates the remote gateway
func ProvideGateway(cfg *config.Config, bridge *TokenBridge, logger *zap.Logger, metrics *observability.Collector) *gateway.Gateway {
	gwCfg := gateway.DefaultConfig(cfg.GatewayBaseURL)
	gwCfg.Timeout = cfg.GatewayTimeout
	return gateway.NewGateway(gwCfg, bridge, logger, metrics)
}

// ProvideAuthClient creates the auth client over the gateway
func ProvideAuthClient(gw *gateway.Gateway, logger *zap.Logger) *gateway.AuthClient {
	return gateway.NewAuthClient(gw, logger)
}

// ProvideSessionStore creates the durable session store
func ProvideSessionStore(cfg *config.Config, logger *zap.Logger) (*storage.FileSessionStore, error) {
	return storage.NewFileSessionStore(cfg.SessionFilePath, logger)
}

// ProvideSessionManager creates the session lifecycle manager and binds it
// into the token bridge so the gateway starts annotating calls
func ProvideSessionManager(
	auth *gateway.AuthClient,
	store *storage.FileSessionStore,
	cacheStore *cache.Store,
	scheduler sched.Scheduler,
	bridge *TokenBridge,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) *session.Manager {
	manager := session.NewManager(auth, store, cacheStore, scheduler, cfg.RefreshLeadTime, logger, metrics)
	bridge.Bind(manager)
	return manager
}

// ProvideHub creates the devtools event hub and attaches it to the store
func ProvideHub(store *cache.Store, logger *zap.Logger) *devtools.Hub {
	hub := devtools.NewHub(logger)
	hub.Attach(store)
	return hub
}

// ProvideMonitor creates the inactivity monitor, surfacing its warnings on
// the devtools stream
func ProvideMonitor(
	cfg *config.Config,
	sessions *session.Manager,
	scheduler sched.Scheduler,
	hub *devtools.Hub,
	logger *zap.Logger,
) *session.Monitor {
	return session.NewMonitor(session.MonitorConfig{
		SessionTimeout: cfg.SessionTimeout,
		WarningWindow:  cfg.WarningWindow,
		TickInterval:   cfg.TickInterval,
		OnWarning: func(remaining time.Duration) {
			hub.Broadcast("idle_warning", map[string]interface{}{
				"remaining_seconds": int(remaining.Seconds()),
			})
		},
		OnWarningDismissed: func() {
			hub.Broadcast("idle_warning_dismissed", nil)
		},
	}, sessions, scheduler, logger)
}

// ProvideClient creates the consumer facade
func ProvideClient(
	store *cache.Store,
	engine *optimistic.Engine,
	gw *gateway.Gateway,
	sessions *session.Manager,
	monitor *session.Monitor,
	logger *zap.Logger,
	metrics *observability.Collector,
) *dataclient.Client {
	return dataclient.New(store, engine, gw, sessions, monitor, logger, metrics)
}

var _ mutation.Remote = (*gateway.Gateway)(nil)
