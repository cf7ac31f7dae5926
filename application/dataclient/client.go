// Package dataclient is the single entry point the surrounding UI code uses
// to reach the data-consistency layer: CRUD screens issue mutations through
// it, list and detail views read and subscribe through it, route guards ask
// it about roles and permissions, and global input listeners feed it
// activity signals.
package dataclient

import (
	"context"

	"go.uber.org/zap"

	"admincore/application/mutation"
	"admincore/domain/cache"
	"admincore/domain/optimistic"
	"admincore/domain/session"
	"admincore/pkg/common"
	"admincore/pkg/observability"
)

// Client ties the cache store, optimistic engine, remote gateway and
// session lifecycle together behind the consumer-facing operations
type Client struct {
	store    *cache.Store
	engine   *optimistic.Engine
	remote   mutation.Remote
	sessions *session.Manager
	monitor  *session.Monitor
	logger   *zap.Logger
	metrics  *observability.Collector
}

// New creates the facade
func New(
	store *cache.Store,
	engine *optimistic.Engine,
	remote mutation.Remote,
	sessions *session.Manager,
	monitor *session.Monitor,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Client {
	return &Client{
		store:    store,
		engine:   engine,
		remote:   remote,
		sessions: sessions,
		monitor:  monitor,
		logger:   logger,
		metrics:  metrics,
	}
}

// IssueMutation runs one mutation end to end through a fresh pipeline.
// The signed-in user's ID is stamped onto the context so pipeline and
// gateway log lines can be attributed. Concurrent calls against
// overlapping keys are safe; ordering between them is resolved by the
// cache's version-conflict rule.
func (c *Client) IssueMutation(ctx context.Context, cmd mutation.Command) (mutation.Result, error) {
	if userID := c.sessions.Snapshot().User.ID; userID != "" {
		ctx = common.WithUserID(ctx, userID)
	}
	pipeline := mutation.NewPipeline(cmd, c.store, c.engine, c.remote, c.logger, c.metrics)
	return pipeline.Run(ctx)
}

// ReadCache returns the current entry for a resource query, if cached
func (c *Client) ReadCache(resource string, params map[string]interface{}) (cache.Entry, bool, error) {
	key, err := cache.NewKey(resource, params)
	if err != nil {
		return cache.Entry{}, false, err
	}
	entry, found := c.store.Get(key)
	return entry, found, nil
}

// Prime stores freshly fetched data for a resource query. List and detail
// views call this after a refetch triggered by a miss or an invalidation.
func (c *Client) Prime(resource string, params map[string]interface{}, data []cache.Record) (cache.Entry, error) {
	key, err := cache.NewKey(resource, params)
	if err != nil {
		return cache.Entry{}, err
	}
	return c.store.Set(key, data), nil
}

// Subscribe registers a callback for changes to a resource query and
// returns the unsubscribe handle
func (c *Client) Subscribe(resource string, params map[string]interface{}, fn cache.Subscriber) (func(), error) {
	key, err := cache.NewKey(resource, params)
	if err != nil {
		return nil, err
	}
	return c.store.Subscribe(key, fn), nil
}

// Login authenticates and starts inactivity tracking
func (c *Client) Login(ctx context.Context, creds session.Credentials) error {
	if err := c.sessions.Login(ctx, creds); err != nil {
		return err
	}
	c.monitor.Start()
	return nil
}

// Logout tears the session down and stops inactivity tracking
func (c *Client) Logout() {
	c.monitor.Stop()
	c.sessions.Logout()
}

// HasPermission reports whether the current session carries the permission
func (c *Client) HasPermission(name string) bool {
	return c.sessions.HasPermission(name)
}

// HasRole reports whether the current session carries the role
func (c *Client) HasRole(name string) bool {
	return c.sessions.HasRole(name)
}

// NotifyActivity feeds a user-interaction signal to the inactivity monitor
func (c *Client) NotifyActivity() {
	c.monitor.NotifyActivity()
}

// ExtendSession handles the explicit "stay signed in" action from the idle
// warning dialog
func (c *Client) ExtendSession(ctx context.Context) error {
	return c.monitor.ExtendSession(ctx)
}

// Session returns the read-only projection of the current session
func (c *Client) Session() session.Snapshot {
	return c.sessions.Snapshot()
}
