// Package client keeps a persisted, last-known-good copy of the resource
// snapshot and reconciles it with the server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	DefaultPollInterval = 30 * time.Second
	sessionMaxAge       = 24 * time.Hour
)

// StoredSession is the persisted login of the local user.
type StoredSession struct {
	domain.AuthResult
	LoginTime time.Time `json:"loginTime"`
}

// Cache serves the last complete snapshot received from the server. A
// failed sync leaves it in place and marks it stale.
type Cache struct {
	store  BlobStore
	remote Syncer
	logger *slog.Logger
	now    func() time.Time

	state   atomic.Pointer[domain.AppState]
	stale   atomic.Bool
	syncMu  sync.Mutex
	subMu   sync.RWMutex
	subs    map[uint64]func(domain.AppState)
	nextSub uint64
}

func NewCache(store BlobStore, remote Syncer, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		remote: remote,
		logger: logging.OrDefault(logger),
		now:    time.Now,
		subs:   make(map[uint64]func(domain.AppState)),
	}
}

func (c *Cache) loggerWith(ctx context.Context, operation string) *slog.Logger {
	return logging.Component(ctx, c.logger, "ClientCache", operation)
}

// Load restores the persisted snapshot. A missing or unreadable blob leaves
// the cache empty.
func (c *Cache) Load(ctx context.Context) error {
	raw, err := c.store.Get(ctx, StateKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cached state: %w", err)
	}
	var state domain.AppState
	if err := json.Unmarshal(raw, &state); err != nil || state.Resources == nil {
		c.loggerWith(ctx, "Load").WarnContext(ctx, "discarding unreadable cached state", "error", err)
		return nil
	}
	c.state.Store(&state)
	return nil
}

// Snapshot returns the cached state and whether one is loaded.
func (c *Cache) Snapshot() (domain.AppState, bool) {
	s := c.state.Load()
	if s == nil {
		return domain.AppState{}, false
	}
	return *s, true
}

// Version is the cached version, 0 when nothing is cached.
func (c *Cache) Version() int64 {
	if s := c.state.Load(); s != nil {
		return s.Version
	}
	return 0
}

// Stale reports whether the last sync attempt failed.
func (c *Cache) Stale() bool { return c.stale.Load() }

// Subscribe registers fn for every snapshot swap and staleness change.
func (c *Cache) Subscribe(fn func(domain.AppState)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Cache) notify() {
	state, _ := c.Snapshot()
	c.subMu.RLock()
	fns := make([]func(domain.AppState), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()
	for _, fn := range fns {
		fn(state)
	}
}

// Sync reconciles with the server. The whole server list replaces the
// cached one, or nothing changes.
func (c *Cache) Sync(ctx context.Context) (domain.ReconcileAction, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	logger := c.loggerWith(ctx, "Sync")

	res, err := c.remote.Sync(ctx, c.Version())
	if err != nil {
		wasStale := c.stale.Swap(true)
		logger.WarnContext(ctx, "sync failed, serving cached snapshot", "error", err, "version", c.Version())
		if !wasStale {
			c.notify()
		}
		return "", err
	}

	wasStale := c.stale.Swap(false)
	if res.Action == domain.ReconcileNoChanges && c.state.Load() != nil {
		if wasStale {
			c.notify()
		}
		return res.Action, nil
	}
	if res.Action == domain.ReconcileConflict {
		logger.WarnContext(ctx, "cached snapshot ahead of server, taking server copy",
			"cached_version", c.Version(), "server_version", res.Version)
	}

	next := &domain.AppState{Resources: res.Data, Version: res.Version, LastUpdated: c.now().UTC()}
	if err := c.persist(ctx, next); err != nil {
		logger.ErrorContext(ctx, "failed to persist snapshot", "error", err)
	}
	c.state.Store(next)
	c.notify()
	return res.Action, nil
}

func (c *Cache) persist(ctx context.Context, state *domain.AppState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, StateKey, raw)
}

// Poll syncs immediately and then every interval until ctx is done.
func (c *Cache) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	_, _ = c.Sync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.Sync(ctx)
		}
	}
}

func (c *Cache) SaveSession(ctx context.Context, auth domain.AuthResult) error {
	raw, err := json.Marshal(StoredSession{AuthResult: auth, LoginTime: c.now().UTC()})
	if err != nil {
		return err
	}
	return c.store.Put(ctx, SessionKey, raw)
}

// Session returns the stored login. Logins older than a day are removed
// and reported as absent.
func (c *Cache) Session(ctx context.Context) (StoredSession, bool) {
	raw, err := c.store.Get(ctx, SessionKey)
	if err != nil {
		return StoredSession{}, false
	}
	var s StoredSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return StoredSession{}, false
	}
	if c.now().Sub(s.LoginTime) > sessionMaxAge {
		_ = c.store.Delete(ctx, SessionKey)
		return StoredSession{}, false
	}
	return s, true
}

// Reset drops the cached snapshot and the stored session.
func (c *Cache) Reset(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	err := errors.Join(
		c.store.Delete(ctx, SessionKey),
		c.store.Delete(ctx, StateKey),
	)
	c.state.Store(nil)
	c.stale.Store(false)
	c.notify()
	return err
}
