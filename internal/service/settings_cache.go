package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"familyregistry/internal/logger"
	"familyregistry/internal/models"
)

// DefaultSettingsTTL is how long a loaded settings table is served from memory
const DefaultSettingsTTL = 5 * time.Minute

// maxReloadRounds bounds how often a read retries a reload that an
// Invalidate superseded
const maxReloadRounds = 3

// reloadTimeout bounds a shared reload, which outlives the caller that started it
const reloadTimeout = 30 * time.Second

var (
	// ErrSettingsUnavailable is returned when the settings table cannot be loaded
	ErrSettingsUnavailable = errors.New("settings unavailable")

	errReloadSuperseded = errors.New("settings reload superseded by invalidate")
)

// SettingsStore is the backing table of a SettingsCache
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, key, value string, description *string) (*models.Setting, error)
}

// Bus carries settings changes between processes sharing one database
type Bus interface {
	Publish(ctx context.Context, key string) error
	Subscribe(ctx context.Context, handler func(key string)) error
}

// Options configures a SettingsCache. Zero values select the defaults.
type Options struct {
	TTL time.Duration
	Now func() time.Time
	Bus Bus
	Log *logger.Logger
}

// SettingsCache serves settings from memory and reloads the whole table once
// the TTL has elapsed. Writes go to the store first and then straight into
// memory, so a process always reads its own writes.
type SettingsCache struct {
	store SettingsStore
	ttl   time.Duration
	now   func() time.Time
	bus   Bus
	log   *logger.Logger

	group singleflight.Group
	// writeMu orders concurrent Sets so memory matches the last store write
	writeMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]models.Setting
	expires time.Time
	// epoch changes on every Invalidate; a reload started in an older epoch
	// must not install its result
	epoch uint64
	// gen numbers writes; pending holds the generation of writes a running
	// reload may not have seen
	gen     uint64
	pending map[string]uint64
}

// NewSettingsCache creates a cache in front of store. The cache starts expired.
func NewSettingsCache(store SettingsStore, opts Options) *SettingsCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSettingsTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &SettingsCache{
		store:   store,
		ttl:     opts.TTL,
		now:     opts.Now,
		bus:     opts.Bus,
		log:     opts.Log.With("service", "SettingsCache"),
		entries: make(map[string]models.Setting),
		pending: make(map[string]uint64),
	}
}

// Start subscribes to the bus so writes made by other processes invalidate
// this cache. A long-running host calls it once at startup with a context
// that lives as long as the cache; short-lived tools that only write settings
// can skip it, since Set publishes without a subscription. It is a no-op
// without a bus.
func (c *SettingsCache) Start(ctx context.Context) error {
	if c.bus == nil {
		return nil
	}
	return c.bus.Subscribe(ctx, func(key string) {
		c.log.Debug("settings changed elsewhere, invalidating", "key", key)
		c.Invalidate()
	})
}

// Get returns the value stored under key
func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return "", false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[key]
	return s.Value, ok, nil
}

// GetAll returns every setting ordered by key
func (c *SettingsCache) GetAll(ctx context.Context) ([]models.Setting, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	all := make([]models.Setting, 0, len(c.entries))
	for _, s := range c.entries {
		all = append(all, s)
	}
	c.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })
	return all, nil
}

// Set writes a setting through to the store and into memory. A nil
// description keeps the stored one.
func (c *SettingsCache) Set(ctx context.Context, key, value string, description *string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stored, err := c.store.UpsertSetting(ctx, key, value, description)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if stored == nil {
		stored = &models.Setting{Key: key, Value: value, Description: description}
	}

	c.mu.Lock()
	c.gen++
	c.entries[key] = *stored
	c.pending[key] = c.gen
	c.mu.Unlock()

	if c.bus != nil {
		if err := c.bus.Publish(ctx, key); err != nil {
			c.log.Warn("failed to publish settings change", "key", key, "error", err)
		}
	}
	return nil
}

// Invalidate drops the in-memory table so the next read reloads it
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]models.Setting)
	c.pending = make(map[string]uint64)
	c.expires = time.Time{}
	c.epoch++
	c.mu.Unlock()

	c.group.Forget("reload")
}

// GetBool reads a boolean setting, falling back to def when the setting is
// missing, malformed or unreadable
func (c *SettingsCache) GetBool(ctx context.Context, key string, def bool) bool {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		c.log.Warn("using default for setting", "key", key, "error", err)
		return def
	}
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.log.Warn("malformed boolean setting", "key", key, "value", raw)
		return def
	}
	return v
}

// GetInt reads an integer setting, falling back to def when the setting is
// missing, malformed or unreadable
func (c *SettingsCache) GetInt(ctx context.Context, key string, def int) int {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		c.log.Warn("using default for setting", "key", key, "error", err)
		return def
	}
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.log.Warn("malformed integer setting", "key", key, "value", raw)
		return def
	}
	return v
}

func (c *SettingsCache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Before(c.expires)
}

// ensureFresh reloads the table when it has expired. Concurrent callers share
// one reload; it runs detached from any single caller's context, and each
// caller stops waiting when its own ctx is done.
func (c *SettingsCache) ensureFresh(ctx context.Context) error {
	for round := 0; round < maxReloadRounds; round++ {
		if c.fresh() {
			return nil
		}
		ch := c.group.DoChan("reload", func() (interface{}, error) {
			reloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
			defer cancel()
			return nil, c.reload(reloadCtx)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrSettingsUnavailable, ctx.Err())
		case res = <-ch:
		}

		if errors.Is(res.Err, errReloadSuperseded) {
			continue
		}
		if res.Err != nil {
			return res.Err
		}
		if res.Shared {
			c.log.Debug("joined in-flight settings reload")
		}
		return nil
	}
	c.log.Warn("settings reload kept being invalidated", "rounds", maxReloadRounds)
	return fmt.Errorf("%w: %w", ErrSettingsUnavailable, errReloadSuperseded)
}

func (c *SettingsCache) reload(ctx context.Context) error {
	c.mu.RLock()
	epoch, startGen := c.epoch, c.gen
	c.mu.RUnlock()

	settings, err := c.store.ListSettings(ctx)
	if err != nil {
		c.log.Warn("settings reload failed, keeping last known values", "error", err)
		return fmt.Errorf("%w: %w", ErrSettingsUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return errReloadSuperseded
	}

	entries := make(map[string]models.Setting, len(settings))
	for _, s := range settings {
		entries[s.Key] = s
	}
	for key, gen := range c.pending {
		if gen <= startGen {
			// the store read started after this write completed
			delete(c.pending, key)
			continue
		}
		if s, ok := c.entries[key]; ok {
			entries[key] = s
		}
	}

	c.entries = entries
	c.expires = c.now().Add(c.ttl)
	c.log.Debug("settings reloaded", "count", len(entries))
	return nil
}
