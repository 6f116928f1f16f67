package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"familyregistry/internal/models"
)

// memorySettings is an in-memory settings table
type memorySettings struct {
	mu    sync.Mutex
	rows  map[string]models.Setting
	loads atomic.Int32
	err   error
	// onList runs on every ListSettings call
	onList func()

	// when set, ListSettings snapshots the rows, signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func newMemorySettings() *memorySettings {
	return &memorySettings{rows: make(map[string]models.Setting)}
}

func (m *memorySettings) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.rows[key]
	s.Key, s.Value = key, value
	m.rows[key] = s
}

func (m *memorySettings) ListSettings(ctx context.Context) ([]models.Setting, error) {
	m.loads.Add(1)
	m.mu.Lock()
	err, onList := m.err, m.onList
	out := make([]models.Setting, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	m.mu.Unlock()

	if onList != nil {
		onList()
	}
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *memorySettings) UpsertSetting(ctx context.Context, key, value string, description *string) (*models.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.rows[key]
	s.Key, s.Value = key, value
	if description != nil {
		s.Description = description
	}
	m.rows[key] = s
	return &s, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(store *memorySettings) (*SettingsCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewSettingsCache(store, Options{TTL: 5 * time.Minute, Now: clock.Now}), clock
}

func mustGet(t *testing.T, c *SettingsCache, key string) string {
	t.Helper()
	v, _, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	return v
}

func TestSettingsCacheTTL(t *testing.T) {
	store := newMemorySettings()
	cache, clock := newTestCache(store)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "v1", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := mustGet(t, cache, "k"); got != "v1" {
		t.Errorf("Get() after Set = %q, want v1", got)
	}

	store.put("k", "v2")
	clock.Advance(4 * time.Minute)
	if got := mustGet(t, cache, "k"); got != "v1" {
		t.Errorf("Get() within TTL = %q, want stale v1", got)
	}

	clock.Advance(time.Minute)
	if got := mustGet(t, cache, "k"); got != "v2" {
		t.Errorf("Get() after TTL = %q, want v2", got)
	}
}

func TestSettingsCacheWriteThrough(t *testing.T) {
	store := newMemorySettings()
	cache, clock := newTestCache(store)
	ctx := context.Background()

	values := []string{"a", "b", "c", "d"}
	for i, v := range values {
		if i == 2 {
			clock.Advance(10 * time.Minute)
		}
		if err := cache.Set(ctx, "k", v, nil); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := mustGet(t, cache, "k"); got != v {
			t.Errorf("Get() after Set(%q) = %q", v, got)
		}
	}
}

func TestSettingsCacheLoadsOncePerWindow(t *testing.T) {
	store := newMemorySettings()
	store.put("a", "1")
	store.put("b", "2")
	cache, clock := newTestCache(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustGet(t, cache, "a")
		if _, err := cache.GetAll(ctx); err != nil {
			t.Fatalf("GetAll() error = %v", err)
		}
	}
	if n := store.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}

	clock.Advance(5 * time.Minute)
	mustGet(t, cache, "a")
	if n := store.loads.Load(); n != 2 {
		t.Errorf("loads after expiry = %d, want 2", n)
	}
}

func TestSettingsCacheGetAllKeepsDescriptions(t *testing.T) {
	store := newMemorySettings()
	cache, _ := newTestCache(store)
	ctx := context.Background()
	desc := "Shown on the login page"

	cache.Set(ctx, "banner", "hello", &desc)
	cache.Set(ctx, "banner", "bye", nil)
	cache.Set(ctx, "alpha", "1", nil)

	all, err := cache.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 2 || all[0].Key != "alpha" || all[1].Key != "banner" {
		t.Fatalf("GetAll() = %+v, want alpha then banner", all)
	}
	if all[1].Value != "bye" || all[1].Description == nil || *all[1].Description != desc {
		t.Errorf("banner = %+v, want value bye with the original description", all[1])
	}
}

func TestSettingsCacheInvalidate(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "old")
	cache, _ := newTestCache(store)

	mustGet(t, cache, "k")
	store.put("k", "new")
	cache.Invalidate()

	if got := mustGet(t, cache, "k"); got != "new" {
		t.Errorf("Get() after Invalidate = %q, want new", got)
	}
	if n := store.loads.Load(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
}

func TestSettingsCacheFailedReload(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "v")
	cache, clock := newTestCache(store)
	mustGet(t, cache, "k")

	store.mu.Lock()
	store.err = errors.New("connection refused")
	store.mu.Unlock()
	clock.Advance(6 * time.Minute)

	if _, _, err := cache.Get(context.Background(), "k"); !errors.Is(err, ErrSettingsUnavailable) {
		t.Fatalf("Get() error = %v, want ErrSettingsUnavailable", err)
	}

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	if got := mustGet(t, cache, "k"); got != "v" {
		t.Errorf("Get() after recovery = %q, want v", got)
	}
	if n := store.loads.Load(); n != 3 {
		t.Errorf("loads = %d, want a retry after the failed reload", n)
	}
}

func TestSettingsCacheConcurrentReloadsCollapse(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "v")
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	cache, _ := newTestCache(store)

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cache.Get(context.Background(), "k"); err != nil {
				errs <- err
			}
		}()
	}

	<-store.entered
	// give the other readers time to join the in-flight reload
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Get() error = %v", err)
	}
	if n := store.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestSettingsCacheSetDuringReload(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "before")
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	cache, _ := newTestCache(store)
	ctx := context.Background()

	done := make(chan string)
	go func() {
		v, _, _ := cache.Get(ctx, "k")
		done <- v
	}()

	<-store.entered
	// the reload has already read "before"
	if err := cache.Set(ctx, "k", "after", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	close(store.release)
	<-done

	if got := mustGet(t, cache, "k"); got != "after" {
		t.Errorf("Get() after concurrent reload = %q, want after", got)
	}
}

func TestSettingsCacheReloadOutlivesCancelledStarter(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "v")
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	cache, _ := newTestCache(store)

	starterCtx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, _, err := cache.Get(starterCtx, "k")
		starterErr <- err
	}()
	<-store.entered

	type result struct {
		value string
		err   error
	}
	joined := make(chan result, 1)
	go func() {
		v, _, err := cache.Get(context.Background(), "k")
		joined <- result{v, err}
	}()
	// give the second reader time to join the in-flight reload
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-starterErr; !errors.Is(err, ErrSettingsUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Get() error = %v, want ErrSettingsUnavailable wrapping context.Canceled", err)
	}

	close(store.release)
	got := <-joined
	if got.err != nil || got.value != "v" {
		t.Errorf("joined Get() = %q, %v, want v", got.value, got.err)
	}
	if n := store.loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestSettingsCacheReportsRepeatedlySupersededReload(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "v")
	cache, _ := newTestCache(store)
	ctx := context.Background()

	store.mu.Lock()
	store.onList = cache.Invalidate
	store.mu.Unlock()

	if _, ok, err := cache.Get(ctx, "k"); !errors.Is(err, ErrSettingsUnavailable) || ok {
		t.Fatalf("Get() = %v, %v, want ErrSettingsUnavailable", ok, err)
	}
	if n := store.loads.Load(); n != maxReloadRounds {
		t.Errorf("loads = %d, want %d", n, maxReloadRounds)
	}

	store.mu.Lock()
	store.onList = nil
	store.mu.Unlock()
	if got := mustGet(t, cache, "k"); got != "v" {
		t.Errorf("Get() once invalidations stop = %q, want v", got)
	}
}

func TestSettingsCacheTypedGetters(t *testing.T) {
	store := newMemorySettings()
	store.put("maintenance_mode", "true")
	store.put("max_members", "12")
	store.put("broken", "yes please")
	cache, _ := newTestCache(store)
	ctx := context.Background()

	if !cache.GetBool(ctx, "maintenance_mode", false) {
		t.Error("GetBool(maintenance_mode) = false, want true")
	}
	if !cache.GetBool(ctx, "missing", true) {
		t.Error("GetBool(missing) should return the default")
	}
	if cache.GetBool(ctx, "broken", false) {
		t.Error("GetBool(broken) should return the default")
	}
	if got := cache.GetInt(ctx, "max_members", 0); got != 12 {
		t.Errorf("GetInt(max_members) = %d, want 12", got)
	}
	if got := cache.GetInt(ctx, "broken", 7); got != 7 {
		t.Errorf("GetInt(broken) = %d, want 7", got)
	}
}

type recordingBus struct {
	mu        sync.Mutex
	published []string
	handler   func(string)
}

func (b *recordingBus) Publish(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, key)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, handler func(string)) error {
	b.handler = handler
	return nil
}

func TestSettingsCacheBus(t *testing.T) {
	store := newMemorySettings()
	store.put("k", "v1")
	bus := &recordingBus{}
	clock := &fakeClock{now: time.Now()}
	cache := NewSettingsCache(store, Options{Now: clock.Now, Bus: bus})
	ctx := context.Background()

	if err := cache.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := cache.Set(ctx, "k", "v2", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(bus.published) != 1 || bus.published[0] != "k" {
		t.Errorf("published = %v, want [k]", bus.published)
	}

	mustGet(t, cache, "k")
	store.put("k", "from another process")
	bus.handler("k")

	if got := mustGet(t, cache, "k"); got != "from another process" {
		t.Errorf("Get() after bus message = %q", got)
	}
}
