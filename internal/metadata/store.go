// Package metadata holds the reference tables used to populate filter options and to validate selections across
// filters.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/flovouin/dashviz/internal/cache"
	"github.com/flovouin/dashviz/internal/filters"
)

// Returned (possibly wrapped) by loaders when a table does not exist.
var ErrTableNotFound = errors.New("metadata table not found")

// The maximum number of tables fetched concurrently by `Store.Load`.
const maxConcurrentLoads = 4

// A named reference table. Rows must not be modified once the table has been loaded.
type Table struct {
	Name string           `json:"name"`
	Rows []filters.Record `json:"rows"`
}

// Fetches tables from their source.
type Loader interface {
	LoadTable(ctx context.Context, name string) (Table, error)
}

// Holds metadata tables for the lifetime of a page. Each table is fetched once; reads never block and always see a
// complete snapshot of the tables.
type Store struct {
	loader   Loader
	cache    cache.Cache   // Optional cache persisting tables across stores.
	cacheTTL time.Duration // The TTL of cached tables.
	logger   *zap.Logger

	tables atomic.Pointer[map[string]Table] // Replaced as a whole on each write.
	mu     sync.Mutex                       // Serializes writers.
	group  singleflight.Group               // Coalesces concurrent fetches of the same table.
}

// Configures a `Store`.
type StoreOption func(*Store)

// Persists fetched tables in the given cache, and reads them from it before calling the loader.
func WithCache(c cache.Cache, ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// Sets the logger used to report cache failures.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Creates an empty store fetching tables using `loader`.
func NewStore(loader Loader, opts ...StoreOption) *Store {
	s := &Store{
		loader: loader,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}

	empty := make(map[string]Table)
	s.tables.Store(&empty)

	return s
}

// Returns a loaded table.
func (s *Store) Table(name string) (Table, bool) {
	t, ok := (*s.tables.Load())[name]
	return t, ok
}

// Returns the names of the loaded tables, sorted.
func (s *Store) Names() []string {
	tables := *s.tables.Load()

	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// Fetches the given tables if they have not been loaded yet. Tables are fetched concurrently. A failure to load one
// table does not prevent the others from being loaded; all errors are returned joined.
func (s *Store) Load(ctx context.Context, names ...string) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentLoads)

	var mu sync.Mutex
	var errs []error

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		name := name

		if _, ok := s.Table(name); ok {
			continue
		}

		g.Go(func() error {
			if _, err := s.fetch(ctx, name, true); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("loading table %q: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Fetches a table again from the loader, bypassing the cache, and replaces the loaded copy.
// Readers holding the previous table are not affected.
func (s *Store) Refresh(ctx context.Context, name string) (Table, error) {
	return s.fetch(ctx, name, false)
}

// Removes a table from the cache, so that the next store loading it calls the loader.
// The copy held by this store is kept.
func (s *Store) Invalidate(ctx context.Context, name string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, cacheKey(name))
}

// Fetches a table, from the cache if allowed, and installs it in the store.
//
// Concurrent fetches of the same table share one load, which is not cancelled with the context of the caller that
// started it. Each caller stops waiting when its own context is done.
func (s *Store) fetch(ctx context.Context, name string, useCache bool) (Table, error) {
	key := name
	if !useCache {
		key = "refresh:" + name
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		if useCache {
			if t, ok := s.Table(name); ok {
				return t, nil
			}
			if t, ok := s.readCache(loadCtx, name); ok {
				s.install(t)
				return t, nil
			}
		}

		t, err := s.loader.LoadTable(loadCtx, name)
		if err != nil {
			return Table{}, err
		}
		t.Name = name

		s.install(t)
		s.writeCache(loadCtx, t)

		return t, nil
	})

	select {
	case <-ctx.Done():
		return Table{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Table{}, res.Err
		}
		return res.Val.(Table), nil
	}
}

// Adds or replaces a table using copy-on-write.
func (s *Store) install(t Table) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.tables.Load()
	next := make(map[string]Table, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[t.Name] = t

	s.tables.Store(&next)
}

func cacheKey(name string) string {
	return "metadata:" + name
}

func (s *Store) readCache(ctx context.Context, name string) (Table, bool) {
	if s.cache == nil {
		return Table{}, false
	}

	b, ok, err := s.cache.Get(ctx, cacheKey(name))
	if err != nil {
		s.logger.Warn("reading metadata table from cache", zap.String("table", name), zap.Error(err))
		return Table{}, false
	}
	if !ok {
		return Table{}, false
	}

	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		s.logger.Warn("decoding cached metadata table", zap.String("table", name), zap.Error(err))
		return Table{}, false
	}
	t.Name = name

	return t, true
}

func (s *Store) writeCache(ctx context.Context, t Table) {
	if s.cache == nil {
		return
	}

	b, err := json.Marshal(t)
	if err != nil {
		s.logger.Warn("encoding metadata table for cache", zap.String("table", t.Name), zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, cacheKey(t.Name), b, s.cacheTTL); err != nil {
		s.logger.Warn("writing metadata table to cache", zap.String("table", t.Name), zap.Error(err))
	}
}
