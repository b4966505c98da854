package page

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/flovouin/dashviz/internal/fetcher"
	"github.com/flovouin/dashviz/internal/filters"
	"github.com/flovouin/dashviz/internal/metadata"
	"github.com/flovouin/dashviz/internal/validity"
)

// Binds the filter state of a page to the watchers of its visualisations.
type Session struct {
	page    *Page
	fetcher *fetcher.Fetcher
	store   *metadata.Store // Optional.
	logger  *zap.Logger

	mu       sync.Mutex
	initial  filters.State
	state    filters.State
	watchers map[string]*fetcher.Watcher // Keyed by visualisation name.
	closed   bool
}

// An option when creating a `Session`.
type SessionOption func(*Session)

// Resolves filter options against the tables of the given store.
func WithStore(store *metadata.Store) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// Starts the session from the given state instead of the filters' defaults.
func WithInitialState(state filters.State) SessionOption {
	return func(s *Session) {
		s.initial = state.Clone()
	}
}

func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Creates a session and schedules the initial fetch of every visualisation.
func NewSession(p *Page, f *fetcher.Fetcher, opts ...SessionOption) *Session {
	s := &Session{
		page:     p,
		fetcher:  f,
		logger:   zap.NewNop(),
		watchers: make(map[string]*fetcher.Watcher, len(p.Visualisations)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.initial == nil {
		s.initial = InitialState(p.Filters)
	}
	s.state = s.initial.Clone()

	s.mu.Lock()
	s.updateLocked()
	s.mu.Unlock()

	return s
}

// Returns the page of the session.
func (s *Session) Page() *Page {
	return s.page
}

// Returns the current filter state. It must not be modified.
func (s *Session) State() filters.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Applies an action to the filter state and propagates the new query parameters to the watchers.
// `ActionReset` actions without a state restore the initial state of the session.
func (s *Session) Dispatch(action Action) filters.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.state
	}

	if action.Kind == ActionReset && action.State == nil {
		action.State = s.initial
	}

	s.state = Reduce(s.state, action)
	s.updateLocked()

	return s.state
}

func (s *Session) updateLocked() {
	for _, vis := range s.page.CompileVisualisations(s.state) {
		s.logger.Debug("updating visualisation", zap.String("visualisation", vis.Name), zap.Any("params", vis.QueryParams.Values()))
		s.watchers[vis.Name] = s.fetcher.Watch(vis)
	}
}

// Loads the metadata tables referenced by the filters of the page.
func (s *Session) LoadMetadata(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Load(ctx, s.page.Tables()...)
}

// Returns the validity of the options of every filter given the current state.
// Without a store, filters backed by a metadata table have no valid option.
func (s *Session) Validity() validity.Result {
	var tables validity.TableSource = noTables{}
	if s.store != nil {
		tables = s.store
	}
	return validity.Resolve(s.page.Filters, s.State(), tables)
}

// Returns whether all the metadata tables referenced by the filters have been loaded. Always true without a store.
func (s *Session) Ready() bool {
	if s.store == nil {
		return true
	}
	for _, name := range s.page.Tables() {
		if _, ok := s.store.Table(name); !ok {
			return false
		}
	}
	return true
}

// Applies the local filters of a visualisation to records it has fetched.
func (s *Session) Scope(name string, records []filters.Record) []filters.Record {
	def, ok := s.page.Visualisation(name)
	if !ok {
		return records
	}

	var local []filters.Filter
	for _, f := range s.page.FiltersFor(def) {
		if f.Target == filters.TargetLocal {
			local = append(local, f)
		}
	}

	return filters.Scope(records, local, s.State(), s.Ready())
}

// Returns the watcher of a visualisation.
func (s *Session) Watcher(name string) (*fetcher.Watcher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watchers[name]
	return w, ok
}

// Returns the current data of every visualisation, keyed by name.
func (s *Session) Results() map[string]fetcher.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[string]fetcher.Result, len(s.watchers))
	for name, w := range s.watchers {
		results[name] = w.State()
	}
	return results
}

// Waits until no visualisation has a pending or in-flight request, and returns their data.
func (s *Session) Settle(ctx context.Context) (map[string]fetcher.Result, error) {
	s.mu.Lock()
	watchers := make(map[string]*fetcher.Watcher, len(s.watchers))
	for name, w := range s.watchers {
		watchers[name] = w
	}
	s.mu.Unlock()

	results := make(map[string]fetcher.Result, len(watchers))
	for name, w := range watchers {
		res, err := w.Settle(ctx)
		if err != nil {
			return nil, err
		}
		results[name] = res
	}
	return results, nil
}

// Closes the watchers of the session. The state can no longer be changed afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watchers := make([]*fetcher.Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
}

type noTables struct{}

func (noTables) Table(string) (metadata.Table, bool) {
	return metadata.Table{}, false
}
