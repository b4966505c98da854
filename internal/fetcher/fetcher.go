// Package fetcher keeps the data of visualisations in sync with their query parameters.
package fetcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/flovouin/dashviz/dashapi"
)

// The debounce delay used when none is configured.
const DefaultDebounce = 400 * time.Millisecond

// Performs GET requests against the API. `*dashapi.Client` implements this interface.
type Transport interface {
	Get(ctx context.Context, path string, opts dashapi.GetOptions) (*dashapi.Response, error)
}

// Configures a `Fetcher`.
type Options struct {
	Debounce time.Duration // The delay between the last parameter change and the request. Defaults to `DefaultDebounce`.
	Timeout  time.Duration // The maximum duration of a request. No timeout if zero.
	Logger   *zap.Logger
}

// Manages the watchers of all the visualisations of a page.
type Fetcher struct {
	transport Transport
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[string]*Watcher
	closed   bool
}

// Creates a fetcher sending requests through the given transport.
func New(transport Transport, opts Options) *Fetcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Fetcher{
		transport: transport,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		watchers:  make(map[string]*Watcher),
	}
}

// Returns the key of the watcher of a visualisation.
func WatcherKey(name string) string {
	return slug.Make(name)
}

// Returns the watcher of the visualisation, creating it if needed, and updates it with the visualisation's parameters.
// Once the fetcher is closed, the returned watcher is closed and never sends requests.
func (f *Fetcher) Watch(vis Visualisation) *Watcher {
	key := WatcherKey(vis.Name)

	f.mu.Lock()
	w, ok := f.watchers[key]
	if !ok {
		w = newWatcher(f.ctx, key, f.transport, f.opts, f.remove)
		if f.closed {
			f.mu.Unlock()
			w.Close()
			return w
		}
		f.watchers[key] = w
	}
	f.mu.Unlock()

	w.Update(vis)
	return w
}

// Returns the watcher of a visualisation, if it exists.
func (f *Fetcher) Watcher(name string) (*Watcher, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.watchers[WatcherKey(name)]
	return w, ok
}

// Returns the keys of the open watchers, sorted.
func (f *Fetcher) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.watchers))
	for k := range f.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Closes all the watchers, and prevents new ones from being opened.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	watchers := make([]*Watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		watchers = append(watchers, w)
	}
	f.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
	f.cancel()
}

// Forgets a closed watcher.
func (f *Fetcher) remove(w *Watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, ok := f.watchers[w.key]; ok && current == w {
		delete(f.watchers, w.key)
	}
}
