package fetcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flovouin/dashviz/dashapi"
	"github.com/flovouin/dashviz/internal/query"
)

// A visualisation whose data is fetched from the API.
type Visualisation struct {
	Name         string       // The name of the visualisation, unique within a page.
	DataPath     string       // The API path serving the data.
	QueryParams  query.Params // The compiled parameters. Replaced, never modified, when filters change.
	RequiresAuth bool         // Whether requests must carry credentials.
}

// Two visualisations with the same identity share their data; changing identity resets it.
func (v Visualisation) identity() string {
	return v.Name + "\x00" + v.DataPath + "\x00" + strconv.FormatBool(v.RequiresAuth)
}

// Keeps the data of one visualisation in sync with its query parameters.
//
// Parameter changes are debounced, requests are only sent once all required parameters have a value, and only when
// the parameters differ from those of the last request. A new request cancels the previous one, and responses to
// superseded requests are discarded.
type Watcher struct {
	key       string
	transport Transport
	debounce  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	onClose   func(*Watcher)

	ctx    context.Context // Cancelled on close. Parent of all request contexts.
	cancel context.CancelFunc
	wg     sync.WaitGroup // Tracks request goroutines.

	mu            sync.Mutex
	identity      string
	result        Result
	seq           uint64             // The sequence number of the last dispatched request.
	dispatchedKey string             // The parameters key of the last dispatched request.
	inflight      context.CancelFunc // Cancels the request in flight, if any.
	timer         *time.Timer        // The pending debounce timer, if any.
	timerGen      uint64             // Incremented whenever the pending timer is replaced or stopped.
	pendingKey    string
	pendingVis    Visualisation
	changed       chan struct{} // Closed and replaced on every change.
	closed        bool
}

func newWatcher(parent context.Context, key string, transport Transport, opts Options, onClose func(*Watcher)) *Watcher {
	ctx, cancel := context.WithCancel(parent)

	return &Watcher{
		key:       key,
		transport: transport,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		logger:    opts.Logger.With(zap.String("visualisation", key)),
		onClose:   onClose,
		ctx:       ctx,
		cancel:    cancel,
		changed:   make(chan struct{}),
	}
}

// Returns the key identifying the watcher within its fetcher.
func (w *Watcher) Key() string {
	return w.key
}

// Returns the current data of the visualisation.
func (w *Watcher) State() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Returns a channel closed on the next change of state, or once the watcher is closed.
func (w *Watcher) Changed() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}

// Returns a channel closed once the watcher is closed.
func (w *Watcher) Done() <-chan struct{} {
	return w.ctx.Done()
}

// Re-evaluates the visualisation with newly compiled parameters, scheduling a request if needed.
func (w *Watcher) Update(vis Visualisation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if id := vis.identity(); id != w.identity {
		if len(w.identity) > 0 {
			w.logger.Debug("visualisation identity changed, resetting", zap.String("path", vis.DataPath))
			w.stopTimerLocked()
			w.abortLocked()
			w.dispatchedKey = ""
			w.result = Result{Seq: w.seq}
			w.notifyLocked()
		}
		w.identity = id
	}

	if !vis.QueryParams.Satisfied() {
		w.logger.Debug("waiting for required parameters")
		w.stopTimerLocked()
		return
	}

	key := vis.QueryParams.Key()
	if key == w.dispatchedKey {
		w.stopTimerLocked()
		return
	}
	if w.timer != nil && key == w.pendingKey {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerGen++
	gen := w.timerGen
	w.pendingKey = key
	w.pendingVis = vis
	w.timer = time.AfterFunc(w.debounce, func() {
		w.dispatch(gen)
	})
	w.notifyLocked()
}

// Waits until no request is pending or in flight, and returns the resulting state.
func (w *Watcher) Settle(ctx context.Context) (Result, error) {
	for {
		w.mu.Lock()
		busy := w.timer != nil || w.result.IsLoading()
		res := w.result
		changed := w.changed
		closed := w.closed
		w.mu.Unlock()

		if !busy || closed {
			return res, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// Stops the watcher: the pending request is dropped, the request in flight is cancelled, and the state is never
// updated again. Blocks until request goroutines have returned.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.stopTimerLocked()
	w.abortLocked()
	w.cancel()
	close(w.changed)
	w.mu.Unlock()

	w.wg.Wait()

	if w.onClose != nil {
		w.onClose(w)
	}
}

// Sends the request scheduled by the debounce timer of generation `gen`, unless it has been superseded.
func (w *Watcher) dispatch(gen uint64) {
	w.mu.Lock()
	if w.closed || gen != w.timerGen {
		w.mu.Unlock()
		return
	}

	vis := w.pendingVis
	w.timer = nil
	w.pendingKey = ""

	w.abortLocked()
	w.seq++
	seq := w.seq
	reqCtx, cancel := context.WithCancel(w.ctx)
	w.inflight = cancel
	w.dispatchedKey = vis.QueryParams.Key()

	w.result.Status = StatusLoading
	w.result.Err = nil
	w.result.Seq = seq
	w.notifyLocked()

	w.wg.Add(1)
	w.mu.Unlock()

	defer w.wg.Done()
	w.fetch(reqCtx, seq, vis)
}

// Performs a request and stores its result if it is still the latest one.
func (w *Watcher) fetch(reqCtx context.Context, seq uint64, vis Visualisation) {
	callCtx := reqCtx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(reqCtx, w.timeout)
		defer cancel()
	}

	values := vis.QueryParams.Values()
	logger := w.logger.With(zap.String("path", vis.DataPath), zap.Uint64("seq", seq))
	logger.Debug("fetching visualisation data", zap.Any("params", values))

	resp, err := w.transport.Get(callCtx, vis.DataPath, dashapi.GetOptions{
		Query:    values,
		SkipAuth: !vis.RequiresAuth,
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	// A cancelled request context means the request was superseded, the identity changed, or the watcher was closed.
	if w.closed || seq != w.seq || reqCtx.Err() != nil {
		logger.Debug("discarding stale response")
		return
	}

	if w.inflight != nil {
		w.inflight()
		w.inflight = nil
	}

	if err != nil {
		logger.Error("fetching visualisation data", zap.Any("params", values), zap.Error(err))
		w.result.Status = StatusError
		w.result.Err = err
		w.notifyLocked()
		return
	}

	empty := dashapi.IsEmptyPayload(resp.Data)
	if empty {
		logger.Warn("visualisation data is empty", zap.Any("params", values))
	}

	w.result = Result{
		Status: StatusSuccess,
		Data:   resp.Data,
		Empty:  empty,
		Params: vis.QueryParams,
		Seq:    seq,
	}
	w.notifyLocked()
}

func (w *Watcher) stopTimerLocked() {
	w.timerGen++
	w.pendingKey = ""
	if w.timer == nil {
		return
	}

	w.timer.Stop()
	w.timer = nil
	w.notifyLocked()
}

func (w *Watcher) abortLocked() {
	if w.inflight != nil {
		w.inflight()
		w.inflight = nil
	}
}

func (w *Watcher) notifyLocked() {
	if w.closed {
		return
	}
	close(w.changed)
	w.changed = make(chan struct{})
}
