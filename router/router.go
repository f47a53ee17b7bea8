package router

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jizhuozhi/go-future"
	cuckoo "github.com/linvon/cuckoo-filter"

	"github.com/mvent/mvent/mverr"
	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/stream"
	"github.com/mvent/mvent/telemetry"
	"github.com/mvent/mvent/watch"
)

// Router is a request/response and streaming rendezvous point attached to
// one pool. Every Router attached to the same pool that registers a Route
// for a path can serve requests for it, whether the caller is local or in
// another process.
type Router struct {
	p    *pool.Pool
	w    *watch.Watcher
	owns bool

	callTimeout time.Duration
	requestTTL  time.Duration

	mu             sync.RWMutex
	handlers       map[string]Handler
	streamHandlers map[string]StreamHandler

	pendingMu sync.Mutex
	pending   map[string]*future.Promise[*Response]

	dedupMu sync.Mutex
	dedup   *cuckoo.Filter

	cancelDispatch func()
}

// Open returns a Router attached to p.
func Open(p *pool.Pool, opts Options) *Router {
	w := opts.Watcher
	owns := false
	if w == nil {
		w = watch.Watch(p, watch.Options{PollInterval: opts.PollInterval})
		owns = true
	}

	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	requestTTL := opts.RequestTTL
	if requestTTL <= 0 {
		requestTTL = defaultRequestTTL
	}

	r := &Router{
		p:              p,
		w:              w,
		owns:           owns,
		callTimeout:    callTimeout,
		requestTTL:     requestTTL,
		handlers:       make(map[string]Handler),
		streamHandlers: make(map[string]StreamHandler),
		pending:        make(map[string]*future.Promise[*Response]),
		dedup:          cuckoo.NewFilter(dedupBucketSize, dedupFingerprintSize, dedupNumBuckets, cuckoo.TableTypePacked),
	}
	r.cancelDispatch = w.Subscribe(r.onChange)
	return r
}

// Route registers a handler for path, servable by this Router whether the
// caller is local (SendRequest on this same Router) or attached to the
// same pool from another process.
func (r *Router) Route(path string, h Handler) {
	r.mu.Lock()
	r.handlers[path] = h
	r.mu.Unlock()
}

// RouteStream registers a streaming handler for path.
func (r *Router) RouteStream(path string, h StreamHandler) {
	r.mu.Lock()
	r.streamHandlers[path] = h
	r.mu.Unlock()
}

// SendRequest calls path's handler, locally if this Router has one
// registered, otherwise by publishing the request and waiting for any
// other attached process to answer it.
func (r *Router) SendRequest(path string, data any, timeout time.Duration) (any, error) {
	start := time.Now()

	r.mu.RLock()
	h, ok := r.handlers[path]
	r.mu.RUnlock()
	if ok {
		result, err := h(Request{ID: uuid.NewString(), Path: path, Data: data})
		r.recordCall(path, "local", start, err)
		return result, err
	}

	if timeout <= 0 {
		timeout = r.callTimeout
	}
	id := uuid.NewString()
	req := Request{ID: id, Path: path, Data: data}

	p := future.NewPromise[*Response]()
	r.pendingMu.Lock()
	r.pending[id] = p
	r.pendingMu.Unlock()
	telemetry.RouterPendingRequests.Inc()
	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, id)
		r.pendingMu.Unlock()
		telemetry.RouterPendingRequests.Dec()
	}()

	if err := r.p.Set(reqKey(path, id), req, r.requestTTL); err != nil {
		r.recordCall(path, "error", start, err)
		return nil, err
	}

	resultCh := make(chan *Response, 1)
	go func() {
		resp, _ := p.Future().Get()
		resultCh <- resp
	}()

	select {
	case resp := <-resultCh:
		if resp.Err != "" {
			err := fmt.Errorf("router: %s", resp.Err)
			r.recordCall(path, "remote_error", start, err)
			return nil, err
		}
		r.recordCall(path, "remote", start, nil)
		return resp.Data, nil
	case <-time.After(timeout):
		err := &mverr.CallTimeoutError{Path: path, RequestID: id, Timeout: timeout.String()}
		r.recordCall(path, "timeout", start, err)
		return nil, err
	}
}

func (r *Router) recordCall(path, result string, start time.Time, err error) {
	if err != nil && result == "" {
		result = "error"
	}
	telemetry.RouterCallsTotal.With(path, result).Inc()
	telemetry.RouterCallDurationSeconds.With(path).Observe(time.Since(start).Seconds())
}

// SendRequestStream calls path's streaming handler, locally if this
// Router has one registered, otherwise by publishing the request and
// returning a stream.Channel that any other attached process's handler
// can publish chunks to.
func (r *Router) SendRequestStream(path string, data any) (*stream.Channel, error) {
	id := uuid.NewString()
	ch := stream.Open(r.p, streamKey(path, id), stream.Options{Watcher: r.w})

	r.mu.RLock()
	sh, ok := r.streamHandlers[path]
	r.mu.RUnlock()
	if ok {
		req := Request{ID: id, Path: path, Data: data, Stream: true}
		go func() {
			_ = sh(req, ch)
		}()
		return ch, nil
	}

	req := Request{ID: id, Path: path, Data: data, Stream: true}
	if err := r.p.Set(reqKey(path, id), req, r.requestTTL); err != nil {
		return nil, err
	}
	return ch, nil
}

// Close stops the dispatch subscription and, if Open started a private
// watcher, stops it too.
func (r *Router) Close() error {
	r.cancelDispatch()
	if r.owns {
		return r.w.Close()
	}
	return nil
}

func (r *Router) onChange(c watch.Change) {
	if c.Type != watch.ChangeSet {
		return
	}
	switch {
	case strings.HasPrefix(c.Key, reqPrefix):
		r.handleIncomingRequest(c.Key)
	case strings.HasPrefix(c.Key, respPrefix):
		r.handleIncomingResponse(c.Key)
	}
}

func (r *Router) handleIncomingRequest(key string) {
	var req Request
	ok, err := r.p.GetInto(key, &req)
	if err != nil || !ok || r.seenRequest(req.ID) {
		return
	}

	r.mu.RLock()
	h, hasHandler := r.handlers[req.Path]
	sh, hasStream := r.streamHandlers[req.Path]
	r.mu.RUnlock()

	switch {
	case req.Stream && hasStream:
		go func() {
			ch := stream.Open(r.p, streamKey(req.Path, req.ID), stream.Options{Watcher: r.w})
			_ = sh(req, ch)
		}()
	case !req.Stream && hasHandler:
		go r.serveRequest(req, h)
	}
}

func (r *Router) serveRequest(req Request, h Handler) {
	data, err := h(req)
	resp := Response{ID: req.ID, Data: data}
	if err != nil {
		resp.Err = err.Error()
	}
	_ = r.p.Set(respKey(req.Path, req.ID), resp, r.requestTTL)
}

func (r *Router) handleIncomingResponse(key string) {
	var resp Response
	ok, err := r.p.GetInto(key, &resp)
	if err != nil || !ok {
		return
	}

	r.pendingMu.Lock()
	p, waiting := r.pending[resp.ID]
	r.pendingMu.Unlock()
	if !waiting {
		return
	}
	respCopy := resp
	p.Set(&respCopy, nil)
}

// seenRequest reports whether id has already been dispatched by this
// Router, inserting it into the dedup filter if not. It guards against
// this Router's own watch subscription re-dispatching a request it is
// still in the middle of serving across successive poll cycles.
func (r *Router) seenRequest(id string) bool {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, xxhash.Sum64String(id))

	r.dedupMu.Lock()
	defer r.dedupMu.Unlock()
	if r.dedup.Contain(buf) {
		telemetry.RouterDedupHitsTotal.Inc()
		return true
	}
	r.dedup.Add(buf)
	return false
}
