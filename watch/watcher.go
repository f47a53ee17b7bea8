package watch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/telemetry"
)

// Watcher polls one pool.Pool's Snapshot at a fixed interval and fans out
// the diff to every subscriber. A Watcher owns exactly one poll goroutine,
// no matter how many subscribers attach to it.
type Watcher struct {
	p            *pool.Pool
	pollInterval time.Duration

	mu   sync.RWMutex
	subs map[uint64]*subscription
	last map[string]uint64

	nextID  atomic.Uint64
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once
}

// subscription coalesces changes between dispatch cycles: if a key
// changes more than once before the subscriber's goroutine drains pending,
// only its most recent Change survives. This bounds memory and catch-up
// latency to the subscriber's slowness, not to how fast the pool churns.
type subscription struct {
	mu      sync.Mutex
	pending map[string]Change
	wake    chan struct{}
	fn      func(Change)
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Watch starts watching p and returns the running Watcher. Call Close to
// stop it.
func Watch(p *pool.Pool, opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	w := &Watcher{
		p:            p,
		pollInterval: opts.PollInterval,
		subs:         make(map[uint64]*subscription),
		last:         p.Snapshot(),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	go w.pollLoop()
	return w
}

// Subscribe registers fn to be called, from a dedicated goroutine, for
// every change observed after this call returns. Changes already present
// in the pool when Subscribe is called are not replayed. The returned
// cancel function blocks until fn will no longer be called.
func (w *Watcher) Subscribe(fn func(Change)) (cancel func()) {
	sub := &subscription{
		pending: make(map[string]Change),
		wake:    make(chan struct{}, 1),
		fn:      fn,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	w.mu.Lock()
	id := w.nextID.Add(1)
	w.subs[id] = sub
	w.mu.Unlock()
	telemetry.WatchActiveSubscribers.Inc()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			telemetry.WatchActiveSubscribers.Dec()
			close(sub.stopCh)
			<-sub.doneCh
		})
	}
}

// SubscriberCount returns the number of currently attached subscribers.
func (w *Watcher) SubscriberCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}

// Close stops the poll loop and every subscriber's dispatch goroutine. It
// is idempotent.
func (w *Watcher) Close() error {
	w.stopped.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh

	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()

	for _, sub := range subs {
		close(sub.stopCh)
		<-sub.doneCh
	}
	return nil
}

func (w *Watcher) pollLoop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	start := time.Now()
	defer func() {
		telemetry.WatchPollsTotal.Inc()
		telemetry.WatchPollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	current := w.p.Snapshot()

	w.mu.Lock()
	prev := w.last
	w.last = current
	subs := make([]*subscription, 0, len(w.subs))
	for _, sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	for key, version := range current {
		if oldVersion, existed := prev[key]; !existed || oldVersion != version {
			telemetry.WatchChangesDispatchedTotal.With("set").Inc()
			broadcast(subs, Change{Key: key, Type: ChangeSet, Version: version})
		}
	}
	for key, oldVersion := range prev {
		if _, stillThere := current[key]; !stillThere {
			telemetry.WatchChangesDispatchedTotal.With("delete").Inc()
			broadcast(subs, Change{Key: key, Type: ChangeDelete, Version: oldVersion})
		}
	}
}

func broadcast(subs []*subscription, c Change) {
	for _, sub := range subs {
		sub.enqueue(c)
	}
}

func (s *subscription) enqueue(c Change) {
	s.mu.Lock()
	s.pending[c.Key] = c
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.wake:
			s.mu.Lock()
			batch := s.pending
			s.pending = make(map[string]Change)
			s.mu.Unlock()

			for _, c := range batch {
				s.dispatch(c)
			}
		}
	}
}

// dispatch calls fn with its own panic recovery, so one misbehaving
// subscriber can't take down the poll loop or other subscribers.
func (s *subscription) dispatch(c Change) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.WatchSubscriberPanicsTotal.Inc()
			log.Error().Interface("panic", r).Str("key", c.Key).Msg("watch: subscriber callback panicked")
		}
	}()
	s.fn(c)
}
