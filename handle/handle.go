package handle

import (
	"time"

	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/watch"
)

// Options configures New.
type Options struct {
	// Watcher, if set, is reused instead of starting a private poller.
	// Share one Watcher across EventHandles on the same pool to avoid one
	// poll loop per event.
	Watcher *watch.Watcher

	// PollInterval is used only when Watcher is nil.
	PollInterval time.Duration
}

// New binds an EventHandle to key in p.
func New(p *pool.Pool, key string, opts Options) *EventHandle {
	w := opts.Watcher
	owns := false
	if w == nil {
		w = watch.Watch(p, watch.Options{PollInterval: opts.PollInterval})
		owns = true
	}

	h := &EventHandle{p: p, key: key, w: w}
	if owns {
		h.cancel = func() { _ = w.Close() }
	}
	return h
}

// Emit stores value under the handle's key, firing every attached
// process's On callbacks for that key on their next poll. The entry never
// expires; use EmitTTL to attach a TTL.
func (h *EventHandle) Emit(value any) error {
	return h.p.Set(h.key, value, 0)
}

// EmitTTL is Emit with a TTL attached: the entry expires ttl after this
// call, delivering a tombstone to On subscribers once it does.
func (h *EventHandle) EmitTTL(value any, ttl time.Duration) error {
	return h.p.Set(h.key, value, ttl)
}

// On registers fn to be called whenever the handle's key changes. A set
// (or live re-set) delivers the new value; expiry or deletion delivers a
// tombstone, fn(nil), since disappearance is itself a change worth
// notifying subscribers about. The returned cancel function stops
// delivery to fn.
func (h *EventHandle) On(fn func(value any)) (cancel func()) {
	return h.w.Subscribe(func(c watch.Change) {
		if c.Key != h.key {
			return
		}
		if c.Type == watch.ChangeDelete {
			fn(nil)
			return
		}
		value, ok, err := h.p.Get(h.key)
		if err != nil || !ok {
			return
		}
		fn(value)
	})
}

// Value returns the event's current value, if any has been emitted.
func (h *EventHandle) Value() (any, bool, error) {
	return h.p.Get(h.key)
}

// Cleanup stops the handle's private watcher, if New started one. It has
// no effect when the handle was built with a shared Watcher; close that
// Watcher yourself once every handle sharing it is done.
func (h *EventHandle) Cleanup() {
	if h.cancel != nil {
		h.cancel()
	}
}
