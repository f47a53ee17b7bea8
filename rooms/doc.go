// Package rooms implements namespaced, many-room publish/subscribe on top
// of one pool.Pool: each room is a single pool key under a shared prefix,
// letting callers discover connected rooms with a glob pattern instead of
// tracking room names out of band.
package rooms

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/watch"
)

const defaultPrefix = "room/"

// Options configures Open.
type Options struct {
	// Prefix namespaces room keys within the pool. Defaults to "room/".
	Prefix string
	// Watcher, if set, is reused instead of starting a private poller.
	Watcher *watch.Watcher
	// PollInterval is used only when Watcher is nil.
	PollInterval time.Duration
}

// Message is delivered to Subscribe callbacks.
type Message struct {
	Room    string
	Seq     uint64
	Payload any
}

// RoomSockets is a set of rooms multiplexed over one pool.
type RoomSockets struct {
	p      *pool.Pool
	prefix string
	w      *watch.Watcher
	owns   bool

	mu     sync.Mutex
	subs   map[string]map[uint64]func()
	nextID atomic.Uint64
}

// Open returns a RoomSockets bound to p.
func Open(p *pool.Pool, opts Options) *RoomSockets {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	w := opts.Watcher
	owns := false
	if w == nil {
		w = watch.Watch(p, watch.Options{PollInterval: opts.PollInterval})
		owns = true
	}
	return &RoomSockets{
		p:      p,
		prefix: prefix,
		w:      w,
		owns:   owns,
		subs:   make(map[string]map[uint64]func()),
	}
}

func (r *RoomSockets) roomKey(room string) string {
	return r.prefix + room
}

// Close stops the private watcher, if Open started one.
func (r *RoomSockets) Close() error {
	if r.owns {
		return r.w.Close()
	}
	return nil
}
