// Package handle provides EventHandle, the simplest pub/sub primitive
// mvent offers: one named event backed by one pool key, with callbacks
// fired whenever any attached process sets it.
package handle

import (
	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/watch"
)

// EventHandle binds a named event to a key in a pool.Pool. Multiple
// EventHandles across processes that open the same pool and use the same
// key form one logical event.
type EventHandle struct {
	p      *pool.Pool
	key    string
	w      *watch.Watcher
	cancel func()
}
