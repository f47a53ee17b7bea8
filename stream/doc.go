// Package stream implements a gap-aware publish/subscribe channel on top
// of a single pool key, reusing the pool's own per-key version counter as
// the stream's sequence number instead of maintaining a parallel one.
//
// Because a pool key holds only its latest value, a subscriber that misses
// several rapid publishes before it next polls sees only the newest one,
// with Envelope.Lost reporting how many sequence numbers were skipped.
package stream

import (
	"time"

	"github.com/mvent/mvent/watch"
)

// Options configures Open.
type Options struct {
	// Watcher, if set, is reused instead of starting a private poller.
	Watcher *watch.Watcher
	// PollInterval is used only when Watcher is nil.
	PollInterval time.Duration
}
