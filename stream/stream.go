package stream

import (
	"github.com/mvent/mvent/pool"
	"github.com/mvent/mvent/telemetry"
	"github.com/mvent/mvent/watch"
)

// Envelope is delivered to every Subscribe callback.
type Envelope struct {
	Seq     uint64
	Payload any
	// Lost counts sequence numbers skipped since this subscriber's
	// previous delivery: publishes that happened but were overwritten by
	// a later one before this subscriber's next poll saw them.
	Lost uint64
}

// Channel is one publish/subscribe stream, identified by a single pool
// key. Every process that opens a Channel on the same pool with the same
// key shares the stream.
type Channel struct {
	p    *pool.Pool
	key  string
	w    *watch.Watcher
	owns bool
}

// Open binds a Channel to key in p.
func Open(p *pool.Pool, key string, opts Options) *Channel {
	w := opts.Watcher
	owns := false
	if w == nil {
		w = watch.Watch(p, watch.Options{PollInterval: opts.PollInterval})
		owns = true
	}
	return &Channel{p: p, key: key, w: w, owns: owns}
}

// Publish stores payload as the stream's latest value and returns its
// sequence number.
func (c *Channel) Publish(payload any) (seq uint64, err error) {
	seq, err = c.p.SetWithVersion(c.key, payload, 0)
	if err == nil {
		telemetry.StreamPublishedTotal.Inc()
	}
	return seq, err
}

// Subscribe registers fn to be called for every publish observed after
// this call returns. Each subscription tracks its own last-seen sequence
// number, so Envelope.Lost is per-subscriber.
func (c *Channel) Subscribe(fn func(Envelope)) (cancel func()) {
	var lastSeq uint64
	seenFirst := false

	return c.w.Subscribe(func(change watch.Change) {
		if change.Key != c.key || change.Type != watch.ChangeSet {
			return
		}
		payload, ok, err := c.p.Get(c.key)
		if err != nil || !ok {
			return
		}

		var lost uint64
		if seenFirst && change.Version > lastSeq+1 {
			lost = change.Version - lastSeq - 1
			telemetry.StreamLostTotal.Add(float64(lost))
		}
		seenFirst = true
		lastSeq = change.Version

		fn(Envelope{Seq: change.Version, Payload: payload, Lost: lost})
	})
}

// Close stops the channel's private watcher, if Open started one.
func (c *Channel) Close() error {
	if c.owns {
		return c.w.Close()
	}
	return nil
}
