// Package router implements request/response and streaming rendezvous
// over a pool.Pool: SendRequest publishes a request under a UUID key and
// waits for a response published under a matching key, while any attached
// process with a matching Route serves it. A local Route on the same
// Router always wins over the pool round-trip.
package router

import (
	"time"

	"github.com/mvent/mvent/stream"
	"github.com/mvent/mvent/watch"
)

const (
	reqPrefix          = "req/"
	respPrefix         = "resp/"
	streamSuffix       = "/stream"
	defaultCallTimeout = 5 * time.Second
	defaultRequestTTL  = 30 * time.Second

	// Cuckoo filter sizing for deduping request IDs: 4096 buckets of 4
	// fingerprints each, room for roughly 16k IDs.
	dedupBucketSize      = 4
	dedupFingerprintSize = 16
	dedupNumBuckets      = 4096
)

// Request is published by SendRequest and consumed by whichever Router
// has a matching Route.
type Request struct {
	ID     string `codec:"id"`
	Path   string `codec:"path"`
	Data   any    `codec:"data"`
	Stream bool   `codec:"stream"`
}

// Response is published by a Route handler and consumed by the Router
// waiting on the matching Request.ID.
type Response struct {
	ID   string `codec:"id"`
	Data any    `codec:"data"`
	Err  string `codec:"err"`
}

// Handler serves a non-streaming Request.
type Handler func(Request) (any, error)

// StreamHandler serves a streaming Request, publishing chunks to ch until
// it returns.
type StreamHandler func(req Request, ch *stream.Channel) error

// Options configures Open.
type Options struct {
	// Watcher, if set, is reused instead of starting a private poller.
	Watcher *watch.Watcher
	// PollInterval is used only when Watcher is nil.
	PollInterval time.Duration
	// CallTimeout is the default SendRequest timeout used when a call site
	// passes 0. Defaults to defaultCallTimeout. SendRequestStream does not
	// wait and takes no timeout.
	CallTimeout time.Duration
	// RequestTTL bounds how long an unclaimed req/resp pool key survives
	// before the pool's own TTL sweep reclaims it, so a crashed or
	// never-answered call doesn't leak a key forever. Zero or negative
	// uses defaultRequestTTL.
	RequestTTL time.Duration
}

// reqKey/respKey namespace request/response keys by path as well as id, so
// operator tooling scanning Pool.Snapshot() can tell which route a pending
// call belongs to without decoding the request body.
func reqKey(path, id string) string  { return reqPrefix + path + "/" + id }
func respKey(path, id string) string { return respPrefix + path + "/" + id }

// streamKey is the underlying stream.Channel key backing a streaming
// request/response pair.
func streamKey(path, id string) string { return respPrefix + path + "/" + id + streamSuffix }
