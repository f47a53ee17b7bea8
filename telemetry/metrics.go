package telemetry

// Histogram bucket definitions for different latency profiles.
var (
	// PoolOpBuckets for Set/Get/Delete latencies against the mmap-backed pool.
	PoolOpBuckets = []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1}

	// PollBuckets for watch.Watcher poll cycle durations.
	PollBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

	// CallBuckets for router request/response round trips.
	CallBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	// HandlerBuckets for route/stream/on-callback execution time.
	HandlerBuckets = []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}
)

// Pool Metrics
var (
	// PoolOpsTotal counts pool operations by kind (set, get, delete) and
	// result (ok, full, error, miss).
	PoolOpsTotal CounterVec = noopCounterVec{}

	// PoolOpDurationSeconds measures pool operation latency by kind.
	PoolOpDurationSeconds HistogramVec = noopHistogramVec{}

	// PoolEntryCount tracks the current live entry count of a pool.
	PoolEntryCount Gauge = NoopStat{}

	// PoolBytesUsed tracks bytes consumed in the mmap region.
	PoolBytesUsed Gauge = NoopStat{}

	// PoolCompactionsTotal counts compaction passes triggered by capacity
	// pressure or tombstone density.
	PoolCompactionsTotal Counter = NoopStat{}

	// PoolExpiredSweptTotal counts entries reclaimed by the TTL sweeper.
	PoolExpiredSweptTotal Counter = NoopStat{}

	// PoolFullErrorsTotal counts writes rejected because a value could not
	// fit even after compaction.
	PoolFullErrorsTotal Counter = NoopStat{}
)

// Watch Metrics
var (
	// WatchPollsTotal counts watch.Watcher poll cycles executed.
	WatchPollsTotal Counter = NoopStat{}

	// WatchPollDurationSeconds measures poll cycle duration.
	WatchPollDurationSeconds Histogram = NoopStat{}

	// WatchChangesDispatchedTotal counts changes fanned out to subscribers
	// by type (set, delete).
	WatchChangesDispatchedTotal CounterVec = noopCounterVec{}

	// WatchSubscriberPanicsTotal counts subscriber callbacks recovered from
	// a panic during dispatch.
	WatchSubscriberPanicsTotal Counter = NoopStat{}

	// WatchActiveSubscribers tracks the current subscriber count.
	WatchActiveSubscribers Gauge = NoopStat{}
)

// Router Metrics
var (
	// RouterCallsTotal counts SendRequest calls by path and result
	// (local, remote, remote_error, timeout, error).
	RouterCallsTotal CounterVec = noopCounterVec{}

	// RouterCallDurationSeconds measures SendRequest round-trip latency by
	// path.
	RouterCallDurationSeconds HistogramVec = noopHistogramVec{}

	// RouterPendingRequests tracks requests currently awaiting a response.
	RouterPendingRequests Gauge = NoopStat{}

	// RouterDedupHitsTotal counts request IDs the cuckoo filter recognized
	// as already dispatched.
	RouterDedupHitsTotal Counter = NoopStat{}
)

// Stream/Rooms Metrics
var (
	// StreamPublishedTotal counts stream.Channel.Publish calls.
	StreamPublishedTotal Counter = NoopStat{}

	// StreamLostTotal counts envelopes a subscriber detected as skipped
	// due to coalesced poll cycles.
	StreamLostTotal Counter = NoopStat{}

	// RoomsActiveCount tracks the number of rooms currently discoverable.
	RoomsActiveCount Gauge = NoopStat{}

	// RoomsMessagesTotal counts rooms.Send calls by room.
	RoomsMessagesTotal CounterVec = noopCounterVec{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	PoolOpsTotal = NewCounterVec(
		"pool_ops_total",
		"Pool operations by kind and result",
		[]string{"kind", "result"},
	)
	PoolOpDurationSeconds = NewHistogramVec(
		"pool_op_duration_seconds",
		"Pool operation duration in seconds",
		[]string{"kind"},
		PoolOpBuckets,
	)
	PoolEntryCount = NewGauge(
		"pool_entry_count",
		"Current number of live entries in the pool",
	)
	PoolBytesUsed = NewGauge(
		"pool_bytes_used",
		"Bytes consumed in the pool's mmap region",
	)
	PoolCompactionsTotal = NewCounter(
		"pool_compactions_total",
		"Total compaction passes run against the pool",
	)
	PoolExpiredSweptTotal = NewCounter(
		"pool_expired_swept_total",
		"Total entries reclaimed by the TTL sweeper",
	)
	PoolFullErrorsTotal = NewCounter(
		"pool_full_errors_total",
		"Total writes rejected because the pool could not free enough space",
	)

	WatchPollsTotal = NewCounter(
		"watch_polls_total",
		"Total watch poll cycles executed",
	)
	WatchPollDurationSeconds = NewHistogramWithBuckets(
		"watch_poll_duration_seconds",
		"Watch poll cycle duration in seconds",
		PollBuckets,
	)
	WatchChangesDispatchedTotal = NewCounterVec(
		"watch_changes_dispatched_total",
		"Changes fanned out to subscribers by type",
		[]string{"type"},
	)
	WatchSubscriberPanicsTotal = NewCounter(
		"watch_subscriber_panics_total",
		"Total subscriber callbacks recovered from a panic",
	)
	WatchActiveSubscribers = NewGauge(
		"watch_active_subscribers",
		"Current number of active watch subscribers",
	)

	RouterCallsTotal = NewCounterVec(
		"router_calls_total",
		"SendRequest calls by path and result",
		[]string{"path", "result"},
	)
	RouterCallDurationSeconds = NewHistogramVec(
		"router_call_duration_seconds",
		"SendRequest round-trip duration in seconds",
		[]string{"path"},
		CallBuckets,
	)
	RouterPendingRequests = NewGauge(
		"router_pending_requests",
		"Requests currently awaiting a response",
	)
	RouterDedupHitsTotal = NewCounter(
		"router_dedup_hits_total",
		"Total request IDs recognized as already dispatched",
	)

	StreamPublishedTotal = NewCounter(
		"stream_published_total",
		"Total stream.Channel.Publish calls",
	)
	StreamLostTotal = NewCounter(
		"stream_lost_total",
		"Total envelopes detected as skipped due to coalesced poll cycles",
	)
	RoomsActiveCount = NewGauge(
		"rooms_active_count",
		"Number of rooms currently discoverable",
	)
	RoomsMessagesTotal = NewCounterVec(
		"rooms_messages_total",
		"rooms.Send calls by room",
		[]string{"room"},
	)
}
