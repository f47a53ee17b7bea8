package telemetry

import (
	"sync"
	"time"
)

// HandlerStats reports call count and average/total execution time for one
// named handler.
type HandlerStats struct {
	Calls     uint64
	TotalTime time.Duration
	AvgTime   time.Duration
}

// HandlerPerf tracks per-handler call counts and execution time in memory,
// for callers that want a point-in-time snapshot instead of a running
// histogram. It does not update any Prometheus metric.
type HandlerPerf struct {
	mu    sync.Mutex
	stats map[string]*HandlerStats
}

// NewHandlerPerf returns an empty tracker.
func NewHandlerPerf() *HandlerPerf {
	return &HandlerPerf{stats: make(map[string]*HandlerStats)}
}

// Record adds one call of the named handler with the given elapsed time.
func (h *HandlerPerf) Record(name string, elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.stats[name]
	if !ok {
		s = &HandlerStats{}
		h.stats[name] = s
	}
	s.Calls++
	s.TotalTime += elapsed
	s.AvgTime = h.stats[name].TotalTime / time.Duration(s.Calls)
}

// Wrap returns fn instrumented to record its execution time under name.
func (h *HandlerPerf) Wrap(name string, fn func() (any, error)) func() (any, error) {
	return func() (any, error) {
		start := time.Now()
		result, err := fn()
		h.Record(name, time.Since(start))
		return result, err
	}
}

// Stats returns a snapshot of all tracked handler statistics.
func (h *HandlerPerf) Stats() map[string]HandlerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]HandlerStats, len(h.stats))
	for name, s := range h.stats {
		out[name] = *s
	}
	return out
}
