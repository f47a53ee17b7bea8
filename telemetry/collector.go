package telemetry

import (
	"sync"
	"time"
)

// PoolSampler returns the current entry count, bytes used, and cumulative
// TTL-expired-sweep count of a pool. pool.Pool.Stats satisfies this via a
// closure, e.g. func() (int, int64, uint64) { s := p.Stats(); return
// s.EntryCount, s.BytesUsed, s.ExpiredSwept }.
type PoolSampler func() (entryCount int, bytesUsed int64, expiredSwept uint64)

// PoolCollector periodically samples a pool's stats and updates the
// PoolEntryCount/PoolBytesUsed gauges, the way MonitoringTools.get_memory_stats
// reports shared-memory usage on demand, except pushed to Prometheus on a
// timer instead of pulled per request.
type PoolCollector struct {
	sample   PoolSampler
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	lastSwept uint64
}

// NewPoolCollector returns a collector that calls sample every interval.
func NewPoolCollector(sample PoolSampler, interval time.Duration) *PoolCollector {
	return &PoolCollector{
		sample:   sample,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection in a background goroutine.
func (c *PoolCollector) Start() {
	c.wg.Add(1)
	go c.collectLoop()
}

// Stop stops the collector and waits for its goroutine to exit. Calling it
// more than once is safe.
func (c *PoolCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *PoolCollector) collectLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			return
		}
	}
}

func (c *PoolCollector) collect() {
	if c.sample == nil {
		return
	}

	entryCount, bytesUsed, expiredSwept := c.sample()
	PoolEntryCount.Set(float64(entryCount))
	PoolBytesUsed.Set(float64(bytesUsed))

	if expiredSwept > c.lastSwept {
		PoolExpiredSweptTotal.Add(float64(expiredSwept - c.lastSwept))
		c.lastSwept = expiredSwept
	}
}
