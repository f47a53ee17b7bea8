package pool

import (
	"github.com/mvent/mvent/filelock"
	"github.com/mvent/mvent/telemetry"
)

// Stats is a point-in-time snapshot of a pool's occupancy.
type Stats struct {
	EntryCount   int
	BytesUsed    int64
	BytesFree    int64
	ExpiredSwept uint64
}

// Stats reports the pool's current occupancy, after catching up with any
// writes from other attached processes.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return err
		}
		return p.catchUp(h)
	})

	return Stats{
		EntryCount:   len(p.index),
		BytesUsed:    p.cursorSeen,
		BytesFree:    p.capacity - p.cursorSeen,
		ExpiredSwept: p.expiredSwept.Load(),
	}
}

// Sampler returns a telemetry.PoolSampler closing over p, for wiring into
// telemetry.NewPoolCollector without telemetry importing pool.
func (p *Pool) Sampler() telemetry.PoolSampler {
	return func() (int, int64, uint64) {
		s := p.Stats()
		return s.EntryCount, s.BytesUsed, s.ExpiredSwept
	}
}
