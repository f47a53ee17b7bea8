package pool

import (
	"time"

	"github.com/mvent/mvent/filelock"
	"github.com/mvent/mvent/mverr"
)

// runSweeper periodically tombstones TTL-expired entries so a pool that is
// written to heavily but never re-read still reclaims space. Expiry
// itself is always enforced at read time; the sweeper only affects how
// soon space is reclaimed and ExpiredSwept counted.
func (p *Pool) runSweeper(interval time.Duration) {
	defer close(p.sweeperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.sweeperStop:
			return
		case <-ticker.C:
			if err := p.sweepOnce(); err != nil {
				if p.opts.ErrorSink != nil {
					p.opts.ErrorSink(err)
				}
			}
		}
	}
}

func (p *Pool) sweepOnce() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "read-header", Err: err}
		}
		if err := p.catchUp(h); err != nil {
			return err
		}

		now := time.Now().UnixNano()
		var expired []string
		for k, e := range p.index {
			if e.ttlNanos != 0 && now-e.createdNanos >= e.ttlNanos {
				expired = append(expired, k)
			}
		}

		for _, k := range expired {
			if err := p.appendFrame(&h, frameTomb, k, nil, now, 0, 0); err != nil {
				return err
			}
			p.expiredSwept.Add(1)
		}
		return nil
	})
}
