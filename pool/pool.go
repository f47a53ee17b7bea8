package pool

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mvent/mvent/codec"
	"github.com/mvent/mvent/compress"
	"github.com/mvent/mvent/filelock"
	"github.com/mvent/mvent/mmapfile"
	"github.com/mvent/mvent/mverr"
	"github.com/mvent/mvent/seal"
	"github.com/mvent/mvent/telemetry"
)

// indexEntry is the in-memory record of where a live key's latest frame
// lives in the mapped region, rebuilt from the frame log by catchUp.
type indexEntry struct {
	valueOffset  int64
	valueLen     int32
	createdNanos int64
	ttlNanos     int64
	version      uint64
}

func isLive(e *indexEntry, nowNanos int64) bool {
	return e.ttlNanos == 0 || nowNanos-e.createdNanos < e.ttlNanos
}

type cacheKey struct {
	key     string
	version uint64
}

// Pool is one attachment to a shared memory-mapped key/value pool.
// Multiple Pools, in the same process or different ones, can attach to the
// same backing file; each keeps its own in-memory index, fed by catchUp
// scans taken under the file lock.
type Pool struct {
	name string
	opts Options

	file     *mmapfile.File
	capacity int64

	mu             sync.Mutex
	index          map[string]*indexEntry
	snapshot       *xsync.MapOf[string, uint64]
	frameCount     int
	cursorSeen     int64
	generationSeen uint64

	decodeCache *lru.Cache[cacheKey, any]
	compressor  *compress.Transformer
	cipher      *seal.Transformer

	sweeperStop chan struct{}
	sweeperDone chan struct{}
	expiredSwept atomic.Uint64

	closed atomic.Bool
}

// Open attaches to (creating if necessary) the pool named by opts.Name.
func Open(opts Options) (*Pool, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("pool: Name is required")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	cacheSize := opts.DecodeCacheSize
	if cacheSize == 0 {
		cacheSize = defaultDecodeCacheSize
	}

	dir := opts.Dir
	if dir == "" {
		dir = defaultDir()
	}
	path := filepath.Join(dir, opts.Name+".pool")

	mf, created, err := mmapfile.OpenOrCreate(path, opts.Capacity)
	if err != nil {
		return nil, &mverr.BackingIOError{Pool: opts.Name, Op: "open", Err: err}
	}

	var cipher *seal.Transformer
	if len(opts.EncryptionKey) > 0 {
		cipher, err = seal.New(opts.EncryptionKey)
		if err != nil {
			mf.Close()
			return nil, err
		}
	}

	var decodeCache *lru.Cache[cacheKey, any]
	if cacheSize > 0 {
		decodeCache, err = lru.New[cacheKey, any](cacheSize)
		if err != nil {
			mf.Close()
			return nil, &mverr.BackingIOError{Pool: opts.Name, Op: "decode-cache", Err: err}
		}
	}

	p := &Pool{
		name:        opts.Name,
		opts:        opts,
		file:        mf,
		capacity:    opts.Capacity,
		index:       make(map[string]*indexEntry),
		snapshot:    xsync.NewMapOf[string, uint64](),
		decodeCache: decodeCache,
		compressor:  compress.NewTransformer(opts.CompressionThreshold),
		cipher:      cipher,
	}

	if created {
		h := header{capacity: uint64(opts.Capacity), writeCursor: uint64(headerSize), entryCount: 0, generation: 1}
		writeHeader(mf.Region, h)
		p.capacity = opts.Capacity
		p.generationSeen = h.generation
		p.cursorSeen = int64(h.writeCursor)
	} else {
		h, err := readHeader(mf.Region)
		if err != nil {
			mf.Close()
			return nil, &mverr.BackingIOError{Pool: opts.Name, Op: "read-header", Err: err}
		}
		p.capacity = int64(h.capacity)
		if err := p.fullScan(h); err != nil {
			mf.Close()
			return nil, err
		}
		p.generationSeen = h.generation
		p.cursorSeen = int64(h.writeCursor)
	}

	if opts.SweepInterval > 0 {
		p.sweeperStop = make(chan struct{})
		p.sweeperDone = make(chan struct{})
		go p.runSweeper(opts.SweepInterval)
	}

	return p, nil
}

// Set stores value under key, overwriting any existing entry and assigning
// it the next version number for key. A ttl of zero means the entry never
// expires.
func (p *Pool) Set(key string, value any, ttl time.Duration) error {
	_, err := p.SetWithVersion(key, value, ttl)
	return err
}

// SetWithVersion is Set plus the version number assigned to this write,
// used by callers (stream.StreamChannel) that need a gap-free monotonic
// sequence number for free instead of maintaining their own counter.
func (p *Pool) SetWithVersion(key string, value any, ttl time.Duration) (uint64, error) {
	start := time.Now()
	version, err := p.setWithVersion(key, value, ttl)
	telemetry.PoolOpDurationSeconds.With("set").Observe(time.Since(start).Seconds())
	telemetry.PoolOpsTotal.With("set", opResult(err)).Inc()
	return version, err
}

func (p *Pool) setWithVersion(key string, value any, ttl time.Duration) (uint64, error) {
	if p.closed.Load() {
		return 0, &mverr.StoppedError{Component: "pool"}
	}

	raw, err := p.transformEncode(value)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var version uint64
	err = filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "read-header", Err: err}
		}
		if err := p.catchUp(h); err != nil {
			return err
		}

		version = 1
		if e, ok := p.index[key]; ok {
			version = e.version + 1
		}

		created := time.Now().UnixNano()
		var ttlNanos int64
		if ttl > 0 {
			ttlNanos = int64(ttl)
		}

		return p.appendFrame(&h, frameLive, key, raw, created, ttlNanos, version)
	})
	return version, err
}

// opResult maps an operation error to the telemetry "result" label,
// distinguishing a genuine capacity error from other failures.
func opResult(err error) string {
	if err == nil {
		return "ok"
	}
	var fullErr *mverr.FullError
	if errors.As(err, &fullErr) {
		return "full"
	}
	return "error"
}

// Get returns the decoded value stored under key, or ok=false if the key
// is absent or has expired.
func (p *Pool) Get(key string) (any, bool, error) {
	value, _, ok, err := p.GetWithVersion(key)
	return value, ok, err
}

// GetWithVersion is Get plus the entry's version counter, for callers that
// need to tell two writes of the same key apart.
func (p *Pool) GetWithVersion(key string) (any, uint64, bool, error) {
	raw, version, ok, err := p.rawGet(key)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	value, err := p.transformDecode(key, version, raw)
	if err != nil {
		return nil, 0, false, err
	}
	return value, version, true, nil
}

// GetInto decodes key's value into target, a pointer to a concrete type
// (rather than the generic value algebra Get returns), for callers storing
// record types like router.Request that need to round-trip exactly.
func (p *Pool) GetInto(key string, target any) (bool, error) {
	raw, version, ok, err := p.rawGet(key)
	if err != nil || !ok {
		return false, err
	}

	plain := raw
	if p.cipher != nil {
		plain, err = p.cipher.Decrypt(key, plain)
		if err != nil {
			return false, err
		}
	}
	plain, err = p.compressor.Decompress(plain)
	if err != nil {
		return false, &mverr.DecodeError{Key: key, Err: err}
	}
	if err := codec.DecodeInto(plain, target); err != nil {
		return false, &mverr.DecodeError{Key: key, Err: err}
	}
	_ = version
	return true, nil
}

// rawGet returns the still-transformed (compressed/encrypted) bytes stored
// under key, after catching up with any writes from other processes.
func (p *Pool) rawGet(key string) ([]byte, uint64, bool, error) {
	start := time.Now()
	raw, version, found, err := p.rawGetTimed(key)
	telemetry.PoolOpDurationSeconds.With("get").Observe(time.Since(start).Seconds())
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "ok"
	}
	telemetry.PoolOpsTotal.With("get", result).Inc()
	return raw, version, found, err
}

func (p *Pool) rawGetTimed(key string) ([]byte, uint64, bool, error) {
	if p.closed.Load() {
		return nil, 0, false, &mverr.StoppedError{Component: "pool"}
	}

	p.mu.Lock()
	var raw []byte
	var version uint64
	found := false
	lockErr := filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "read-header", Err: err}
		}
		if err := p.catchUp(h); err != nil {
			return err
		}

		e, ok := p.index[key]
		if !ok || !isLive(e, time.Now().UnixNano()) {
			return nil
		}
		raw = append([]byte(nil), p.file.Region[e.valueOffset:e.valueOffset+int64(e.valueLen)]...)
		version = e.version
		found = true
		return nil
	})
	p.mu.Unlock()

	if lockErr != nil {
		return nil, 0, false, lockErr
	}
	return raw, version, found, nil
}

// Delete removes key, if present, writing a tombstone frame. It reports
// whether the key was present.
func (p *Pool) Delete(key string) (bool, error) {
	start := time.Now()
	removed, err := p.deleteKey(key)
	telemetry.PoolOpDurationSeconds.With("delete").Observe(time.Since(start).Seconds())
	telemetry.PoolOpsTotal.With("delete", opResult(err)).Inc()
	return removed, err
}

func (p *Pool) deleteKey(key string) (bool, error) {
	if p.closed.Load() {
		return false, &mverr.StoppedError{Component: "pool"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := false
	err := filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "read-header", Err: err}
		}
		if err := p.catchUp(h); err != nil {
			return err
		}
		if _, ok := p.index[key]; !ok {
			return nil
		}
		removed = true
		return p.appendFrame(&h, frameTomb, key, nil, time.Now().UnixNano(), 0, 0)
	})
	return removed, err
}

// TTL reports the remaining time-to-live for key, or ok=false if the key
// is absent, expired, or has no TTL set (immortal).
func (p *Pool) TTL(key string) (remaining time.Duration, ok bool) {
	if p.closed.Load() {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return err
		}
		return p.catchUp(h)
	})

	e, exists := p.index[key]
	if !exists || e.ttlNanos == 0 {
		return 0, false
	}
	now := time.Now().UnixNano()
	if !isLive(e, now) {
		return 0, false
	}
	return time.Duration(e.createdNanos+e.ttlNanos-now), true
}

// Expire rewrites key's TTL without changing its value. The new TTL counts
// from this call, and the rewrite bumps key's version like any other write,
// so watchers observe it as a set.
func (p *Pool) Expire(key string, ttl time.Duration) error {
	if p.closed.Load() {
		return &mverr.StoppedError{Component: "pool"}
	}

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
		e, ok := p.index[key]
		if !ok || !isLive(e, time.Now().UnixNano()) {
			return fmt.Errorf("pool: key %q not found", key)
		}

		raw := append([]byte(nil), p.file.Region[e.valueOffset:e.valueOffset+int64(e.valueLen)]...)
		var ttlNanos int64
		if ttl > 0 {
			ttlNanos = int64(ttl)
		}
		return p.appendFrame(&h, frameLive, key, raw, time.Now().UnixNano(), ttlNanos, e.version+1)
	})
}

// Clear removes every key and resets the frame log to empty, bumping the
// generation so other attached processes detect the reset on their next
// catch-up scan rather than trying to merge-scan stale offsets.
func (p *Pool) Clear() error {
	if p.closed.Load() {
		return &mverr.StoppedError{Component: "pool"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "read-header", Err: err}
		}
		h.writeCursor = uint64(headerSize)
		h.entryCount = 0
		h.generation++
		writeHeader(p.file.Region, h)

		p.index = make(map[string]*indexEntry)
		p.snapshot = xsync.NewMapOf[string, uint64]()
		p.frameCount = 0
		// Versions restart after a clear, so cached (key, version) pairs
		// could name a different value now.
		if p.decodeCache != nil {
			p.decodeCache.Purge()
		}
		p.generationSeen = h.generation
		p.cursorSeen = int64(h.writeCursor)
		return nil
	})
}

// Snapshot returns the current key -> version map, a cheap way for the
// watch package to detect appearances, disappearances and version bumps
// without decoding any value.
func (p *Pool) Snapshot() map[string]uint64 {
	if p.closed.Load() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = filelock.WithLock(p.file.OS, p.name, p.opts.LockTimeout, func() error {
		h, err := readHeader(p.file.Region)
		if err != nil {
			return err
		}
		return p.catchUp(h)
	})

	now := time.Now().UnixNano()
	out := make(map[string]uint64, len(p.index))
	for k, e := range p.index {
		if isLive(e, now) {
			out[k] = e.version
		}
	}
	return out
}

// Cleanup stops the background sweeper and unmaps the backing file. It
// does not delete the file; other attached processes are unaffected.
func (p *Pool) Cleanup() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.sweeperStop != nil {
		close(p.sweeperStop)
		<-p.sweeperDone
	}
	return p.file.Close()
}

func (p *Pool) transformEncode(value any) ([]byte, error) {
	raw, err := codec.Encode(value)
	if err != nil {
		return nil, &mverr.EncodeError{Err: err}
	}
	raw = p.compressor.Compress(raw)
	if p.cipher != nil {
		raw, err = p.cipher.Encrypt(raw)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (p *Pool) transformDecode(key string, version uint64, raw []byte) (any, error) {
	if p.decodeCache != nil {
		if v, ok := p.decodeCache.Get(cacheKey{key, version}); ok {
			return v, nil
		}
	}

	plain := raw
	var err error
	if p.cipher != nil {
		plain, err = p.cipher.Decrypt(key, plain)
		if err != nil {
			return nil, err
		}
	}
	plain, err = p.compressor.Decompress(plain)
	if err != nil {
		return nil, &mverr.DecodeError{Key: key, Err: err}
	}
	v, err := codec.Decode(plain)
	if err != nil {
		return nil, &mverr.DecodeError{Key: key, Err: err}
	}

	if p.decodeCache != nil {
		p.decodeCache.Add(cacheKey{key, version}, v)
	}
	return v, nil
}

// catchUp brings the in-memory index up to date with the backing file's
// header, called with p.mu held and the file lock held. A changed
// generation means someone compacted since our last look, so offsets we
// remember are no longer trustworthy and we rescan from scratch; otherwise
// we merge-scan just the new bytes.
func (p *Pool) catchUp(h header) error {
	if h.generation != p.generationSeen {
		if err := p.fullScan(h); err != nil {
			return err
		}
		p.generationSeen = h.generation
		p.cursorSeen = int64(h.writeCursor)
		return nil
	}
	if int64(h.writeCursor) > p.cursorSeen {
		if err := p.scanRegion(p.cursorSeen, int64(h.writeCursor)); err != nil {
			return err
		}
		p.cursorSeen = int64(h.writeCursor)
	}
	return nil
}

func (p *Pool) fullScan(h header) error {
	p.index = make(map[string]*indexEntry)
	p.snapshot = xsync.NewMapOf[string, uint64]()
	p.frameCount = 0
	// A generation change may come from another process's Clear, after
	// which versions restart; drop cached values rather than trust them.
	if p.decodeCache != nil {
		p.decodeCache.Purge()
	}
	return p.scanRegion(int64(headerSize), int64(h.writeCursor))
}

func (p *Pool) scanRegion(from, to int64) error {
	offset := from
	for offset < to {
		f, n, err := decodeFrame(p.file.Region[offset:to])
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "scan", Err: err}
		}
		p.applyFrame(f, offset)
		offset += int64(n)
	}
	return nil
}

func (p *Pool) applyFrame(f frame, offset int64) {
	p.frameCount++
	switch f.frameType {
	case frameLive:
		valueOffset := offset + int64(frameFixedSize+len(f.key))
		p.index[f.key] = &indexEntry{
			valueOffset:  valueOffset,
			valueLen:     int32(len(f.value)),
			createdNanos: f.createdNanos,
			ttlNanos:     f.ttlNanos,
			version:      f.version,
		}
		p.snapshot.Store(f.key, f.version)
	case frameTomb:
		delete(p.index, f.key)
		p.snapshot.Delete(f.key)
	}
}

// appendFrame writes one frame at h.writeCursor, compacting first if it
// won't fit or if tombstones have piled up past compactionThreshold. Called
// with p.mu and the file lock held.
func (p *Pool) appendFrame(h *header, frameType byte, key string, value []byte, createdNanos, ttlNanos int64, version uint64) error {
	need := frameSize(len(key), len(value))

	if int64(need) > int64(h.capacity)-int64(h.writeCursor) || p.tombstoneDensity() > compactionThreshold {
		newH, err := p.compact(*h)
		if err != nil {
			return &mverr.BackingIOError{Pool: p.name, Op: "compact", Err: err}
		}
		*h = newH
		telemetry.PoolCompactionsTotal.Inc()
	}
	if free := int64(h.capacity) - int64(h.writeCursor); int64(need) > free {
		telemetry.PoolFullErrorsTotal.Inc()
		return &mverr.FullError{Pool: p.name, Key: key, NeedBytes: need, FreeBytes: int(free), Compacted: true}
	}

	offset := int64(h.writeCursor)
	buf := p.file.Region[offset : offset+int64(need)]
	encodeFrame(buf, frameType, key, value, createdNanos, ttlNanos, version)
	h.writeCursor += uint64(need)

	f, _, err := decodeFrame(buf)
	if err != nil {
		return &mverr.BackingIOError{Pool: p.name, Op: "verify-write", Err: err}
	}
	p.applyFrame(f, offset)

	h.entryCount = uint32(len(p.index))
	writeHeader(p.file.Region, *h)
	p.cursorSeen = int64(h.writeCursor)
	return nil
}

func (p *Pool) tombstoneDensity() float64 {
	if p.frameCount == 0 {
		return 0
	}
	tomb := p.frameCount - len(p.index)
	return float64(tomb) / float64(p.frameCount)
}

// compact rewrites the frame log keeping only the latest live frame per
// key, bumping generation so other attached processes know their cached
// offsets are stale.
func (p *Pool) compact(h header) (header, error) {
	type live struct {
		key                    string
		value                  []byte
		created, ttl           int64
		version                uint64
	}
	lives := make([]live, 0, len(p.index))
	for k, e := range p.index {
		value := append([]byte(nil), p.file.Region[e.valueOffset:e.valueOffset+int64(e.valueLen)]...)
		lives = append(lives, live{k, value, e.createdNanos, e.ttlNanos, e.version})
	}

	cursor := int64(headerSize)
	for _, item := range lives {
		need := frameSize(len(item.key), len(item.value))
		if cursor+int64(need) > int64(h.capacity) {
			return header{}, fmt.Errorf("pool: key %q does not fit after compaction", item.key)
		}
		buf := p.file.Region[cursor : cursor+int64(need)]
		encodeFrame(buf, frameLive, item.key, item.value, item.created, item.ttl, item.version)
		cursor += int64(need)
	}

	newH := header{capacity: h.capacity, writeCursor: uint64(cursor), entryCount: uint32(len(lives)), generation: h.generation + 1}
	writeHeader(p.file.Region, newH)

	if err := p.fullScan(newH); err != nil {
		return header{}, err
	}
	p.generationSeen = newH.generation
	p.cursorSeen = int64(newH.writeCursor)
	return newH, nil
}
