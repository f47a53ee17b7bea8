package pool

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T, opts Options) *Pool {
	t.Helper()
	opts.Dir = t.TempDir()
	if opts.Name == "" {
		opts.Name = "test"
	}
	p, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Cleanup() })
	return p
}

func TestSetGetRoundTrip(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024})

	require.NoError(t, p.Set("greeting", "hello", 0))

	v, ok, err := p.Get("greeting")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", v)

	_, ok, err = p.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetBumpsVersionMonotonically(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024})

	require.NoError(t, p.Set("k", 1, 0))
	_, v1, _, err := p.GetWithVersion("k")
	require.NoError(t, err)

	require.NoError(t, p.Set("k", 2, 0))
	_, v2, _, err := p.GetWithVersion("k")
	require.NoError(t, err)

	require.Greater(t, v2, v1)
}

func TestDeleteRemovesKey(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024})

	require.NoError(t, p.Set("k", "v", 0))
	removed, err := p.Delete("k")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err := p.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	removed, err = p.Delete("k")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestTTLExpiryObservedAtReadTime(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024, SweepInterval: -1})

	require.NoError(t, p.Set("k", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := p.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSweeperReclaimsExpiredEntries(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024, SweepInterval: 10 * time.Millisecond})

	require.NoError(t, p.Set("k", "v", 5*time.Millisecond))
	require.Eventually(t, func() bool {
		return p.Stats().ExpiredSwept > 0
	}, time.Second, 10*time.Millisecond)
}

func TestFullErrorWhenValueNeverFits(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 256})

	big := make([]byte, 4096)
	err := p.Set("k", big, 0)
	require.Error(t, err)
}

func TestCompactionPreservesLiveEntries(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 8 * 1024})

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", i%5)
		require.NoError(t, p.Set(key, fmt.Sprintf("value-%d", i), 0))
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		v, ok, err := p.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("value-%d", 45+i), v)
	}

	snap := p.Snapshot()
	require.Len(t, snap, 5)
}

func TestClearResetsPool(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024})

	require.NoError(t, p.Set("a", 1, 0))
	require.NoError(t, p.Set("b", 2, 0))
	require.NoError(t, p.Clear())

	require.Empty(t, p.Snapshot())
	_, ok, err := p.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReopenSeesExistingData(t *testing.T) {
	dir := t.TempDir()
	p1, err := Open(Options{Name: "shared", Dir: dir, Capacity: 64 * 1024})
	require.NoError(t, err)
	require.NoError(t, p1.Set("k", "v1", 0))
	require.NoError(t, p1.Cleanup())

	p2, err := Open(Options{Name: "shared", Dir: dir, Capacity: 64 * 1024})
	require.NoError(t, err)
	defer p2.Cleanup()

	v, ok, err := p2.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)
}

func TestCrossAttachmentVisibility(t *testing.T) {
	dir := t.TempDir()
	p1, err := Open(Options{Name: "shared2", Dir: dir, Capacity: 64 * 1024})
	require.NoError(t, err)
	defer p1.Cleanup()

	p2, err := Open(Options{Name: "shared2", Dir: dir, Capacity: 64 * 1024})
	require.NoError(t, err)
	defer p2.Cleanup()

	require.NoError(t, p1.Set("k", "from-p1", 0))

	v, ok, err := p2.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-p1", v)
}

func TestExpireRewritesTTLWithoutChangingValue(t *testing.T) {
	p := openTestPool(t, Options{Capacity: 64 * 1024})

	require.NoError(t, p.Set("k", "v", 0))
	require.NoError(t, p.Expire("k", 50*time.Millisecond))

	remaining, ok := p.TTL("k")
	require.True(t, ok)
	require.Greater(t, remaining, time.Duration(0))

	v, ok, err := p.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}
