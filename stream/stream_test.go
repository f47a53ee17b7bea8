package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvent/mvent/pool"
)

func openTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.Open(pool.Options{Name: "stream-test", Dir: t.TempDir(), Capacity: 64 * 1024})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Cleanup() })
	return p
}

func TestPublishAssignsIncreasingSeq(t *testing.T) {
	p := openTestPool(t)
	c := Open(p, "feed", Options{PollInterval: 5 * time.Millisecond})
	defer c.Close()

	seq1, err := c.Publish("a")
	require.NoError(t, err)
	seq2, err := c.Publish("b")
	require.NoError(t, err)
	require.Greater(t, seq2, seq1)
}

func TestSubscriberReceivesPublishedPayload(t *testing.T) {
	p := openTestPool(t)
	c := Open(p, "feed", Options{PollInterval: 5 * time.Millisecond})
	defer c.Close()

	var mu sync.Mutex
	var got []Envelope
	cancel := c.Subscribe(func(e Envelope) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer cancel()

	_, err := c.Publish("hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Payload == "hello"
	}, time.Second, 5*time.Millisecond)
}

func TestSubscriberDetectsLostIntermediatePublishes(t *testing.T) {
	p := openTestPool(t)
	c := Open(p, "feed", Options{PollInterval: 100 * time.Millisecond})
	defer c.Close()

	var mu sync.Mutex
	var got []Envelope
	cancel := c.Subscribe(func(e Envelope) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer cancel()

	_, err := c.Publish("1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := c.Publish("x")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.EqualValues(t, 0, got[0].Lost)
	require.EqualValues(t, 2, got[1].Lost)
}
