package rooms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvent/mvent/pool"
)

func openTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.Open(pool.Options{Name: "rooms-test", Dir: t.TempDir(), Capacity: 64 * 1024})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Cleanup() })
	return p
}

func TestConnectMakesRoomDiscoverable(t *testing.T) {
	p := openTestPool(t)
	r := Open(p, Options{PollInterval: 5 * time.Millisecond})
	defer r.Close()

	require.NoError(t, r.Connect("lobby"))
	require.NoError(t, r.Connect("game-1"))

	names, err := r.List("*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"lobby", "game-1"}, names)

	names, err = r.List("game-*")
	require.NoError(t, err)
	require.Equal(t, []string{"game-1"}, names)
}

func TestSendDeliversOnlyToSubscribedRoom(t *testing.T) {
	p := openTestPool(t)
	r := Open(p, Options{PollInterval: 5 * time.Millisecond})
	defer r.Close()

	var mu sync.Mutex
	var lobbyMsgs, gameMsgs []Message
	cancelLobby := r.Subscribe("lobby", func(m Message) {
		mu.Lock()
		lobbyMsgs = append(lobbyMsgs, m)
		mu.Unlock()
	})
	defer cancelLobby()
	cancelGame := r.Subscribe("game-1", func(m Message) {
		mu.Lock()
		gameMsgs = append(gameMsgs, m)
		mu.Unlock()
	})
	defer cancelGame()

	_, err := r.Send("lobby", "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lobbyMsgs) == 1 && lobbyMsgs[0].Payload == "hi"
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Empty(t, gameMsgs)
	mu.Unlock()
}

func TestDisconnectStopsDelivery(t *testing.T) {
	p := openTestPool(t)
	r := Open(p, Options{PollInterval: 5 * time.Millisecond})
	defer r.Close()

	var mu sync.Mutex
	count := 0
	r.Subscribe("lobby", func(Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	_, err := r.Send("lobby", "first")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	r.Disconnect("lobby")

	_, err = r.Send("lobby", "second")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}
