package filelock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	path := filepath.Join(t.TempDir(), "lock.test")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWithLockSerializesAccess(t *testing.T) {
	f := tempFile(t)

	var mu sync.Mutex
	var order []int
	var active, maxActive int
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// flock locks belong to an open file description, so each
			// contender needs its own handle for the lock to exclude it.
			fi, err := os.OpenFile(f.Name(), os.O_RDWR, 0644)
			require.NoError(t, err)
			defer fi.Close()
			err = WithLock(fi, "test", time.Second, func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				order = append(order, i)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}(i)
	}

	wg.Wait()
	require.Len(t, order, 8)
	require.Equal(t, 1, maxActive)
}

func TestLockTimeout(t *testing.T) {
	f1 := tempFile(t)
	f2, err := os.OpenFile(f1.Name(), os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f2.Close()

	require.NoError(t, Lock(f1, "test", 0))
	defer Unlock(f1)

	err = Lock(f2, "test", 50*time.Millisecond)
	require.Error(t, err)
}
