//go:build unix

package filelock

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mvent/mvent/mverr"
)

// pollInterval bounds how often a timeout-bearing Lock retries the
// non-blocking flock attempt. There is no portable way to give flock(2) a
// deadline directly, so a bounded timeout degrades to polling.
const pollInterval = 10 * time.Millisecond

// Lock acquires the whole-file exclusive advisory lock on f. If timeout is
// zero or negative, Lock blocks indefinitely. Otherwise, Lock polls until
// timeout elapses and returns mverr.LockTimeoutError.
func Lock(f *os.File, pool string, timeout time.Duration) error {
	if timeout <= 0 {
		return unix.Flock(int(f.Fd()), unix.LOCK_EX)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			return err
		}
		if time.Now().After(deadline) {
			return &mverr.LockTimeoutError{Pool: pool, Waited: timeout.String(), Timeout: timeout.String()}
		}
		time.Sleep(pollInterval)
	}
}

// Unlock releases a lock acquired by Lock.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// WithLock acquires the lock, runs op, and releases the lock on every exit
// path including a panic inside op.
func WithLock(f *os.File, pool string, timeout time.Duration, op func() error) error {
	if err := Lock(f, pool, timeout); err != nil {
		return err
	}
	defer Unlock(f)
	return op()
}
