//go:build !unix

package filelock

import (
	"fmt"
	"os"
	"time"
)

// Lock is unimplemented on non-Unix platforms; mvent's mmap-backed pool
// requires unix.Flock semantics that Windows exposes through a different
// API (LockFileEx) not wired up in this build.
func Lock(f *os.File, pool string, timeout time.Duration) error {
	return fmt.Errorf("filelock: unsupported platform")
}

func Unlock(f *os.File) error {
	return fmt.Errorf("filelock: unsupported platform")
}

func WithLock(f *os.File, pool string, timeout time.Duration, op func() error) error {
	return fmt.Errorf("filelock: unsupported platform")
}
