//go:build unix

package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a memory-mapped backing file. Region is the live mapping; callers
// must not reslice or grow it; capacity is fixed at creation.
type File struct {
	OS     *os.File
	Region []byte
}

// OpenOrCreate opens path if it exists, otherwise creates it truncated to
// size. created reports which branch was taken, since Pool.Open needs it to
// decide whether to write a fresh header or trust the existing one.
func OpenOrCreate(path string, size int64) (*File, bool, error) {
	if err := os.MkdirAll(parentDir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("mmapfile: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	created := false
	if os.IsNotExist(err) {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			created = true
		} else if os.IsExist(err) {
			// Lost a creation race with another process; open the file it made.
			f, err = os.OpenFile(path, os.O_RDWR, 0644)
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	mapSize := size
	if created {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("mmapfile: truncate: %w", err)
		}
	} else {
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, false, fmt.Errorf("mmapfile: stat: %w", statErr)
		}
		mapSize = info.Size()
	}

	region, err := unix.Mmap(int(f.Fd()), 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("mmapfile: mmap: %w", err)
	}

	return &File{OS: f, Region: region}, created, nil
}

// Sync flushes dirty pages of the mapping to the backing file.
func (mf *File) Sync() error {
	return unix.Msync(mf.Region, unix.MS_SYNC)
}

// Close unmaps the region and closes the file descriptor.
func (mf *File) Close() error {
	if mf.Region != nil {
		if err := unix.Munmap(mf.Region); err != nil {
			mf.OS.Close()
			return fmt.Errorf("mmapfile: munmap: %w", err)
		}
		mf.Region = nil
	}
	return mf.OS.Close()
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
