//go:build !unix

package mmapfile

import (
	"fmt"
	"os"
)

type File struct {
	OS     *os.File
	Region []byte
}

func OpenOrCreate(path string, size int64) (*File, bool, error) {
	return nil, false, fmt.Errorf("mmapfile: unsupported platform")
}

func (mf *File) Sync() error  { return fmt.Errorf("mmapfile: unsupported platform") }
func (mf *File) Close() error { return fmt.Errorf("mmapfile: unsupported platform") }
