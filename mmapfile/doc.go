// Package mmapfile opens or creates the pool's backing file and maps it
// into the process's address space, using golang.org/x/sys/unix as the
// entry point for mmap/msync/munmap.
package mmapfile
