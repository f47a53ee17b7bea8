// Package filelock provides the cross-process advisory lock: a blocking,
// timeout-bounded exclusive lock over the entire pool backing file,
// acquired for every mutation and for every read that needs a consistent
// frame view. It is the sole cross-process synchronizer in mvent —
// everything else the backing file holds is read-mostly outside the lock.
package filelock
