// Package dberrors defines the closed error taxonomy surfaced at the
// storage core's boundary (spec §6, §7). The sentinels below are built
// with github.com/pkg/errors; call sites return them either bare or
// wrapped (e.g. WrapStorage), and a caller can `errors.Is` down to the
// sentinel either way.
package dberrors

import "github.com/pkg/errors"

var (
	// ErrTransactionAborted is raised synchronously from a lock acquire
	// call when granting it would close a cycle in the waits-for graph.
	// It is never recovered locally; the caller must unwind and call
	// Transaction.Abort.
	ErrTransactionAborted = errors.New("transaction aborted: deadlock detected")

	// ErrBufferFull is raised when the buffer pool cannot evict any
	// clean page to make room for a miss. The caller may retry once
	// other transactions have committed or aborted.
	ErrBufferFull = errors.New("buffer pool full: no clean page available for eviction")

	// ErrStorageIO wraps an unrecoverable I/O failure at the page store.
	ErrStorageIO = errors.New("storage I/O error")

	// ErrNoSuchElement signals iterator misuse (next while unopened or
	// closed) or a lookup on an absent key.
	ErrNoSuchElement = errors.New("no such element")

	// ErrIllegalArgument signals an invalid page id, out-of-range field
	// index, or other caller-supplied value that the core rejects
	// synchronously.
	ErrIllegalArgument = errors.New("illegal argument")
)

// WrapStorage wraps err as an ErrStorageIO, preserving the original error's
// message so errors.Is(err, ErrStorageIO) still resolves to the sentinel.
func WrapStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrStorageIO, "%s: %v", msg, err)
}
