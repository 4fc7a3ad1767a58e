package ids

import (
	"fmt"
	"sync/atomic"
)

var txCounter int64

// TxID is the opaque, totally-comparable transaction identifier threaded
// through the lock manager, the WAL, and the buffer pool. Equality and
// hashing are by value, so it is safe to use directly as a map key.
type TxID struct {
	id int64
}

// NewTxID mints a fresh, process-unique TxID.
func NewTxID() TxID {
	return TxID{id: atomic.AddInt64(&txCounter, 1)}
}

// TxIDFromInt64 reconstructs a TxID from its numeric id, for deserializing
// a TxID that was previously serialized via Int64 (log record replay).
func TxIDFromInt64(id int64) TxID {
	return TxID{id: id}
}

// Int64 returns the underlying numeric id, chiefly for log record framing.
func (t TxID) Int64() int64 {
	return t.id
}

func (t TxID) String() string {
	return fmt.Sprintf("tx-%d", t.id)
}
