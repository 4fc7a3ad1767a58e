// Package txn implements the transaction identity, per-transaction state,
// and the commit/abort façade described by the storage core's TX component.
package txn

import (
	"github.com/google/uuid"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// TxID is the opaque, totally-comparable transaction identifier. It is a
// re-export of ids.TxID: the identifier itself lives in the dependency-free
// pkg/ids so that pkg/storage, pkg/lock, and pkg/walog can all refer to a
// transaction without importing this package's bookkeeping.
type TxID = ids.TxID

// New mints a fresh TxID.
func New() TxID {
	return ids.NewTxID()
}

// newCorrelationID is a process-external, human-greppable tag attached to a
// transaction purely for log correlation. It has no bearing on identity,
// equality, or hashing -- TxID alone is what the lock manager, WAL, and
// buffer pool key off of.
func newCorrelationID() string {
	return uuid.NewString()
}
