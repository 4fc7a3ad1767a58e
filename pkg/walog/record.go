// Package walog implements the Log component (spec §4.3): an append-only
// write-ahead log of {BEGIN, UPDATE(before,after), COMMIT, ABORT} records
// with force-to-disk semantics. The on-disk format is opaque outside this
// package -- the spec constrains only the ordering guarantee the buffer
// pool relies on (every UPDATE record for a transaction's dirtied pages is
// forced before those pages are written through the page store, and the
// COMMIT record, appended after those writes, is forced before control
// returns from commit).
package walog

import (
	"time"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// RecordType distinguishes the kinds of record the log carries. Grounded
// on the teacher's LogRecordType, trimmed to the four kinds this core
// actually needs -- the teacher's enum also reserves INSERT/DELETE/
// CHECKPOINT/CLR record kinds for an ARIES-style redo/undo recovery path
// that this core does not implement (spec §4.6 "logical in-memory
// rollback on abort, no ARIES redo/undo").
type RecordType uint8

const (
	Begin RecordType = iota
	Update
	Commit
	Abort
)

func (t RecordType) String() string {
	switch t {
	case Begin:
		return "BEGIN"
	case Update:
		return "UPDATE"
	case Commit:
		return "COMMIT"
	case Abort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// Record is one entry in the log.
type Record struct {
	LSN       ids.LSN
	Type      RecordType
	TxID      ids.TxID
	PrevLSN   ids.LSN
	Timestamp time.Time

	// Set only for Update records.
	PageID ids.PageID
	Before []byte
	After  []byte
}
