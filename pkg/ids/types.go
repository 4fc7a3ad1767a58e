// Package ids defines the small value types used to address pages, tables,
// log records, and transactions throughout the storage core.
package ids

import "math"

// LSN (Log Sequence Number) uniquely identifies a record in the write-ahead
// log. It is monotonically increasing and corresponds to the byte offset of
// the record within the log file.
type LSN uint64

// FirstLSN is the LSN of the very first record a fresh log can contain.
const FirstLSN LSN = 0

// HashCode is a generic hash value used for fast equality/bucketing.
type HashCode uint64

// TableID identifies a table's backing file, derived deterministically from
// the file's absolute path (see Filepath.Hash).
type TableID uint64

// InvalidTableID is the zero value, never produced by Filepath.Hash for a
// non-empty path in practice but reserved as a sentinel.
const InvalidTableID TableID = 0

// PageNumber is a zero-based page offset within a table file.
type PageNumber uint64

// SlotID identifies a tuple slot within a page.
type SlotID uint32

// InvalidSlotID marks "no slot".
const InvalidSlotID SlotID = math.MaxUint32
