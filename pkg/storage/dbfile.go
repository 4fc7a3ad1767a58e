package storage

import "github.com/linpingchuan/ledgerdb/pkg/ids"

// DbFileIterator is the tuple cursor contract of spec §4.5/§9: a
// rewindable, closeable cursor, not a one-shot streaming iterator. tup is
// left as `any` here since this package treats tuples as opaque (spec §1
// "the tuple/field/TupleDesc data types (the core treats them opaque)");
// pkg/heap narrows it to *tuple.Tuple.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (any, error)
	Rewind() error
	Close() error
}

// DbFile is the external collaborator of spec §6: the physical storage and
// tuple-mutation contract the buffer pool delegates to. The core only ever
// calls ReadPage/WritePage itself; InsertTuple/DeleteTuple/Iterator are
// invoked on the caller's behalf and the resulting modified pages are what
// the buffer pool marks dirty and re-seats in the cache.
type DbFile interface {
	ReadPage(pid ids.PageID) (Page, error)
	WritePage(p Page) error
	NumPages() (ids.PageNumber, error)
	ID() ids.TableID

	InsertTuple(tid ids.TxID, t any) ([]Page, error)
	DeleteTuple(tid ids.TxID, t any) ([]Page, error)
	Iterator(tid ids.TxID) DbFileIterator
}
