package heap

import (
	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
)

// iterState is the cursor lifecycle of spec §4.5/§9: Unopened, Open,
// Closed. Outside Open, next raises ErrNoSuchElement and has_next reports
// false.
type iterState int

const (
	stateUnopened iterState = iota
	stateOpen
	stateClosed
)

// FileIterator is the Heap Iterator (spec §4.5) made concrete over File:
// a lazy, restartable, finite cursor over every tuple in the file, one
// page at a time, acquiring a SHARED lock on each page through the
// buffer pool as it is visited. Locks acquired this way are retained
// until transaction completion per strict 2PL (spec §4.5, §5) -- this
// iterator never releases a page lock itself.
//
// Grounded on the teacher's heap.HeapFileIterator (pkg/storage/heap/
// file_iterator.go), restated against this package's bitmap-header Page.
type FileIterator struct {
	file  *File
	tid   ids.TxID
	state iterState

	pageNo  ids.PageNumber
	slot    int
	current *Page
}

// NewFileIterator builds a fresh, Unopened iterator over file for tid.
func NewFileIterator(file *File, tid ids.TxID) *FileIterator {
	return &FileIterator{file: file, tid: tid}
}

// Open positions the cursor at the first tuple of page 0.
func (it *FileIterator) Open() error {
	it.pageNo = 0
	it.slot = 0
	it.current = nil
	it.state = stateOpen
	return it.loadPage(0)
}

func (it *FileIterator) loadPage(pageNo ids.PageNumber) error {
	numPages, err := it.file.NumPages()
	if err != nil {
		return err
	}
	if pageNo >= numPages {
		it.current = nil
		return nil
	}
	pid := ids.NewPageID(it.file.ID(), pageNo)
	pg, err := it.file.pool.GetPage(it.tid, pid, lock.Shared)
	if err != nil {
		return err
	}
	it.current = pg.(*Page)
	it.pageNo = pageNo
	it.slot = 0
	return nil
}

// HasNext reports whether Next would return a tuple.
func (it *FileIterator) HasNext() (bool, error) {
	if it.state != stateOpen {
		return false, nil
	}
	for it.current != nil {
		if it.slot >= it.current.NumSlots() {
			numPages, err := it.file.NumPages()
			if err != nil {
				return false, err
			}
			next := it.pageNo + 1
			if next >= numPages {
				it.current = nil
				return false, nil
			}
			if err := it.loadPage(next); err != nil {
				return false, err
			}
			continue
		}
		if it.current.SlotUsed(it.slot) {
			return true, nil
		}
		it.slot++
	}
	return false, nil
}

// Next returns the next tuple in file order, advancing across pages as
// each is exhausted.
func (it *FileIterator) Next() (any, error) {
	if it.state != stateOpen {
		return nil, dberrors.ErrNoSuchElement
	}
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.ErrNoSuchElement
	}
	t, _ := it.current.TupleAt(it.slot)
	it.slot++
	return t, nil
}

// Rewind restarts the cursor at the first tuple, equivalent to Open
// (spec §4.5 "rewind = open").
func (it *FileIterator) Rewind() error {
	return it.Open()
}

// Close transitions to Closed. Idempotent.
func (it *FileIterator) Close() error {
	it.state = stateClosed
	it.current = nil
	return nil
}
