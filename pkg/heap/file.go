package heap

import (
	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

// PageSource is the slice of the buffer pool a File needs to find a page
// with free space for InsertTuple/DeleteTuple: acquiring the lock and
// resolving to a cached or freshly-read Page are both the buffer pool's
// job (spec §4.4), so File only ever talks to it through this interface
// and never to pkg/storage's raw PageStore directly for a page it mutates.
//
// AllocatePage takes the already-reserved page id (File reserves it via its
// BaseFile's AllocateNewPage, which is what actually extends the file) and
// a constructor instead of a Description, so the buffer pool never has to
// know this is a bitmap-header heap page -- it pins the lock, makes room in
// the cache, and calls newPage(pid) itself, keeping the pool's Page
// handling opaque the same way GetPage's return value is.
type PageSource interface {
	GetPage(tid ids.TxID, pid ids.PageID, mode lock.Mode) (storage.Page, error)
	AllocatePage(tid ids.TxID, pid ids.PageID, newPage func(ids.PageID) storage.Page) (storage.Page, error)
}

// File is a concrete, opaque-to-the-core DbFile (spec §6): a HeapFile of
// bitmap-header slotted pages. Grounded on the teacher's heap.HeapFile
// (pkg/storage/heap/file.go, embedding page.BaseFile) and
// table.TupleManager's InsertTuple/DeleteTuple (pkg/memory/wrappers/table/
// manager.go), collapsed into one type since this core has no index
// maintainer or batch-operation layer to keep separate.
type File struct {
	base *storage.BaseFile
	desc *tuple.Description
	pool PageSource
}

// NewFile wraps base as a heap file with the given tuple schema. pool is
// supplied after construction via SetPool once the buffer pool exists,
// breaking the otherwise-circular dbcontext wiring order (storage has no
// buffer pool yet when tables are first opened).
func NewFile(base *storage.BaseFile, desc *tuple.Description) *File {
	return &File{base: base, desc: desc}
}

// SetPool wires the buffer pool this file delegates page access through.
func (f *File) SetPool(pool PageSource) { f.pool = pool }

// Close releases the underlying table file handle.
func (f *File) Close() error { return f.base.Close() }

func (f *File) ID() ids.TableID                { return f.base.ID() }
func (f *File) Description() *tuple.Description { return f.desc }

func (f *File) NumPages() (ids.PageNumber, error) {
	return f.base.NumPages()
}

func (f *File) ReadPage(pid ids.PageID) (storage.Page, error) {
	if pid.TableID != f.base.ID() {
		return nil, dberrors.ErrIllegalArgument
	}
	data, err := f.base.ReadPageData(pid.PageNo)
	if err != nil {
		return nil, err
	}
	return Parse(pid, f.desc, data)
}

func (f *File) WritePage(p storage.Page) error {
	hp, ok := p.(*Page)
	if !ok {
		return dberrors.ErrIllegalArgument
	}
	return f.base.WritePageData(hp.pid.PageNo, hp.Bytes())
}

// InsertTuple finds (or allocates) a page with a free slot through the
// buffer pool, inserts t, and returns the single modified page -- the
// buffer pool is the one that marks it dirty and re-seats it in the
// cache (spec §4.4).
func (f *File) InsertTuple(tid ids.TxID, t any) ([]storage.Page, error) {
	tup, ok := t.(*tuple.Tuple)
	if !ok {
		return nil, dberrors.ErrIllegalArgument
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}

	for n := ids.PageNumber(0); n < numPages; n++ {
		pid := ids.NewPageID(f.ID(), n)
		pg, err := f.pool.GetPage(tid, pid, lock.Exclusive)
		if err != nil {
			return nil, err
		}
		hp := pg.(*Page)
		if hp.NumEmptySlots() > 0 {
			if _, err := hp.InsertTuple(tup); err != nil {
				return nil, err
			}
			return []storage.Page{hp}, nil
		}
	}

	pageNo, err := f.base.AllocateNewPage()
	if err != nil {
		return nil, err
	}
	newPid := ids.NewPageID(f.ID(), pageNo)
	pg, err := f.pool.AllocatePage(tid, newPid, func(pid ids.PageID) storage.Page {
		return NewEmpty(pid, f.desc)
	})
	if err != nil {
		return nil, err
	}
	hp := pg.(*Page)
	if _, err := hp.InsertTuple(tup); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// DeleteTuple removes t (which must carry a RecordID from a prior
// InsertTuple or scan) from its page via the buffer pool and returns the
// single modified page.
func (f *File) DeleteTuple(tid ids.TxID, t any) ([]storage.Page, error) {
	tup, ok := t.(*tuple.Tuple)
	if !ok || tup.RecordID == nil {
		return nil, dberrors.ErrIllegalArgument
	}

	pg, err := f.pool.GetPage(tid, tup.RecordID.PageID, lock.Exclusive)
	if err != nil {
		return nil, err
	}
	hp := pg.(*Page)
	if err := hp.DeleteTuple(tup.RecordID.Slot); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// Iterator returns a fresh, Unopened cursor over every tuple in the file
// (the Heap Iterator of spec §4.5), scoped to tid.
func (f *File) Iterator(tid ids.TxID) storage.DbFileIterator {
	return NewFileIterator(f, tid)
}
