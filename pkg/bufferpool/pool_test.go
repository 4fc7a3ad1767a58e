package bufferpool

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/walog"
)

// fakePage and fakeDbFile give these tests a minimal, fully controllable
// storage.Page/storage.DbFile pair so the Buffer Pool's own contract --
// lock-then-cache ordering, NO-STEAL eviction, flush-then-write, and
// commit/abort -- can be asserted without pulling in pkg/heap's tuple
// codec.
type fakePage struct {
	pid     ids.PageID
	data    []byte
	before  []byte
	dirtyBy ids.TxID
	dirty   bool
}

func newFakePage(pid ids.PageID, data []byte) *fakePage {
	return &fakePage{pid: pid, data: data, before: append([]byte(nil), data...)}
}

func (p *fakePage) ID() ids.PageID { return p.pid }
func (p *fakePage) DirtiedBy() (ids.TxID, bool) { return p.dirtyBy, p.dirty }
func (p *fakePage) MarkDirty(dirty bool, tid ids.TxID) {
	p.dirty = dirty
	if dirty {
		p.dirtyBy = tid
	} else {
		p.dirtyBy = ids.TxID{}
	}
}
func (p *fakePage) Bytes() []byte { return p.data }
func (p *fakePage) BeforeImage() storage.Page {
	return &fakePage{pid: p.pid, data: append([]byte(nil), p.before...)}
}
func (p *fakePage) SetBeforeImage() { p.before = append([]byte(nil), p.data...) }

type fakeDbFile struct {
	mu        sync.Mutex
	id        ids.TableID
	pages     map[ids.PageNumber][]byte
	writes    []ids.PageID
	readCount int
}

func newFakeDbFile(id ids.TableID) *fakeDbFile {
	return &fakeDbFile{id: id, pages: make(map[ids.PageNumber][]byte)}
}

func (f *fakeDbFile) ReadPage(pid ids.PageID) (storage.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCount++
	data, ok := f.pages[pid.PageNo]
	if !ok {
		data = make([]byte, storage.PageSize)
	}
	return newFakePage(pid, append([]byte(nil), data...)), nil
}

func (f *fakeDbFile) WritePage(p storage.Page) error {
	fp := p.(*fakePage)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fp.pid.PageNo] = append([]byte(nil), fp.data...)
	f.writes = append(f.writes, fp.pid)
	return nil
}

func (f *fakeDbFile) NumPages() (ids.PageNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ids.PageNumber(len(f.pages)), nil
}

func (f *fakeDbFile) ID() ids.TableID { return f.id }

func (f *fakeDbFile) InsertTuple(ids.TxID, any) ([]storage.Page, error) {
	return nil, errors.New("fakeDbFile: InsertTuple not exercised by these tests")
}

func (f *fakeDbFile) DeleteTuple(ids.TxID, any) ([]storage.Page, error) {
	return nil, errors.New("fakeDbFile: DeleteTuple not exercised by these tests")
}

func (f *fakeDbFile) Iterator(ids.TxID) storage.DbFileIterator { return nil }

type fakeResolver struct {
	files map[ids.TableID]storage.DbFile
}

func (r *fakeResolver) Lookup(tableID ids.TableID) (storage.DbFile, error) {
	f, ok := r.files[tableID]
	if !ok {
		return nil, errors.Errorf("no file for table %d", tableID)
	}
	return f, nil
}

func newTestLog(t *testing.T) *walog.Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	log, err := walog.Open(afero.NewMemMapFs(), path, 8192)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func newTestPool(t *testing.T, capacity int, file *fakeDbFile) *Pool {
	t.Helper()
	resolver := &fakeResolver{files: map[ids.TableID]storage.DbFile{file.ID(): file}}
	return New(capacity, lock.NewManager(), newTestLog(t), resolver, nil, nil)
}

func TestGetPage_CacheHitAvoidsSecondRead(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 10, file)
	pid := ids.NewPageID(1, 0)
	tid := ids.NewTxID()

	_, err := pool.GetPage(tid, pid, lock.Shared)
	require.NoError(t, err)
	_, err = pool.GetPage(tid, pid, lock.Shared)
	require.NoError(t, err)

	require.Equal(t, 1, file.readCount)
}

func TestAllocatePage_SeatsPageWithoutReadingThroughPS(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 10, file)
	pid := ids.NewPageID(1, 0)
	tid := ids.NewTxID()

	pg, err := pool.AllocatePage(tid, pid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	require.Equal(t, pid, pg.ID())
	require.Equal(t, 0, file.readCount)

	cached, err := pool.GetPage(tid, pid, lock.Shared)
	require.NoError(t, err)
	require.Same(t, pg, cached)
	require.Equal(t, 0, file.readCount, "a page seated by AllocatePage must be served from cache, not re-read")
}

func TestEvict_RemovesCleanPageOverDirtyOne(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 2, file)
	tid := ids.NewTxID()

	dirtyPid := ids.NewPageID(1, 0)
	cleanPid := ids.NewPageID(1, 1)

	dirty, err := pool.AllocatePage(tid, dirtyPid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	dirty.MarkDirty(true, tid)

	_, err = pool.GetPage(tid, cleanPid, lock.Shared)
	require.NoError(t, err)

	// Forcing a third page in with capacity 2 must evict the clean page,
	// never the dirty one (NO-STEAL), even though the dirty page is the
	// least recently used.
	_, err = pool.GetPage(tid, ids.NewPageID(1, 2), lock.Shared)
	require.NoError(t, err)

	stillCached, err := pool.GetPage(tid, dirtyPid, lock.Shared)
	require.NoError(t, err)
	require.Same(t, dirty, stillCached)
}

func TestGetPage_BufferFullWhenEveryResidentPageIsDirty(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 1, file)
	tid := ids.NewTxID()

	pid := ids.NewPageID(1, 0)
	pg, err := pool.AllocatePage(tid, pid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	pg.MarkDirty(true, tid)

	_, err = pool.GetPage(tid, ids.NewPageID(1, 1), lock.Shared)
	require.ErrorIs(t, err, dberrors.ErrBufferFull)
}

func TestFlushPage_AppendsUpdateRecordThenWrites(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 10, file)
	tid := ids.NewTxID()
	pid := ids.NewPageID(1, 0)

	pg, err := pool.AllocatePage(tid, pid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	fp := pg.(*fakePage)
	fp.data[0] = 0xAB
	fp.MarkDirty(true, tid)

	require.NoError(t, pool.FlushPage(pid))
	require.Len(t, file.writes, 1)
	require.Equal(t, pid, file.writes[0])

	owner, dirty := fp.DirtiedBy()
	require.True(t, dirty, "FlushPage alone does not clear dirty_by; CompleteTransaction does")
	require.Equal(t, tid, owner)
}

func TestCompleteTransaction_CommitClearsDirtyAndSnapshotsBeforeImage(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 10, file)
	tid := ids.NewTxID()
	pid := ids.NewPageID(1, 0)

	pg, err := pool.AllocatePage(tid, pid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	fp := pg.(*fakePage)
	fp.data[0] = 7
	fp.MarkDirty(true, tid)

	require.NoError(t, pool.FlushPagesForTx(tid))
	require.NoError(t, pool.CompleteTransaction(tid, true))

	_, dirty := fp.DirtiedBy()
	require.False(t, dirty)
	require.Equal(t, fp.data, fp.before)
	require.False(t, pool.lm.IsLocked(pid))
}

func TestCompleteTransaction_AbortRestoresBeforeImage(t *testing.T) {
	file := newFakeDbFile(1)
	pool := newTestPool(t, 10, file)
	tid := ids.NewTxID()
	pid := ids.NewPageID(1, 0)

	pg, err := pool.AllocatePage(tid, pid, func(pid ids.PageID) storage.Page {
		return newFakePage(pid, make([]byte, storage.PageSize))
	})
	require.NoError(t, err)
	fp := pg.(*fakePage)
	original := append([]byte(nil), fp.data...)
	fp.data[0] = 99
	fp.MarkDirty(true, tid)

	require.NoError(t, pool.CompleteTransaction(tid, false))
	require.Empty(t, file.writes, "abort must never write the dirtied page through PS")

	restored, err := pool.GetPage(tid, pid, lock.Shared)
	require.NoError(t, err)
	require.Equal(t, original, restored.Bytes())
	_, dirty := restored.DirtiedBy()
	require.False(t, dirty)
}
