package heap

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

// fakePageSource is a minimal PageSource for exercising File/FileIterator
// in isolation, without a full buffer pool: it caches every page it reads
// or allocates in a plain map, with no locking and no eviction, so the
// same in-memory Page is returned (and mutated in place) on every
// subsequent access within a test -- exactly the identity guarantee a
// real buffer pool also provides, just without the bounded-size/lock/log
// machinery pkg/bufferpool's own tests cover.
type fakePageSource struct {
	file  *File
	cache map[ids.PageID]storage.Page
}

func newFakePageSource(file *File) *fakePageSource {
	return &fakePageSource{file: file, cache: make(map[ids.PageID]storage.Page)}
}

func (s *fakePageSource) GetPage(tid ids.TxID, pid ids.PageID, mode lock.Mode) (storage.Page, error) {
	if pg, ok := s.cache[pid]; ok {
		return pg, nil
	}
	pg, err := s.file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	s.cache[pid] = pg
	return pg, nil
}

func (s *fakePageSource) AllocatePage(tid ids.TxID, pid ids.PageID, newPage func(ids.PageID) storage.Page) (storage.Page, error) {
	pg := newPage(pid)
	s.cache[pid] = pg
	return pg, nil
}

func newTestFile(t *testing.T, desc *tuple.Description) *File {
	t.Helper()
	fs := afero.NewMemMapFs()
	base, err := storage.OpenBaseFile(fs, ids.Filepath("/data/demo.dat"))
	require.NoError(t, err)

	f := NewFile(base, desc)
	f.SetPool(newFakePageSource(f))
	return f
}

func insertN(t *testing.T, f *File, desc *tuple.Description, n int) {
	t.Helper()
	tid := ids.NewTxID()
	for i := 0; i < n; i++ {
		tup := tuple.New(desc)
		require.NoError(t, tup.SetField(0, tuple.NewIntField(int32(i))))
		require.NoError(t, tup.SetField(1, tuple.NewIntField(int32(i))))
		_, err := f.InsertTuple(tid, tup)
		require.NoError(t, err)
	}
}

func TestFile_InsertTuple_FillsOnePageBeforeAllocatingANew(t *testing.T) {
	desc := twoIntDesc(t)
	f := newTestFile(t, desc)

	insertN(t, f, desc, 504)
	numPages, err := f.NumPages()
	require.NoError(t, err)
	require.Equal(t, ids.PageNumber(1), numPages)

	insertN(t, f, desc, 1)
	numPages, err = f.NumPages()
	require.NoError(t, err)
	require.Equal(t, ids.PageNumber(2), numPages)
}

func TestFileIterator_CrossesPageBoundaries(t *testing.T) {
	desc := twoIntDesc(t)
	f := newTestFile(t, desc)
	insertN(t, f, desc, 600)

	tid := ids.NewTxID()
	it := f.Iterator(tid)
	require.NoError(t, it.Open())

	count := 0
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 600, count)
	require.NoError(t, it.Close())
}

func TestFileIterator_UnopenedAndClosedRaiseNoSuchElement(t *testing.T) {
	desc := twoIntDesc(t)
	f := newTestFile(t, desc)
	insertN(t, f, desc, 1)

	it := f.Iterator(ids.NewTxID())

	_, err := it.Next()
	require.ErrorIs(t, err, dberrors.ErrNoSuchElement)
	has, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, it.Open())
	require.NoError(t, it.Close())

	_, err = it.Next()
	require.ErrorIs(t, err, dberrors.ErrNoSuchElement)
}

func TestFileIterator_RewindRestartsAtFirstTuple(t *testing.T) {
	desc := twoIntDesc(t)
	f := newTestFile(t, desc)
	insertN(t, f, desc, 3)

	it := f.Iterator(ids.NewTxID())
	require.NoError(t, it.Open())

	first := 0
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		first++
	}
	require.Equal(t, 3, first)

	require.NoError(t, it.Rewind())
	second := 0
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		_, err = it.Next()
		require.NoError(t, err)
		second++
	}
	require.Equal(t, 3, second)
}
