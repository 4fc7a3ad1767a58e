package walog

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

func TestLog_BeginUpdateCommit_RoundTripsThroughReader(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join(t.TempDir(), "wal.log")
	log, err := Open(fs, path, 64)
	require.NoError(t, err)

	tid := ids.NewTxID()
	pid := ids.NewPageID(1, 0)
	before := []byte("before-image")
	after := []byte("after-image.")

	beginLSN, err := log.LogBegin(tid)
	require.NoError(t, err)

	updateLSN, err := log.LogUpdate(tid, pid, before, after)
	require.NoError(t, err)
	require.Greater(t, updateLSN, beginLSN)

	commitLSN, err := log.LogCommit(tid)
	require.NoError(t, err)
	require.Greater(t, commitLSN, updateLSN)
	require.NoError(t, log.Close())

	reader, err := OpenReader(fs, path)
	require.NoError(t, err)
	defer reader.Close()

	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, Begin, records[0].Type)
	require.Equal(t, Update, records[1].Type)
	require.Equal(t, pid, records[1].PageID)
	require.Equal(t, before, records[1].Before)
	require.Equal(t, after, records[1].After)
	require.Equal(t, records[0].LSN, records[1].PrevLSN)
	require.Equal(t, Commit, records[2].Type)
	require.Equal(t, records[1].LSN, records[2].PrevLSN)
}

func TestLog_CommitForcesBufferedRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join(t.TempDir(), "wal.log")
	log, err := Open(fs, path, 1<<20) // buffer big enough that nothing auto-flushes
	require.NoError(t, err)
	defer log.Close()

	tid := ids.NewTxID()
	_, err = log.LogBegin(tid)
	require.NoError(t, err)
	_, err = log.LogCommit(tid)
	require.NoError(t, err)

	reader, err := OpenReader(fs, path)
	require.NoError(t, err)
	defer reader.Close()

	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "LogCommit must force even when the write buffer isn't full")
}

func TestLog_PrevLSNChainsPerTransactionIndependently(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join(t.TempDir(), "wal.log")
	log, err := Open(fs, path, 64)
	require.NoError(t, err)
	defer log.Close()

	t1, t2 := ids.NewTxID(), ids.NewTxID()
	b1, err := log.LogBegin(t1)
	require.NoError(t, err)
	b2, err := log.LogBegin(t2)
	require.NoError(t, err)

	u1, err := log.LogUpdate(t1, ids.NewPageID(1, 0), []byte("a"), []byte("b"))
	require.NoError(t, err)
	u2, err := log.LogUpdate(t2, ids.NewPageID(2, 0), []byte("c"), []byte("d"))
	require.NoError(t, err)

	require.NoError(t, log.Force())

	reader, err := OpenReader(fs, path)
	require.NoError(t, err)
	defer reader.Close()
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	byLSN := make(map[ids.LSN]*Record)
	for _, r := range records {
		byLSN[r.LSN] = r
	}
	require.Equal(t, b1, byLSN[u1].PrevLSN)
	require.Equal(t, b2, byLSN[u2].PrevLSN)
}
