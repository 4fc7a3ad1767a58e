package dbcontext

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

// Config.Fs documents that it backs every table file and the WAL. Open
// used to route table files through cfg.Fs but always open the WAL against
// the real OS filesystem, so a Context built entirely over an in-memory
// filesystem would fail here: MkdirAll would create DataDir in the memfs,
// then walog.Open would try to open DataDir/wal.log on real disk, whose
// parent directory never existed.
func TestOpen_WALHonorsConfiguredMemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, err := Open(Config{DataDir: "/data", Fs: fs})
	require.NoError(t, err)
	defer ctx.Close()

	exists, err := afero.Exists(fs, "/data/wal.log")
	require.NoError(t, err)
	require.True(t, exists, "WAL file must live on the configured filesystem, not the real OS disk")
}

func TestOpen_BeginCommitRoundTripsOverMemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, err := Open(Config{DataDir: "/data", Fs: fs})
	require.NoError(t, err)
	defer ctx.Close()

	desc, err := tuple.NewDescription([]tuple.FieldType{tuple.IntType}, nil)
	require.NoError(t, err)
	_, err = ctx.CreateTable("widgets", desc)
	require.NoError(t, err)

	tx, err := ctx.Begin()
	require.NoError(t, err)
	require.Equal(t, 1, ctx.ActiveTransactionCount())

	require.NoError(t, tx.Commit())
	require.Equal(t, 0, ctx.ActiveTransactionCount())
	require.Equal(t, 0, ctx.TransactionCount())
}
