// Package dbcontext wires one running engine instance together: the
// Buffer Pool, its Lock Manager, the write-ahead log, the table catalog,
// a structured logger, and a metrics registry. It replaces the teacher's
// process-wide `Database` singleton (pkg/database.go's package-level
// `GetCatalog()`/`GetBufferPool()` accessors) with an explicit, owned
// Context value so tests can run more than one engine instance in the
// same process without colliding on global state.
package dbcontext

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/linpingchuan/ledgerdb/internal/metrics"
	"github.com/linpingchuan/ledgerdb/internal/txlog"
	"github.com/linpingchuan/ledgerdb/pkg/bufferpool"
	"github.com/linpingchuan/ledgerdb/pkg/catalog"
	"github.com/linpingchuan/ledgerdb/pkg/heap"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
	"github.com/linpingchuan/ledgerdb/pkg/txn"
	"github.com/linpingchuan/ledgerdb/pkg/walog"
)

// Config selects the one running engine instance's resources.
type Config struct {
	// DataDir holds every table file this instance opens.
	DataDir string
	// WALPath is the write-ahead log file. Defaults to DataDir/wal.log.
	WALPath string
	// WALBufferSize is the log's in-memory write buffer, in bytes.
	// Defaults to 8192.
	WALBufferSize int
	// PageCacheCapacity bounds the buffer pool's resident page count.
	// Defaults to 50, the teacher's MaxPageCount.
	PageCacheCapacity int
	// Logger selects level/format/output for the structured logger.
	Logger txlog.Config
	// Fs backs every table file and the WAL. Defaults to the real OS
	// filesystem; tests substitute afero.NewMemMapFs().
	Fs afero.Fs
}

const defaultPageCacheCapacity = 50

// Context is one running engine instance: every collaborator the storage
// core needs, owned together so Open/Close have one obvious place to
// live (spec §1 DESIGN NOTES §9 "Global singletons").
type Context struct {
	cfg Config

	Pool    *bufferpool.Pool
	Locks   *lock.Manager
	Log     *walog.Log
	Catalog *catalog.Catalog
	Logger  *zap.Logger
	Metrics *metrics.Registry

	registry *txn.Registry
	fs       afero.Fs
}

// Open constructs every collaborator and returns a ready Context. The
// data directory is created if absent; the WAL is opened (or replayed
// from, on a future recovery path) at cfg.WALPath.
func Open(cfg Config) (*Context, error) {
	if cfg.PageCacheCapacity <= 0 {
		cfg.PageCacheCapacity = defaultPageCacheCapacity
	}
	if cfg.WALBufferSize <= 0 {
		cfg.WALBufferSize = 8192
	}
	if cfg.WALPath == "" {
		cfg.WALPath = filepath.Join(cfg.DataDir, "wal.log")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	logger, err := txlog.New(cfg.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	if err := cfg.Fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", cfg.DataDir)
	}

	log, err := walog.Open(cfg.Fs, cfg.WALPath, cfg.WALBufferSize)
	if err != nil {
		return nil, errors.Wrap(err, "open WAL")
	}

	cat := catalog.New()
	reg := metrics.New()
	lm := lock.NewManager()
	lm.SetMetrics(reg)
	txReg := txn.NewRegistry()
	pool := bufferpool.New(cfg.PageCacheCapacity, lm, log, cat, reg, logger)
	pool.SetTxRegistry(txReg)

	return &Context{
		cfg:      cfg,
		Pool:     pool,
		Locks:    lm,
		Log:      log,
		Catalog:  cat,
		Logger:   logger,
		Metrics:  reg,
		registry: txReg,
		fs:       cfg.Fs,
	}, nil
}

// CreateTable opens (or creates) a heap table file at name under the data
// directory, registers it in the catalog under name, and wires it to this
// Context's buffer pool.
func (c *Context) CreateTable(name string, desc *tuple.Description) (*heap.File, error) {
	path := ids.Filepath(filepath.Join(c.cfg.DataDir, name+".dat"))
	base, err := storage.OpenBaseFile(c.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open table file for %s", name)
	}

	f := heap.NewFile(base, desc)
	f.SetPool(c.Pool)

	if err := c.Catalog.AddTable(name, f, desc); err != nil {
		return nil, err
	}
	c.Logger.Info("table opened", zap.String("name", name), zap.Uint64("table_id", uint64(f.ID())))
	return f, nil
}

// Begin starts a fresh Transaction, registering its Context in this
// instance's transaction registry.
func (c *Context) Begin() (*txn.Transaction, error) {
	tctx := c.registry.Begin()
	tx := txn.NewTransaction(tctx, c.Log, c.Pool, c.registry, c.Metrics)
	if err := tx.Start(); err != nil {
		return nil, err
	}
	return tx, nil
}

// ActiveTransactionCount reports how many transactions this instance has
// begun but not yet committed or aborted, for a liveness/diagnostics
// endpoint to poll without reaching into the registry directly.
func (c *Context) ActiveTransactionCount() int {
	return len(c.registry.Active())
}

// TransactionCount reports every transaction still tracked by the
// registry, active or not yet reaped.
func (c *Context) TransactionCount() int {
	return c.registry.Count()
}

// Close flushes every resident dirty page, closes the WAL, and releases
// every open table file handle.
func (c *Context) Close() error {
	if err := c.Pool.FlushAllPages(); err != nil {
		return errors.Wrap(err, "flush pages on close")
	}
	for _, name := range c.Catalog.Names() {
		if err := c.Catalog.RemoveTable(name); err != nil {
			c.Logger.Warn("error closing table file", zap.String("name", name), zap.Error(err))
		}
	}
	if err := c.Log.Close(); err != nil {
		return errors.Wrap(err, "close WAL")
	}
	return c.Logger.Sync()
}
