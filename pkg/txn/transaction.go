package txn

import (
	"github.com/linpingchuan/ledgerdb/internal/metrics"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// Log is the slice of the write-ahead log a Transaction façade needs.
// Expressed as an interface so pkg/txn never imports pkg/walog directly.
type Log interface {
	LogBegin(TxID) (ids.LSN, error)
	LogCommit(TxID) (ids.LSN, error)
	LogAbort(TxID) (ids.LSN, error)
}

// Pool is the slice of the buffer pool a Transaction façade needs.
// Expressed as an interface so pkg/txn never imports pkg/bufferpool
// directly (that package imports pkg/txn for TxID/Context, so the
// dependency can only run one way).
type Pool interface {
	// FlushPagesForTx appends UPDATE records, forces the log, and writes
	// through the page store for every page tid dirtied.
	FlushPagesForTx(tid TxID) error
	// CompleteTransaction clears dirty flags (commit) or restores
	// before-images (abort) and releases every lock tid holds.
	CompleteTransaction(tid TxID, commit bool) error
}

// Transaction is the thin façade of spec §4.6: it sequences
// begin -> work -> commit/abort against the buffer pool and the log, and
// enforces at-most-once commit/abort via its own started flag.
type Transaction struct {
	ctx      *Context
	log      Log
	pool     Pool
	registry *Registry
	metrics  *metrics.Registry
	started  bool
}

// NewTransaction wraps an already-registered Context with the collaborators
// needed to drive commit/abort. registry and metricsReg are both optional:
// a nil registry skips deregistration on completion, a nil metricsReg skips
// feeding Stats() into internal/metrics.
func NewTransaction(ctx *Context, log Log, pool Pool, registry *Registry, metricsReg *metrics.Registry) *Transaction {
	return &Transaction{ctx: ctx, log: log, pool: pool, registry: registry, metrics: metricsReg}
}

// ID returns the transaction identifier.
func (t *Transaction) ID() TxID {
	return t.ctx.ID
}

// Context exposes the underlying bookkeeping context.
func (t *Transaction) Context() *Context {
	return t.ctx
}

// Start appends the BEGIN record and marks the transaction as begun.
func (t *Transaction) Start() error {
	if err := t.ctx.EnsureBegunInLog(t.log.LogBegin); err != nil {
		return err
	}
	t.started = true
	return nil
}

// Commit flushes every page this transaction dirtied (which appends their
// UPDATE records and forces the log as a side effect of FlushPagesForTx),
// appends and forces the COMMIT record, then releases locks and clears
// dirty state via CompleteTransaction. At-most-once: a second Commit or
// Abort call after this one is a no-op.
func (t *Transaction) Commit() error {
	if !t.started {
		return nil
	}
	t.started = false

	if err := t.pool.FlushPagesForTx(t.ctx.ID); err != nil {
		return err
	}
	if _, err := t.log.LogCommit(t.ctx.ID); err != nil {
		return err
	}
	if err := t.pool.CompleteTransaction(t.ctx.ID, true); err != nil {
		return err
	}
	t.finish(StatusCommitted)
	return nil
}

// Abort appends the ABORT record, then undoes every page this transaction
// dirtied by restoring its before-image, and releases locks.
func (t *Transaction) Abort() error {
	if !t.started {
		return nil
	}
	t.started = false

	if _, err := t.log.LogAbort(t.ctx.ID); err != nil {
		return err
	}
	if err := t.pool.CompleteTransaction(t.ctx.ID, false); err != nil {
		return err
	}
	t.finish(StatusAborted)
	return nil
}

// finish marks ctx's terminal status, feeds its bookkeeping Stats into
// internal/metrics, and drops it from the registry: a transaction ends on
// exactly one of commit/abort (spec §4.6), so nothing about it needs to
// stay resident in the registry past this point.
func (t *Transaction) finish(status Status) {
	t.ctx.setStatus(status)
	if t.metrics != nil {
		stats := t.ctx.Stats()
		t.metrics.TxPagesRead.Add(float64(stats.PagesRead))
		t.metrics.TxPagesWritten.Add(float64(stats.PagesWritten))
	}
	if t.registry != nil {
		t.registry.Remove(t.ctx.ID)
	}
}
