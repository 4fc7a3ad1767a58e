// Package bufferpool implements the Buffer Pool (spec §4.4): the single
// choke point every page access, mutation, flush, and transaction
// completion passes through. It owns the bounded LRU page cache, holds the
// lock manager and the write-ahead log, and resolves a page's table id to
// its DbFile through a small registry interface so it never imports
// pkg/catalog directly.
//
// Grounded on the teacher's PageStore (pkg/memory/store.go): GetPage's
// lock-then-cache-then-read-through ordering, the NO-STEAL evict policy,
// and the commit/abort shape of transaction_complete all restate it
// faithfully. It diverges in one place the teacher does not (REDESIGN FLAG
// #6, SPEC_FULL.md §4): InsertTuple/DeleteTuple here never touch the log
// at all -- only flushPage appends the single UPDATE record a dirty page
// needs, carrying both its before- and after-image, at the moment that
// page is written through the page store rather than at the moment the
// tuple operation happened.
package bufferpool

import (
	"sync"

	"go.uber.org/zap"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/internal/metrics"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/lock"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/txn"
	"github.com/linpingchuan/ledgerdb/pkg/walog"
)

// TableResolver resolves a table id to the DbFile that owns its pages, the
// "registry that resolves table_id -> PageStore" of spec §4.4. Expressed
// as an interface so this package never imports pkg/catalog.
type TableResolver interface {
	Lookup(tableID ids.TableID) (storage.DbFile, error)
}

// Pool is the Buffer Pool. Every field it holds is exactly what spec §4.4
// lists as BP state: the bounded cache, the lock manager, the log, and the
// table registry.
type Pool struct {
	mu       sync.Mutex
	cache    *pageCache
	capacity int

	lm       *lock.Manager
	log      *walog.Log
	resolver TableResolver
	txns     *txn.Registry

	metrics *metrics.Registry
	logger  *zap.Logger
}

// New builds a Pool bounded to capacity resident pages.
func New(capacity int, lm *lock.Manager, log *walog.Log, resolver TableResolver, reg *metrics.Registry, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cache:    newPageCache(),
		capacity: capacity,
		lm:       lm,
		log:      log,
		resolver: resolver,
		metrics:  reg,
		logger:   logger,
	}
}

// SetTxRegistry wires reg so every subsequent GetPage/AllocatePage/
// InsertTuple/DeleteTuple call feeds a page access or dirty into the
// owning transaction's bookkeeping Context (SPEC_FULL.md §5,
// TransactionContext.Stats). Optional: a Pool with no registry simply
// skips recording, the same pattern as lock.Manager.SetMetrics.
func (p *Pool) SetTxRegistry(reg *txn.Registry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txns = reg
}

// recordAccess feeds a page access at the given mode into tid's
// bookkeeping Context, if tid is registered. A miss (no registry wired, or
// tid unknown to it) is silently skipped rather than an error, since
// bookkeeping is introspection, not a correctness dependency of the core.
func (p *Pool) recordAccess(tid ids.TxID, pid ids.PageID, mode lock.Mode) {
	if p.txns == nil {
		return
	}
	tctx, err := p.txns.Get(tid)
	if err != nil {
		return
	}
	perm := txn.ReadOnly
	if mode == lock.Exclusive {
		perm = txn.ReadWrite
	}
	tctx.RecordPageAccess(pid, perm)
}

// recordDirty feeds tid's bookkeeping Context one MarkPageDirty call per
// page InsertTuple/DeleteTuple modified.
func (p *Pool) recordDirty(tid ids.TxID, pages []storage.Page) {
	if p.txns == nil {
		return
	}
	tctx, err := p.txns.Get(tid)
	if err != nil {
		return
	}
	for _, pg := range pages {
		tctx.MarkPageDirty(pg.ID())
	}
}

// recordLSN advances tid's bookkeeping Context past the UPDATE record
// FlushPage just appended, so Context.LastLSN reflects every record the
// transaction has produced rather than only its BEGIN record.
func (p *Pool) recordLSN(tid ids.TxID, lsn ids.LSN) {
	if p.txns == nil {
		return
	}
	tctx, err := p.txns.Get(tid)
	if err != nil {
		return
	}
	tctx.UpdateLSN(lsn)
}

// GetPage acquires the requested lock, then returns pid's page: a cache
// hit if resident, or a read through the page store after making room
// (spec §4.4 get_page). The lock is always acquired before the cache
// lookup, so a reader that observes a cached page always holds a legal
// lock on it, and eviction/insertion are serialized by Pool's own mutex so
// two concurrent misses for the same page cannot insert it twice.
func (p *Pool) GetPage(tid ids.TxID, pid ids.PageID, mode lock.Mode) (storage.Page, error) {
	if err := p.acquire(tid, mode, pid); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pg, ok := p.cache.get(pid); ok {
		p.bumpHit()
		p.recordAccess(tid, pid, mode)
		return pg, nil
	}
	p.bumpMiss()

	if p.cache.size() >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}

	dbFile, err := p.resolver.Lookup(pid.TableID)
	if err != nil {
		return nil, err
	}
	pg, err := dbFile.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	p.cache.put(pid, pg)
	p.recordAccess(tid, pid, mode)
	return pg, nil
}

// AllocatePage seats a freshly constructed page at pid under an exclusive
// lock, evicting a clean victim first if the pool is full. Called by a
// DbFile growing a new page (heap.File.InsertTuple when no existing page
// has room), never directly by a transaction.
func (p *Pool) AllocatePage(tid ids.TxID, pid ids.PageID, newPage func(ids.PageID) storage.Page) (storage.Page, error) {
	if err := p.acquire(tid, lock.Exclusive, pid); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache.size() >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
	}
	pg := newPage(pid)
	p.cache.put(pid, pg)
	p.recordAccess(tid, pid, lock.Exclusive)
	return pg, nil
}

// acquire delegates to the lock manager, which owns the lock-wait and
// deadlock counters itself once wired via lock.Manager.SetMetrics -- the
// pool does not double-count them here.
func (p *Pool) acquire(tid ids.TxID, mode lock.Mode, pid ids.PageID) error {
	if mode == lock.Exclusive {
		return p.lm.AcquireExclusive(tid, pid)
	}
	return p.lm.AcquireShared(tid, pid)
}

// evictLocked scans the cache in LRU order and removes the first clean
// (not dirty) page it finds, per the NO-STEAL policy: a dirty page is
// never written out just to make room, only discarded once its owning
// transaction commits or aborts. Returns ErrBufferFull if every resident
// page is dirty.
func (p *Pool) evictLocked() error {
	for _, pid := range p.cache.evictionOrder() {
		pg, ok := p.cache.get(pid)
		if !ok {
			continue
		}
		if _, dirty := pg.DirtiedBy(); dirty {
			continue
		}
		p.cache.remove(pid)
		p.bumpEviction()
		return nil
	}
	p.logger.Warn("buffer pool full, no clean page to evict", zap.Int("resident", p.cache.size()))
	return dberrors.ErrBufferFull
}

// InsertTuple delegates to tableID's DbFile and marks every page it
// modified as dirtied by tid, re-seating each in the cache (spec §4.4
// insert_tuple). tableID is required explicitly here since pkg/storage
// treats tuple data as opaque (t any) and this core has no generic way to
// recover a table id from it.
func (p *Pool) InsertTuple(tid ids.TxID, tableID ids.TableID, t any) ([]storage.Page, error) {
	dbFile, err := p.resolver.Lookup(tableID)
	if err != nil {
		return nil, err
	}
	pages, err := dbFile.InsertTuple(tid, t)
	if err != nil {
		return nil, err
	}
	p.markDirty(tid, pages)
	return pages, nil
}

// DeleteTuple delegates to tableID's DbFile and marks every page it
// modified as dirtied by tid (spec §4.4 delete_tuple).
func (p *Pool) DeleteTuple(tid ids.TxID, tableID ids.TableID, t any) ([]storage.Page, error) {
	dbFile, err := p.resolver.Lookup(tableID)
	if err != nil {
		return nil, err
	}
	pages, err := dbFile.DeleteTuple(tid, t)
	if err != nil {
		return nil, err
	}
	p.markDirty(tid, pages)
	return pages, nil
}

func (p *Pool) markDirty(tid ids.TxID, pages []storage.Page) {
	p.mu.Lock()
	for _, pg := range pages {
		pg.MarkDirty(true, tid)
		p.cache.put(pg.ID(), pg)
	}
	p.mu.Unlock()
	p.recordDirty(tid, pages)
}

// FlushPage writes pid through its page store if it is resident and
// dirty: append one UPDATE record carrying its before- and after-image,
// force the log, then write the page (spec §4.4 flush_page). A page that
// is absent or clean is a no-op, not an error.
func (p *Pool) FlushPage(pid ids.PageID) error {
	p.mu.Lock()
	pg, ok := p.cache.get(pid)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	dirtyBy, dirty := pg.DirtiedBy()
	if !dirty {
		return nil
	}

	before := pg.BeforeImage().Bytes()
	after := pg.Bytes()
	lsn, err := p.log.LogUpdate(dirtyBy, pid, before, after)
	if err != nil {
		return err
	}
	if err := p.log.Force(); err != nil {
		return err
	}
	p.recordLSN(dirtyBy, lsn)

	dbFile, err := p.resolver.Lookup(pid.TableID)
	if err != nil {
		return err
	}
	if err := dbFile.WritePage(pg); err != nil {
		return err
	}
	p.bumpFlush()
	return nil
}

// FlushPagesForTx flushes every page tid has dirtied (spec §4.6 commit,
// via the Pool interface pkg/txn.Transaction depends on).
func (p *Pool) FlushPagesForTx(tid ids.TxID) error {
	for _, pid := range p.dirtiedBy(tid) {
		if err := p.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// FlushPages is an alias of FlushPagesForTx under the spec's own name.
func (p *Pool) FlushPages(tid ids.TxID) error { return p.FlushPagesForTx(tid) }

// FlushAllPages flushes every dirty resident page, regardless of owner.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	pids := p.cache.evictionOrder()
	p.mu.Unlock()

	for _, pid := range pids {
		if err := p.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// dirtiedBy returns the pages tid has dirtied. When a transaction registry
// is wired, this is answered directly from the owning Context's own
// bookkeeping (SPEC_FULL.md §5) instead of scanning every resident page;
// the scan remains as a fallback for callers with no registry (e.g. tests
// exercising the Pool in isolation).
func (p *Pool) dirtiedBy(tid ids.TxID) []ids.PageID {
	if p.txns != nil {
		if tctx, err := p.txns.Get(tid); err == nil {
			return tctx.DirtyPages()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ids.PageID
	for _, pid := range p.cache.evictionOrder() {
		pg, ok := p.cache.get(pid)
		if !ok {
			continue
		}
		if owner, dirty := pg.DirtiedBy(); dirty && owner == tid {
			out = append(out, pid)
		}
	}
	return out
}

// CompleteTransaction is transaction_complete (spec §4.4): on commit,
// every page tid dirtied has already been flushed by FlushPagesForTx, so
// this only clears dirty_by and snapshots a fresh before-image baseline
// for future aborts; on abort, every such page's cache entry is replaced by
// a page rebuilt from its before-image (logical undo, no flush). Either way every lock tid
// holds is released last.
func (p *Pool) CompleteTransaction(tid ids.TxID, commit bool) error {
	pids := p.dirtiedBy(tid)

	p.mu.Lock()
	for _, pid := range pids {
		pg, ok := p.cache.get(pid)
		if !ok {
			continue
		}
		owner, dirty := pg.DirtiedBy()
		if !dirty || owner != tid {
			continue
		}
		if commit {
			pg.MarkDirty(false, ids.TxID{})
			pg.SetBeforeImage()
		} else {
			p.cache.put(pid, pg.BeforeImage())
		}
	}
	p.mu.Unlock()

	p.lm.ReleaseAll(tid)
	outcome := "abort"
	if commit {
		outcome = "commit"
	}
	p.logger.Debug("transaction complete", zap.Stringer("tid", tid), zap.String("outcome", outcome))
	p.bumpVec(outcome)
	return nil
}

// DiscardPage drops pid from the cache without flushing it, used during
// recovery to evict a page whose transaction is known to have aborted.
func (p *Pool) DiscardPage(pid ids.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.remove(pid)
}

func (p *Pool) bumpHit() {
	if p.metrics != nil {
		p.metrics.PageCacheHits.Inc()
	}
}

func (p *Pool) bumpMiss() {
	if p.metrics != nil {
		p.metrics.PageCacheMisses.Inc()
	}
}

func (p *Pool) bumpEviction() {
	if p.metrics != nil {
		p.metrics.PageEvictions.Inc()
	}
}

func (p *Pool) bumpFlush() {
	if p.metrics != nil {
		p.metrics.PagesFlushed.Inc()
	}
}

func (p *Pool) bumpVec(outcome string) {
	if p.metrics != nil {
		p.metrics.TransactionsDone.WithLabelValues(outcome).Inc()
	}
}
