package lock

import (
	"sync"
	"time"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/internal/metrics"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// Manager is the Lock Manager (spec §4.2): the single entry point callers
// use to acquire and release page-level locks. It coordinates per-page
// lock state, a shared waits-for graph for deadlock detection, and a
// reverse index of which pages each transaction currently holds so
// ReleaseAll can run in one pass at commit or abort.
//
// Grounded on the teacher's LockManager, but restructured around one
// mutex that also backs every page's sync.Cond, so a blocked acquirer
// sleeps with Cond.Wait instead of polling with a sleeping retry loop,
// and reads the fresh lock state on every wakeup atomically with the
// same lock it blocked under.
type Manager struct {
	mu    sync.Mutex
	pages map[ids.PageID]*pageLock
	held  map[ids.TxID]map[ids.PageID]struct{}
	graph *DependencyGraph

	metrics *metrics.Registry
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		pages: make(map[ids.PageID]*pageLock),
		held:  make(map[ids.TxID]map[ids.PageID]struct{}),
		graph: NewDependencyGraph(),
	}
}

// SetMetrics wires reg's lock-wait and deadlock counters into every
// subsequent acquire call. Optional: a Manager with no registry simply
// skips recording, so tests can build one with NewManager() alone.
func (m *Manager) SetMetrics(reg *metrics.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = reg
}

func (m *Manager) pageLockFor(pid ids.PageID) *pageLock {
	pl, ok := m.pages[pid]
	if !ok {
		pl = newPageLock(&m.mu)
		m.pages[pid] = pl
	}
	return pl
}

// AcquireShared blocks until tid holds at least a Shared lock on pid, or
// returns ErrTransactionAborted if granting the wait would deadlock.
func (m *Manager) AcquireShared(tid ids.TxID, pid ids.PageID) error {
	return m.acquire(tid, pid, Shared)
}

// AcquireExclusive blocks until tid holds an Exclusive lock on pid,
// upgrading an existing Shared hold if tid is the sole owner, or returns
// ErrTransactionAborted if granting the wait would deadlock.
func (m *Manager) AcquireExclusive(tid ids.TxID, pid ids.PageID) error {
	return m.acquire(tid, pid, Exclusive)
}

func (m *Manager) acquire(tid ids.TxID, pid ids.PageID, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pl := m.pageLockFor(pid)
	var waitStart time.Time
	waited := false
	for {
		if pl.canGrant(tid, mode) {
			pl.grant(tid, mode)
			m.track(tid, pid)
			delete(pl.waiters, tid)
			m.graph.RemoveWaiter(tid)
			if waited {
				m.recordWait(time.Since(waitStart))
			}
			return nil
		}

		holders := pl.otherOwners(tid)
		if m.graph.WouldCycle(tid, holders) {
			delete(pl.waiters, tid)
			m.graph.RemoveWaiter(tid)
			m.recordDeadlock()
			return dberrors.ErrTransactionAborted
		}

		if !waited {
			waited = true
			waitStart = time.Now()
		}
		m.graph.SetWaitsFor(tid, holders)
		pl.waiters[tid] = struct{}{}
		pl.cond.Wait()
		delete(pl.waiters, tid)
	}
}

func (m *Manager) recordWait(d time.Duration) {
	if m.metrics == nil {
		return
	}
	m.metrics.LockWaits.Inc()
	m.metrics.LockWaitSeconds.Observe(d.Seconds())
}

func (m *Manager) recordDeadlock() {
	if m.metrics != nil {
		m.metrics.Deadlocks.Inc()
	}
}

// track records that tid holds a lock on pid, for ReleaseAll bookkeeping.
func (m *Manager) track(tid ids.TxID, pid ids.PageID) {
	pages, ok := m.held[tid]
	if !ok {
		pages = make(map[ids.PageID]struct{})
		m.held[tid] = pages
	}
	pages[pid] = struct{}{}
}

// Release drops tid's lock on pid, if any, and wakes any of that page's
// waiters that might now be grantable.
func (m *Manager) Release(tid ids.TxID, pid ids.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(tid, pid)
}

func (m *Manager) release(tid ids.TxID, pid ids.PageID) {
	pl, ok := m.pages[pid]
	if !ok {
		return
	}
	if pl.release(tid) {
		if pages := m.held[tid]; pages != nil {
			delete(pages, pid)
			if len(pages) == 0 {
				delete(m.held, tid)
			}
		}
		pl.cond.Broadcast()
	}
	if pl.empty() {
		delete(m.pages, pid)
	}
}

// ReleaseAll drops every lock tid holds, at commit or abort (spec §4.2,
// "all locks released at end of transaction"), and removes tid from the
// waits-for graph.
func (m *Manager) ReleaseAll(tid ids.TxID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages := m.held[tid]
	held := make([]ids.PageID, 0, len(pages))
	for pid := range pages {
		held = append(held, pid)
	}
	for _, pid := range held {
		m.release(tid, pid)
	}
	delete(m.held, tid)
	m.graph.RemoveWaiter(tid)
}

// HoldsLock reports the mode tid currently holds on pid, if any.
func (m *Manager) HoldsLock(tid ids.TxID, pid ids.PageID) (Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pl, ok := m.pages[pid]
	if !ok {
		return Shared, false
	}
	mode, ok := pl.owners[tid]
	return mode, ok
}

// IsLocked reports whether any transaction holds a lock on pid.
func (m *Manager) IsLocked(pid ids.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.pages[pid]
	return ok && len(pl.owners) > 0
}
