package txn

import (
	"fmt"
	"sync"
	"time"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// Status is the lifecycle state of a transaction.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Permissions is the access level a transaction requested for a page.
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

// Stats is a point-in-time snapshot of what a transaction has done,
// surfaced for introspection and metrics.
type Stats struct {
	PagesRead    int
	PagesWritten int
	LockedPages  int
	DirtyPages   int
}

// Context is the bookkeeping record of what one transaction has done: its
// status, the pages it has touched, and the WAL bookkeeping its
// begin/commit/abort records need. The buffer pool records page accesses,
// dirtied pages, and UPDATE LSNs into it; the lock manager keeps its own
// lock state and does not consult it.
type Context struct {
	ID            TxID
	correlationID string

	mu        sync.RWMutex
	status    Status
	startTime time.Time
	endTime   time.Time

	lockedPages map[ids.PageID]Permissions
	dirtyPages  map[ids.PageID]struct{}

	begunInLog bool
	firstLSN   ids.LSN
	lastLSN    ids.LSN

	pagesRead    int
	pagesWritten int
}

// NewContext creates a fresh, active transaction context for id.
func NewContext(id TxID) *Context {
	return &Context{
		ID:            id,
		correlationID: newCorrelationID(),
		status:        StatusActive,
		startTime:     time.Now(),
		lockedPages:   make(map[ids.PageID]Permissions),
		dirtyPages:    make(map[ids.PageID]struct{}),
	}
}

// CorrelationID returns the UUID tag used purely for log correlation.
func (c *Context) CorrelationID() string {
	return c.correlationID
}

func (c *Context) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status == StatusActive
}

func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Context) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	if s == StatusCommitted || s == StatusAborted {
		c.endTime = time.Now()
	}
}

// RecordPageAccess notes that the transaction holds perm on pid. Upgrading
// from ReadOnly to ReadWrite overwrites the recorded permission; a later
// ReadOnly access after ReadWrite does not downgrade it.
func (c *Context) RecordPageAccess(pid ids.PageID, perm Permissions) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lockedPages[pid]; ok && existing == ReadWrite {
		return
	}
	c.lockedPages[pid] = perm
	if perm == ReadOnly {
		c.pagesRead++
	}
}

// MarkPageDirty records pid as modified by this transaction.
func (c *Context) MarkPageDirty(pid ids.PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.dirtyPages[pid]; !ok {
		c.dirtyPages[pid] = struct{}{}
		c.pagesWritten++
	}
}

// DirtyPages returns a snapshot of the pages this transaction has dirtied,
// letting the buffer pool address exactly the pages a completing
// transaction touched instead of scanning every resident page (spec §4.4
// transaction_complete).
func (c *Context) DirtyPages() []ids.PageID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pages := make([]ids.PageID, 0, len(c.dirtyPages))
	for pid := range c.dirtyPages {
		pages = append(pages, pid)
	}
	return pages
}

// EnsureBegunInLog writes a BEGIN record exactly once for this transaction.
// logBegin is supplied by the caller (the WAL) so this package stays free
// of a direct dependency on pkg/walog.
func (c *Context) EnsureBegunInLog(logBegin func(TxID) (ids.LSN, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.begunInLog {
		return nil
	}
	lsn, err := logBegin(c.ID)
	if err != nil {
		return err
	}
	c.begunInLog = true
	c.firstLSN = lsn
	c.lastLSN = lsn
	return nil
}

func (c *Context) UpdateLSN(lsn ids.LSN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstLSN == ids.FirstLSN && !c.begunInLog {
		c.firstLSN = lsn
	}
	c.lastLSN = lsn
}

func (c *Context) LastLSN() ids.LSN {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastLSN
}

// Stats returns a snapshot of bookkeeping counters.
func (c *Context) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		PagesRead:    c.pagesRead,
		PagesWritten: c.pagesWritten,
		LockedPages:  len(c.lockedPages),
		DirtyPages:   len(c.dirtyPages),
	}
}

func (c *Context) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(c.startTime)
}

func (c *Context) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("Transaction %s [status=%s duration=%v dirty=%d locked=%d]",
		c.ID, c.status, c.Duration(), len(c.dirtyPages), len(c.lockedPages))
}
