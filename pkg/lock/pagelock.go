package lock

import (
	"sync"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// pageLock is the lock state for one page: who currently holds it, in
// what mode, and who is blocked waiting for it. Grounded on the
// teacher's LockTable (per-page entry) and WaitQueue, merged into one
// struct per page since both are always accessed together under the
// same critical section here.
//
// Waiters is a set, not a FIFO queue (spec §9 "no ordering guarantee
// among waiters is required"): the teacher's WaitQueue preserves arrival
// order, but nothing in the contract promises it, and a set lets any
// newly-unblockable waiter proceed on the next broadcast rather than
// only the head of a queue.
type pageLock struct {
	owners  map[ids.TxID]Mode
	waiters map[ids.TxID]struct{}
	cond    *sync.Cond
}

func newPageLock(mu *sync.Mutex) *pageLock {
	return &pageLock{
		owners:  make(map[ids.TxID]Mode),
		waiters: make(map[ids.TxID]struct{}),
		cond:    sync.NewCond(mu),
	}
}

// canGrant reports whether tid can be granted mode given the page's
// current owners, either immediately (no conflicting owner) or via an
// upgrade (tid is the sole owner).
func (pl *pageLock) canGrant(tid ids.TxID, mode Mode) bool {
	if len(pl.owners) == 0 {
		return true
	}
	if mode == Exclusive {
		for owner := range pl.owners {
			if owner != tid {
				return false
			}
		}
		return true
	}
	for owner, m := range pl.owners {
		if owner != tid && m == Exclusive {
			return false
		}
	}
	return true
}

// grant records tid as an owner in mode, upgrading an existing Shared
// hold to Exclusive if requested but never downgrading an existing
// Exclusive hold.
func (pl *pageLock) grant(tid ids.TxID, mode Mode) {
	if existing, ok := pl.owners[tid]; ok {
		if existing == Exclusive || mode == Exclusive {
			pl.owners[tid] = Exclusive
		}
		return
	}
	pl.owners[tid] = mode
}

// otherOwners returns the owners of this page other than tid.
func (pl *pageLock) otherOwners(tid ids.TxID) []ids.TxID {
	others := make([]ids.TxID, 0, len(pl.owners))
	for owner := range pl.owners {
		if owner != tid {
			others = append(others, owner)
		}
	}
	return others
}

// release removes tid as an owner, reporting whether it was one.
func (pl *pageLock) release(tid ids.TxID) bool {
	if _, ok := pl.owners[tid]; !ok {
		return false
	}
	delete(pl.owners, tid)
	return true
}

func (pl *pageLock) empty() bool {
	return len(pl.owners) == 0 && len(pl.waiters) == 0
}
