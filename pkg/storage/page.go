// Package storage defines the Page Store contract (spec §4.1): reading and
// writing fixed-size pages of a table file, and the Page/DbFile interfaces
// the buffer pool is polymorphic over. The concrete tuple/slot layout of a
// page is left to collaborators such as pkg/heap; this package only knows
// about bytes and offsets.
package storage

import "github.com/linpingchuan/ledgerdb/pkg/ids"

// PageSize is the fixed size, in bytes, of every page in the system.
const PageSize = 4096

// Page is the capability set the buffer pool needs from any resident page,
// independent of its on-disk tuple layout (spec §9 "Page polymorphism").
type Page interface {
	ID() ids.PageID

	// DirtiedBy returns the transaction that last dirtied this page, or
	// the zero TxID with ok=false if the page is clean.
	DirtiedBy() (tid ids.TxID, ok bool)

	// MarkDirty sets or clears the dirtying transaction.
	MarkDirty(dirty bool, tid ids.TxID)

	// Bytes returns this page's current contents, exactly PageSize long.
	Bytes() []byte

	// BeforeImage returns a Page holding this page's contents as of the
	// moment it was first dirtied by its current dirtying transaction.
	BeforeImage() Page

	// SetBeforeImage snapshots the current contents as the new
	// before-image baseline, done when the dirtying transaction commits.
	SetBeforeImage()
}
