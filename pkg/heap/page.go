// Package heap implements a concrete, opaque-to-the-core DbFile (spec §6):
// a classic bitmap-header slotted page (HeapPage) and the file that owns a
// sequence of them (HeapFile), supplementing spec.md's "Page/DbFile are
// opaque to the core" stance with the minimal tuple storage needed to
// exercise the core end-to-end (SPEC_FULL.md §3).
//
// The slot layout follows original_source's HeapFileReadTest expectations
// rather than the teacher's PostgreSQL-style variable-length slotted page
// (pkg/storage/heap/page.go): a fixed-width bitmap header followed by a
// fixed-width tuple array, so that two int fields and PAGE_SIZE=4096 yield
// exactly 484 empty slots out of 504 for a 20-tuple page (spec §8 scenario
// 2).
package heap

import (
	"sync"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

// NumSlots returns the number of tuple slots a page holds for a tuple of
// the given encoded size, per the classic bitmap-header formula:
// floor(PageSize*8 / (tupleSize*8 + 1)).
func NumSlots(tupleSize int) int {
	return (storage.PageSize * 8) / (tupleSize*8 + 1)
}

// HeaderBytes returns the number of bytes the slot-usage bitmap occupies
// for a page with the given number of slots: ceil(numSlots/8).
func HeaderBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// Page is the bitmap-header slotted page implementing storage.Page. Every
// resident page caches its tuples decoded so FileIterator does not
// re-parse bytes per Next call.
type Page struct {
	mu sync.RWMutex

	pid    ids.PageID
	desc   *tuple.Description
	header []byte // bitmap, 1 bit per slot, 1 = occupied
	slots  []*tuple.Tuple
	tupSz  int

	dirtyBy   ids.TxID
	isDirty   bool
	before    []byte // serialized before-image, set by NewEmpty/Parse and SetBeforeImage
}

// NewEmpty builds a freshly zeroed page (every slot empty).
func NewEmpty(pid ids.PageID, desc *tuple.Description) *Page {
	tupSz := desc.Size()
	numSlots := NumSlots(tupSz)
	hdrLen := HeaderBytes(numSlots)
	p := &Page{
		pid:    pid,
		desc:   desc,
		header: make([]byte, hdrLen),
		slots:  make([]*tuple.Tuple, numSlots),
		tupSz:  tupSz,
	}
	p.before = p.serializeLocked()
	return p
}

// Parse decodes a page from raw PageSize bytes read off disk.
func Parse(pid ids.PageID, desc *tuple.Description, data []byte) (*Page, error) {
	if len(data) != storage.PageSize {
		return nil, dberrors.ErrIllegalArgument
	}
	tupSz := desc.Size()
	numSlots := NumSlots(tupSz)
	hdrLen := HeaderBytes(numSlots)

	p := &Page{
		pid:    pid,
		desc:   desc,
		header: append([]byte(nil), data[:hdrLen]...),
		slots:  make([]*tuple.Tuple, numSlots),
		tupSz:  tupSz,
	}

	off := hdrLen
	for i := 0; i < numSlots; i++ {
		if p.slotUsed(i) {
			t, err := tuple.Parse(desc, data[off:off+tupSz])
			if err != nil {
				return nil, err
			}
			t.RecordID = &tuple.RecordID{PageID: pid, Slot: ids.SlotID(i)}
			p.slots[i] = t
		}
		off += tupSz
	}
	p.before = append([]byte(nil), data...)
	return p, nil
}

func (p *Page) slotUsed(i int) bool {
	return p.header[i/8]&(1<<uint(i%8)) != 0
}

func (p *Page) setSlotUsed(i int, used bool) {
	byteIdx, bit := i/8, uint(i%8)
	if used {
		p.header[byteIdx] |= 1 << bit
	} else {
		p.header[byteIdx] &^= 1 << bit
	}
}

// NumSlots is the page's fixed slot capacity.
func (p *Page) NumSlots() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.slots)
}

// NumEmptySlots counts unoccupied slots (spec §8 scenario 2).
func (p *Page) NumEmptySlots() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for i := range p.slots {
		if !p.slotUsed(i) {
			n++
		}
	}
	return n
}

// SlotUsed reports whether slot i is occupied.
func (p *Page) SlotUsed(i int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.slots) {
		return false
	}
	return p.slotUsed(i)
}

// TupleAt returns the tuple at slot i, if occupied.
func (p *Page) TupleAt(i int) (*tuple.Tuple, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.slots) || p.slots[i] == nil {
		return nil, false
	}
	return p.slots[i], true
}

// InsertTuple places t into the first empty slot and returns the slot used.
func (p *Page) InsertTuple(t *tuple.Tuple) (ids.SlotID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !t.Desc.Equals(p.desc) {
		return 0, dberrors.ErrIllegalArgument
	}
	for i := range p.slots {
		if !p.slotUsed(i) {
			p.setSlotUsed(i, true)
			t.RecordID = &tuple.RecordID{PageID: p.pid, Slot: ids.SlotID(i)}
			p.slots[i] = t
			return ids.SlotID(i), nil
		}
	}
	return 0, dberrors.ErrIllegalArgument
}

// DeleteTuple removes whichever tuple occupies slot.
func (p *Page) DeleteTuple(slot ids.SlotID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := int(slot)
	if i < 0 || i >= len(p.slots) || !p.slotUsed(i) {
		return dberrors.ErrNoSuchElement
	}
	p.setSlotUsed(i, false)
	p.slots[i] = nil
	return nil
}

// --- storage.Page ---

func (p *Page) ID() ids.PageID { return p.pid }

func (p *Page) DirtiedBy() (ids.TxID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirtyBy, p.isDirty
}

func (p *Page) MarkDirty(dirty bool, tid ids.TxID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isDirty = dirty
	if dirty {
		p.dirtyBy = tid
	} else {
		p.dirtyBy = ids.TxID{}
	}
}

func (p *Page) Bytes() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.serializeLocked()
}

func (p *Page) serializeLocked() []byte {
	buf := make([]byte, storage.PageSize)
	copy(buf, p.header)
	off := len(p.header)
	for i := range p.slots {
		if p.slots[i] != nil {
			copy(buf[off:off+p.tupSz], p.slots[i].Serialize())
		}
		off += p.tupSz
	}
	return buf
}

// BeforeImage returns a standalone Page holding this page's before-image.
func (p *Page) BeforeImage() storage.Page {
	p.mu.RLock()
	defer p.mu.RUnlock()
	img, err := Parse(p.pid, p.desc, p.before)
	if err != nil {
		// before is always a well-formed PageSize snapshot taken by
		// NewEmpty/Parse/SetBeforeImage; a parse failure here means a
		// prior bug already corrupted it.
		panic(err)
	}
	return img
}

// SetBeforeImage snapshots current contents as the new before-image
// baseline, called when the dirtying transaction commits (spec §4.4).
func (p *Page) SetBeforeImage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.before = p.serializeLocked()
}

// Description returns the tuple schema this page was built with.
func (p *Page) Description() *tuple.Description { return p.desc }
