package bufferpool

import (
	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/storage"
)

// pageCache is the page cache backing the Buffer Pool: a doubly linked list plus a hash map for O(1) get/put/remove, with
// eviction order tracked as a side effect of Get/Put moving a node to the
// front. Grounded on the teacher's LRUPageCache (pkg/memory/cache.go),
// narrowed to this package's own Pool, which is the only caller and
// already holds its own lock around every call, so pageCache itself stays
// unlocked rather than duplicating that serialization. pageCache has no
// size bound of its own; Pool enforces its capacity.
type pageCache struct {
	entries map[ids.PageID]*cacheNode
	head    *cacheNode
	tail    *cacheNode
}

type cacheNode struct {
	pid  ids.PageID
	page storage.Page
	prev *cacheNode
	next *cacheNode
}

func newPageCache() *pageCache {
	head := &cacheNode{}
	tail := &cacheNode{}
	head.next = tail
	tail.prev = head
	return &pageCache{entries: make(map[ids.PageID]*cacheNode), head: head, tail: tail}
}

func (c *pageCache) addFront(n *cacheNode) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *pageCache) unlink(n *cacheNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *pageCache) moveToFront(n *cacheNode) {
	c.unlink(n)
	c.addFront(n)
}

// get returns the cached page for pid, marking it most-recently-used.
func (c *pageCache) get(pid ids.PageID) (storage.Page, bool) {
	n, ok := c.entries[pid]
	if !ok {
		return nil, false
	}
	c.moveToFront(n)
	return n.page, true
}

// put inserts or refreshes pid's entry, marking it most-recently-used.
func (c *pageCache) put(pid ids.PageID, p storage.Page) {
	if n, ok := c.entries[pid]; ok {
		n.page = p
		c.moveToFront(n)
		return
	}
	n := &cacheNode{pid: pid, page: p}
	c.entries[pid] = n
	c.addFront(n)
}

func (c *pageCache) remove(pid ids.PageID) {
	if n, ok := c.entries[pid]; ok {
		delete(c.entries, pid)
		c.unlink(n)
	}
}

func (c *pageCache) size() int { return len(c.entries) }

// evictionOrder returns every resident page id, least-recently-used first
// -- the order Pool.evictLocked scans looking for a clean victim.
func (c *pageCache) evictionOrder() []ids.PageID {
	pids := make([]ids.PageID, 0, len(c.entries))
	for n := c.tail.prev; n != c.head; n = n.prev {
		pids = append(pids, n.pid)
	}
	return pids
}
