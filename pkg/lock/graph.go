package lock

import "github.com/linpingchuan/ledgerdb/pkg/ids"

// DependencyGraph is the waits-for graph used for deadlock detection,
// grounded on the teacher's DependencyGraph (pkg/concurrency/lock/dep_graph.go)
// but keyed by ids.TxID rather than *TransactionID pointers (spec §9
// "keyed by TxId, not object references" -- pointer identity is an
// implementation accident, not a transaction's actual identity) and
// queried before a requester blocks rather than scanned for a cycle after
// it is enqueued (REDESIGN FLAGS #1/#2).
//
// An edge waiter -> holder means waiter is blocked on a lock held by
// holder. The graph only ever needs the outgoing edges of whichever
// transaction is currently blocked, so it is represented as one map from
// waiter to its full set of current holders.
type DependencyGraph struct {
	edges map[ids.TxID]map[ids.TxID]struct{}
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{edges: make(map[ids.TxID]map[ids.TxID]struct{})}
}

// SetWaitsFor replaces waiter's outgoing edges with one to each of
// holders (holders excludes waiter itself, if present).
func (g *DependencyGraph) SetWaitsFor(waiter ids.TxID, holders []ids.TxID) {
	set := make(map[ids.TxID]struct{}, len(holders))
	for _, h := range holders {
		if h != waiter {
			set[h] = struct{}{}
		}
	}
	if len(set) == 0 {
		delete(g.edges, waiter)
		return
	}
	g.edges[waiter] = set
}

// RemoveWaiter deletes waiter's outgoing edges, once it is granted a lock
// or gives up waiting.
func (g *DependencyGraph) RemoveWaiter(waiter ids.TxID) {
	delete(g.edges, waiter)
}

// WouldCycle reports whether granting waiter a wait on holders would close
// a cycle in the wait-for graph: true if any holder can already
// (transitively) reach waiter through existing wait-for edges. Called
// before waiter is added to a page's waiters. On a retry after a wakeup,
// waiter's own edges from its previous attempt are still recorded; they
// cannot change the result, since the search stops on reaching waiter.
func (g *DependencyGraph) WouldCycle(waiter ids.TxID, holders []ids.TxID) bool {
	for _, h := range holders {
		if h == waiter {
			continue
		}
		if g.reaches(h, waiter) {
			return true
		}
	}
	return false
}

// reaches is a depth-first search over the wait-for edges answering
// whether to is reachable from from.
func (g *DependencyGraph) reaches(from, to ids.TxID) bool {
	visited := map[ids.TxID]struct{}{from: {}}
	stack := []ids.TxID{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		for next := range g.edges[n] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}
