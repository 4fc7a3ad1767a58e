package ids

import "fmt"

// PageID addresses a single fixed-size page within a table file. It is a
// plain value type: two PageIDs are equal iff their components are equal,
// which makes it safe to use as a map key directly.
type PageID struct {
	TableID TableID
	PageNo  PageNumber
}

// NewPageID constructs a PageID for the given table and page number.
func NewPageID(tableID TableID, pageNo PageNumber) PageID {
	return PageID{TableID: tableID, PageNo: pageNo}
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID(table=%d, page=%d)", p.TableID, p.PageNo)
}

// HashCode returns a cheap combined hash, useful for callers that want to
// shard or log page identity without pulling in the full struct.
func (p PageID) HashCode() HashCode {
	return HashCode(uint64(p.TableID)*31 + uint64(p.PageNo))
}
