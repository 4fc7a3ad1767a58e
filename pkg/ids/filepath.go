package ids

import (
	"hash/fnv"
	"path/filepath"
)

// Filepath is a type-safe wrapper around an absolute path to a table's
// backing file. It is the sole source of a table's deterministic TableID:
// equal paths must hash to equal ids, both within a process and across
// restarts, so that reopening a table file after a crash resolves every
// PageID built against it before the crash.
type Filepath string

// Hash derives a TableID from the path using FNV-1a. The hash is computed
// over the cleaned, absolute form of the path so that equivalent paths
// (e.g. "a.dat" and "./a.dat" from the same working directory) agree.
func (f Filepath) Hash() TableID {
	abs, err := filepath.Abs(string(f))
	if err != nil {
		abs = string(f)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(filepath.Clean(abs)))
	return TableID(h.Sum64())
}

func (f Filepath) String() string {
	return string(f)
}
