package walog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/pingcap/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// Log is the Log component (spec §4.3): an append-only write-ahead log of
// BEGIN/UPDATE/COMMIT/ABORT records, buffered in memory and forced to disk
// on demand. Grounded on the teacher's WAL (pkg/log/wal.go): a byte-offset
// LSN, a write buffer flushed either when full or on an explicit Force,
// and per-transaction LastLSN chaining via Record.PrevLSN.
//
// Unlike the teacher, this Log does not itself log INSERT/DELETE records
// at mutate time (REDESIGN FLAG #6, SPEC_FULL.md §4): the buffer pool logs
// one UPDATE record per dirtied page at flush time, carrying both the
// before- and after-image, which is what makes "every UPDATE record is
// forced before the corresponding page write" a checkable invariant.
type Log struct {
	mu sync.Mutex

	file afero.File

	currentLSN ids.LSN
	flushedLSN ids.LSN

	buf       []byte
	bufSize   int
	lastLSN   map[ids.TxID]ids.LSN
}

// Open creates or appends to the log file at path on fs, with an
// in-memory write buffer of bufSize bytes (teacher default: 8192). Routed
// through afero.Fs for the same reason pkg/storage.BaseFile is: a Context
// built over afero.NewMemMapFs() gets a WAL that lives in the same
// filesystem as its table files, instead of silently falling through to
// the real OS disk.
func Open(fs afero.Fs, path string, bufSize int) (*Log, error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open WAL file %s", path)
	}
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrap(err, "seek to end of WAL")
	}
	if bufSize <= 0 {
		bufSize = 8192
	}
	return &Log{
		file:       f,
		currentLSN: ids.LSN(pos),
		flushedLSN: ids.LSN(pos),
		buf:        make([]byte, 0, bufSize),
		bufSize:    bufSize,
		lastLSN:    make(map[ids.TxID]ids.LSN),
	}, nil
}

// LogBegin appends a BEGIN record for tid.
func (l *Log) LogBegin(tid ids.TxID) (ids.LSN, error) {
	return l.append(&Record{Type: Begin, TxID: tid, Timestamp: time.Now()})
}

// LogUpdate appends an UPDATE record carrying pid's before- and
// after-images, chained to tid's previous record.
func (l *Log) LogUpdate(tid ids.TxID, pid ids.PageID, before, after []byte) (ids.LSN, error) {
	return l.append(&Record{
		Type:      Update,
		TxID:      tid,
		PageID:    pid,
		Before:    before,
		After:     after,
		Timestamp: time.Now(),
	})
}

// LogCommit appends a COMMIT record for tid and forces the log, so that
// control never returns from a caller's commit() before the record is
// durable (spec §5 "commit durability").
func (l *Log) LogCommit(tid ids.TxID) (ids.LSN, error) {
	lsn, err := l.append(&Record{Type: Commit, TxID: tid, Timestamp: time.Now()})
	if err != nil {
		return 0, err
	}
	if err := l.Force(); err != nil {
		return 0, err
	}
	return lsn, nil
}

// LogAbort appends an ABORT record for tid.
func (l *Log) LogAbort(tid ids.TxID) (ids.LSN, error) {
	lsn, err := l.append(&Record{Type: Abort, TxID: tid, Timestamp: time.Now()})
	if err != nil {
		return 0, err
	}
	if err := l.Force(); err != nil {
		return 0, err
	}
	return lsn, nil
}

func (l *Log) append(r *Record) (ids.LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.PrevLSN = l.lastLSN[r.TxID]
	r.LSN = l.currentLSN

	data := serializeRecord(r)
	if len(l.buf)+len(data) > l.bufSize {
		if err := l.flushLocked(); err != nil {
			return 0, err
		}
	}
	l.buf = append(l.buf, data...)
	l.currentLSN += ids.LSN(len(data))
	l.lastLSN[r.TxID] = r.LSN

	if r.Type == Commit || r.Type == Abort {
		delete(l.lastLSN, r.TxID)
	}
	return r.LSN, nil
}

// Force flushes the in-memory buffer to disk and fsyncs the file,
// guaranteeing every record appended so far is durable before it returns.
func (l *Log) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Log) flushLocked() error {
	if len(l.buf) == 0 {
		return nil
	}
	n, err := l.file.Write(l.buf)
	if err != nil {
		return errors.Trace(err)
	}
	if n != len(l.buf) {
		return errors.Errorf("partial WAL write: wrote %d of %d bytes", n, len(l.buf))
	}
	if err := l.file.Sync(); err != nil {
		return errors.Trace(err)
	}
	l.flushedLSN = l.currentLSN
	l.buf = l.buf[:0]
	return nil
}

// Close forces any buffered records and closes the underlying file.
func (l *Log) Close() error {
	if err := l.Force(); err != nil {
		return err
	}
	return l.file.Close()
}

// CurrentLSN returns the LSN the next appended record would receive.
func (l *Log) CurrentLSN() ids.LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLSN
}
