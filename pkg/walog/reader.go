package walog

import (
	"encoding/binary"
	"io"

	"github.com/pingcap/errors"
	"github.com/spf13/afero"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// maxRecordSize bounds a single record's declared length, guarding replay
// against a corrupted size prefix running the reader off into the weeds.
const maxRecordSize = 10 * 1024 * 1024

// Reader walks a WAL file's records in order, for replay or for tests
// asserting on log ordering (spec §6 "a conforming implementation chooses
// byte layout" -- Reader is this core's minimal logical-replay contract,
// not a recovery manager; SPEC_FULL.md §6 non-goals).
//
// Grounded on the teacher's LogReader (pkg/log/reader.go), restated over
// this package's Record/serializeRecord framing.
type Reader struct {
	file   afero.File
	offset int64
}

// OpenReader opens path read-only on fs for sequential record iteration.
func OpenReader(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Reader{file: f}, nil
}

// Next returns the next record, or io.EOF once the file is exhausted.
func (r *Reader) Next() (*Record, error) {
	sizeBuf := make([]byte, 4)
	n, err := r.file.ReadAt(sizeBuf, r.offset)
	if err == io.EOF || n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	size := binary.BigEndian.Uint32(sizeBuf)
	if size == 0 || size > maxRecordSize {
		return nil, errors.Errorf("corrupt WAL record size %d at offset %d", size, r.offset)
	}

	body := make([]byte, size-4)
	n, err = r.file.ReadAt(body, r.offset+4)
	if err != nil && err != io.EOF {
		return nil, errors.Trace(err)
	}
	if n != len(body) {
		return nil, errors.Errorf("truncated WAL record at offset %d: wanted %d got %d", r.offset, len(body), n)
	}

	rec, err := deserializeRecord(body)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rec.LSN = ids.LSN(r.offset)
	r.offset += int64(size)
	return rec, nil
}

// ReadAll drains every remaining record.
func (r *Reader) ReadAll() ([]*Record, error) {
	var out []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
