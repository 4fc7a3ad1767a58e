package walog

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// On-disk framing, grounded on the teacher's serializeRecord/
// SerializeLogRecord (pkg/log/{wal.go,serialize.go}):
//
//	[u32 total size][u8 type][u64 txid][u64 prevLSN][u64 unix timestamp]
//	(Update only) [u64 tableID][u64 pageNo]
//	              [u32 beforeLen][beforeLen bytes]
//	              [u32 afterLen][afterLen bytes]
const headerSize = 4 + 1 + 8 + 8 + 8

func serializeRecord(r *Record) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 4)) // placeholder for total size, patched below

	buf.WriteByte(byte(r.Type))
	writeUint64(&buf, uint64(r.TxID.Int64()))
	writeUint64(&buf, uint64(r.PrevLSN))
	writeUint64(&buf, uint64(r.Timestamp.Unix()))

	if r.Type == Update {
		writeUint64(&buf, uint64(r.PageID.TableID))
		writeUint64(&buf, uint64(r.PageID.PageNo))
		writeImage(&buf, r.Before)
		writeImage(&buf, r.After)
	}

	out := buf.Bytes()
	binary.BigEndian.PutUint32(out, uint32(len(out)))
	return out
}

func unixTime(sec uint64) time.Time {
	return time.Unix(int64(sec), 0)
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeImage(buf *bytes.Buffer, img []byte) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(img)))
	buf.Write(tmp[:])
	buf.Write(img)
}

// deserializeRecord parses one record, given its body (everything after
// the 4-byte size prefix that the reader already consumed to learn the
// record's length).
func deserializeRecord(body []byte) (*Record, error) {
	if len(body) < headerSize-4 {
		return nil, errors.Errorf("log record too short: %d bytes", len(body))
	}

	r := &Record{}
	off := 0

	r.Type = RecordType(body[off])
	off++

	r.TxID = ids.TxIDFromInt64(int64(binary.BigEndian.Uint64(body[off:])))
	off += 8

	r.PrevLSN = ids.LSN(binary.BigEndian.Uint64(body[off:]))
	off += 8

	r.Timestamp = unixTime(binary.BigEndian.Uint64(body[off:]))
	off += 8

	if r.Type != Update {
		return r, nil
	}

	if len(body) < off+16 {
		return nil, errors.New("truncated update record header")
	}
	tableID := ids.TableID(binary.BigEndian.Uint64(body[off:]))
	off += 8
	pageNo := ids.PageNumber(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.PageID = ids.NewPageID(tableID, pageNo)

	before, n, err := readImage(body, off)
	if err != nil {
		return nil, errors.Wrap(err, "read before-image")
	}
	off += n
	r.Before = before

	after, _, err := readImage(body, off)
	if err != nil {
		return nil, errors.Wrap(err, "read after-image")
	}
	r.After = after

	return r, nil
}

func readImage(body []byte, off int) ([]byte, int, error) {
	if len(body) < off+4 {
		return nil, 0, errors.New("truncated image length")
	}
	n := int(binary.BigEndian.Uint32(body[off:]))
	off += 4
	if len(body) < off+n {
		return nil, 0, errors.New("truncated image body")
	}
	img := make([]byte, n)
	copy(img, body[off:off+n])
	return img, 4 + n, nil
}
