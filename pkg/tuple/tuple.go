package tuple

import (
	"strings"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
	"github.com/linpingchuan/ledgerdb/pkg/ids"
)

// RecordID is the tuple's slot address within a page: which page, and
// which slot number within that page. Set once a tuple is resident on a
// page; nil for a freshly built tuple not yet inserted.
type RecordID struct {
	PageID ids.PageID
	Slot   ids.SlotID
}

// Tuple is a row of field values matching a Description. Grounded on the
// teacher's tuple.Tuple (pkg/tuple/tuple.go), narrowed to this package's
// two-variant Field.
type Tuple struct {
	Desc     *Description
	fields   []Field
	RecordID *RecordID
}

// New creates a tuple with every field unset, matching desc.
func New(desc *Description) *Tuple {
	return &Tuple{Desc: desc, fields: make([]Field, desc.NumFields())}
}

// SetField assigns the ith field, rejecting a type mismatch against Desc.
func (t *Tuple) SetField(i int, f Field) error {
	if i < 0 || i >= len(t.fields) {
		return dberrors.ErrIllegalArgument
	}
	want, err := t.Desc.FieldType(i)
	if err != nil {
		return err
	}
	if f.Type() != want {
		return dberrors.ErrIllegalArgument
	}
	t.fields[i] = f
	return nil
}

// Field returns the ith field value.
func (t *Tuple) Field(i int) (Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, dberrors.ErrIllegalArgument
	}
	return t.fields[i], nil
}

// Serialize encodes every field in order, matching Desc.Size() bytes.
func (t *Tuple) Serialize() []byte {
	out := make([]byte, 0, t.Desc.Size())
	for _, f := range t.fields {
		out = append(out, f.Serialize()...)
	}
	return out
}

// Parse decodes a tuple's fields from data, which must be at least
// desc.Size() bytes.
func Parse(desc *Description, data []byte) (*Tuple, error) {
	t := New(desc)
	off := 0
	for i := 0; i < desc.NumFields(); i++ {
		ft, _ := desc.FieldType(i)
		n := FieldSize(ft)
		if off+n > len(data) {
			return nil, dberrors.ErrIllegalArgument
		}
		var f Field
		var err error
		switch ft {
		case StringType:
			f, err = ParseStringField(data[off : off+n])
		default:
			f, err = ParseIntField(data[off : off+n])
		}
		if err != nil {
			return nil, err
		}
		t.fields[i] = f
		off += n
	}
	return t, nil
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t")
}

// Equals compares two tuples field-by-field; RecordID is not compared.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || len(t.fields) != len(other.fields) {
		return false
	}
	for i := range t.fields {
		a, b := t.fields[i], other.fields[i]
		if a == nil || b == nil {
			if a != b {
				return false
			}
			continue
		}
		if !a.Equals(b) {
			return false
		}
	}
	return true
}
