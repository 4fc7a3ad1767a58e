package tuple

import (
	"strings"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
)

// Description is a tuple's schema: the ordered field types (and optional
// names) every Tuple built against it must match. Grounded on the
// teacher's tuple.TupleDescription (pkg/tuple/tuple_description.go),
// narrowed to the two-variant Field union of this package.
type Description struct {
	types []FieldType
	names []string
}

// NewDescription builds a schema from field types and optional names. If
// names is non-nil its length must equal len(types).
func NewDescription(types []FieldType, names []string) (*Description, error) {
	if len(types) == 0 {
		return nil, dberrors.ErrIllegalArgument
	}
	if names != nil && len(names) != len(types) {
		return nil, dberrors.ErrIllegalArgument
	}
	t := make([]FieldType, len(types))
	copy(t, types)
	var n []string
	if names != nil {
		n = make([]string, len(names))
		copy(n, names)
	}
	return &Description{types: t, names: n}, nil
}

func (d *Description) NumFields() int { return len(d.types) }

func (d *Description) FieldType(i int) (FieldType, error) {
	if i < 0 || i >= len(d.types) {
		return 0, dberrors.ErrIllegalArgument
	}
	return d.types[i], nil
}

func (d *Description) FieldName(i int) (string, error) {
	if i < 0 || i >= len(d.types) {
		return "", dberrors.ErrIllegalArgument
	}
	if d.names == nil {
		return "", nil
	}
	return d.names[i], nil
}

// Size is the total fixed encoded width, in bytes, of one tuple matching
// this schema.
func (d *Description) Size() int {
	n := 0
	for _, t := range d.types {
		n += FieldSize(t)
	}
	return n
}

func (d *Description) String() string {
	parts := make([]string, len(d.types))
	for i, t := range d.types {
		name := ""
		if d.names != nil {
			name = d.names[i]
		}
		parts[i] = t.String() + "(" + name + ")"
	}
	return strings.Join(parts, ", ")
}

// Equals reports whether d and other describe the same field type sequence
// (names are not compared, matching the teacher's TupleDesc.equals).
func (d *Description) Equals(other *Description) bool {
	if other == nil || len(d.types) != len(other.types) {
		return false
	}
	for i := range d.types {
		if d.types[i] != other.types[i] {
			return false
		}
	}
	return true
}
