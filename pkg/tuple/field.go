// Package tuple implements the Tuple/TupleDescription/Field data types the
// storage core treats as opaque (spec §1, §9 "Dynamic type Field: two
// variants (int, string) with fixed encoded sizes; model as a tagged
// union"). pkg/heap is the only core-adjacent package that looks inside a
// Field; the buffer pool, lock manager, and WAL only ever move Page bytes
// around.
package tuple

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/linpingchuan/ledgerdb/internal/dberrors"
)

// FieldType distinguishes the two Field variants.
type FieldType int

const (
	IntType FieldType = iota
	StringType
)

func (t FieldType) String() string {
	if t == StringType {
		return "STRING"
	}
	return "INT"
}

// IntFieldSize is the fixed encoded width of an IntField.
const IntFieldSize = 4

// StringFieldMaxLen is the maximum number of characters a StringField
// carries; shorter values are padded and longer ones truncated on
// serialize, matching the teacher's fixed-width field encoding (spec §9).
const StringFieldMaxLen = 128

// StringFieldSize is the fixed encoded width of a StringField: a 4-byte
// length prefix followed by StringFieldMaxLen bytes of (possibly padded)
// character data.
const StringFieldSize = 4 + StringFieldMaxLen

// Field is the tagged union of the two field variants a Tuple can carry.
// Grounded on the teacher's types.Field interface (pkg/types/field.go),
// narrowed to exactly the two variants spec §9 names instead of the
// teacher's five (Int32/Int64/Float/Bool/String).
type Field interface {
	Type() FieldType
	Serialize() []byte
	String() string
	Equals(other Field) bool
	Hash() uint32
}

// IntField is a fixed-width signed 32-bit integer field.
type IntField struct {
	Value int32
}

func NewIntField(v int32) IntField { return IntField{Value: v} }

func (f IntField) Type() FieldType { return IntType }

func (f IntField) Serialize() []byte {
	buf := make([]byte, IntFieldSize)
	binary.BigEndian.PutUint32(buf, uint32(f.Value))
	return buf
}

func (f IntField) String() string { return fmt.Sprintf("%d", f.Value) }

func (f IntField) Equals(other Field) bool {
	o, ok := other.(IntField)
	return ok && o.Value == f.Value
}

func (f IntField) Hash() uint32 {
	h := fnv.New32a()
	_, _ = h.Write(f.Serialize())
	return h.Sum32()
}

// ParseIntField decodes an IntField from its fixed-width encoding.
func ParseIntField(data []byte) (IntField, error) {
	if len(data) < IntFieldSize {
		return IntField{}, dberrors.ErrIllegalArgument
	}
	return IntField{Value: int32(binary.BigEndian.Uint32(data))}, nil
}

// StringField is a fixed-width character field, padded with NUL bytes to
// StringFieldMaxLen on serialize and truncated if the value is longer.
type StringField struct {
	Value string
}

func NewStringField(v string) StringField {
	if len(v) > StringFieldMaxLen {
		v = v[:StringFieldMaxLen]
	}
	return StringField{Value: v}
}

func (f StringField) Type() FieldType { return StringType }

func (f StringField) Serialize() []byte {
	buf := make([]byte, StringFieldSize)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(f.Value)))
	copy(buf[4:], f.Value)
	return buf
}

func (f StringField) String() string { return f.Value }

func (f StringField) Equals(other Field) bool {
	o, ok := other.(StringField)
	return ok && o.Value == f.Value
}

func (f StringField) Hash() uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(f.Value))
	return h.Sum32()
}

// ParseStringField decodes a StringField from its fixed-width encoding.
func ParseStringField(data []byte) (StringField, error) {
	if len(data) < StringFieldSize {
		return StringField{}, dberrors.ErrIllegalArgument
	}
	n := binary.BigEndian.Uint32(data[:4])
	if int(n) > StringFieldMaxLen {
		return StringField{}, dberrors.ErrIllegalArgument
	}
	raw := data[4 : 4+int(n)]
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

// FieldSize returns the fixed encoded width of a field of type t.
func FieldSize(t FieldType) int {
	if t == StringType {
		return StringFieldSize
	}
	return IntFieldSize
}
