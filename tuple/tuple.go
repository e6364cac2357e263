// Package tuple implements row schemas and row values: Desc describes the
// ordered, named fields of a table or intermediate result, and Tuple is a
// single row conforming to a Desc.
package tuple

import (
	"fmt"
	"strings"

	"coredb/dberrors"
	"coredb/storage"
	"coredb/types"
)

// FieldDesc names and types a single column.
type FieldDesc struct {
	Name string
	Type types.FieldType
}

// Desc is an ordered list of field descriptors. Two Descs are Equal when
// their field types agree in sequence; names are metadata only and do not
// participate in equality, matching how join output schemas are built by
// concatenation.
type Desc struct {
	fields []FieldDesc
}

// NewDesc builds a Desc from the given fields in order.
func NewDesc(fields ...FieldDesc) *Desc {
	cp := make([]FieldDesc, len(fields))
	copy(cp, fields)
	return &Desc{fields: cp}
}

func (d *Desc) NumFields() int { return len(d.fields) }

func (d *Desc) FieldType(i int) types.FieldType { return d.fields[i].Type }

func (d *Desc) FieldName(i int) string { return d.fields[i].Name }

// IndexForName returns the index of the first field named name.
func (d *Desc) IndexForName(name string) (int, error) {
	for i, f := range d.fields {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, dberrors.ErrNoSuchField
}

// Width returns the fixed on-disk byte width of a tuple conforming to
// this Desc.
func (d *Desc) Width() int {
	w := 0
	for _, f := range d.fields {
		w += f.Type.Width()
	}
	return w
}

// Equals reports whether other describes the same sequence of field
// kinds.
func (d *Desc) Equals(other *Desc) bool {
	if other == nil || len(d.fields) != len(other.fields) {
		return false
	}
	for i, f := range d.fields {
		if !f.Type.Equals(other.fields[i].Type) {
			return false
		}
	}
	return true
}

// Hash returns a hash consistent with Equals: it depends only on the
// sequence of field kinds, never on field names.
func (d *Desc) Hash() uint64 {
	var h uint64 = 14695981039346656037
	for _, f := range d.fields {
		h ^= uint64(f.Type.Kind)
		h *= 1099511628211
	}
	return h
}

// Merge concatenates two Descs, as a join's output schema does.
func Merge(a, b *Desc) *Desc {
	fields := make([]FieldDesc, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	fields = append(fields, b.fields...)
	return &Desc{fields: fields}
}

func (d *Desc) String() string {
	parts := make([]string, len(d.fields))
	for i, f := range d.fields {
		parts[i] = fmt.Sprintf("%s(%s)", f.Name, f.Type.Kind)
	}
	return strings.Join(parts, ", ")
}

// RecordID identifies the page and slot a Tuple was read from. A Tuple
// built fresh for insertion has no RecordID until the heap or B+Tree file
// assigns one.
type RecordID struct {
	PageID     storage.PageID
	SlotNumber int
}

// Tuple is a single row: a fixed-size, pre-sized slice of field values
// conforming to a Desc.
type Tuple struct {
	desc   *Desc
	fields []types.Value
	rid    *RecordID
}

// NewTuple allocates an empty tuple conforming to desc. Every field slot
// starts nil and must be set with SetField before the tuple is used.
func NewTuple(desc *Desc) *Tuple {
	return &Tuple{desc: desc, fields: make([]types.Value, desc.NumFields())}
}

func (t *Tuple) Desc() *Desc { return t.desc }

func (t *Tuple) RecordID() *RecordID { return t.rid }

func (t *Tuple) SetRecordID(rid *RecordID) { t.rid = rid }

// Field returns the value at index i.
func (t *Tuple) Field(i int) types.Value { return t.fields[i] }

// SetField sets the value at index i. It rejects assignments that would
// change the tuple's field count -- a Tuple's width is fixed at
// construction and fields are never appended.
func (t *Tuple) SetField(i int, v types.Value) error {
	if i < 0 || i >= len(t.fields) {
		return dberrors.ErrNoSuchField
	}
	t.fields[i] = v
	return nil
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		if f == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t")
}
