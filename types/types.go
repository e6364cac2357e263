// Package types implements the two primitive field types of the storage
// core -- 32-bit signed integers and fixed-length, zero-padded strings --
// plus the comparison operators predicates are built from.
package types

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies which primitive type a field holds.
type Kind uint8

const (
	IntKind Kind = iota
	StringKind
)

func (k Kind) String() string {
	switch k {
	case IntKind:
		return "INT"
	case StringKind:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// FieldType is a primitive type together with the declared length bound
// for strings. Every column in a schema carries one of these.
type FieldType struct {
	Kind Kind
	// StringLen is the column's declared maximum string length. Ignored
	// for IntKind.
	StringLen int
}

// IntType is the 32-bit signed integer field type.
var IntType = FieldType{Kind: IntKind}

// StringType returns the fixed-length string field type bounded at n
// characters.
func StringType(n int) FieldType {
	return FieldType{Kind: StringKind, StringLen: n}
}

// Width returns this field type's fixed on-disk byte width: 4 for
// integers, 4 (length prefix) + StringLen for strings.
func (t FieldType) Width() int {
	if t.Kind == StringKind {
		return 4 + t.StringLen
	}
	return 4
}

func (t FieldType) Equals(other FieldType) bool {
	return t.Kind == other.Kind
}

// Op is a predicate comparison operator.
type Op int

const (
	Equals Op = iota
	GreaterThan
	GreaterThanOrEq
	LessThan
	LessThanOrEq
	NotEquals
)

func (op Op) String() string {
	switch op {
	case Equals:
		return "="
	case GreaterThan:
		return ">"
	case GreaterThanOrEq:
		return ">="
	case LessThan:
		return "<"
	case LessThanOrEq:
		return "<="
	case NotEquals:
		return "<>"
	default:
		return "?"
	}
}

// Value is a typed field value: either an Int or a String.
type Value interface {
	Type() FieldType
	// Compare applies op with this value on the left and other on the
	// right: this op other.
	Compare(op Op, other Value) bool
	// Encode writes this value's fixed-width on-disk representation into
	// dst, which must be at least Type().Width() bytes long.
	Encode(dst []byte)
	String() string
}

// Int is an IntKind value.
type Int int32

func (v Int) Type() FieldType { return IntType }

func (v Int) Compare(op Op, other Value) bool {
	o, ok := other.(Int)
	if !ok {
		panic(fmt.Sprintf("cannot compare Int with %T", other))
	}
	switch op {
	case Equals:
		return v == o
	case NotEquals:
		return v != o
	case GreaterThan:
		return v > o
	case GreaterThanOrEq:
		return v >= o
	case LessThan:
		return v < o
	case LessThanOrEq:
		return v <= o
	default:
		panic(fmt.Sprintf("unknown op %v", op))
	}
}

func (v Int) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst, uint32(v))
}

func (v Int) String() string { return fmt.Sprintf("%d", int32(v)) }

// DecodeInt reads a big-endian 32-bit two's complement integer.
func DecodeInt(src []byte) Int {
	return Int(int32(binary.BigEndian.Uint32(src)))
}

// String is a StringKind value, always already truncated/padded to its
// column's declared length by the caller before being stored.
type String string

func (v String) Type() FieldType { return FieldType{Kind: StringKind, StringLen: len(v)} }

func (v String) Compare(op Op, other Value) bool {
	o, ok := other.(String)
	if !ok {
		panic(fmt.Sprintf("cannot compare String with %T", other))
	}
	switch op {
	case Equals:
		return v == o
	case NotEquals:
		return v != o
	case GreaterThan:
		return v > o
	case GreaterThanOrEq:
		return v >= o
	case LessThan:
		return v < o
	case LessThanOrEq:
		return v <= o
	default:
		panic(fmt.Sprintf("unknown op %v", op))
	}
}

// Encode writes a 4-byte big-endian actual-length prefix followed by the
// string bytes, zero-padded to the remainder of dst.
func (v String) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst, uint32(len(v)))
	n := copy(dst[4:], []byte(v))
	for i := 4 + n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (v String) String() string { return string(v) }

// DecodeString reads a length-prefixed, zero-padded fixed-length string
// field of maxLen declared bytes (not counting the 4-byte length prefix).
func DecodeString(src []byte, maxLen int) String {
	l := binary.BigEndian.Uint32(src)
	if int(l) > maxLen {
		l = uint32(maxLen)
	}
	return String(src[4 : 4+l])
}
