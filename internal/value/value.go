// Package value holds the closed set of cell representations produced by the
// decoder. Every decoded cell is exactly one Kind.
package value

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindBigInt
	KindFloat
	KindBool
	KindBytea
	KindArray
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytea:
		return "bytea"
	case KindArray:
		return "array"
	case KindUnknown:
		return "unknown"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// NullLiteral is the canonical string form of a Null value.
const NullLiteral = "None"

const (
	byteaElideThreshold = 20
	byteaEdgeLen        = 10
	listSeparator       = ", "
	elisionMarker       = "..."
)

// Value is one decoded cell. The zero Value is Null.
type Value struct {
	kind  Kind
	text  string
	num   int64
	float float64
	flag  bool
	bytes []byte
	elems []Value
}

func Null() Value { return Value{} }

func Text(s string) Value { return Value{kind: KindText, text: s} }

func Int(i int32) Value { return Value{kind: KindInt, num: int64(i)} }

func BigInt(i int64) Value { return Value{kind: KindBigInt, num: i} }

func Float(f float64) Value { return Value{kind: KindFloat, float: f} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Bytea keeps b as-is; callers hand over ownership.
func Bytea(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBytea, bytes: b}
}

func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, elems: elems}
}

// Unknown marks a cell whose driver type has no decoding rule.
func Unknown(typeName string) Value { return Value{kind: KindUnknown, text: typeName} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

func (v Value) AsInt() (int32, bool) {
	return int32(v.num), v.kind == KindInt
}

func (v Value) AsBigInt() (int64, bool) {
	return v.num, v.kind == KindBigInt
}

func (v Value) AsFloat() (float64, bool) {
	return v.float, v.kind == KindFloat
}

func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

func (v Value) AsBytea() ([]byte, bool) {
	return v.bytes, v.kind == KindBytea
}

func (v Value) AsArray() ([]Value, bool) {
	return v.elems, v.kind == KindArray
}

// TypeName returns the driver type carried by an Unknown value.
func (v Value) TypeName() (string, bool) {
	return v.text, v.kind == KindUnknown
}

// String renders the canonical display/export form of v.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return NullLiteral
	case KindText, KindUnknown:
		return v.text
	case KindInt, KindBigInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return formatFloat(v.float)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindBytea:
		return formatBytea(v.bytes)
	case KindArray:
		parts := make([]string, len(v.elems))
		for i, elem := range v.elems {
			parts[i] = elem.String()
		}
		return strings.Join(parts, listSeparator)
	default:
		return NullLiteral
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText, KindUnknown:
		return v.text == other.text
	case KindInt, KindBigInt:
		return v.num == other.num
	case KindFloat:
		if math.IsNaN(v.float) && math.IsNaN(other.float) {
			return true
		}
		return v.float == other.float
	case KindBool:
		return v.flag == other.flag
	case KindBytea:
		return bytes.Equal(v.bytes, other.bytes)
	case KindArray:
		if len(v.elems) != len(other.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(other.elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBytea(b []byte) string {
	if len(b) <= byteaElideThreshold {
		return joinBytes(b)
	}
	return joinBytes(b[:byteaEdgeLen]) + listSeparator + elisionMarker + listSeparator + joinBytes(b[len(b)-byteaEdgeLen:])
}

func joinBytes(b []byte) string {
	var sb strings.Builder
	for i, item := range b {
		if i > 0 {
			sb.WriteString(listSeparator)
		}
		sb.WriteString(strconv.Itoa(int(item)))
	}
	return sb.String()
}
