// Package value holds the closed set of typed values that parsed log fields
// and query literals may take, along with the conversion rules between raw
// captured text and each declared type.
package value

import (
	"fmt"
	"strconv"
	"time"
)

// Kind enumerates the possible runtime types of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindTime
	KindBool
)

var kindStrings = map[Kind]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindTime:   "timestamp",
	KindBool:   "bool",
}

func (k Kind) String() string {
	s, ok := kindStrings[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return s
}

// Value is a tagged union over the supported field types.
// The zero Value is Null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	t    time.Time
	b    bool
}

func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Str() string {
	return v.s
}

func (v Value) Int() int64 {
	return v.i
}

func (v Value) Float() float64 {
	return v.f
}

func (v Value) Time() time.Time {
	return v.t
}

func (v Value) Bool() bool {
	return v.b
}

// Render returns the canonical text form of the value, as used by text sinks.
// Null renders as the empty string, timestamps as RFC3339.
func (v Value) Render() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.Render()
}

// asFloat coerces numeric values to float64 for mixed comparisons.
func (v Value) asFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Compare orders two values, returning -1, 0, or 1.
// The second return is false when the comparison is unknown: either operand
// is Null, or the kinds are not comparable. Callers implementing query
// predicates must treat unknown as "not matched".
func Compare(a, b Value) (int, bool) {
	if a.kind == KindNull || b.kind == KindNull {
		return 0, false
	}
	if a.kind == KindInt && b.kind == KindInt {
		return cmpOrdered(a.i, b.i), true
	}
	if af, ok := a.asFloat(); ok {
		if bf, ok := b.asFloat(); ok {
			return cmpOrdered(af, bf), true
		}
		return 0, false
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString:
		return cmpOrdered(a.s, b.s), true
	case KindTime:
		if a.t.Equal(b.t) {
			return 0, true
		}
		if a.t.Before(b.t) {
			return -1, true
		}
		return 1, true
	case KindBool:
		return cmpOrdered(boolOrd(a.b), boolOrd(b.b)), true
	}
	return 0, false
}

func boolOrd(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T int | int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
