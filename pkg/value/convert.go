package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownType = errors.New("unknown field type")
	ErrConvert     = errors.New("conversion failed")
)

// Type is a declared field type: the target Kind, plus a compiled timestamp
// format when the kind is KindTime.
type Type struct {
	kind   Kind
	format *TimeFormat
}

func StringType() Type {
	return Type{kind: KindString}
}

func IntType() Type {
	return Type{kind: KindInt}
}

func FloatType() Type {
	return Type{kind: KindFloat}
}

func BoolType() Type {
	return Type{kind: KindBool}
}

func TimeType(format *TimeFormat) Type {
	return Type{kind: KindTime, format: format}
}

func (t Type) Kind() Kind {
	return t.kind
}

func (t Type) Format() *TimeFormat {
	return t.format
}

func (t Type) String() string {
	if t.kind == KindTime && t.format != nil {
		return fmt.Sprintf("ts(%s)", t.format.Spec())
	}
	return t.kind.String()
}

// ParseType resolves a field-spec type token. Timestamp types accept both
// "ts:<format>" and "ts(<format>)" spellings. An empty token means string.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "str", "string":
		return StringType(), nil
	case "int":
		return IntType(), nil
	case "float":
		return FloatType(), nil
	case "bool":
		return BoolType(), nil
	}
	var spec string
	switch {
	case strings.HasPrefix(s, "ts:"):
		spec = strings.TrimPrefix(s, "ts:")
	case strings.HasPrefix(s, "ts(") && strings.HasSuffix(s, ")"):
		spec = strings.TrimSuffix(strings.TrimPrefix(s, "ts("), ")")
	default:
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	format, err := CompileTimeFormat(spec)
	if err != nil {
		return Type{}, err
	}
	return TimeType(format), nil
}

// IsTypeToken reports whether s can stand alone as a type token in a field
// spec, which disambiguates "name:type" from "name:rename".
func IsTypeToken(s string) bool {
	switch s {
	case "str", "string", "int", "float", "bool":
		return true
	}
	return strings.HasPrefix(s, "ts:") || strings.HasPrefix(s, "ts(")
}

// Convert turns one raw captured string into a Value of the declared type.
func Convert(raw string, t Type) (Value, error) {
	switch t.kind {
	case KindString:
		return String(raw), nil
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: %q is not an int", ErrConvert, raw)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: %q is not a float", ErrConvert, raw)
		}
		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Null(), fmt.Errorf("%w: %q is not a bool", ErrConvert, raw)
		}
		return Bool(b), nil
	case KindTime:
		ts, err := t.format.Parse(raw)
		if err != nil {
			return Null(), fmt.Errorf("%w: %q does not match format %q", ErrConvert, raw, t.format.Spec())
		}
		return Time(ts), nil
	}
	return Null(), fmt.Errorf("%w: %v", ErrUnknownType, t.kind)
}
