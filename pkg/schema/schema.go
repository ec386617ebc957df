// Package schema declares which grok captures are kept from a parsed line,
// the output column name and type for each, and the resulting column order.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrFieldSpec       = errors.New("invalid field spec")
	ErrDuplicateColumn = errors.New("duplicate output column")
	ErrEmptySchema     = errors.New("schema requires at least one field")
)

// FieldSpec maps one grok capture to a typed output column.
type FieldSpec struct {
	// Source is the capture name looked up in the match result.
	Source string
	// Output is the column name in records, defaulting to Source.
	Output string
	// Type is the declared output type.
	Type value.Type
	// Required marks a capture whose absence fails the whole line instead
	// of producing a Null.
	Required bool
}

// ParseFieldSpec parses the "[+]name[:rename][:type]" declaration syntax.
//
// The leading '+' marks the capture required. The segment after the first
// colon is taken as the type when it reads as a type token, so timestamp
// formats containing colons work without escaping:
//
//	+timestamp:ts:%b %e %H:%M:%S
//	pid:int
//	request_ms:latency:float
func ParseFieldSpec(s string) (FieldSpec, error) {
	spec := FieldSpec{Type: value.StringType()}
	rest := s
	if strings.HasPrefix(rest, "+") {
		spec.Required = true
		rest = rest[1:]
	}
	name, rest, hasMore := strings.Cut(rest, ":")
	if name == "" {
		return FieldSpec{}, fmt.Errorf("%w: empty name in %q", ErrFieldSpec, s)
	}
	spec.Source = name
	spec.Output = name
	if !hasMore {
		return spec, nil
	}
	if !value.IsTypeToken(rest) {
		var rename string
		rename, rest, hasMore = strings.Cut(rest, ":")
		if rename == "" {
			return FieldSpec{}, fmt.Errorf("%w: empty rename in %q", ErrFieldSpec, s)
		}
		spec.Output = rename
		if !hasMore {
			return spec, nil
		}
	}
	typ, err := value.ParseType(rest)
	if err != nil {
		return FieldSpec{}, fmt.Errorf("%w: %q: %v", ErrFieldSpec, s, err)
	}
	spec.Type = typ
	return spec, nil
}

// ParseFieldSpecs parses a list of declarations, preserving order.
func ParseFieldSpecs(specs []string) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(specs))
	for _, s := range specs {
		spec, err := ParseFieldSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Schema is the ordered, named column set shared by every record of a
// stream. The name doubles as the query table name. Immutable once built.
type Schema struct {
	name   string
	fields []FieldSpec
	index  map[string]int
}

// New validates the field set and fixes the column order.
func New(name string, fields []FieldSpec) (*Schema, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, ok := index[f.Output]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, f.Output)
		}
		index[f.Output] = i
	}
	return &Schema{
		name:   name,
		fields: append([]FieldSpec(nil), fields...),
		index:  index,
	}, nil
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Len() int {
	return len(s.fields)
}

// Field returns the i-th field spec in column order.
func (s *Schema) Field(i int) FieldSpec {
	return s.fields[i]
}

// Columns returns the output column names in declared order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.Output
	}
	return cols
}

// Lookup resolves an output column name to its spec and position.
func (s *Schema) Lookup(output string) (FieldSpec, int, bool) {
	i, ok := s.index[output]
	if !ok {
		return FieldSpec{}, -1, false
	}
	return s.fields[i], i, true
}
