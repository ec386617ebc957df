// Package record holds the typed rows produced by the line parser and the
// schema-homogeneous batches they accumulate into.
package record

import (
	"errors"
	"fmt"

	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrSchemaMismatch = errors.New("record schema does not match batch schema")
	ErrArity          = errors.New("value count does not match schema")
)

// Record is one parsed line: values in schema column order. Treated as
// immutable once created; the batch owns it from append to consumption.
type Record struct {
	schema *schema.Schema
	values []value.Value
}

// New builds a record over the given schema. The values slice is owned by
// the record after the call.
func New(s *schema.Schema, values []value.Value) (Record, error) {
	if len(values) != s.Len() {
		return Record{}, fmt.Errorf("%w: have %d values for %d columns", ErrArity, len(values), s.Len())
	}
	return Record{schema: s, values: values}, nil
}

func (r Record) Schema() *schema.Schema {
	return r.schema
}

func (r Record) Len() int {
	return len(r.values)
}

// Value returns the value at column position i.
func (r Record) Value(i int) value.Value {
	return r.values[i]
}

// ValueOf resolves a value by output column name.
func (r Record) ValueOf(column string) (value.Value, bool) {
	_, i, ok := r.schema.Lookup(column)
	if !ok {
		return value.Null(), false
	}
	return r.values[i], true
}

// Values returns the row in column order. The returned slice must not be
// mutated.
func (r Record) Values() []value.Value {
	return r.values
}
