// Package parse applies a compiled grok matcher plus a field schema to raw
// lines, producing typed records or parse failures.
package parse

import (
	"errors"
	"fmt"

	"github.com/saylorsolutions/grokql/pkg/grok"
	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrNoMatch         = errors.New("line did not match pattern")
	ErrMissingRequired = errors.New("required capture missing")
	ErrConversion      = errors.New("field conversion failed")
)

// ParseError is the per-line failure value. It carries the offending raw
// line; it is never fatal to the pipeline.
type ParseError struct {
	Line string
	err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure: %v: %q", e.err, e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// Option configures a Parser under construction.
type Option func(*Parser)

// Strict escalates per-field conversion failures to a ParseFailure for the
// whole line instead of a Null value.
func Strict() Option {
	return func(p *Parser) {
		p.strict = true
	}
}

// Parser turns one raw line into a record. It holds no per-call mutable
// state: one parser may be shared by any number of workers.
type Parser struct {
	matcher *grok.Matcher
	schema  *schema.Schema
	strict  bool
}

func NewParser(matcher *grok.Matcher, s *schema.Schema, opts ...Option) *Parser {
	p := &Parser{matcher: matcher, schema: s}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Schema() *schema.Schema {
	return p.schema
}

// Parse matches the line and converts the declared captures. Missing or
// unconvertible optional fields become Null; required fields and, under
// Strict, conversion failures fail the line with a *ParseError.
func (p *Parser) Parse(line string) (record.Record, error) {
	caps, ok := p.matcher.Match(line)
	if !ok {
		return record.Record{}, &ParseError{Line: line, err: ErrNoMatch}
	}
	values := make([]value.Value, p.schema.Len())
	for i := 0; i < p.schema.Len(); i++ {
		f := p.schema.Field(i)
		raw, present := caps[f.Source]
		if !present {
			if f.Required {
				return record.Record{}, &ParseError{Line: line, err: fmt.Errorf("%w: %s", ErrMissingRequired, f.Source)}
			}
			values[i] = value.Null()
			continue
		}
		v, err := value.Convert(raw, f.Type)
		if err != nil {
			if p.strict || f.Required {
				return record.Record{}, &ParseError{Line: line, err: fmt.Errorf("%w: %s: %v", ErrConversion, f.Output, err)}
			}
			v = value.Null()
		}
		values[i] = v
	}
	return record.New(p.schema, values)
}
