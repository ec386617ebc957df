package query

import (
	"errors"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrWrongSchema = errors.New("batch schema does not match plan schema")
)

// truth is the three-valued predicate result. Only truthTrue retains a row;
// unknown is never an error.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// Schema returns the output schema of the plan: the input schema for a
// wildcard projection, otherwise the projected subset.
func (p *Plan) Schema() *schema.Schema {
	return p.out
}

// Execute applies the plan to one sealed batch: filter, then offset, then
// limit, then projection in declared column order. A grouped plan filters,
// folds rows into groups, then applies offset and limit to the group rows.
// The input batch is never mutated, and executing the same plan on the same
// batch twice yields identical output. Grouping, limit, and offset are all
// batch-local; batches are the unit of execution, so there is no cross-batch
// pagination or aggregation.
func (p *Plan) Execute(batch *record.Batch) (*record.Batch, error) {
	if batch.Schema() != p.in {
		return nil, ErrWrongSchema
	}
	if p.grouped {
		return p.executeGrouped(batch)
	}
	var kept []record.Record
	remaining := p.limit
	skip := p.offset
	for _, r := range batch.Records() {
		if p.predicate != nil && evalPredicate(p.predicate, r) != truthTrue {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if remaining == 0 {
			break
		}
		if remaining > 0 {
			remaining--
		}
		kept = append(kept, p.project(r))
	}
	return record.FromRecords(p.out, kept), nil
}

func (p *Plan) project(r record.Record) record.Record {
	if p.wildcard {
		return r
	}
	values := make([]value.Value, len(p.projIdx))
	for i, pos := range p.projIdx {
		values[i] = r.Value(pos)
	}
	projected, _ := record.New(p.out, values)
	return projected
}

func evalPredicate(e Expr, r record.Record) truth {
	switch e := e.(type) {
	case *Comparison:
		cmp, known := value.Compare(evalValue(e.Left, r), evalValue(e.Right, r))
		if !known {
			return truthUnknown
		}
		switch e.Op {
		case OpEq:
			return truthOf(cmp == 0)
		case OpNeq:
			return truthOf(cmp != 0)
		case OpLt:
			return truthOf(cmp < 0)
		case OpGt:
			return truthOf(cmp > 0)
		case OpLte:
			return truthOf(cmp <= 0)
		case OpGte:
			return truthOf(cmp >= 0)
		}
		return truthUnknown
	case *Not:
		switch evalPredicate(e.Expr, r) {
		case truthTrue:
			return truthFalse
		case truthFalse:
			return truthTrue
		default:
			return truthUnknown
		}
	case *And:
		l, rt := evalPredicate(e.Left, r), evalPredicate(e.Right, r)
		switch {
		case l == truthFalse || rt == truthFalse:
			return truthFalse
		case l == truthTrue && rt == truthTrue:
			return truthTrue
		default:
			return truthUnknown
		}
	case *Or:
		l, rt := evalPredicate(e.Left, r), evalPredicate(e.Right, r)
		switch {
		case l == truthTrue || rt == truthTrue:
			return truthTrue
		case l == truthFalse && rt == truthFalse:
			return truthFalse
		default:
			return truthUnknown
		}
	default:
		// bare column or literal in a boolean position
		v := evalValue(e, r)
		if v.Kind() == value.KindBool {
			return truthOf(v.Bool())
		}
		return truthUnknown
	}
}

func evalValue(e Expr, r record.Record) value.Value {
	switch e := e.(type) {
	case *Literal:
		return e.Value
	case *Column:
		return r.Value(e.Pos)
	default:
		return value.Null()
	}
}
