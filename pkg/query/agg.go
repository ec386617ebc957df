package query

import (
	"strconv"
	"strings"

	"github.com/saylorsolutions/grokql/pkg/record"
	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

// selectItem is one projected output column: a plain input column, or an
// aggregate over one. COUNT(*) has pos -1.
type selectItem struct {
	name     string
	pos      int
	kind     value.Kind
	agg      AggFunc
	distinct bool
}

func (it selectItem) fieldSpec(in *schema.Schema) schema.FieldSpec {
	if it.agg == AggNone {
		f := in.Field(it.pos)
		f.Output = it.name
		return f
	}
	spec := schema.FieldSpec{Source: it.name, Output: it.name}
	switch it.agg {
	case AggCount:
		spec.Type = value.IntType()
	case AggAvg:
		spec.Type = value.FloatType()
	case AggSum:
		if it.kind == value.KindFloat {
			spec.Type = value.FloatType()
		} else {
			spec.Type = value.IntType()
		}
	default: // MIN and MAX keep the column type
		spec.Type = in.Field(it.pos).Type
	}
	return spec
}

func (it selectItem) newAccumulator() accumulator {
	switch it.agg {
	case AggCount:
		if it.distinct {
			return &countDistinctAcc{}
		}
		if it.pos < 0 {
			return &countRowsAcc{}
		}
		return &countAcc{}
	case AggSum:
		return &sumAcc{float: it.kind == value.KindFloat}
	case AggAvg:
		return &avgAcc{}
	case AggMin:
		return &orderedAcc{keepLess: true}
	case AggMax:
		return &orderedAcc{}
	}
	return nil
}

// accumulator folds one group's column values into a single result.
type accumulator interface {
	add(v value.Value)
	result() value.Value
}

type countRowsAcc struct {
	n int64
}

func (a *countRowsAcc) add(value.Value) {
	a.n++
}

func (a *countRowsAcc) result() value.Value {
	return value.Int(a.n)
}

type countAcc struct {
	n int64
}

func (a *countAcc) add(v value.Value) {
	if !v.IsNull() {
		a.n++
	}
}

func (a *countAcc) result() value.Value {
	return value.Int(a.n)
}

type countDistinctAcc struct {
	seen map[string]struct{}
}

func (a *countDistinctAcc) add(v value.Value) {
	if v.IsNull() {
		return
	}
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	a.seen[valueKey(v)] = struct{}{}
}

func (a *countDistinctAcc) result() value.Value {
	return value.Int(int64(len(a.seen)))
}

type sumAcc struct {
	float bool
	i     int64
	f     float64
	any   bool
}

func (a *sumAcc) add(v value.Value) {
	if v.IsNull() {
		return
	}
	a.any = true
	if a.float {
		a.f += v.Float()
	} else {
		a.i += v.Int()
	}
}

func (a *sumAcc) result() value.Value {
	if !a.any {
		return value.Null()
	}
	if a.float {
		return value.Float(a.f)
	}
	return value.Int(a.i)
}

type avgAcc struct {
	sum float64
	n   int64
}

func (a *avgAcc) add(v value.Value) {
	switch v.Kind() {
	case value.KindInt:
		a.sum += float64(v.Int())
	case value.KindFloat:
		a.sum += v.Float()
	default:
		return
	}
	a.n++
}

func (a *avgAcc) result() value.Value {
	if a.n == 0 {
		return value.Null()
	}
	return value.Float(a.sum / float64(a.n))
}

// orderedAcc keeps the least or greatest non-null value seen.
type orderedAcc struct {
	keepLess bool
	cur      value.Value
	has      bool
}

func (a *orderedAcc) add(v value.Value) {
	if v.IsNull() {
		return
	}
	if !a.has {
		a.cur = v
		a.has = true
		return
	}
	cmp, known := value.Compare(v, a.cur)
	if !known {
		return
	}
	if (a.keepLess && cmp < 0) || (!a.keepLess && cmp > 0) {
		a.cur = v
	}
}

func (a *orderedAcc) result() value.Value {
	if !a.has {
		return value.Null()
	}
	return a.cur
}

type groupAcc struct {
	key  []value.Value
	accs []accumulator
}

// executeGrouped filters rows, folds them into per-group accumulators keyed
// by the plain projected columns, then applies offset and limit to the group
// rows. Groups emit in first-seen order, so repeated execution over the same
// batch yields identical output. An empty input yields no groups, even for a
// bare COUNT(*).
func (p *Plan) executeGrouped(batch *record.Batch) (*record.Batch, error) {
	groups := make(map[string]*groupAcc)
	var order []*groupAcc
	for _, r := range batch.Records() {
		if p.predicate != nil && evalPredicate(p.predicate, r) != truthTrue {
			continue
		}
		k := p.groupKey(r)
		g, ok := groups[k]
		if !ok {
			g = &groupAcc{
				key:  make([]value.Value, len(p.items)),
				accs: make([]accumulator, len(p.items)),
			}
			for i, it := range p.items {
				if it.agg == AggNone {
					g.key[i] = r.Value(it.pos)
				} else {
					g.accs[i] = it.newAccumulator()
				}
			}
			groups[k] = g
			order = append(order, g)
		}
		for i, it := range p.items {
			if it.agg == AggNone {
				continue
			}
			v := value.Null()
			if it.pos >= 0 {
				v = r.Value(it.pos)
			}
			g.accs[i].add(v)
		}
	}

	var kept []record.Record
	remaining := p.limit
	skip := p.offset
	for _, g := range order {
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
		values := make([]value.Value, len(p.items))
		for i, it := range p.items {
			if it.agg == AggNone {
				values[i] = g.key[i]
			} else {
				values[i] = g.accs[i].result()
			}
		}
		rec, err := record.New(p.out, values)
		if err != nil {
			return nil, err
		}
		kept = append(kept, rec)
	}
	return record.FromRecords(p.out, kept), nil
}

// groupKey renders the plain projected columns into an unambiguous map key.
func (p *Plan) groupKey(r record.Record) string {
	var sb strings.Builder
	for _, it := range p.items {
		if it.agg != AggNone {
			continue
		}
		v := r.Value(it.pos)
		rendered := v.Render()
		sb.WriteString(strconv.Itoa(int(v.Kind())))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(len(rendered)))
		sb.WriteByte(':')
		sb.WriteString(rendered)
	}
	return sb.String()
}

func valueKey(v value.Value) string {
	return strconv.Itoa(int(v.Kind())) + ":" + v.Render()
}
