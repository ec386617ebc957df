// Package query compiles a restricted single-table SELECT into an execution
// plan and applies that plan to record batches.
//
// Grammar:
//
//	SELECT (* | item [, item]*) FROM table
//	    [WHERE expr] [GROUP BY col [, col]*] [LIMIT n] [OFFSET n]
//	item = col | agg, each optionally followed by AS name
//	agg  = COUNT(* | [DISTINCT] col) | SUM(col) | AVG(col) | MIN(col) | MAX(col)
//
// WHERE supports string/int/float literals, schema-validated column
// references, the comparisons =, !=, <>, <, >, <=, >=, NOT/AND/OR with
// precedence NOT > comparison > AND > OR, parentheses, and
// DATE(format, literal) which folds to a timestamp literal at compile time.
// Aggregation is batch-local: an aggregate or GROUP BY query folds each
// batch independently, and every plain projected column must appear in
// GROUP BY. A plan is compiled once per stream and is read-only afterwards.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/saylorsolutions/grokql/pkg/schema"
	"github.com/saylorsolutions/grokql/pkg/value"
)

var (
	ErrQueryCompile = errors.New("query compile error")
)

func compileErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrQueryCompile, fmt.Sprintf(format, args...))
}

// Plan is a compiled query: projection, predicate, optional batch-local
// grouping, and batch-local limit/offset. Safe for concurrent use across
// batches.
type Plan struct {
	in        *schema.Schema
	out       *schema.Schema
	wildcard  bool
	grouped   bool
	items     []selectItem
	projIdx   []int
	predicate Expr
	limit     int // -1 when absent
	offset    int
}

// Compile parses and validates src against the schema. The table name must
// equal the schema name. Any unknown column, malformed expression, or
// unsupported construct is a compile error; nothing is deferred to
// execution.
func Compile(src string, s *schema.Schema) (*Plan, error) {
	l := lexString(src)
	str := l.stream()
	go l.lex()

	p := &planParser{schema: s, str: str}
	plan, err := p.parse()
	if err != nil {
		drainTokens(l.tokens)
		return nil, err
	}
	return plan, nil
}

func drainTokens(ch <-chan token) {
	for range ch {
	}
}

type planParser struct {
	schema *schema.Schema
	str    *tokenStream
}

func (p *planParser) parse() (*Plan, error) {
	if err := p.expect(tSelect, "SELECT"); err != nil {
		return nil, err
	}
	plan := &Plan{in: p.schema, limit: -1}
	if err := p.parseProjection(plan); err != nil {
		return nil, err
	}
	if err := p.expect(tFrom, "FROM"); err != nil {
		return nil, err
	}
	table := p.str.next()
	if table.Type != tIdentifier {
		return nil, compileErr("expected table name, got %q", table.Text)
	}
	if table.Text != p.schema.Name() {
		return nil, compileErr("unknown table %q, the active schema is %q", table.Text, p.schema.Name())
	}
	if p.str.peek().Type == tWhere {
		p.str.next()
		pred, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		plan.predicate = pred
	}
	groupIdx, err := p.parseGroupBy()
	if err != nil {
		return nil, err
	}
	if p.str.peek().Type == tLimit {
		p.str.next()
		n, err := p.parseBound("LIMIT")
		if err != nil {
			return nil, err
		}
		plan.limit = n
	}
	if p.str.peek().Type == tOffset {
		p.str.next()
		n, err := p.parseBound("OFFSET")
		if err != nil {
			return nil, err
		}
		plan.offset = n
	}
	trailing := p.str.next()
	if trailing.Type == tErr {
		return nil, compileErr("%s", trailing.Text)
	}
	if trailing.Type != tEof {
		return nil, compileErr("unexpected trailing input at %q", trailing.Text)
	}
	if err := p.finishProjection(plan, groupIdx); err != nil {
		return nil, err
	}
	return plan, nil
}

// finishProjection validates grouping and fixes the output schema. An
// aggregate function or a GROUP BY clause makes the plan a grouped one, and
// then the plain projected columns and the GROUP BY columns must be the same
// set.
func (p *planParser) finishProjection(plan *Plan, groupIdx []int) error {
	for _, it := range plan.items {
		if it.agg != AggNone {
			plan.grouped = true
		}
	}
	if len(groupIdx) > 0 {
		plan.grouped = true
	}
	if plan.wildcard {
		if plan.grouped {
			return compileErr("cannot group a wildcard projection")
		}
		plan.out = p.schema
		plan.projIdx = make([]int, p.schema.Len())
		for i := range plan.projIdx {
			plan.projIdx[i] = i
		}
		return nil
	}
	if plan.grouped {
		byPos := make(map[int]bool, len(groupIdx))
		for _, pos := range groupIdx {
			byPos[pos] = true
		}
		projected := make(map[int]bool, len(plan.items))
		for _, it := range plan.items {
			if it.agg != AggNone {
				continue
			}
			if !byPos[it.pos] {
				return compileErr("column %q must appear in GROUP BY", it.name)
			}
			projected[it.pos] = true
		}
		for _, pos := range groupIdx {
			if !projected[pos] {
				return compileErr("GROUP BY column %q is not in the projection", p.schema.Field(pos).Output)
			}
		}
	}
	fields := make([]schema.FieldSpec, len(plan.items))
	for i, it := range plan.items {
		fields[i] = it.fieldSpec(p.schema)
	}
	out, err := schema.New(p.schema.Name(), fields)
	if err != nil {
		return compileErr("%v", err)
	}
	plan.out = out
	if !plan.grouped {
		plan.projIdx = make([]int, len(plan.items))
		for i, it := range plan.items {
			plan.projIdx[i] = it.pos
		}
	}
	return nil
}

func (p *planParser) parseGroupBy() ([]int, error) {
	if p.str.peek().Type != tGroup {
		return nil, nil
	}
	p.str.next()
	if err := p.expect(tBy, "BY"); err != nil {
		return nil, err
	}
	var groupIdx []int
	for {
		tok := p.str.next()
		if tok.Type != tIdentifier {
			return nil, compileErr("expected GROUP BY column, got %q", tok.Text)
		}
		_, pos, ok := p.schema.Lookup(tok.Text)
		if !ok {
			return nil, compileErr("unknown column %q", tok.Text)
		}
		groupIdx = append(groupIdx, pos)
		if p.str.peek().Type != tComma {
			return groupIdx, nil
		}
		p.str.next()
	}
}

func (p *planParser) expect(t lexType, what string) error {
	tok := p.str.next()
	if tok.Type == tErr {
		return compileErr("%s", tok.Text)
	}
	if tok.Type != t {
		return compileErr("expected %s, got %q", what, tok.Text)
	}
	return nil
}

func (p *planParser) parseProjection(plan *Plan) error {
	if p.str.peek().Type == tStar {
		p.str.next()
		plan.wildcard = true
		return nil
	}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return err
		}
		plan.items = append(plan.items, item)
		if p.str.peek().Type != tComma {
			return nil
		}
		p.str.next()
	}
}

var aggFuncs = map[string]AggFunc{
	"COUNT": AggCount,
	"SUM":   AggSum,
	"AVG":   AggAvg,
	"MIN":   AggMin,
	"MAX":   AggMax,
}

func (p *planParser) parseSelectItem() (selectItem, error) {
	tok := p.str.next()
	if tok.Type == tErr {
		return selectItem{}, compileErr("%s", tok.Text)
	}
	if tok.Type != tIdentifier {
		return selectItem{}, compileErr("expected column or aggregate, got %q", tok.Text)
	}
	var item selectItem
	if p.str.peek().Type == tLpar {
		agg, err := p.parseAggregate(tok.Text)
		if err != nil {
			return selectItem{}, err
		}
		item = agg
	} else {
		f, pos, ok := p.schema.Lookup(tok.Text)
		if !ok {
			return selectItem{}, compileErr("unknown column %q", tok.Text)
		}
		item = selectItem{name: tok.Text, pos: pos, kind: f.Type.Kind()}
	}
	if p.str.peek().Type == tAs {
		p.str.next()
		alias := p.str.next()
		if alias.Type != tIdentifier {
			return selectItem{}, compileErr("AS requires a column name, got %q", alias.Text)
		}
		item.name = alias.Text
	}
	return item, nil
}

func (p *planParser) parseAggregate(name string) (selectItem, error) {
	fn, ok := aggFuncs[strings.ToUpper(name)]
	if !ok {
		return selectItem{}, compileErr("unsupported function %q in projection", name)
	}
	p.str.next() // consume (
	item := selectItem{agg: fn, pos: -1}
	arg := p.str.next()
	if arg.Type == tDistinct {
		if fn != AggCount {
			return selectItem{}, compileErr("DISTINCT applies to COUNT only")
		}
		item.distinct = true
		arg = p.str.next()
	}
	switch arg.Type {
	case tStar:
		if fn != AggCount || item.distinct {
			return selectItem{}, compileErr("%s requires a column argument", fn)
		}
		item.name = "count"
	case tIdentifier:
		f, pos, ok := p.schema.Lookup(arg.Text)
		if !ok {
			return selectItem{}, compileErr("unknown column %q", arg.Text)
		}
		item.pos = pos
		item.kind = f.Type.Kind()
		item.name = strings.ToLower(fn.String()) + "_" + arg.Text
	default:
		return selectItem{}, compileErr("expected %s argument, got %q", fn, arg.Text)
	}
	if err := p.expect(tRpar, ")"); err != nil {
		return selectItem{}, err
	}
	if fn == AggSum || fn == AggAvg {
		if item.kind != value.KindInt && item.kind != value.KindFloat {
			return selectItem{}, compileErr("%s requires a numeric column, %q is %s", fn, p.schema.Field(item.pos).Output, item.kind)
		}
	}
	return item, nil
}

func (p *planParser) parseBound(what string) (int, error) {
	tok := p.str.next()
	if tok.Type != tInt {
		return 0, compileErr("%s requires an integer, got %q", what, tok.Text)
	}
	n, err := strconv.Atoi(tok.Text)
	if err != nil {
		return 0, compileErr("%s: %v", what, err)
	}
	if n < 0 {
		return 0, compileErr("%s must not be negative, got %d", what, n)
	}
	return n, nil
}

func (p *planParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.str.peek().Type == tOr {
		p.str.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *planParser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.str.peek().Type == tAnd {
		p.str.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *planParser) parseNot() (Expr, error) {
	if p.str.peek().Type == tNot {
		p.str.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	}
	return p.parseComparison()
}

var compareOps = map[lexType]CompareOp{
	tEq:  OpEq,
	tNeq: OpNeq,
	tLt:  OpLt,
	tGt:  OpGt,
	tLte: OpLte,
	tGte: OpGte,
}

func (p *planParser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, ok := compareOps[p.str.peek().Type]
	if !ok {
		return left, nil
	}
	p.str.next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Comparison{Op: op, Left: left, Right: right}, nil
}

func (p *planParser) parseOperand() (Expr, error) {
	tok := p.str.next()
	switch tok.Type {
	case tErr:
		return nil, compileErr("%s", tok.Text)
	case tString:
		return &Literal{Value: value.String(tok.Text)}, nil
	case tInt:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, compileErr("bad integer literal %q", tok.Text)
		}
		return &Literal{Value: value.Int(n)}, nil
	case tNumber:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, compileErr("bad float literal %q", tok.Text)
		}
		return &Literal{Value: value.Float(f)}, nil
	case tLpar:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tRpar, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tIdentifier:
		if p.str.peek().Type == tLpar {
			return p.parseFunction(tok.Text)
		}
		_, pos, ok := p.schema.Lookup(tok.Text)
		if !ok {
			return nil, compileErr("unknown column %q", tok.Text)
		}
		return &Column{Name: tok.Text, Pos: pos}, nil
	case tEof:
		return nil, compileErr("unexpected end of query")
	}
	return nil, compileErr("unexpected token %q", tok.Text)
}

// parseFunction handles DATE(format, literal), folding it to a timestamp
// literal. No other functions are supported.
func (p *planParser) parseFunction(name string) (Expr, error) {
	if !strings.EqualFold(name, "date") {
		return nil, compileErr("unsupported function %q", name)
	}
	if err := p.expect(tLpar, "("); err != nil {
		return nil, err
	}
	format := p.str.next()
	if format.Type != tString {
		return nil, compileErr("DATE format must be a quoted string, got %q", format.Text)
	}
	if err := p.expect(tComma, ","); err != nil {
		return nil, err
	}
	lit := p.str.next()
	if lit.Type != tString {
		return nil, compileErr("DATE value must be a quoted string, got %q", lit.Text)
	}
	if err := p.expect(tRpar, ")"); err != nil {
		return nil, err
	}
	tf, err := value.CompileTimeFormat(format.Text)
	if err != nil {
		return nil, compileErr("DATE format %q: %v", format.Text, err)
	}
	ts, err := tf.Parse(lit.Text)
	if err != nil {
		return nil, compileErr("DATE value %q does not match format %q", lit.Text, format.Text)
	}
	return &Literal{Value: value.Time(ts)}, nil
}
