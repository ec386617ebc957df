package query

import (
	"fmt"

	"github.com/saylorsolutions/grokql/pkg/value"
)

// CompareOp enumerates the comparison operators.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
)

var opStrings = map[CompareOp]string{
	OpEq:  "=",
	OpNeq: "!=",
	OpLt:  "<",
	OpGt:  ">",
	OpLte: "<=",
	OpGte: ">=",
}

func (op CompareOp) String() string {
	return opStrings[op]
}

// AggFunc enumerates the aggregate functions allowed in a projection.
type AggFunc int

const (
	AggNone AggFunc = iota
	AggCount
	AggSum
	AggAvg
	AggMin
	AggMax
)

var aggStrings = map[AggFunc]string{
	AggCount: "COUNT",
	AggSum:   "SUM",
	AggAvg:   "AVG",
	AggMin:   "MIN",
	AggMax:   "MAX",
}

func (f AggFunc) String() string {
	return aggStrings[f]
}

// Expr is a node of a compiled predicate tree. Column references are
// resolved to schema positions at compile time, so evaluation can never fail
// on an unknown column.
type Expr interface {
	exprString() string
}

// Literal is a constant value. DATE(format, literal) calls are folded into
// Time literals during compilation.
type Literal struct {
	Value value.Value
}

func (l *Literal) exprString() string {
	return l.Value.String()
}

// Column is a schema-resolved column reference.
type Column struct {
	Name string
	Pos  int
}

func (c *Column) exprString() string {
	return c.Name
}

// Comparison applies a CompareOp to two operands.
type Comparison struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (c *Comparison) exprString() string {
	return fmt.Sprintf("(%s %s %s)", c.Left.exprString(), c.Op, c.Right.exprString())
}

// Not negates its operand under three-valued logic: NOT unknown stays
// unknown.
type Not struct {
	Expr Expr
}

func (n *Not) exprString() string {
	return fmt.Sprintf("(not %s)", n.Expr.exprString())
}

// And is a Kleene conjunction.
type And struct {
	Left  Expr
	Right Expr
}

func (a *And) exprString() string {
	return fmt.Sprintf("(%s and %s)", a.Left.exprString(), a.Right.exprString())
}

// Or is a Kleene disjunction.
type Or struct {
	Left  Expr
	Right Expr
}

func (o *Or) exprString() string {
	return fmt.Sprintf("(%s or %s)", o.Left.exprString(), o.Right.exprString())
}
