package graph

import (
	"fmt"
	"math"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/parallel"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// unaryNode is an element-wise unary operation; it preserves the
// operand's sparsity.
type unaryNode struct {
	op OpCode
	x  MX
}

// Neg returns -x.
func Neg(x MX) MX { return unary(OpNeg, x) }

// Sin returns element-wise sin(x).
func Sin(x MX) MX { return unary(OpSin, x) }

// Cos returns element-wise cos(x).
func Cos(x MX) MX { return unary(OpCos, x) }

// Exp returns element-wise exp(x).
func Exp(x MX) MX { return unary(OpExp, x) }

// Log returns element-wise log(x).
func Log(x MX) MX { return unary(OpLog, x) }

// Sqrt returns element-wise sqrt(x).
func Sqrt(x MX) MX { return unary(OpSqrt, x) }

// Tanh returns element-wise tanh(x).
func Tanh(x MX) MX { return unary(OpTanh, x) }

func unary(op OpCode, x MX) MX {
	if x.IsNil() {
		panic("graph: unary operation on nil value")
	}
	if (op == OpNeg || op == OpSin || op == OpSqrt || op == OpTanh) && x.IsZero() {
		return x // f(0) == 0 for these
	}
	return MX{node: &unaryNode{op: op, x: x}}
}

func unApply(op OpCode, v float64) float64 {
	switch op {
	case OpNeg:
		return -v
	case OpSin:
		return math.Sin(v)
	case OpCos:
		return math.Cos(v)
	case OpExp:
		return math.Exp(v)
	case OpLog:
		return math.Log(v)
	case OpSqrt:
		return math.Sqrt(v)
	case OpTanh:
		return math.Tanh(v)
	default:
		panic(fmt.Sprintf("graph: %v is not a unary operation", op))
	}
}

var scalarOp = map[OpCode]scalar.Op{
	OpNeg:  scalar.OpNeg,
	OpSin:  scalar.OpSin,
	OpCos:  scalar.OpCos,
	OpExp:  scalar.OpExp,
	OpLog:  scalar.OpLog,
	OpSqrt: scalar.OpSqrt,
	OpTanh: scalar.OpTanh,
}

func (n *unaryNode) Op() OpCode      { return n.op }
func (n *unaryNode) Deps() []MX      { return []MX{n.x} }
func (n *unaryNode) NumOutputs() int { return 1 }

func (n *unaryNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.x.Sparsity()
}

func (n *unaryNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	a, r := arg[0], res[0]
	op := n.op
	parallel.For(len(r), func(k int) { r[k] = unApply(op, a[k]) }, parCfg)
	return nil
}

func (n *unaryNode) EvalSX(arg, res [][]*scalar.Expr) error {
	sop := scalarOp[n.op]
	for k := range res[0] {
		res[0][k] = scalar.Unary(sop, arg[0][k])
	}
	return nil
}

func (n *unaryNode) EvalMX(arg []MX) ([]MX, error) {
	return []MX{unary(n.op, arg[0])}, nil
}

// partial builds df/dx as a graph value over the argument x.
func (n *unaryNode) partial(x MX) MX {
	switch n.op {
	case OpNeg:
		return must(Mul(Scalar(-1), Ones(x.Sparsity())))
	case OpSin:
		return Cos(x)
	case OpCos:
		return Neg(Sin(x))
	case OpExp:
		return Exp(x)
	case OpLog:
		return must(Div(Ones(x.Sparsity()), x))
	case OpSqrt:
		return must(Div(Ones(x.Sparsity()), must(Mul(Scalar(2), Sqrt(x)))))
	case OpTanh:
		t := Tanh(x)
		return must(Sub(Ones(x.Sparsity()), must(Mul(t, t))))
	default:
		panic(fmt.Sprintf("graph: %v is not a unary operation", n.op))
	}
}

func (n *unaryNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	df := n.partial(arg[0])
	fsens := make([][]MX, len(fseed))
	for d := range fseed {
		dx := zeroSeed(fseed[d][0], n.x.Sparsity())
		fsens[d] = []MX{must(Mul(df, dx))}
	}
	return fsens, nil
}

func (n *unaryNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	df := n.partial(arg[0])
	asens := make([][]MX, len(aseed))
	for d := range aseed {
		s := zeroSeed(aseed[d][0], n.x.Sparsity())
		asens[d] = []MX{must(Mul(df, s))}
	}
	return asens, nil
}

func (n *unaryNode) SpFwd(arg, res []BitVec) {
	copy(res[0], arg[0])
}

func (n *unaryNode) SpAdj(arg, res []BitVec) {
	res[0].OrInto(arg[0])
	res[0].Clear()
}

func (n *unaryNode) Work() (ni, nr int) { return 0, 0 }

func (n *unaryNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.Add(cgOp(n.op), arg, res)
}

func (n *unaryNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &unaryNode{op: n.op}
	copied[n] = c
	c.x = n.x.DeepCopy(copied)
	return c
}

func (n *unaryNode) String() string {
	if n.op == OpNeg {
		return "(-" + n.x.String() + ")"
	}
	return n.op.String() + "(" + n.x.String() + ")"
}
