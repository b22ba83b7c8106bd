package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/parallel"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// parCfg gates the element-wise kernels; large nonzero counts are
// chunked across workers.
var parCfg = parallel.DefaultConfig()

// binaryNode is an element-wise binary operation. Operands either
// share the node's sparsity or are scalars broadcast over it.
type binaryNode struct {
	op   OpCode
	a, b MX
	sp   *sparsity.Pattern
}

// Add returns the element-wise sum x+y.
func Add(x, y MX) (MX, error) { return binary(OpAdd, x, y) }

// Sub returns the element-wise difference x-y.
func Sub(x, y MX) (MX, error) { return binary(OpSub, x, y) }

// Mul returns the element-wise product x*y.
func Mul(x, y MX) (MX, error) { return binary(OpMul, x, y) }

// Div returns the element-wise quotient x/y.
func Div(x, y MX) (MX, error) { return binary(OpDiv, x, y) }

func isScalarOne(x MX) bool {
	c, ok := x.node.(*constNode)
	return ok && c.sp.IsScalar() && c.val[0] == 1
}

func binary(op OpCode, x, y MX) (MX, error) {
	if x.IsNil() || y.IsNil() {
		return MX{}, fmt.Errorf("%w: nil operand", ErrShape)
	}

	sp, err := binarySparsity(x.Sparsity(), y.Sparsity())
	if err != nil {
		return MX{}, fmt.Errorf("graph: %v: %w", op, err)
	}

	// Trivial identities, so synthesized derivative graphs stay small.
	switch op {
	case OpAdd:
		if x.IsZero() && y.Sparsity().Equal(sp) {
			return y, nil
		}
		if y.IsZero() && x.Sparsity().Equal(sp) {
			return x, nil
		}
	case OpSub:
		if y.IsZero() && x.Sparsity().Equal(sp) {
			return x, nil
		}
	case OpMul:
		if x.IsZero() || y.IsZero() {
			return Zero(sp), nil
		}
		if isScalarOne(x) && y.Sparsity().Equal(sp) {
			return y, nil
		}
		if isScalarOne(y) && x.Sparsity().Equal(sp) {
			return x, nil
		}
	case OpDiv:
		if x.IsZero() && !y.IsZero() {
			return Zero(sp), nil
		}
		if isScalarOne(y) && x.Sparsity().Equal(sp) {
			return x, nil
		}
	}

	// Non-scalar operands with a different pattern are widened to the
	// unified pattern up front, so the kernels only see matched or
	// scalar-broadcast operands.
	if !x.Sparsity().IsScalar() && !x.Sparsity().Equal(sp) {
		if x, err = Project(x, sp); err != nil {
			return MX{}, err
		}
	}
	if !y.Sparsity().IsScalar() && !y.Sparsity().Equal(sp) {
		if y, err = Project(y, sp); err != nil {
			return MX{}, err
		}
	}

	return MX{node: &binaryNode{op: op, a: x, b: y, sp: sp}}, nil
}

// binarySparsity unifies operand patterns: equal patterns stay,
// scalars broadcast, equal shapes unify to the pattern union.
func binarySparsity(a, b *sparsity.Pattern) (*sparsity.Pattern, error) {
	switch {
	case a.Equal(b):
		return a, nil
	case a.IsScalar():
		return b, nil
	case b.IsScalar():
		return a, nil
	case a.SameShape(b):
		return a.Union(b)
	default:
		return nil, fmt.Errorf("%w: %s vs %s", ErrShape, a, b)
	}
}

func (n *binaryNode) Op() OpCode      { return n.op }
func (n *binaryNode) Deps() []MX      { return []MX{n.a, n.b} }
func (n *binaryNode) NumOutputs() int { return 1 }

func (n *binaryNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.sp
}

func binApply(op OpCode, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	default:
		panic(fmt.Sprintf("graph: %v is not a binary operation", op))
	}
}

func scalarBin(op OpCode, x, y *scalar.Expr) *scalar.Expr {
	switch op {
	case OpAdd:
		return scalar.Add(x, y)
	case OpSub:
		return scalar.Sub(x, y)
	case OpMul:
		return scalar.Mul(x, y)
	case OpDiv:
		return scalar.Div(x, y)
	default:
		panic(fmt.Sprintf("graph: %v is not a binary operation", op))
	}
}

func (n *binaryNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	a, b, r := arg[0], arg[1], res[0]
	op := n.op
	switch {
	case len(a) == 1 && len(b) == 1:
		r[0] = binApply(op, a[0], b[0])
	case len(a) == 1:
		parallel.For(len(r), func(k int) { r[k] = binApply(op, a[0], b[k]) }, parCfg)
	case len(b) == 1:
		parallel.For(len(r), func(k int) { r[k] = binApply(op, a[k], b[0]) }, parCfg)
	default:
		parallel.For(len(r), func(k int) { r[k] = binApply(op, a[k], b[k]) }, parCfg)
	}
	return nil
}

func (n *binaryNode) EvalSX(arg, res [][]*scalar.Expr) error {
	a, b, r := arg[0], arg[1], res[0]
	for k := range r {
		ak, bk := 0, 0
		if len(a) > 1 {
			ak = k
		}
		if len(b) > 1 {
			bk = k
		}
		r[k] = scalarBin(n.op, a[ak], b[bk])
	}
	return nil
}

func (n *binaryNode) EvalMX(arg []MX) ([]MX, error) {
	y, err := binary(n.op, arg[0], arg[1])
	if err != nil {
		return nil, err
	}
	return []MX{y}, nil
}

func (n *binaryNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	fsens := make([][]MX, len(fseed))
	for d := range fseed {
		da := zeroSeed(fseed[d][0], n.a.Sparsity())
		db := zeroSeed(fseed[d][1], n.b.Sparsity())
		var s MX
		switch n.op {
		case OpAdd:
			s = must(Add(da, db))
		case OpSub:
			s = must(Sub(da, db))
		case OpMul:
			s = must(Add(must(Mul(arg[1], da)), must(Mul(arg[0], db))))
		case OpDiv:
			q := must(Div(arg[0], arg[1]))
			s = must(Div(must(Sub(da, must(Mul(q, db)))), arg[1]))
		}
		fsens[d] = []MX{s}
	}
	return fsens, nil
}

func (n *binaryNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	asens := make([][]MX, len(aseed))
	for d := range aseed {
		s := zeroSeed(aseed[d][0], n.sp)
		var ca, cb MX
		switch n.op {
		case OpAdd:
			ca, cb = s, s
		case OpSub:
			ca, cb = s, must(Sub(Zero(s.Sparsity()), s))
		case OpMul:
			ca = must(Mul(s, arg[1]))
			cb = must(Mul(s, arg[0]))
		case OpDiv:
			q := must(Div(arg[0], arg[1]))
			ca = must(Div(s, arg[1]))
			cb = must(Sub(Zero(s.Sparsity()), must(Div(must(Mul(s, q)), arg[1]))))
		}
		asens[d] = []MX{adjTo(ca, n.a.Sparsity()), adjTo(cb, n.b.Sparsity())}
	}
	return asens, nil
}

func (n *binaryNode) SpFwd(arg, res []BitVec) {
	a, b, r := arg[0], arg[1], res[0]
	for k := range r {
		var w uint64
		if len(a) == 1 {
			w |= a[0]
		} else {
			w |= a[k]
		}
		if len(b) == 1 {
			w |= b[0]
		} else {
			w |= b[k]
		}
		r[k] = w
	}
}

func (n *binaryNode) SpAdj(arg, res []BitVec) {
	a, b, r := arg[0], arg[1], res[0]
	r.OrInto(a)
	r.OrInto(b)
	r.Clear()
}

func (n *binaryNode) Work() (ni, nr int) { return 0, 0 }

func (n *binaryNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.Add(cgOp(n.op), arg, res)
}

func (n *binaryNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &binaryNode{op: n.op, sp: n.sp}
	copied[n] = c
	c.a = n.a.DeepCopy(copied)
	c.b = n.b.DeepCopy(copied)
	return c
}

func (n *binaryNode) String() string {
	sym := map[OpCode]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/"}[n.op]
	return "(" + n.a.String() + sym + n.b.String() + ")"
}

// cgOp maps a node kind to its codegen opcode.
func cgOp(op OpCode) codegen.Opcode {
	switch op {
	case OpAdd:
		return codegen.OpAdd
	case OpSub:
		return codegen.OpSub
	case OpMul:
		return codegen.OpMul
	case OpDiv:
		return codegen.OpDiv
	case OpNeg:
		return codegen.OpNeg
	case OpSin:
		return codegen.OpSin
	case OpCos:
		return codegen.OpCos
	case OpExp:
		return codegen.OpExp
	case OpLog:
		return codegen.OpLog
	case OpSqrt:
		return codegen.OpSqrt
	case OpTanh:
		return codegen.OpTanh
	case OpSum:
		return codegen.OpSum
	case OpProject:
		return codegen.OpProject
	default:
		panic(fmt.Sprintf("graph: no codegen opcode for %v", op))
	}
}

// String for OpCode diagnostics.
func (op OpCode) String() string {
	names := [...]string{"const", "sym", "add", "sub", "mul", "div", "neg",
		"sin", "cos", "exp", "log", "sqrt", "tanh", "sum", "project", "call", "output"}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}
