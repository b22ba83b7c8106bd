package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// constNode holds a numeric constant: one value per structural
// nonzero of its pattern.
type constNode struct {
	sp  *sparsity.Pattern
	val []float64
}

// Const creates a constant value with the given pattern and nonzero
// values.
func Const(sp *sparsity.Pattern, val []float64) (MX, error) {
	if len(val) != sp.NNZ() {
		return MX{}, fmt.Errorf("%w: %d values for pattern %s", ErrShape, len(val), sp)
	}
	return MX{node: &constNode{sp: sp, val: append([]float64(nil), val...)}}, nil
}

// Scalar creates a dense 1x1 constant.
func Scalar(v float64) MX {
	return MX{node: &constNode{sp: sparsity.Scalar(), val: []float64{v}}}
}

// Zero creates an all-zero constant with the given pattern.
func Zero(sp *sparsity.Pattern) MX {
	return MX{node: &constNode{sp: sp, val: make([]float64, sp.NNZ())}}
}

// Ones creates an all-one constant with the given pattern.
func Ones(sp *sparsity.Pattern) MX {
	val := make([]float64, sp.NNZ())
	for i := range val {
		val[i] = 1
	}
	return MX{node: &constNode{sp: sp, val: val}}
}

func checkOutputIndex(oind, n int) {
	if oind < 0 || oind >= n {
		panic(fmt.Sprintf("graph: output index %d out of range [0,%d)", oind, n))
	}
}

func (n *constNode) Op() OpCode      { return OpConst }
func (n *constNode) Deps() []MX      { return nil }
func (n *constNode) NumOutputs() int { return 1 }

func (n *constNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.sp
}

func (n *constNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	copy(res[0], n.val)
	return nil
}

func (n *constNode) EvalSX(arg, res [][]*scalar.Expr) error {
	for k, v := range n.val {
		res[0][k] = scalar.Const(v)
	}
	return nil
}

func (n *constNode) EvalMX(arg []MX) ([]MX, error) {
	return []MX{{node: n}}, nil
}

func (n *constNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	fsens := make([][]MX, len(fseed))
	for d := range fsens {
		fsens[d] = []MX{Zero(n.sp)}
	}
	return fsens, nil
}

func (n *constNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	asens := make([][]MX, len(aseed))
	for d := range asens {
		asens[d] = nil // no arguments
	}
	return asens, nil
}

// Leaves neither read nor produce dependency bits; the propagation
// drivers seed and consume leaf vectors directly.
func (n *constNode) SpFwd(arg, res []BitVec) {}
func (n *constNode) SpAdj(arg, res []BitVec) {}

func (n *constNode) Work() (ni, nr int) { return 0, 0 }

func (n *constNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.AddConst(res[0], n.val)
}

func (n *constNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &constNode{sp: n.sp, val: append([]float64(nil), n.val...)}
	copied[n] = c
	return c
}

func (n *constNode) String() string {
	if n.sp.IsScalar() {
		return fmt.Sprintf("%g", n.val[0])
	}
	return fmt.Sprintf("const[%s]", n.sp)
}
