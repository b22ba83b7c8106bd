package graph

import (
	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// sumNode reduces all nonzeros of its operand to one scalar. It is
// the reduction that closes the loop for scalar-broadcast adjoints.
type sumNode struct {
	x MX
}

// Sum returns the scalar sum of all nonzeros of x.
func Sum(x MX) (MX, error) {
	if x.IsNil() {
		return MX{}, ErrShape
	}
	if x.Sparsity().IsScalar() {
		return x, nil
	}
	return MX{node: &sumNode{x: x}}, nil
}

func (n *sumNode) Op() OpCode      { return OpSum }
func (n *sumNode) Deps() []MX      { return []MX{n.x} }
func (n *sumNode) NumOutputs() int { return 1 }

func (n *sumNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return sparsity.Scalar()
}

func (n *sumNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	var s float64
	for _, v := range arg[0] {
		s += v
	}
	res[0][0] = s
	return nil
}

func (n *sumNode) EvalSX(arg, res [][]*scalar.Expr) error {
	s := scalar.Zero()
	for _, e := range arg[0] {
		s = scalar.Add(s, e)
	}
	res[0][0] = s
	return nil
}

func (n *sumNode) EvalMX(arg []MX) ([]MX, error) {
	y, err := Sum(arg[0])
	if err != nil {
		return nil, err
	}
	return []MX{y}, nil
}

func (n *sumNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	fsens := make([][]MX, len(fseed))
	for d := range fseed {
		dx := zeroSeed(fseed[d][0], n.x.Sparsity())
		fsens[d] = []MX{must(Sum(dx))}
	}
	return fsens, nil
}

func (n *sumNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	asens := make([][]MX, len(aseed))
	for d := range aseed {
		s := zeroSeed(aseed[d][0], sparsity.Scalar())
		// Broadcast the scalar seed over the operand pattern.
		asens[d] = []MX{must(Mul(Ones(n.x.Sparsity()), s))}
	}
	return asens, nil
}

func (n *sumNode) SpFwd(arg, res []BitVec) {
	res[0][0] = arg[0].OrAll()
}

func (n *sumNode) SpAdj(arg, res []BitVec) {
	res[0].OrInto(arg[0])
	res[0].Clear()
}

func (n *sumNode) Work() (ni, nr int) { return 0, 0 }

func (n *sumNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.Add(codegen.OpSum, arg, res)
}

func (n *sumNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &sumNode{}
	copied[n] = c
	c.x = n.x.DeepCopy(copied)
	return c
}

func (n *sumNode) String() string { return "sum(" + n.x.String() + ")" }
