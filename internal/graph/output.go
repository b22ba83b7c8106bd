package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// outputNode is the thin view exposing one logical output of a
// multi-output node as an ordinary graph value. Traversal drivers
// reach the parent through Parent, evaluate it once, and treat the
// views as pass-throughs of the parent's per-output buffers.
type outputNode struct {
	parent Node
	idx    int
	sp     *sparsity.Pattern
}

func newOutput(parent Node, idx int, sp *sparsity.Pattern) *outputNode {
	return &outputNode{parent: parent, idx: idx, sp: sp}
}

func (n *outputNode) Parent() Node { return n.parent }
func (n *outputNode) Index() int   { return n.idx }

func (n *outputNode) Op() OpCode      { return OpOutput }
func (n *outputNode) Deps() []MX      { return nil }
func (n *outputNode) NumOutputs() int { return 1 }

func (n *outputNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.sp
}

func (n *outputNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	copy(res[0], arg[0])
	return nil
}

func (n *outputNode) EvalSX(arg, res [][]*scalar.Expr) error {
	copy(res[0], arg[0])
	return nil
}

func (n *outputNode) EvalMX(arg []MX) ([]MX, error) {
	return []MX{arg[0]}, nil
}

func (n *outputNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	fsens := make([][]MX, len(fseed))
	for d := range fseed {
		fsens[d] = []MX{zeroSeed(fseed[d][0], n.sp)}
	}
	return fsens, nil
}

func (n *outputNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	asens := make([][]MX, len(aseed))
	for d := range aseed {
		asens[d] = []MX{zeroSeed(aseed[d][0], n.sp)}
	}
	return asens, nil
}

func (n *outputNode) SpFwd(arg, res []BitVec) {
	copy(res[0], arg[0])
}

func (n *outputNode) SpAdj(arg, res []BitVec) {
	res[0].OrInto(arg[0])
	res[0].Clear()
}

func (n *outputNode) Work() (ni, nr int) { return 0, 0 }

func (n *outputNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.Add(codegen.OpCopy, arg, res)
}

func (n *outputNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	parent := n.parent.Clone(copied).(MultiOutput)
	clone := parent.Output(n.idx).Node()
	copied[n] = clone
	return clone
}

func (n *outputNode) String() string {
	return fmt.Sprintf("%s{%d}", n.parent, n.idx)
}
