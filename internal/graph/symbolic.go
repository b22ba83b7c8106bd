package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// symbolicNode is a free symbolic primitive: an input of a function
// graph. It has no value of its own; evaluation drivers bind it to a
// buffer before traversal.
type symbolicNode struct {
	name string
	sp   *sparsity.Pattern
}

// Sym creates a symbolic primitive with the given name and sparsity.
func Sym(name string, sp *sparsity.Pattern) MX {
	return MX{node: &symbolicNode{name: name, sp: sp}}
}

// SymDense creates a dense nrow-by-ncol symbolic primitive.
func SymDense(name string, nrow, ncol int) MX {
	return Sym(name, sparsity.Dense(nrow, ncol))
}

// IsSymbolic reports whether x is a free symbolic primitive.
func (x MX) IsSymbolic() bool {
	_, ok := x.node.(*symbolicNode)
	return ok
}

// Name returns the symbol name, or the node's display string for
// non-symbolic values.
func (x MX) Name() string {
	if s, ok := x.node.(*symbolicNode); ok {
		return s.name
	}
	return x.String()
}

func (n *symbolicNode) Op() OpCode      { return OpSym }
func (n *symbolicNode) Deps() []MX      { return nil }
func (n *symbolicNode) NumOutputs() int { return 1 }

func (n *symbolicNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.sp
}

func (n *symbolicNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	return fmt.Errorf("%w: %q", ErrUnbound, n.name)
}

func (n *symbolicNode) EvalSX(arg, res [][]*scalar.Expr) error {
	return fmt.Errorf("%w: %q", ErrUnbound, n.name)
}

func (n *symbolicNode) EvalMX(arg []MX) ([]MX, error) {
	return []MX{{node: n}}, nil
}

func (n *symbolicNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	// Seeds for declared inputs are injected by the driver; a free
	// symbol reached here carries no direction.
	fsens := make([][]MX, len(fseed))
	for d := range fsens {
		fsens[d] = []MX{Zero(n.sp)}
	}
	return fsens, nil
}

func (n *symbolicNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	asens := make([][]MX, len(aseed))
	return asens, nil
}

func (n *symbolicNode) SpFwd(arg, res []BitVec) {}
func (n *symbolicNode) SpAdj(arg, res []BitVec) {}

func (n *symbolicNode) Work() (ni, nr int) { return 0, 0 }

func (n *symbolicNode) Generate(g *codegen.Emitter, arg, res []int) {
	// Inputs are materialized by the function-level generator.
}

func (n *symbolicNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &symbolicNode{name: n.name, sp: n.sp}
	copied[n] = c
	return c
}

func (n *symbolicNode) String() string { return n.name }
