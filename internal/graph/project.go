package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// projectNode reinterprets a value under a different sparsity pattern
// of the same total size. Elements present in both patterns are
// copied by column-major element position; elements only in the
// target pattern become structural zeros; elements only in the source
// are dropped.
type projectNode struct {
	x  MX
	sp *sparsity.Pattern
	// nz[k] is the source nonzero feeding target nonzero k, or -1.
	// Chained projections compose their maps, so nz is not always the
	// canonical element-position map between x's pattern and sp: a
	// lossy round trip keeps the entries its narrowest pattern dropped
	// mapped to -1.
	nz []int
}

// Project returns x reinterpreted under sp. If x already has sp the
// value is returned unchanged, with no graph growth. Patterns with
// different total sizes cannot be projected.
func Project(x MX, sp *sparsity.Pattern) (MX, error) {
	if x.IsNil() {
		return MX{}, ErrShape
	}
	src := x.Sparsity()
	if src.Equal(sp) {
		return x, nil
	}
	if src.Numel() != sp.Numel() {
		return MX{}, fmt.Errorf("%w: %s vs %s", ErrProject, src, sp)
	}
	return projectVia(x, sp, projectMap(src, sp)), nil
}

// projectMap maps each nonzero of dst to the src nonzero at the same
// column-major element position, or -1 where src has none.
func projectMap(src, dst *sparsity.Pattern) []int {
	nz := make([]int, dst.NNZ())
	for k := range nz {
		r, c := dst.Coords(k)
		lin := c*dst.Rows() + r
		nz[k] = src.Index(lin%src.Rows(), lin/src.Rows())
	}
	return nz
}

// projectVia builds a projection of x applying the explicit map nz
// (indexed by target nonzero, over x's nonzeros). Projecting a
// projection collapses to one node over the original source by
// composing the two maps; a composition that turns out to be the
// identity returns the source itself.
func projectVia(x MX, sp *sparsity.Pattern, nz []int) MX {
	if p, ok := x.node.(*projectNode); ok {
		cz := make([]int, len(nz))
		for k, mid := range nz {
			if mid >= 0 {
				cz[k] = p.nz[mid]
			} else {
				cz[k] = -1
			}
		}
		x, nz = p.x, cz
	}
	if sp.Equal(x.Sparsity()) && identityMap(nz) {
		return x
	}
	return MX{node: &projectNode{x: x, sp: sp, nz: nz}}
}

func identityMap(nz []int) bool {
	for k, src := range nz {
		if src != k {
			return false
		}
	}
	return true
}

func (n *projectNode) Op() OpCode      { return OpProject }
func (n *projectNode) Deps() []MX      { return []MX{n.x} }
func (n *projectNode) NumOutputs() int { return 1 }

func (n *projectNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, 1)
	return n.sp
}

func (n *projectNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	a, r := arg[0], res[0]
	for k, src := range n.nz {
		if src >= 0 {
			r[k] = a[src]
		} else {
			r[k] = 0
		}
	}
	return nil
}

func (n *projectNode) EvalSX(arg, res [][]*scalar.Expr) error {
	a, r := arg[0], res[0]
	for k, src := range n.nz {
		if src >= 0 {
			r[k] = a[src]
		} else {
			r[k] = scalar.Zero()
		}
	}
	return nil
}

func (n *projectNode) EvalMX(arg []MX) ([]MX, error) {
	return []MX{projectVia(arg[0], n.sp, n.nz)}, nil
}

func (n *projectNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	fsens := make([][]MX, len(fseed))
	for d := range fseed {
		dx := zeroSeed(fseed[d][0], n.x.Sparsity())
		fsens[d] = []MX{projectVia(dx, n.sp, n.nz)}
	}
	return fsens, nil
}

func (n *projectNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	// The element map is injective, so its adjoint is the transposed
	// map: each consumed source nonzero receives the seed entry that
	// read it, and masked entries receive nothing.
	t := n.adjointMap()
	asens := make([][]MX, len(aseed))
	for d := range aseed {
		s := zeroSeed(aseed[d][0], n.sp)
		asens[d] = []MX{projectVia(s, n.x.Sparsity(), t)}
	}
	return asens, nil
}

func (n *projectNode) adjointMap() []int {
	t := make([]int, n.x.NNZ())
	for i := range t {
		t[i] = -1
	}
	for k, src := range n.nz {
		if src >= 0 {
			t[src] = k
		}
	}
	return t
}

func (n *projectNode) SpFwd(arg, res []BitVec) {
	a, r := arg[0], res[0]
	for k, src := range n.nz {
		if src >= 0 {
			r[k] = a[src]
		} else {
			r[k] = 0
		}
	}
}

func (n *projectNode) SpAdj(arg, res []BitVec) {
	a, r := arg[0], res[0]
	for k, src := range n.nz {
		if src >= 0 {
			a[src] |= r[k]
		}
	}
	r.Clear()
}

func (n *projectNode) Work() (ni, nr int) { return 0, 0 }

func (n *projectNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.Add(codegen.OpProject, arg, res)
}

func (n *projectNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &projectNode{sp: n.sp, nz: n.nz}
	copied[n] = c
	c.x = n.x.DeepCopy(copied)
	return c
}

func (n *projectNode) String() string {
	return fmt.Sprintf("project(%s, %s)", n.x, n.sp)
}
