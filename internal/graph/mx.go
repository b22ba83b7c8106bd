package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/sparsity"
)

// MX is an immutable handle to one graph value. The zero MX is the
// nil value; IsNil reports it. MX values are comparable: two handles
// are equal when they refer to the same node.
type MX struct {
	node Node
}

// Wrap returns the handle for a single-valued node.
func Wrap(n Node) MX { return MX{node: n} }

// IsNil reports whether the handle refers to no value.
func (x MX) IsNil() bool { return x.node == nil }

// Node returns the underlying node.
func (x MX) Node() Node { return x.node }

// Op returns the node kind.
func (x MX) Op() OpCode { return x.node.Op() }

// Sparsity returns the value's sparsity pattern.
func (x MX) Sparsity() *sparsity.Pattern { return x.node.Sparsity(0) }

// NNZ returns the number of structural nonzeros.
func (x MX) NNZ() int { return x.Sparsity().NNZ() }

// String renders the expression for diagnostics.
func (x MX) String() string {
	if x.node == nil {
		return "<nil>"
	}
	return x.node.String()
}

// IsZero reports whether the value is a structural or numeric zero
// constant.
func (x MX) IsZero() bool {
	c, ok := x.node.(*constNode)
	if !ok {
		return false
	}
	for _, v := range c.val {
		if v != 0 {
			return false
		}
	}
	return true
}

// DeepCopy clones the value's whole subgraph into a new context.
// copied maps already-visited original nodes to their copies, so a
// shared or diamond-shaped subgraph is copied exactly once; pass nil
// to start a fresh copy. Callable handles are shared, never
// duplicated.
func (x MX) DeepCopy(copied map[Node]Node) MX {
	if x.node == nil {
		return MX{}
	}
	if copied == nil {
		copied = make(map[Node]Node)
	}
	return MX{node: x.node.Clone(copied)}
}

// must unwraps builder results inside derivative rules, where the
// operands are compatible by construction.
func must(x MX, err error) MX {
	if err != nil {
		panic(fmt.Sprintf("graph: internal builder failure: %v", err))
	}
	return x
}

// zeroSeed substitutes a zero value of sparsity sp for a nil seed.
func zeroSeed(s MX, sp *sparsity.Pattern) MX {
	if s.IsNil() {
		return Zero(sp)
	}
	return s
}

// adjTo shapes an adjoint contribution to the sparsity of the
// argument it flows into: summing when the argument was broadcast
// from a scalar, projecting when only the pattern differs.
func adjTo(contrib MX, target *sparsity.Pattern) MX {
	if contrib.Sparsity().Equal(target) {
		return contrib
	}
	if target.IsScalar() && !contrib.Sparsity().IsScalar() {
		return must(Sum(contrib))
	}
	return must(Project(contrib, target))
}
