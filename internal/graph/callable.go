package graph

import (
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// Callable is the contract of a callable-function handle: an opaque
// unit of computation with fixed input/output arity and per-port
// sparsity, invocable numerically or symbolically, and capable of
// synthesizing its own derivative functions.
//
// Handle identity matters: two Callable values may wrap the same
// underlying function, and graph cloning preserves sharing rather
// than duplicating handles.
//
// A Callable also satisfies codegen.Dependency, so call nodes can
// register it with an emitter directly.
type Callable interface {
	// Name returns the function's display name.
	Name() string

	// NumIn returns the number of inputs.
	NumIn() int

	// NumOut returns the number of outputs.
	NumOut() int

	// SparsityIn returns the declared sparsity of input i.
	SparsityIn(i int) *sparsity.Pattern

	// SparsityOut returns the declared sparsity of output i.
	SparsityOut(i int) *sparsity.Pattern

	// Eval evaluates numerically over nonzero buffers. iw and w are
	// scratch sized at least per WorkSize. Failures propagate to the
	// caller unchanged; there is no retry.
	Eval(arg, res [][]float64, iw []int, w []float64) error

	// EvalScalar evaluates element-wise over scalar symbolic
	// expressions.
	EvalScalar(arg, res [][]*scalar.Expr) error

	// Forward synthesizes a forward-seed function with nfwd
	// simultaneous directions. Its inputs are the original inputs
	// followed by nfwd seed groups (one seed per input); its outputs
	// are nfwd sensitivity groups (one per output). Implementations
	// cache per multiplicity.
	Forward(nfwd int) (Callable, error)

	// Reverse synthesizes an adjoint-seed function with nadj
	// simultaneous directions. Its inputs are the original inputs
	// followed by nadj seed groups (one seed per output); its outputs
	// are nadj sensitivity groups (one per input).
	Reverse(nadj int) (Callable, error)

	// SpForward propagates dependency bits from inputs to outputs,
	// conservatively.
	SpForward(arg, res []BitVec)

	// SpReverse ORs output dependency bits into the input vectors,
	// then zeroes the output vectors it consumed.
	SpReverse(arg, res []BitVec)

	// WorkSize returns the scratch requirement (integers, floats) of
	// one Eval invocation.
	WorkSize() (ni, nr int)
}
