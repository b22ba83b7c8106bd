// Package graph implements the symbolic expression graph.
//
// Expressions are directed acyclic graphs of operation nodes. An MX is
// an immutable handle to one graph value (one logical output of one
// node). Every node kind answers the same set of execution modes,
// driven by the graph's generic traversal algorithms:
//
//   - EvalD: plain numeric evaluation over nonzero buffers
//   - EvalSX: element-wise evaluation over scalar symbolic expressions
//   - EvalMX: graph-to-graph evaluation used for expression rewriting
//   - Fwd/Adj: forward and reverse directional-derivative propagation
//   - SpFwd/SpAdj: conservative boolean dependency propagation
//
// plus workspace reporting, code emission, and map-keyed cloning.
package graph

import (
	"errors"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// Common errors.
var (
	ErrArity         = errors.New("argument count does not match input count")
	ErrUninitialized = errors.New("uninitialized callable")
	ErrShape         = errors.New("incompatible dimensions")
	ErrProject       = errors.New("cannot project between different total sizes")
	ErrUnbound       = errors.New("cannot evaluate unbound symbolic value")
)

// OpCode identifies a node kind.
type OpCode int

// Node kinds.
const (
	OpConst OpCode = iota
	OpSym
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpSin
	OpCos
	OpExp
	OpLog
	OpSqrt
	OpTanh
	OpSum
	OpProject
	OpCall
	OpOutput
)

// Node is the contract every operation node satisfies. Numeric buffers
// hold one float64 per structural nonzero of the corresponding
// sparsity, column-major. iw and w are shared scratch sized per Work;
// nodes may clobber them freely within one entry point.
//
// Fwd and Adj receive the node's argument values (which may be
// substitutes for the original dependencies) and one seed set per
// direction. Adj returns per-direction, per-argument contributions;
// accumulation across downstream consumers is the caller's job.
//
// SpAdj follows the accumulate-then-consume discipline: it ORs into
// the argument vectors and zeroes the output vectors it consumed.
type Node interface {
	// Op returns the node kind.
	Op() OpCode

	// Deps returns the argument graph values, in position order.
	Deps() []MX

	// NumOutputs returns the number of logical outputs.
	NumOutputs() int

	// Sparsity returns the sparsity of output oind.
	// Out-of-range oind is a programmer error.
	Sparsity(oind int) *sparsity.Pattern

	// EvalD evaluates numerically: one input buffer per argument, one
	// result buffer per output.
	EvalD(arg, res [][]float64, iw []int, w []float64) error

	// EvalSX evaluates element-wise over scalar symbolic expressions.
	EvalSX(arg, res [][]*scalar.Expr) error

	// EvalMX rebuilds the node over already-evaluated graph values.
	EvalMX(arg []MX) ([]MX, error)

	// Fwd propagates forward seeds: fseed[d][i] is direction d's seed
	// for argument i (a nil MX means a zero seed). Returns fsens[d][j],
	// direction d's sensitivity of output j.
	Fwd(arg []MX, fseed [][]MX) ([][]MX, error)

	// Adj propagates adjoint seeds: aseed[d][j] is direction d's seed
	// for output j (nil means zero). Returns asens[d][i], direction
	// d's contribution to argument i.
	Adj(arg []MX, aseed [][]MX) ([][]MX, error)

	// SpFwd propagates dependency bits from argument vectors to output
	// vectors. Never under-approximates.
	SpFwd(arg, res []BitVec)

	// SpAdj ORs output dependency bits into the argument vectors, then
	// zeroes the output vectors it consumed.
	SpAdj(arg, res []BitVec)

	// Work returns the scratch requirement (integers, floats) of one
	// EvalD or EvalSX invocation.
	Work() (ni, nr int)

	// Generate emits the node's instruction into g. arg and res are the
	// work-slot indices of the argument and result values.
	Generate(g *codegen.Emitter, arg, res []int)

	// Clone deep-copies the node into a new graph context. copied maps
	// already-visited original nodes to their copies so shared
	// subgraphs are copied at most once.
	Clone(copied map[Node]Node) Node

	// String renders a human-readable fragment for diagnostics.
	String() string
}

// MultiOutput is the contract for nodes with more than one logical
// output: each output is exposed through a separate view node tagged
// with its output index.
type MultiOutput interface {
	Node

	// Output returns the graph value viewing logical output oind.
	Output(oind int) MX
}

// OutputView is the contract satisfied by the view nodes of a
// MultiOutput node.
type OutputView interface {
	Node

	// Parent returns the multi-output node this view belongs to.
	Parent() Node

	// Index returns which logical output this view corresponds to.
	Index() int
}
