package graph

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// GenericCall is the capability contract for nodes that wrap one or
// more callable-function handles.
type GenericCall interface {
	MultiOutput

	// NumFunctions returns the number of callables the node owns.
	NumFunctions() int

	// Function returns callable i. Out-of-range i is a programmer
	// error.
	Function(i int) Callable
}

// ProjectArg adapts an argument to the sparsity a callable expects at
// input position i. A value already at the target sparsity is
// returned unchanged; otherwise a projection node is inserted.
// Mismatched total sizes are a construction-time error.
func ProjectArg(x MX, sp *sparsity.Pattern, i int) (MX, error) {
	y, err := Project(x, sp)
	if err != nil {
		return MX{}, fmt.Errorf("argument %d: %w", i, err)
	}
	return y, nil
}

// CallNode embeds one function call in the expression graph. It owns
// exactly one callable handle and a fixed-arity argument list; its
// logical outputs are exposed through output-view values. The node is
// immutable after construction; the derivative functions used by Fwd
// and Adj are synthesized and cached by the callable itself.
type CallNode struct {
	fcn  Callable
	args []MX
	outs []MX
}

// Call creates a function call node and returns one graph value per
// callable output, each carrying the callable's declared output
// sparsity. Arguments are projected to the callable's declared input
// sparsities; a nil callable or a wrong argument count is a
// construction error.
func Call(fcn Callable, args []MX) ([]MX, error) {
	if fcn == nil {
		return nil, ErrUninitialized
	}
	if len(args) != fcn.NumIn() {
		return nil, fmt.Errorf("%w: %q takes %d arguments, got %d",
			ErrArity, fcn.Name(), fcn.NumIn(), len(args))
	}
	proj := make([]MX, len(args))
	for i, a := range args {
		var err error
		if proj[i], err = ProjectArg(a, fcn.SparsityIn(i), i); err != nil {
			return nil, fmt.Errorf("call to %q: %w", fcn.Name(), err)
		}
	}
	n := &CallNode{fcn: fcn, args: proj}
	n.outs = make([]MX, fcn.NumOut())
	for j := range n.outs {
		n.outs[j] = MX{node: newOutput(n, j, fcn.SparsityOut(j))}
	}
	return append([]MX(nil), n.outs...), nil
}

// NumFunctions returns 1.
func (n *CallNode) NumFunctions() int { return 1 }

// Function returns the owned callable.
func (n *CallNode) Function(i int) Callable {
	if i != 0 {
		panic(fmt.Sprintf("graph: function index %d out of range [0,1)", i))
	}
	return n.fcn
}

// Output returns the graph value viewing logical output oind.
func (n *CallNode) Output(oind int) MX {
	checkOutputIndex(oind, len(n.outs))
	return n.outs[oind]
}

func (n *CallNode) Op() OpCode      { return OpCall }
func (n *CallNode) Deps() []MX      { return n.args }
func (n *CallNode) NumOutputs() int { return n.fcn.NumOut() }

func (n *CallNode) Sparsity(oind int) *sparsity.Pattern {
	checkOutputIndex(oind, n.fcn.NumOut())
	return n.fcn.SparsityOut(oind)
}

// EvalD invokes the callable numerically. Failures inside the
// callable propagate unchanged; there is no retry.
func (n *CallNode) EvalD(arg, res [][]float64, iw []int, w []float64) error {
	return n.fcn.Eval(arg, res, iw, w)
}

// EvalSX unrolls the call over scalar symbolic elements.
func (n *CallNode) EvalSX(arg, res [][]*scalar.Expr) error {
	return n.fcn.EvalScalar(arg, res)
}

// EvalMX rebuilds the call over already-evaluated graph values,
// producing fresh output values structurally equivalent to a new
// Call with those arguments.
func (n *CallNode) EvalMX(arg []MX) ([]MX, error) {
	return Call(n.fcn, arg)
}

// Fwd propagates forward seeds through the call. All directions are
// batched into a single invocation of a synthesized forward-seed
// function sized to the seed-set count.
func (n *CallNode) Fwd(arg []MX, fseed [][]MX) ([][]MX, error) {
	nfwd := len(fseed)
	if nfwd == 0 {
		return nil, nil
	}
	d, err := n.fcn.Forward(nfwd)
	if err != nil {
		return nil, fmt.Errorf("forward of %q: %w", n.fcn.Name(), err)
	}
	nin, nout := n.fcn.NumIn(), n.fcn.NumOut()
	callArg := make([]MX, 0, nin*(1+nfwd))
	callArg = append(callArg, arg...)
	for dir := 0; dir < nfwd; dir++ {
		for i := 0; i < nin; i++ {
			callArg = append(callArg, zeroSeed(fseed[dir][i], n.fcn.SparsityIn(i)))
		}
	}
	out, err := Call(d, callArg)
	if err != nil {
		return nil, err
	}
	fsens := make([][]MX, nfwd)
	for dir := 0; dir < nfwd; dir++ {
		fsens[dir] = out[dir*nout : (dir+1)*nout]
	}
	return fsens, nil
}

// Adj propagates adjoint seeds through the call, returning one
// contribution per argument per seed set. Accumulation across
// downstream consumers is the caller's job.
func (n *CallNode) Adj(arg []MX, aseed [][]MX) ([][]MX, error) {
	nadj := len(aseed)
	if nadj == 0 {
		return nil, nil
	}
	d, err := n.fcn.Reverse(nadj)
	if err != nil {
		return nil, fmt.Errorf("reverse of %q: %w", n.fcn.Name(), err)
	}
	nin, nout := n.fcn.NumIn(), n.fcn.NumOut()
	callArg := make([]MX, 0, nin+nout*nadj)
	callArg = append(callArg, arg...)
	for dir := 0; dir < nadj; dir++ {
		for j := 0; j < nout; j++ {
			callArg = append(callArg, zeroSeed(aseed[dir][j], n.fcn.SparsityOut(j)))
		}
	}
	out, err := Call(d, callArg)
	if err != nil {
		return nil, err
	}
	asens := make([][]MX, nadj)
	for dir := 0; dir < nadj; dir++ {
		asens[dir] = out[dir*nin : (dir+1)*nin]
	}
	return asens, nil
}

// SpFwd delegates dependency-bit propagation to the callable.
func (n *CallNode) SpFwd(arg, res []BitVec) {
	n.fcn.SpForward(arg, res)
}

// SpAdj delegates the reverse pass; the callable ORs into the
// argument vectors and zeroes the output vectors it consumed.
func (n *CallNode) SpAdj(arg, res []BitVec) {
	n.fcn.SpReverse(arg, res)
}

// Work reports the callable's scratch requirement.
func (n *CallNode) Work() (ni, nr int) { return n.fcn.WorkSize() }

// Generate emits the call instruction, registering the callable as a
// dependency of the generated code.
func (n *CallNode) Generate(g *codegen.Emitter, arg, res []int) {
	g.AddCall(n.fcn, arg, res)
}

// Clone transcribes the node into a new graph context. The callable
// handle is shared, never duplicated; arguments are copied through
// the visited map so shared subgraphs are copied at most once.
func (n *CallNode) Clone(copied map[Node]Node) Node {
	if c, ok := copied[n]; ok {
		return c
	}
	c := &CallNode{fcn: n.fcn}
	copied[n] = c
	c.args = make([]MX, len(n.args))
	for i, a := range n.args {
		c.args[i] = a.DeepCopy(copied)
	}
	c.outs = make([]MX, len(n.outs))
	for j := range c.outs {
		c.outs[j] = MX{node: newOutput(c, j, n.fcn.SparsityOut(j))}
	}
	return c
}

func (n *CallNode) String() string {
	s := n.fcn.Name() + "("
	for i, a := range n.args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}
