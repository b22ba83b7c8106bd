// Package function implements callable-function handles backed by
// expression graphs.
//
// A Function fixes a set of symbolic inputs and output expressions
// and exposes the callable contract the graph's call nodes consume:
// numeric and symbolic invocation, derivative-function synthesis, and
// dependency-bit propagation. All entry points are synchronous; the
// only mutable state is the derivative cache, which is mutex-guarded
// so concurrent first use from forward and adjoint sweeps is safe.
package function

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/graph"
	"github.com/symflow-ml/symflow/internal/scalar"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// Common errors.
var (
	ErrArity     = errors.New("argument count does not match function arity")
	ErrBuffer    = errors.New("buffer length does not match nonzero count")
	ErrInput     = errors.New("function inputs must be distinct symbolic primitives")
	ErrFreeVar   = errors.New("output depends on an undeclared symbolic primitive")
	ErrDirection = errors.New("directional multiplicity must be positive")
)

// log is the package logger; a no-op unless SetLogger installs one.
var log = zerolog.Nop()

// SetLogger installs a logger for derivative-synthesis and codegen
// diagnostics. Call it before any concurrent use of the package.
func SetLogger(l zerolog.Logger) { log = l }

// Function is a callable-function handle: a fixed mapping from
// symbolic inputs to output expressions. Immutable after New, except
// for the lazily filled derivative cache.
type Function struct {
	name string
	id   uuid.UUID
	in   []graph.MX
	out  []graph.MX

	order []graph.Node // topological, dependencies first
	ni    int          // integer scratch requirement
	nr    int          // float scratch requirement

	mu       sync.Mutex
	fwdCache map[int]*Function
	adjCache map[int]*Function
}

// Function satisfies the callable contract consumed by call nodes.
var _ graph.Callable = (*Function)(nil)

// New creates a function mapping the symbolic primitives in to the
// expressions out. Every input must be a distinct symbolic primitive,
// and the outputs may depend on no symbolic primitive outside in.
func New(name string, in, out []graph.MX) (*Function, error) {
	if name == "" {
		name = "f"
	}
	declared := make(map[graph.Node]bool, len(in))
	for i, x := range in {
		if x.IsNil() || !x.IsSymbolic() {
			return nil, fmt.Errorf("%w: input %d", ErrInput, i)
		}
		if declared[x.Node()] {
			return nil, fmt.Errorf("%w: input %d repeats %q", ErrInput, i, x.Name())
		}
		declared[x.Node()] = true
	}
	for j, y := range out {
		if y.IsNil() {
			return nil, fmt.Errorf("function %q: output %d is nil", name, j)
		}
	}

	f := &Function{
		name:     name,
		id:       uuid.New(),
		in:       append([]graph.MX(nil), in...),
		out:      append([]graph.MX(nil), out...),
		fwdCache: make(map[int]*Function),
		adjCache: make(map[int]*Function),
	}
	f.order = topoOrder(f.out)

	for _, n := range f.order {
		if graph.Wrap(n).IsSymbolic() && !declared[n] {
			return nil, fmt.Errorf("function %q: %w: %q", name, ErrFreeVar, graph.Wrap(n).Name())
		}
		ni, nr := n.Work()
		if ni > f.ni {
			f.ni = ni
		}
		if nr > f.nr {
			f.nr = nr
		}
	}
	return f, nil
}

// topoOrder lists every node reachable from out, dependencies before
// uses. Output views follow their multi-output parent.
func topoOrder(out []graph.MX) []graph.Node {
	var order []graph.Node
	seen := make(map[graph.Node]bool)
	var visit func(n graph.Node)
	visit = func(n graph.Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if ov, ok := n.(graph.OutputView); ok {
			visit(ov.Parent())
		} else {
			for _, d := range n.Deps() {
				visit(d.Node())
			}
		}
		order = append(order, n)
	}
	for _, o := range out {
		visit(o.Node())
	}
	return order
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// ID returns the handle's unique identity.
func (f *Function) ID() uuid.UUID { return f.id }

// NumIn returns the number of inputs.
func (f *Function) NumIn() int { return len(f.in) }

// NumOut returns the number of outputs.
func (f *Function) NumOut() int { return len(f.out) }

// In returns input i.
func (f *Function) In(i int) graph.MX { return f.in[i] }

// Out returns output j.
func (f *Function) Out(j int) graph.MX { return f.out[j] }

// SparsityIn returns the declared sparsity of input i.
func (f *Function) SparsityIn(i int) *sparsity.Pattern { return f.in[i].Sparsity() }

// SparsityOut returns the declared sparsity of output j.
func (f *Function) SparsityOut(j int) *sparsity.Pattern { return f.out[j].Sparsity() }

// WorkSize returns the scratch requirement of one Eval invocation.
func (f *Function) WorkSize() (ni, nr int) { return f.ni, f.nr }

// NumNodes returns the number of nodes in the function graph.
func (f *Function) NumNodes() int { return len(f.order) }

func (f *Function) checkBuffers(arg, nres int) error {
	if arg != len(f.in) || nres != len(f.out) {
		return fmt.Errorf("%w: %q takes %d inputs and %d outputs, got %d and %d",
			ErrArity, f.name, len(f.in), len(f.out), arg, nres)
	}
	return nil
}

// buffers tracks one value buffer per single-valued node during a
// traversal.
type buffers[T any] map[graph.Node][]T

func (b buffers[T]) get(n graph.Node) []T {
	if v, ok := b[n]; ok {
		return v
	}
	v := make([]T, n.Sparsity(0).NNZ())
	b[n] = v
	return v
}

// gather collects the node's argument and result buffers. A
// multi-output node gets one result buffer per logical output, bound
// to its view nodes so the views read their parent's results.
func gather[T any](b buffers[T], n graph.Node) (arg, res [][]T) {
	for _, d := range n.Deps() {
		arg = append(arg, b.get(d.Node()))
	}
	if mo, ok := n.(graph.MultiOutput); ok {
		for j := 0; j < n.NumOutputs(); j++ {
			res = append(res, b.get(mo.Output(j).Node()))
		}
	} else {
		res = append(res, b.get(n))
	}
	return arg, res
}

// Eval evaluates the function numerically: one buffer per input and
// output, sized to the port's nonzero count. iw and w are scratch;
// they are grown if smaller than WorkSize. Failures from embedded
// callables propagate unchanged.
func (f *Function) Eval(arg, res [][]float64, iw []int, w []float64) error {
	if err := f.checkBuffers(len(arg), len(res)); err != nil {
		return err
	}
	for i, a := range arg {
		if len(a) != f.in[i].NNZ() {
			return fmt.Errorf("%w: input %d has %d values, want %d", ErrBuffer, i, len(a), f.in[i].NNZ())
		}
	}
	for j, r := range res {
		if len(r) != f.out[j].NNZ() {
			return fmt.Errorf("%w: output %d has %d values, want %d", ErrBuffer, j, len(r), f.out[j].NNZ())
		}
	}
	if len(iw) < f.ni {
		iw = make([]int, f.ni)
	}
	if len(w) < f.nr {
		w = make([]float64, f.nr)
	}

	buf := make(buffers[float64], len(f.order))
	for i, x := range f.in {
		buf[x.Node()] = arg[i]
	}
	for _, n := range f.order {
		if _, bound := buf[n]; bound && n.Op() == graph.OpSym {
			continue
		}
		if _, ok := n.(graph.OutputView); ok {
			continue // filled by its parent
		}
		a, r := gather(buf, n)
		if err := n.EvalD(a, r, iw, w); err != nil {
			return fmt.Errorf("function %q: %w", f.name, err)
		}
	}
	for j, y := range f.out {
		copy(res[j], buf.get(y.Node()))
	}
	return nil
}

// EvalScalar evaluates the function element-wise over scalar symbolic
// expressions, unrolling embedded calls into explicit scalar
// subexpressions.
func (f *Function) EvalScalar(arg, res [][]*scalar.Expr) error {
	if err := f.checkBuffers(len(arg), len(res)); err != nil {
		return err
	}
	buf := make(buffers[*scalar.Expr], len(f.order))
	for i, x := range f.in {
		if len(arg[i]) != f.in[i].NNZ() {
			return fmt.Errorf("%w: input %d has %d expressions, want %d", ErrBuffer, i, len(arg[i]), f.in[i].NNZ())
		}
		buf[x.Node()] = arg[i]
	}
	for _, n := range f.order {
		if _, bound := buf[n]; bound && n.Op() == graph.OpSym {
			continue
		}
		if _, ok := n.(graph.OutputView); ok {
			continue
		}
		a, r := gather(buf, n)
		if err := n.EvalSX(a, r); err != nil {
			return fmt.Errorf("function %q: %w", f.name, err)
		}
	}
	for j, y := range f.out {
		copy(res[j], buf.get(y.Node()))
	}
	return nil
}

// CallSym splices the function body into the caller's graph with args
// substituted for the declared inputs, returning one rewritten output
// value per function output. Used when substituting alternate
// argument subgraphs into an already-built expression.
func (f *Function) CallSym(args []graph.MX) ([]graph.MX, error) {
	if len(args) != len(f.in) {
		return nil, fmt.Errorf("%w: %q takes %d arguments, got %d", ErrArity, f.name, len(f.in), len(args))
	}
	val := make(map[graph.Node]graph.MX, len(f.order))
	for i, x := range f.in {
		a, err := graph.ProjectArg(args[i], f.SparsityIn(i), i)
		if err != nil {
			return nil, fmt.Errorf("call to %q: %w", f.name, err)
		}
		val[x.Node()] = a
	}
	for _, n := range f.order {
		if _, bound := val[n]; bound {
			continue
		}
		if _, ok := n.(graph.OutputView); ok {
			continue // bound when the parent was rewritten
		}
		sub := make([]graph.MX, 0, len(n.Deps()))
		for _, d := range n.Deps() {
			sub = append(sub, val[d.Node()])
		}
		outs, err := n.EvalMX(sub)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", f.name, err)
		}
		if mo, ok := n.(graph.MultiOutput); ok {
			for j := 0; j < n.NumOutputs(); j++ {
				val[mo.Output(j).Node()] = outs[j]
			}
		} else {
			val[n] = outs[0]
		}
	}
	res := make([]graph.MX, len(f.out))
	for j, y := range f.out {
		res[j] = val[y.Node()]
	}
	return res, nil
}

// Generate emits the whole function body into g: inputs are
// materialized into work slots, every node emits its instruction, and
// outputs are written back. Embedded calls register their callables
// as dependencies of the generated code.
func (f *Function) Generate(g *codegen.Emitter) {
	slot := make(map[graph.Node]int, len(f.order))
	for i, x := range f.in {
		s := g.Slot()
		slot[x.Node()] = s
		g.Add(codegen.OpInput, []int{i}, []int{s})
	}
	for _, n := range f.order {
		if _, ok := slot[n]; ok {
			continue
		}
		if _, ok := n.(graph.OutputView); ok {
			continue // slot assigned by its parent
		}
		var arg, res []int
		for _, d := range n.Deps() {
			arg = append(arg, slot[d.Node()])
		}
		if mo, ok := n.(graph.MultiOutput); ok {
			for j := 0; j < n.NumOutputs(); j++ {
				s := g.Slot()
				slot[mo.Output(j).Node()] = s
				res = append(res, s)
			}
		} else {
			s := g.Slot()
			slot[n] = s
			res = append(res, s)
		}
		n.Generate(g, arg, res)
	}
	for j, y := range f.out {
		g.Add(codegen.OpOutput, []int{slot[y.Node()]}, []int{j})
	}
	log.Debug().Str("function", f.name).Int("slots", g.Slots()).
		Int("instructions", g.NumInstrs()).Msg("generated code")
}
