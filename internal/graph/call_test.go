package graph_test

import (
	"errors"
	"testing"

	"github.com/symflow-ml/symflow/internal/function"
	"github.com/symflow-ml/symflow/internal/graph"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// sumProd builds f(a, b) = (a+b, a*b) over dense nrow-by-1 inputs.
func sumProd(t *testing.T, nrow int) *function.Function {
	t.Helper()
	a := graph.SymDense("a", nrow, 1)
	b := graph.SymDense("b", nrow, 1)
	s, err := graph.Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	p, err := graph.Mul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	f, err := function.New("f", []graph.MX{a, b}, []graph.MX{s, p})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// TestCall_OutputViews exposes one view per callable output, all
// sharing the call node as parent.
func TestCall_OutputViews(t *testing.T) {
	f := sumProd(t, 2)
	x := graph.SymDense("x", 2, 1)
	y := graph.SymDense("y", 2, 1)
	outs, err := graph.Call(f, []graph.MX{x, y})
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outs))
	}

	v0, ok := outs[0].Node().(graph.OutputView)
	if !ok {
		t.Fatal("output 0 is not an output view")
	}
	v1 := outs[1].Node().(graph.OutputView)
	if v0.Parent() != v1.Parent() {
		t.Error("sibling outputs do not share a parent")
	}
	if v0.Index() != 0 || v1.Index() != 1 {
		t.Errorf("view indices = %d, %d, want 0, 1", v0.Index(), v1.Index())
	}
	if !outs[0].Sparsity().Equal(f.SparsityOut(0)) {
		t.Error("output sparsity does not match the callable's declaration")
	}

	gc, ok := v0.Parent().(graph.GenericCall)
	if !ok {
		t.Fatal("parent is not a call node")
	}
	if gc.NumFunctions() != 1 || gc.Function(0) != graph.Callable(f) {
		t.Error("call node does not own the callable it was built from")
	}
}

// TestCall_Arity rejects a wrong argument count at construction.
func TestCall_Arity(t *testing.T) {
	f := sumProd(t, 2)
	x := graph.SymDense("x", 2, 1)
	if _, err := graph.Call(f, []graph.MX{x}); !errors.Is(err, graph.ErrArity) {
		t.Errorf("err = %v, want ErrArity", err)
	}
}

// TestCall_NilCallable rejects a nil callable.
func TestCall_NilCallable(t *testing.T) {
	if _, err := graph.Call(nil, nil); !errors.Is(err, graph.ErrUninitialized) {
		t.Errorf("err = %v, want ErrUninitialized", err)
	}
}

// TestCall_ProjectsArguments inserts a projection when an argument's
// pattern differs from the callable's declared input pattern.
func TestCall_ProjectsArguments(t *testing.T) {
	a := graph.Sym("a", sparsity.Diag(2))
	f, err := function.New("g", []graph.MX{a}, []graph.MX{graph.Sin(a)})
	if err != nil {
		t.Fatal(err)
	}

	dense := graph.SymDense("x", 2, 2)
	outs, err := graph.Call(f, []graph.MX{dense})
	if err != nil {
		t.Fatal(err)
	}
	parent := outs[0].Node().(graph.OutputView).Parent()
	if got := parent.Deps()[0].Op(); got != graph.OpProject {
		t.Errorf("argument op = %v, want project", got)
	}

	// A size mismatch cannot be projected.
	bad := graph.SymDense("y", 3, 1)
	if _, err := graph.Call(f, []graph.MX{bad}); err == nil {
		t.Error("size-mismatched argument accepted")
	}
}

// TestCall_DeepCopySharedCallable clones a graph with two distinct
// call nodes to the same callable: both clones must still reference
// the one shared handle.
func TestCall_DeepCopySharedCallable(t *testing.T) {
	f := sumProd(t, 1)
	x := graph.SymDense("x", 1, 1)
	y := graph.SymDense("y", 1, 1)
	first, err := graph.Call(f, []graph.MX{x, y})
	if err != nil {
		t.Fatal(err)
	}
	second, err := graph.Call(f, []graph.MX{first[0], first[1]})
	if err != nil {
		t.Fatal(err)
	}
	top, err := graph.Add(second[0], second[1])
	if err != nil {
		t.Fatal(err)
	}

	cp := top.DeepCopy(nil)
	outer := cp.Node().Deps()[0].Node().(graph.OutputView).Parent()
	inner := outer.Deps()[0].Node().(graph.OutputView).Parent()
	if outer == inner {
		t.Fatal("distinct call nodes collapsed in the copy")
	}
	of := outer.(graph.GenericCall).Function(0)
	if of != inner.(graph.GenericCall).Function(0) || of != graph.Callable(f) {
		t.Error("cloned call nodes do not share the original callable handle")
	}
}

// TestCall_DeepCopy clones the call subgraph once and shares the
// callable handle.
func TestCall_DeepCopy(t *testing.T) {
	f := sumProd(t, 1)
	x := graph.SymDense("x", 1, 1)
	y := graph.SymDense("y", 1, 1)
	outs, err := graph.Call(f, []graph.MX{x, y})
	if err != nil {
		t.Fatal(err)
	}
	top, err := graph.Add(outs[0], outs[1])
	if err != nil {
		t.Fatal(err)
	}

	copied := make(map[graph.Node]graph.Node)
	cp := top.DeepCopy(copied)

	deps := cp.Node().Deps()
	cv0 := deps[0].Node().(graph.OutputView)
	cv1 := deps[1].Node().(graph.OutputView)
	if cv0.Parent() != cv1.Parent() {
		t.Error("copied sibling outputs do not share a parent")
	}
	if cv0.Parent() == outs[0].Node().(graph.OutputView).Parent() {
		t.Error("copy still references the original call node")
	}
	if cv0.Parent().(graph.GenericCall).Function(0) != graph.Callable(f) {
		t.Error("callable handle was not shared across the copy")
	}
}
