package function_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/function"
	"github.com/symflow-ml/symflow/internal/graph"
	"github.com/symflow-ml/symflow/internal/scalar"
)

// sumProd builds f(a, b) = (a+b, a*b) over scalar inputs.
func sumProd(t *testing.T) *function.Function {
	t.Helper()
	a := graph.SymDense("a", 1, 1)
	b := graph.SymDense("b", 1, 1)
	s, err := graph.Add(a, b)
	require.NoError(t, err)
	p, err := graph.Mul(a, b)
	require.NoError(t, err)
	f, err := function.New("f", []graph.MX{a, b}, []graph.MX{s, p})
	require.NoError(t, err)
	return f
}

// callWrapped embeds f in an outer function through a call node, so
// evaluation goes through the embedded-call path.
func callWrapped(t *testing.T, f *function.Function) *function.Function {
	t.Helper()
	in := make([]graph.MX, f.NumIn())
	for i := range in {
		in[i] = f.In(i)
	}
	outs, err := graph.Call(f, in)
	require.NoError(t, err)
	outer, err := function.New("outer", in, outs)
	require.NoError(t, err)
	return outer
}

// evalAt evaluates a function at scalar input values.
func evalAt(t *testing.T, f *function.Function, vals ...float64) []float64 {
	t.Helper()
	require.Equal(t, f.NumIn(), len(vals))
	arg := make([][]float64, len(vals))
	for i, v := range vals {
		arg[i] = []float64{v}
	}
	res := make([][]float64, f.NumOut())
	for j := range res {
		res[j] = make([]float64, f.Out(j).NNZ())
	}
	ni, nr := f.WorkSize()
	require.NoError(t, f.Eval(arg, res, make([]int, ni), make([]float64, nr)))
	out := make([]float64, len(res))
	for j := range res {
		out[j] = res[j][0]
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	a := graph.SymDense("a", 1, 1)
	b := graph.SymDense("b", 1, 1)
	s, err := graph.Add(a, b)
	require.NoError(t, err)

	// Non-symbolic input.
	_, err = function.New("f", []graph.MX{s}, []graph.MX{s})
	assert.ErrorIs(t, err, function.ErrInput)

	// Repeated input.
	_, err = function.New("f", []graph.MX{a, a}, []graph.MX{s})
	assert.ErrorIs(t, err, function.ErrInput)

	// Output depends on an undeclared symbol.
	_, err = function.New("f", []graph.MX{a}, []graph.MX{s})
	assert.ErrorIs(t, err, function.ErrFreeVar)
}

func TestEval_Direct(t *testing.T) {
	f := sumProd(t)
	out := evalAt(t, f, 2, 3)
	assert.Equal(t, 5.0, out[0])
	assert.Equal(t, 6.0, out[1])
}

func TestEval_ThroughCall(t *testing.T) {
	outer := callWrapped(t, sumProd(t))
	out := evalAt(t, outer, 2, 3)
	assert.Equal(t, 5.0, out[0], "embedded call must match direct evaluation")
	assert.Equal(t, 6.0, out[1])
}

func TestEval_BufferChecks(t *testing.T) {
	f := sumProd(t)
	short := [][]float64{{1}}
	res := [][]float64{{0}, {0}}
	assert.ErrorIs(t, f.Eval(short, res, nil, nil), function.ErrArity)

	wrong := [][]float64{{1, 2}, {3}}
	assert.ErrorIs(t, f.Eval(wrong, res, nil, nil), function.ErrBuffer)
}

func TestEvalScalar_MatchesNumeric(t *testing.T) {
	// g(x) = sin(x)*x + exp(x), through an embedded call.
	x := graph.SymDense("x", 1, 1)
	sx, err := graph.Mul(graph.Sin(x), x)
	require.NoError(t, err)
	gx, err := graph.Add(sx, graph.Exp(x))
	require.NoError(t, err)
	g, err := function.New("g", []graph.MX{x}, []graph.MX{gx})
	require.NoError(t, err)
	outer := callWrapped(t, g)

	arg := [][]*scalar.Expr{{scalar.Sym("x")}}
	res := [][]*scalar.Expr{{nil}}
	require.NoError(t, outer.EvalScalar(arg, res))

	sym, err := res[0][0].Eval(map[string]float64{"x": 0.8})
	require.NoError(t, err)
	num := evalAt(t, outer, 0.8)
	assert.InDelta(t, num[0], sym, 1e-12, "scalar unrolling must agree with numeric evaluation")
}

func TestCallSym_Substitution(t *testing.T) {
	f := sumProd(t)

	// Substitute (u*u, u) for (a, b): outputs become u*u+u and u*u*u.
	u := graph.SymDense("u", 1, 1)
	uu, err := graph.Mul(u, u)
	require.NoError(t, err)
	subs, err := f.CallSym([]graph.MX{uu, u})
	require.NoError(t, err)
	require.Len(t, subs, 2)

	h, err := function.New("h", []graph.MX{u}, subs)
	require.NoError(t, err)
	out := evalAt(t, h, 2)
	assert.Equal(t, 6.0, out[0]) // 4+2
	assert.Equal(t, 8.0, out[1]) // 4*2
}

func TestCallSym_Arity(t *testing.T) {
	f := sumProd(t)
	_, err := f.CallSym([]graph.MX{graph.Scalar(1)})
	assert.ErrorIs(t, err, function.ErrArity)
}

func TestGenerate_EmbeddedCall(t *testing.T) {
	f := sumProd(t)
	outer := callWrapped(t, f)

	g := codegen.NewEmitter(outer.Name())
	outer.Generate(g)

	require.Equal(t, 1, g.NumDeps())
	assert.Equal(t, "f", g.Dep(0).Name())

	var calls, inputs, outputs int
	for _, in := range g.Instrs() {
		switch in.Op {
		case codegen.OpCall:
			calls++
		case codegen.OpInput:
			inputs++
		case codegen.OpOutput:
			outputs++
		}
	}
	assert.Equal(t, 1, calls, "one embedded call, one call instruction")
	assert.Equal(t, 2, inputs)
	assert.Equal(t, 2, outputs)

	listing := g.Render()
	assert.Contains(t, listing, "void outer(")
	assert.Contains(t, listing, "f0(")
}

func TestID_Distinct(t *testing.T) {
	assert.NotEqual(t, sumProd(t).ID(), sumProd(t).ID())
}
