package function_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symflow-ml/symflow/internal/function"
	"github.com/symflow-ml/symflow/internal/graph"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// sinProd builds f(a, b) = (sin(a), a*b): output 0 depends only on a,
// output 1 on both.
func sinProd(t *testing.T) *function.Function {
	t.Helper()
	a := graph.SymDense("a", 1, 1)
	b := graph.SymDense("b", 1, 1)
	p, err := graph.Mul(a, b)
	require.NoError(t, err)
	f, err := function.New("f", []graph.MX{a, b}, []graph.MX{graph.Sin(a), p})
	require.NoError(t, err)
	return f
}

func TestSpForward_DistinguishesInputs(t *testing.T) {
	f := sinProd(t)

	// One distinct bit per input.
	arg := []graph.BitVec{{1}, {2}}
	res := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	f.SpForward(arg, res)

	assert.Equal(t, uint64(1), res[0][0], "sin(a) depends on a only")
	assert.Equal(t, uint64(3), res[1][0], "a*b depends on both inputs")
}

func TestSpForward_ThroughCall(t *testing.T) {
	outer := callWrapped(t, sinProd(t))

	arg := []graph.BitVec{{1}, {2}}
	res := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	outer.SpForward(arg, res)

	assert.Equal(t, uint64(1), res[0][0])
	assert.Equal(t, uint64(3), res[1][0])
}

func TestSpReverse_AccumulatesAndClears(t *testing.T) {
	f := sinProd(t)

	// Distinct bit per output seed; a pre-existing mark on input a must
	// survive the OR-accumulation.
	arg := []graph.BitVec{{4}, {0}}
	res := []graph.BitVec{{1}, {2}}
	f.SpReverse(arg, res)

	assert.Equal(t, uint64(7), arg[0][0], "a feeds both outputs; existing bit kept")
	assert.Equal(t, uint64(2), arg[1][0], "b feeds only a*b")
	assert.Equal(t, uint64(0), res[0][0], "consumed seed vectors are zeroed")
	assert.Equal(t, uint64(0), res[1][0])
}

func TestSpReverse_ThroughCall(t *testing.T) {
	outer := callWrapped(t, sinProd(t))

	arg := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	res := []graph.BitVec{{1}, {2}}
	outer.SpReverse(arg, res)

	assert.Equal(t, uint64(3), arg[0][0])
	assert.Equal(t, uint64(2), arg[1][0])
	assert.Equal(t, uint64(0), res[0][0])
	assert.Equal(t, uint64(0), res[1][0])
}

// TestSpReverse_SiblingOutputsMatchIndividual propagates both output
// seeds in one sweep and checks the result equals the OR of
// propagating each output alone.
func TestSpReverse_SiblingOutputsMatchIndividual(t *testing.T) {
	f := sinProd(t)

	combined := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	f.SpReverse(combined, []graph.BitVec{{1}, {2}})

	only0 := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	f.SpReverse(only0, []graph.BitVec{{1}, {0}})
	only1 := []graph.BitVec{graph.NewBitVec(1), graph.NewBitVec(1)}
	f.SpReverse(only1, []graph.BitVec{{0}, {2}})

	for i := 0; i < 2; i++ {
		assert.Equal(t, only0[i][0]|only1[i][0], combined[i][0], "input %d", i)
	}
}

// TestSp_VectorReduction exercises the scalar collapse of a sum over a
// vector input in both directions.
func TestSp_VectorReduction(t *testing.T) {
	x := graph.SymDense("x", 3, 1)
	s, err := graph.Sum(x)
	require.NoError(t, err)
	g, err := function.New("total", []graph.MX{x}, []graph.MX{s})
	require.NoError(t, err)

	arg := []graph.BitVec{{1, 2, 4}}
	res := []graph.BitVec{graph.NewBitVec(1)}
	g.SpForward(arg, res)
	assert.Equal(t, uint64(7), res[0][0], "sum collapses all nonzero bits")

	arg = []graph.BitVec{graph.NewBitVec(3)}
	res = []graph.BitVec{{8}}
	g.SpReverse(arg, res)
	for k := 0; k < 3; k++ {
		assert.Equal(t, uint64(8), arg[0][k], "seed broadcasts to every operand nonzero")
	}
	assert.Equal(t, uint64(0), res[0][0])
}

// TestSp_ProjectionMasks checks that a projection onto a sparser
// pattern stops bits carried by dropped elements.
func TestSp_ProjectionMasks(t *testing.T) {
	x := graph.SymDense("x", 2, 2)
	d, err := graph.Project(x, sparsity.Diag(2))
	require.NoError(t, err)
	s, err := graph.Sum(d)
	require.NoError(t, err)
	g, err := function.New("trace", []graph.MX{x}, []graph.MX{s})
	require.NoError(t, err)

	// Distinct bits per dense nonzero, column-major: (0,0) (1,0) (0,1) (1,1).
	arg := []graph.BitVec{{1, 2, 4, 8}}
	res := []graph.BitVec{graph.NewBitVec(1)}
	g.SpForward(arg, res)
	assert.Equal(t, uint64(9), res[0][0], "only diagonal entries reach the output")

	arg = []graph.BitVec{graph.NewBitVec(4)}
	res = []graph.BitVec{{1}}
	g.SpReverse(arg, res)
	assert.Equal(t, []uint64{1, 0, 0, 1}, []uint64(arg[0]), "seed flows back only to diagonal entries")
}
