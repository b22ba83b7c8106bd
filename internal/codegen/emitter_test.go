package codegen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symflow-ml/symflow/internal/codegen"
)

type fakeDep struct {
	name     string
	nin, out int
}

func (d *fakeDep) Name() string { return d.name }
func (d *fakeDep) NumIn() int   { return d.nin }
func (d *fakeDep) NumOut() int  { return d.out }

func TestEmitter_Slots(t *testing.T) {
	g := codegen.NewEmitter("f")
	assert.Equal(t, 0, g.Slot())
	assert.Equal(t, 1, g.Slot())
	assert.Equal(t, 2, g.Slots())
}

func TestEmitter_DedupesDependencies(t *testing.T) {
	g := codegen.NewEmitter("f")
	f1 := &fakeDep{name: "inner", nin: 2, out: 1}
	f2 := &fakeDep{name: "other", nin: 1, out: 1}

	g.AddCall(f1, []int{0, 1}, []int{2})
	g.AddCall(f2, []int{2}, []int{3})
	g.AddCall(f1, []int{3, 1}, []int{4})

	require.Equal(t, 2, g.NumDeps())
	assert.Equal(t, f1, g.Dep(0))
	assert.Equal(t, f2, g.Dep(1))

	instrs := g.Instrs()
	require.Len(t, instrs, 3)
	assert.Equal(t, 0, instrs[0].Fcn)
	assert.Equal(t, 1, instrs[1].Fcn)
	assert.Equal(t, 0, instrs[2].Fcn, "repeated call reuses the first dependency index")
}

func TestEmitter_DepOutOfRange(t *testing.T) {
	g := codegen.NewEmitter("f")
	assert.Panics(t, func() { g.Dep(0) })
}

func TestEmitter_Render(t *testing.T) {
	g := codegen.NewEmitter("f")
	in0, in1 := g.Slot(), g.Slot()
	g.Add(codegen.OpInput, []int{0}, []int{in0})
	g.Add(codegen.OpInput, []int{1}, []int{in1})
	sum := g.Slot()
	g.Add(codegen.OpAdd, []int{in0, in1}, []int{sum})
	c := g.Slot()
	g.AddConst(c, []float64{2.5})
	prod := g.Slot()
	g.AddCall(&fakeDep{name: "inner", nin: 2, out: 1}, []int{sum, c}, []int{prod})
	g.Add(codegen.OpOutput, []int{prod}, []int{0})

	out := g.Render()
	assert.True(t, strings.HasPrefix(out, "/* f0: inner (2 in, 1 out) */"), "dependency header missing:\n%s", out)
	assert.Contains(t, out, "void f(")
	assert.Contains(t, out, "w2 = w0 + w1;")
	assert.Contains(t, out, "w3 = 2.5;")
	assert.Contains(t, out, "f0(w2, w3 -> w4);")
	assert.Contains(t, out, "res[0] = w4;")
}
