// Copyright 2026 Symflow Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package symflow_test

import (
	"testing"

	symflow "github.com/symflow-ml/symflow"
)

// TestPublicAPI builds, embeds, evaluates, and differentiates a small
// model entirely through the re-exported surface.
func TestPublicAPI(t *testing.T) {
	a := symflow.SymScalar("a")
	b := symflow.SymScalar("b")
	sum, err := symflow.Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	prod, err := symflow.Mul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	f, err := symflow.NewFunction("f", []symflow.MX{a, b}, []symflow.MX{sum, prod})
	if err != nil {
		t.Fatal(err)
	}

	outs, err := symflow.Call(f, []symflow.MX{a, b})
	if err != nil {
		t.Fatal(err)
	}
	outer, err := symflow.NewFunction("outer", []symflow.MX{a, b}, outs)
	if err != nil {
		t.Fatal(err)
	}

	res := [][]float64{{0}, {0}}
	if err := outer.Eval([][]float64{{2}, {3}}, res, nil, nil); err != nil {
		t.Fatal(err)
	}
	if res[0][0] != 5 || res[1][0] != 6 {
		t.Errorf("f(2,3) = (%g, %g), want (5, 6)", res[0][0], res[1][0])
	}

	rev, err := outer.Reverse(1)
	if err != nil {
		t.Fatal(err)
	}
	sens := [][]float64{{0}, {0}}
	// Seed the product output: sensitivities are (b, a) = (3, 2).
	if err := rev.Eval([][]float64{{2}, {3}, {0}, {1}}, sens, nil, nil); err != nil {
		t.Fatal(err)
	}
	if sens[0][0] != 3 || sens[1][0] != 2 {
		t.Errorf("adjoint = (%g, %g), want (3, 2)", sens[0][0], sens[1][0])
	}
}

// TestEmitterListing renders a generated listing for a call-bearing
// function.
func TestEmitterListing(t *testing.T) {
	x := symflow.SymScalar("x")
	f, err := symflow.NewFunction("inner", []symflow.MX{x}, []symflow.MX{symflow.Tanh(x)})
	if err != nil {
		t.Fatal(err)
	}
	outs, err := symflow.Call(f, []symflow.MX{x})
	if err != nil {
		t.Fatal(err)
	}
	outer, err := symflow.NewFunction("top", []symflow.MX{x}, outs)
	if err != nil {
		t.Fatal(err)
	}

	g := symflow.NewEmitter("top")
	outer.Generate(g)
	if g.NumDeps() != 1 || g.Dep(0).Name() != "inner" {
		t.Fatalf("deps = %d, want the embedded callable registered once", g.NumDeps())
	}
	if g.Render() == "" {
		t.Error("empty listing")
	}
}
