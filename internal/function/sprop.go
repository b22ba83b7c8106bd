package function

import (
	"github.com/symflow-ml/symflow/internal/graph"
)

// SpForward propagates dependency bits from input vectors to output
// vectors: an output bit is set when the corresponding nonzero may
// depend on any input nonzero carrying that bit. The propagation is
// conservative; it never clears a true dependency. Vectors must be
// sized to the port nonzero counts.
func (f *Function) SpForward(arg, res []graph.BitVec) {
	bv := make(map[graph.Node]graph.BitVec, len(f.order))
	for i, x := range f.in {
		bv[x.Node()] = arg[i]
	}
	get := func(n graph.Node) graph.BitVec {
		if v, ok := bv[n]; ok {
			return v
		}
		v := graph.NewBitVec(n.Sparsity(0).NNZ())
		bv[n] = v
		return v
	}
	for _, n := range f.order {
		if _, bound := bv[n]; bound && n.Op() == graph.OpSym {
			continue
		}
		if _, ok := n.(graph.OutputView); ok {
			continue // filled by its parent
		}
		if len(n.Deps()) == 0 {
			continue // constants depend on nothing
		}
		var av, rv []graph.BitVec
		for _, d := range n.Deps() {
			av = append(av, get(d.Node()))
		}
		if mo, ok := n.(graph.MultiOutput); ok {
			for j := 0; j < n.NumOutputs(); j++ {
				rv = append(rv, get(mo.Output(j).Node()))
			}
		} else {
			rv = append(rv, get(n))
		}
		n.SpFwd(av, rv)
	}
	for j, y := range f.out {
		copy(res[j], get(y.Node()))
	}
}

// SpReverse propagates dependency bits from output vectors back to
// input vectors, OR-accumulating into arg (existing marks are never
// erased) and zeroing the res vectors it consumed, so sibling call
// sites sharing an output buffer cannot double count.
func (f *Function) SpReverse(arg, res []graph.BitVec) {
	bv := make(map[graph.Node]graph.BitVec, len(f.order))
	get := func(n graph.Node) graph.BitVec {
		if v, ok := bv[n]; ok {
			return v
		}
		v := graph.NewBitVec(n.Sparsity(0).NNZ())
		bv[n] = v
		return v
	}
	for j, y := range f.out {
		res[j].OrInto(get(y.Node()))
	}
	for i := len(f.order) - 1; i >= 0; i-- {
		n := f.order[i]
		if _, ok := n.(graph.OutputView); ok {
			continue // consumed at the parent
		}
		if len(n.Deps()) == 0 {
			continue
		}
		var av, rv []graph.BitVec
		for _, d := range n.Deps() {
			av = append(av, get(d.Node()))
		}
		if mo, ok := n.(graph.MultiOutput); ok {
			for j := 0; j < n.NumOutputs(); j++ {
				rv = append(rv, get(mo.Output(j).Node()))
			}
		} else {
			rv = append(rv, get(n))
		}
		n.SpAdj(av, rv)
	}
	for i, x := range f.in {
		get(x.Node()).OrInto(arg[i])
	}
	for j := range res {
		res[j].Clear()
	}
}
