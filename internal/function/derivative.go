package function

import (
	"fmt"

	"github.com/symflow-ml/symflow/internal/graph"
)

// Forward returns a callable computing nfwd simultaneous forward
// directional derivatives. Its inputs are this function's inputs
// followed by nfwd seed groups (one seed per input); its outputs are
// nfwd sensitivity groups (one per output). Synthesized lazily and
// cached per multiplicity; safe for concurrent first use.
func (f *Function) Forward(nfwd int) (graph.Callable, error) {
	if nfwd <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrDirection, nfwd)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.fwdCache[nfwd]; ok {
		return d, nil
	}
	d, err := f.buildForward(nfwd)
	if err != nil {
		return nil, err
	}
	f.fwdCache[nfwd] = d
	log.Debug().Str("function", f.name).Int("directions", nfwd).
		Int("nodes", d.NumNodes()).Msg("synthesized forward-seed function")
	return d, nil
}

// Reverse returns a callable computing nadj simultaneous adjoint
// directional derivatives. Its inputs are this function's inputs
// followed by nadj seed groups (one seed per output); its outputs are
// nadj sensitivity groups (one per input). Cached per multiplicity.
func (f *Function) Reverse(nadj int) (graph.Callable, error) {
	if nadj <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrDirection, nadj)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.adjCache[nadj]; ok {
		return d, nil
	}
	d, err := f.buildReverse(nadj)
	if err != nil {
		return nil, err
	}
	f.adjCache[nadj] = d
	log.Debug().Str("function", f.name).Int("directions", nadj).
		Int("nodes", d.NumNodes()).Msg("synthesized adjoint-seed function")
	return d, nil
}

// accumulate adds contribution v for direction dir into the running
// sensitivity of node n. Multiple consumers of the same value sum by
// the chain rule.
func accumulate(m map[graph.Node][]graph.MX, n graph.Node, ndir, dir int, v graph.MX) error {
	if v.IsNil() || v.IsZero() {
		return nil
	}
	s := m[n]
	if s == nil {
		s = make([]graph.MX, ndir)
		m[n] = s
	}
	if s[dir].IsNil() {
		s[dir] = v
		return nil
	}
	sum, err := graph.Add(s[dir], v)
	if err != nil {
		return err
	}
	s[dir] = sum
	return nil
}

func allNil(seeds []graph.MX) bool {
	for _, s := range seeds {
		if !s.IsNil() {
			return false
		}
	}
	return true
}

func (f *Function) buildForward(nfwd int) (*Function, error) {
	din := append([]graph.MX(nil), f.in...)
	sens := make(map[graph.Node][]graph.MX, len(f.order))
	for _, x := range f.in {
		sens[x.Node()] = make([]graph.MX, nfwd)
	}
	for dir := 0; dir < nfwd; dir++ {
		for _, x := range f.in {
			s := graph.Sym(fmt.Sprintf("fwd%d_%s", dir, x.Name()), x.Sparsity())
			sens[x.Node()][dir] = s
			din = append(din, s)
		}
	}

	for _, n := range f.order {
		if _, bound := sens[n]; bound {
			continue // declared input
		}
		if _, ok := n.(graph.OutputView); ok {
			continue // filled by its parent
		}
		deps := n.Deps()
		if len(deps) == 0 {
			// Constants carry no direction.
			zero := make([]graph.MX, nfwd)
			sens[n] = zero
			continue
		}
		fseed := make([][]graph.MX, nfwd)
		for dir := 0; dir < nfwd; dir++ {
			fseed[dir] = make([]graph.MX, len(deps))
			for i, d := range deps {
				fseed[dir][i] = sens[d.Node()][dir]
			}
		}
		fsens, err := n.Fwd(deps, fseed)
		if err != nil {
			return nil, fmt.Errorf("forward through %q: %w", n, err)
		}
		if mo, ok := n.(graph.MultiOutput); ok {
			for j := 0; j < n.NumOutputs(); j++ {
				col := make([]graph.MX, nfwd)
				for dir := 0; dir < nfwd; dir++ {
					col[dir] = fsens[dir][j]
				}
				sens[mo.Output(j).Node()] = col
			}
		} else {
			col := make([]graph.MX, nfwd)
			for dir := 0; dir < nfwd; dir++ {
				col[dir] = fsens[dir][0]
			}
			sens[n] = col
		}
	}

	dout := make([]graph.MX, 0, nfwd*len(f.out))
	for dir := 0; dir < nfwd; dir++ {
		for _, y := range f.out {
			s := sens[y.Node()][dir]
			if s.IsNil() {
				s = graph.Zero(y.Sparsity())
			}
			dout = append(dout, s)
		}
	}
	return New(fmt.Sprintf("fwd%d_%s", nfwd, f.name), din, dout)
}

func (f *Function) buildReverse(nadj int) (*Function, error) {
	din := append([]graph.MX(nil), f.in...)
	adj := make(map[graph.Node][]graph.MX, len(f.order))
	for dir := 0; dir < nadj; dir++ {
		for j, y := range f.out {
			s := graph.Sym(fmt.Sprintf("adj%d_%s_o%d", dir, f.name, j), y.Sparsity())
			din = append(din, s)
			// The same value may appear as several outputs; their
			// seeds sum.
			if err := accumulate(adj, y.Node(), nadj, dir, s); err != nil {
				return nil, err
			}
		}
	}

	for i := len(f.order) - 1; i >= 0; i-- {
		n := f.order[i]
		if _, ok := n.(graph.OutputView); ok {
			continue // consumed at the parent
		}
		deps := n.Deps()
		if len(deps) == 0 {
			continue
		}
		aseed := make([][]graph.MX, nadj)
		any := false
		if mo, ok := n.(graph.MultiOutput); ok {
			for dir := 0; dir < nadj; dir++ {
				aseed[dir] = make([]graph.MX, n.NumOutputs())
				for j := 0; j < n.NumOutputs(); j++ {
					if col := adj[mo.Output(j).Node()]; col != nil {
						aseed[dir][j] = col[dir]
					}
				}
				if !allNil(aseed[dir]) {
					any = true
				}
			}
		} else {
			col := adj[n]
			for dir := 0; dir < nadj; dir++ {
				var s graph.MX
				if col != nil {
					s = col[dir]
				}
				aseed[dir] = []graph.MX{s}
				if !s.IsNil() {
					any = true
				}
			}
		}
		if !any {
			continue // no sensitivity flows through this node
		}
		asens, err := n.Adj(deps, aseed)
		if err != nil {
			return nil, fmt.Errorf("reverse through %q: %w", n, err)
		}
		for dir := 0; dir < nadj; dir++ {
			for k, d := range deps {
				if k >= len(asens[dir]) {
					break
				}
				if err := accumulate(adj, d.Node(), nadj, dir, asens[dir][k]); err != nil {
					return nil, err
				}
			}
		}
	}

	dout := make([]graph.MX, 0, nadj*len(f.in))
	for dir := 0; dir < nadj; dir++ {
		for _, x := range f.in {
			var s graph.MX
			if col := adj[x.Node()]; col != nil {
				s = col[dir]
			}
			if s.IsNil() {
				s = graph.Zero(x.Sparsity())
			}
			dout = append(dout, s)
		}
	}
	return New(fmt.Sprintf("adj%d_%s", nadj, f.name), din, dout)
}
