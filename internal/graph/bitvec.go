package graph

// BitVec carries dependency bits for sparsity propagation: one word
// per structural nonzero, each bit marking one seed class. Propagation
// is conservative; a set bit means "may depend", a clear bit means
// "provably does not depend".
type BitVec []uint64

// NewBitVec returns an all-zero vector for nnz nonzeros.
func NewBitVec(nnz int) BitVec { return make(BitVec, nnz) }

// Clear zeroes all words.
func (v BitVec) Clear() {
	for i := range v {
		v[i] = 0
	}
}

// OrAll returns the OR of all words.
func (v BitVec) OrAll() uint64 {
	var r uint64
	for _, w := range v {
		r |= w
	}
	return r
}

// OrInto ORs v into dst word-wise. A single-word side (a scalar
// value) collapses or broadcasts as needed.
func (v BitVec) OrInto(dst BitVec) {
	switch {
	case len(dst) == 1:
		dst[0] |= v.OrAll()
	case len(v) == 1:
		for i := range dst {
			dst[i] |= v[0]
		}
	default:
		for i := range v {
			dst[i] |= v[i]
		}
	}
}

// Any reports whether any bit is set.
func (v BitVec) Any() bool { return v.OrAll() != 0 }
