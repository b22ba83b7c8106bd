// Package sparsity describes the nonzero structure of matrix-shaped
// quantities in the expression graph.
//
// A Pattern is stored in compressed column format: for each column c,
// the nonzero rows are Row[Colind[c]:Colind[c+1]], sorted ascending.
// Patterns are immutable after construction; all combining operations
// return new patterns.
package sparsity

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrBadColind = errors.New("column index vector is malformed")
	ErrBadRow    = errors.New("row index out of range or unsorted")
	ErrSizes     = errors.New("pattern dimensions do not match")
)

// Pattern is the nonzero structure of an nrow-by-ncol matrix.
// The zero value is not a valid pattern; use the constructors.
type Pattern struct {
	nrow, ncol int
	colind     []int // length ncol+1, nondecreasing, colind[0] == 0
	row        []int // length colind[ncol], sorted within each column
}

// New creates a pattern from compressed column storage.
// The slices are copied, so the caller may reuse them.
func New(nrow, ncol int, colind, row []int) (*Pattern, error) {
	if nrow < 0 || ncol < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSizes, nrow, ncol)
	}
	if len(colind) != ncol+1 || colind[0] != 0 {
		return nil, fmt.Errorf("%w: len(colind)=%d for %d columns", ErrBadColind, len(colind), ncol)
	}
	if colind[ncol] != len(row) {
		return nil, fmt.Errorf("%w: colind[%d]=%d but %d row entries", ErrBadColind, ncol, colind[ncol], len(row))
	}
	for c := 0; c < ncol; c++ {
		if colind[c+1] < colind[c] {
			return nil, fmt.Errorf("%w: column %d", ErrBadColind, c)
		}
		for k := colind[c]; k < colind[c+1]; k++ {
			if row[k] < 0 || row[k] >= nrow {
				return nil, fmt.Errorf("%w: row %d in column %d", ErrBadRow, row[k], c)
			}
			if k > colind[c] && row[k] <= row[k-1] {
				return nil, fmt.Errorf("%w: column %d not strictly sorted", ErrBadRow, c)
			}
		}
	}
	p := &Pattern{nrow: nrow, ncol: ncol}
	p.colind = append([]int(nil), colind...)
	p.row = append([]int(nil), row...)
	return p, nil
}

// Dense returns the fully dense nrow-by-ncol pattern.
func Dense(nrow, ncol int) *Pattern {
	p := &Pattern{nrow: nrow, ncol: ncol}
	p.colind = make([]int, ncol+1)
	p.row = make([]int, nrow*ncol)
	for c := 0; c < ncol; c++ {
		p.colind[c+1] = (c + 1) * nrow
		for r := 0; r < nrow; r++ {
			p.row[c*nrow+r] = r
		}
	}
	return p
}

// Scalar returns the dense 1x1 pattern.
func Scalar() *Pattern { return Dense(1, 1) }

// Diag returns the diagonal pattern of an n-by-n matrix.
func Diag(n int) *Pattern {
	p := &Pattern{nrow: n, ncol: n}
	p.colind = make([]int, n+1)
	p.row = make([]int, n)
	for i := 0; i < n; i++ {
		p.colind[i+1] = i + 1
		p.row[i] = i
	}
	return p
}

// Empty returns the structurally all-zero nrow-by-ncol pattern.
func Empty(nrow, ncol int) *Pattern {
	return &Pattern{nrow: nrow, ncol: ncol, colind: make([]int, ncol+1)}
}

// Rows returns the number of rows.
func (p *Pattern) Rows() int { return p.nrow }

// Cols returns the number of columns.
func (p *Pattern) Cols() int { return p.ncol }

// Numel returns the total number of elements, zero or not.
func (p *Pattern) Numel() int { return p.nrow * p.ncol }

// NNZ returns the number of structural nonzeros.
func (p *Pattern) NNZ() int { return p.colind[p.ncol] }

// IsDense reports whether every element is structurally nonzero.
func (p *Pattern) IsDense() bool { return p.NNZ() == p.Numel() }

// IsScalar reports whether the pattern is 1x1 with one nonzero.
func (p *Pattern) IsScalar() bool { return p.nrow == 1 && p.ncol == 1 && p.NNZ() == 1 }

// SameShape reports whether q has the same dimensions.
func (p *Pattern) SameShape(q *Pattern) bool { return p.nrow == q.nrow && p.ncol == q.ncol }

// Equal reports structural equality: same dimensions and same nonzeros.
func (p *Pattern) Equal(q *Pattern) bool {
	if p == q {
		return true
	}
	if !p.SameShape(q) || p.NNZ() != q.NNZ() {
		return false
	}
	for i := range p.colind {
		if p.colind[i] != q.colind[i] {
			return false
		}
	}
	for i := range p.row {
		if p.row[i] != q.row[i] {
			return false
		}
	}
	return true
}

// Index returns the nonzero offset of element (r, c), or -1 if the
// element is structurally zero.
func (p *Pattern) Index(r, c int) int {
	if r < 0 || r >= p.nrow || c < 0 || c >= p.ncol {
		return -1
	}
	lo, hi := p.colind[c], p.colind[c+1]
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case p.row[mid] == r:
			return mid
		case p.row[mid] < r:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// Coords returns the (row, column) of nonzero k.
// Out-of-range k is a programmer error.
func (p *Pattern) Coords(k int) (r, c int) {
	if k < 0 || k >= p.NNZ() {
		panic(fmt.Sprintf("sparsity: nonzero index %d out of range [0,%d)", k, p.NNZ()))
	}
	// Linear scan over columns; column count is small relative to nnz
	// in the dense-ish patterns the graph produces.
	for c = 0; c < p.ncol; c++ {
		if k < p.colind[c+1] {
			return p.row[k], c
		}
	}
	panic("sparsity: corrupt colind")
}

// Union returns the pattern with a nonzero wherever p or q has one.
// The shapes must match.
func (p *Pattern) Union(q *Pattern) (*Pattern, error) {
	return p.combine(q, true)
}

// Intersect returns the pattern with a nonzero where both p and q
// have one. The shapes must match.
func (p *Pattern) Intersect(q *Pattern) (*Pattern, error) {
	return p.combine(q, false)
}

func (p *Pattern) combine(q *Pattern, union bool) (*Pattern, error) {
	if !p.SameShape(q) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizes, p.nrow, p.ncol, q.nrow, q.ncol)
	}
	r := &Pattern{nrow: p.nrow, ncol: p.ncol, colind: make([]int, p.ncol+1)}
	for c := 0; c < p.ncol; c++ {
		i, iend := p.colind[c], p.colind[c+1]
		j, jend := q.colind[c], q.colind[c+1]
		for i < iend || j < jend {
			switch {
			case j >= jend || (i < iend && p.row[i] < q.row[j]):
				if union {
					r.row = append(r.row, p.row[i])
				}
				i++
			case i >= iend || q.row[j] < p.row[i]:
				if union {
					r.row = append(r.row, q.row[j])
				}
				j++
			default: // equal rows
				r.row = append(r.row, p.row[i])
				i++
				j++
			}
		}
		r.colind[c+1] = len(r.row)
	}
	return r, nil
}

// String renders the pattern as "nrowxncol,nnz" for diagnostics.
func (p *Pattern) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dx%d", p.nrow, p.ncol)
	if !p.IsDense() {
		fmt.Fprintf(&b, ",%dnz", p.NNZ())
	}
	return b.String()
}
