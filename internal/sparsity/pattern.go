// Package sparsity implements the compressed-column sparsity pattern value
// type used throughout the function and linear-solver cores.
//
// A Pattern describes which entries of a matrix may be structurally nonzero.
// It carries no numeric values: the owner stores nonzeros in a flat slice
// laid out in the same column-major nonzero order as the pattern.
//
// Patterns are immutable after construction and are shared by reference
// between derivative buffers and solver instances of matching shape.
package sparsity

import (
	"fmt"
	"sort"
	"strings"
)

// Pattern is an immutable compressed-column (CCS) sparsity pattern.
//
// colind has length ncol+1; colind[c]..colind[c+1] delimits the nonzeros of
// column c inside row. Row indices within a column are strictly increasing.
type Pattern struct {
	nrow   int
	ncol   int
	colind []int
	row    []int
}

// New creates a pattern from raw CCS arrays after validating them.
//
// Validation rules:
//   - nrow, ncol >= 0
//   - len(colind) == ncol+1, colind[0] == 0, offsets monotonically non-decreasing
//   - len(row) == colind[ncol]
//   - row indices within a column strictly increasing and in [0, nrow)
//
// The slices are copied; callers keep ownership of their arguments.
func New(nrow, ncol int, colind, row []int) (*Pattern, error) {
	if nrow < 0 || ncol < 0 {
		return nil, fmt.Errorf("sparsity: negative dimension %dx%d", nrow, ncol)
	}
	if len(colind) != ncol+1 {
		return nil, fmt.Errorf("sparsity: colind length %d, want %d", len(colind), ncol+1)
	}
	if colind[0] != 0 {
		return nil, fmt.Errorf("sparsity: colind[0] = %d, want 0", colind[0])
	}
	for c := 0; c < ncol; c++ {
		if colind[c+1] < colind[c] {
			return nil, fmt.Errorf("sparsity: colind not monotone at column %d", c)
		}
	}
	if len(row) != colind[ncol] {
		return nil, fmt.Errorf("sparsity: row length %d, want %d", len(row), colind[ncol])
	}
	for c := 0; c < ncol; c++ {
		last := -1
		for k := colind[c]; k < colind[c+1]; k++ {
			r := row[k]
			if r < 0 || r >= nrow {
				return nil, fmt.Errorf("sparsity: row index %d out of range in column %d", r, c)
			}
			if r <= last {
				return nil, fmt.Errorf("sparsity: unsorted or duplicate row index %d in column %d", r, c)
			}
			last = r
		}
	}
	return &Pattern{
		nrow:   nrow,
		ncol:   ncol,
		colind: append([]int(nil), colind...),
		row:    append([]int(nil), row...),
	}, nil
}

// Empty returns the nrow x ncol pattern with no nonzeros.
func Empty(nrow, ncol int) *Pattern {
	return &Pattern{nrow: nrow, ncol: ncol, colind: make([]int, ncol+1)}
}

// Dense returns the fully populated nrow x ncol pattern.
func Dense(nrow, ncol int) *Pattern {
	colind := make([]int, ncol+1)
	row := make([]int, nrow*ncol)
	for c := 0; c < ncol; c++ {
		colind[c+1] = (c + 1) * nrow
		for r := 0; r < nrow; r++ {
			row[c*nrow+r] = r
		}
	}
	return &Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}
}

// Diag returns the n x n diagonal pattern.
func Diag(n int) *Pattern {
	colind := make([]int, n+1)
	row := make([]int, n)
	for i := 0; i < n; i++ {
		colind[i+1] = i + 1
		row[i] = i
	}
	return &Pattern{nrow: n, ncol: n, colind: colind, row: row}
}

// FromTriplets builds a pattern from coordinate pairs. Duplicates are
// collapsed; order of the input pairs is irrelevant.
func FromTriplets(nrow, ncol int, rows, cols []int) (*Pattern, error) {
	if len(rows) != len(cols) {
		return nil, fmt.Errorf("sparsity: triplet length mismatch %d vs %d", len(rows), len(cols))
	}
	type rc struct{ r, c int }
	entries := make([]rc, 0, len(rows))
	for k := range rows {
		r, c := rows[k], cols[k]
		if r < 0 || r >= nrow || c < 0 || c >= ncol {
			return nil, fmt.Errorf("sparsity: triplet (%d,%d) out of range for %dx%d", r, c, nrow, ncol)
		}
		entries = append(entries, rc{r, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].c != entries[j].c {
			return entries[i].c < entries[j].c
		}
		return entries[i].r < entries[j].r
	})
	colind := make([]int, ncol+1)
	row := make([]int, 0, len(entries))
	prev := rc{-1, -1}
	for _, e := range entries {
		if e == prev {
			continue
		}
		row = append(row, e.r)
		colind[e.c+1]++
		prev = e
	}
	for c := 0; c < ncol; c++ {
		colind[c+1] += colind[c]
	}
	return &Pattern{nrow: nrow, ncol: ncol, colind: colind, row: row}, nil
}

// Rows returns the number of rows.
func (p *Pattern) Rows() int { return p.nrow }

// Cols returns the number of columns.
func (p *Pattern) Cols() int { return p.ncol }

// NNZ returns the number of structural nonzeros.
func (p *Pattern) NNZ() int { return len(p.row) }

// Colind returns the column offset array. The returned slice is shared;
// callers must not modify it.
func (p *Pattern) Colind() []int { return p.colind }

// Row returns the row index array. The returned slice is shared; callers
// must not modify it.
func (p *Pattern) Row() []int { return p.row }

// Has reports whether (r, c) is a structural nonzero.
func (p *Pattern) Has(r, c int) bool {
	_, ok := p.Index(r, c)
	return ok
}

// Index returns the position of entry (r, c) in the nonzero storage order,
// or false if the entry is structurally zero or out of range.
func (p *Pattern) Index(r, c int) (int, bool) {
	if r < 0 || r >= p.nrow || c < 0 || c >= p.ncol {
		return 0, false
	}
	lo, hi := p.colind[c], p.colind[c+1]
	k := lo + sort.SearchInts(p.row[lo:hi], r)
	if k < hi && p.row[k] == r {
		return k, true
	}
	return 0, false
}

// IsSquare reports whether the pattern is square.
func (p *Pattern) IsSquare() bool { return p.nrow == p.ncol }

// HasEmptyCol reports whether some column has no structural nonzero.
func (p *Pattern) HasEmptyCol() bool {
	for c := 0; c < p.ncol; c++ {
		if p.colind[c] == p.colind[c+1] {
			return true
		}
	}
	return false
}

// HasEmptyRow reports whether some row has no structural nonzero.
func (p *Pattern) HasEmptyRow() bool {
	seen := make([]bool, p.nrow)
	for _, r := range p.row {
		seen[r] = true
	}
	for _, ok := range seen {
		if !ok {
			return true
		}
	}
	return false
}

// Triplets returns the pattern in zero-based coordinate form, column-major.
func (p *Pattern) Triplets() (rows, cols []int) {
	rows = make([]int, 0, p.NNZ())
	cols = make([]int, 0, p.NNZ())
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			rows = append(rows, p.row[k])
			cols = append(cols, c)
		}
	}
	return rows, cols
}

// TripletsOneBased returns the pattern as one-based coordinate triplets, the
// convention expected by Fortran-indexed solver libraries.
func (p *Pattern) TripletsOneBased() (rows, cols []int) {
	rows, cols = p.Triplets()
	for k := range rows {
		rows[k]++
		cols[k]++
	}
	return rows, cols
}

// Transpose returns the pattern of the transposed matrix.
func (p *Pattern) Transpose() *Pattern {
	colind := make([]int, p.nrow+1)
	for _, r := range p.row {
		colind[r+1]++
	}
	for r := 0; r < p.nrow; r++ {
		colind[r+1] += colind[r]
	}
	row := make([]int, len(p.row))
	next := append([]int(nil), colind...)
	for c := 0; c < p.ncol; c++ {
		for k := p.colind[c]; k < p.colind[c+1]; k++ {
			r := p.row[k]
			row[next[r]] = c
			next[r]++
		}
	}
	return &Pattern{nrow: p.ncol, ncol: p.nrow, colind: colind, row: row}
}

// Union returns the structural sum of a and b. Dimensions must match.
func Union(a, b *Pattern) (*Pattern, error) {
	if a.nrow != b.nrow || a.ncol != b.ncol {
		return nil, fmt.Errorf("sparsity: union dimension mismatch %dx%d vs %dx%d",
			a.nrow, a.ncol, b.nrow, b.ncol)
	}
	colind := make([]int, a.ncol+1)
	row := make([]int, 0, a.NNZ()+b.NNZ())
	for c := 0; c < a.ncol; c++ {
		ka, ea := a.colind[c], a.colind[c+1]
		kb, eb := b.colind[c], b.colind[c+1]
		for ka < ea || kb < eb {
			switch {
			case kb == eb || (ka < ea && a.row[ka] < b.row[kb]):
				row = append(row, a.row[ka])
				ka++
			case ka == ea || b.row[kb] < a.row[ka]:
				row = append(row, b.row[kb])
				kb++
			default: // equal
				row = append(row, a.row[ka])
				ka++
				kb++
			}
		}
		colind[c+1] = len(row)
	}
	return &Pattern{nrow: a.nrow, ncol: a.ncol, colind: colind, row: row}, nil
}

// Product returns the pattern of the matrix product a*b: entry (i,j) is a
// structural nonzero if a(i,k) and b(k,j) are both structural nonzeros for
// some k.
func Product(a, b *Pattern) (*Pattern, error) {
	if a.ncol != b.nrow {
		return nil, fmt.Errorf("sparsity: product dimension mismatch %dx%d * %dx%d",
			a.nrow, a.ncol, b.nrow, b.ncol)
	}
	colind := make([]int, b.ncol+1)
	var row []int
	mark := make([]int, a.nrow)
	for i := range mark {
		mark[i] = -1
	}
	for j := 0; j < b.ncol; j++ {
		start := len(row)
		for kb := b.colind[j]; kb < b.colind[j+1]; kb++ {
			k := b.row[kb]
			for ka := a.colind[k]; ka < a.colind[k+1]; ka++ {
				i := a.row[ka]
				if mark[i] != j {
					mark[i] = j
					row = append(row, i)
				}
			}
		}
		sort.Ints(row[start:])
		colind[j+1] = len(row)
	}
	return &Pattern{nrow: a.nrow, ncol: b.ncol, colind: colind, row: row}, nil
}

// Equal reports whether two patterns are bit-identical.
func (p *Pattern) Equal(q *Pattern) bool {
	if p.nrow != q.nrow || p.ncol != q.ncol || len(p.row) != len(q.row) {
		return false
	}
	for c := 0; c <= p.ncol; c++ {
		if p.colind[c] != q.colind[c] {
			return false
		}
	}
	for k := range p.row {
		if p.row[k] != q.row[k] {
			return false
		}
	}
	return true
}

// String renders the pattern dimensions and nonzero count, plus a dot map
// for small patterns.
func (p *Pattern) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%dx%d, %d nnz", p.nrow, p.ncol, p.NNZ())
	if p.nrow <= 16 && p.ncol <= 16 {
		for r := 0; r < p.nrow; r++ {
			sb.WriteByte('\n')
			for c := 0; c < p.ncol; c++ {
				if p.Has(r, c) {
					sb.WriteByte('*')
				} else {
					sb.WriteByte('.')
				}
			}
		}
	}
	return sb.String()
}
