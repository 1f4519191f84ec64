package function

import (
	"fmt"
	"math/bits"

	"github.com/weigaofei/casadi/internal/sparsity"
)

// wordWidth is the direction-batch width of boolean propagation: one machine
// word of bits is one batch of seed directions processed together.
const wordWidth = 64

// spEvaluator is the boolean propagation surface a function kind provides:
// one batched pass pushing dependency bits from the seed side to the other,
// in the same traversal order as the numeric derivative sweeps.
type spEvaluator interface {
	spEvaluate(forward bool) error
}

// spInit resets the boolean seed/sensitivity words, allocating them on
// first use. One uint64 per scalar of every slot.
func (b *Base) spInit() {
	if b.spIn == nil {
		b.spIn = make([][]uint64, len(b.in))
		for i, buf := range b.in {
			b.spIn[i] = make([]uint64, len(buf.Value))
		}
		b.spOut = make([][]uint64, len(b.out))
		for i, buf := range b.out {
			b.spOut[i] = make([]uint64, len(buf.Value))
		}
	}
	for _, words := range b.spIn {
		for i := range words {
			words[i] = 0
		}
	}
	for _, words := range b.spOut {
		for i := range words {
			words[i] = 0
		}
	}
}

// jacobianSparsity discovers (and caches) the structural sparsity of
// d out[oind] / d in[iind] by batched boolean propagation. The propagation
// direction is chosen by seed count: forward needs ceil(n/64) passes,
// adjoint ceil(m/64); the cheaper side wins.
func (b *Base) jacobianSparsity(prop spEvaluator, oind, iind int, compact bool) (*sparsity.Pattern, error) {
	m, err := b.OutputSize(oind)
	if err != nil {
		return nil, err
	}
	n, err := b.InputSize(iind)
	if err != nil {
		return nil, err
	}

	key := spKey{oind: oind, iind: iind, compact: compact}
	if p, ok := b.spCache[key]; ok {
		return p, nil
	}

	var rows, cols []int
	if n <= m {
		rows, cols, err = b.spSweepForward(prop, oind, iind, n)
	} else {
		rows, cols, err = b.spSweepAdjoint(prop, oind, iind, m)
	}
	if err != nil {
		return nil, err
	}

	p, err := sparsity.FromTriplets(m, n, rows, cols)
	if err != nil {
		return nil, fmt.Errorf("jacobian sparsity for (output %d, input %d): %w", oind, iind, err)
	}
	if compact {
		p = compactPattern(p)
	}
	b.spCache[key] = p
	return p, nil
}

// spSweepForward seeds batches of input bits and collects output
// dependencies: pass k covers input elements [64k, 64k+63].
func (b *Base) spSweepForward(prop spEvaluator, oind, iind, n int) (rows, cols []int, err error) {
	for base := 0; base < n; base += wordWidth {
		b.spInit()
		for bit := 0; bit < wordWidth && base+bit < n; bit++ {
			b.spIn[iind][base+bit] = 1 << bit
		}
		if err := prop.spEvaluate(true); err != nil {
			return nil, nil, err
		}
		for outElem, word := range b.spOut[oind] {
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				word &= word - 1
				rows = append(rows, outElem)
				cols = append(cols, base+bit)
			}
		}
	}
	return rows, cols, nil
}

// spSweepAdjoint seeds batches of output bits and collects input
// dependencies.
func (b *Base) spSweepAdjoint(prop spEvaluator, oind, iind, m int) (rows, cols []int, err error) {
	for base := 0; base < m; base += wordWidth {
		b.spInit()
		for bit := 0; bit < wordWidth && base+bit < m; bit++ {
			b.spOut[oind][base+bit] = 1 << bit
		}
		if err := prop.spEvaluate(false); err != nil {
			return nil, nil, err
		}
		for inElem, word := range b.spIn[iind] {
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				word &= word - 1
				rows = append(rows, base+bit)
				cols = append(cols, inElem)
			}
		}
	}
	return rows, cols, nil
}

// compactPattern removes structurally empty rows and columns, renumbering
// the survivors.
func compactPattern(p *sparsity.Pattern) *sparsity.Pattern {
	rows, cols := p.Triplets()
	rowUsed := make([]bool, p.Rows())
	colUsed := make([]bool, p.Cols())
	for k := range rows {
		rowUsed[rows[k]] = true
		colUsed[cols[k]] = true
	}
	rowMap := make([]int, p.Rows())
	nrow := 0
	for r, used := range rowUsed {
		if used {
			rowMap[r] = nrow
			nrow++
		}
	}
	colMap := make([]int, p.Cols())
	ncol := 0
	for c, used := range colUsed {
		if used {
			colMap[c] = ncol
			ncol++
		}
	}
	for k := range rows {
		rows[k] = rowMap[rows[k]]
		cols[k] = colMap[cols[k]]
	}
	// Triplets coming from a valid pattern cannot fail to rebuild.
	q, err := sparsity.FromTriplets(nrow, ncol, rows, cols)
	if err != nil {
		panic(err)
	}
	return q
}
