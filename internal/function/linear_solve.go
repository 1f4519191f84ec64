package function

import (
	"fmt"

	"github.com/weigaofei/casadi/internal/ioscheme"
	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

var _ Function = (*LinearSolveFunction)(nil)

// LinearSolveFunction is a differentiable function whose evaluation solves
// A x = b through a linear solver backend selected by name from the
// registry.
//
// Inputs: slot 0 "A" holds the nonzeros of A in the pattern's column-major
// order, slot 1 "b" holds nrhs right-hand-side columns contiguously.
// Output: slot 0 "x" holds the solution columns.
//
// Derivatives reuse the factorization bound by the most recent Evaluate:
//
//	forward:  A x_dot = b_dot - A_dot x
//	adjoint:  A^T lam = x_bar; b_bar = lam; A_bar(r,c) = -lam(r) x(c)
//
// The adjoint direction therefore needs a backend with the transpose
// capability.
type LinearSolveFunction struct {
	*Base
	pattern *sparsity.Pattern
	nrhs    int
	backend linsol.Backend
	mem     linsol.Memory

	// Values bound by the factorization of the last Evaluate; nil before
	// the first successful Evaluate.
	aFact []float64

	nFact  int
	nSolve int
	closed bool
}

// NewLinearSolve binds a square pattern and a backend name to a new
// function instance. backendOpts are validated by the backend at creation.
func NewLinearSolve(pattern *sparsity.Pattern, nrhs int, backendName string, backendOpts options.Dict) (*LinearSolveFunction, error) {
	if pattern == nil || !pattern.IsSquare() {
		return nil, fmt.Errorf("%w: linear solve needs a square pattern", ErrConfiguration)
	}
	if nrhs < 1 {
		return nil, fmt.Errorf("%w: nrhs = %d, want >= 1", ErrConfiguration, nrhs)
	}
	plugin, err := linsol.Find(backendName)
	if err != nil {
		return nil, err
	}
	backend := plugin.Creator()
	mem, err := backend.Create(pattern, backendOpts)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", backendName, err)
	}

	n := pattern.Rows()
	base, err := newBase([]int{pattern.NNZ(), n * nrhs}, []int{n * nrhs})
	if err != nil {
		return nil, err
	}
	inScheme, _ := ioscheme.New([]string{"A", "b"}, []string{"matrix nonzeros", "right-hand side"})
	outScheme, _ := ioscheme.New([]string{"x"}, []string{"solution"})
	if err := base.SetSchemes(inScheme, outScheme); err != nil {
		return nil, err
	}

	return &LinearSolveFunction{
		Base:    base,
		pattern: pattern,
		nrhs:    nrhs,
		backend: backend,
		mem:     mem,
	}, nil
}

// Pattern returns the matrix sparsity pattern fixed at construction.
func (f *LinearSolveFunction) Pattern() *sparsity.Pattern { return f.pattern }

// BackendName returns the bound backend's registry name.
func (f *LinearSolveFunction) BackendName() string { return f.backend.Name() }

// Close frees the backend instance. The function must not be evaluated
// afterwards.
func (f *LinearSolveFunction) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.backend.Free(f.mem)
}

func (f *LinearSolveFunction) ensureOpen() error {
	if f.closed {
		return fmt.Errorf("%w: function is closed", ErrNotInitialized)
	}
	return nil
}

// Evaluate factors the current A values and solves for the current b,
// writing x. On failure the output buffer keeps its previous values.
func (f *LinearSolveFunction) Evaluate() error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	aValues := f.in[0].Value
	if err := f.backend.Factor(f.mem, aValues); err != nil {
		f.aFact = nil
		return fmt.Errorf("backend %q factor: %w", f.backend.Name(), err)
	}
	f.nFact++

	// Solve into scratch so a failure cannot corrupt the output buffer.
	x := append([]float64(nil), f.in[1].Value...)
	if err := f.backend.Solve(f.mem, aValues, x, f.nrhs, false); err != nil {
		f.aFact = nil
		return fmt.Errorf("backend %q solve: %w", f.backend.Name(), err)
	}
	f.nSolve++
	copy(f.out[0].Value, x)
	f.aFact = append(f.aFact[:0], aValues...)

	f.stats["linsol"] = f.backend.Name()
	f.stats["nfact"] = f.nFact
	f.stats["nsolve"] = f.nSolve
	for k, v := range f.mem.Stats() {
		f.stats[k] = v
	}
	return nil
}

// matVec accumulates dst += A*x (or A^T*x) for one column, using the values
// bound at the last factorization.
func (f *LinearSolveFunction) matVec(values, dst, x []float64, transpose bool) {
	colind, row := f.pattern.Colind(), f.pattern.Row()
	for c := 0; c < f.pattern.Cols(); c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			if transpose {
				dst[c] += values[k] * x[row[k]]
			} else {
				dst[row[k]] += values[k] * x[c]
			}
		}
	}
}

// PropagateForward pushes every forward direction through the solve,
// reusing the factorization of the last Evaluate.
func (f *LinearSolveFunction) PropagateForward() error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	if f.aFact == nil {
		return fmt.Errorf("%w: forward propagation needs a successful Evaluate first", ErrNotInitialized)
	}
	n := f.pattern.Rows()
	x := f.out[0].Value
	for d := 0; d < f.nFwd; d++ {
		aDot := f.in[0].Forward[d]
		bDot := f.in[1].Forward[d]

		// rhs = b_dot - A_dot x, column by column.
		rhs := append([]float64(nil), bDot...)
		for j := 0; j < f.nrhs; j++ {
			col := rhs[j*n : (j+1)*n]
			xCol := x[j*n : (j+1)*n]
			neg := make([]float64, n)
			f.matVec(aDot, neg, xCol, false)
			for i := range col {
				col[i] -= neg[i]
			}
		}
		if err := f.backend.Solve(f.mem, f.aFact, rhs, f.nrhs, false); err != nil {
			return fmt.Errorf("backend %q solve: %w", f.backend.Name(), err)
		}
		copy(f.out[0].Forward[d], rhs)
	}
	return nil
}

// PropagateAdjoint pulls every adjoint direction back through the solve,
// reusing the factorization of the last Evaluate.
func (f *LinearSolveFunction) PropagateAdjoint() error {
	if err := f.ensureOpen(); err != nil {
		return err
	}
	if f.aFact == nil {
		return fmt.Errorf("%w: adjoint propagation needs a successful Evaluate first", ErrNotInitialized)
	}
	n := f.pattern.Rows()
	x := f.out[0].Value
	colind, row := f.pattern.Colind(), f.pattern.Row()
	for d := 0; d < f.nAdj; d++ {
		lam := append([]float64(nil), f.out[0].Adjoint[d]...)
		if err := f.backend.Solve(f.mem, f.aFact, lam, f.nrhs, true); err != nil {
			return fmt.Errorf("backend %q transposed solve: %w", f.backend.Name(), err)
		}

		bBar := f.in[1].Adjoint[d]
		copy(bBar, lam)

		aBar := f.in[0].Adjoint[d]
		for k := range aBar {
			aBar[k] = 0
		}
		for j := 0; j < f.nrhs; j++ {
			lamCol := lam[j*n : (j+1)*n]
			xCol := x[j*n : (j+1)*n]
			for c := 0; c < f.pattern.Cols(); c++ {
				for k := colind[c]; k < colind[c+1]; k++ {
					aBar[k] -= lamCol[row[k]] * xCol[c]
				}
			}
		}
	}
	return nil
}

// spEvaluate treats the solve as structurally dense: every output scalar
// may depend on every nonzero of A and every entry of b. Conservative by
// design of the discovery protocol.
func (f *LinearSolveFunction) spEvaluate(forward bool) error {
	if forward {
		var acc uint64
		for _, w := range f.spIn[0] {
			acc |= w
		}
		for _, w := range f.spIn[1] {
			acc |= w
		}
		for i := range f.spOut[0] {
			f.spOut[0][i] |= acc
		}
		return nil
	}
	var acc uint64
	for _, w := range f.spOut[0] {
		acc |= w
	}
	for i := range f.spIn[0] {
		f.spIn[0][i] |= acc
	}
	for i := range f.spIn[1] {
		f.spIn[1][i] |= acc
	}
	return nil
}

// JacobianSparsity discovers and caches the structural sparsity of the
// requested Jacobian block.
func (f *LinearSolveFunction) JacobianSparsity(oind, iind int, compact bool) (*sparsity.Pattern, error) {
	return f.jacobianSparsity(f, oind, iind, compact)
}
