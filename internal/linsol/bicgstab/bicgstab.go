// Package bicgstab implements the "bicgstab" linear solver backend: a
// matrix-free stabilized bi-conjugate gradient iteration working directly on
// the compressed-column values, with a Jacobi (diagonal) preconditioner
// cached at factorization time.
//
// Unlike the direct backends, Factor performs no elimination; it validates
// the values and extracts the diagonal. The per-solve iteration count and
// final residual norm are recorded in the instance statistics.
package bicgstab

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// BackendName is the registry name.
const BackendName = "bicgstab"

// Backend implements linsol.Backend.
type Backend struct{}

// New creates the backend.
func New() *Backend { return &Backend{} }

// Name returns "bicgstab".
func (b *Backend) Name() string { return BackendName }

// Capabilities reports transpose support; batched right-hand sides are
// looped internally.
func (b *Backend) Capabilities() linsol.Capability {
	return linsol.CapTranspose
}

// Schema returns the option schema of the backend.
func Schema() *options.Schema {
	return options.NewSchema(map[string]options.Entry{
		"tolerance":      {Type: options.Float, Doc: "relative residual tolerance", Default: 1e-12},
		"max_iterations": {Type: options.Int, Doc: "iteration cap, 0 means 10n", Default: 0},
	})
}

type memory struct {
	*linsol.BaseMemory
	tol     float64
	maxIter int
	diag    []float64 // Jacobi preconditioner, cached at Factor
}

// Create fixes the pattern and reads the iteration options.
func (b *Backend) Create(pattern *sparsity.Pattern, opts options.Dict) (linsol.Memory, error) {
	s := Schema()
	if err := s.Validate(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", linsol.ErrBackendInit, err)
	}
	if !pattern.IsSquare() {
		return nil, fmt.Errorf("%w: bicgstab needs a square pattern, got %dx%d",
			linsol.ErrBackendInit, pattern.Rows(), pattern.Cols())
	}
	if pattern.HasEmptyRow() || pattern.HasEmptyCol() {
		return nil, fmt.Errorf("%w: pattern is structurally singular (empty row or column)", linsol.ErrBackendInit)
	}
	tol := s.Float(opts, "tolerance")
	if tol <= 0 || tol >= 1 {
		return nil, fmt.Errorf("%w: tolerance %g outside (0, 1)", linsol.ErrBackendInit, tol)
	}
	maxIter := s.Int(opts, "max_iterations")
	if maxIter == 0 {
		maxIter = 10 * pattern.Rows()
	}
	return &memory{
		BaseMemory: linsol.NewBaseMemory(pattern),
		tol:        tol,
		maxIter:    maxIter,
		diag:       make([]float64, pattern.Rows()),
	}, nil
}

// Factor validates the values and caches the diagonal for preconditioning.
// Rows without a usable diagonal entry are left unpreconditioned.
func (b *Backend) Factor(m linsol.Memory, values []float64) error {
	if err := linsol.BeginFactor(m, values); err != nil {
		return err
	}
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at nonzero %d", linsol.ErrFactorization, k)
		}
	}
	mm := m.(*memory)
	p := mm.Pattern()
	for i := range mm.diag {
		mm.diag[i] = 1
	}
	for c := 0; c < p.Cols(); c++ {
		if k, ok := p.Index(c, c); ok && values[k] != 0 {
			mm.diag[c] = values[k]
		}
	}
	linsol.MarkFactored(m)
	return nil
}

// matVec computes dst = A*x (or A^T*x) from the compressed-column values.
func matVec(p *sparsity.Pattern, values, dst, x []float64, transpose bool) {
	for i := range dst {
		dst[i] = 0
	}
	colind, row := p.Colind(), p.Row()
	for c := 0; c < p.Cols(); c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			if transpose {
				dst[c] += values[k] * x[row[k]]
			} else {
				dst[row[k]] += values[k] * x[c]
			}
		}
	}
}

// Solve runs the preconditioned BiCGStab iteration for each right-hand side
// column in turn, overwriting rhs with the solutions.
func (b *Backend) Solve(m linsol.Memory, values []float64, rhs []float64, nrhs int, transpose bool) error {
	if err := linsol.BeginSolve(b, m, rhs, nrhs, transpose); err != nil {
		return err
	}
	mm := m.(*memory)
	n := mm.Pattern().Rows()
	totalIter := 0
	var lastRes float64
	for j := 0; j < nrhs; j++ {
		col := rhs[j*n : (j+1)*n]
		iters, res, err := mm.solveOne(values, col, transpose)
		totalIter += iters
		lastRes = res
		if err != nil {
			return err
		}
	}
	mm.Stats()["iterations"] = totalIter
	mm.Stats()["residual_norm"] = lastRes
	return nil
}

func (mm *memory) solveOne(values, b []float64, transpose bool) (int, float64, error) {
	p := mm.Pattern()
	n := p.Rows()

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		for i := range b {
			b[i] = 0
		}
		return 0, 0, nil
	}

	// x0 = 0, so the initial residual is b itself.
	x := make([]float64, n)
	r := append([]float64(nil), b...)
	rhat := append([]float64(nil), r...)
	v := make([]float64, n)
	pvec := make([]float64, n)
	phat := make([]float64, n)
	shat := make([]float64, n)
	t := make([]float64, n)
	s := make([]float64, n)

	rho, alpha, omega := 1.0, 1.0, 1.0
	resNorm := floats.Norm(r, 2)

	for iter := 1; iter <= mm.maxIter; iter++ {
		rho1 := floats.Dot(rhat, r)
		if rho1 == 0 {
			return iter, resNorm, fmt.Errorf("%w: bicgstab breakdown (rho = 0) at iteration %d", linsol.ErrNumeric, iter)
		}
		beta := (rho1 / rho) * (alpha / omega)
		for i := range pvec {
			pvec[i] = r[i] + beta*(pvec[i]-omega*v[i])
		}
		mm.precondition(phat, pvec)
		matVec(p, values, v, phat, transpose)
		den := floats.Dot(rhat, v)
		if den == 0 {
			return iter, resNorm, fmt.Errorf("%w: bicgstab breakdown (rhat'v = 0) at iteration %d", linsol.ErrNumeric, iter)
		}
		alpha = rho1 / den
		floats.AddScaledTo(s, r, -alpha, v)
		if sn := floats.Norm(s, 2); sn < mm.tol*bnorm {
			floats.AddScaled(x, alpha, phat)
			copy(b, x)
			return iter, sn, nil
		}
		mm.precondition(shat, s)
		matVec(p, values, t, shat, transpose)
		tt := floats.Dot(t, t)
		if tt == 0 {
			return iter, resNorm, fmt.Errorf("%w: bicgstab breakdown (t = 0) at iteration %d", linsol.ErrNumeric, iter)
		}
		omega = floats.Dot(t, s) / tt
		floats.AddScaled(x, alpha, phat)
		floats.AddScaled(x, omega, shat)
		floats.AddScaledTo(r, s, -omega, t)
		resNorm = floats.Norm(r, 2)
		if resNorm < mm.tol*bnorm {
			copy(b, x)
			return iter, resNorm, nil
		}
		if omega == 0 {
			return iter, resNorm, fmt.Errorf("%w: bicgstab stagnated (omega = 0) at iteration %d", linsol.ErrNumeric, iter)
		}
		rho = rho1
	}
	return mm.maxIter, resNorm, fmt.Errorf("%w: bicgstab did not converge in %d iterations (residual %g)",
		linsol.ErrNumeric, mm.maxIter, resNorm/bnorm)
}

// precondition applies the Jacobi preconditioner: dst = D^-1 src. The same
// diagonal serves the transposed system.
func (mm *memory) precondition(dst, src []float64) {
	for i := range dst {
		dst[i] = src[i] / mm.diag[i]
	}
}

// Free releases the instance.
func (b *Backend) Free(m linsol.Memory) error {
	if err := linsol.BeginFree(m); err != nil {
		return err
	}
	mm := m.(*memory)
	mm.diag = nil
	return nil
}

// Plugin returns the registration record.
func Plugin() linsol.Plugin {
	return linsol.Plugin{
		Name:    BackendName,
		Doc:     "matrix-free BiCGStab with Jacobi preconditioning",
		Version: linsol.Version,
		Options: Schema(),
		Creator: func() linsol.Backend { return New() },
	}
}
