// Package denselu implements the "lu" linear solver backend: the sparse
// pattern is scattered into a dense matrix and factored with a partially
// pivoted LU decomposition. Suited to small and moderately sized systems;
// supports transposed solves and batched right-hand sides natively.
package denselu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// BackendName is the registry name.
const BackendName = "lu"

// Backend implements linsol.Backend.
type Backend struct{}

// New creates the backend.
func New() *Backend { return &Backend{} }

// Name returns "lu".
func (b *Backend) Name() string { return BackendName }

// Capabilities reports native transpose and batched-RHS support.
func (b *Backend) Capabilities() linsol.Capability {
	return linsol.CapTranspose | linsol.CapMultipleRHS
}

// Schema returns the (empty) option schema of the backend.
func Schema() *options.Schema {
	return options.NewSchema(nil)
}

type memory struct {
	*linsol.BaseMemory
	a  *mat.Dense
	lu mat.LU
}

// Create fixes the pattern. Patterns with a structurally empty row or column
// are singular for any values and rejected upfront.
func (b *Backend) Create(pattern *sparsity.Pattern, opts options.Dict) (linsol.Memory, error) {
	if err := Schema().Validate(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", linsol.ErrBackendInit, err)
	}
	if !pattern.IsSquare() {
		return nil, fmt.Errorf("%w: lu needs a square pattern, got %dx%d",
			linsol.ErrBackendInit, pattern.Rows(), pattern.Cols())
	}
	if pattern.HasEmptyRow() || pattern.HasEmptyCol() {
		return nil, fmt.Errorf("%w: pattern is structurally singular (empty row or column)", linsol.ErrBackendInit)
	}
	n := pattern.Rows()
	return &memory{
		BaseMemory: linsol.NewBaseMemory(pattern),
		a:          mat.NewDense(n, n, nil),
	}, nil
}

// Factor scatters values into the dense matrix and computes the LU
// factorization.
func (b *Backend) Factor(m linsol.Memory, values []float64) error {
	if err := linsol.BeginFactor(m, values); err != nil {
		return err
	}
	mm := m.(*memory)
	p := mm.Pattern()
	mm.a.Zero()
	colind, row := p.Colind(), p.Row()
	for c := 0; c < p.Cols(); c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			mm.a.Set(row[k], c, values[k])
		}
	}
	mm.lu.Factorize(mm.a)
	cond := mm.lu.Cond()
	if math.IsInf(cond, 1) || math.IsNaN(cond) {
		return fmt.Errorf("%w: matrix is singular to working precision", linsol.ErrFactorization)
	}
	mm.Stats()["cond"] = cond
	linsol.MarkFactored(m)
	return nil
}

// Solve overwrites rhs with the solution, one or more columns at a time.
func (b *Backend) Solve(m linsol.Memory, values []float64, rhs []float64, nrhs int, transpose bool) error {
	if err := linsol.BeginSolve(b, m, rhs, nrhs, transpose); err != nil {
		return err
	}
	mm := m.(*memory)
	n := mm.Pattern().Rows()

	// rhs columns are stored contiguously; gonum expects row-major, so
	// stage through a transposed view.
	bmat := mat.NewDense(n, nrhs, nil)
	for j := 0; j < nrhs; j++ {
		for i := 0; i < n; i++ {
			bmat.Set(i, j, rhs[j*n+i])
		}
	}
	var x mat.Dense
	if err := mm.lu.SolveTo(&x, transpose, bmat); err != nil {
		if _, nearSingular := err.(mat.Condition); !nearSingular {
			return fmt.Errorf("%w: %v", linsol.ErrNumeric, err)
		}
	}
	for j := 0; j < nrhs; j++ {
		for i := 0; i < n; i++ {
			rhs[j*n+i] = x.At(i, j)
		}
	}
	return nil
}

// Free releases the instance.
func (b *Backend) Free(m linsol.Memory) error {
	if err := linsol.BeginFree(m); err != nil {
		return err
	}
	mm := m.(*memory)
	mm.a = nil
	return nil
}

// Plugin returns the registration record.
func Plugin() linsol.Plugin {
	return linsol.Plugin{
		Name:    BackendName,
		Doc:     "dense LU with partial pivoting (gonum)",
		Version: linsol.Version,
		Options: Schema(),
		Creator: func() linsol.Backend { return New() },
	}
}
