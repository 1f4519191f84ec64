// Package denseqr implements the "qr" linear solver backend: dense QR
// factorization via Householder reflections. More robust than LU for badly
// scaled systems, at roughly twice the factorization cost.
//
// The backend does not solve transposed systems; callers that need A^T x = b
// must pick a backend with the transpose capability.
package denseqr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// BackendName is the registry name.
const BackendName = "qr"

// Backend implements linsol.Backend.
type Backend struct{}

// New creates the backend.
func New() *Backend { return &Backend{} }

// Name returns "qr".
func (b *Backend) Name() string { return BackendName }

// Capabilities reports native batched-RHS support only.
func (b *Backend) Capabilities() linsol.Capability {
	return linsol.CapMultipleRHS
}

// Schema returns the (empty) option schema of the backend.
func Schema() *options.Schema {
	return options.NewSchema(nil)
}

type memory struct {
	*linsol.BaseMemory
	a  *mat.Dense
	qr mat.QR
}

// Create fixes the pattern; square systems only.
func (b *Backend) Create(pattern *sparsity.Pattern, opts options.Dict) (linsol.Memory, error) {
	if err := Schema().Validate(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", linsol.ErrBackendInit, err)
	}
	if !pattern.IsSquare() {
		return nil, fmt.Errorf("%w: qr needs a square pattern, got %dx%d",
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

// Factor scatters values and computes the QR factorization. An exactly
// singular matrix is detected through the diagonal of R.
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
	mm.qr.Factorize(mm.a)

	var r mat.Dense
	mm.qr.RTo(&r)
	n := p.Rows()
	for i := 0; i < n; i++ {
		d := r.At(i, i)
		if d == 0 || math.IsNaN(d) {
			return fmt.Errorf("%w: zero pivot in R at %d", linsol.ErrFactorization, i)
		}
	}
	linsol.MarkFactored(m)
	return nil
}

// Solve overwrites rhs with the solution. Transposed solves are not
// supported and fail with ErrUnsupported.
func (b *Backend) Solve(m linsol.Memory, values []float64, rhs []float64, nrhs int, transpose bool) error {
	if err := linsol.BeginSolve(b, m, rhs, nrhs, transpose); err != nil {
		return err
	}
	mm := m.(*memory)
	n := mm.Pattern().Rows()

	bmat := mat.NewDense(n, nrhs, nil)
	for j := 0; j < nrhs; j++ {
		for i := 0; i < n; i++ {
			bmat.Set(i, j, rhs[j*n+i])
		}
	}
	var x mat.Dense
	if err := mm.qr.SolveTo(&x, false, bmat); err != nil {
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
		Doc:     "dense Householder QR (gonum), no transposed solves",
		Version: linsol.Version,
		Options: Schema(),
		Creator: func() linsol.Backend { return New() },
	}
}
