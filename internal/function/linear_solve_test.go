package function_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/weigaofei/casadi/internal/function"
	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/linsol/bicgstab"
	"github.com/weigaofei/casadi/internal/linsol/denselu"
	"github.com/weigaofei/casadi/internal/linsol/denseqr"
	"github.com/weigaofei/casadi/internal/sparsity"
)

func TestMain(m *testing.M) {
	for _, p := range []linsol.Plugin{denselu.Plugin(), denseqr.Plugin(), bicgstab.Plugin()} {
		if err := linsol.Register(p); err != nil {
			panic(err)
		}
	}
	os.Exit(m.Run())
}

// solvePattern is a 3x3 pattern with 5 nonzeros; with solveValues the matrix
// reads
//
//	[1 0 2]
//	[3 4 0]
//	[0 0 5]
func solvePattern(t *testing.T) *sparsity.Pattern {
	t.Helper()
	p, err := sparsity.New(3, 3, []int{0, 2, 3, 5}, []int{0, 1, 1, 0, 2})
	require.NoError(t, err)
	return p
}

var solveValues = []float64{1, 3, 4, 2, 5}

// residual computes the 1-norm of A x - b for the pattern above.
func residual(p *sparsity.Pattern, values, x, b []float64) float64 {
	n := p.Rows()
	r := append([]float64(nil), b...)
	colind, row := p.Colind(), p.Row()
	for j := 0; j < len(b)/n; j++ {
		for c := 0; c < n; c++ {
			for k := colind[c]; k < colind[c+1]; k++ {
				r[j*n+row[k]] -= values[k] * x[j*n+c]
			}
		}
	}
	return floats.Norm(r, 1)
}

func newSolve(t *testing.T, nrhs int, backend string) *function.LinearSolveFunction {
	t.Helper()
	f, err := function.NewLinearSolve(solvePattern(t), nrhs, backend, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestLinearSolve_RoundTrip(t *testing.T) {
	for _, backend := range []string{"lu", "qr", "bicgstab"} {
		t.Run(backend, func(t *testing.T) {
			f := newSolve(t, 1, backend)
			b := []float64{1, 2, 3}
			require.NoError(t, f.SetInput(0, solveValues))
			require.NoError(t, f.SetInput(1, b))
			require.NoError(t, f.Evaluate())

			x, err := f.Output(0)
			require.NoError(t, err)
			assert.Less(t, residual(f.Pattern(), solveValues, x, b), 1e-9)
		})
	}
}

func TestLinearSolve_MultipleRHS(t *testing.T) {
	f := newSolve(t, 2, "lu")
	b := []float64{1, 2, 3, -1, 0, 2}
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, b))
	require.NoError(t, f.Evaluate())

	x, err := f.Output(0)
	require.NoError(t, err)
	assert.Less(t, residual(f.Pattern(), solveValues, x, b), 1e-9)
}

func TestLinearSolve_Schemes(t *testing.T) {
	f := newSolve(t, 1, "lu")
	i, err := f.InputIndex("A")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = f.InputIndex("b")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	o, err := f.OutputIndex("x")
	require.NoError(t, err)
	assert.Equal(t, 0, o)
}

func TestLinearSolve_Stats(t *testing.T) {
	f := newSolve(t, 1, "lu")
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, []float64{1, 1, 1}))
	require.NoError(t, f.Evaluate())
	require.NoError(t, f.Evaluate())

	name, err := f.Stat("linsol")
	require.NoError(t, err)
	assert.Equal(t, "lu", name)
	nfact, err := f.Stat("nfact")
	require.NoError(t, err)
	assert.Equal(t, 2, nfact)
	nsolve, err := f.Stat("nsolve")
	require.NoError(t, err)
	assert.Equal(t, 2, nsolve)
	_, err = f.Stat("cond")
	assert.NoError(t, err, "backend statistics are merged in")
}

func TestLinearSolve_FailedEvaluateKeepsOutput(t *testing.T) {
	f := newSolve(t, 1, "lu")
	b := []float64{1, 2, 3}
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, b))
	require.NoError(t, f.Evaluate())
	x, _ := f.Output(0)
	before := append([]float64(nil), x...)

	// Zeroing the (1,1) entry makes column 1 empty numerically.
	singular := []float64{1, 3, 0, 2, 5}
	require.NoError(t, f.SetInput(0, singular))
	err := f.Evaluate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, linsol.ErrFactorization))

	x, _ = f.Output(0)
	assert.Equal(t, before, x, "failed evaluation must keep the previous output")

	// The failed factorization also invalidates the derivative state.
	require.NoError(t, f.SetDirections(1, 0))
	assert.True(t, errors.Is(f.PropagateForward(), function.ErrNotInitialized))

	// A good matrix recovers the full cycle.
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.Evaluate())
	require.NoError(t, f.PropagateForward())
}

func TestLinearSolve_PropagateBeforeEvaluate(t *testing.T) {
	f := newSolve(t, 1, "lu")
	require.NoError(t, f.SetDirections(1, 1))
	assert.True(t, errors.Is(f.PropagateForward(), function.ErrNotInitialized))
	assert.True(t, errors.Is(f.PropagateAdjoint(), function.ErrNotInitialized))
}

func TestLinearSolve_ForwardIdentity(t *testing.T) {
	// With A = I the solve is a copy, so x_dot = b_dot when A_dot = 0.
	f, err := function.NewLinearSolve(sparsity.Diag(3), 1, "lu", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.SetDirections(1, 0))
	require.NoError(t, f.SetInput(0, []float64{1, 1, 1}))
	require.NoError(t, f.SetInput(1, []float64{4, 5, 6}))
	require.NoError(t, f.Evaluate())

	bDot := []float64{0.1, -0.2, 0.3}
	require.NoError(t, f.SetForwardSeed(1, 0, bDot))
	require.NoError(t, f.PropagateForward())

	xDot, err := f.ForwardSens(0, 0)
	require.NoError(t, err)
	for i := range bDot {
		assert.InDelta(t, bDot[i], xDot[i], 1e-12)
	}
}

func TestLinearSolve_ForwardResidual(t *testing.T) {
	// The tangent satisfies A x_dot = b_dot - A_dot x.
	f := newSolve(t, 1, "lu")
	b := []float64{1, 2, 3}
	require.NoError(t, f.SetDirections(1, 0))
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, b))
	require.NoError(t, f.Evaluate())

	aDot := []float64{0.5, -1, 0.25, 0, 2}
	bDot := []float64{1, 0, -1}
	require.NoError(t, f.SetForwardSeed(0, 0, aDot))
	require.NoError(t, f.SetForwardSeed(1, 0, bDot))
	require.NoError(t, f.PropagateForward())

	x, _ := f.Output(0)
	xDot, err := f.ForwardSens(0, 0)
	require.NoError(t, err)

	rhs := append([]float64(nil), bDot...)
	p := f.Pattern()
	colind, row := p.Colind(), p.Row()
	for c := 0; c < 3; c++ {
		for k := colind[c]; k < colind[c+1]; k++ {
			rhs[row[k]] -= aDot[k] * x[c]
		}
	}
	assert.Less(t, residual(p, solveValues, xDot, rhs), 1e-9)
}

func TestLinearSolve_AdjointForwardConsistency(t *testing.T) {
	// <x_bar, x_dot> == <A_bar, A_dot> + <b_bar, b_dot>.
	f := newSolve(t, 1, "lu")
	require.NoError(t, f.SetDirections(1, 1))
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, []float64{1, 2, 3}))
	require.NoError(t, f.Evaluate())

	aDot := []float64{0.5, -1, 0.25, 0, 2}
	bDot := []float64{1, 0, -1}
	xBar := []float64{0.7, -0.3, 1.1}
	require.NoError(t, f.SetForwardSeed(0, 0, aDot))
	require.NoError(t, f.SetForwardSeed(1, 0, bDot))
	require.NoError(t, f.SetAdjointSeed(0, 0, xBar))
	require.NoError(t, f.PropagateForward())
	require.NoError(t, f.PropagateAdjoint())

	xDot, err := f.ForwardSens(0, 0)
	require.NoError(t, err)
	aBar, err := f.AdjointSens(0, 0)
	require.NoError(t, err)
	bBar, err := f.AdjointSens(1, 0)
	require.NoError(t, err)

	lhs := floats.Dot(xBar, xDot)
	rhs := floats.Dot(aBar, aDot) + floats.Dot(bBar, bDot)
	assert.InDelta(t, lhs, rhs, 1e-10)
}

func TestLinearSolve_AdjointNeedsTranspose(t *testing.T) {
	f := newSolve(t, 1, "qr")
	require.NoError(t, f.SetDirections(0, 1))
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, []float64{1, 2, 3}))
	require.NoError(t, f.Evaluate())

	require.NoError(t, f.SetAdjointSeed(0, 0, []float64{1, 0, 0}))
	err := f.PropagateAdjoint()
	require.Error(t, err)
	assert.True(t, errors.Is(err, linsol.ErrUnsupported))
}

func TestLinearSolve_JacobianSparsityIsDense(t *testing.T) {
	f := newSolve(t, 1, "lu")

	pA, err := f.JacobianSparsity(0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, pA.Rows())
	assert.Equal(t, 5, pA.Cols())
	assert.Equal(t, 15, pA.NNZ(), "every solution entry depends on every matrix nonzero")

	pB, err := f.JacobianSparsity(0, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 9, pB.NNZ())

	again, err := f.JacobianSparsity(0, 1, false)
	require.NoError(t, err)
	assert.Same(t, pB, again)
}

func TestLinearSolve_Close(t *testing.T) {
	f := newSolve(t, 1, "lu")
	require.NoError(t, f.SetInput(0, solveValues))
	require.NoError(t, f.SetInput(1, []float64{1, 2, 3}))
	require.NoError(t, f.Evaluate())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "closing twice is a no-op")
	assert.True(t, errors.Is(f.Evaluate(), function.ErrNotInitialized))
	assert.True(t, errors.Is(f.PropagateForward(), function.ErrNotInitialized))
}

func TestLinearSolve_Configuration(t *testing.T) {
	_, err := function.NewLinearSolve(sparsity.Dense(2, 3), 1, "lu", nil)
	assert.True(t, errors.Is(err, function.ErrConfiguration))

	_, err = function.NewLinearSolve(solvePattern(t), 0, "lu", nil)
	assert.True(t, errors.Is(err, function.ErrConfiguration))

	_, err = function.NewLinearSolve(solvePattern(t), 1, "nosuch", nil)
	assert.True(t, errors.Is(err, linsol.ErrNotFound))
}
