package function_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/weigaofei/casadi/internal/function"
	"github.com/weigaofei/casadi/internal/graph"
)

// buildTestFunction builds f: R^3 -> R^2 with
//
//	y0 = x0*sin(x1) + exp(x2)
//	y1 = x1*x2 + sqrt(exp(x0))
func buildTestFunction(t *testing.T) *function.GraphFunction {
	t.Helper()
	b := graph.NewBuilder([]int{3}, []int{2})
	x0 := b.Input(0, 0)
	x1 := b.Input(0, 1)
	x2 := b.Input(0, 2)
	b.Output(0, 0, b.Add(b.Mul(x0, b.Sin(x1)), b.Exp(x2)))
	b.Output(0, 1, b.Add(b.Mul(x1, x2), b.Sqrt(b.Exp(x0))))
	alg, err := b.Finish()
	require.NoError(t, err)
	f, err := function.NewGraphFunction(alg)
	require.NoError(t, err)
	return f
}

func TestGraphFunction_Evaluate(t *testing.T) {
	f := buildTestFunction(t)
	require.NoError(t, f.SetInput(0, []float64{0.5, 1.2, -0.3}))
	require.NoError(t, f.Evaluate())

	y, err := f.Output(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*math.Sin(1.2)+math.Exp(-0.3), y[0], 1e-14)
	assert.InDelta(t, 1.2*-0.3+math.Sqrt(math.Exp(0.5)), y[1], 1e-14)
}

func TestGraphFunction_ForwardAgainstFiniteDifferences(t *testing.T) {
	f := buildTestFunction(t)
	x := []float64{0.7, -0.4, 0.9}
	v := []float64{0.3, -1.1, 0.6}

	require.NoError(t, f.SetDirections(1, 0))
	require.NoError(t, f.SetInput(0, x))
	require.NoError(t, f.SetForwardSeed(0, 0, v))
	require.NoError(t, f.PropagateForward())
	jv, err := f.ForwardSens(0, 0)
	require.NoError(t, err)

	// Central difference along v.
	const h = 1e-6
	xp := make([]float64, 3)
	xm := make([]float64, 3)
	floats.AddScaledTo(xp, x, h, v)
	floats.AddScaledTo(xm, x, -h, v)

	require.NoError(t, f.SetInput(0, xp))
	require.NoError(t, f.Evaluate())
	yOut, _ := f.Output(0)
	yp := append([]float64(nil), yOut...)

	require.NoError(t, f.SetInput(0, xm))
	require.NoError(t, f.Evaluate())
	yOut, _ = f.Output(0)

	for i := range jv {
		fd := (yp[i] - yOut[i]) / (2 * h)
		assert.InDelta(t, fd, jv[i], 1e-7, "component %d", i)
	}
}

func TestGraphFunction_DotProductIdentity(t *testing.T) {
	// w'(J v) == (J' w)'v for random seeds.
	f := buildTestFunction(t)
	rng := rand.New(rand.NewSource(7))

	require.NoError(t, f.SetDirections(1, 1))
	x := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	v := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	w := []float64{rng.NormFloat64(), rng.NormFloat64()}

	// Keep sqrt(exp(x0)) well defined for any x0, but avoid huge values.
	x[0] = math.Abs(x[0])

	require.NoError(t, f.SetInput(0, x))
	require.NoError(t, f.Evaluate())
	require.NoError(t, f.SetForwardSeed(0, 0, v))
	require.NoError(t, f.SetAdjointSeed(0, 0, w))
	require.NoError(t, f.PropagateForward())
	require.NoError(t, f.PropagateAdjoint())

	jv, err := f.ForwardSens(0, 0)
	require.NoError(t, err)
	jtw, err := f.AdjointSens(0, 0)
	require.NoError(t, err)

	assert.InDelta(t, floats.Dot(w, jv), floats.Dot(jtw, v), 1e-12)
}

func TestGraphFunction_MultipleDirections(t *testing.T) {
	f := buildTestFunction(t)
	require.NoError(t, f.SetDirections(3, 2))
	assert.Equal(t, 3, f.NumForward())
	assert.Equal(t, 2, f.NumAdjoint())

	require.NoError(t, f.SetInput(0, []float64{1, 2, 3}))
	for d := 0; d < 3; d++ {
		seed := []float64{0, 0, 0}
		seed[d] = 1
		require.NoError(t, f.SetForwardSeed(0, d, seed))
	}
	require.NoError(t, f.PropagateForward())

	// Unit seeds recover Jacobian columns; check dy1/dx1 = x2 with the
	// inputs above.
	jCol1, err := f.ForwardSens(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, jCol1[1], 1e-14)

	// Exactly the configured adjoint buffers exist.
	_, err = f.ForwardSens(0, 3)
	assert.True(t, errors.Is(err, function.ErrOutOfRange))
	_, err = f.AdjointSens(0, 2)
	assert.True(t, errors.Is(err, function.ErrOutOfRange))
}

func TestGraphFunction_PropagateLeavesValuesAlone(t *testing.T) {
	f := buildTestFunction(t)
	require.NoError(t, f.SetDirections(1, 1))
	require.NoError(t, f.SetInput(0, []float64{1, 1, 1}))
	require.NoError(t, f.Evaluate())

	y, _ := f.Output(0)
	before := append([]float64(nil), y...)

	require.NoError(t, f.SetForwardSeed(0, 0, []float64{1, 0, 0}))
	require.NoError(t, f.PropagateForward())
	require.NoError(t, f.SetAdjointSeed(0, 0, []float64{1, 1}))
	require.NoError(t, f.PropagateAdjoint())

	y, _ = f.Output(0)
	assert.Equal(t, before, y, "propagation must not rewrite output values")
}

func TestGraphFunction_ZeroDirectionsIsNoop(t *testing.T) {
	f := buildTestFunction(t)
	require.NoError(t, f.SetDirections(0, 0))
	require.NoError(t, f.SetInput(0, []float64{1, 2, 3}))
	require.NoError(t, f.PropagateForward())
	require.NoError(t, f.PropagateAdjoint())
}

func TestGraphFunction_SetDirectionsReallocates(t *testing.T) {
	f := buildTestFunction(t)
	require.NoError(t, f.SetDirections(1, 0))
	old, err := f.ForwardSeed(0, 0)
	require.NoError(t, err)
	old[0] = 42

	require.NoError(t, f.SetDirections(2, 0))
	fresh, err := f.ForwardSeed(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, fresh[0], "reallocation detaches old buffers")
}

func TestGraphFunction_Errors(t *testing.T) {
	f := buildTestFunction(t)

	assert.True(t, errors.Is(f.SetInput(2, nil), function.ErrOutOfRange))
	assert.True(t, errors.Is(f.SetInput(0, []float64{1}), function.ErrOutOfRange))
	assert.True(t, errors.Is(f.SetDirections(-1, 0), function.ErrOutOfRange))

	_, err := f.Input(-1)
	assert.True(t, errors.Is(err, function.ErrOutOfRange))
	_, err = f.Output(1)
	assert.True(t, errors.Is(err, function.ErrOutOfRange))
	_, err = f.ForwardSeed(0, 0)
	assert.True(t, errors.Is(err, function.ErrOutOfRange), "no directions allocated")
}

func TestGraphFunction_InvalidAlgorithm(t *testing.T) {
	_, err := function.NewGraphFunction(&graph.Algorithm{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, function.ErrConfiguration))
}

func TestGraphFunction_Stats(t *testing.T) {
	f := buildTestFunction(t)

	_, err := f.Stat("n_eval")
	assert.True(t, errors.Is(err, function.ErrNotFound), "nothing recorded yet")

	require.NoError(t, f.SetInput(0, []float64{1, 2, 3}))
	require.NoError(t, f.Evaluate())
	require.NoError(t, f.Evaluate())

	v, err := f.Stat("n_eval")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = f.Stat("iterations")
	assert.True(t, errors.Is(err, function.ErrNotFound))
}

func TestGraphFunction_Schemes(t *testing.T) {
	f := buildTestFunction(t)

	i, err := f.InputIndex("i0")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	o, err := f.OutputIndex("o0")
	require.NoError(t, err)
	assert.Equal(t, 0, o)
	_, err = f.InputIndex("x")
	assert.Error(t, err)
}
