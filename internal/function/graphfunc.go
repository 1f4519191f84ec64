package function

import (
	"fmt"
	"math"

	"github.com/weigaofei/casadi/internal/graph"
	"github.com/weigaofei/casadi/internal/sparsity"
)

var _ Function = (*GraphFunction)(nil)

// GraphFunction evaluates and differentiates an instruction tape. The
// numeric value sweep, the tangent and adjoint derivative sweeps and the
// boolean dependency sweep all walk the same instruction list; only the
// per-step algebra differs.
type GraphFunction struct {
	*Base
	alg *graph.Algorithm

	// Primal work vector, valid after the last Evaluate or propagation.
	w []float64

	nEval int
}

// NewGraphFunction creates a function from a validated algorithm. The
// algorithm is referenced, not copied; callers must not mutate it afterwards.
func NewGraphFunction(alg *graph.Algorithm) (*GraphFunction, error) {
	if err := alg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	base, err := newBase(alg.InSizes, alg.OutSizes)
	if err != nil {
		return nil, err
	}
	return &GraphFunction{
		Base: base,
		alg:  alg,
		w:    make([]float64, alg.WorkSize),
	}, nil
}

// Algorithm returns the underlying tape.
func (f *GraphFunction) Algorithm() *graph.Algorithm { return f.alg }

// sweepPrimal runs the numeric value sweep, leaving all intermediates in
// f.w. Output instructions write into dst when it is non-nil.
func (f *GraphFunction) sweepPrimal(writeOutputs bool) {
	w := f.w
	for _, in := range f.alg.Instrs {
		switch in.Op {
		case graph.Const:
			w[in.Res] = f.alg.Consts[in.Slot]
		case graph.Input:
			w[in.Res] = f.in[in.Slot].Value[in.Elem]
		case graph.Output:
			if writeOutputs {
				f.out[in.Slot].Value[in.Elem] = w[in.A0]
			}
		case graph.Add:
			w[in.Res] = w[in.A0] + w[in.A1]
		case graph.Sub:
			w[in.Res] = w[in.A0] - w[in.A1]
		case graph.Mul:
			w[in.Res] = w[in.A0] * w[in.A1]
		case graph.Div:
			w[in.Res] = w[in.A0] / w[in.A1]
		case graph.Neg:
			w[in.Res] = -w[in.A0]
		case graph.Sin:
			w[in.Res] = math.Sin(w[in.A0])
		case graph.Cos:
			w[in.Res] = math.Cos(w[in.A0])
		case graph.Exp:
			w[in.Res] = math.Exp(w[in.A0])
		case graph.Log:
			w[in.Res] = math.Log(w[in.A0])
		case graph.Sqrt:
			w[in.Res] = math.Sqrt(w[in.A0])
		case graph.Sq:
			w[in.Res] = w[in.A0] * w[in.A0]
		}
	}
}

// Evaluate computes the output values from the current input values.
func (f *GraphFunction) Evaluate() error {
	if !f.initialized {
		return fmt.Errorf("%w: evaluate before configuration", ErrNotInitialized)
	}
	f.sweepPrimal(true)
	f.nEval++
	f.stats["n_eval"] = f.nEval
	return nil
}

// PropagateForward computes, for every active forward direction d, the
// tangent J*v_d of the forward seeds, writing the forward sensitivities of
// every output. Output values are not touched; the primal intermediates are
// recomputed internally.
func (f *GraphFunction) PropagateForward() error {
	if !f.initialized {
		return fmt.Errorf("%w: propagate before configuration", ErrNotInitialized)
	}
	f.sweepPrimal(false)
	w := f.w
	wt := make([]float64, f.alg.WorkSize)
	for d := 0; d < f.nFwd; d++ {
		for _, in := range f.alg.Instrs {
			switch in.Op {
			case graph.Const:
				wt[in.Res] = 0
			case graph.Input:
				wt[in.Res] = f.in[in.Slot].Forward[d][in.Elem]
			case graph.Output:
				f.out[in.Slot].Forward[d][in.Elem] = wt[in.A0]
			case graph.Add:
				wt[in.Res] = wt[in.A0] + wt[in.A1]
			case graph.Sub:
				wt[in.Res] = wt[in.A0] - wt[in.A1]
			case graph.Mul:
				wt[in.Res] = wt[in.A0]*w[in.A1] + w[in.A0]*wt[in.A1]
			case graph.Div:
				wt[in.Res] = (wt[in.A0] - w[in.Res]*wt[in.A1]) / w[in.A1]
			case graph.Neg:
				wt[in.Res] = -wt[in.A0]
			case graph.Sin:
				wt[in.Res] = math.Cos(w[in.A0]) * wt[in.A0]
			case graph.Cos:
				wt[in.Res] = -math.Sin(w[in.A0]) * wt[in.A0]
			case graph.Exp:
				wt[in.Res] = w[in.Res] * wt[in.A0]
			case graph.Log:
				wt[in.Res] = wt[in.A0] / w[in.A0]
			case graph.Sqrt:
				wt[in.Res] = wt[in.A0] / (2 * w[in.Res])
			case graph.Sq:
				wt[in.Res] = 2 * w[in.A0] * wt[in.A0]
			}
		}
	}
	return nil
}

// PropagateAdjoint computes, for every active adjoint direction d, the
// cotangent J^T*w_d of the adjoint seeds, overwriting the adjoint
// sensitivities of every input.
func (f *GraphFunction) PropagateAdjoint() error {
	if !f.initialized {
		return fmt.Errorf("%w: propagate before configuration", ErrNotInitialized)
	}
	f.sweepPrimal(false)
	w := f.w
	wa := make([]float64, f.alg.WorkSize)
	for d := 0; d < f.nAdj; d++ {
		for _, buf := range f.in {
			sens := buf.Adjoint[d]
			for i := range sens {
				sens[i] = 0
			}
		}
		for i := range wa {
			wa[i] = 0
		}
		// Reverse sweep. Output instructions come after the write of
		// their source, so walking backwards seeds each adjoint before
		// the defining instruction is reached.
		for k := len(f.alg.Instrs) - 1; k >= 0; k-- {
			in := f.alg.Instrs[k]
			switch in.Op {
			case graph.Const:
				// No dependency.
			case graph.Input:
				f.in[in.Slot].Adjoint[d][in.Elem] += wa[in.Res]
			case graph.Output:
				wa[in.A0] += f.out[in.Slot].Adjoint[d][in.Elem]
			case graph.Add:
				wa[in.A0] += wa[in.Res]
				wa[in.A1] += wa[in.Res]
			case graph.Sub:
				wa[in.A0] += wa[in.Res]
				wa[in.A1] -= wa[in.Res]
			case graph.Mul:
				wa[in.A0] += w[in.A1] * wa[in.Res]
				wa[in.A1] += w[in.A0] * wa[in.Res]
			case graph.Div:
				wa[in.A0] += wa[in.Res] / w[in.A1]
				wa[in.A1] -= w[in.Res] / w[in.A1] * wa[in.Res]
			case graph.Neg:
				wa[in.A0] -= wa[in.Res]
			case graph.Sin:
				wa[in.A0] += math.Cos(w[in.A0]) * wa[in.Res]
			case graph.Cos:
				wa[in.A0] -= math.Sin(w[in.A0]) * wa[in.Res]
			case graph.Exp:
				wa[in.A0] += w[in.Res] * wa[in.Res]
			case graph.Log:
				wa[in.A0] += wa[in.Res] / w[in.A0]
			case graph.Sqrt:
				wa[in.A0] += wa[in.Res] / (2 * w[in.Res])
			case graph.Sq:
				wa[in.A0] += 2 * w[in.A0] * wa[in.Res]
			}
		}
	}
	return nil
}

// spEvaluate runs one batched boolean dependency pass over the tape:
// bitwise OR replaces the numeric multiply-add, one word of bits per scalar.
func (f *GraphFunction) spEvaluate(forward bool) error {
	ws := make([]uint64, f.alg.WorkSize)
	if forward {
		for _, in := range f.alg.Instrs {
			switch in.Op {
			case graph.Const:
				ws[in.Res] = 0
			case graph.Input:
				ws[in.Res] = f.spIn[in.Slot][in.Elem]
			case graph.Output:
				f.spOut[in.Slot][in.Elem] |= ws[in.A0]
			case graph.Add, graph.Sub, graph.Mul, graph.Div:
				ws[in.Res] = ws[in.A0] | ws[in.A1]
			case graph.Neg, graph.Sin, graph.Cos, graph.Exp, graph.Log, graph.Sqrt, graph.Sq:
				ws[in.Res] = ws[in.A0]
			}
		}
		return nil
	}
	for k := len(f.alg.Instrs) - 1; k >= 0; k-- {
		in := f.alg.Instrs[k]
		switch in.Op {
		case graph.Const:
			// No dependency.
		case graph.Input:
			f.spIn[in.Slot][in.Elem] |= ws[in.Res]
		case graph.Output:
			ws[in.A0] |= f.spOut[in.Slot][in.Elem]
		case graph.Add, graph.Sub, graph.Mul, graph.Div:
			ws[in.A0] |= ws[in.Res]
			ws[in.A1] |= ws[in.Res]
		case graph.Neg, graph.Sin, graph.Cos, graph.Exp, graph.Log, graph.Sqrt, graph.Sq:
			ws[in.A0] |= ws[in.Res]
		}
	}
	return nil
}

// JacobianSparsity discovers and caches the structural sparsity of the
// requested Jacobian block.
func (f *GraphFunction) JacobianSparsity(oind, iind int, compact bool) (*sparsity.Pattern, error) {
	return f.jacobianSparsity(f, oind, iind, compact)
}
