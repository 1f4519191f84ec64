// Package function implements the differentiable function core: a
// multi-input, multi-output numeric function with per-slot value buffers,
// an arbitrary number of simultaneous forward (tangent) and adjoint
// (cotangent) derivative directions, and on-demand structural Jacobian
// sparsity discovery.
//
// Two function kinds are provided. GraphFunction interprets an instruction
// tape (see the graph package) under three algebras sharing one traversal
// order: numeric values, numeric directional derivatives, and bit-packed
// boolean dependencies. LinearSolveFunction evaluates x = A^-1 b through a
// named linear solver backend (see the linsol package) and differentiates
// through the solve.
//
// A function instance is single threaded: no operation yields, and callers
// must not invoke operations on one instance concurrently.
package function

import (
	"fmt"

	"github.com/weigaofei/casadi/internal/ioscheme"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// Function is the differentiable function abstraction.
//
// Buffer accessors return slices aliasing the function's own storage, so
// callers can fill seeds and read results in place. SetDirections
// reallocates the direction buffers; slices obtained earlier are no longer
// backed by the function afterwards.
type Function interface {
	// Arity and sizes.
	NumInputs() int
	NumOutputs() int
	InputSize(iind int) (int, error)
	OutputSize(oind int) (int, error)

	// Direction configuration.
	NumForward() int
	NumAdjoint() int
	SetDirections(nFwd, nAdj int) error

	// Value buffers.
	Input(iind int) ([]float64, error)
	Output(oind int) ([]float64, error)
	SetInput(iind int, values []float64) error

	// Derivative buffers: seeds on inputs (forward) and outputs
	// (adjoint), sensitivities on the opposite side.
	ForwardSeed(iind, dir int) ([]float64, error)
	ForwardSens(oind, dir int) ([]float64, error)
	AdjointSeed(oind, dir int) ([]float64, error)
	AdjointSens(iind, dir int) ([]float64, error)
	SetForwardSeed(iind, dir int, values []float64) error
	SetAdjointSeed(oind, dir int, values []float64) error

	// Evaluation and propagation.
	Evaluate() error
	PropagateForward() error
	PropagateAdjoint() error

	// JacobianSparsity returns the structural sparsity of d out[oind] /
	// d in[iind], discovered by boolean propagation and cached per
	// (oind, iind, compact). The result over-approximates the numeric
	// nonzero set, never under-approximates it.
	JacobianSparsity(oind, iind int, compact bool) (*sparsity.Pattern, error)

	// Statistics recorded by the most recent Evaluate.
	Stat(name string) (any, error)
	Stats() map[string]any

	// Diagnostic naming.
	InputScheme() *ioscheme.Scheme
	OutputScheme() *ioscheme.Scheme
	InputIndex(name string) (int, error)
	OutputIndex(name string) (int, error)
}

// IOBuffer holds the numeric storage of one input or output slot: the
// current value plus one buffer per active forward and adjoint direction.
type IOBuffer struct {
	Value   []float64
	Forward [][]float64
	Adjoint [][]float64
}

func newIOBuffer(size int) *IOBuffer {
	return &IOBuffer{Value: make([]float64, size)}
}

func (b *IOBuffer) setDirections(nFwd, nAdj int) {
	n := len(b.Value)
	b.Forward = make([][]float64, nFwd)
	for d := range b.Forward {
		b.Forward[d] = make([]float64, n)
	}
	b.Adjoint = make([][]float64, nAdj)
	for d := range b.Adjoint {
		b.Adjoint[d] = make([]float64, n)
	}
}

type spKey struct {
	oind    int
	iind    int
	compact bool
}

// Base carries the state shared by every function kind: the I/O buffer set,
// direction counts, the sparsity cache, statistics and IO schemes. Concrete
// kinds embed it.
type Base struct {
	in  []*IOBuffer
	out []*IOBuffer

	nFwd int
	nAdj int

	inScheme  *ioscheme.Scheme
	outScheme *ioscheme.Scheme

	stats   map[string]any
	spCache map[spKey]*sparsity.Pattern

	// Boolean dependency words, one word per scalar, allocated by spInit.
	spIn  [][]uint64
	spOut [][]uint64

	initialized bool
}

func newBase(inSizes, outSizes []int) (*Base, error) {
	if len(inSizes) == 0 || len(outSizes) == 0 {
		return nil, fmt.Errorf("%w: function needs at least one input and one output slot", ErrConfiguration)
	}
	b := &Base{
		in:        make([]*IOBuffer, len(inSizes)),
		out:       make([]*IOBuffer, len(outSizes)),
		inScheme:  ioscheme.Default("i", len(inSizes)),
		outScheme: ioscheme.Default("o", len(outSizes)),
		stats:     make(map[string]any),
		spCache:   make(map[spKey]*sparsity.Pattern),
	}
	for i, n := range inSizes {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative size for input %d", ErrConfiguration, i)
		}
		b.in[i] = newIOBuffer(n)
	}
	for i, n := range outSizes {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative size for output %d", ErrConfiguration, i)
		}
		b.out[i] = newIOBuffer(n)
	}
	b.initialized = true
	return b, nil
}

// NumInputs returns the number of input slots.
func (b *Base) NumInputs() int { return len(b.in) }

// NumOutputs returns the number of output slots.
func (b *Base) NumOutputs() int { return len(b.out) }

// NumForward returns the active forward direction count.
func (b *Base) NumForward() int { return b.nFwd }

// NumAdjoint returns the active adjoint direction count.
func (b *Base) NumAdjoint() int { return b.nAdj }

func (b *Base) inputBuffer(iind int) (*IOBuffer, error) {
	if iind < 0 || iind >= len(b.in) {
		return nil, fmt.Errorf("%w: input %d, function has %d inputs", ErrOutOfRange, iind, len(b.in))
	}
	return b.in[iind], nil
}

func (b *Base) outputBuffer(oind int) (*IOBuffer, error) {
	if oind < 0 || oind >= len(b.out) {
		return nil, fmt.Errorf("%w: output %d, function has %d outputs", ErrOutOfRange, oind, len(b.out))
	}
	return b.out[oind], nil
}

// InputSize returns the scalar count of input slot iind.
func (b *Base) InputSize(iind int) (int, error) {
	buf, err := b.inputBuffer(iind)
	if err != nil {
		return 0, err
	}
	return len(buf.Value), nil
}

// OutputSize returns the scalar count of output slot oind.
func (b *Base) OutputSize(oind int) (int, error) {
	buf, err := b.outputBuffer(oind)
	if err != nil {
		return 0, err
	}
	return len(buf.Value), nil
}

// SetDirections (re)allocates the forward and adjoint direction buffers on
// every slot. Previously returned seed/sensitivity slices are detached.
// The Jacobian sparsity cache is unaffected: direction counts do not change
// structure.
func (b *Base) SetDirections(nFwd, nAdj int) error {
	if nFwd < 0 || nAdj < 0 {
		return fmt.Errorf("%w: direction counts %d, %d", ErrOutOfRange, nFwd, nAdj)
	}
	b.nFwd, b.nAdj = nFwd, nAdj
	for _, buf := range b.in {
		buf.setDirections(nFwd, nAdj)
	}
	for _, buf := range b.out {
		buf.setDirections(nFwd, nAdj)
	}
	return nil
}

// Input returns the value buffer of input slot iind.
func (b *Base) Input(iind int) ([]float64, error) {
	buf, err := b.inputBuffer(iind)
	if err != nil {
		return nil, err
	}
	return buf.Value, nil
}

// Output returns the value buffer of output slot oind.
func (b *Base) Output(oind int) ([]float64, error) {
	buf, err := b.outputBuffer(oind)
	if err != nil {
		return nil, err
	}
	return buf.Value, nil
}

// SetInput copies values into input slot iind.
func (b *Base) SetInput(iind int, values []float64) error {
	buf, err := b.inputBuffer(iind)
	if err != nil {
		return err
	}
	if len(values) != len(buf.Value) {
		return fmt.Errorf("%w: input %d has size %d, got %d values", ErrOutOfRange, iind, len(buf.Value), len(values))
	}
	copy(buf.Value, values)
	return nil
}

func (b *Base) direction(buffers [][]float64, dir int, kind string) ([]float64, error) {
	if dir < 0 || dir >= len(buffers) {
		return nil, fmt.Errorf("%w: %s direction %d, %d active", ErrOutOfRange, kind, dir, len(buffers))
	}
	return buffers[dir], nil
}

// ForwardSeed returns the forward seed buffer of input iind, direction dir.
func (b *Base) ForwardSeed(iind, dir int) ([]float64, error) {
	buf, err := b.inputBuffer(iind)
	if err != nil {
		return nil, err
	}
	return b.direction(buf.Forward, dir, "forward")
}

// ForwardSens returns the forward sensitivity buffer of output oind,
// direction dir.
func (b *Base) ForwardSens(oind, dir int) ([]float64, error) {
	buf, err := b.outputBuffer(oind)
	if err != nil {
		return nil, err
	}
	return b.direction(buf.Forward, dir, "forward")
}

// AdjointSeed returns the adjoint seed buffer of output oind, direction dir.
func (b *Base) AdjointSeed(oind, dir int) ([]float64, error) {
	buf, err := b.outputBuffer(oind)
	if err != nil {
		return nil, err
	}
	return b.direction(buf.Adjoint, dir, "adjoint")
}

// AdjointSens returns the adjoint sensitivity buffer of input iind,
// direction dir.
func (b *Base) AdjointSens(iind, dir int) ([]float64, error) {
	buf, err := b.inputBuffer(iind)
	if err != nil {
		return nil, err
	}
	return b.direction(buf.Adjoint, dir, "adjoint")
}

// SetForwardSeed copies values into the forward seed of input iind,
// direction dir.
func (b *Base) SetForwardSeed(iind, dir int, values []float64) error {
	dst, err := b.ForwardSeed(iind, dir)
	if err != nil {
		return err
	}
	if len(values) != len(dst) {
		return fmt.Errorf("%w: input %d has size %d, got %d seed values", ErrOutOfRange, iind, len(dst), len(values))
	}
	copy(dst, values)
	return nil
}

// SetAdjointSeed copies values into the adjoint seed of output oind,
// direction dir.
func (b *Base) SetAdjointSeed(oind, dir int, values []float64) error {
	dst, err := b.AdjointSeed(oind, dir)
	if err != nil {
		return err
	}
	if len(values) != len(dst) {
		return fmt.Errorf("%w: output %d has size %d, got %d seed values", ErrOutOfRange, oind, len(dst), len(values))
	}
	copy(dst, values)
	return nil
}

// Stat returns a statistic recorded by the most recent Evaluate.
func (b *Base) Stat(name string) (any, error) {
	v, ok := b.stats[name]
	if !ok {
		return nil, fmt.Errorf("%w: statistic %q", ErrNotFound, name)
	}
	return v, nil
}

// Stats returns all statistics recorded by the most recent Evaluate. The
// map is live; callers must not modify it.
func (b *Base) Stats() map[string]any { return b.stats }

// InputScheme returns the input naming scheme.
func (b *Base) InputScheme() *ioscheme.Scheme { return b.inScheme }

// OutputScheme returns the output naming scheme.
func (b *Base) OutputScheme() *ioscheme.Scheme { return b.outScheme }

// SetSchemes replaces the IO naming schemes. Lengths must match the arity.
func (b *Base) SetSchemes(in, out *ioscheme.Scheme) error {
	if in != nil {
		if in.Len() != len(b.in) {
			return fmt.Errorf("%w: input scheme has %d entries for %d inputs", ErrConfiguration, in.Len(), len(b.in))
		}
		b.inScheme = in
	}
	if out != nil {
		if out.Len() != len(b.out) {
			return fmt.Errorf("%w: output scheme has %d entries for %d outputs", ErrConfiguration, out.Len(), len(b.out))
		}
		b.outScheme = out
	}
	return nil
}

// InputIndex looks up an input slot by scheme name.
func (b *Base) InputIndex(name string) (int, error) {
	return b.inScheme.Index(name)
}

// OutputIndex looks up an output slot by scheme name.
func (b *Base) OutputIndex(name string) (int, error) {
	return b.outScheme.Index(name)
}
