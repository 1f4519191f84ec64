// Package linsol defines the pluggable sparse linear solver contract: an
// interchangeable factor/solve capability bound to a fixed sparsity pattern,
// selected by name at configuration time from a process-wide registry.
//
// A backend instance moves through a small state machine:
//
//	Created (pattern fixed) -> Factored (numeric values bound) -> Factored | Created
//
// Solve is legal only in the Factored state; a failed Factor demotes the
// instance back to Created. The sparsity pattern supplied at Create never
// changes for the instance's lifetime — a structural change requires freeing
// the instance and creating a new one.
package linsol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// Capability describes optional solve modes a backend supports natively.
type Capability uint8

// Capability bits.
const (
	// CapTranspose: the backend can solve A^T x = b.
	CapTranspose Capability = 1 << iota
	// CapMultipleRHS: the backend solves batched right-hand sides natively.
	// Backends without it still accept nrhs > 1 and loop internally.
	CapMultipleRHS
)

// Has reports whether all bits in want are set.
func (c Capability) Has(want Capability) bool { return c&want == want }

// State is the lifecycle state of a solver instance.
type State uint8

// Instance states.
const (
	// Created: pattern fixed, no valid numeric factorization.
	Created State = iota
	// Factored: a numeric factorization is bound; Solve is legal.
	Factored
)

// Backend is an interchangeable sparse direct (or iterative) solve
// capability. Implementations are stateless; all per-instance state lives in
// the Memory handle returned by Create.
//
// Callers must not invoke Factor, Solve or Free concurrently on the same
// Memory; an instance is exclusively owned by the function that created it.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Capabilities reports the natively supported solve modes.
	Capabilities() Capability

	// Create allocates backend-private state against a fixed pattern and
	// performs any one-time structural analysis. Returns ErrBackendInit
	// (wrapped) for patterns the backend can reject upfront.
	Create(pattern *sparsity.Pattern, opts options.Dict) (Memory, error)

	// Factor (re)computes the numeric factorization for values, which are
	// laid out in the nonzero order of the pattern fixed at Create.
	Factor(mem Memory, values []float64) error

	// Solve overwrites rhs with the solution of A x = rhs (or A^T x = rhs
	// when transpose is set), for nrhs columns stored contiguously.
	// values must be the same values passed to the preceding Factor.
	Solve(mem Memory, values []float64, rhs []float64, nrhs int, transpose bool) error

	// Free releases backend-private state. Safe to call exactly once per
	// successful Create.
	Free(mem Memory) error
}

// Memory is the opaque per-instance state handle of a backend. Concrete
// backends embed *BaseMemory and add whatever private state they need.
type Memory interface {
	// ID returns a unique instance tag used in diagnostics.
	ID() string

	// Pattern returns the sparsity pattern fixed at Create.
	Pattern() *sparsity.Pattern

	// State returns the current lifecycle state.
	State() State

	// Stats returns backend-recorded diagnostics for the most recent
	// factor/solve (iteration counts, residual norms). May be empty.
	Stats() map[string]any

	base() *BaseMemory
}

// BaseMemory carries the state shared by every backend's memory handle.
// Backends embed a pointer to it, which also satisfies the unexported part
// of the Memory interface.
type BaseMemory struct {
	id      string
	pattern *sparsity.Pattern
	state   State
	freed   bool
	stats   map[string]any
}

// NewBaseMemory initializes the shared part of a memory handle.
func NewBaseMemory(pattern *sparsity.Pattern) *BaseMemory {
	return &BaseMemory{
		id:      uuid.NewString(),
		pattern: pattern,
		stats:   make(map[string]any),
	}
}

// ID returns the unique instance tag.
func (m *BaseMemory) ID() string { return m.id }

// Pattern returns the pattern fixed at Create.
func (m *BaseMemory) Pattern() *sparsity.Pattern { return m.pattern }

// State returns the lifecycle state.
func (m *BaseMemory) State() State { return m.state }

// Stats returns the diagnostic map. Backends write into it during factor
// and solve.
func (m *BaseMemory) Stats() map[string]any { return m.stats }

func (m *BaseMemory) base() *BaseMemory { return m }

// BeginFactor validates a Factor call and demotes the instance to Created so
// that a failure cannot leave a stale factorization behind. Backends call it
// first in Factor and MarkFactored on success.
func BeginFactor(m Memory, values []float64) error {
	b := m.base()
	if b.freed {
		return fmt.Errorf("%w (instance %s)", ErrFreed, b.id)
	}
	if len(values) != b.pattern.NNZ() {
		return fmt.Errorf("factor: got %d values for a pattern with %d nonzeros", len(values), b.pattern.NNZ())
	}
	b.state = Created
	return nil
}

// MarkFactored promotes the instance to Factored after a successful
// numeric factorization.
func MarkFactored(m Memory) { m.base().state = Factored }

// BeginSolve validates a Solve call against the instance state and the
// backend's capabilities.
func BeginSolve(b Backend, m Memory, rhs []float64, nrhs int, transpose bool) error {
	bm := m.base()
	if bm.freed {
		return fmt.Errorf("%w (instance %s)", ErrFreed, bm.id)
	}
	if bm.state != Factored {
		return fmt.Errorf("%w (backend %q, instance %s)", ErrNotFactored, b.Name(), bm.id)
	}
	if nrhs < 1 {
		return fmt.Errorf("solve: nrhs = %d, want >= 1", nrhs)
	}
	n := bm.pattern.Rows()
	if len(rhs) != n*nrhs {
		return fmt.Errorf("solve: rhs length %d, want %d (%d columns of %d)", len(rhs), n*nrhs, nrhs, n)
	}
	if transpose && !b.Capabilities().Has(CapTranspose) {
		return fmt.Errorf("%w: %q cannot solve transposed systems", ErrUnsupported, b.Name())
	}
	return nil
}

// BeginFree validates a Free call and marks the instance freed.
func BeginFree(m Memory) error {
	b := m.base()
	if b.freed {
		return fmt.Errorf("%w (instance %s)", ErrFreed, b.id)
	}
	b.freed = true
	b.state = Created
	b.stats = nil
	return nil
}
