package linsol

import "errors"

// Common errors.
var (
	// ErrBackendInit indicates that a backend could not set up its private
	// state for the given sparsity pattern (for example a structurally
	// singular pattern detectable upfront).
	ErrBackendInit = errors.New("backend initialization failed")

	// ErrFactorization indicates a singular or numerically unstable
	// factorization. After this error the instance is not factored and
	// Solve is rejected until a factorization succeeds.
	ErrFactorization = errors.New("factorization failed")

	// ErrUnsupported indicates that the backend cannot perform the
	// requested mode (for example a transposed solve). The backend never
	// approximates instead.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrNotFactored indicates Solve was called without a preceding
	// successful Factor.
	ErrNotFactored = errors.New("solve requires a successful factorization")

	// ErrNumeric indicates an opaque backend runtime failure during a
	// solve (breakdown, divergence). The factorization state is unchanged.
	ErrNumeric = errors.New("numeric failure in backend solve")

	// ErrFreed indicates use of solver memory after Free.
	ErrFreed = errors.New("solver memory already freed")

	// ErrNotFound indicates a registry lookup for an unregistered name.
	ErrNotFound = errors.New("no linear solver backend registered under that name")
)
