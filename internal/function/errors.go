package function

import "errors"

// Common errors.
var (
	// ErrConfiguration indicates an invalid arity or direction setup at
	// construction time.
	ErrConfiguration = errors.New("invalid function configuration")

	// ErrOutOfRange indicates a bad slot or direction argument. Arguments
	// are never clamped.
	ErrOutOfRange = errors.New("index or direction out of range")

	// ErrNotInitialized indicates an operation that needs state not yet
	// established (for example derivative propagation before Evaluate on
	// a function that requires a bound factorization).
	ErrNotInitialized = errors.New("function not initialized for this operation")

	// ErrNotFound indicates a missing named entry or statistic.
	ErrNotFound = errors.New("no such entry")
)
