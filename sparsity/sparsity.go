// Copyright 2026 The CasADi-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sparsity provides compressed column storage sparsity patterns.
//
// A Pattern records which entries of a matrix are structurally nonzero,
// independent of their numeric values. Patterns are immutable; the algebra
// (union, product, transpose) always returns new instances.
//
// Example:
//
//	import "github.com/weigaofei/casadi/sparsity"
//
//	func main() {
//	    // Tridiagonal-ish pattern from coordinate triplets
//	    p, err := sparsity.FromTriplets(3, 3,
//	        []int{0, 1, 1, 2}, []int{0, 0, 1, 2})
//	    if err != nil {
//	        panic(err)
//	    }
//	    fmt.Println(p.NNZ(), p.Has(1, 0))
//	}
package sparsity

import (
	"github.com/weigaofei/casadi/internal/sparsity"
)

// Pattern is an immutable structural sparsity pattern in compressed column
// storage.
type Pattern = sparsity.Pattern

// New builds a pattern from raw compressed column storage.
func New(nrow, ncol int, colind, row []int) (*Pattern, error) {
	return sparsity.New(nrow, ncol, colind, row)
}

// Empty returns the nrow x ncol pattern with no nonzeros.
func Empty(nrow, ncol int) *Pattern { return sparsity.Empty(nrow, ncol) }

// Dense returns the fully populated nrow x ncol pattern.
func Dense(nrow, ncol int) *Pattern { return sparsity.Dense(nrow, ncol) }

// Diag returns the n x n diagonal pattern.
func Diag(n int) *Pattern { return sparsity.Diag(n) }

// FromTriplets builds a pattern from coordinate pairs; duplicates collapse.
func FromTriplets(nrow, ncol int, rows, cols []int) (*Pattern, error) {
	return sparsity.FromTriplets(nrow, ncol, rows, cols)
}
