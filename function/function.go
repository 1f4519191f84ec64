// Copyright 2026 The CasADi-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package function provides differentiable multi-input, multi-output
// functions with forward and adjoint directional derivatives and structural
// Jacobian sparsity discovery.
//
// Example:
//
//	import (
//	    "github.com/weigaofei/casadi/function"
//	    "github.com/weigaofei/casadi/graph"
//	)
//
//	func main() {
//	    b := graph.NewBuilder([]int{2}, []int{1})
//	    x := b.Input(0, 0)
//	    y := b.Input(0, 1)
//	    b.Output(0, 0, b.Mul(x, b.Sin(y)))
//	    alg, _ := b.Finish()
//
//	    f, _ := function.NewGraphFunction(alg)
//	    f.SetInput(0, []float64{2, 0.5})
//	    f.Evaluate()
//
//	    f.SetDirections(1, 0)
//	    f.SetForwardSeed(0, 0, []float64{1, 0})
//	    f.PropagateForward()
//	    jv, _ := f.ForwardSens(0, 0)
//	    fmt.Println(jv)
//	}
package function

import (
	"github.com/weigaofei/casadi/internal/function"
	"github.com/weigaofei/casadi/internal/graph"
	"github.com/weigaofei/casadi/internal/options"
	"github.com/weigaofei/casadi/internal/sparsity"
)

// Function is the differentiable function abstraction.
type Function = function.Function

// GraphFunction evaluates and differentiates an expression tape.
type GraphFunction = function.GraphFunction

// LinearSolveFunction solves A x = b through a registered linear solver
// backend and differentiates through the solve.
type LinearSolveFunction = function.LinearSolveFunction

// Options is a backend option dictionary.
type Options = options.Dict

// Sentinel errors returned by function operations.
var (
	ErrConfiguration  = function.ErrConfiguration
	ErrOutOfRange     = function.ErrOutOfRange
	ErrNotInitialized = function.ErrNotInitialized
	ErrNotFound       = function.ErrNotFound
)

// NewGraphFunction creates a function from a validated algorithm.
func NewGraphFunction(alg *graph.Algorithm) (*GraphFunction, error) {
	return function.NewGraphFunction(alg)
}

// NewLinearSolve binds a square sparsity pattern and a backend name to a
// new linear solve function. Register backends first, for example with
// linsol.RegisterBuiltins.
func NewLinearSolve(pattern *sparsity.Pattern, nrhs int, backend string, opts Options) (*LinearSolveFunction, error) {
	return function.NewLinearSolve(pattern, nrhs, backend, opts)
}
