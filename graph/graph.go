// Copyright 2026 The CasADi-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the scalar expression tape consumed by the
// function package.
//
// A Builder assembles an Algorithm instruction by instruction; the result
// is topologically ordered by construction and ready for numeric
// evaluation, derivative propagation and dependency analysis.
//
// Example:
//
//	import "github.com/weigaofei/casadi/graph"
//
//	func main() {
//	    b := graph.NewBuilder([]int{2}, []int{1})
//	    x := b.Input(0, 0)
//	    y := b.Input(0, 1)
//	    b.Output(0, 0, b.Add(b.Sq(x), b.Sin(y)))
//	    alg, err := b.Finish()
//	    ...
//	}
package graph

import (
	"github.com/weigaofei/casadi/internal/graph"
)

// Algorithm is a validated instruction tape.
type Algorithm = graph.Algorithm

// Builder assembles an Algorithm incrementally.
type Builder = graph.Builder

// Node is a handle to an intermediate value inside a Builder.
type Node = graph.Node

// NewBuilder starts an algorithm with the given input and output slot sizes.
func NewBuilder(inSizes, outSizes []int) *Builder {
	return graph.NewBuilder(inSizes, outSizes)
}
