// Copyright 2026 The CasADi-Go Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package linsol provides the pluggable sparse linear solver subsystem: a
// backend interface, a process-wide name-keyed registry and the built-in
// backends.
//
// Registration is explicit. Call RegisterBuiltins once at startup, or
// Register your own Plugin, then bind a backend by name:
//
//	import (
//	    "github.com/weigaofei/casadi/function"
//	    "github.com/weigaofei/casadi/linsol"
//	)
//
//	func main() {
//	    linsol.RegisterBuiltins()
//	    f, err := function.NewLinearSolve(pattern, 1, "lu", nil)
//	    ...
//	}
package linsol

import (
	"sync"

	"github.com/weigaofei/casadi/internal/linsol"
	"github.com/weigaofei/casadi/internal/linsol/bicgstab"
	"github.com/weigaofei/casadi/internal/linsol/denselu"
	"github.com/weigaofei/casadi/internal/linsol/denseqr"
)

// Backend is the linear solver backend interface.
type Backend = linsol.Backend

// Memory is an opaque per-instance backend handle.
type Memory = linsol.Memory

// Plugin is the registration record of a backend.
type Plugin = linsol.Plugin

// Capability is a bit set of optional backend features.
type Capability = linsol.Capability

// Optional backend features.
const (
	CapTranspose   = linsol.CapTranspose
	CapMultipleRHS = linsol.CapMultipleRHS
)

// Sentinel errors returned by backends and the registry.
var (
	ErrBackendInit   = linsol.ErrBackendInit
	ErrFactorization = linsol.ErrFactorization
	ErrUnsupported   = linsol.ErrUnsupported
	ErrNotFactored   = linsol.ErrNotFactored
	ErrNumeric       = linsol.ErrNumeric
	ErrFreed         = linsol.ErrFreed
	ErrNotFound      = linsol.ErrNotFound
)

// Register adds a plugin to the process-wide registry. A duplicate name
// overwrites the previous record.
func Register(p Plugin) error { return linsol.Register(p) }

// Find returns the plugin registered under name.
func Find(name string) (Plugin, error) { return linsol.Find(name) }

// Names returns the registered backend names, sorted.
func Names() []string { return linsol.Names() }

var builtinsOnce sync.Once

// RegisterBuiltins registers the built-in backends: "lu" (dense LU with
// partial pivoting), "qr" (dense Householder QR) and "bicgstab" (matrix-free
// iterative solver with Jacobi preconditioning). Safe to call more than once.
func RegisterBuiltins() {
	builtinsOnce.Do(func() {
		for _, p := range []Plugin{denselu.Plugin(), denseqr.Plugin(), bicgstab.Plugin()} {
			if err := Register(p); err != nil {
				panic(err)
			}
		}
	})
}
