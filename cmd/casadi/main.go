// Package main provides the CasADi-Go CLI.
package main

import (
	"fmt"
	"os"

	"github.com/weigaofei/casadi/linsol"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("CasADi-Go %s\n", version)
			return
		case "solvers":
			linsol.RegisterBuiltins()
			for _, name := range linsol.Names() {
				p, err := linsol.Find(name)
				if err != nil {
					continue
				}
				fmt.Printf("  %-10s %s (%s)\n", p.Name, p.Doc, p.Version)
			}
			return
		}
	}

	fmt.Println("CasADi-Go - Differentiable Functions and Sparse Linear Solvers for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  solvers    List the built-in linear solver backends")
}
