// Package graph defines the flat instruction-tape form of an expression
// graph: a topologically ordered list of scalar operations over a work
// vector, with explicit input/output binding instructions.
//
// The package is a data representation only. It does not build expressions
// symbolically and it does not evaluate anything itself; the function core
// interprets the same tape under three algebras (numeric value, numeric
// directional derivative, boolean dependency).
package graph

import "fmt"

// Opcode identifies a scalar operation on the work vector.
type Opcode uint8

// Supported opcodes.
const (
	// Const loads Consts[Slot] into work[Res].
	Const Opcode = iota
	// Input loads input slot Slot, element Elem into work[Res].
	Input
	// Output stores work[A0] into output slot Slot, element Elem.
	Output

	// Binary operations: work[Res] = work[A0] op work[A1].
	Add
	Sub
	Mul
	Div

	// Unary operations: work[Res] = op(work[A0]).
	Neg
	Sin
	Cos
	Exp
	Log
	Sqrt
	Sq
)

var opNames = [...]string{
	Const: "const", Input: "input", Output: "output",
	Add: "add", Sub: "sub", Mul: "mul", Div: "div",
	Neg: "neg", Sin: "sin", Cos: "cos", Exp: "exp",
	Log: "log", Sqrt: "sqrt", Sq: "sq",
}

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Arity returns the number of work-vector operands the opcode reads.
func (op Opcode) Arity() int {
	switch op {
	case Const, Input:
		return 0
	case Output, Neg, Sin, Cos, Exp, Log, Sqrt, Sq:
		return 1
	case Add, Sub, Mul, Div:
		return 2
	}
	return 0
}

// Instruction is one step of the tape.
//
// Field use depends on Op:
//   - Const:  Res = destination, Slot = constant index
//   - Input:  Res = destination, Slot/Elem = input scalar
//   - Output: A0 = source, Slot/Elem = output scalar
//   - unary:  A0 = operand, Res = destination
//   - binary: A0, A1 = operands, Res = destination
type Instruction struct {
	Op     Opcode
	A0, A1 int
	Res    int
	Slot   int
	Elem   int
}

// Algorithm is a complete tape: arity, constants, the instruction list and
// the size of the scalar work vector the instructions address.
type Algorithm struct {
	InSizes  []int
	OutSizes []int
	Consts   []float64
	Instrs   []Instruction
	WorkSize int
}

// NumInstr returns the number of instructions.
func (a *Algorithm) NumInstr() int { return len(a.Instrs) }

// Validate checks structural well-formedness: slot/element/work bounds,
// every work location written before it is read (topological order), and
// single assignment per work location. Single assignment is what lets the
// adjoint sweep read any intermediate value after one forward pass.
func (a *Algorithm) Validate() error {
	if a == nil {
		return fmt.Errorf("graph: nil algorithm")
	}
	for i, n := range a.InSizes {
		if n < 0 {
			return fmt.Errorf("graph: negative size for input %d", i)
		}
	}
	for i, n := range a.OutSizes {
		if n < 0 {
			return fmt.Errorf("graph: negative size for output %d", i)
		}
	}
	written := make([]bool, a.WorkSize)
	checkRead := func(i, w int) error {
		if w < 0 || w >= a.WorkSize {
			return fmt.Errorf("graph: instruction %d reads work[%d], work size %d", i, w, a.WorkSize)
		}
		if !written[w] {
			return fmt.Errorf("graph: instruction %d reads work[%d] before it is written", i, w)
		}
		return nil
	}
	checkWrite := func(i, w int) error {
		if w < 0 || w >= a.WorkSize {
			return fmt.Errorf("graph: instruction %d writes work[%d], work size %d", i, w, a.WorkSize)
		}
		if written[w] {
			return fmt.Errorf("graph: instruction %d rewrites work[%d]; work locations are single assignment", i, w)
		}
		written[w] = true
		return nil
	}
	for i, in := range a.Instrs {
		switch in.Op {
		case Const:
			if in.Slot < 0 || in.Slot >= len(a.Consts) {
				return fmt.Errorf("graph: instruction %d references constant %d of %d", i, in.Slot, len(a.Consts))
			}
			if err := checkWrite(i, in.Res); err != nil {
				return err
			}
		case Input:
			if in.Slot < 0 || in.Slot >= len(a.InSizes) {
				return fmt.Errorf("graph: instruction %d references input slot %d of %d", i, in.Slot, len(a.InSizes))
			}
			if in.Elem < 0 || in.Elem >= a.InSizes[in.Slot] {
				return fmt.Errorf("graph: instruction %d references element %d of input %d (size %d)",
					i, in.Elem, in.Slot, a.InSizes[in.Slot])
			}
			if err := checkWrite(i, in.Res); err != nil {
				return err
			}
		case Output:
			if in.Slot < 0 || in.Slot >= len(a.OutSizes) {
				return fmt.Errorf("graph: instruction %d references output slot %d of %d", i, in.Slot, len(a.OutSizes))
			}
			if in.Elem < 0 || in.Elem >= a.OutSizes[in.Slot] {
				return fmt.Errorf("graph: instruction %d references element %d of output %d (size %d)",
					i, in.Elem, in.Slot, a.OutSizes[in.Slot])
			}
			if err := checkRead(i, in.A0); err != nil {
				return err
			}
		case Add, Sub, Mul, Div:
			if err := checkRead(i, in.A0); err != nil {
				return err
			}
			if err := checkRead(i, in.A1); err != nil {
				return err
			}
			if err := checkWrite(i, in.Res); err != nil {
				return err
			}
		case Neg, Sin, Cos, Exp, Log, Sqrt, Sq:
			if err := checkRead(i, in.A0); err != nil {
				return err
			}
			if err := checkWrite(i, in.Res); err != nil {
				return err
			}
		default:
			return fmt.Errorf("graph: instruction %d has unknown opcode %d", i, in.Op)
		}
	}
	return nil
}
