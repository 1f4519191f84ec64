package graph

import "fmt"

// Node is a handle to an intermediate value inside a Builder. It is only
// meaningful for the Builder that produced it.
type Node int

// Builder assembles an Algorithm incrementally. Operations append
// instructions in construction order, so the resulting tape is topologically
// ordered by construction.
//
// The zero Builder is not usable; create one with NewBuilder.
type Builder struct {
	alg  Algorithm
	err  error
	work int
}

// NewBuilder starts an algorithm with the given input and output slot sizes.
func NewBuilder(inSizes, outSizes []int) *Builder {
	b := &Builder{}
	b.alg.InSizes = append([]int(nil), inSizes...)
	b.alg.OutSizes = append([]int(nil), outSizes...)
	return b
}

func (b *Builder) fail(format string, args ...any) Node {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return Node(-1)
}

func (b *Builder) newWork() int {
	w := b.work
	b.work++
	return w
}

// Input introduces element elem of input slot into the tape.
func (b *Builder) Input(slot, elem int) Node {
	if slot < 0 || slot >= len(b.alg.InSizes) {
		return b.fail("graph: input slot %d out of range", slot)
	}
	if elem < 0 || elem >= b.alg.InSizes[slot] {
		return b.fail("graph: input %d element %d out of range", slot, elem)
	}
	w := b.newWork()
	b.alg.Instrs = append(b.alg.Instrs, Instruction{Op: Input, Res: w, Slot: slot, Elem: elem})
	return Node(w)
}

// Const introduces a literal value into the tape.
func (b *Builder) Const(v float64) Node {
	w := b.newWork()
	b.alg.Consts = append(b.alg.Consts, v)
	b.alg.Instrs = append(b.alg.Instrs, Instruction{Op: Const, Res: w, Slot: len(b.alg.Consts) - 1})
	return Node(w)
}

// Output binds a node to element elem of output slot.
func (b *Builder) Output(slot, elem int, n Node) {
	if slot < 0 || slot >= len(b.alg.OutSizes) {
		b.fail("graph: output slot %d out of range", slot)
		return
	}
	if elem < 0 || elem >= b.alg.OutSizes[slot] {
		b.fail("graph: output %d element %d out of range", slot, elem)
		return
	}
	if !b.valid(n) {
		return
	}
	b.alg.Instrs = append(b.alg.Instrs, Instruction{Op: Output, A0: int(n), Slot: slot, Elem: elem})
}

func (b *Builder) valid(ns ...Node) bool {
	for _, n := range ns {
		if int(n) < 0 || int(n) >= b.work {
			b.fail("graph: node %d is not part of this builder", n)
			return false
		}
	}
	return b.err == nil
}

func (b *Builder) binary(op Opcode, x, y Node) Node {
	if !b.valid(x, y) {
		return Node(-1)
	}
	w := b.newWork()
	b.alg.Instrs = append(b.alg.Instrs, Instruction{Op: op, A0: int(x), A1: int(y), Res: w})
	return Node(w)
}

func (b *Builder) unary(op Opcode, x Node) Node {
	if !b.valid(x) {
		return Node(-1)
	}
	w := b.newWork()
	b.alg.Instrs = append(b.alg.Instrs, Instruction{Op: op, A0: int(x), Res: w})
	return Node(w)
}

// Add returns x + y.
func (b *Builder) Add(x, y Node) Node { return b.binary(Add, x, y) }

// Sub returns x - y.
func (b *Builder) Sub(x, y Node) Node { return b.binary(Sub, x, y) }

// Mul returns x * y.
func (b *Builder) Mul(x, y Node) Node { return b.binary(Mul, x, y) }

// Div returns x / y.
func (b *Builder) Div(x, y Node) Node { return b.binary(Div, x, y) }

// Neg returns -x.
func (b *Builder) Neg(x Node) Node { return b.unary(Neg, x) }

// Sin returns sin(x).
func (b *Builder) Sin(x Node) Node { return b.unary(Sin, x) }

// Cos returns cos(x).
func (b *Builder) Cos(x Node) Node { return b.unary(Cos, x) }

// Exp returns exp(x).
func (b *Builder) Exp(x Node) Node { return b.unary(Exp, x) }

// Log returns log(x).
func (b *Builder) Log(x Node) Node { return b.unary(Log, x) }

// Sqrt returns sqrt(x).
func (b *Builder) Sqrt(x Node) Node { return b.unary(Sqrt, x) }

// Sq returns x^2.
func (b *Builder) Sq(x Node) Node { return b.unary(Sq, x) }

// Finish validates and returns the assembled algorithm. The builder must not
// be used afterwards.
func (b *Builder) Finish() (*Algorithm, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.alg.WorkSize = b.work
	if err := b.alg.Validate(); err != nil {
		return nil, err
	}
	alg := b.alg
	return &alg, nil
}
