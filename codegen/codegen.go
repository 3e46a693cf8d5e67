// Package codegen is the emission boundary used by compiler front ends. A
// Generator hands out fresh label identifiers and appends instructions to
// the program under construction.
package codegen

import (
	"fmt"

	"github.com/sarchlab/slx/core"
	"github.com/sarchlab/slx/isa"
)

// Generator builds one program. It is not safe for concurrent use.
type Generator struct {
	prog      *core.Program
	nextLabel int32
}

// New returns a generator with an empty program and the label counter at 0.
func New() *Generator {
	return &Generator{prog: core.NewProgram()}
}

// NewLabel returns a label identifier that has not been handed out by this
// generator before.
func (g *Generator) NewLabel() int32 {
	l := g.nextLabel
	g.nextLabel++
	return l
}

// Emit appends the instruction named by mnemonic. Unknown mnemonics wrap
// core.ErrUnknownOpcode; a wrong parameter count wraps isa.ErrInvalidArity.
// Nothing is appended on error.
func (g *Generator) Emit(mnemonic string, params ...int32) error {
	op, ok := isa.Lookup(mnemonic)
	if !ok {
		return fmt.Errorf("codegen: %w: %q", core.ErrUnknownOpcode, mnemonic)
	}
	return g.EmitOp(op, params...)
}

// EmitOp appends an instruction by opcode.
func (g *Generator) EmitOp(op isa.Opcode, params ...int32) error {
	if err := g.prog.Emit(op, params...); err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	return nil
}

// PlaceLabel emits LAB for a label obtained from NewLabel.
func (g *Generator) PlaceLabel(label int32) error {
	return g.EmitOp(isa.LAB, label)
}

// Program returns the program emitted so far.
func (g *Generator) Program() *core.Program {
	return g.prog
}
