package core

import (
	"io"
	"strings"

	"github.com/sarchlab/slx/isa"
)

// Program is an ordered sequence of instructions plus the index of label
// positions. A Program must not be modified while a Machine runs it; once
// built it can be shared by any number of runs.
type Program struct {
	insts  []Instruction
	labels map[int32]int
}

// NewProgram returns an empty program ready for emission.
func NewProgram() *Program {
	return &Program{labels: make(map[int32]int)}
}

// Emit appends one instruction built from op and params. A LAB
// instruction also records its label at the new position.
func (p *Program) Emit(op isa.Opcode, params ...int32) error {
	inst, err := NewInstruction(op, params, 0)
	if err != nil {
		return err
	}

	p.Append(inst)

	return nil
}

// Append adds an already validated instruction to the end of the program.
func (p *Program) Append(inst Instruction) {
	if p.labels == nil {
		p.labels = make(map[int32]int)
	}

	p.insts = append(p.insts, inst)

	if inst.op == isa.LAB {
		// A repeated label id moves the label to the latest LAB.
		p.labels[inst.params[0]] = len(p.insts) - 1
	}
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.insts)
}

// At returns the instruction at position pc.
func (p *Program) At(pc int) Instruction {
	return p.insts[pc]
}

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction {
	return append([]Instruction(nil), p.insts...)
}

// Label returns the position of the LAB instruction defining label.
func (p *Program) Label(label int32) (int, bool) {
	pc, ok := p.labels[label]
	return pc, ok
}

// Labels returns a copy of the label index.
func (p *Program) Labels() map[int32]int {
	m := make(map[int32]int, len(p.labels))
	for k, v := range p.labels {
		m[k] = v
	}
	return m
}

// Equal reports whether both programs hold the same instructions and label
// index. Source lines are not compared.
func (p *Program) Equal(o *Program) bool {
	if len(p.insts) != len(o.insts) || len(p.labels) != len(o.labels) {
		return false
	}
	for i := range p.insts {
		if !p.insts[i].Equal(o.insts[i]) {
			return false
		}
	}
	for k, v := range p.labels {
		if ov, ok := o.labels[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Render serializes the program to the line-oriented text format.
func (p *Program) Render() string {
	var sb strings.Builder
	for _, inst := range p.insts {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteTo writes the rendered program to w.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.Render())
	return int64(n), err
}
