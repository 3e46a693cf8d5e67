package core

import (
	"strconv"
	"strings"

	"github.com/sarchlab/slx/isa"
)

// Instruction is one decoded SLX instruction. It is immutable once built.
type Instruction struct {
	op     isa.Opcode
	params []int32
	line   int
}

// NewInstruction builds an instruction, checking the parameter count
// against the opcode's arity. line is the 1-based source line, or 0 when
// the instruction does not come from text.
func NewInstruction(op isa.Opcode, params []int32, line int) (Instruction, error) {
	if err := isa.CheckArity(op, len(params)); err != nil {
		return Instruction{}, err
	}

	inst := Instruction{op: op, line: line}
	if len(params) > 0 {
		inst.params = append(make([]int32, 0, len(params)), params...)
	}

	return inst, nil
}

// Opcode returns the instruction kind.
func (i Instruction) Opcode() isa.Opcode {
	return i.op
}

// Param returns the n-th parameter.
func (i Instruction) Param(n int) int32 {
	return i.params[n]
}

// Params returns a copy of the parameters.
func (i Instruction) Params() []int32 {
	return append([]int32(nil), i.params...)
}

// Line returns the source line the instruction was decoded from, 0 if
// unknown.
func (i Instruction) Line() int {
	return i.line
}

// Equal compares opcode and parameters, ignoring the source line.
func (i Instruction) Equal(o Instruction) bool {
	if i.op != o.op || len(i.params) != len(o.params) {
		return false
	}
	for n := range i.params {
		if i.params[n] != o.params[n] {
			return false
		}
	}
	return true
}

// String renders the instruction in the text program format.
func (i Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.op.String())
	for _, p := range i.params {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(int64(p), 10))
	}
	return sb.String()
}
