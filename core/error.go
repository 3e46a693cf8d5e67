package core

import (
	"errors"
	"fmt"
)

// FaultKind describes why a run was stopped.
type FaultKind int

// Runtime fault kinds.
const (
	StackUnderflow FaultKind = iota
	OutOfBounds
	DivisionByZero
	UnknownLabel
	UnknownInstruction
	RunawayProgram
	InputExhausted
	HeapCollision
	IOFailure
)

var faultNames = []string{
	"stack underflow",
	"out of bounds",
	"division by zero",
	"unknown label",
	"unknown instruction",
	"runaway program",
	"input exhausted",
	"heap collision",
	"I/O failure",
}

func (k FaultKind) Error() string {
	if k < 0 || int(k) >= len(faultNames) {
		return fmt.Sprintf("fault(%d)", int(k))
	}
	return faultNames[k]
}

// ErrInputExhausted is returned by an InputSource with no values left.
var ErrInputExhausted = errors.New("input exhausted")

// Fault describes a terminal runtime error and the machine context in which
// it happened.
type Fault struct {
	Kind  FaultKind
	Msg   string
	Err   error       // underlying error for IOFailure
	PC    int         // position of the faulting instruction, -1 if none
	Instr Instruction // the faulting instruction
	Step  int         // instructions executed before the fault
	Stack []int32     // copy of the operand stack at the fault
}

func (f *Fault) Error() string {
	msg := "slx: " + f.Kind.Error()
	if f.Msg != "" {
		msg += ": " + f.Msg
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	if f.PC >= 0 {
		msg += fmt.Sprintf(" at %d (%s", f.PC, f.Instr)
		if f.Instr.Line() > 0 {
			msg += fmt.Sprintf(", line %d", f.Instr.Line())
		}
		msg += ")"
	}
	return msg
}

// Unwrap exposes the kind, so errors.Is(err, DivisionByZero) holds for a
// division fault.
func (f *Fault) Unwrap() []error {
	if f.Err != nil {
		return []error{f.Kind, f.Err}
	}
	return []error{f.Kind}
}
