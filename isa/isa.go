// Package isa defines the SLX instruction set: the closed set of opcodes and
// the number of integer parameters each of them takes.
package isa

import (
	"errors"
	"fmt"
	"strings"
)

// Opcode identifies one SLX instruction kind.
type Opcode uint8

// The SLX instruction set. The order matches the reference command table.
const (
	LAB Opcode = iota // define label: LAB <label>
	JZE               // jump to <label> if pop() == 0
	JMP               // jump to <label>
	ALC               // allocate pop() words on the heap, push address
	SFR               // store frame: SFR <offset>
	SBR               // call subroutine: SBR <label> <nargs>
	RET               // return from subroutine
	ENT               // push <value>
	STL               // x = pop(); mem[FP + pop()] = x
	STM               // x = pop(); mem[pop()] = x
	LDL               // push mem[FP + pop()]
	LDM               // push mem[pop()]
	ADD               // x = pop(); y = pop(); push y + x
	SUB               // x = pop(); y = pop(); push y - x
	MUL               // x = pop(); y = pop(); push y * x
	DIV               // x = pop(); y = pop(); push y / x
	UMN               // push -pop()
	WRI               // write pop()
	REA               // read an integer and push it
	REQ               // x = pop(); y = pop(); push y == x
	RNE               // x = pop(); y = pop(); push y != x
	RLT               // x = pop(); y = pop(); push y < x
	RGT               // x = pop(); y = pop(); push y > x
	RLE               // x = pop(); y = pop(); push y <= x
	RGE               // x = pop(); y = pop(); push y >= x
	NOT               // push !pop()
	HLT               // stop the program

	numOpcodes
)

var names = [numOpcodes]string{
	LAB: "LAB", JZE: "JZE", JMP: "JMP", ALC: "ALC", SFR: "SFR", SBR: "SBR",
	RET: "RET", ENT: "ENT", STL: "STL", STM: "STM", LDL: "LDL", LDM: "LDM",
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", UMN: "UMN", WRI: "WRI",
	REA: "REA", REQ: "REQ", RNE: "RNE", RLT: "RLT", RGT: "RGT", RLE: "RLE",
	RGE: "RGE", NOT: "NOT", HLT: "HLT",
}

var arities = [numOpcodes]int{
	LAB: 1, JZE: 1, JMP: 1, SFR: 1, SBR: 2, ENT: 1,
}

var byName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := Opcode(0); op < numOpcodes; op++ {
		m[names[op]] = op
	}
	return m
}()

// ErrInvalidArity is returned when an instruction is built with a parameter
// count different from its opcode's arity.
var ErrInvalidArity = errors.New("invalid arity")

// ArityError reports a parameter count mismatch for one opcode.
type ArityError struct {
	Op   Opcode
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s takes %d parameter(s), got %d", e.Op, e.Want, e.Got)
}

func (e *ArityError) Unwrap() error {
	return ErrInvalidArity
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	return op < numOpcodes
}

// Arity returns the number of parameters op takes. Opcodes outside the set
// report -1 so that no parameter count can match them.
func (op Opcode) Arity() int {
	if !op.Valid() {
		return -1
	}
	return arities[op]
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
	return names[op]
}

// Lookup resolves a mnemonic, ignoring case.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := byName[strings.ToUpper(mnemonic)]
	return op, ok
}

// All returns every opcode in declaration order.
func All() []Opcode {
	ops := make([]Opcode, 0, numOpcodes)
	for op := Opcode(0); op < numOpcodes; op++ {
		ops = append(ops, op)
	}
	return ops
}

// CheckArity returns an *ArityError if n is not the arity of op.
func CheckArity(op Opcode, n int) error {
	if op.Arity() != n {
		return &ArityError{Op: op, Want: op.Arity(), Got: n}
	}
	return nil
}
