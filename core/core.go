package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

type machineState struct {
	Memory []int32
	Stack  []int32
	PC     int
	FP     int
	HP     int
	Steps  int
	Output []int32
	Halted bool
}

// Registers is a snapshot of the machine registers.
type Registers struct {
	PC    int
	FP    int
	HP    int
	Steps int
}

// Machine executes one program. Each Run starts from fresh state; a machine
// must not be used from more than one goroutine at a time, but any number
// of machines may share a Program.
type Machine struct {
	id       string
	prog     *Program
	memSize  int
	maxSteps int
	logger   *slog.Logger
	dump     io.Writer

	state  machineState
	emu    instEmulator
	lastPC int
	fault  *Fault
}

// ID returns the identifier attached to the machine's log records.
func (m *Machine) ID() string {
	return m.id
}

// Program returns the program the machine runs.
func (m *Machine) Program() *Program {
	return m.prog
}

// Reset discards all run state: memory, stack, registers and output. A
// rewindable input source starts over.
func (m *Machine) Reset() {
	m.state = machineState{
		Memory: make([]int32, m.memSize),
		Stack:  make([]int32, 0, 64),
		HP:     m.memSize,
	}
	m.lastPC = -1
	m.fault = nil

	if r, ok := m.emu.input.(interface{ Rewind() }); ok {
		r.Rewind()
	}
}

// Run executes the program from the start until it halts. It returns a
// *Fault if a runtime check fails or the step limit is reached.
func (m *Machine) Run() error {
	m.Reset()

	m.logger.Info("start executing", "instructions", m.prog.Len())

	for {
		halted, err := m.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// Step executes a single instruction. It reports true once the machine has
// halted, either normally or because of a fault.
func (m *Machine) Step() (bool, error) {
	if m.fault != nil {
		return true, m.fault
	}
	if m.state.Halted {
		return true, nil
	}

	if m.state.Steps >= m.maxSteps {
		m.lastPC = m.state.PC
		return true, m.fail(&Fault{
			Kind: RunawayProgram,
			Msg:  "too many steps",
		})
	}

	pc := m.state.PC
	m.lastPC = pc
	if pc < 0 || pc >= m.prog.Len() {
		return true, m.fail(&Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("program counter %d outside the program", pc),
		})
	}

	inst := m.prog.At(pc)
	m.state.PC++

	if m.logger.Enabled(context.Background(), LevelTrace) {
		trace(m.logger, "exec",
			"pc", pc,
			"inst", inst.String(),
			"fp", m.state.FP,
			"hp", m.state.HP,
			"depth", len(m.state.Stack),
		)
	}

	if err := m.emu.RunInst(inst, &m.state); err != nil {
		var f *Fault
		if !errors.As(err, &f) {
			f = &Fault{Kind: IOFailure, Err: err}
		}
		return true, m.fail(f)
	}

	m.state.Steps++

	if m.state.Halted {
		m.logger.Info("halt", "steps", m.state.Steps, "output", len(m.state.Output))
		return true, nil
	}

	return false, nil
}

func (m *Machine) fail(f *Fault) *Fault {
	f.PC = m.lastPC
	f.Step = m.state.Steps
	f.Stack = append([]int32(nil), m.state.Stack...)
	if m.lastPC >= 0 && m.lastPC < m.prog.Len() {
		f.Instr = m.prog.At(m.lastPC)
	} else {
		f.PC = -1
	}

	m.fault = f
	m.state.Halted = true

	attrs := []any{
		"fault", f.Kind.Error(),
		"detail", f.Msg,
		"pc", f.PC,
	}
	if f.PC >= 0 {
		attrs = append(attrs, "inst", f.Instr.String(), "line", f.Instr.Line())
	}
	attrs = append(attrs, "step", f.Step)
	m.logger.Error("execution halted due to program error", attrs...)

	if m.dump != nil {
		m.Dump(m.dump)
	}

	return f
}

// Halted reports whether the current run is over.
func (m *Machine) Halted() bool {
	return m.state.Halted
}

// Err returns the fault that ended the current run, if any.
func (m *Machine) Err() error {
	if m.fault == nil {
		return nil
	}
	return m.fault
}

// Output returns the values written by WRI during the current or last run.
func (m *Machine) Output() []int32 {
	return append([]int32(nil), m.state.Output...)
}

// Registers returns the current register values.
func (m *Machine) Registers() Registers {
	return Registers{
		PC:    m.state.PC,
		FP:    m.state.FP,
		HP:    m.state.HP,
		Steps: m.state.Steps,
	}
}

// Stack returns a copy of the operand stack, bottom first.
func (m *Machine) Stack() []int32 {
	return append([]int32(nil), m.state.Stack...)
}

// Memory returns a copy of the machine memory.
func (m *Machine) Memory() []int32 {
	return append([]int32(nil), m.state.Memory...)
}
