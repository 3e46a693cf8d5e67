package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/slx/isa"
)

// Words reserved in every frame header for the caller's FP and HP.
const frameHeader = 2

type instEmulator struct {
	prog   *Program
	input  InputSource
	output OutputSink
	logger *slog.Logger
}

// RunInst executes one instruction. The PC in state already points past
// inst. All checks happen before the state is touched; a failed check
// returns a *Fault describing it.
func (i instEmulator) RunInst(inst Instruction, state *machineState) error {
	switch inst.op {
	case isa.LAB:
		return nil
	case isa.JZE:
		return i.runJze(inst, state)
	case isa.JMP:
		return i.runJmp(inst, state)
	case isa.ALC:
		return i.runAlc(state)
	case isa.SFR:
		return i.runSfr(inst, state)
	case isa.SBR:
		return i.runSbr(inst, state)
	case isa.RET:
		return i.runRet(state)
	case isa.ENT:
		state.push(inst.params[0])
		return nil
	case isa.STL:
		return i.runStore(state, true)
	case isa.STM:
		return i.runStore(state, false)
	case isa.LDL:
		return i.runLoad(state, true)
	case isa.LDM:
		return i.runLoad(state, false)
	case isa.ADD, isa.SUB, isa.MUL, isa.DIV:
		return i.runArith(inst.op, state)
	case isa.UMN:
		return i.runUnary(state, func(x int32) int32 { return -x })
	case isa.NOT:
		return i.runUnary(state, func(x int32) int32 { return boolWord(x == 0) })
	case isa.REQ, isa.RNE, isa.RLT, isa.RGT, isa.RLE, isa.RGE:
		return i.runCompare(inst.op, state)
	case isa.WRI:
		return i.runWri(state)
	case isa.REA:
		return i.runRea(state)
	case isa.HLT:
		state.Halted = true
		return nil
	default:
		return &Fault{Kind: UnknownInstruction, Msg: inst.op.String()}
	}
}

func (i instEmulator) target(label int32) (int, error) {
	target, ok := i.prog.Label(label)
	if !ok {
		return 0, &Fault{Kind: UnknownLabel, Msg: fmt.Sprintf("label %d", label)}
	}

	return target, nil
}

func (i instEmulator) jump(label int32, state *machineState) error {
	target, err := i.target(label)
	if err != nil {
		return err
	}

	state.PC = target
	trace(i.logger, "jump", "label", label, "pc", target)

	return nil
}

func (i instEmulator) runJze(inst Instruction, state *machineState) error {
	if err := state.need(1); err != nil {
		return err
	}

	if state.Stack[len(state.Stack)-1] != 0 {
		state.pop()
		return nil
	}

	if err := i.jump(inst.params[0], state); err != nil {
		return err
	}
	state.pop()

	return nil
}

func (i instEmulator) runJmp(inst Instruction, state *machineState) error {
	return i.jump(inst.params[0], state)
}

func (i instEmulator) runAlc(state *machineState) error {
	if err := state.need(1); err != nil {
		return err
	}

	size := state.Stack[len(state.Stack)-1]
	if size < 0 {
		return &Fault{Kind: OutOfBounds, Msg: fmt.Sprintf("negative allocation size %d", size)}
	}

	hp := state.HP - (int(size) + frameHeader)
	if hp < 0 || hp >= len(state.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("allocation of %d words at HP=%d leaves memory", size, state.HP),
		}
	}
	if hp <= state.FP {
		return &Fault{
			Kind: HeapCollision,
			Msg:  fmt.Sprintf("heap pointer %d would cross frame pointer %d", hp, state.FP),
		}
	}

	state.pop()
	state.HP = hp
	state.Memory[hp] = size
	state.push(int32(hp))

	trace(i.logger, "allocate", "size", size, "hp", hp)

	return nil
}

func (i instEmulator) runSfr(inst Instruction, state *machineState) error {
	base := state.FP + int(inst.params[0])
	fp := base + frameHeader + 1

	if base+1 < 0 || fp >= len(state.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("frame pointer %d out of memory bounds", fp),
		}
	}
	if fp >= state.HP {
		return &Fault{
			Kind: HeapCollision,
			Msg:  fmt.Sprintf("frame pointer %d would cross heap pointer %d", fp, state.HP),
		}
	}

	state.Memory[base+frameHeader-1] = int32(state.FP)
	state.Memory[base+frameHeader] = int32(state.HP)
	state.FP = fp

	trace(i.logger, "store frame", "offset", inst.params[0], "fp", fp)

	return nil
}

func (i instEmulator) runSbr(inst Instruction, state *machineState) error {
	label := inst.params[0]
	nargs := int(inst.params[1])

	if state.FP < 0 || state.FP >= len(state.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("frame pointer %d out of memory bounds", state.FP),
		}
	}

	// The return address goes to the frame set up by the preceding SFR.
	state.Memory[state.FP] = int32(state.PC)

	target, err := i.target(label)
	if err != nil {
		return err
	}

	if err := state.need(nargs); err != nil {
		return err
	}
	if nargs < 0 {
		return &Fault{Kind: OutOfBounds, Msg: fmt.Sprintf("negative argument count %d", nargs)}
	}
	if state.FP+nargs >= len(state.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("%d arguments at FP=%d exceed memory", nargs, state.FP),
		}
	}

	for n := nargs; n > 0; n-- {
		state.Memory[state.FP+n] = state.pop()
	}
	state.PC = target

	trace(i.logger, "call", "label", label, "args", nargs, "fp", state.FP)

	return nil
}

func (i instEmulator) runRet(state *machineState) error {
	fp := state.FP
	if fp-frameHeader < 0 || fp >= len(state.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("frame pointer %d has no saved frame", fp),
		}
	}

	state.PC = int(state.Memory[fp])
	state.HP = int(state.Memory[fp-frameHeader+1])
	state.FP = int(state.Memory[fp-frameHeader])

	trace(i.logger, "return", "pc", state.PC, "fp", state.FP, "hp", state.HP)

	return nil
}

func (i instEmulator) runStore(state *machineState, local bool) error {
	if err := state.need(2); err != nil {
		return err
	}

	x1 := state.Stack[len(state.Stack)-1]
	x2 := state.Stack[len(state.Stack)-2]

	addr := int(x2)
	if local {
		addr += state.FP
	}
	if err := state.checkAddr(addr); err != nil {
		return err
	}

	state.Stack = state.Stack[:len(state.Stack)-2]
	state.Memory[addr] = x1

	return nil
}

func (i instEmulator) runLoad(state *machineState, local bool) error {
	if err := state.need(1); err != nil {
		return err
	}

	addr := int(state.Stack[len(state.Stack)-1])
	if local {
		addr += state.FP
	}
	if err := state.checkAddr(addr); err != nil {
		return err
	}

	state.Stack[len(state.Stack)-1] = state.Memory[addr]

	return nil
}

func (i instEmulator) runArith(op isa.Opcode, state *machineState) error {
	if err := state.need(2); err != nil {
		return err
	}

	x1 := state.Stack[len(state.Stack)-1]
	x2 := state.Stack[len(state.Stack)-2]

	var r int32
	switch op {
	case isa.ADD:
		r = x2 + x1
	case isa.SUB:
		r = x2 - x1
	case isa.MUL:
		r = x2 * x1
	case isa.DIV:
		if x1 == 0 {
			return &Fault{Kind: DivisionByZero, Msg: fmt.Sprintf("%d / 0", x2)}
		}
		r = x2 / x1
	}

	state.Stack = state.Stack[:len(state.Stack)-2]
	state.push(r)

	return nil
}

func (i instEmulator) runCompare(op isa.Opcode, state *machineState) error {
	if err := state.need(2); err != nil {
		return err
	}

	x1 := state.pop()
	x2 := state.pop()

	var r bool
	switch op {
	case isa.REQ:
		r = x2 == x1
	case isa.RNE:
		r = x2 != x1
	case isa.RLT:
		r = x2 < x1
	case isa.RGT:
		r = x2 > x1
	case isa.RLE:
		r = x2 <= x1
	case isa.RGE:
		r = x2 >= x1
	}

	state.push(boolWord(r))

	return nil
}

func (i instEmulator) runUnary(state *machineState, f func(int32) int32) error {
	if err := state.need(1); err != nil {
		return err
	}

	state.Stack[len(state.Stack)-1] = f(state.Stack[len(state.Stack)-1])

	return nil
}

func (i instEmulator) runWri(state *machineState) error {
	if err := state.need(1); err != nil {
		return err
	}

	x1 := state.pop()
	state.Output = append(state.Output, x1)

	if i.output != nil {
		if err := i.output.WriteInt(x1); err != nil {
			return &Fault{Kind: IOFailure, Msg: "write output", Err: err}
		}
	}

	return nil
}

func (i instEmulator) runRea(state *machineState) error {
	v, err := i.input.ReadInt()
	if errors.Is(err, ErrInputExhausted) {
		return &Fault{Kind: InputExhausted, Msg: "no input left for REA"}
	}
	if err != nil {
		return &Fault{Kind: IOFailure, Msg: "read input", Err: err}
	}

	state.push(v)

	return nil
}

func (s *machineState) need(n int) error {
	if len(s.Stack) < n {
		return &Fault{
			Kind: StackUnderflow,
			Msg:  fmt.Sprintf("need %d value(s), stack holds %d", n, len(s.Stack)),
		}
	}
	return nil
}

func (s *machineState) push(v int32) {
	s.Stack = append(s.Stack, v)
}

func (s *machineState) pop() int32 {
	v := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return v
}

func (s *machineState) checkAddr(addr int) error {
	if addr < 0 || addr >= len(s.Memory) {
		return &Fault{
			Kind: OutOfBounds,
			Msg:  fmt.Sprintf("memory access at %d outside [0, %d)", addr, len(s.Memory)),
		}
	}
	return nil
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
