package core

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sarchlab/slx/isa"
)

const (
	binaryFormat  = "SLXC"
	binaryVersion = 1
)

type wireProgram struct {
	Format  string     `cbor:"1,keyasint"`
	Version int        `cbor:"2,keyasint"`
	Insts   []wireInst `cbor:"3,keyasint"`
}

type wireInst struct {
	Op     string  `cbor:"1,keyasint"`
	Params []int32 `cbor:"2,keyasint,omitempty"`
	Line   int     `cbor:"3,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("core: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a program to canonical CBOR. Source lines are
// kept so that faults in a reloaded program still point at the text.
func MarshalProgram(p *Program) ([]byte, error) {
	w := wireProgram{
		Format:  binaryFormat,
		Version: binaryVersion,
		Insts:   make([]wireInst, 0, len(p.insts)),
	}

	for _, inst := range p.insts {
		w.Insts = append(w.Insts, wireInst{
			Op:     inst.op.String(),
			Params: inst.Params(),
			Line:   inst.line,
		})
	}

	return cborEncMode.Marshal(w)
}

// UnmarshalProgram rebuilds a program from MarshalProgram output. Every
// instruction is validated again, so a corrupt file fails the same way a
// bad text program does.
func UnmarshalProgram(data []byte) (*Program, error) {
	var w wireProgram
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("core: unmarshal program: %w", err)
	}

	if w.Format != binaryFormat {
		return nil, fmt.Errorf("core: not an SLX binary program (format %q)", w.Format)
	}
	if w.Version != binaryVersion {
		return nil, fmt.Errorf("core: unsupported SLX binary version %d", w.Version)
	}

	prog := NewProgram()
	for n, wi := range w.Insts {
		op, ok := isa.Lookup(wi.Op)
		if !ok {
			return nil, fmt.Errorf("core: instruction %d: %w: %q", n, ErrUnknownOpcode, wi.Op)
		}

		inst, err := NewInstruction(op, wi.Params, wi.Line)
		if err != nil {
			return nil, fmt.Errorf("core: instruction %d: %w", n, err)
		}

		prog.Append(inst)
	}

	return prog, nil
}
