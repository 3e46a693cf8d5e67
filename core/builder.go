package core

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Machine limits used when the builder is not told otherwise.
const (
	DefaultMemSize  = 5000
	DefaultMaxSteps = 1000000

	// MinMemSize holds one frame header and its return address.
	MinMemSize = frameHeader + 1
)

// Builder can create new machines.
type Builder struct {
	memSize  int
	maxSteps int
	input    InputSource
	output   OutputSink
	logger   *slog.Logger
	dump     io.Writer
}

// NewBuilder returns a builder with the default memory size and step limit.
func NewBuilder() Builder {
	return Builder{
		memSize:  DefaultMemSize,
		maxSteps: DefaultMaxSteps,
	}
}

// WithMemSize sets the number of memory words.
func (b Builder) WithMemSize(words int) Builder {
	if words < MinMemSize {
		panic("memory must hold at least one frame header")
	}
	b.memSize = words
	return b
}

// WithMaxSteps sets how many instructions a run may execute before it is
// stopped as a runaway program.
func (b Builder) WithMaxSteps(steps int) Builder {
	if steps <= 0 {
		panic("step limit must be positive")
	}
	b.maxSteps = steps
	return b
}

// WithInput sets the source REA reads from. Without one, REA faults with
// InputExhausted. A *SliceInput is copied into every machine built, so each
// machine reads the values from its own cursor. Other sources, such as a
// ReaderInput on stdin, are shared and owned by the caller.
func (b Builder) WithInput(in InputSource) Builder {
	b.input = in
	return b
}

// WithOutput sets a sink that receives WRI values as they are written.
func (b Builder) WithOutput(out OutputSink) Builder {
	b.output = out
	return b
}

// WithLogger sets the logger. Its level decides how verbose a run is.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithDumpOnFault makes a faulting run write a state dump to w.
func (b Builder) WithDumpOnFault(w io.Writer) Builder {
	b.dump = w
	return b
}

// Build creates a machine that runs prog.
func (b Builder) Build(prog *Program) *Machine {
	id := uuid.NewString()

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run", id)

	input := b.input
	switch in := input.(type) {
	case nil:
		input = NewSliceInput()
	case forker:
		input = in.Fork()
	}

	m := &Machine{
		id:       id,
		prog:     prog,
		memSize:  b.memSize,
		maxSteps: b.maxSteps,
		logger:   logger,
		dump:     b.dump,
		emu: instEmulator{
			prog:   prog,
			input:  input,
			output: b.output,
			logger: logger,
		},
	}
	m.Reset()

	return m
}

// BuildFromText decodes a text program and creates a machine for it.
func (b Builder) BuildFromText(r io.Reader) (*Machine, error) {
	prog, err := ParseProgram(r)
	if err != nil {
		return nil, err
	}
	return b.Build(prog), nil
}

// BuildFromFile decodes the program in the named file and creates a machine
// for it.
func (b Builder) BuildFromFile(path string) (*Machine, error) {
	prog, err := LoadProgramFile(path)
	if err != nil {
		return nil, err
	}
	return b.Build(prog), nil
}
