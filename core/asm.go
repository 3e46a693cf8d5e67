package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sarchlab/slx/isa"
)

// Decoding failures, reported wrapped in a *DecodeError.
var (
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrMalformedOperand = errors.New("malformed operand")
	errLineTooLong      = errors.New("line too long")
)

// DecodeError locates the line that aborted a program load.
type DecodeError struct {
	Line int
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ParseProgram decodes the SLX text format. The load is all-or-nothing: the
// first bad line aborts it and no program is returned.
func ParseProgram(r io.Reader) (*Program, error) {
	prog := NewProgram()

	// Editors on some platforms prepend a BOM to UTF-8 files.
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		inst, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}

		prog.Append(inst)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &DecodeError{Line: lineNo + 1, Err: errLineTooLong}
		}
		return nil, fmt.Errorf("read program: %w", err)
	}

	return prog, nil
}

// ParseProgramString decodes a program held in memory.
func ParseProgramString(src string) (*Program, error) {
	return ParseProgram(strings.NewReader(src))
}

// LoadProgramFile decodes the program stored in the named file.
func LoadProgramFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prog, err := ParseProgram(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}

func parseLine(line string, lineNo int) (Instruction, error) {
	tokens := strings.Fields(line)

	op, ok := isa.Lookup(tokens[0])
	if !ok {
		return Instruction{}, &DecodeError{Line: lineNo, Text: line, Err: ErrUnknownOpcode}
	}

	args := tokens[1:]
	if len(args) != op.Arity() {
		return Instruction{}, &DecodeError{
			Line: lineNo,
			Text: line,
			Err: fmt.Errorf("%w: %s takes %d parameter(s), got %d",
				ErrMalformedOperand, op, op.Arity(), len(args)),
		}
	}

	params := make([]int32, len(args))
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return Instruction{}, &DecodeError{
				Line: lineNo,
				Text: line,
				Err:  fmt.Errorf("%w: %q is not a 32-bit integer", ErrMalformedOperand, a),
			}
		}
		params[i] = int32(v)
	}

	return NewInstruction(op, params, lineNo)
}
