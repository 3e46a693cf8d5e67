package core

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// InputSource supplies the integers read by REA.
type InputSource interface {
	// ReadInt returns the next integer, or ErrInputExhausted when there
	// are no more.
	ReadInt() (int32, error)
}

// OutputSink receives every integer written by WRI while a run is in
// progress.
type OutputSink interface {
	WriteInt(v int32) error
}

// SliceInput is a finite, pre-supplied input sequence.
type SliceInput struct {
	values []int32
	next   int
}

// NewSliceInput returns an input source that yields values in order.
func NewSliceInput(values ...int32) *SliceInput {
	return &SliceInput{values: append([]int32(nil), values...)}
}

// ReadInt implements InputSource.
func (s *SliceInput) ReadInt() (int32, error) {
	if s.next >= len(s.values) {
		return 0, ErrInputExhausted
	}
	v := s.values[s.next]
	s.next++
	return v, nil
}

// Rewind makes the whole sequence available again. Machines rewind their
// input at the start of every run.
func (s *SliceInput) Rewind() {
	s.next = 0
}

// Fork returns a new source over the same values with its own cursor at
// the start.
func (s *SliceInput) Fork() InputSource {
	return &SliceInput{values: s.values}
}

type forker interface {
	Fork() InputSource
}

// Remaining returns how many values have not been read yet.
func (s *SliceInput) Remaining() int {
	return len(s.values) - s.next
}

// ReaderInput reads one integer per line from an interactive stream. Lines
// that do not hold an integer are skipped; end of stream is exhaustion.
type ReaderInput struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
}

// NewReaderInput wraps r, typically os.Stdin.
func NewReaderInput(r io.Reader) *ReaderInput {
	return &ReaderInput{
		scanner: bufio.NewScanner(r),
		logger:  slog.Default(),
	}
}

// ReadInt implements InputSource.
func (r *ReaderInput) ReadInt() (int32, error) {
	for r.scanner.Scan() {
		text := strings.TrimSpace(r.scanner.Text())
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			r.logger.Warn("ignoring input line, not an integer", "line", text)
			continue
		}
		return int32(v), nil
	}

	if err := r.scanner.Err(); err != nil {
		return 0, err
	}

	return 0, ErrInputExhausted
}

// WriterSink prints each value on its own line.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink returns a sink streaming to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// WriteInt implements OutputSink.
func (s *WriterSink) WriteInt(v int32) error {
	_, err := fmt.Fprintln(s.w, v)
	return err
}
