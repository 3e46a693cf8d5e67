package main

import (
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/slx/core"
	"github.com/tebeka/atexit"
)

//go:embed countdown.slx
var source string

func countdown(n int32, w io.Writer) error {
	m, err := core.NewBuilder().
		WithInput(core.NewSliceInput(n)).
		WithOutput(core.NewWriterSink(w)).
		BuildFromText(strings.NewReader(source))
	if err != nil {
		return err
	}

	return m.Run()
}

func main() {
	n := flag.Int("n", 5, "start value")
	flag.Parse()

	if err := countdown(int32(*n), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
