// Command slx runs SLX stack-machine programs.
//
//	slx [flags] program.slx
//
// Values written by WRI go to stdout, one per line. Logs and diagnostics go
// to stderr.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/slx/api"
	"github.com/sarchlab/slx/config"
	"github.com/sarchlab/slx/core"
	"github.com/sarchlab/slx/logger"
	"github.com/sarchlab/slx/verify"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitFault = 2
	exitLint  = 3
)

type intList struct {
	values []int32
	set    bool
}

func (l *intList) String() string {
	parts := make([]string, len(l.values))
	for i, v := range l.values {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	l.set = true
	l.values = l.values[:0]
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return fmt.Errorf("%q is not a 32-bit integer", f)
		}
		l.values = append(l.values, int32(v))
	}
	return nil
}

type options struct {
	level     string
	logFormat string
	input     intList
	config    string
	timed     bool
	dump      bool
	lint      bool
	render    bool
	encode    string
	program   string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("slx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: slx [flags] <program.slx|program.slxc>")
		fs.PrintDefaults()
	}

	o := &options{}
	fs.StringVar(&o.level, "d", "", "log level: severe, warning, info, debug or trace")
	fs.StringVar(&o.logFormat, "log-format", "", "log format: text or json")
	fs.Var(&o.input, "input", "comma-separated input for REA instead of stdin")
	fs.StringVar(&o.config, "config", "", "run configuration (.yaml or .toml)")
	fs.BoolVar(&o.timed, "timed", false, "run on the simulation engine, one instruction per cycle")
	fs.BoolVar(&o.dump, "dump", false, "dump machine state to stderr on a fault")
	fs.BoolVar(&o.lint, "lint", false, "check the program instead of running it")
	fs.BoolVar(&o.render, "render", false, "print the program in text form instead of running it")
	fs.StringVar(&o.encode, "encode", "", "write the program in binary form to this file instead of running it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one program file")
	}
	o.program = fs.Arg(0)

	return o, nil
}

func loadConfig(o *options) (config.Config, error) {
	c := config.Default()
	if o.config != "" {
		var err error
		if c, err = config.Load(o.config); err != nil {
			return c, err
		}
	}

	if o.level != "" {
		c.Log.Level = o.level
	}
	if o.logFormat != "" {
		c.Log.Format = o.logFormat
	}
	if o.input.set {
		c.Input = append([]int32{}, o.input.values...)
	}
	if o.timed {
		c.Clock.Enabled = true
	}
	if o.dump {
		c.Dump = true
	}

	return c, c.Validate()
}

func loadProgram(path string) (*core.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".slxc") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		prog, err := core.UnmarshalProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil
	}

	return core.LoadProgramFile(path)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	c, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	log, err := logger.Init(c.Log.Level, c.Log.Format, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	prog, err := loadProgram(o.program)
	if err != nil {
		log.Error("cannot load program", "path", o.program, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	switch {
	case o.render:
		if _, err := prog.WriteTo(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		return exitOK
	case o.encode != "":
		return encode(prog, o.encode, stderr)
	case o.lint:
		issues := verify.RunLint(prog)
		if len(issues) == 0 {
			return exitOK
		}
		verify.WriteIssues(stdout, issues)
		return exitLint
	}

	return execute(prog, c, log, stdin, stdout, stderr)
}

func encode(prog *core.Program, path string, stderr io.Writer) int {
	data, err := core.MarshalProgram(prog)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func execute(
	prog *core.Program,
	c config.Config,
	log *slog.Logger,
	stdin io.Reader,
	stdout, stderr io.Writer,
) int {
	b := c.MachineBuilder(log).WithOutput(core.NewWriterSink(stdout))
	if c.Input == nil {
		b = b.WithInput(core.NewReaderInput(stdin))
	}
	if c.Dump {
		b = b.WithDumpOnFault(stderr)
	}

	m := b.Build(prog)

	var err error
	if c.Clock.Enabled {
		driver := api.DriverBuilder{}.
			WithFreq(c.Freq()).
			WithLogger(log).
			Build("Driver", m)
		_, err = driver.Run()
	} else {
		err = m.Run()
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFault
	}

	return exitOK
}

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
