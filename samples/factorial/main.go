package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/slx/api"
	"github.com/sarchlab/slx/codegen"
	"github.com/sarchlab/slx/core"
	"github.com/tebeka/atexit"
)

// buildFactorial emits a program that reads n and writes n!. The callee
// leaves its result on the operand stack.
func buildFactorial() (*core.Program, error) {
	g := codegen.New()
	fact, base := g.NewLabel(), g.NewLabel()

	var err error
	emit := func(name string, params ...int32) {
		if err == nil {
			err = g.Emit(name, params...)
		}
	}
	place := func(label int32) {
		if err == nil {
			err = g.PlaceLabel(label)
		}
	}

	emit("REA")
	emit("SFR", 0)
	emit("SBR", fact, 1)
	emit("WRI")
	emit("HLT")

	place(fact)
	emit("ENT", 1)
	emit("LDL")
	emit("JZE", base)
	emit("ENT", 1)
	emit("LDL")
	emit("ENT", 1)
	emit("LDL")
	emit("ENT", 1)
	emit("SUB")
	emit("SFR", 1)
	emit("SBR", fact, 1)
	emit("MUL")
	emit("RET")

	place(base)
	emit("ENT", 1)
	emit("RET")

	if err != nil {
		return nil, err
	}
	return g.Program(), nil
}

func factorial(n int32, logger *slog.Logger) (api.Result, error) {
	prog, err := buildFactorial()
	if err != nil {
		return api.Result{}, err
	}

	m := core.NewBuilder().
		WithLogger(logger).
		WithInput(core.NewSliceInput(n)).
		Build(prog)

	driver := api.DriverBuilder{}.
		WithEngine(sim.NewSerialEngine()).
		WithFreq(1 * sim.GHz).
		WithLogger(logger).
		Build("Driver", m)

	return driver.Run()
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	for n := int32(0); n <= 10; n++ {
		res, err := factorial(n, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			atexit.Exit(1)
		}
		fmt.Printf("%2d! = %8d  (%d cycles)\n", n, res.Output[0], res.Cycles)
	}

	atexit.Exit(0)
}
