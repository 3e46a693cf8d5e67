// Package api runs SLX machines on an akita simulation engine.
package api

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/slx/core"
)

// Driver executes a machine in simulated time, one instruction per cycle.
type Driver interface {
	// Machine returns the machine being driven.
	Machine() *core.Machine

	// Run resets the machine and runs the engine until the machine halts.
	// The returned error is the machine fault, if any.
	Run() (Result, error)
}

// Result summarizes a timed run.
type Result struct {
	RunID  string
	Output []int32
	Steps  int
	Cycles uint64
	Start  sim.VTimeInSec
	End    sim.VTimeInSec
}

type driverImpl struct {
	*sim.TickingComponent

	machine *core.Machine
	logger  *slog.Logger

	running bool
	cycles  uint64
	start   sim.VTimeInSec
	end     sim.VTimeInSec
	err     error
}

func (d *driverImpl) Machine() *core.Machine {
	return d.machine
}

// Tick executes one instruction.
func (d *driverImpl) Tick() (madeProgress bool) {
	if !d.running {
		return false
	}

	halted, err := d.machine.Step()
	d.cycles++

	if halted {
		d.running = false
		d.err = err
		d.end = d.Engine.CurrentTime()
		return false
	}

	return true
}

// Run runs the machine from a fresh state.
func (d *driverImpl) Run() (Result, error) {
	d.machine.Reset()
	d.running = true
	d.cycles = 0
	d.err = nil
	d.start = d.Engine.CurrentTime()

	d.logger.Info("start timed run",
		"driver", d.Name(),
		"run", d.machine.ID(),
		"instructions", d.machine.Program().Len(),
	)

	// TickNow would be dropped on a rerun, since the last tick of the
	// previous run sits at the current time.
	d.TickLater()
	d.Engine.Run()

	res := Result{
		RunID:  d.machine.ID(),
		Output: d.machine.Output(),
		Steps:  d.machine.Registers().Steps,
		Cycles: d.cycles,
		Start:  d.start,
		End:    d.end,
	}

	d.logger.Info("timed run finished",
		"driver", d.Name(),
		"run", res.RunID,
		"cycles", res.Cycles,
		"end", float64(res.End),
	)

	return res, d.err
}
