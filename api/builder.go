package api

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/slx/core"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	engine sim.Engine
	freq   sim.Freq
	logger *slog.Logger
}

// WithEngine sets the engine. A serial engine is created if none is given.
func (b DriverBuilder) WithEngine(engine sim.Engine) DriverBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the driver. The default is 1 GHz.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithLogger sets the logger for run summaries.
func (b DriverBuilder) WithLogger(logger *slog.Logger) DriverBuilder {
	b.logger = logger
	return b
}

// Build creates a driver for machine.
func (b DriverBuilder) Build(name string, machine *core.Machine) Driver {
	if b.engine == nil {
		b.engine = sim.NewSerialEngine()
	}
	if b.freq == 0 {
		b.freq = 1 * sim.GHz
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	d := &driverImpl{
		machine: machine,
		logger:  b.logger,
	}

	d.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}
