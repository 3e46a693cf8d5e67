package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	// LevelTrace sits below debug and is used for per-instruction records.
	LevelTrace slog.Level = slog.LevelDebug - 4

	dumpStackDepth = 10
	dumpRowWords   = 8
)

func trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Dump writes the machine state for offline debugging: registers, the top
// of the operand stack and the whole memory. Write errors are ignored.
func (m *Machine) Dump(w io.Writer) {
	DumpState(w, m.Registers(), m.state.Stack, m.state.Memory)
}

// DumpState renders registers, stack and memory as tables.
func DumpState(w io.Writer, regs Registers, stack []int32, memory []int32) {
	regTable := table.NewWriter()
	regTable.SetTitle("Registers")
	regTable.AppendHeader(table.Row{"PC", "FP", "HP", "Steps"})
	regTable.AppendRow(table.Row{regs.PC, regs.FP, regs.HP, regs.Steps})
	fmt.Fprintln(w, regTable.Render())

	stackTable := table.NewWriter()
	stackTable.SetTitle("Stack")
	stackTable.SetCaption(fmt.Sprintf("top %d of %d", min(dumpStackDepth, len(stack)), len(stack)))
	stackTable.AppendHeader(table.Row{"Index", "Value"})
	if len(stack) == 0 {
		stackTable.AppendRow(table.Row{"-", "empty"})
	}
	for i := len(stack) - 1; i >= 0 && i >= len(stack)-dumpStackDepth; i-- {
		stackTable.AppendRow(table.Row{i, stack[i]})
	}
	fmt.Fprintln(w, stackTable.Render())

	memTable := table.NewWriter()
	memTable.SetTitle("Memory")
	header := table.Row{"Address"}
	for col := 0; col < dumpRowWords; col++ {
		header = append(header, fmt.Sprintf("+%d", col))
	}
	memTable.AppendHeader(header)
	for base := 0; base < len(memory); base += dumpRowWords {
		row := table.Row{fmt.Sprintf("0x%08X", base)}
		for col := 0; col < dumpRowWords && base+col < len(memory); col++ {
			row = append(row, fmt.Sprintf("0x%08X", uint32(memory[base+col])))
		}
		memTable.AppendRow(row)
	}
	fmt.Fprintln(w, memTable.Render())
}
