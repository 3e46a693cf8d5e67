package verify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/slx/core"
)

// VerificationReport represents a complete verification report
type VerificationReport struct {
	InstructionCount int
	LabelCount       int
	LintIssues       []Issue
	StructIssues     []Issue
	FlowIssues       []Issue
	SimulationErr    error
	SimulationOK     bool
	Output           []int32
	Steps            int
}

// GenerateReport runs lint and then executes the program on a machine
// created by builder.
func GenerateReport(prog *core.Program, builder core.Builder) *VerificationReport {
	report := &VerificationReport{
		InstructionCount: prog.Len(),
		LabelCount:       len(prog.Labels()),
	}

	report.LintIssues = RunLint(prog)

	for _, issue := range report.LintIssues {
		if issue.Type == IssueStruct {
			report.StructIssues = append(report.StructIssues, issue)
		} else {
			report.FlowIssues = append(report.FlowIssues, issue)
		}
	}

	m := builder.Build(prog)
	report.SimulationErr = m.Run()
	report.SimulationOK = report.SimulationErr == nil
	report.Output = m.Output()
	report.Steps = m.Registers().Steps

	return report
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "SLX PROGRAM VERIFICATION REPORT")
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "\nLoaded %d instructions, %d labels\n", r.InstructionCount, r.LabelCount)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 1: STATIC LINT CHECKS")
	fmt.Fprintln(w, separator)

	if len(r.LintIssues) == 0 {
		fmt.Fprintln(w, "No lint issues found")
	} else {
		fmt.Fprintf(w, "Found %d lint issues:\n", len(r.LintIssues))
		WriteIssues(w, r.LintIssues)
	}

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 2: FUNCTIONAL RUN")
	fmt.Fprintln(w, separator)

	if r.SimulationOK {
		fmt.Fprintf(w, "Run completed after %d steps\n", r.Steps)
	} else {
		fmt.Fprintf(w, "Run error: %v\n", r.SimulationErr)
	}
	fmt.Fprintf(w, "Output: %v\n", r.Output)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.AppendHeader(table.Row{"Check", "Result"})
	summary.AppendRow(table.Row{"Lint", fmt.Sprintf("%d issues (%d STRUCT, %d FLOW)",
		len(r.LintIssues), len(r.StructIssues), len(r.FlowIssues))})
	summary.AppendRow(table.Row{"Run", r.runStatus()})
	summary.Render()

	fmt.Fprintln(w)
}

func (r *VerificationReport) runStatus() string {
	if r.SimulationOK {
		return "SUCCESS"
	}

	var f *core.Fault
	if errors.As(r.SimulationErr, &f) {
		return "FAILED: " + f.Kind.Error()
	}

	return "FAILED: " + r.SimulationErr.Error()
}

// WriteIssues prints lint issues as a table.
func WriteIssues(w io.Writer, issues []Issue) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "PC", "Line", "Message"})
	for _, issue := range issues {
		pc, line := "-", "-"
		if issue.PC >= 0 {
			pc = fmt.Sprint(issue.PC)
		}
		if issue.Line > 0 {
			line = fmt.Sprint(issue.Line)
		}
		t.AppendRow(table.Row{issue.Type, pc, line, issue.Message})
	}
	t.Render()
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
