// Package verify provides debugging tools for SLX programs.
//
// Verification runs in two stages:
//
// 1. Static lint (lint.go): structural and control-flow checks
//   - STRUCT checks: undefined and duplicate labels, negative SBR argument
//     counts, programs without HLT
//   - FLOW checks: a stack-depth analysis over the control-flow graph that
//     finds pops on a possibly empty stack and paths running past the
//     last instruction
//
// 2. Functional run (report.go): the program is executed on a core.Machine
//    and the outcome is added to the report.
//
// # Stack-depth analysis
//
// Every opcode has a fixed stack effect except SBR, whose pops depend on
// its argument count. The analysis propagates the smallest known depth
// along every edge: fall-through, JZE/JMP targets, SBR targets and the
// return point after SBR. RET ends a path since its target is only known
// at run time. Reported underflows are possible, not certain: the analysis
// does not know which branches are taken.
//
// # Usage Example
//
//	prog, err := core.LoadProgramFile("loop.slx")
//	if err != nil {
//	    return err
//	}
//
//	for _, issue := range verify.RunLint(prog) {
//	    log.Printf("[%s] pc=%d line=%d: %s", issue.Type, issue.PC, issue.Line, issue.Message)
//	}
//
//	report := verify.GenerateReport(prog, core.NewBuilder())
//	report.WriteReport(os.Stdout)
package verify

// IssueType categorizes lint issues
type IssueType string

const (
	IssueStruct IssueType = "STRUCT" // Label or operand error
	IssueFlow   IssueType = "FLOW"   // Control-flow or stack-depth error
)

// Issue represents a single lint issue
type Issue struct {
	Type    IssueType              // STRUCT or FLOW
	PC      int                    // Instruction index (-1 if not applicable)
	Line    int                    // Source line (0 if unknown)
	Message string                 // Human-readable description
	Details map[string]interface{} // Additional structured data
}
