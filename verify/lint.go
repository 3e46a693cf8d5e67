package verify

import (
	"fmt"
	"sort"

	"github.com/sarchlab/slx/core"
	"github.com/sarchlab/slx/isa"
)

// RunLint performs static checks on a program. It returns an empty list if
// no issues were found.
func RunLint(prog *core.Program) []Issue {
	var issues []Issue

	issues = append(issues, checkStructure(prog)...)
	issues = append(issues, checkStackDepth(prog)...)

	return issues
}

func newIssue(t IssueType, prog *core.Program, pc int, msg string) Issue {
	issue := Issue{Type: t, PC: pc, Message: msg}
	if pc >= 0 && pc < prog.Len() {
		issue.Line = prog.At(pc).Line()
	}
	return issue
}

func checkStructure(prog *core.Program) []Issue {
	var issues []Issue

	if prog.Len() == 0 {
		return []Issue{newIssue(IssueStruct, prog, -1, "Program is empty")}
	}

	lastDef := make(map[int32]int)
	hasHalt := false

	for pc, inst := range prog.Instructions() {
		switch inst.Opcode() {
		case isa.HLT:
			hasHalt = true
		case isa.LAB:
			label := inst.Param(0)
			if prev, ok := lastDef[label]; ok {
				issue := newIssue(IssueStruct, prog, pc,
					fmt.Sprintf("Label %d defined again; the definition at %d is ignored", label, prev))
				issue.Details = map[string]interface{}{"label": label, "previous": prev}
				issues = append(issues, issue)
			}
			lastDef[label] = pc
		case isa.JZE, isa.JMP:
			issues = append(issues, checkTarget(prog, pc, inst)...)
		case isa.SBR:
			issues = append(issues, checkTarget(prog, pc, inst)...)
			if n := inst.Param(1); n < 0 {
				issue := newIssue(IssueStruct, prog, pc,
					fmt.Sprintf("Negative argument count %d", n))
				issue.Details = map[string]interface{}{"nargs": n}
				issues = append(issues, issue)
			}
		}
	}

	if !hasHalt {
		issues = append(issues, newIssue(IssueStruct, prog, -1, "Program has no HLT instruction"))
	}

	return issues
}

func checkTarget(prog *core.Program, pc int, inst core.Instruction) []Issue {
	label := inst.Param(0)
	if _, ok := prog.Label(label); ok {
		return nil
	}

	issue := newIssue(IssueStruct, prog, pc,
		fmt.Sprintf("%s refers to undefined label %d", inst.Opcode(), label))
	issue.Details = map[string]interface{}{"label": label}

	return []Issue{issue}
}

// stackEffect returns how many values op needs on the stack and how many it
// leaves in their place.
func stackEffect(inst core.Instruction) (pops, pushes int) {
	switch inst.Opcode() {
	case isa.ENT, isa.REA:
		return 0, 1
	case isa.JZE, isa.WRI:
		return 1, 0
	case isa.ALC, isa.LDL, isa.LDM, isa.UMN, isa.NOT:
		return 1, 1
	case isa.STL, isa.STM:
		return 2, 0
	case isa.ADD, isa.SUB, isa.MUL, isa.DIV,
		isa.REQ, isa.RNE, isa.RLT, isa.RGT, isa.RLE, isa.RGE:
		return 2, 1
	case isa.SBR:
		if n := int(inst.Param(1)); n > 0 {
			return n, 0
		}
	}
	return 0, 0
}

func successors(prog *core.Program, pc int, inst core.Instruction) []int {
	next := []int{pc + 1}

	switch inst.Opcode() {
	case isa.HLT, isa.RET:
		return nil
	case isa.JMP:
		next = next[:0]
		fallthrough
	case isa.JZE, isa.SBR:
		if target, ok := prog.Label(inst.Param(0)); ok {
			next = append(next, target)
		}
	}

	return next
}

// checkStackDepth propagates the minimum stack depth through the program.
// A node is revisited only when a smaller depth reaches it, so the walk
// ends: depths only shrink, and a path stops at its first underflow.
func checkStackDepth(prog *core.Program) []Issue {
	if prog.Len() == 0 {
		return nil
	}

	depth := make([]int, prog.Len())
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0

	underflow := make(map[int]int)
	runsOff := make(map[int]int)

	work := []int{0}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]

		inst := prog.At(pc)
		pops, pushes := stackEffect(inst)
		d := depth[pc]
		if d < pops {
			if prev, ok := underflow[pc]; !ok || d < prev {
				underflow[pc] = d
			}
			continue
		}
		d = d - pops + pushes

		for _, next := range successors(prog, pc, inst) {
			if next >= prog.Len() {
				runsOff[pc] = d
				continue
			}
			if depth[next] >= 0 && depth[next] <= d {
				continue
			}
			depth[next] = d
			work = append(work, next)
		}
	}

	var issues []Issue

	for _, pc := range sortedKeys(underflow) {
		inst := prog.At(pc)
		pops, _ := stackEffect(inst)
		issue := newIssue(IssueFlow, prog, pc,
			fmt.Sprintf("%s needs %d value(s) but the stack may hold only %d", inst.Opcode(), pops, underflow[pc]))
		issue.Details = map[string]interface{}{"need": pops, "depth": underflow[pc]}
		issues = append(issues, issue)
	}

	for _, pc := range sortedKeys(runsOff) {
		issues = append(issues, newIssue(IssueFlow, prog, pc,
			fmt.Sprintf("Execution can run past the last instruction after %s", prog.At(pc).Opcode())))
	}

	return issues
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
