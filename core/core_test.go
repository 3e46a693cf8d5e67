package core_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/slx/core"
	"github.com/sarchlab/slx/isa"
)

func faultOf(err error) *core.Fault {
	var f *core.Fault
	Expect(errors.As(err, &f)).To(BeTrue(), "expected a fault, got %v", err)
	return f
}

var _ = Describe("Machine", func() {
	It("should add two numbers and halt", func() {
		m, err := run("ENT 5\nENT 7\nADD\nWRI\nHLT\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Output()).To(Equal([]int32{12}))
		Expect(m.Halted()).To(BeTrue())
		Expect(m.Err()).NotTo(HaveOccurred())
		Expect(m.Registers().Steps).To(Equal(5))
	})

	DescribeTable("binary operators use second-popped op first-popped",
		func(op string, a, b, want int) {
			src := "ENT " + itoa(a) + "\nENT " + itoa(b) + "\n" + op + "\nWRI\nHLT\n"
			m, err := run(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{int32(want)}))
		},
		Entry("ADD", "ADD", 10, 3, 13),
		Entry("SUB", "SUB", 10, 3, 7),
		Entry("MUL", "MUL", 10, 3, 30),
		Entry("DIV", "DIV", 10, 3, 3),
		Entry("DIV truncates toward zero", "DIV", -7, 2, -3),
		Entry("REQ true", "REQ", 4, 4, 1),
		Entry("REQ false", "REQ", 4, 5, 0),
		Entry("RNE", "RNE", 4, 5, 1),
		Entry("RLT", "RLT", 3, 10, 1),
		Entry("RLT reversed", "RLT", 10, 3, 0),
		Entry("RGT", "RGT", 10, 3, 1),
		Entry("RLE equal", "RLE", 3, 3, 1),
		Entry("RGE", "RGE", 2, 3, 0),
	)

	It("should wrap around on 32-bit overflow", func() {
		m, err := run("ENT 2147483647\nENT 1\nADD\nWRI\nENT -2147483648\nENT -1\nDIV\nWRI\nHLT\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Output()).To(Equal([]int32{-2147483648, -2147483648}))
	})

	It("should negate and invert", func() {
		m, err := run("ENT 5\nUMN\nWRI\nENT 0\nNOT\nWRI\nENT 1\nNOT\nWRI\nHLT\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Output()).To(Equal([]int32{-5, 1, 0}))
	})

	Context("jumps", func() {
		It("should jump when JZE pops zero", func() {
			m, err := run("ENT 0\nJZE 1\nENT 99\nWRI\nLAB 1\nENT 1\nWRI\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{1}))
		})

		It("should fall through when JZE pops non-zero", func() {
			m, err := run("ENT 3\nJZE 1\nENT 99\nWRI\nLAB 1\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{99}))
		})

		It("should loop with JMP", func() {
			// count down from 3
			src := `
ENT 0
ENT 3
STL
LAB 0
ENT 0
LDL
JZE 1
ENT 0
LDL
WRI
ENT 0
ENT 0
LDL
ENT 1
SUB
STL
JMP 0
LAB 1
HLT
`
			m, err := run(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{3, 2, 1}))
		})

		It("should fault on unknown labels", func() {
			_, err := run("JMP 9\nHLT\n")
			Expect(errors.Is(err, core.UnknownLabel)).To(BeTrue())

			_, err = run("ENT 0\nJZE 9\nHLT\n")
			Expect(errors.Is(err, core.UnknownLabel)).To(BeTrue())
		})

		It("should not check the label when JZE falls through", func() {
			_, err := run("ENT 1\nJZE 9\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("memory", func() {
		It("should store and load absolute addresses", func() {
			m, err := run("ENT 100\nENT 42\nSTM\nENT 100\nLDM\nWRI\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{42}))
			Expect(m.Memory()[100]).To(Equal(int32(42)))
		})

		It("should store and load relative to FP", func() {
			m, err := run("SFR 0\nENT 2\nENT 8\nSTL\nENT 2\nLDL\nWRI\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{8}))
			Expect(m.Memory()[3+2]).To(Equal(int32(8)))
		})

		DescribeTable("rejects addresses outside memory",
			func(src string) {
				_, err := run(src)
				Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue(), "%v", err)
			},
			Entry("STM negative", "ENT -1\nENT 1\nSTM\nHLT\n"),
			Entry("STM past end", "ENT 5000\nENT 1\nSTM\nHLT\n"),
			Entry("LDM past end", "ENT 5000\nLDM\nHLT\n"),
			Entry("LDL negative", "ENT -1\nLDL\nHLT\n"),
			Entry("STL past end", "ENT 5000\nENT 1\nSTL\nHLT\n"),
		)
	})

	Context("heap", func() {
		It("should allocate blocks downward from the top of memory", func() {
			m, err := run("ENT 3\nALC\nWRI\nENT 4\nALC\nWRI\nHLT\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{4995, 4989}))
			Expect(m.Registers().HP).To(Equal(4989))

			mem := m.Memory()
			Expect(mem[4995]).To(Equal(int32(3)))
			Expect(mem[4989]).To(Equal(int32(4)))
		})

		It("should fault on negative sizes", func() {
			_, err := run("ENT -5\nALC\nHLT\n")
			Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue())
		})

		It("should fault when the heap reaches the frame", func() {
			_, err := run("SFR 10\nENT 4985\nALC\nHLT\n")
			Expect(errors.Is(err, core.HeapCollision)).To(BeTrue())
		})

		It("should fault when a frame reaches the heap", func() {
			_, err := run("ENT 10\nALC\nSFR 4985\nHLT\n")
			Expect(errors.Is(err, core.HeapCollision)).To(BeTrue())
		})
	})

	Context("subroutines", func() {
		It("should pass arguments and return to the caller", func() {
			src := `
ENT 6
ENT 4
SFR 0
SBR 1 2
ENT 0
WRI
HLT
LAB 1
ENT 1
LDL
ENT 2
LDL
SUB
WRI
RET
`
			m, err := run(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{2, 0}))
			Expect(m.Registers().FP).To(Equal(0))
			Expect(m.Registers().HP).To(Equal(5000))
		})

		It("should save the caller frame in the SFR header", func() {
			m := newBuilder().Build(mustParse("SFR 4\nHLT\n"))
			_, err := m.Step()
			Expect(err).NotTo(HaveOccurred())

			Expect(m.Registers().FP).To(Equal(7))
			mem := m.Memory()
			Expect(mem[5]).To(Equal(int32(0)))
			Expect(mem[6]).To(Equal(int32(5000)))
		})

		It("should restore FP and HP when SFR runs at the call target", func() {
			src := `
ENT 2
ALC
SBR 1 0
HLT
LAB 1
SFR 3
ENT 7
ALC
RET
`
			m := newBuilder().Build(mustParse(src))
			for i := 0; i < 8; i++ {
				halted, err := m.Step()
				Expect(err).NotTo(HaveOccurred())
				Expect(halted).To(BeFalse())
			}

			regs := m.Registers()
			Expect(regs.FP).To(Equal(0))
			Expect(regs.HP).To(Equal(4996))
		})

		It("should fault when SBR lacks arguments", func() {
			_, err := run("ENT 1\nSFR 0\nSBR 1 2\nLAB 1\nRET\n")
			Expect(errors.Is(err, core.StackUnderflow)).To(BeTrue())
		})

		It("should fault on a negative argument count", func() {
			_, err := run("SFR 0\nSBR 1 -1\nLAB 1\nRET\n")
			Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue())
		})

		It("should fault when RET has no frame", func() {
			_, err := run("RET\n")
			Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue())
		})

		It("should fault when SFR leaves memory", func() {
			_, err := run("SFR -5\nHLT\n")
			Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue())
		})
	})

	Context("faults", func() {
		It("should fault on division by zero without pushing a result", func() {
			m, err := run("ENT 10\nENT 0\nDIV\nWRI\nHLT\n")
			f := faultOf(err)
			Expect(f.Kind).To(Equal(core.DivisionByZero))
			Expect(f.PC).To(Equal(2))
			Expect(f.Instr.Opcode()).To(Equal(isa.DIV))
			Expect(f.Instr.Line()).To(Equal(3))
			Expect(f.Step).To(Equal(2))
			Expect(f.Stack).To(Equal([]int32{10, 0}))
			Expect(m.Output()).To(BeEmpty())
			Expect(m.Halted()).To(BeTrue())
			Expect(m.Err()).To(Equal(err))
		})

		DescribeTable("stack underflow",
			func(src string) {
				_, err := run(src)
				Expect(errors.Is(err, core.StackUnderflow)).To(BeTrue(), "%v", err)
			},
			Entry("ADD with one value", "ENT 1\nADD\nHLT\n"),
			Entry("WRI on empty stack", "WRI\nHLT\n"),
			Entry("JZE on empty stack", "JZE 0\nLAB 0\nHLT\n"),
			Entry("STL with one value", "ENT 1\nSTL\nHLT\n"),
			Entry("LDM on empty stack", "LDM\nHLT\n"),
			Entry("ALC on empty stack", "ALC\nHLT\n"),
			Entry("NOT on empty stack", "NOT\nHLT\n"),
			Entry("REQ with one value", "ENT 1\nREQ\nHLT\n"),
		)

		It("should stop runaway programs", func() {
			m := newBuilder().WithMaxSteps(1000).Build(mustParse("LAB 0\nJMP 0\n"))
			err := m.Run()
			Expect(errors.Is(err, core.RunawayProgram)).To(BeTrue())
			Expect(m.Registers().Steps).To(Equal(1000))
		})

		It("should stop runaway programs at the default limit", func() {
			m := newBuilder().Build(mustParse("LAB 0\nJMP 0\n"))
			err := m.Run()
			Expect(errors.Is(err, core.RunawayProgram)).To(BeTrue())
			Expect(m.Registers().Steps).To(Equal(core.DefaultMaxSteps))
		})

		It("should allow HLT as the last permitted step", func() {
			m := newBuilder().WithMaxSteps(3).Build(mustParse("ENT 1\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
		})

		It("should fault when execution runs off the program", func() {
			_, err := run("ENT 1\n")
			Expect(errors.Is(err, core.OutOfBounds)).To(BeTrue())
		})

		It("should fault on an empty program", func() {
			m := newBuilder().Build(core.NewProgram())
			err := m.Run()
			f := faultOf(err)
			Expect(f.Kind).To(Equal(core.OutOfBounds))
			Expect(f.PC).To(Equal(-1))
		})

		It("should not log an instruction when the PC left the program", func() {
			var buf bytes.Buffer
			m := core.NewBuilder().
				WithLogger(slog.New(slog.NewTextHandler(&buf, nil))).
				Build(mustParse("ENT 1\n"))

			Expect(m.Run()).NotTo(Succeed())
			Expect(buf.String()).To(ContainSubstring("pc=-1"))
			Expect(buf.String()).NotTo(ContainSubstring("inst="))
			Expect(buf.String()).NotTo(ContainSubstring("line="))
		})

		It("should describe the faulting instruction", func() {
			_, err := run("ENT 1\n\nENT 0\nDIV\nHLT\n")
			Expect(err.Error()).To(ContainSubstring("division by zero"))
			Expect(err.Error()).To(ContainSubstring("DIV"))
			Expect(err.Error()).To(ContainSubstring("line 4"))
		})

		It("should keep returning the fault after it happened", func() {
			m := newBuilder().Build(mustParse("WRI\n"))
			_, err := m.Step()
			Expect(err).To(HaveOccurred())

			halted, again := m.Step()
			Expect(halted).To(BeTrue())
			Expect(again).To(Equal(err))
		})

		It("should write a state dump when configured", func() {
			var buf bytes.Buffer
			m := newBuilder().WithDumpOnFault(&buf).Build(mustParse("ENT 3\nENT 0\nDIV\n"))
			Expect(m.Run()).NotTo(Succeed())

			out := strings.ToUpper(buf.String())
			Expect(out).To(ContainSubstring("REGISTERS"))
			Expect(out).To(ContainSubstring("| STACK"))
			Expect(out).To(ContainSubstring("TOP 2 OF 2"))
			Expect(out).To(ContainSubstring("0X00001380"))
		})
	})

	Context("input and output", func() {
		var ctrl *gomock.Controller

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
		})

		AfterEach(func() {
			ctrl.Finish()
		})

		It("should read from a finite input sequence", func() {
			m, err := run("REA\nREA\nMUL\nWRI\nHLT\n", 6, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Output()).To(Equal([]int32{42}))
		})

		It("should fault when the input is exhausted", func() {
			m, err := run("REA\nWRI\nREA\nWRI\nHLT\n", 1)
			Expect(errors.Is(err, core.InputExhausted)).To(BeTrue())
			Expect(m.Output()).To(Equal([]int32{1}))
		})

		It("should fault on REA without an input source", func() {
			m := newBuilder().Build(mustParse("REA\nHLT\n"))
			Expect(errors.Is(m.Run(), core.InputExhausted)).To(BeTrue())
		})

		It("should read interactive input line by line", func() {
			in := core.NewReaderInput(strings.NewReader("12\nnot a number\n\n-3\n"))
			m := newBuilder().WithInput(in).Build(mustParse("REA\nREA\nADD\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{9}))
		})

		It("should ask the input source for each REA", func() {
			input := NewMockInputSource(ctrl)
			gomock.InOrder(
				input.EXPECT().ReadInt().Return(int32(8), nil),
				input.EXPECT().ReadInt().Return(int32(2), nil),
			)

			m := newBuilder().WithInput(input).Build(mustParse("REA\nREA\nDIV\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{4}))
		})

		It("should report input errors as I/O failures", func() {
			input := NewMockInputSource(ctrl)
			input.EXPECT().ReadInt().Return(int32(0), os.ErrClosed)

			m := newBuilder().WithInput(input).Build(mustParse("REA\nHLT\n"))
			err := m.Run()
			Expect(errors.Is(err, core.IOFailure)).To(BeTrue())
			Expect(errors.Is(err, os.ErrClosed)).To(BeTrue())
		})

		It("should stream output and keep it", func() {
			sink := NewMockOutputSink(ctrl)
			gomock.InOrder(
				sink.EXPECT().WriteInt(int32(1)).Return(nil),
				sink.EXPECT().WriteInt(int32(2)).Return(nil),
			)

			m := newBuilder().WithOutput(sink).Build(mustParse("ENT 1\nWRI\nENT 2\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{1, 2}))
		})

		It("should fault when the sink fails", func() {
			sink := NewMockOutputSink(ctrl)
			sink.EXPECT().WriteInt(int32(1)).Return(os.ErrClosed)

			m := newBuilder().WithOutput(sink).Build(mustParse("ENT 1\nWRI\nHLT\n"))
			Expect(errors.Is(m.Run(), core.IOFailure)).To(BeTrue())
			Expect(m.Output()).To(Equal([]int32{1}))
		})

		It("should print streamed values one per line", func() {
			var buf bytes.Buffer
			m := newBuilder().WithOutput(core.NewWriterSink(&buf)).
				Build(mustParse("ENT 1\nWRI\nENT -2\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
			Expect(buf.String()).To(Equal("1\n-2\n"))
		})
	})

	Context("runs", func() {
		It("should start every run from fresh state", func() {
			m := newBuilder().
				WithInput(core.NewSliceInput(5)).
				Build(mustParse("ENT 10\nLDM\nWRI\nENT 10\nREA\nSTM\nHLT\n"))

			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{0}))
			Expect(m.Memory()[10]).To(Equal(int32(5)))

			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{0}))
		})

		It("should run one program on many machines at once", func() {
			prog := mustParse("REA\nREA\nMUL\nWRI\nHLT\n")

			var wg sync.WaitGroup
			outputs := make([][]int32, 16)
			for i := range outputs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()

					m := newBuilder().WithInput(core.NewSliceInput(int32(i), 3)).Build(prog)
					Expect(m.Run()).To(Succeed())
					outputs[i] = m.Output()
				}(i)
			}
			wg.Wait()

			for i, out := range outputs {
				Expect(out).To(Equal([]int32{int32(i) * 3}))
			}
		})

		It("should give machines from one builder their own input cursor", func() {
			prog := mustParse("REA\nWRI\nREA\nWRI\nHLT\n")
			b := newBuilder().WithInput(core.NewSliceInput(1, 2))
			a, c := b.Build(prog), b.Build(prog)

			for i := 0; i < 2; i++ {
				_, err := a.Step()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(c.Run()).To(Succeed())

			halted := false
			for !halted {
				var err error
				halted, err = a.Step()
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(a.Output()).To(Equal([]int32{1, 2}))
			Expect(c.Output()).To(Equal([]int32{1, 2}))
		})

		It("should give every machine its own id", func() {
			prog := mustParse("HLT\n")
			a := newBuilder().Build(prog)
			b := newBuilder().Build(prog)
			Expect(a.ID()).NotTo(Equal(b.ID()))
			Expect(a.Program()).To(BeIdenticalTo(prog))
		})

		It("should build from text and from files", func() {
			m, err := newBuilder().BuildFromText(strings.NewReader("ENT 5\nENT 7\nADD\nWRI\nHLT\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{12}))

			path := filepath.Join(GinkgoT().TempDir(), "prog.slx")
			Expect(os.WriteFile(path, []byte("ENT 5\nENT 7\nADD\nWRI\nHLT\n"), 0o644)).To(Succeed())
			m, err = newBuilder().BuildFromFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{12}))

			_, err = newBuilder().BuildFromText(strings.NewReader("BOGUS\n"))
			Expect(errors.Is(err, core.ErrUnknownOpcode)).To(BeTrue())
		})

		It("should honour a custom memory size", func() {
			m := newBuilder().WithMemSize(100).Build(mustParse("ENT 1\nALC\nWRI\nHLT\n"))
			Expect(m.Run()).To(Succeed())
			Expect(m.Output()).To(Equal([]int32{97}))
			Expect(m.Memory()).To(HaveLen(100))
		})
	})
})
