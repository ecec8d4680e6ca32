package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Code generator: flat assembler (FASM) x86-64 back end
// ---------------------------------------------------------------------------
//
// Generated layout: a fixed prologue with syscall helper routines, a body
// translating each operation, and an epilogue declaring the writable tape
// segment. Register r12 holds the current tape address for the whole
// program; helpers read and write the single byte at [r12].
//
// Exit statuses of the generated program: 0 on normal completion, 1 when
// a bounds check fails, 2 when input is exhausted.

// LabelStackError reports a label-stack mismatch in the generator: a
// LoopEnd with no open label, or End reached with labels still open.
// Unreachable on a resolver-validated Program; it signals an internal
// defect rather than a source error.
type LabelStackError struct {
	Pos int // byte offset of the offending operation
	Msg string
}

func (e *LabelStackError) Error() string {
	return fmt.Sprintf("generator label stack: %s at offset %d", e.Msg, e.Pos)
}

const asmPrologue = `format ELF64 executable 3
segment readable executable
entry main

define SYS_read 0
define SYS_write 1
define SYS_exit 60
define STDIN 0
define STDOUT 1
define EXIT_CODE 0
define OOB_CODE 1
define EXHAUSTED_CODE 2

WRITE_TO_STDOUT:
    mov rax, SYS_write
    mov rdi, STDOUT
    mov rsi, r12
    mov rdx, 1
    syscall
    ret

READ_FROM_STDIN:
    mov rax, SYS_read
    mov rdi, STDIN
    mov rsi, r12
    mov rdx, 1
    syscall
    cmp rax, 1
    jne INPUT_EXHAUSTED
    ret

INPUT_EXHAUSTED:
    mov rax, SYS_exit
    mov rdi, EXHAUSTED_CODE
    syscall

EXIT:
    mov rax, SYS_exit
    mov rdi, EXIT_CODE
    syscall

main:
    mov r12, TAPE
`

const asmOutOfBounds = `
OUT_OF_BOUNDS:
    mov rax, SYS_exit
    mov rdi, OOB_CODE
    syscall
`

// asmGen holds the emission state for one generate call. The label stack
// tracks open loops by the LoopStart's sequence index, which names both
// labels of the pair.
type asmGen struct {
	sb       strings.Builder
	settings Settings
	labels   []int
}

// GenerateAsm translates a resolved program into FASM x86-64 source.
// Boundary policy follows settings: with Wrap false every pointer move
// is preceded by a bounds check that jumps to a shared OUT_OF_BOUNDS
// handler, appended exactly once after the body, and a leftward run of
// at least the tape length jumps there unconditionally; with Wrap true
// every move is followed by a conditional correction by the tape
// length, with runs reduced modulo the tape length so one correction
// suffices.
func GenerateAsm(p *Program, settings Settings) (string, error) {
	g := &asmGen{settings: settings}
	g.sb.WriteString(asmPrologue)

	for i, op := range p.Ops {
		if err := g.emitOp(i, op); err != nil {
			return "", err
		}
		if op.Kind == OpEnd {
			break
		}
	}

	if len(g.labels) > 0 {
		open := g.labels[len(g.labels)-1]
		return "", &LabelStackError{
			Pos: p.Ops[open].Pos,
			Msg: fmt.Sprintf("%d open at end", len(g.labels)),
		}
	}

	if !settings.Wrap {
		g.sb.WriteString(asmOutOfBounds)
	}

	g.sb.WriteString("\nsegment readable writeable\n")
	fmt.Fprintf(&g.sb, "TAPE_SIZE = %d\n", TapeSize)
	g.sb.WriteString("TAPE rb TAPE_SIZE\n")

	return g.sb.String(), nil
}

func (g *asmGen) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.sb, "    "+format+"\n", args...)
}

func (g *asmGen) label(format string, args ...interface{}) {
	fmt.Fprintf(&g.sb, format+":\n", args...)
}

func (g *asmGen) emitOp(i int, op Op) error {
	if op.Kind.Repeatable() && op.Run < 1 {
		return &MalformedOpError{Kind: op.Kind, Pos: op.Pos}
	}

	switch op.Kind {
	case OpIncrement:
		g.emit("add byte [r12], %d", op.Run%256)

	case OpDecrement:
		g.emit("sub byte [r12], %d", op.Run%256)

	case OpMoveRight:
		if g.settings.Wrap {
			g.emit("add r12, %d", op.Run%TapeSize)
			g.emit("lea rax, [r12 - TAPE_SIZE]")
			g.emit("cmp r12, TAPE + TAPE_SIZE")
			g.emit("cmovae r12, rax")
		} else {
			g.emit("lea rax, [r12 + %d]", op.Run)
			g.emit("cmp rax, TAPE + TAPE_SIZE")
			g.emit("jae OUT_OF_BOUNDS")
			g.emit("add r12, %d", op.Run)
		}

	case OpMoveLeft:
		if g.settings.Wrap {
			g.emit("sub r12, %d", op.Run%TapeSize)
			g.emit("lea rax, [r12 + TAPE_SIZE]")
			g.emit("cmp r12, TAPE")
			g.emit("cmovb r12, rax")
		} else if op.Run >= TapeSize {
			// A run this long underflows from every cell, and r12 - run
			// can wrap below address zero and slip past the lea check.
			g.emit("jmp OUT_OF_BOUNDS")
		} else {
			g.emit("lea rax, [r12 - %d]", op.Run)
			g.emit("cmp rax, TAPE")
			g.emit("jb OUT_OF_BOUNDS")
			g.emit("sub r12, %d", op.Run)
		}

	case OpOutput:
		for n := 0; n < op.Run; n++ {
			g.emit("call WRITE_TO_STDOUT")
		}

	case OpInput:
		for n := 0; n < op.Run; n++ {
			g.emit("call READ_FROM_STDIN")
		}

	case OpLoopStart:
		g.labels = append(g.labels, i)
		g.emit("cmp byte [r12], 0")
		g.emit("je after_loop_%d", i)
		g.label("loop_%d", i)

	case OpLoopEnd:
		if len(g.labels) == 0 {
			return &LabelStackError{Pos: op.Pos, Msg: "close with no open loop"}
		}
		open := g.labels[len(g.labels)-1]
		g.labels = g.labels[:len(g.labels)-1]
		g.emit("cmp byte [r12], 0")
		g.emit("jne loop_%d", open)
		g.label("after_loop_%d", open)

	case OpEnd:
		g.emit("call EXIT")
	}

	return nil
}
