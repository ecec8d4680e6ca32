package vm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/bfc/compiler"
)

// ---------------------------------------------------------------------------
// Interp: tree-walking evaluator for resolved programs
// ---------------------------------------------------------------------------

// ErrInputExhausted is returned when an Input operation cannot obtain a
// byte. Program input is finite; running out is a terminal error, not an
// end-of-file condition.
var ErrInputExhausted = errors.New("vm: input exhausted")

// TapeOverflowError reports pointer motion past the last tape cell with
// wrapping disabled.
type TapeOverflowError struct {
	Pos int // byte offset of the MoveRight in the source
}

func (e *TapeOverflowError) Error() string {
	return fmt.Sprintf("tape overflow at offset %d", e.Pos)
}

// TapeUnderflowError reports pointer motion past the first tape cell with
// wrapping disabled.
type TapeUnderflowError struct {
	Pos int // byte offset of the MoveLeft in the source
}

func (e *TapeUnderflowError) Error() string {
	return fmt.Sprintf("tape underflow at offset %d", e.Pos)
}

// Interp executes one resolved program against a fresh zeroed tape.
// State is single-use: create a new Interp per run.
type Interp struct {
	prog     *compiler.Program
	settings compiler.Settings

	pc   int // index into prog.Ops
	dp   int // index into tape
	tape [compiler.TapeSize]byte

	input  io.Reader
	output io.Writer
}

// New creates an interpreter for one execution of prog. Input supplies
// the program's input bytes; output receives the program's output bytes.
func New(prog *compiler.Program, settings compiler.Settings, input io.Reader, output io.Writer) *Interp {
	return &Interp{
		prog:     prog,
		settings: settings,
		input:    input,
		output:   output,
	}
}

// Tape returns the interpreter's tape. The slice aliases live state;
// callers inspect it after Run returns.
func (i *Interp) Tape() []byte {
	return i.tape[:]
}

// DP returns the current data pointer.
func (i *Interp) DP() int {
	return i.dp
}

// Run executes the program to completion. It returns nil when the End
// operation is reached, a TapeOverflowError/TapeUnderflowError when
// pointer motion leaves the tape with wrapping disabled,
// ErrInputExhausted when an Input operation cannot be satisfied, and a
// MalformedOpError for sequences that violate the resolver's guarantees.
// Cell arithmetic always wraps mod 256 regardless of settings.
func (i *Interp) Run() error {
	var buf [1]byte

	for {
		if i.pc < 0 || i.pc >= len(i.prog.Ops) {
			return nil
		}

		op := i.prog.Ops[i.pc]
		i.pc++

		if op.Kind.Repeatable() && op.Run < 1 {
			return &compiler.MalformedOpError{Kind: op.Kind, Pos: op.Pos}
		}

		switch op.Kind {
		// ============ Arithmetic ============
		case compiler.OpIncrement:
			i.tape[i.dp] += byte(op.Run)

		case compiler.OpDecrement:
			i.tape[i.dp] -= byte(op.Run)

		// ============ Pointer motion ============
		case compiler.OpMoveRight:
			dp := i.dp + op.Run
			if dp >= compiler.TapeSize {
				if !i.settings.Wrap {
					return &TapeOverflowError{Pos: op.Pos}
				}
				dp %= compiler.TapeSize
			}
			i.dp = dp

		case compiler.OpMoveLeft:
			if op.Run > i.dp {
				if !i.settings.Wrap {
					return &TapeUnderflowError{Pos: op.Pos}
				}
				deficit := (op.Run - i.dp) % compiler.TapeSize
				i.dp = (compiler.TapeSize - deficit) % compiler.TapeSize
			} else {
				i.dp -= op.Run
			}

		// ============ I/O ============
		case compiler.OpOutput:
			buf[0] = i.tape[i.dp]
			for n := 0; n < op.Run; n++ {
				if _, err := i.output.Write(buf[:]); err != nil {
					return fmt.Errorf("vm: write output: %w", err)
				}
			}

		case compiler.OpInput:
			for n := 0; n < op.Run; n++ {
				if _, err := io.ReadFull(i.input, buf[:]); err != nil {
					return ErrInputExhausted
				}
				i.tape[i.dp] = buf[0]
			}

		// ============ Control ============
		case compiler.OpLoopStart:
			if i.tape[i.dp] == 0 {
				i.pc = op.Jump
			}

		case compiler.OpLoopEnd:
			if i.tape[i.dp] != 0 {
				i.pc = op.Jump
			}

		case compiler.OpEnd:
			return nil
		}
	}
}

// Execute parses, resolves, and runs source in one call, returning the
// program's output. Structural errors surface before any execution.
func Execute(source string, settings compiler.Settings, input io.Reader) ([]byte, error) {
	prog, err := compiler.Parse(source)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := New(prog, settings, input, &out).Run(); err != nil {
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}
