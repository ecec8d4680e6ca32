package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// TapeSize is the number of byte cells on the tape. Both back ends
// allocate exactly this much.
const TapeSize = 30000

// Settings selects the tape-boundary policy shared by both back ends.
type Settings struct {
	// Wrap makes pointer motion past a tape edge re-enter from the
	// opposite edge. When false, motion past an edge is a fatal error:
	// the evaluator fails with TapeOverflow/TapeUnderflow and generated
	// code jumps to an out-of-bounds handler. Cell values always wrap
	// mod 256 regardless.
	Wrap bool
}

// Program is a resolved operation sequence: every bracket has a jump
// target and the sequence ends with exactly one End. Immutable after
// resolution; back ends only read it.
type Program struct {
	Ops []Op
}

// Matching returns the index of the bracket matching the bracket at i,
// or false if i is not a resolved bracket.
func (p *Program) Matching(i int) (int, bool) {
	if i < 0 || i >= len(p.Ops) {
		return 0, false
	}
	op := p.Ops[i]
	if (op.Kind == OpLoopStart || op.Kind == OpLoopEnd) && op.Jump > 0 {
		return op.Jump - 1, true
	}
	return 0, false
}

// Depth returns the loop-nesting depth at operation i: the number of
// loops the operation sits inside. A bracket counts as inside its own
// loop.
func (p *Program) Depth(i int) int {
	depth := 0
	for j := 0; j <= i && j < len(p.Ops); j++ {
		switch p.Ops[j].Kind {
		case OpLoopStart:
			depth++
		case OpLoopEnd:
			if j < i {
				depth--
			}
		}
	}
	return depth
}

// OpAt returns the index of the operation covering the given source
// offset: the last operation whose first character is at or before it.
// Returns false if the offset precedes every operation.
func (p *Program) OpAt(offset int) (int, bool) {
	i := sort.Search(len(p.Ops), func(j int) bool {
		return p.Ops[j].Pos > offset
	}) - 1
	if i < 0 {
		return 0, false
	}
	return i, true
}

var opMnemonics = map[OpKind]string{
	OpEnd:       "END",
	OpIncrement: "INCREMENT",
	OpDecrement: "DECREMENT",
	OpMoveRight: "MOVE_RIGHT",
	OpMoveLeft:  "MOVE_LEFT",
	OpOutput:    "OUTPUT",
	OpInput:     "INPUT",
	OpLoopStart: "LOOP_START",
	OpLoopEnd:   "LOOP_END",
}

// Disassemble returns a human-readable listing of the program, one
// operation per line with its index, run-length or jump target, and
// source offset.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; %d operations\n", len(p.Ops)))
	for i, op := range p.Ops {
		switch {
		case op.Kind.Repeatable():
			sb.WriteString(fmt.Sprintf("%04d  %-10s x%-4d ; src %d\n", i, opMnemonics[op.Kind], op.Run, op.Pos))
		case op.Kind == OpLoopStart || op.Kind == OpLoopEnd:
			sb.WriteString(fmt.Sprintf("%04d  %-10s (-> %04d) ; src %d\n", i, opMnemonics[op.Kind], op.Jump, op.Pos))
		default:
			sb.WriteString(fmt.Sprintf("%04d  %s\n", i, opMnemonics[op.Kind]))
		}
	}

	return sb.String()
}
