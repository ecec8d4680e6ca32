package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Operation model for the tape language
// ---------------------------------------------------------------------------

// OpKind identifies one of the eight source symbols, plus the End marker
// that terminates every operation sequence.
type OpKind int

const (
	// OpEnd terminates an operation sequence. The lexer returns it at end
	// of input; a resolved Program always ends with exactly one.
	OpEnd OpKind = iota

	// Repeatable operations. The lexer collapses a run of N identical
	// symbols into a single Op with Run = N.
	OpIncrement // +
	OpDecrement // -
	OpMoveRight // >
	OpMoveLeft  // <
	OpOutput    // .
	OpInput     // ,

	// Control operations. Never carry a run-length; the resolver assigns
	// their jump targets.
	OpLoopStart // [
	OpLoopEnd   // ]
)

var opNames = map[OpKind]string{
	OpEnd:       "End",
	OpIncrement: "Increment",
	OpDecrement: "Decrement",
	OpMoveRight: "MoveRight",
	OpMoveLeft:  "MoveLeft",
	OpOutput:    "Output",
	OpInput:     "Input",
	OpLoopStart: "LoopStart",
	OpLoopEnd:   "LoopEnd",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Repeatable returns true if the kind carries a run-length.
func (k OpKind) Repeatable() bool {
	switch k {
	case OpIncrement, OpDecrement, OpMoveRight, OpMoveLeft, OpOutput, OpInput:
		return true
	}
	return false
}

// Symbol returns the source character for the kind, or 0 for OpEnd.
func (k OpKind) Symbol() byte {
	switch k {
	case OpIncrement:
		return '+'
	case OpDecrement:
		return '-'
	case OpMoveRight:
		return '>'
	case OpMoveLeft:
		return '<'
	case OpOutput:
		return '.'
	case OpInput:
		return ','
	case OpLoopStart:
		return '['
	case OpLoopEnd:
		return ']'
	}
	return 0
}

// KindOf classifies a source byte. Returns false for any byte that is not
// one of the eight meaningful symbols; such bytes are comments.
func KindOf(ch byte) (OpKind, bool) {
	switch ch {
	case '+':
		return OpIncrement, true
	case '-':
		return OpDecrement, true
	case '>':
		return OpMoveRight, true
	case '<':
		return OpMoveLeft, true
	case '.':
		return OpOutput, true
	case ',':
		return OpInput, true
	case '[':
		return OpLoopStart, true
	case ']':
		return OpLoopEnd, true
	}
	return 0, false
}

// Op is one operation in a program.
//
// Run is the run-length for repeatable kinds: how many consecutive
// identical source symbols were collapsed into this Op. It is always
// >= 1 on a repeatable Op produced by the lexer, and zero on brackets
// and End.
//
// Jump is the control-transfer target, set by the resolver on brackets
// only. A LoopStart's Jump is the index just past its matching LoopEnd
// (the post-loop index); a LoopEnd's Jump is the index just past its
// matching LoopStart (the re-entry index). Both back ends treat Jump as
// a direct program-counter assignment. Resolved targets are always
// >= 1, so zero means "not resolved".
//
// Pos is the byte offset of the Op's first source character, kept for
// diagnostics.
type Op struct {
	Kind OpKind
	Run  int
	Jump int
	Pos  int
}

func (op Op) String() string {
	switch {
	case op.Kind.Repeatable():
		return fmt.Sprintf("%s x%d @%d", op.Kind, op.Run, op.Pos)
	case op.Kind == OpLoopStart || op.Kind == OpLoopEnd:
		return fmt.Sprintf("%s ->%d @%d", op.Kind, op.Jump, op.Pos)
	default:
		return op.Kind.String()
	}
}

// MalformedOpError reports a repeatable operation carrying no run-length.
// The lexer never produces one, so it signals an internal defect in
// whatever constructed the sequence, not a source error.
type MalformedOpError struct {
	Kind OpKind
	Pos  int
}

func (e *MalformedOpError) Error() string {
	return fmt.Sprintf("malformed %s operation at offset %d: missing run-length", e.Kind, e.Pos)
}
