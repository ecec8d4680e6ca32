package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Resolver: structural validation and jump-target assignment
// ---------------------------------------------------------------------------

// UnmatchedCloseError reports a ']' with no open '[' before it.
type UnmatchedCloseError struct {
	Pos int // byte offset of the ']'
}

func (e *UnmatchedCloseError) Error() string {
	return fmt.Sprintf("unmatched ']' at offset %d", e.Pos)
}

// UnmatchedOpenError reports a '[' still open when input ends. OpenPos is
// the innermost unmatched '['.
type UnmatchedOpenError struct {
	EOFPos  int // byte offset where input ended
	OpenPos int // byte offset of the innermost unmatched '['
}

func (e *UnmatchedOpenError) Error() string {
	return fmt.Sprintf("unmatched '[' at offset %d, still open at end of input (offset %d)", e.OpenPos, e.EOFPos)
}

// Resolve validates bracket structure and assigns jump targets, producing
// an immutable Program. It copies the input; raw operations are never
// mutated.
//
// Targets follow the skip-when-false convention: a LoopStart's Jump is
// the index just past its matching LoopEnd, a LoopEnd's Jump is the index
// just past its matching LoopStart. The sequence is normalized to end
// with exactly one End operation.
//
// An unmatched ']' fails immediately with UnmatchedCloseError. A '['
// still open at the end fails with UnmatchedOpenError naming the
// innermost one.
func Resolve(ops []Op) (*Program, error) {
	out := make([]Op, 0, len(ops)+1)
	var stack []int // indices of pending LoopStarts in out

	for _, op := range ops {
		if op.Kind == OpEnd {
			out = append(out, op)
			break
		}
		i := len(out)
		out = append(out, op)

		switch op.Kind {
		case OpLoopStart:
			stack = append(stack, i)
		case OpLoopEnd:
			if len(stack) == 0 {
				return nil, &UnmatchedCloseError{Pos: op.Pos}
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out[open].Jump = i + 1
			out[i].Jump = open + 1
		}
	}

	if n := len(out); n == 0 || out[n-1].Kind != OpEnd {
		pos := 0
		if n > 0 {
			pos = out[n-1].Pos + 1
		}
		out = append(out, Op{Kind: OpEnd, Pos: pos})
	}

	if len(stack) > 0 {
		innermost := stack[len(stack)-1]
		return nil, &UnmatchedOpenError{
			EOFPos:  out[len(out)-1].Pos,
			OpenPos: out[innermost].Pos,
		}
	}

	return &Program{Ops: out}, nil
}

// Parse tokenizes and resolves source text in one call.
func Parse(input string) (*Program, error) {
	return Resolve(Tokenize(input))
}
