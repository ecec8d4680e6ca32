package compiler

// ---------------------------------------------------------------------------
// Lexer: scanner for the eight-symbol tape language
// ---------------------------------------------------------------------------

// Lexer scans source text into operations, collapsing each run of
// identical repeatable symbols into a single Op carrying the count.
// Bytes that are not one of the eight symbols are comments: they never
// produce operations and never break a run.
type Lexer struct {
	input string
	pos   int // current position in input
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// skipComments advances pos to the next meaningful symbol or end of input.
func (l *Lexer) skipComments() {
	for l.pos < len(l.input) {
		if _, ok := KindOf(l.input[l.pos]); ok {
			return
		}
		l.pos++
	}
}

// NextOp returns the next operation. Repeatable symbols are collapsed:
// the scan continues past comment bytes and stops, without consuming, at
// the first different symbol or at end of input. At end of input NextOp
// returns an Op of kind OpEnd, and keeps returning it on further calls.
func (l *Lexer) NextOp() Op {
	l.skipComments()

	if l.pos >= len(l.input) {
		return Op{Kind: OpEnd, Pos: l.pos}
	}

	kind, _ := KindOf(l.input[l.pos])
	op := Op{Kind: kind, Pos: l.pos}
	l.pos++

	if !kind.Repeatable() {
		return op
	}

	op.Run = 1
	for {
		l.skipComments()
		if l.pos >= len(l.input) {
			break
		}
		next, _ := KindOf(l.input[l.pos])
		if next != kind {
			break
		}
		op.Run++
		l.pos++
	}
	return op
}

// Tokenize returns all operations from the input, ending with OpEnd.
func Tokenize(input string) []Op {
	l := NewLexer(input)
	var ops []Op
	for {
		op := l.NextOp()
		ops = append(ops, op)
		if op.Kind == OpEnd {
			break
		}
	}
	return ops
}
