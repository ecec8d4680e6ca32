package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/bfc/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "bfc-lsp"

// LspServer provides editor features for tape-language sources:
// structural diagnostics, hover on operations, and jump-to-matching-
// bracket as definition.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "bfc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	return hoverAt(text, positionToOffset(text, params.Position)), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	offset := positionToOffset(text, params.Position)
	match, ok := matchingBracket(text, offset)
	if !ok {
		return nil, nil
	}

	return []protocol.Location{{
		URI:   uri,
		Range: rangeAt(text, match),
	}}, nil
}

// matchingBracket returns the byte offset of the bracket matching the
// one at offset, or false when offset is not on a bracket or the source
// does not resolve.
func matchingBracket(text string, offset int) (int, bool) {
	if offset >= len(text) {
		return 0, false
	}
	if kind, ok := compiler.KindOf(text[offset]); !ok || (kind != compiler.OpLoopStart && kind != compiler.OpLoopEnd) {
		return 0, false
	}

	prog, err := compiler.Parse(text)
	if err != nil {
		return 0, false
	}

	i, ok := prog.OpAt(offset)
	if !ok || prog.Ops[i].Pos != offset {
		return 0, false
	}
	j, ok := prog.Matching(i)
	if !ok {
		return 0, false
	}
	return prog.Ops[j].Pos, true
}

// hoverAt builds hover content for the operation covering offset, or nil
// when offset is on a comment byte or the source does not resolve.
func hoverAt(text string, offset int) *protocol.Hover {
	if offset >= len(text) {
		return nil
	}
	if _, ok := compiler.KindOf(text[offset]); !ok {
		return nil
	}

	prog, err := compiler.Parse(text)
	if err != nil {
		return nil
	}
	i, ok := prog.OpAt(offset)
	if !ok {
		return nil
	}
	op := prog.Ops[i]

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%c`\n\n", op.Kind, op.Kind.Symbol())

	switch op.Kind {
	case compiler.OpIncrement:
		fmt.Fprintf(&b, "Adds %d to the current cell, wrapping mod 256.", op.Run)
	case compiler.OpDecrement:
		fmt.Fprintf(&b, "Subtracts %d from the current cell, wrapping mod 256.", op.Run)
	case compiler.OpMoveRight:
		fmt.Fprintf(&b, "Moves the data pointer right by %d.", op.Run)
	case compiler.OpMoveLeft:
		fmt.Fprintf(&b, "Moves the data pointer left by %d.", op.Run)
	case compiler.OpOutput:
		fmt.Fprintf(&b, "Writes the current cell to output %d times.", op.Run)
	case compiler.OpInput:
		fmt.Fprintf(&b, "Reads %d bytes from input into the current cell.", op.Run)
	case compiler.OpLoopStart, compiler.OpLoopEnd:
		j, ok := prog.Matching(i)
		if ok {
			pos := offsetToPosition(text, prog.Ops[j].Pos)
			fmt.Fprintf(&b, "Matches `%c` at line %d, column %d.\n\n", prog.Ops[j].Kind.Symbol(), pos.Line+1, pos.Character+1)
		}
		fmt.Fprintf(&b, "Depth %d.", prog.Depth(i))
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnosticsFor(text)

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticsFor maps structural errors to LSP diagnostics. A clean
// parse yields an empty list so stale diagnostics get cleared.
func diagnosticsFor(text string) []protocol.Diagnostic {
	_, err := compiler.Parse(text)
	if err == nil {
		return []protocol.Diagnostic{}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName

	var rng protocol.Range
	switch e := err.(type) {
	case *compiler.UnmatchedCloseError:
		rng = rangeAt(text, e.Pos)
	case *compiler.UnmatchedOpenError:
		rng = rangeAt(text, e.OpenPos)
	default:
		rng = rangeAt(text, 0)
	}

	return []protocol.Diagnostic{{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}}
}

// --- Position helpers ---

// offsetToPosition converts a byte offset into a line/character pair.
func offsetToPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	line := strings.Count(text[:offset], "\n")
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(offset - lineStart),
	}
}

// positionToOffset converts a line/character pair into a byte offset,
// clamping past-the-end positions to the line end.
func positionToOffset(text string, pos protocol.Position) int {
	offset := 0
	for line := 0; line < int(pos.Line); line++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}

	col := int(pos.Character)
	lineEnd := strings.IndexByte(text[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text) - offset
	}
	if col > lineEnd {
		col = lineEnd
	}
	return offset + col
}

// rangeAt returns the single-character range starting at offset.
func rangeAt(text string, offset int) protocol.Range {
	return protocol.Range{
		Start: offsetToPosition(text, offset),
		End:   offsetToPosition(text, offset+1),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
