package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/types"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "dbgeval-lsp"

// LspServer treats every line of a watch file as an expression. It
// publishes compile diagnostics per line and evaluates the line under the
// cursor on hover.
type LspServer struct {
	pool   *Pool
	scope  *debuginfo.Scope
	target bytecode.Target

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server evaluating on pool.
func NewLSP(pool *Pool, scope *debuginfo.Scope, target bytecode.Target) *LspServer {
	s := &LspServer{
		pool:    pool,
		scope:   scope,
		target:  target,
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

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
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
	commonlog.NewInfoMessage(0, "dbgeval LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ">", ":"},
	}

	capabilities.HoverProvider = true

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
	s.pool.Stop()
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
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	if word := extractWord(text, params.Position); word != "" {
		if k, ok := s.scope.Types.Lookup(word); ok {
			return s.typeHover(word, k), nil
		}
	}

	line, ok := lineAt(text, params.Position.Line)
	if !ok || isBlank(line) {
		return nil, nil
	}

	result, err := s.pool.Do(context.Background(), func(ev *eval.Evaluator) interface{} {
		return s.hover(ev, line)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

// --- Evaluator-backed logic ---

func (s *LspServer) complete(prefix string) []protocol.CompletionItem {
	typeNames := make(map[string]bool)
	for _, name := range s.scope.Types.Names() {
		typeNames[name] = true
	}

	var items []protocol.CompletionItem
	for _, name := range s.scope.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindVariable
		detail := "symbol"
		if typeNames[name] {
			kind = protocol.CompletionItemKindStruct
			detail = "type"
		}
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (s *LspServer) hover(ev *eval.Evaluator, line string) *protocol.Hover {
	evaluation, err := ev.Evaluate(line, s.target)

	var b strings.Builder
	switch {
	case err == nil:
		fmt.Fprintf(&b, "`%s`", eval.Describe(s.scope.Types, evaluation))
	case evaluation.Compiled.OK():
		fmt.Fprintf(&b, "`%s`\n\n%s", types.String(s.scope.Types, evaluation.Type()), err)
	default:
		b.WriteString(err.Error())
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) typeHover(name string, k types.Key) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: `%s`, %d bytes", name, types.String(s.scope.Types, k), s.scope.Types.ByteSize(k))
	for _, m := range s.scope.Types.Members(k) {
		fmt.Fprintf(&b, "\n- `%s` %s at +%d", types.String(s.scope.Types, m.Type), m.Name, m.Offset)
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
	result, err := s.pool.Do(context.Background(), func(ev *eval.Evaluator) interface{} {
		return diagnose(ev, text)
	})
	if err != nil {
		log.Warningf("diagnostics for %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// diagnose compiles each line of text and maps compiler diagnostics to
// the column they point at.
func diagnose(ev *eval.Evaluator, text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lspName
	for i, line := range splitLines(text) {
		if isBlank(line) {
			continue
		}
		for _, e := range ev.Compile(line).Errors {
			col := e.Offset
			if col > len(line) {
				col = len(line)
			}
			end := col + 1
			if end > len(line) {
				end = len(line)
			}
			severity := protocol.DiagnosticSeverityError
			if e.Severity == compiler.SeverityWarning {
				severity = protocol.DiagnosticSeverityWarning
			}
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(col)},
					End:   protocol.Position{Line: protocol.UInteger(i), Character: protocol.UInteger(end)},
				},
				Severity: &severity,
				Source:   &source,
				Message:  e.Message,
			})
		}
	}
	return diagnostics
}

// --- Text extraction helpers ---

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func lineAt(text string, n protocol.UInteger) (string, bool) {
	lines := splitLines(text)
	if int(n) >= len(lines) {
		return "", false
	}
	return lines[n], true
}

// isBlank reports whether a line holds no expression. Lines starting
// with "#" are comments.
func isBlank(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the name fragment before the cursor for
// completion. Namespace separators are part of the fragment.
func extractPrefix(text string, pos protocol.Position) string {
	line, ok := lineAt(text, pos.Line)
	if !ok {
		return ""
	}
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if isIdentChar(ch) || ch == ':' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}
	return strings.TrimLeft(line[start:col], ":")
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, ok := lineAt(text, pos.Line)
	if !ok {
		return ""
	}
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
