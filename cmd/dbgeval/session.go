package main

import (
	"fmt"
	"io"

	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/fixture"
	"github.com/chazu/dbgeval/manifest"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
	"github.com/chazu/dbgeval/target"
)

// session is one stop location: the scope to compile in, the target to
// read from and the evaluator bound to both.
type session struct {
	manifest  *manifest.Manifest
	scope     *debuginfo.Scope
	target    *target.Snapshot
	evaluator *eval.Evaluator
	disasm    bool
}

// sources names where a session comes from. Empty fields fall back to
// the manifest.
type sources struct {
	fixture  string
	database string
	arch     string
}

// openSession loads the fixture and debug-info database named by src or
// m. Without a fixture the target is an empty snapshot, so only
// constant expressions and value-bytecode symbols evaluate.
func openSession(m *manifest.Manifest, src sources) (*session, error) {
	fixturePath := src.fixture
	if fixturePath == "" {
		fixturePath = m.FixturePath()
	}
	dbPath := src.database
	if dbPath == "" {
		dbPath = m.DatabasePath()
	}
	archName := src.arch
	if archName == "" {
		archName = m.Evaluator.Arch
	}

	s := &session{manifest: m}
	if fixturePath != "" {
		fx, err := fixture.Load(fixturePath)
		if err != nil {
			return nil, err
		}
		s.scope, s.target = fx.Scope, fx.Target
	}

	if dbPath != "" {
		scope, err := debuginfo.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		if s.scope != nil && s.scope.Arch != scope.Arch {
			return nil, fmt.Errorf("%s is %s but the fixture is %s", dbPath, scope.Arch, s.scope.Arch)
		}
		s.scope = scope
	}

	if s.scope == nil {
		arch, err := regs.ParseArch(archName)
		if err != nil {
			return nil, err
		}
		s.scope = debuginfo.NewScope(arch)
	} else if src.arch != "" {
		arch, err := regs.ParseArch(src.arch)
		if err != nil {
			return nil, err
		}
		if arch != s.scope.Arch {
			return nil, fmt.Errorf("-arch %s does not match the loaded %s target", arch, s.scope.Arch)
		}
	}
	if s.target == nil {
		s.target = target.New(s.scope.Arch)
	}

	ctx := s.scope.Context()
	ctx.MaxDepth = m.Evaluator.MaxDepth
	s.evaluator = eval.NewEvaluator(ctx,
		eval.WithArch(s.scope.Arch),
		eval.WithStackCapacity(m.Evaluator.StackCapacity),
		eval.WithTrace(m.Evaluator.Trace),
	)
	return s, nil
}

// evalAndPrint evaluates one expression, writing the value to out and
// diagnostics to errOut. It reports whether evaluation succeeded.
func (s *session) evalAndPrint(out, errOut io.Writer, input string) bool {
	ev, err := s.evaluator.Evaluate(input, s.target)
	c := ev.Compiled
	for _, e := range c.Errors {
		fmt.Fprintf(errOut, "%s\n", formatDiagnostic(input, e.Offset, e.Severity.String(), e.Message))
	}

	if err == nil {
		fmt.Fprintln(out, eval.Describe(s.scope.Types, ev))
	} else if c.OK() {
		fmt.Fprintf(errOut, "error: %v (%s)\n", err, types.String(s.scope.Types, c.Type))
	}

	if s.disasm && c.OK() {
		code := c.ValueCode
		if code == nil {
			code = c.Code
		}
		fmt.Fprint(out, bytecode.DisassembleCode(input, code))
	}
	return err == nil
}

// formatDiagnostic renders a diagnostic with a caret under its column.
func formatDiagnostic(input string, offset int, severity, message string) string {
	if offset > len(input) {
		offset = len(input)
	}
	caret := make([]byte, offset)
	for i := range caret {
		caret[i] = ' '
		if input[i] == '\t' {
			caret[i] = '\t'
		}
	}
	return fmt.Sprintf("%s: %s\n  %s\n  %s^", severity, message, input, caret)
}
