package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/types"
	"github.com/chazu/dbgeval/wire"
)

// emitProgram compiles input and writes it to path as a CBOR program.
func (s *session) emitProgram(path, input string) error {
	c := s.evaluator.Compile(input)
	p, err := wire.NewProgram(c, s.scope.ProcedureName(), s.scope.Arch, types.String(s.scope.Types, c.Type))
	if err != nil {
		return err
	}
	data, err := wire.MarshalProgram(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	log.Infof("wrote %s: %d bytes of code for %q", path, len(p.Code), p.Source)
	return nil
}

// runProgram loads a CBOR program, checks that it still compiles to the
// same code in this session and runs it.
func (s *session) runProgram(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := wire.UnmarshalProgram(data)
	if err != nil {
		return err
	}
	if p.Arch != s.scope.Arch.String() {
		return fmt.Errorf("%s targets %s, session is %s", path, p.Arch, s.scope.Arch)
	}

	if p.Scope != s.scope.ProcedureName() {
		log.Warningf("%s was compiled in %q, running in %q", path, p.Scope, s.scope.ProcedureName())
	}

	var c *compiler.Compiled
	compile := func(source string) (*compiler.Compiled, error) {
		c = s.evaluator.Compile(source)
		return c, c.Errors.Err()
	}
	if err := wire.VerifyProgram(p, compile); err != nil {
		return err
	}
	if !p.ValueCode {
		return fmt.Errorf("%s: %q: %w", path, p.Source, eval.ErrNoValue)
	}

	res := eval.Interpret(p.Code, s.target,
		eval.WithArch(s.scope.Arch),
		eval.WithStackCapacity(s.manifest.Evaluator.StackCapacity),
		eval.WithTrace(s.manifest.Evaluator.Trace),
	)
	if err := res.Err(); err != nil {
		return fmt.Errorf("%s: %w", p.Source, err)
	}
	fmt.Fprintf(out, "%s (%s)\n", eval.FormatValue(s.scope.Types, c.Type, res.Value), p.Type)
	return nil
}
