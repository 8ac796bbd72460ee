// Package eval is the public entry point of the evaluator: it compiles
// expression text to bytecode and runs bytecode against a target.
package eval

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
)

var log = commonlog.GetLogger("dbgeval.eval")

// ErrNoValue is returned when an expression compiles but its type cannot
// be loaded into a slot, such as a struct wider than eight bytes.
var ErrNoValue = errors.New("expression has no scalar value")

// Compile compiles text in ctx. The result always carries diagnostics;
// Code is nil when any error-severity diagnostic was recorded.
func Compile(text string, ctx *compiler.Context) *compiler.Compiled {
	c := compiler.Compile(text, ctx)
	log.Debugf("compile %q: %d bytes, %d diagnostics", text, len(c.Code), len(c.Errors))
	return c
}

// Option configures the VM used by Interpret.
type Option func(*bytecode.VM)

// WithArch reads registers through the layout of arch.
func WithArch(arch regs.Arch) Option {
	return func(vm *bytecode.VM) {
		if arch != regs.ArchNone {
			vm.Layout = arch
		}
	}
}

// WithLayout reads registers through an arbitrary layout.
func WithLayout(layout bytecode.RegisterLayout) Option {
	return func(vm *bytecode.VM) { vm.Layout = layout }
}

// WithStackCapacity bounds the evaluation stack.
func WithStackCapacity(n int) Option {
	return func(vm *bytecode.VM) { vm.StackCapacity = n }
}

// WithTrace logs every executed instruction.
func WithTrace(on bool) Option {
	return func(vm *bytecode.VM) { vm.Trace = on }
}

// Interpret runs code against target.
func Interpret(code []byte, target bytecode.Target, opts ...Option) bytecode.Result {
	vm := bytecode.NewVM(target)
	for _, opt := range opts {
		opt(vm)
	}
	res := vm.Execute(code)
	log.Debugf("interpret: %d bytes, status %s", len(code), res.Status)
	return res
}

// Evaluation is the outcome of Evaluate. Result is only set once the
// expression compiled to value code.
type Evaluation struct {
	Compiled *compiler.Compiled
	Result   bytecode.Result
	Ran      bool
}

// Type returns the static type of the expression.
func (e *Evaluation) Type() types.Key {
	return e.Compiled.Type
}

// Evaluate compiles text, resolves its mode to a value and runs it.
// The returned Evaluation is never nil; err reports the first failure
// from compilation, value loading or execution.
func Evaluate(text string, ctx *compiler.Context, target bytecode.Target, opts ...Option) (*Evaluation, error) {
	return run(Compile(text, ctx), target, opts)
}

func run(c *compiler.Compiled, target bytecode.Target, opts []Option) (*Evaluation, error) {
	ev := &Evaluation{Compiled: c}
	if err := c.Errors.Err(); err != nil {
		return ev, err
	}
	if c.ValueCode == nil {
		return ev, fmt.Errorf("eval: %s: %w", c.Text, ErrNoValue)
	}
	ev.Result, ev.Ran = Interpret(c.ValueCode, target, opts...), true
	if err := ev.Result.Err(); err != nil {
		return ev, fmt.Errorf("eval: %s: %w", c.Text, err)
	}
	return ev, nil
}
