package compiler

import (
	"github.com/chazu/dbgeval/pkg/ir"
	"github.com/chazu/dbgeval/pkg/types"
)

// Compiled is the result of compiling one expression.
type Compiled struct {
	Text string
	AST  Expr

	// IR and Code compute the expression in its natural Mode.
	IR   ir.Node
	Code []byte
	Type types.Key
	Mode Mode

	// ValueIR and ValueCode compute the expression's value. They are nil
	// when the type cannot be loaded into a slot, such as a struct.
	ValueIR   ir.Node
	ValueCode []byte

	Errors Errors
}

// OK reports whether code was produced.
func (c *Compiled) OK() bool {
	return c.Code != nil && !c.Errors.HasErrors()
}

// Compile runs the whole pipeline over text. Code is only produced when
// no error-severity diagnostic was recorded.
func Compile(text string, ctx *Context) *Compiled {
	ctx = withDefaults(ctx)
	out := &Compiled{Text: text}

	ast, errs := Parse(text, Tokenize(text), ctx)
	out.AST = ast
	out.Errors = errs
	if ast == nil {
		if !out.Errors.HasErrors() {
			out.Errors.errorf(ErrMalformedInput, 0, "Expected expression.")
		}
		return out
	}

	l := &lowerer{tp: ctx.Types}
	res := l.lower(ast)
	out.Errors = append(out.Errors, l.errs...)
	if out.Errors.HasErrors() || !res.OK() {
		return out
	}

	out.IR, out.Type, out.Mode = res.Node, res.Type, res.Mode
	code, err := ir.Encode(res.Node)
	if err != nil {
		out.Errors.errorf(ErrMalformedInput, 0, "Cannot encode expression: %v", err)
		return out
	}
	out.Code = code

	if v, ok := l.tryValue(res); ok {
		out.ValueIR = v.Node
		if out.ValueCode, err = ir.Encode(v.Node); err != nil {
			out.ValueIR, out.ValueCode = nil, nil
			out.Errors.errorf(ErrMalformedInput, 0, "Cannot encode expression value: %v", err)
		}
	}
	return out
}
