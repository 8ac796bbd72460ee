package compiler

import (
	"fmt"
	"strconv"

	"github.com/chazu/dbgeval/pkg/types"
)

// builtinTypes maps the builtin type names to their keys. Provider types
// shadow these.
var builtinTypes = map[string]types.Key{
	"void": types.Void,
	"bool": types.Bool,

	"u8": types.U8, "uint8": types.U8, "uint8_t": types.U8, "uchar8": types.Basic(types.KindUChar8),
	"u16": types.U16, "uint16": types.U16, "uint16_t": types.U16, "uchar16": types.Basic(types.KindUChar16),
	"u32": types.U32, "uint32": types.U32, "uint32_t": types.U32, "uchar32": types.Basic(types.KindUChar32),
	"u64": types.U64, "uint64": types.U64, "uint64_t": types.U64,
	"u128": types.Basic(types.KindU128), "uint128": types.Basic(types.KindU128),

	"i8": types.S8, "s8": types.S8, "int8": types.S8, "int8_t": types.S8, "char8": types.Char, "char": types.Char,
	"i16": types.S16, "s16": types.S16, "int16": types.S16, "int16_t": types.S16, "short": types.S16,
	"char16": types.Basic(types.KindChar16),
	"i32": types.S32, "s32": types.S32, "int32": types.S32, "int32_t": types.S32, "int": types.S32,
	"char32": types.Basic(types.KindChar32),
	"i64": types.S64, "s64": types.S64, "int64": types.S64, "int64_t": types.S64, "long": types.S64,
	"i128": types.Basic(types.KindS128), "int128": types.Basic(types.KindS128),

	"uint": types.U32,

	"float": types.F32, "f32": types.F32, "r32": types.F32,
	"double": types.F64, "f64": types.F64, "r64": types.F64,

	"HANDLE":  types.Handle,
	"HRESULT": types.Basic(types.KindHResult),
}

// unsignedOf maps a signed integer to its unsigned counterpart.
var unsignedOf = map[types.Kind]types.Key{
	types.KindS8:     types.U8,
	types.KindChar8:  types.Basic(types.KindUChar8),
	types.KindS16:    types.U16,
	types.KindChar16: types.Basic(types.KindUChar16),
	types.KindS32:    types.U32,
	types.KindChar32: types.Basic(types.KindUChar32),
	types.KindS64:    types.U64,
	types.KindS128:   types.Basic(types.KindU128),
}

// lookupType resolves a type name, provider first.
func (p *Parser) lookupType(name string) (types.Key, bool) {
	if p.ctx.Types != nil {
		if k, ok := p.ctx.Types.Lookup(name); ok {
			return k, true
		}
	}
	k, ok := builtinTypes[name]
	return k, ok
}

// isTypeStart reports whether the token at i begins a type expression.
func (p *Parser) isTypeStart(i int) bool {
	tok := p.tokens[i]
	if tok.Type != TokenIdentifier {
		return false
	}
	if tok.Literal == "unsigned" || tok.Literal == "signed" {
		return true
	}
	if p.ctx.Resolver != nil {
		if _, ok := p.ctx.Resolver.Local(tok.Literal); ok {
			return false
		}
	}
	_, ok := p.lookupType(tok.Literal)
	return ok
}

// parseTypeExpr parses a type name with optional unsigned prefix and any
// number of * and [N] suffixes. It returns nil at i if no type is there;
// errors are only recorded when report is set.
func (p *Parser) parseTypeExpr(i int, report bool) (Expr, int) {
	tok := p.tokens[i]
	start := tok.Start
	var typ Expr

	switch {
	case tok.Is("unsigned") || tok.Is("signed"):
		unsigned := tok.Literal == "unsigned"
		i++
		base := types.S32
		end := tok.End
		if next := p.tokens[i]; next.Type == TokenIdentifier {
			if k, ok := builtinTypes[next.Literal]; ok && k.Kind().IsInteger() {
				base, end = k, next.End
				i++
			}
		}
		if unsigned {
			if u, ok := unsignedOf[base.Kind()]; ok {
				base = u
			}
		}
		typ = &TypeIdent{SpanVal: Span{start, end}, Name: p.text[start:end], Type: base}

	case tok.Type == TokenIdentifier:
		k, ok := p.lookupType(tok.Literal)
		if !ok {
			if report {
				p.errs.errorf(ErrResolutionFailure, tok.Start, "Unknown type \"%s\".", tok.Literal)
			}
			return nil, i
		}
		typ = &TypeIdent{SpanVal: tok.Span(), Name: tok.Literal, Type: k}
		i++

	default:
		return nil, i
	}

	for {
		tok := p.tokens[i]
		switch {
		case tok.Is("*"):
			typ = &PointerDecl{SpanVal: Span{start, tok.End}, Elem: typ}
			i++
		case tok.Is("[") && p.tokens[i+1].Type == TokenNumeric && p.tokens[i+2].Is("]"):
			n, err := strconv.ParseUint(trimIntSuffix(p.tokens[i+1].Literal), 0, 64)
			if err != nil {
				if report {
					p.errs.errorf(ErrMalformedInput, p.tokens[i+1].Start, "Invalid array length.")
				}
				return nil, i
			}
			typ = &ArrayDecl{SpanVal: Span{start, p.tokens[i+2].End}, Elem: typ, Count: n}
			i += 3
		default:
			return typ, i
		}
	}
}

// typeKey materializes a type expression through the provider.
func (p *Parser) typeKey(e Expr) types.Key {
	return TypeKey(p.ctx.Types, e)
}

// TypeKey returns the type denoted by a type expression, or the zero key.
func TypeKey(tp types.Provider, e Expr) types.Key {
	switch e := e.(type) {
	case *TypeIdent:
		return e.Type
	case *PointerDecl:
		elem := TypeKey(tp, e.Elem)
		if elem.IsZero() || tp == nil {
			return types.Key{}
		}
		return tp.Pointer(elem)
	case *ArrayDecl:
		elem := TypeKey(tp, e.Elem)
		if elem.IsZero() || tp == nil {
			return types.Key{}
		}
		return tp.Array(elem, e.Count)
	}
	return types.Key{}
}

// ParseTypeName parses a standalone type expression such as
// "unsigned short*" or "Point[4]" and materializes it through tp.
func ParseTypeName(text string, tp types.Provider) (types.Key, error) {
	if tp == nil {
		return types.Key{}, fmt.Errorf("compiler: no type provider for %q", text)
	}
	p := NewParser(text, nil, &Context{Types: tp})
	typ, i := p.parseTypeExpr(0, true)
	if err := p.errs.Err(); err != nil {
		return types.Key{}, err
	}
	if typ == nil || p.tokens[i].Type != TokenEOF {
		return types.Key{}, fmt.Errorf("compiler: invalid type name %q", text)
	}
	k := TypeKey(tp, typ)
	if k.IsZero() {
		return types.Key{}, fmt.Errorf("compiler: cannot build type %q", text)
	}
	return k, nil
}
