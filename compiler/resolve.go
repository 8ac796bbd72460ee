package compiler

import (
	"strings"

	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
)

// DefaultMaxDepth bounds expression nesting.
const DefaultMaxDepth = 256

// Location says where a symbol's storage is and how to reach it.
type Location uint8

const (
	LocNone               Location = iota // no location information
	LocAddrBytecode                       // Bytecode computes the address
	LocValBytecode                        // Bytecode computes the value
	LocAddrRegPlusOff                     // address is Register + Offset
	LocAddrAddrRegPlusOff                 // address is stored at Register + Offset
	LocValRegister                        // value lives in Register
)

var locationNames = [...]string{
	LocNone:               "none",
	LocAddrBytecode:       "addr-bytecode",
	LocValBytecode:        "value-bytecode",
	LocAddrRegPlusOff:     "reg+off",
	LocAddrAddrRegPlusOff: "[reg+off]",
	LocValRegister:        "register",
}

func (l Location) String() string {
	if int(l) < len(locationNames) {
		return locationNames[l]
	}
	return "invalid"
}

// ParseLocation is the inverse of Location.String.
func ParseLocation(s string) (Location, bool) {
	for i, name := range locationNames {
		if name == s {
			return Location(i), true
		}
	}
	return LocNone, false
}

// Symbol is a named entity returned by a Resolver.
type Symbol struct {
	Name     string
	Type     types.Key
	Location Location
	Bytecode []byte // for LocAddrBytecode and LocValBytecode
	Register uint8  // register code for the register forms
	Offset   int64  // register displacement, or base offset for globals, TLS and procedures
}

// Resolver looks up names in the scope the expression is evaluated in.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Local(name string) (Symbol, bool)
	Global(name string) (Symbol, bool)
	ThreadLocal(name string) (Symbol, bool)
	Procedure(name string) (Symbol, bool)
	// ProcedureName is the qualified name of the enclosing procedure,
	// used to derive namespace fallbacks.
	ProcedureName() string
}

// Context is everything a compilation needs besides the text.
type Context struct {
	Types    types.Provider
	Resolver Resolver
	Arch     regs.Arch
	MaxDepth int
}

// withDefaults returns ctx, or a copy of it with an empty type table
// when no provider is set.
func withDefaults(ctx *Context) *Context {
	if ctx == nil {
		ctx = &Context{}
	}
	if ctx.Types == nil {
		c := *ctx
		c.Types = types.NewTable(ctx.Arch.PointerSize())
		ctx = &c
	}
	return ctx
}

func (c *Context) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

func (c *Context) ptrSize() int {
	return c.Arch.PointerSize()
}

// namespaceCandidates returns the qualified forms of name to try, innermost
// namespace first and the bare name last. For procedure "a::b::f" and
// name "x" that is a::b::x, a::x, x.
func namespaceCandidates(procedure, name string) []string {
	parts := splitQualified(procedure)
	if len(parts) > 0 {
		parts = parts[:len(parts)-1] // drop the procedure itself
	}
	out := make([]string, 0, len(parts)+1)
	for i := len(parts); i > 0; i-- {
		out = append(out, strings.Join(parts[:i], "::")+"::"+name)
	}
	return append(out, name)
}

func splitQualified(name string) []string {
	if name == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ReplaceAll(name, "::", "."), func(r rune) bool { return r == '.' })
}

// ---------------------------------------------------------------------------
// Binding identifiers to leaves
// ---------------------------------------------------------------------------

// resolveIdentifier binds name to a leaf or type, recording an error when
// nothing matches. It returns nil on failure.
func (p *Parser) resolveIdentifier(tok Token) Expr {
	name := tok.Literal
	span := tok.Span()
	ctx := p.ctx
	res := ctx.Resolver

	if res != nil {
		if this, ok := res.Local("this"); ok && name != "this" {
			if ptr := types.Pointee(ctx.Types, this.Type); !ptr.IsZero() {
				for _, m := range ctx.Types.Members(ptr) {
					if m.Name != name {
						continue
					}
					thisLeaf := p.symbolLeaf(this, span)
					if thisLeaf == nil {
						return nil
					}
					return &MemberAccess{SpanVal: span, X: thisLeaf, Member: Field{SpanVal: span, Name: name}, Arrow: true}
				}
			}
		}

		if sym, ok := res.Local(name); ok {
			return p.symbolLeaf(sym, span)
		}
	}

	if r, ok := ctx.Arch.Register(name); ok {
		return p.registerLeaf(name, span, r.Offset, r.Size)
	}
	if a, ok := ctx.Arch.Alias(name); ok {
		return p.registerLeaf(name, span, a.Offset, a.Size)
	}

	if res != nil {
		candidates := namespaceCandidates(res.ProcedureName(), name)
		lookups := []func(string) (Symbol, bool){res.Global, res.ThreadLocal, res.Procedure}
		binders := []func(Symbol, Span) Expr{p.globalLeaf, p.tlsLeaf, p.procedureLeaf}
		for i, lookup := range lookups {
			for _, qualified := range candidates {
				if sym, ok := lookup(qualified); ok {
					return binders[i](sym, span)
				}
			}
		}
	}

	if k, ok := p.lookupType(name); ok {
		return &TypeIdent{SpanVal: span, Name: name, Type: k}
	}

	p.errs.errorf(ErrResolutionFailure, span.Start, "Unknown identifier \"%s\".", name)
	return nil
}

func (p *Parser) registerLeaf(name string, span Span, offset, size int) Expr {
	var typ types.Key
	switch size {
	case 1:
		typ = types.U8
	case 2:
		typ = types.U16
	case 4:
		typ = types.U32
	case 8:
		typ = types.U64
	default:
		p.errs.errorf(ErrMissingInfo, span.Start, "Register \"%s\" has no scalar type.", name)
		return nil
	}
	c := bytecode.NewChunk()
	c.EmitConst(uint64(offset))
	return &Leaf{SpanVal: span, Name: name, Code: c.Code, Type: typ, Mode: ModeRegister}
}

// symbolLeaf binds a local.
func (p *Parser) symbolLeaf(sym Symbol, span Span) Expr {
	leaf := &Leaf{SpanVal: span, Name: sym.Name, Type: sym.Type}
	ptrSize := uint8(p.ctx.ptrSize())

	switch sym.Location {
	case LocAddrBytecode:
		leaf.Code, leaf.Mode = sym.Bytecode, ModeAddress
	case LocValBytecode:
		leaf.Code, leaf.Mode = sym.Bytecode, ModeValue
	case LocAddrRegPlusOff, LocAddrAddrRegPlusOff:
		c := bytecode.NewChunk()
		c.EmitRegRead(sym.Register, ptrSize, 0)
		emitSignedOffset(c, sym.Offset)
		if sym.Location == LocAddrAddrRegPlusOff {
			c.EmitWithOperand(bytecode.OpMemRead, uint64(ptrSize))
		}
		leaf.Code, leaf.Mode = c.Code, ModeAddress
	case LocValRegister:
		size := p.ctx.Types.ByteSize(sym.Type)
		if size == 0 || size > 8 {
			size = uint64(ptrSize)
		}
		c := bytecode.NewChunk()
		c.EmitRegRead(sym.Register, uint8(size), 0)
		if size < 8 && types.UnwrapEnum(p.ctx.Types, sym.Type).Kind().IsSigned() {
			c.EmitWithOperand(bytecode.OpTruncSigned, size*8)
		}
		leaf.Code, leaf.Mode = c.Code, ModeValue
	default:
		p.errs.errorf(ErrMissingInfo, span.Start, "Missing location information for \"%s\".", sym.Name)
		return nil
	}
	return leaf
}

// emitSignedOffset adds off to the value on top of the stack.
func emitSignedOffset(c *bytecode.Chunk, off int64) {
	if off == 0 {
		return
	}
	c.EmitConst(uint64(off))
	c.EmitGroupOp(bytecode.OpAdd, bytecode.GroupU)
}

func (p *Parser) baseLeaf(op bytecode.Opcode, mode Mode, sym Symbol, span Span) Expr {
	if sym.Offset < 0 || sym.Offset > 0xFFFFFFFF {
		p.errs.errorf(ErrMissingInfo, span.Start, "Offset of \"%s\" is out of range.", sym.Name)
		return nil
	}
	c := bytecode.NewChunk()
	c.EmitWithOperand(op, uint64(sym.Offset))
	return &Leaf{SpanVal: span, Name: sym.Name, Code: c.Code, Type: sym.Type, Mode: mode}
}

func (p *Parser) globalLeaf(sym Symbol, span Span) Expr {
	return p.baseLeaf(bytecode.OpModuleOff, ModeAddress, sym, span)
}

func (p *Parser) tlsLeaf(sym Symbol, span Span) Expr {
	return p.baseLeaf(bytecode.OpTLSOff, ModeAddress, sym, span)
}

func (p *Parser) procedureLeaf(sym Symbol, span Span) Expr {
	return p.baseLeaf(bytecode.OpModuleOff, ModeValue, sym, span)
}
