package compiler

// ---------------------------------------------------------------------------
// Parser: precedence climbing over a token slice
// ---------------------------------------------------------------------------

// Parser parses expression tokens into an AST, binding identifiers
// through the context's resolver as it goes. Each parse function takes
// the index of its first token and returns the index after its last.
type Parser struct {
	text    string
	tokens  []Token
	ctx     *Context
	errs    Errors
	depth   int
	tooDeep bool
}

// NewParser creates a parser over tokens, which must come from text.
// A missing trailing EOF token is added.
func NewParser(text string, tokens []Token, ctx *Context) *Parser {
	if tokens == nil {
		tokens = Tokenize(text)
	}
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Type: TokenEOF, Start: len(text), End: len(text)})
	}
	return &Parser{text: text, tokens: tokens, ctx: withDefaults(ctx)}
}

// Parse parses a whole expression. It always returns; the tree may be
// partial or nil when errors were recorded.
func Parse(text string, tokens []Token, ctx *Context) (Expr, Errors) {
	p := NewParser(text, tokens, ctx)
	return p.ParseExpression(), p.errs
}

// ParseExpression parses the entire token stream.
func (p *Parser) ParseExpression() Expr {
	if p.tokens[0].Type == TokenEOF {
		p.errs.errorf(ErrMalformedInput, 0, "Expected expression.")
		return nil
	}
	e, i := p.parseExpr(0, maxPrecedence)
	if tok := p.tokens[i]; tok.Type != TokenEOF && !p.tooDeep {
		p.errs.errorf(ErrMalformedInput, tok.Start, "Unexpected token '%s'.", tok.Literal)
	}
	return e
}

// Errors returns the diagnostics recorded so far.
func (p *Parser) Errors() Errors {
	return p.errs
}

func (p *Parser) eof() int {
	return len(p.tokens) - 1
}

// enter tracks nesting depth; it reports false once the limit is hit.
func (p *Parser) enter(extra int, at int) bool {
	p.depth++
	if p.depth+extra > p.ctx.maxDepth() {
		if !p.tooDeep {
			p.tooDeep = true
			p.errs.errorf(ErrMalformedInput, at, "Expression is nested too deeply.")
		}
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

// parseExpr parses operators that bind no looser than maxPrec.
func (p *Parser) parseExpr(i int, maxPrec int) (Expr, int) {
	defer p.leave()
	if !p.enter(0, p.tokens[i].Start) {
		return nil, p.eof()
	}

	left, i := p.parseUnary(i)
	for !p.tooDeep {
		tok := p.tokens[i]
		if tok.Type != TokenSymbol {
			break
		}

		if tok.Literal == "?" {
			if ternaryPrecedence > maxPrec {
				break
			}
			then, j := p.parseExpr(i+1, maxPrecedence)
			if !p.tokens[j].Is(":") {
				p.errs.errorf(ErrMalformedInput, p.tokens[j].Start, "Expected : after ?.")
				return &Ternary{SpanVal: spanOf(left, tok), Cond: left, Then: then}, j
			}
			if p.tokens[j+1].Type == TokenEOF {
				p.errs.errorf(ErrMalformedInput, p.tokens[j].End, "Expected expression after ?.")
				return &Ternary{SpanVal: spanOf(left, p.tokens[j]), Cond: left, Then: then}, j + 1
			}
			els, k := p.parseExpr(j+1, ternaryPrecedence)
			left = &Ternary{SpanVal: join(spanOf(left, tok), spanOf(els, p.tokens[j])), Cond: left, Then: then, Else: els}
			i = k
			continue
		}

		op, ok := lookupBinaryOp(tok.Literal)
		if !ok || op.Precedence() > maxPrec {
			break
		}
		if p.tokens[i+1].Type == TokenEOF {
			p.errs.errorf(ErrMalformedInput, tok.End, "Expected expression after %s.", tok.Literal)
			return &Binary{SpanVal: spanOf(left, tok), Op: op, X: left}, i + 1
		}
		right, j := p.parseExpr(i+1, op.Precedence()-1)
		left = &Binary{SpanVal: join(spanOf(left, tok), spanOf(right, tok)), Op: op, X: left, Y: right}
		i = j
	}
	return left, i
}

type prefixKind uint8

const (
	prefixUnary prefixKind = iota
	prefixDeref
	prefixAddrOf
	prefixSizeof
	prefixCast
)

type prefix struct {
	kind prefixKind
	op   UnaryOp
	tok  Token
	typ  Expr
}

// parseUnary parses prefix operators, an atom and its postfix operators.
func (p *Parser) parseUnary(i int) (Expr, int) {
	var prefixes []prefix
	var atom Expr

collect:
	for {
		tok := p.tokens[i]
		switch {
		case tok.Is("-"):
			prefixes = append(prefixes, prefix{kind: prefixUnary, op: UnaryNeg, tok: tok})
		case tok.Is("!"):
			prefixes = append(prefixes, prefix{kind: prefixUnary, op: UnaryLogNot, tok: tok})
		case tok.Is("~"):
			prefixes = append(prefixes, prefix{kind: prefixUnary, op: UnaryBitNot, tok: tok})
		case tok.Is("*"):
			prefixes = append(prefixes, prefix{kind: prefixDeref, tok: tok})
		case tok.Is("&"):
			prefixes = append(prefixes, prefix{kind: prefixAddrOf, tok: tok})
		case tok.Type == TokenIdentifier && tok.Literal == "sizeof":
			prefixes = append(prefixes, prefix{kind: prefixSizeof, tok: tok})
			if p.tokens[i+1].Is("(") && p.isTypeStart(i+2) {
				typ, j := p.parseTypeExpr(i+2, true)
				if typ != nil && p.tokens[j].Is(")") {
					atom, i = typ, j+1
					break collect
				}
			}
		case tok.Is("(") && p.isTypeStart(i+1):
			typ, j := p.parseTypeExpr(i+1, false)
			if typ == nil || !p.tokens[j].Is(")") {
				break collect
			}
			prefixes = append(prefixes, prefix{kind: prefixCast, tok: tok, typ: typ})
			i = j
		default:
			break collect
		}
		i++
		if len(prefixes)+p.depth > p.ctx.maxDepth() {
			p.enter(len(prefixes), tok.Start)
			p.leave()
			return nil, p.eof()
		}
	}

	if atom == nil {
		atom, i = p.parseAtom(i)
		atom, i = p.parsePostfix(atom, i)
	}

	for k := len(prefixes) - 1; k >= 0; k-- {
		pf := prefixes[k]
		span := join(pf.tok.Span(), spanOf(atom, pf.tok))
		switch pf.kind {
		case prefixUnary:
			atom = &Unary{SpanVal: span, Op: pf.op, X: atom}
		case prefixDeref:
			atom = &Deref{SpanVal: span, X: atom}
		case prefixAddrOf:
			atom = &AddrOf{SpanVal: span, X: atom}
		case prefixSizeof:
			atom = &Sizeof{SpanVal: span, X: atom}
		case prefixCast:
			atom = &Cast{SpanVal: span, Type: pf.typ, X: atom}
		}
	}
	return atom, i
}

// parseAtom parses a parenthesized expression, identifier or literal.
func (p *Parser) parseAtom(i int) (Expr, int) {
	tok := p.tokens[i]
	switch tok.Type {
	case TokenSymbol:
		if tok.Literal == "(" {
			inner, j := p.parseExpr(i+1, maxPrecedence)
			if !p.tokens[j].Is(")") {
				if !p.tooDeep {
					p.errs.errorf(ErrMalformedInput, tok.Start, "Missing ).")
				}
				return inner, j
			}
			return inner, j + 1
		}
		p.errs.errorf(ErrMalformedInput, tok.Start, "Unexpected token '%s'.", tok.Literal)
		return nil, i + 1

	case TokenIdentifier:
		if tok.Literal == "unsigned" || tok.Literal == "signed" {
			return p.parseTypeExpr(i, true)
		}
		return p.resolveIdentifier(tok), i + 1

	case TokenNumeric:
		lit, ok := parseNumeric(tok)
		if !ok {
			p.errs.errorf(ErrMalformedInput, tok.Start, "Invalid numeric literal '%s'.", tok.Literal)
			return nil, i + 1
		}
		return lit, i + 1

	case TokenChar:
		return p.parseChar(tok), i + 1

	case TokenString:
		p.errs.errorf(ErrMalformedInput, tok.Start, "String literals are not supported.")
		return nil, i + 1

	case TokenInvalid:
		p.errs.errorf(ErrMalformedInput, tok.Start, "Invalid character '%s'.", tok.Literal)
		return nil, i + 1
	}

	p.errs.errorf(ErrMalformedInput, tok.Start, "Expected expression.")
	return nil, i
}

// parsePostfix applies member access and indexing left to right.
func (p *Parser) parsePostfix(x Expr, i int) (Expr, int) {
	for !p.tooDeep {
		tok := p.tokens[i]
		switch {
		case tok.Is(".") || tok.Is("->"):
			name := p.tokens[i+1]
			if name.Type != TokenIdentifier {
				p.errs.errorf(ErrMalformedInput, tok.Start, "Expected member name after %s.", tok.Literal)
				return x, i + 1
			}
			x = &MemberAccess{
				SpanVal: join(spanOf(x, tok), name.Span()),
				X:       x,
				Member:  Field{SpanVal: name.Span(), Name: name.Literal},
				Arrow:   tok.Literal == "->",
			}
			i += 2

		case tok.Is("["):
			idx, j := p.parseExpr(i+1, maxPrecedence)
			if !p.tokens[j].Is("]") {
				if !p.tooDeep {
					p.errs.errorf(ErrMalformedInput, tok.Start, "Unclosed [.")
				}
				return &Index{SpanVal: join(spanOf(x, tok), spanOf(idx, tok)), X: x, Index: idx}, j
			}
			x = &Index{SpanVal: join(spanOf(x, tok), p.tokens[j].Span()), X: x, Index: idx}
			i = j + 1

		default:
			return x, i
		}
	}
	return x, i
}

// spanOf returns the span of e, or of fallback when e is nil.
func spanOf(e Expr, fallback Token) Span {
	if e == nil {
		return fallback.Span()
	}
	return e.Span()
}

func join(a, b Span) Span {
	if b.Start < a.Start {
		a.Start = b.Start
	}
	if b.End > a.End {
		a.End = b.End
	}
	return a
}
