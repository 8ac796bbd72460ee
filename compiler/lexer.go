package compiler

import "strings"

// ---------------------------------------------------------------------------
// Lexer: byte-class tokenizer for C-like debugger expressions
// ---------------------------------------------------------------------------

// Lexer tokenizes an expression. It never fails: bytes that cannot
// start a token come back as one-byte TokenInvalid tokens.
type Lexer struct {
	input string
	pos   int // offset of the next unread byte
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

func (l *Lexer) peekAt(i int) byte {
	if i < len(l.input) {
		return l.input[i]
	}
	return 0
}

func (l *Lexer) token(typ TokenType, start, end int) Token {
	l.pos = end
	return Token{Type: typ, Literal: l.input[start:end], Start: start, End: end}
}

// NextToken returns the next token, or TokenEOF at the end of input.
func (l *Lexer) NextToken() Token {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	if start >= len(l.input) {
		return Token{Type: TokenEOF, Start: start, End: start}
	}

	ch := l.input[start]
	switch {
	case isIdentStart(ch):
		return l.token(TokenIdentifier, start, l.scanIdentifier(start))

	case isDigit(ch), ch == '.' && isDigit(l.peekAt(start+1)):
		return l.token(TokenNumeric, start, l.scanNumeric(start))

	case ch == '"':
		return l.token(TokenString, start, l.scanQuoted(start, '"'))

	case ch == '\'':
		return l.token(TokenChar, start, l.scanQuoted(start, '\''))

	case IsSymbolChar(ch):
		for _, s := range multiCharSymbols {
			if strings.HasPrefix(l.input[start:], s) {
				return l.token(TokenSymbol, start, start+len(s))
			}
		}
		return l.token(TokenSymbol, start, start+1)
	}

	return l.token(TokenInvalid, start, start+1)
}

// scanNumeric returns the end of the number starting at start. A sign
// directly after the exponent marker of a non-hex literal belongs to it.
func (l *Lexer) scanNumeric(start int) int {
	hex := isHexLiteral(l.input[start:])
	end := start + 1
	for end < len(l.input) {
		c := l.input[end]
		switch {
		case isAlnum(c) || c == '.':
			end++
		case (c == '+' || c == '-') && !hex && (l.input[end-1] == 'e' || l.input[end-1] == 'E'):
			end++
		default:
			return end
		}
	}
	return end
}

// scanIdentifier returns the end of the identifier starting at start.
func (l *Lexer) scanIdentifier(start int) int {
	if l.input[start] == '`' {
		for i := start + 1; i < len(l.input); i++ {
			if c := l.input[i]; c == '`' || c == '\'' {
				return i + 1
			}
		}
		return len(l.input)
	}

	i := start + 1
	for i < len(l.input) {
		c := l.input[i]
		switch {
		case isAlnum(c) || c == '_' || c == '@' || c == '$':
			i++
		case c == ':' && l.peekAt(i+1) == ':' && isScopeFollow(l.peekAt(i+2)):
			i += 2
		case c == '<':
			end, ok := l.scanTemplate(i)
			if !ok {
				return i
			}
			i = end
		default:
			return i
		}
	}
	return i
}

// scanTemplate matches a balanced template argument list starting at the
// '<' at offset open. It fails on an unbalanced list or a byte that
// cannot appear in one, so that "a<b" still lexes as a comparison.
func (l *Lexer) scanTemplate(open int) (int, bool) {
	depth := 0
	for i := open; i < len(l.input); i++ {
		switch c := l.input[i]; {
		case c == '<':
			depth++
		case c == '>':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case isAlnum(c), c == '_', c == ':', c == ',', c == '*', c == '&', c == ' ', c == '$':
		default:
			return 0, false
		}
	}
	return 0, false
}

// scanQuoted returns the end of a quoted literal, including the closing
// quote. Backslash escapes the following byte. An unterminated literal
// extends to the end of input.
func (l *Lexer) scanQuoted(start int, quote byte) int {
	for i := start + 1; i < len(l.input); i++ {
		switch l.input[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(l.input)
}

// Helper functions

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isIdentStart(c byte) bool {
	return isAlpha(c) || c == '_' || c == '`' || c == '$'
}

func isScopeFollow(c byte) bool {
	return isAlpha(c) || c == '_' || c == '<'
}

// Tokenize returns all tokens from the input, ending with TokenEOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}
