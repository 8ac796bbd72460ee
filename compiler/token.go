package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the expression lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF     TokenType = iota
	TokenInvalid           // a byte that cannot start any token

	TokenIdentifier // foo, ns::Type<int>, `quoted name'
	TokenNumeric    // 42, 0x2A, 1.5f
	TokenString     // "text"
	TokenChar       // 'c', '\n'
	TokenSymbol     // operators and punctuation
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenInvalid:    "INVALID",
	TokenIdentifier: "IDENTIFIER",
	TokenNumeric:    "NUMERIC",
	TokenString:     "STRING",
	TokenChar:       "CHAR",
	TokenSymbol:     "SYMBOL",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a classified byte range of the input.
type Token struct {
	Type    TokenType
	Literal string // input[Start:End]
	Start   int    // byte offset of the first byte
	End     int    // byte offset one past the last byte
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Span returns the byte range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Start, End: t.End}
}

// Is reports whether t is the symbol or identifier s.
func (t Token) Is(s string) bool {
	return (t.Type == TokenSymbol || t.Type == TokenIdentifier) && t.Literal == s
}

// multiCharSymbols are matched before single-character symbols.
var multiCharSymbols = []string{"<<", ">>", "->", "<=", ">=", "==", "!=", "&&", "||"}

// IsSymbolChar reports whether b may appear in a symbol token.
func IsSymbolChar(b byte) bool {
	switch b {
	case '~', '!', '%', '^', '&', '*', '(', ')', '-', '=', '+', '[', ']',
		'{', '}', ':', ';', ',', '.', '<', '>', '/', '?', '|':
		return true
	}
	return false
}
