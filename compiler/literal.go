package compiler

import (
	"strconv"
	"strings"
)

// trimIntSuffix strips C integer suffixes (u, l, ul, ull, ...).
func trimIntSuffix(lit string) string {
	return strings.TrimRight(lit, "uUlL")
}

func isHexLiteral(lit string) bool {
	return len(lit) > 1 && lit[0] == '0' && (lit[1] == 'x' || lit[1] == 'X')
}

// parseNumeric converts a numeric token to a literal node.
func parseNumeric(tok Token) (Expr, bool) {
	lit := tok.Literal
	span := tok.Span()
	hex := isHexLiteral(lit)

	isFloat := strings.ContainsRune(lit, '.') ||
		(!hex && strings.ContainsAny(lit, "eE")) ||
		(!hex && strings.HasSuffix(strings.ToLower(lit), "f"))
	if isFloat {
		single := false
		if !hex && (strings.HasSuffix(lit, "f") || strings.HasSuffix(lit, "F")) {
			lit, single = lit[:len(lit)-1], true
		} else {
			lit = strings.TrimRight(lit, "lL")
		}
		bits := 64
		if single {
			bits = 32
		}
		v, err := strconv.ParseFloat(lit, bits)
		if err != nil {
			return nil, false
		}
		return &FloatLit{SpanVal: span, Value: v, Single: single}, true
	}

	lit = trimIntSuffix(lit)
	var (
		v   uint64
		err error
	)
	switch {
	case hex:
		v, err = strconv.ParseUint(lit[2:], 16, 64)
	case len(lit) > 1 && lit[0] == '0' && (lit[1] == 'b' || lit[1] == 'B'):
		v, err = strconv.ParseUint(lit[2:], 2, 64)
	case len(lit) > 1 && lit[0] == '0':
		v, err = strconv.ParseUint(lit[1:], 8, 64)
	default:
		v, err = strconv.ParseUint(lit, 10, 64)
	}
	if err != nil {
		return nil, false
	}
	return &IntLit{SpanVal: span, Value: v}, true
}

// charValue decodes the body of a char literal (without quotes). It
// returns the value of the first character and how many characters the
// body held.
func charValue(body string) (byte, int, bool) {
	var (
		first byte
		count int
	)
	for i := 0; i < len(body); count++ {
		c := body[i]
		i++
		if c == '\\' {
			if i >= len(body) {
				return 0, 0, false
			}
			esc := body[i]
			i++
			switch esc {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			case 'r':
				c = '\r'
			case 'a':
				c = '\a'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case 'v':
				c = '\v'
			case '\\', '\'', '"', '?':
				c = esc
			case 'x':
				j := i
				for j < len(body) && j-i < 2 && isHexDigit(body[j]) {
					j++
				}
				if j == i {
					return 0, 0, false
				}
				n, _ := strconv.ParseUint(body[i:j], 16, 8)
				c, i = byte(n), j
			default:
				if esc < '0' || esc > '7' {
					return 0, 0, false
				}
				j := i
				for j < len(body) && j-i < 2 && body[j] >= '0' && body[j] <= '7' {
					j++
				}
				n, _ := strconv.ParseUint(body[i-1:j], 8, 16)
				c, i = byte(n), j
			}
		}
		if count == 0 {
			first = c
		}
	}
	return first, count, true
}

// terminated reports whether a quoted literal ends with an unescaped
// closing quote.
func terminated(lit string) bool {
	for i := 1; i < len(lit); i++ {
		switch lit[i] {
		case '\\':
			i++
		case lit[0]:
			return i == len(lit)-1
		}
	}
	return false
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseChar converts a char token to an IntLit, recording diagnostics.
func (p *Parser) parseChar(tok Token) Expr {
	lit := tok.Literal
	if !terminated(lit) {
		p.errs.errorf(ErrMalformedInput, tok.Start, "Unterminated character literal.")
		return nil
	}
	body := lit[1 : len(lit)-1]
	if body == "" {
		p.errs.errorf(ErrMalformedInput, tok.Start, "Empty character literal.")
		return nil
	}
	c, count, ok := charValue(body)
	if !ok {
		p.errs.errorf(ErrMalformedInput, tok.Start, "Invalid escape sequence in character literal.")
		return nil
	}
	if count > 1 {
		p.errs.warnf(tok.Start, "Multi-character literal; only the first character is used.")
	}
	return &IntLit{SpanVal: tok.Span(), Value: uint64(int64(int8(c))), Char: true}
}
