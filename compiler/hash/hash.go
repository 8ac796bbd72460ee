// Package hash computes whitespace-insensitive content hashes of
// expressions, used as compile cache keys.
package hash

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/chazu/dbgeval/compiler"
)

// HashVersion is the version prefix of the serialization. Bumping it
// invalidates all existing hashes.
const HashVersion byte = 1

// Token tags. These are frozen: adding tags is fine, changing one breaks
// every previously computed hash.
const (
	TagEOF        byte = 0x00
	TagInvalid    byte = 0x01
	TagIdentifier byte = 0x02
	TagNumeric    byte = 0x03
	TagString     byte = 0x04
	TagChar       byte = 0x05
	TagSymbol     byte = 0x06
	TagScope      byte = 0x10
)

var tokenTags = map[compiler.TokenType]byte{
	compiler.TokenEOF:        TagEOF,
	compiler.TokenInvalid:    TagInvalid,
	compiler.TokenIdentifier: TagIdentifier,
	compiler.TokenNumeric:    TagNumeric,
	compiler.TokenString:     TagString,
	compiler.TokenChar:       TagChar,
	compiler.TokenSymbol:     TagSymbol,
}

// HashExpression hashes the token stream of text. Texts that differ only
// in whitespace between tokens hash the same.
func HashExpression(text string) [32]byte {
	return sha256.Sum256(Serialize(compiler.Tokenize(text), ""))
}

// HashInScope hashes text together with a scope identifier, so the same
// expression compiled in different scopes gets different keys.
func HashInScope(text, scope string) [32]byte {
	return sha256.Sum256(Serialize(compiler.Tokenize(text), scope))
}

// Serialize produces the deterministic byte form that is hashed:
// version, optional scope, then per token a tag and a length-prefixed
// literal.
func Serialize(tokens []compiler.Token, scope string) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, HashVersion)
	if scope != "" {
		buf = append(buf, TagScope)
		buf = appendString(buf, scope)
	}
	for _, tok := range tokens {
		buf = append(buf, tokenTags[tok.Type])
		if tok.Type != compiler.TokenEOF {
			buf = appendString(buf, tok.Literal)
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}
