package types

import (
	"fmt"
	"strings"
)

// String renders k in C declarator syntax, for example "int32 *",
// "char [4]", "int32 (*)[4]" or "void (int32, char)".
func String(p Provider, k Key) string {
	if k.IsZero() {
		return "<no type>"
	}
	base, decl := declarator(p, k, "", 0)
	if decl == "" {
		return base
	}
	return base + " " + decl
}

func declarator(p Provider, k Key, inner string, depth int) (string, string) {
	if depth > maxChain {
		return "...", inner
	}
	kind := k.Kind()
	switch kind {
	case KindPtr:
		return declarator(p, p.Direct(k), "*"+inner, depth+1)
	case KindLRef:
		return declarator(p, p.Direct(k), "&"+inner, depth+1)
	case KindRRef:
		return declarator(p, p.Direct(k), "&&"+inner, depth+1)
	case KindMemberPtr:
		return declarator(p, p.Direct(k), String(p, p.Owner(k))+"::*"+inner, depth+1)
	case KindArray:
		return declarator(p, p.Direct(k), parenthesize(inner)+fmt.Sprintf("[%d]", p.Count(k)), depth+1)
	case KindFunction, KindMethod:
		params := make([]string, 0, len(p.Params(k)))
		for _, pk := range p.Params(k) {
			params = append(params, String(p, pk))
		}
		return declarator(p, p.Direct(k), parenthesize(inner)+"("+strings.Join(params, ", ")+")", depth+1)
	case KindModifier:
		base, decl := declarator(p, p.Direct(k), inner, depth+1)
		if q := p.Name(k); q != "" {
			base = q + " " + base
		}
		return base, decl
	case KindNull:
		return "void", inner
	}

	if kind.IsBasic() {
		return kind.String(), inner
	}
	name := p.Name(k)
	if name == "" {
		name = "<anonymous " + kind.String() + ">"
	}
	return name, inner
}

func parenthesize(inner string) string {
	if strings.HasPrefix(inner, "*") || strings.HasPrefix(inner, "&") || strings.Contains(inner, "::*") {
		return "(" + inner + ")"
	}
	return inner
}
