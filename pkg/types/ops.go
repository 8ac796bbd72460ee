package types

import "github.com/chazu/dbgeval/pkg/bytecode"

// maxChain bounds alias/modifier chains so a malformed provider cannot
// loop forever.
const maxChain = 64

// Unwrap strips modifiers, aliases and forward declarations.
func Unwrap(p Provider, k Key) Key {
	for i := 0; i < maxChain; i++ {
		kind := k.Kind()
		if kind != KindModifier && kind != KindAlias && !kind.IsIncomplete() {
			return k
		}
		d := p.Direct(k)
		if d.IsZero() {
			return k
		}
		k = d
	}
	return k
}

// UnwrapEnum unwraps k and, if it is an enum, continues to its
// underlying integer type.
func UnwrapEnum(p Provider, k Key) Key {
	k = Unwrap(p, k)
	if k.Kind() == KindEnum {
		if d := p.Direct(k); !d.IsZero() {
			return Unwrap(p, d)
		}
	}
	return k
}

// Group returns the arithmetic group of k after unwrapping.
func Group(p Provider, k Key) bytecode.Group {
	return Unwrap(p, k).Kind().Group()
}

// Promote applies integer promotion: integers narrower than int become int.
func Promote(k Key) Key {
	switch k.Kind() {
	case KindBool, KindS8, KindS16, KindU8, KindU16,
		KindChar8, KindChar16, KindUChar8, KindUChar16:
		return S32
	}
	return k
}

// IsBasicOrEnum reports whether the unwrapped k is a builtin scalar or an enum.
func IsBasicOrEnum(p Provider, k Key) bool {
	kind := Unwrap(p, k).Kind()
	return kind.IsBasic() || kind == KindEnum
}

// Coerce returns the common type of a binary arithmetic operation on l
// and r. Both sides are enum-unwrapped and promoted first; then f64 beats
// f32, f32 beats any integer, and between integers the wider wins, with
// unsigned winning a tie.
func Coerce(p Provider, l, r Key) Key {
	l = Promote(UnwrapEnum(p, l))
	r = Promote(UnwrapEnum(p, r))
	lk, rk := l.Kind(), r.Kind()
	switch {
	case lk == KindF64 || rk == KindF64:
		return F64
	case lk == KindF32 || rk == KindF32:
		return F32
	}
	ls, rs := p.ByteSize(l), p.ByteSize(r)
	switch {
	case ls > rs:
		return l
	case rs > ls:
		return r
	case r.Group() == bytecode.GroupU && l.Group() != bytecode.GroupU:
		return r
	}
	return l
}

// Match reports whether l and r are structurally the same type.
func Match(p Provider, l, r Key) bool {
	return match(p, l, r, 0)
}

func match(p Provider, l, r Key, depth int) bool {
	if depth > maxChain {
		return false
	}
	l, r = Unwrap(p, l), Unwrap(p, r)
	if l == r {
		return true
	}
	if l.Kind() != r.Kind() {
		return false
	}
	switch l.Kind() {
	case KindPtr, KindLRef, KindRRef:
		return match(p, p.Direct(l), p.Direct(r), depth+1)
	case KindMemberPtr:
		return match(p, p.Direct(l), p.Direct(r), depth+1) &&
			match(p, p.Owner(l), p.Owner(r), depth+1)
	case KindArray:
		return p.Count(l) == p.Count(r) && match(p, p.Direct(l), p.Direct(r), depth+1)
	case KindFunction, KindMethod:
		if p.Count(l) != p.Count(r) || !match(p, p.Direct(l), p.Direct(r), depth+1) {
			return false
		}
		if l.Kind() == KindMethod && !match(p, p.Owner(l), p.Owner(r), depth+1) {
			return false
		}
		lp, rp := p.Params(l), p.Params(r)
		if len(lp) != len(rp) {
			return false
		}
		for i := range lp {
			if !match(p, lp[i], rp[i], depth+1) {
				return false
			}
		}
		return true
	case KindStruct, KindClass, KindUnion, KindEnum:
		return false
	}
	return true
}

// Pointee returns the type a pointer-like or array k refers to, with
// modifiers and aliases removed.
func Pointee(p Provider, k Key) Key {
	k = Unwrap(p, k)
	switch k.Kind() {
	case KindPtr, KindLRef, KindRRef, KindArray:
		return Unwrap(p, p.Direct(k))
	}
	return Key{}
}
