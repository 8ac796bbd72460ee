package compiler

import (
	"math"

	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/ir"
	"github.com/chazu/dbgeval/pkg/types"
)

// ---------------------------------------------------------------------------
// Lowering: typed AST to IR
// ---------------------------------------------------------------------------

// TypedResult is a lowered subtree. A nil Node means lowering failed and
// the error has already been recorded.
type TypedResult struct {
	Node ir.Node
	Type types.Key
	Mode Mode
}

// OK reports whether the subtree lowered successfully.
func (r TypedResult) OK() bool { return r.Node != nil }

type lowerer struct {
	tp   types.Provider
	errs Errors
}

// Lower type-checks e and converts it to IR.
func Lower(e Expr, ctx *Context) (TypedResult, Errors) {
	l := &lowerer{tp: withDefaults(ctx).Types}
	r := l.lower(e)
	return r, l.errs
}

func (l *lowerer) failf(span Span, format string, args ...interface{}) TypedResult {
	l.errs.errorf(ErrMalformedInput, span.Start, format, args...)
	return TypedResult{}
}

const errOperands = "Cannot perform operation on these types."

func (l *lowerer) lower(e Expr) TypedResult {
	switch e := e.(type) {
	case nil:
		return TypedResult{}
	case *IntLit:
		return l.lowerInt(e)
	case *FloatLit:
		if e.Single {
			return TypedResult{Node: ir.U(uint64(math.Float32bits(float32(e.Value)))), Type: types.F32, Mode: ModeValue}
		}
		return TypedResult{Node: ir.U(math.Float64bits(e.Value)), Type: types.F64, Mode: ModeValue}
	case *Leaf:
		if e.Type.IsZero() {
			l.errs.errorf(ErrMissingInfo, e.SpanVal.Start, "Missing type information for \"%s\".", e.Name)
			return TypedResult{}
		}
		if err := bytecode.Validate(e.Code); err != nil {
			l.errs.errorf(ErrMissingInfo, e.SpanVal.Start, "Malformed location for \"%s\": %v", e.Name, err)
			return TypedResult{}
		}
		return TypedResult{Node: ir.Code(e.Code), Type: e.Type, Mode: e.Mode}
	case *TypeIdent, *PointerDecl, *ArrayDecl:
		return l.failf(e.Span(), "Type expression not expected.")
	case *Unary:
		return l.lowerUnary(e)
	case *Binary:
		return l.lowerBinary(e)
	case *Ternary:
		return l.lowerTernary(e)
	case *Cast:
		return l.lowerCast(e)
	case *Sizeof:
		return l.lowerSizeof(e)
	case *Deref:
		return l.lowerDeref(e)
	case *AddrOf:
		return l.lowerAddrOf(e)
	case *Index:
		return l.lowerIndex(e)
	case *MemberAccess:
		return l.lowerMember(e)
	}
	return l.failf(e.Span(), "Unsupported expression.")
}

// ============================================================================
// Type helpers
// ============================================================================

func (l *lowerer) unwrap(k types.Key) types.Key { return types.Unwrap(l.tp, k) }

// scalar returns the arithmetic view of k: enums become their underlying
// integer.
func (l *lowerer) scalar(k types.Key) types.Key { return types.UnwrapEnum(l.tp, k) }

func (l *lowerer) group(k types.Key) bytecode.Group { return l.scalar(k).Kind().Group() }

func (l *lowerer) isPointer(k types.Key) bool { return l.unwrap(k).Kind().IsPointerLike() }

func (l *lowerer) isArithmetic(k types.Key) bool {
	return l.scalar(k).Kind().IsBasic() && l.group(k) != bytecode.GroupOther
}

// truncateTo narrows n to the width of integer type k when k is narrower
// than a slot.
func (l *lowerer) truncateTo(n ir.Node, k types.Key) ir.Node {
	s := l.scalar(k)
	if !s.Kind().IsInteger() {
		return n
	}
	size := l.tp.ByteSize(s)
	if size == 0 || size >= 8 {
		return n
	}
	return ir.Truncate(uint8(size*8), s.Kind().IsSigned(), n)
}

// ============================================================================
// Mode resolution
// ============================================================================

// tryValue turns an address or register result into a value result. It
// records nothing; ok is false when the type cannot be loaded.
func (l *lowerer) tryValue(r TypedResult) (TypedResult, bool) {
	if r.Node == nil {
		return r, false
	}
	t := l.unwrap(r.Type)

	switch r.Mode {
	case ModeValue:
		return r, true

	case ModeAddress:
		if t.Kind() == types.KindArray {
			return TypedResult{Node: r.Node, Type: l.tp.Pointer(l.tp.Direct(t)), Mode: ModeValue}, true
		}
		size := l.tp.ByteSize(t)
		if size == 0 || size > 8 {
			return r, false
		}
		s := l.scalar(t)
		var n ir.Node = ir.Read(uint8(size), r.Node)
		if s.Kind().IsSigned() && size < 8 {
			n = ir.Truncate(uint8(size*8), true, n)
		}
		return TypedResult{Node: n, Type: r.Type, Mode: ModeValue}, true

	case ModeRegister:
		size := l.tp.ByteSize(t)
		if size == 0 || size > 8 {
			return r, false
		}
		n := l.truncateTo(&ir.RegReadDyn{Offset: r.Node}, t)
		return TypedResult{Node: n, Type: r.Type, Mode: ModeValue}, true
	}
	return r, false
}

// value is tryValue with a diagnostic.
func (l *lowerer) value(r TypedResult, span Span) TypedResult {
	if r.Node == nil {
		return r
	}
	v, ok := l.tryValue(r)
	if !ok {
		return l.failf(span, "Cannot read a value of type '%s'.", types.String(l.tp, r.Type))
	}
	return v
}

func (l *lowerer) lowerValue(e Expr) TypedResult {
	if e == nil {
		return TypedResult{}
	}
	return l.value(l.lower(e), e.Span())
}

// ============================================================================
// Conversion
// ============================================================================

// convert converts a value result to type out. It returns the failed
// rule when the groups cannot be converted.
func (l *lowerer) convert(r TypedResult, out types.Key) (ir.Node, bytecode.ConversionRule) {
	in, og := l.group(r.Type), l.group(out)
	rule := bytecode.Conversion(in, og)
	if !rule.OK() {
		return nil, rule
	}
	n := r.Node
	if rule == bytecode.ConvertLegal {
		n = &ir.Convert{In: in, Out: og, X: n}
	}

	os := l.scalar(out)
	if os.Kind() == types.KindBool && l.scalar(r.Type).Kind() != types.KindBool {
		return ir.Op(bytecode.OpNtEq, in, r.Node, ir.U(0)), rule
	}
	if !os.Kind().IsInteger() {
		return n, rule
	}
	is := l.scalar(r.Type)
	if is.Kind().IsInteger() && is.Kind().IsSigned() == os.Kind().IsSigned() &&
		l.tp.ByteSize(is) <= l.tp.ByteSize(os) {
		return n, rule
	}
	return l.truncateTo(n, os), rule
}

// ============================================================================
// Leaves
// ============================================================================

func (l *lowerer) lowerInt(e *IntLit) TypedResult {
	if e.Char {
		return TypedResult{Node: ir.S(int64(e.Value)), Type: types.Char, Mode: ModeValue}
	}
	switch {
	case e.Value <= math.MaxInt32:
		return TypedResult{Node: ir.S(int64(e.Value)), Type: types.S32, Mode: ModeValue}
	case e.Value <= math.MaxInt64:
		return TypedResult{Node: ir.S(int64(e.Value)), Type: types.S64, Mode: ModeValue}
	}
	return TypedResult{Node: ir.U(e.Value), Type: types.U64, Mode: ModeValue}
}

// ============================================================================
// Operators
// ============================================================================

func (l *lowerer) lowerUnary(e *Unary) TypedResult {
	x := l.lowerValue(e.X)
	if !x.OK() {
		return x
	}

	if e.Op == UnaryLogNot && l.isPointer(x.Type) {
		return TypedResult{Node: ir.Op(bytecode.OpEqEq, bytecode.GroupU, x.Node, ir.U(0)), Type: types.Bool, Mode: ModeValue}
	}
	if !l.isArithmetic(x.Type) {
		return l.failf(e.SpanVal, "Cannot perform operation on this type.")
	}

	promoted := types.Promote(l.scalar(x.Type))
	g := promoted.Group()
	op := e.Op.Opcode()
	if !op.Accepts(g) {
		return l.failf(e.SpanVal, "Cannot perform operation on this type.")
	}
	operand, _ := l.convert(x, promoted)

	if e.Op == UnaryLogNot {
		return TypedResult{Node: &ir.Unary{Op: op, Group: g, X: operand}, Type: types.Bool, Mode: ModeValue}
	}
	n := l.truncateTo(&ir.Unary{Op: op, Group: g, X: operand}, promoted)
	return TypedResult{Node: n, Type: promoted, Mode: ModeValue}
}

func (l *lowerer) lowerBinary(e *Binary) TypedResult {
	x := l.lowerValue(e.X)
	y := l.lowerValue(e.Y)
	if !x.OK() || !y.OK() {
		return TypedResult{}
	}

	switch e.Op {
	case BinaryLogAnd, BinaryLogOr:
		return l.lowerLogical(e, x, y)
	}

	xp, yp := l.isPointer(x.Type), l.isPointer(y.Type)
	switch {
	case e.Op.IsComparison() && (xp || yp):
		return l.lowerPointerCompare(e, x, y)
	case e.Op == BinaryAdd && xp && !yp:
		return l.pointerOffset(e, x, y, bytecode.OpAdd)
	case e.Op == BinaryAdd && yp && !xp:
		return l.pointerOffset(e, y, x, bytecode.OpAdd)
	case e.Op == BinarySub && xp && !yp:
		return l.pointerOffset(e, x, y, bytecode.OpSub)
	case e.Op == BinarySub && xp && yp:
		return l.pointerDifference(e, x, y)
	}

	if !l.isArithmetic(x.Type) || !l.isArithmetic(y.Type) {
		return l.failf(e.SpanVal, errOperands)
	}

	common := types.Coerce(l.tp, x.Type, y.Type)
	if e.Op == BinaryLShift || e.Op == BinaryRShift {
		common = types.Promote(l.scalar(x.Type))
	}
	g := common.Group()
	op := e.Op.Opcode()
	if !op.Accepts(g) {
		return l.failf(e.SpanVal, errOperands)
	}

	lhs, _ := l.convert(x, common)
	rhs := y.Node
	if e.Op != BinaryLShift && e.Op != BinaryRShift {
		rhs, _ = l.convert(y, common)
	} else if !l.group(y.Type).IsInteger() {
		return l.failf(e.SpanVal, errOperands)
	}

	var n ir.Node = ir.Op(op, g, lhs, rhs)
	if e.Op.IsComparison() {
		return TypedResult{Node: n, Type: types.Bool, Mode: ModeValue}
	}
	switch e.Op {
	case BinaryAdd, BinarySub, BinaryMul, BinaryDiv, BinaryLShift:
		n = l.truncateTo(n, common)
	}
	return TypedResult{Node: n, Type: common, Mode: ModeValue}
}

// truth converts a value to a form Cond can test.
func (l *lowerer) truth(r TypedResult) ir.Node {
	if l.group(r.Type).IsFloat() {
		return ir.Op(bytecode.OpNtEq, l.group(r.Type), r.Node, ir.U(0))
	}
	return r.Node
}

// lowerLogical lowers && and || to conditionals so the right operand only
// runs when needed.
func (l *lowerer) lowerLogical(e *Binary, x, y TypedResult) TypedResult {
	xg, yg := l.group(x.Type), l.group(y.Type)
	if xg == bytecode.GroupOther || yg == bytecode.GroupOther {
		return l.failf(e.SpanVal, errOperands)
	}
	rhs := ir.Op(bytecode.OpNtEq, yg, y.Node, ir.U(0))
	var n ir.Node
	if e.Op == BinaryLogAnd {
		n = &ir.Cond{Cond: l.truth(x), Then: rhs, Else: ir.U(0)}
	} else {
		n = &ir.Cond{Cond: l.truth(x), Then: ir.U(1), Else: rhs}
	}
	return TypedResult{Node: n, Type: types.Bool, Mode: ModeValue}
}

func (l *lowerer) lowerPointerCompare(e *Binary, x, y TypedResult) TypedResult {
	for _, r := range []TypedResult{x, y} {
		if !l.isPointer(r.Type) && !l.group(r.Type).IsInteger() {
			return l.failf(e.SpanVal, errOperands)
		}
	}
	if l.isPointer(x.Type) && l.isPointer(y.Type) &&
		!types.Match(l.tp, types.Pointee(l.tp, x.Type), types.Pointee(l.tp, y.Type)) &&
		types.Pointee(l.tp, x.Type).Kind() != types.KindVoid &&
		types.Pointee(l.tp, y.Type).Kind() != types.KindVoid {
		return l.failf(e.SpanVal, errOperands)
	}
	n := ir.Op(e.Op.Opcode(), bytecode.GroupU, x.Node, y.Node)
	return TypedResult{Node: n, Type: types.Bool, Mode: ModeValue}
}

// elemSize returns the pointee size of pointer type k, failing for
// incomplete and zero-sized pointees.
func (l *lowerer) elemSize(k types.Key) uint64 {
	return l.tp.ByteSize(types.Pointee(l.tp, k))
}

func (l *lowerer) pointerOffset(e *Binary, ptr, idx TypedResult, op bytecode.Opcode) TypedResult {
	if !l.group(idx.Type).IsInteger() {
		return l.failf(e.SpanVal, errOperands)
	}
	size := l.elemSize(ptr.Type)
	if size == 0 {
		return l.failf(e.SpanVal, "Cannot perform arithmetic on a pointer to a zero-sized type.")
	}
	offset := idx.Node
	if size != 1 {
		offset = ir.Op(bytecode.OpMul, bytecode.GroupU, idx.Node, ir.U(size))
	}
	n := ir.Op(op, bytecode.GroupU, ptr.Node, offset)
	return TypedResult{Node: n, Type: ptr.Type, Mode: ModeValue}
}

func (l *lowerer) pointerDifference(e *Binary, x, y TypedResult) TypedResult {
	size := l.elemSize(x.Type)
	if size != l.elemSize(y.Type) {
		return l.failf(e.SpanVal, errOperands)
	}
	if size == 0 {
		return l.failf(e.SpanVal, "Cannot perform arithmetic on a pointer to a zero-sized type.")
	}
	var n ir.Node = ir.Op(bytecode.OpSub, bytecode.GroupU, x.Node, y.Node)
	if size != 1 {
		n = ir.Op(bytecode.OpDiv, bytecode.GroupU, n, ir.U(size))
	}
	return TypedResult{Node: n, Type: types.U64, Mode: ModeValue}
}

func (l *lowerer) lowerTernary(e *Ternary) TypedResult {
	c := l.lowerValue(e.Cond)
	t := l.lowerValue(e.Then)
	f := l.lowerValue(e.Else)
	if !c.OK() || !t.OK() || !f.OK() {
		return TypedResult{}
	}
	if !l.group(c.Type).IsInteger() {
		return l.failf(e.Cond.Span(), "Condition must be an integer or pointer.")
	}

	switch {
	case l.isArithmetic(t.Type) && l.isArithmetic(f.Type):
		common := types.Coerce(l.tp, t.Type, f.Type)
		tn, _ := l.convert(t, common)
		fn, _ := l.convert(f, common)
		return TypedResult{Node: &ir.Cond{Cond: c.Node, Then: tn, Else: fn}, Type: common, Mode: ModeValue}
	case l.isPointer(t.Type) && types.Match(l.tp, t.Type, f.Type):
		return TypedResult{Node: &ir.Cond{Cond: c.Node, Then: t.Node, Else: f.Node}, Type: t.Type, Mode: ModeValue}
	}
	return l.failf(e.SpanVal, "Left and right terms must have matching types.")
}

func (l *lowerer) lowerCast(e *Cast) TypedResult {
	to := TypeKey(l.tp, e.Type)
	if to.IsZero() {
		return l.failf(e.SpanVal, "Unknown type in cast.")
	}
	x := l.lowerValue(e.X)
	if !x.OK() {
		return x
	}
	if l.isAddressLike(x.Type) && l.group(to).IsFloat() || l.group(x.Type).IsFloat() && l.isAddressLike(to) {
		return l.failf(e.SpanVal, "Cannot convert between pointers and floating point types.")
	}
	n, rule := l.convert(x, to)
	if !rule.OK() {
		return l.failf(e.SpanVal, "%s", rule.Message())
	}
	return TypedResult{Node: n, Type: to, Mode: ModeValue}
}

// isAddressLike reports whether values of k are addresses: pointers,
// references, functions, methods and member pointers.
func (l *lowerer) isAddressLike(k types.Key) bool {
	switch kind := l.unwrap(k).Kind(); {
	case kind.IsPointerLike(), kind == types.KindFunction, kind == types.KindMethod, kind == types.KindMemberPtr:
		return true
	}
	return false
}

func (l *lowerer) lowerSizeof(e *Sizeof) TypedResult {
	var k types.Key
	if IsTypeExpr(e.X) {
		k = TypeKey(l.tp, e.X)
	} else {
		r := l.lower(e.X)
		if !r.OK() {
			return r
		}
		k = r.Type
	}
	if k.IsZero() {
		return l.failf(e.SpanVal, "Cannot take the size of this expression.")
	}
	return TypedResult{Node: ir.U(l.tp.ByteSize(k)), Type: types.U64, Mode: ModeValue}
}

// ============================================================================
// Addressing
// ============================================================================

func (l *lowerer) lowerDeref(e *Deref) TypedResult {
	x := l.lowerValue(e.X)
	if !x.OK() {
		return x
	}
	if !l.isPointer(x.Type) {
		return l.failf(e.SpanVal, "Cannot dereference this type.")
	}
	pointee := l.tp.Direct(l.unwrap(x.Type))
	if k := l.unwrap(pointee).Kind(); k == types.KindVoid || k.IsIncomplete() {
		return l.failf(e.SpanVal, "Cannot dereference a pointer to an incomplete type.")
	}
	if l.tp.ByteSize(pointee) == 0 {
		return l.failf(e.SpanVal, "Cannot dereference a pointer to a zero-sized type.")
	}
	return TypedResult{Node: x.Node, Type: pointee, Mode: ModeAddress}
}

func (l *lowerer) lowerAddrOf(e *AddrOf) TypedResult {
	x := l.lower(e.X)
	if !x.OK() {
		return x
	}
	if x.Mode != ModeAddress {
		return l.failf(e.SpanVal, "Cannot take the address of this expression.")
	}
	return TypedResult{Node: x.Node, Type: l.tp.Pointer(l.unwrap(x.Type)), Mode: ModeValue}
}

func (l *lowerer) lowerIndex(e *Index) TypedResult {
	base := l.lower(e.X)
	idx := l.lowerValue(e.Index)
	if !base.OK() || !idx.OK() {
		return TypedResult{}
	}
	if !l.group(idx.Type).IsInteger() {
		return l.failf(e.Index.Span(), "Cannot index with this type.")
	}

	bt := l.unwrap(base.Type)
	var elem types.Key
	switch {
	case bt.Kind() == types.KindArray:
		if base.Mode != ModeAddress {
			return l.failf(e.SpanVal, "(Not supported) Cannot index into array without base address.")
		}
		elem = l.tp.Direct(bt)
	case bt.Kind().IsPointerLike():
		base = l.value(base, e.X.Span())
		if !base.OK() {
			return base
		}
		elem = l.tp.Direct(bt)
	default:
		return l.failf(e.SpanVal, "Cannot index into this type.")
	}

	size := l.tp.ByteSize(elem)
	if size == 0 {
		return l.failf(e.SpanVal, "Cannot index into a pointer to a zero-sized type.")
	}
	offset := idx.Node
	if size != 1 {
		offset = ir.Op(bytecode.OpMul, bytecode.GroupU, idx.Node, ir.U(size))
	}
	n := ir.Op(bytecode.OpAdd, bytecode.GroupU, offset, base.Node)
	return TypedResult{Node: n, Type: elem, Mode: ModeAddress}
}

func (l *lowerer) lowerMember(e *MemberAccess) TypedResult {
	base := l.lower(e.X)
	if !base.OK() {
		return base
	}

	var rec types.Key
	mode := base.Mode
	if l.isPointer(base.Type) {
		base = l.value(base, e.X.Span())
		if !base.OK() {
			return base
		}
		rec = types.Pointee(l.tp, base.Type)
		mode = ModeAddress
	} else {
		if base.Mode != ModeAddress && base.Mode != ModeRegister {
			return l.failf(e.SpanVal, "Cannot perform member access on this type.")
		}
		rec = l.unwrap(base.Type)
	}

	if !rec.Kind().IsRecord() {
		return l.failf(e.SpanVal, "Cannot perform member access on this type.")
	}
	for _, m := range l.tp.Members(rec) {
		if m.Name != e.Member.Name {
			continue
		}
		n := base.Node
		if m.Offset != 0 {
			n = ir.Op(bytecode.OpAdd, bytecode.GroupU, n, ir.U(m.Offset))
		}
		return TypedResult{Node: n, Type: m.Type, Mode: mode}
	}
	return l.failf(e.Member.SpanVal, "Could not find a member named '%s' in type.", e.Member.Name)
}
