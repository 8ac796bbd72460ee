package bytecode

// Group is the operand class an arithmetic opcode operates on. It is
// encoded as the one-byte immediate of every unary, binary and
// comparison opcode.
type Group uint8

const (
	GroupOther Group = iota // aggregates and anything not register-sized
	GroupU                  // unsigned integers, pointers, references
	GroupS                  // signed integers, chars, bool
	GroupF32
	GroupF64

	groupCount
)

var groupNames = [...]string{
	GroupOther: "other",
	GroupU:     "u",
	GroupS:     "s",
	GroupF32:   "f32",
	GroupF64:   "f64",
}

func (g Group) String() string {
	if g < groupCount {
		return groupNames[g]
	}
	return "invalid"
}

// Valid reports whether g is a defined group.
func (g Group) Valid() bool { return g < groupCount }

// IsInteger reports whether g is U or S.
func (g Group) IsInteger() bool { return g == GroupU || g == GroupS }

// IsFloat reports whether g is F32 or F64.
func (g Group) IsFloat() bool { return g == GroupF32 || g == GroupF64 }

// Accepts reports whether op may be applied to operands of group g.
// Opcodes without a group immediate accept every group.
func (op Opcode) Accepts(g Group) bool {
	switch op {
	case OpAbs, OpNeg, OpAdd, OpSub, OpMul, OpDiv,
		OpEqEq, OpNtEq, OpLsEq, OpGrEq, OpLess, OpGrtr:
		return g != GroupOther && g.Valid()
	case OpMod, OpLShift, OpRShift, OpBitNot, OpBitAnd, OpBitOr, OpBitXor,
		OpLogNot, OpLogAnd, OpLogOr:
		return g.IsInteger()
	}
	return true
}

// ConversionRule classifies a conversion between two groups.
type ConversionRule uint8

const (
	ConvertNoop         ConversionRule = iota // same representation, no code needed
	ConvertLegal                              // needs an OpConvert
	ConvertOtherToOther                       // neither side is a scalar
	ConvertToOther                            // target is not a scalar
	ConvertFromOther                          // source is not a scalar
)

// Message returns the diagnostic for an illegal rule, or "" for legal ones.
func (r ConversionRule) Message() string {
	switch r {
	case ConvertOtherToOther:
		return "Cannot convert between these types."
	case ConvertToOther:
		return "Cannot convert to this type."
	case ConvertFromOther:
		return "Cannot convert this type."
	}
	return ""
}

// OK reports whether the rule permits the conversion.
func (r ConversionRule) OK() bool {
	return r == ConvertNoop || r == ConvertLegal
}

// Conversion returns the rule for converting a value of group in to group out.
func Conversion(in, out Group) ConversionRule {
	switch {
	case in == GroupOther && out == GroupOther:
		return ConvertOtherToOther
	case out == GroupOther:
		return ConvertToOther
	case in == GroupOther:
		return ConvertFromOther
	case in == out, in.IsInteger() && out.IsInteger():
		return ConvertNoop
	}
	return ConvertLegal
}
