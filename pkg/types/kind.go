package types

import (
	"fmt"

	"github.com/chazu/dbgeval/pkg/bytecode"
)

// Kind classifies a type.
type Kind uint8

const (
	KindNull Kind = iota
	KindVoid
	KindHandle
	KindHResult
	KindChar8
	KindChar16
	KindChar32
	KindUChar8
	KindUChar16
	KindUChar32
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindU512
	KindS8
	KindS16
	KindS32
	KindS64
	KindS128
	KindS256
	KindS512
	KindBool
	KindF16
	KindF32
	KindF32PP
	KindF48
	KindF64
	KindF80
	KindF128
	KindComplexF32
	KindComplexF64
	KindComplexF80
	KindComplexF128
	KindModifier
	KindPtr
	KindLRef
	KindRRef
	KindArray
	KindFunction
	KindMethod
	KindMemberPtr
	KindStruct
	KindClass
	KindUnion
	KindEnum
	KindAlias
	KindIncompleteStruct
	KindIncompleteUnion
	KindIncompleteClass
	KindIncompleteEnum
	KindBitfield
	KindVariadic

	kindCount
)

type kindInfo struct {
	name  string
	size  uint64
	group bytecode.Group
}

// kindTable holds the display name, fixed byte size, and arithmetic group
// of each kind. Sizes of zero for non-basic kinds are supplied by the
// Provider.
var kindTable = [kindCount]kindInfo{
	KindNull:             {"<null>", 0, bytecode.GroupOther},
	KindVoid:             {"void", 0, bytecode.GroupOther},
	KindHandle:           {"HANDLE", 8, bytecode.GroupU},
	KindHResult:          {"HRESULT", 4, bytecode.GroupS},
	KindChar8:            {"char", 1, bytecode.GroupS},
	KindChar16:           {"char16", 2, bytecode.GroupS},
	KindChar32:           {"char32", 4, bytecode.GroupS},
	KindUChar8:           {"uchar8", 1, bytecode.GroupU},
	KindUChar16:          {"uchar16", 2, bytecode.GroupU},
	KindUChar32:          {"uchar32", 4, bytecode.GroupU},
	KindU8:               {"uint8", 1, bytecode.GroupU},
	KindU16:              {"uint16", 2, bytecode.GroupU},
	KindU32:              {"uint32", 4, bytecode.GroupU},
	KindU64:              {"uint64", 8, bytecode.GroupU},
	KindU128:             {"uint128", 16, bytecode.GroupU},
	KindU256:             {"uint256", 32, bytecode.GroupU},
	KindU512:             {"uint512", 64, bytecode.GroupU},
	KindS8:               {"int8", 1, bytecode.GroupS},
	KindS16:              {"int16", 2, bytecode.GroupS},
	KindS32:              {"int32", 4, bytecode.GroupS},
	KindS64:              {"int64", 8, bytecode.GroupS},
	KindS128:             {"int128", 16, bytecode.GroupS},
	KindS256:             {"int256", 32, bytecode.GroupS},
	KindS512:             {"int512", 64, bytecode.GroupS},
	KindBool:             {"bool", 1, bytecode.GroupS},
	KindF16:              {"float16", 2, bytecode.GroupOther},
	KindF32:              {"float", 4, bytecode.GroupF32},
	KindF32PP:            {"float32pp", 4, bytecode.GroupOther},
	KindF48:              {"float48", 6, bytecode.GroupOther},
	KindF64:              {"double", 8, bytecode.GroupF64},
	KindF80:              {"float80", 10, bytecode.GroupOther},
	KindF128:             {"float128", 16, bytecode.GroupOther},
	KindComplexF32:       {"complex32", 8, bytecode.GroupOther},
	KindComplexF64:       {"complex64", 16, bytecode.GroupOther},
	KindComplexF80:       {"complex80", 20, bytecode.GroupOther},
	KindComplexF128:      {"complex128", 32, bytecode.GroupOther},
	KindModifier:         {"modifier", 0, bytecode.GroupOther},
	KindPtr:              {"pointer", 0, bytecode.GroupU},
	KindLRef:             {"lvalue reference", 0, bytecode.GroupU},
	KindRRef:             {"rvalue reference", 0, bytecode.GroupU},
	KindArray:            {"array", 0, bytecode.GroupOther},
	KindFunction:         {"function", 0, bytecode.GroupU},
	KindMethod:           {"method", 0, bytecode.GroupU},
	KindMemberPtr:        {"member pointer", 0, bytecode.GroupU},
	KindStruct:           {"struct", 0, bytecode.GroupOther},
	KindClass:            {"class", 0, bytecode.GroupOther},
	KindUnion:            {"union", 0, bytecode.GroupOther},
	KindEnum:             {"enum", 0, bytecode.GroupOther},
	KindAlias:            {"alias", 0, bytecode.GroupOther},
	KindIncompleteStruct: {"struct", 0, bytecode.GroupOther},
	KindIncompleteUnion:  {"union", 0, bytecode.GroupOther},
	KindIncompleteClass:  {"class", 0, bytecode.GroupOther},
	KindIncompleteEnum:   {"enum", 0, bytecode.GroupOther},
	KindBitfield:         {"bitfield", 0, bytecode.GroupOther},
	KindVariadic:         {"...", 0, bytecode.GroupOther},
}

func (k Kind) String() string {
	if k < kindCount {
		return kindTable[k].name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Group returns the arithmetic group values of kind k are operated on as.
func (k Kind) Group() bytecode.Group {
	if k < kindCount {
		return kindTable[k].group
	}
	return bytecode.GroupOther
}

// BasicSize returns the fixed byte size of a basic kind, or 0.
func (k Kind) BasicSize() uint64 {
	if k.IsBasic() {
		return kindTable[k].size
	}
	return 0
}

// IsBasic reports whether k is a builtin scalar kind.
func (k Kind) IsBasic() bool { return k >= KindVoid && k <= KindComplexF128 }

// IsInteger reports whether k is a basic kind operated on as U or S.
func (k Kind) IsInteger() bool { return k.IsBasic() && k.Group().IsInteger() }

// IsFloat reports whether k is f32 or f64.
func (k Kind) IsFloat() bool { return k == KindF32 || k == KindF64 }

// IsSigned reports whether k is operated on as a signed integer.
func (k Kind) IsSigned() bool { return k.IsBasic() && k.Group() == bytecode.GroupS }

// IsPointerLike reports whether k is a pointer or reference.
func (k Kind) IsPointerLike() bool { return k == KindPtr || k == KindLRef || k == KindRRef }

// IsRecord reports whether k is a complete struct, class or union.
func (k Kind) IsRecord() bool { return k == KindStruct || k == KindClass || k == KindUnion }

// IsIncomplete reports whether k is a forward declaration.
func (k Kind) IsIncomplete() bool { return k >= KindIncompleteStruct && k <= KindIncompleteEnum }

// IsUserDefined reports whether values of kind k carry a name.
func (k Kind) IsUserDefined() bool {
	return k.IsRecord() || k == KindEnum || k == KindAlias || k.IsIncomplete()
}
