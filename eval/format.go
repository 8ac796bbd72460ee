package eval

import (
	"fmt"
	"strconv"

	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/types"
)

// FormatValue renders a slot as a value of type k.
func FormatValue(tp types.Provider, k types.Key, v bytecode.Slot) string {
	u := types.Unwrap(tp, k)
	switch u.Kind() {
	case types.KindBool:
		return strconv.FormatBool(v.Truthy())
	case types.KindChar8, types.KindUChar8:
		c := byte(v.U64())
		if c >= 0x20 && c < 0x7F {
			return fmt.Sprintf("%d '%c'", charValue(u, v), c)
		}
		return strconv.FormatInt(charValue(u, v), 10)
	case types.KindF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case types.KindF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case types.KindEnum:
		return FormatValue(tp, types.UnwrapEnum(tp, u), v)
	case types.KindPtr, types.KindLRef, types.KindRRef, types.KindFunction, types.KindMethod, types.KindHandle:
		return fmt.Sprintf("%#x", v.U64())
	}

	switch u.Group() {
	case bytecode.GroupS:
		return strconv.FormatInt(v.S64(), 10)
	case bytecode.GroupU:
		return strconv.FormatUint(v.U64(), 10)
	}
	return fmt.Sprintf("%#x", v.U64())
}

func charValue(k types.Key, v bytecode.Slot) int64 {
	if k.Kind().IsSigned() {
		return int64(int8(v.U64()))
	}
	return int64(uint8(v.U64()))
}

// Describe renders an evaluation as "<value> (<type>)".
func Describe(tp types.Provider, ev *Evaluation) string {
	return fmt.Sprintf("%s (%s)", FormatValue(tp, ev.Type(), ev.Result.Value), types.String(tp, ev.Type()))
}
