package bytecode

import "math"

// Slot is one 8-byte VM stack cell. Every view of a slot as an integer
// or float goes through the accessors below.
type Slot struct {
	bits uint64
}

// SlotU64 makes a slot holding v.
func SlotU64(v uint64) Slot { return Slot{bits: v} }

// SlotS64 makes a slot holding the two's complement bits of v.
func SlotS64(v int64) Slot { return Slot{bits: uint64(v)} }

// SlotF32 makes a slot whose low 32 bits hold the IEEE bits of v.
func SlotF32(v float32) Slot { return Slot{bits: uint64(math.Float32bits(v))} }

// SlotF64 makes a slot holding the IEEE bits of v.
func SlotF64(v float64) Slot { return Slot{bits: math.Float64bits(v)} }

// SlotBool makes a slot holding 1 or 0.
func SlotBool(v bool) Slot {
	if v {
		return Slot{bits: 1}
	}
	return Slot{}
}

func (s Slot) U64() uint64  { return s.bits }
func (s Slot) S64() int64   { return int64(s.bits) }
func (s Slot) F32() float32 { return math.Float32frombits(uint32(s.bits)) }
func (s Slot) F64() float64 { return math.Float64frombits(s.bits) }

// Truthy reports whether the slot is nonzero as an integer.
func (s Slot) Truthy() bool { return s.bits != 0 }

// IsZero reports whether the slot is zero in group g. Negative zero
// counts as zero for floats.
func (s Slot) IsZero(g Group) bool {
	switch g {
	case GroupF32:
		return s.F32() == 0
	case GroupF64:
		return s.F64() == 0
	}
	return s.bits == 0
}
