// Package bytecode benchmarks
//
// Run: go test -bench=. ./pkg/bytecode/...
package bytecode

import (
	"math"
	"testing"
)

// ============================================================
// VM Benchmarks
// ============================================================

func BenchmarkVMArithmetic(b *testing.B) {
	c := NewChunk()
	c.EmitConst(100)
	for i := 0; i < 16; i++ {
		c.EmitConst(uint64(i + 1))
		c.EmitGroupOp(OpAdd, GroupS)
		c.EmitConst(3)
		c.EmitGroupOp(OpMul, GroupS)
	}
	vm := NewVM(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if r := vm.Execute(c.Code); r.Status != StatusGood {
			b.Fatal(r.Status)
		}
	}
}

func BenchmarkVMMemoryChain(b *testing.B) {
	target := &MockTarget{}
	for i := uint64(0); i < 8; i++ {
		target.poke64(0x1000+i*8, 0x1000+(i+1)*8)
	}
	c := NewChunk()
	c.EmitConst(0x1000)
	for i := 0; i < 8; i++ {
		c.EmitWithOperand(OpMemRead, 8)
	}
	vm := NewVM(target)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if r := vm.Execute(c.Code); r.Status != StatusGood {
			b.Fatal(r.Status)
		}
	}
}

func BenchmarkVMFloat(b *testing.B) {
	c := NewChunk()
	c.EmitWithOperand(OpConstU64, math.Float64bits(1.0001))
	for i := 0; i < 16; i++ {
		c.EmitWithOperand(OpPick, 0)
		c.EmitGroupOp(OpMul, GroupF64)
	}
	vm := NewVM(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vm.Execute(c.Code)
	}
}
