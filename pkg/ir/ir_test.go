package ir

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/chazu/dbgeval/pkg/bytecode"
)

// memTarget is a flat little-endian memory image starting at address 0.
type memTarget struct {
	mem  []byte
	regs []byte
}

func (m *memTarget) ReadMemory(addr uint64, buf []byte) error {
	if addr+uint64(len(buf)) > uint64(len(m.mem)) {
		return errors.New("unmapped")
	}
	copy(buf, m.mem[addr:])
	return nil
}

func (m *memTarget) RegisterBlock() []byte      { return m.regs }
func (m *memTarget) FrameBase() (uint64, bool)  { return 0, false }
func (m *memTarget) ModuleBase() (uint64, bool) { return 0x10, true }
func (m *memTarget) TLSBase() (uint64, bool)    { return 0, false }

func run(t *testing.T, n Node, target bytecode.Target) bytecode.Result {
	t.Helper()
	code, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode(%s) failed: %v", Format(n), err)
	}
	if err := bytecode.Validate(code); err != nil {
		t.Fatalf("Encode(%s) produced invalid code: %v", Format(n), err)
	}
	return bytecode.NewVM(target).Execute(code)
}

// ============ Encode Tests ============

func TestEncodeUnsignedConst(t *testing.T) {
	tests := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{byte(bytecode.OpConstU8), 0}},
		{0x1234, []byte{byte(bytecode.OpConstU16), 0x34, 0x12}},
		{0x12345678, []byte{byte(bytecode.OpConstU32), 0x78, 0x56, 0x34, 0x12}},
	}

	for _, tt := range tests {
		code, err := Encode(U(tt.value))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(code, tt.want) {
			t.Errorf("Encode(%d) = % x, want % x", tt.value, code, tt.want)
		}
	}
}

func TestEncodeSignedConst(t *testing.T) {
	tests := []struct {
		value    int64
		firstOp  bytecode.Opcode
		wantSize int
	}{
		{-1, bytecode.OpConstU8, 4},
		{127, bytecode.OpConstU8, 4},
		{-129, bytecode.OpConstU16, 5},
		{40000, bytecode.OpConstU32, 7},
		{math.MinInt64, bytecode.OpConstU64, 9},
	}

	for _, tt := range tests {
		code, err := Encode(S(tt.value))
		if err != nil {
			t.Fatal(err)
		}
		if bytecode.Opcode(code[0]) != tt.firstOp {
			t.Errorf("%d: first opcode %s, want %s", tt.value, bytecode.Opcode(code[0]), tt.firstOp)
		}
		if len(code) != tt.wantSize {
			t.Errorf("%d: %d bytes, want %d", tt.value, len(code), tt.wantSize)
		}
		res := bytecode.NewVM(nil).Execute(code)
		if res.Status != bytecode.StatusGood || res.Value.S64() != tt.value {
			t.Errorf("%d: executed to %d (%s)", tt.value, res.Value.S64(), res.Status)
		}
	}
}

func TestEncodeCondLayout(t *testing.T) {
	n := &Cond{Cond: U(1), Then: U(2), Else: U(3)}
	code, err := Encode(n)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		byte(bytecode.OpConstU8), 1,
		byte(bytecode.OpCond), 5, 0,
		byte(bytecode.OpConstU8), 3,
		byte(bytecode.OpSkip), 2, 0,
		byte(bytecode.OpConstU8), 2,
	}
	if !bytes.Equal(code, want) {
		t.Errorf("Expected % x, got % x", want, code)
	}
}

func TestEncodeCondSelects(t *testing.T) {
	for cond, want := range map[uint64]uint64{0: 20, 1: 10, 7: 10} {
		res := run(t, &Cond{Cond: U(cond), Then: U(10), Else: U(20)}, nil)
		if res.Value.U64() != want {
			t.Errorf("cond %d: expected %d, got %d", cond, want, res.Value.U64())
		}
	}
}

func TestEncodeArithmetic(t *testing.T) {
	// (10 - 3) * -2 as signed
	n := Op(bytecode.OpMul, bytecode.GroupS,
		Op(bytecode.OpSub, bytecode.GroupS, S(10), S(3)),
		S(-2))
	res := run(t, n, nil)
	if res.Value.S64() != -14 {
		t.Errorf("Expected -14, got %d", res.Value.S64())
	}
}

func TestEncodeMemReadAndTrunc(t *testing.T) {
	target := &memTarget{mem: make([]byte, 64)}
	copy(target.mem[0x10:], []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xAA, 0xBB, 0xCC, 0xDD})

	splice := Code([]byte{byte(bytecode.OpModuleOff), 0, 0, 0, 0})
	res := run(t, Truncate(32, true, Read(8, splice)), target)
	if res.Value.S64() != -2 {
		t.Errorf("Expected -2, got %d", res.Value.S64())
	}

	res = run(t, Truncate(16, false, Read(8, splice)), target)
	if res.Value.U64() != 0xFFFE {
		t.Errorf("Expected 0xFFFE, got %#x", res.Value.U64())
	}
}

func TestEncodeRegReadDyn(t *testing.T) {
	regs := make([]byte, 16)
	regs[8] = 0x2A
	res := run(t, &RegReadDyn{Offset: U(8)}, &memTarget{regs: regs})
	if res.Value.U64() != 0x2A {
		t.Errorf("Expected 0x2A, got %#x", res.Value.U64())
	}
}

func TestEncodeConvert(t *testing.T) {
	n := &Convert{In: bytecode.GroupS, Out: bytecode.GroupF64, X: S(-3)}
	res := run(t, n, nil)
	if res.Value.F64() != -3 {
		t.Errorf("Expected -3.0, got %v", res.Value.F64())
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"nil", nil},
		{"nil operand", Op(bytecode.OpAdd, bytecode.GroupU, U(1), nil)},
		{"float mod", Op(bytecode.OpMod, bytecode.GroupF64, U(1), U(2))},
		{"wide read", Read(9, U(0))},
		{"zero read", Read(0, U(0))},
		{"truncated fragment", Op(bytecode.OpAdd, bytecode.GroupU, Code([]byte{byte(bytecode.OpConstU32), 1}), U(1))},
		{"unknown opcode in fragment", Code([]byte{0xFF})},
		{"fragment jumps past end", Code([]byte{byte(bytecode.OpSkip), 9, 0})},
	}

	for _, tt := range tests {
		if _, err := Encode(tt.node); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestEncodeJumpTooFar(t *testing.T) {
	big := Code(make([]byte, 70000))
	if _, err := Encode(&Cond{Cond: U(1), Then: U(1), Else: big}); !errors.Is(err, bytecode.ErrJumpTooFar) {
		t.Errorf("Expected ErrJumpTooFar, got %v", err)
	}
}

// ============ Format Tests ============

func TestFormat(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{U(5), "5u"},
		{S(-5), "-5"},
		{Op(bytecode.OpAdd, bytecode.GroupS, S(1), S(2)), "(add.s 1 2)"},
		{&Cond{Cond: U(1), Then: U(2), Else: U(3)}, "(if 1u 2u 3u)"},
		{Truncate(8, true, Read(4, U(16))), "(strunc8 (read4 16u))"},
		{&Convert{In: bytecode.GroupU, Out: bytecode.GroupF32, X: U(1)}, "(convert u->f32 1u)"},
		{&RegReadDyn{Offset: U(8)}, "(reg 8u)"},
		{Code([]byte{0x08, 0x10}), "[08 10]"},
		{nil, "<nil>"},
	}

	for _, tt := range tests {
		if got := Format(tt.node); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}
