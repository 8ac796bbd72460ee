package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewChunk(t *testing.T) {
	c := NewChunk()
	if c.CodeLen() != 0 {
		t.Errorf("Expected empty code, got %d bytes", c.CodeLen())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Empty chunk should validate: %v", err)
	}
}

func TestChunkEmitWithOperand(t *testing.T) {
	c := NewChunk()
	c.EmitWithOperand(OpModuleOff, 0x11223344)
	c.EmitGroupOp(OpAdd, GroupS)
	c.EmitConvert(GroupS, GroupF64)

	want := []byte{
		byte(OpModuleOff), 0x44, 0x33, 0x22, 0x11,
		byte(OpAdd), byte(GroupS),
		byte(OpConvert), byte(GroupS), byte(GroupF64),
	}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("Expected % X, got % X", want, c.Code)
	}
}

func TestChunkEmitConst(t *testing.T) {
	tests := []struct {
		v     uint64
		op    Opcode
		width int
	}{
		{0, OpConstU8, 8},
		{0xFF, OpConstU8, 8},
		{0x100, OpConstU16, 16},
		{0xFFFF, OpConstU16, 16},
		{0x10000, OpConstU32, 32},
		{0xFFFFFFFF, OpConstU32, 32},
		{0x100000000, OpConstU64, 64},
	}

	for _, tt := range tests {
		c := NewChunk()
		c.EmitConst(tt.v)
		in, err := Decode(c.Code, 0)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if in.Op != tt.op || in.Operand != tt.v {
			t.Errorf("EmitConst(%#x) = %s %#x, want %s", tt.v, in.Op, in.Operand, tt.op)
		}
		if got := ConstWidth(tt.v); got != tt.width {
			t.Errorf("ConstWidth(%#x) = %d, want %d", tt.v, got, tt.width)
		}
	}
}

func TestChunkJumpPatch(t *testing.T) {
	c := NewChunk()
	c.EmitConst(1)
	cond := c.EmitJump(OpCond)
	c.EmitConst(2)
	if err := c.PatchJump(cond); err != nil {
		t.Fatalf("PatchJump failed: %v", err)
	}

	in, err := Decode(c.Code, cond-1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Operand != 2 {
		t.Errorf("Expected jump over 2 bytes, got %d", in.Operand)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestChunkJumpTooFar(t *testing.T) {
	c := NewChunk()
	skip := c.EmitJump(OpSkip)
	c.Append(make([]byte, 0x10000))
	if err := c.PatchJump(skip); !errors.Is(err, ErrJumpTooFar) {
		t.Errorf("Expected ErrJumpTooFar, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xEE}},
		{"truncated operand", []byte{byte(OpConstU32), 1, 2}},
		{"jump past end", []byte{byte(OpSkip), 5, 0, byte(OpNoop)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.code); err == nil {
				t.Errorf("Expected validation error for % X", tt.code)
			}
		})
	}
}

func TestDecodeRegRead(t *testing.T) {
	c := NewChunk()
	c.EmitRegRead(3, 4, 2)
	in, err := Decode(c.Code, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if uint8(in.Operand) != 3 || uint8(in.Operand>>8) != 4 || uint16(in.Operand>>16) != 2 {
		t.Errorf("Unexpected RegRead operand %#x", in.Operand)
	}
	if in.Next() != 5 {
		t.Errorf("Expected next offset 5, got %d", in.Next())
	}
}
