package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrJumpTooFar is returned by PatchJump when a branch does not fit in
// the 16-bit jump immediate.
var ErrJumpTooFar = errors.New("bytecode: jump offset exceeds 65535 bytes")

// Chunk is a flat bytecode program under construction or ready to run.
type Chunk struct {
	Code []byte // Bytecode instructions
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{Code: make([]byte, 0, 64)}
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode followed by its immediate, encoded
// little-endian at the width the descriptor table gives for op. Bits of
// operand above that width are dropped.
func (c *Chunk) EmitWithOperand(op Opcode, operand uint64) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = appendOperand(c.Code, op.OperandLen(), operand)
	return offset
}

// EmitConst emits the narrowest unsigned constant opcode that holds v.
func (c *Chunk) EmitConst(v uint64) int {
	switch {
	case v < 0x100:
		return c.EmitWithOperand(OpConstU8, v)
	case v < 0x10000:
		return c.EmitWithOperand(OpConstU16, v)
	case v < 0x100000000:
		return c.EmitWithOperand(OpConstU32, v)
	}
	return c.EmitWithOperand(OpConstU64, v)
}

// ConstWidth returns the bit width EmitConst would choose for v.
func ConstWidth(v uint64) int {
	switch {
	case v < 0x100:
		return 8
	case v < 0x10000:
		return 16
	case v < 0x100000000:
		return 32
	}
	return 64
}

// EmitGroupOp emits an arithmetic opcode tagged with group g.
func (c *Chunk) EmitGroupOp(op Opcode, g Group) int {
	return c.EmitWithOperand(op, uint64(g))
}

// EmitConvert emits OpConvert from group in to group out.
func (c *Chunk) EmitConvert(in, out Group) int {
	return c.EmitWithOperand(OpConvert, uint64(in)|uint64(out)<<8)
}

// EmitRegRead emits OpRegRead for size bytes at byteOff inside register code.
func (c *Chunk) EmitRegRead(code uint8, size uint8, byteOff uint16) int {
	return c.EmitWithOperand(OpRegRead, uint64(code)|uint64(size)<<8|uint64(byteOff)<<16)
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op), 0xFF, 0xFF) // Placeholder
	return offset + 1                              // Return offset of the placeholder bytes
}

// PatchJump patches a jump instruction's offset to land on the current position.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	jumpFrom := placeholderOffset + 2
	delta := len(c.Code) - jumpFrom
	if delta < 0 || delta > math.MaxUint16 {
		return ErrJumpTooFar
	}
	binary.LittleEndian.PutUint16(c.Code[placeholderOffset:], uint16(delta))
	return nil
}

// Append splices raw code, such as a resolver-supplied fragment, verbatim.
func (c *Chunk) Append(code []byte) {
	c.Code = append(c.Code, code...)
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// Validate checks that the chunk decodes cleanly end to end.
func (c *Chunk) Validate() error {
	return Validate(c.Code)
}

// ============================================================================
// Decoding
// ============================================================================

// Instruction is one decoded instruction.
type Instruction struct {
	Offset  int    // Position of the opcode byte
	Op      Opcode // Opcode
	Operand uint64 // Zero-extended little-endian immediate
}

// Len returns the encoded size of the instruction.
func (in Instruction) Len() int {
	return in.Op.InstructionLen()
}

// Next returns the offset of the following instruction.
func (in Instruction) Next() int {
	return in.Offset + in.Len()
}

// Decode reads the instruction at offset.
func Decode(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("bytecode: offset %d outside program of %d bytes", offset, len(code))
	}
	op := Opcode(code[offset])
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("bytecode: unknown opcode 0x%02X at %d", byte(op), offset)
	}
	n := op.OperandLen()
	if offset+1+n > len(code) {
		return Instruction{}, fmt.Errorf("bytecode: truncated %s at %d", op, offset)
	}
	return Instruction{Offset: offset, Op: op, Operand: readOperand(code[offset+1:], n)}, nil
}

// Validate walks code and reports the first instruction that is unknown,
// truncated, or jumps past the end.
func Validate(code []byte) error {
	for ip := 0; ip < len(code); {
		in, err := Decode(code, ip)
		if err != nil {
			return err
		}
		if in.Op.IsJump() && in.Next()+int(in.Operand) > len(code) {
			return fmt.Errorf("bytecode: %s at %d jumps past end", in.Op, ip)
		}
		ip = in.Next()
	}
	return nil
}

func appendOperand(code []byte, n int, v uint64) []byte {
	for i := 0; i < n; i++ {
		code = append(code, byte(v>>(8*i)))
	}
	return code
}

func readOperand(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
