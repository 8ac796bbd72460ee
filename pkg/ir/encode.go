package ir

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/dbgeval/pkg/bytecode"
)

// ErrNilNode is returned when a tree contains a missing operand.
var ErrNilNode = errors.New("ir: nil node")

// Encode compiles a tree to a standalone bytecode program.
func Encode(n Node) ([]byte, error) {
	c := bytecode.NewChunk()
	if err := EncodeTo(c, n); err != nil {
		return nil, err
	}
	if err := bytecode.Validate(c.Code); err != nil {
		return nil, fmt.Errorf("ir: encoded program: %w", err)
	}
	return c.Code, nil
}

// EncodeTo appends the code for n to c.
func EncodeTo(c *bytecode.Chunk, n Node) error {
	switch n := n.(type) {
	case nil:
		return ErrNilNode

	case *Const:
		emitConst(c, n)

	case *Unary:
		if err := EncodeTo(c, n.X); err != nil {
			return err
		}
		if !n.Op.Accepts(n.Group) {
			return fmt.Errorf("ir: %s does not accept group %s", n.Op, n.Group)
		}
		c.EmitGroupOp(n.Op, n.Group)

	case *Binary:
		if err := EncodeTo(c, n.X); err != nil {
			return err
		}
		if err := EncodeTo(c, n.Y); err != nil {
			return err
		}
		if !n.Op.Accepts(n.Group) {
			return fmt.Errorf("ir: %s does not accept group %s", n.Op, n.Group)
		}
		c.EmitGroupOp(n.Op, n.Group)

	case *Cond:
		// [cond] COND else-len+3 [else] SKIP then-len [then]
		if err := EncodeTo(c, n.Cond); err != nil {
			return err
		}
		toThen := c.EmitJump(bytecode.OpCond)
		if err := EncodeTo(c, n.Else); err != nil {
			return err
		}
		toEnd := c.EmitJump(bytecode.OpSkip)
		if err := c.PatchJump(toThen); err != nil {
			return err
		}
		if err := EncodeTo(c, n.Then); err != nil {
			return err
		}
		if err := c.PatchJump(toEnd); err != nil {
			return err
		}

	case *MemRead:
		if n.Size < 1 || n.Size > 8 {
			return fmt.Errorf("ir: memory read of %d bytes", n.Size)
		}
		if err := EncodeTo(c, n.Addr); err != nil {
			return err
		}
		c.EmitWithOperand(bytecode.OpMemRead, uint64(n.Size))

	case *RegReadDyn:
		if err := EncodeTo(c, n.Offset); err != nil {
			return err
		}
		c.Emit(bytecode.OpRegReadDyn)

	case *Convert:
		if err := EncodeTo(c, n.X); err != nil {
			return err
		}
		c.EmitConvert(n.In, n.Out)

	case *Trunc:
		if err := EncodeTo(c, n.X); err != nil {
			return err
		}
		op := bytecode.OpTrunc
		if n.Signed {
			op = bytecode.OpTruncSigned
		}
		c.EmitWithOperand(op, uint64(n.Bits))

	case *Splice:
		if err := bytecode.Validate(n.Code); err != nil {
			return fmt.Errorf("ir: fragment: %w", err)
		}
		c.Append(n.Code)

	default:
		return fmt.Errorf("ir: unknown node %T", n)
	}
	return nil
}

func emitConst(c *bytecode.Chunk, n *Const) {
	if !n.Signed {
		c.EmitConst(n.Value)
		return
	}
	w := signedWidth(int64(n.Value))
	if w == 64 {
		c.EmitWithOperand(bytecode.OpConstU64, n.Value)
		return
	}
	op := map[int]bytecode.Opcode{8: bytecode.OpConstU8, 16: bytecode.OpConstU16, 32: bytecode.OpConstU32}[w]
	c.EmitWithOperand(op, n.Value&(1<<w-1))
	c.EmitWithOperand(bytecode.OpTruncSigned, uint64(w))
}

// signedWidth returns the narrowest of 8, 16, 32 and 64 bits that holds v
// as a two's complement integer.
func signedWidth(v int64) int {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 8
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 16
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 32
	}
	return 64
}
