package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	return DisassembleCode(name, c.Code)
}

// DisassembleCode lists raw code. Decoding stops at the first bad
// instruction, which is reported in place.
func DisassembleCode(name string, code []byte) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d bytes\n", len(code)))

	offset := 0
	for offset < len(code) {
		in, err := Decode(code, offset)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", offset, err))
			break
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, formatInstruction(in)))
		offset = in.Next()
	}

	return sb.String()
}

// formatInstruction renders one decoded instruction without its offset.
func formatInstruction(in Instruction) string {
	op := in.Op
	switch {
	case op.OperandLen() == 0:
		return op.String()
	case op.IsJump():
		return fmt.Sprintf("%s +%d (-> %04X)", op, in.Operand, in.Next()+int(in.Operand))
	case op.HasGroup():
		return fmt.Sprintf("%s.%s", op, Group(in.Operand))
	case op.IsConst():
		return fmt.Sprintf("%s %d ; %#x", op, in.Operand, in.Operand)
	}

	switch op {
	case OpRegRead:
		return fmt.Sprintf("REG_READ reg=%d size=%d off=%d",
			uint8(in.Operand), uint8(in.Operand>>8), uint16(in.Operand>>16))
	case OpConvert:
		return fmt.Sprintf("CONVERT %s -> %s", Group(in.Operand&0xFF), Group(in.Operand>>8))
	case OpFrameOff, OpModuleOff, OpTLSOff:
		return fmt.Sprintf("%s %+#x", op, in.Operand)
	}
	return fmt.Sprintf("%s %d", op, in.Operand)
}
