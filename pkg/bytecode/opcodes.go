package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Every instruction is one opcode byte followed by a fixed-width
// little-endian immediate whose size is given by the descriptor table.
type Opcode byte

const (
	// ========================================================================
	// Control (0x00-0x03)
	// ========================================================================

	OpStop Opcode = 0x00 // Halt execution
	OpNoop Opcode = 0x01 // No operation
	OpCond Opcode = 0x02 // Pop; if nonzero skip forward: OpCond <offset:u16>
	OpSkip Opcode = 0x03 // Unconditional forward skip: OpSkip <offset:u16>

	// ========================================================================
	// Target reads (0x04-0x06)
	// ========================================================================

	OpMemRead    Opcode = 0x04 // Pop address, push memory: OpMemRead <size:u8>
	OpRegRead    Opcode = 0x05 // Push register bytes: OpRegRead <code:u8 size:u8 off:u16>
	OpRegReadDyn Opcode = 0x06 // Pop register-block offset, push pointer-sized read

	// ========================================================================
	// Base offsets (0x07-0x09)
	// ========================================================================

	OpFrameOff  Opcode = 0x07 // Push frame base + off: OpFrameOff <off:u32>
	OpModuleOff Opcode = 0x08 // Push module base + off: OpModuleOff <off:u32>
	OpTLSOff    Opcode = 0x09 // Push thread-local base + off: OpTLSOff <off:u32>

	// ========================================================================
	// Constants (0x0A-0x0D)
	// ========================================================================

	OpConstU8  Opcode = 0x0A // Push constant: OpConstU8 <v:u8>
	OpConstU16 Opcode = 0x0B // Push constant: OpConstU16 <v:u16>
	OpConstU32 Opcode = 0x0C // Push constant: OpConstU32 <v:u32>
	OpConstU64 Opcode = 0x0D // Push constant: OpConstU64 <v:u64>

	// ========================================================================
	// Unary arithmetic (0x0E-0x11), immediate is the type group
	// ========================================================================

	OpAbs    Opcode = 0x0E
	OpNeg    Opcode = 0x0F
	OpBitNot Opcode = 0x10
	OpLogNot Opcode = 0x11

	// ========================================================================
	// Binary arithmetic (0x12-0x1D), immediate is the type group
	// ========================================================================

	OpAdd    Opcode = 0x12
	OpSub    Opcode = 0x13
	OpMul    Opcode = 0x14
	OpDiv    Opcode = 0x15
	OpMod    Opcode = 0x16
	OpLShift Opcode = 0x17
	OpRShift Opcode = 0x18
	OpBitAnd Opcode = 0x19
	OpBitOr  Opcode = 0x1A
	OpBitXor Opcode = 0x1B
	OpLogAnd Opcode = 0x1C
	OpLogOr  Opcode = 0x1D

	// ========================================================================
	// Comparison (0x1E-0x23), immediate is the type group, pushes 0 or 1
	// ========================================================================

	OpEqEq Opcode = 0x1E
	OpNtEq Opcode = 0x1F
	OpLsEq Opcode = 0x20
	OpGrEq Opcode = 0x21
	OpLess Opcode = 0x22
	OpGrtr Opcode = 0x23

	// ========================================================================
	// Width and representation (0x24-0x26)
	// ========================================================================

	OpTrunc       Opcode = 0x24 // Zero-extend from <bits:u8>
	OpTruncSigned Opcode = 0x25 // Sign-extend from <bits:u8>
	OpConvert     Opcode = 0x26 // Convert between groups: OpConvert <in:u8 out:u8>

	// ========================================================================
	// Stack manipulation (0x27-0x29)
	// ========================================================================

	OpPick   Opcode = 0x27 // Push copy of slot <depth:u8> from the top
	OpPop    Opcode = 0x28 // Discard top of stack
	OpInsert Opcode = 0x29 // Move top of stack down to <depth:u8>

	// opCount is one past the highest defined opcode.
	opCount = 0x2A
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable is indexed by opcode. Entries with an empty Name are
// undefined opcodes.
var opcodeInfoTable = [256]OpcodeInfo{
	// Control
	OpStop: {"STOP", 0, 0, 0},
	OpNoop: {"NOOP", 0, 0, 0},
	OpCond: {"COND", 1, 0, 2},
	OpSkip: {"SKIP", 0, 0, 2},

	// Target reads
	OpMemRead:    {"MEM_READ", 1, 1, 1},
	OpRegRead:    {"REG_READ", 0, 1, 4},
	OpRegReadDyn: {"REG_READ_DYN", 1, 1, 0},

	// Bases
	OpFrameOff:  {"FRAME_OFF", 0, 1, 4},
	OpModuleOff: {"MODULE_OFF", 0, 1, 4},
	OpTLSOff:    {"TLS_OFF", 0, 1, 4},

	// Constants
	OpConstU8:  {"CONST_U8", 0, 1, 1},
	OpConstU16: {"CONST_U16", 0, 1, 2},
	OpConstU32: {"CONST_U32", 0, 1, 4},
	OpConstU64: {"CONST_U64", 0, 1, 8},

	// Unary
	OpAbs:    {"ABS", 1, 1, 1},
	OpNeg:    {"NEG", 1, 1, 1},
	OpBitNot: {"BIT_NOT", 1, 1, 1},
	OpLogNot: {"LOG_NOT", 1, 1, 1},

	// Binary
	OpAdd:    {"ADD", 2, 1, 1},
	OpSub:    {"SUB", 2, 1, 1},
	OpMul:    {"MUL", 2, 1, 1},
	OpDiv:    {"DIV", 2, 1, 1},
	OpMod:    {"MOD", 2, 1, 1},
	OpLShift: {"LSHIFT", 2, 1, 1},
	OpRShift: {"RSHIFT", 2, 1, 1},
	OpBitAnd: {"BIT_AND", 2, 1, 1},
	OpBitOr:  {"BIT_OR", 2, 1, 1},
	OpBitXor: {"BIT_XOR", 2, 1, 1},
	OpLogAnd: {"LOG_AND", 2, 1, 1},
	OpLogOr:  {"LOG_OR", 2, 1, 1},

	// Comparison
	OpEqEq: {"EQ", 2, 1, 1},
	OpNtEq: {"NE", 2, 1, 1},
	OpLsEq: {"LE", 2, 1, 1},
	OpGrEq: {"GE", 2, 1, 1},
	OpLess: {"LT", 2, 1, 1},
	OpGrtr: {"GT", 2, 1, 1},

	// Width and representation
	OpTrunc:       {"TRUNC", 1, 1, 1},
	OpTruncSigned: {"TRUNC_SIGNED", 1, 1, 1},
	OpConvert:     {"CONVERT", 1, 1, 2},

	// Stack
	OpPick:   {"PICK", 0, 1, 1},
	OpPop:    {"POP", 1, 0, 0},
	OpInsert: {"INSERT", 0, 0, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return op < opCount && opcodeInfoTable[op].Name != ""
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode moves the instruction pointer.
func (op Opcode) IsJump() bool {
	return op == OpCond || op == OpSkip
}

// IsConst returns true if this opcode pushes an immediate constant.
func (op Opcode) IsConst() bool {
	return op >= OpConstU8 && op <= OpConstU64
}

// HasGroup returns true if the opcode's immediate is a type group.
func (op Opcode) HasGroup() bool {
	return op >= OpAbs && op <= OpGrtr
}

// IsComparison returns true for the six relational opcodes.
func (op Opcode) IsComparison() bool {
	return op >= OpEqEq && op <= OpGrtr
}

// AllOpcodes returns a slice of all defined opcodes in numeric order.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, opCount)
	for op := Opcode(0); op < opCount; op++ {
		if op.Valid() {
			opcodes = append(opcodes, op)
		}
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(AllOpcodes())
}
