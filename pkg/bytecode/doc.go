// Package bytecode defines the portable evaluation bytecode and the stack
// machine that runs it against a debug target.
//
// # Format
//
// A program is a flat byte slice. Each instruction is one opcode byte
// followed by a little-endian immediate of 0, 1, 2, 4 or 8 bytes; the
// width is fixed per opcode by the descriptor table (see GetOpcodeInfo).
// There is no header, constant pool or relocation: programs produced by
// a symbol resolver can be spliced verbatim into a larger program.
//
// Arithmetic and comparison opcodes carry a one-byte type group
// (GroupU, GroupS, GroupF32, GroupF64) that selects signedness and
// float width. OpConvert carries a pair of groups.
//
// Control flow is forward-only. OpCond pops a value and skips ahead by
// its immediate when the value is nonzero; OpSkip always does. The
// conditional layout emitted by the encoder is
//
//	[cond] COND(len(else)+3) [else] SKIP(len(then)) [then]
//
// # Execution
//
// VM.Execute runs a program on a fixed-capacity stack of 8-byte slots
// and returns a Result. The program must leave exactly one slot; any
// other depth is StatusMalformedBytecode. Target memory, the register
// block and the frame/module/TLS bases come from a Target supplied by
// the caller. No error is recovered: the first failing instruction
// determines the status.
package bytecode
