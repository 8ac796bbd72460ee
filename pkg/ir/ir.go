// Package ir defines the untyped intermediate tree the compiler lowers
// expressions into, and encodes it to bytecode.
//
// Every node produces exactly one value when executed. Nodes are
// immutable once built and may be shared between trees.
package ir

import "github.com/chazu/dbgeval/pkg/bytecode"

// Node is an IR node.
type Node interface {
	irNode()
}

// Const pushes a constant. Signed constants are sign-extended from the
// narrowest width that holds them.
type Const struct {
	Value  uint64
	Signed bool
}

// Unary applies a group-tagged unary opcode.
type Unary struct {
	Op    bytecode.Opcode
	Group bytecode.Group
	X     Node
}

// Binary applies a group-tagged binary or comparison opcode.
type Binary struct {
	Op    bytecode.Opcode
	Group bytecode.Group
	X, Y  Node
}

// Cond evaluates Then when Cond is nonzero, else Else.
type Cond struct {
	Cond Node
	Then Node
	Else Node
}

// MemRead loads Size bytes from the address produced by Addr.
type MemRead struct {
	Size uint8
	Addr Node
}

// RegReadDyn loads a pointer-sized value from the register block at the
// byte offset produced by Offset.
type RegReadDyn struct {
	Offset Node
}

// Convert changes the representation of X between groups.
type Convert struct {
	In, Out bytecode.Group
	X       Node
}

// Trunc keeps the low Bits bits of X, sign-extending when Signed.
type Trunc struct {
	Bits   uint8
	Signed bool
	X      Node
}

// Splice inserts a precompiled fragment verbatim. The fragment must
// push exactly one value.
type Splice struct {
	Code []byte
}

func (*Const) irNode()      {}
func (*Unary) irNode()      {}
func (*Binary) irNode()     {}
func (*Cond) irNode()       {}
func (*MemRead) irNode()    {}
func (*RegReadDyn) irNode() {}
func (*Convert) irNode()    {}
func (*Trunc) irNode()      {}
func (*Splice) irNode()     {}

// Constructors keep call sites in the compiler short.

func U(v uint64) *Const { return &Const{Value: v} }
func S(v int64) *Const  { return &Const{Value: uint64(v), Signed: true} }

func Op(op bytecode.Opcode, g bytecode.Group, x, y Node) *Binary {
	return &Binary{Op: op, Group: g, X: x, Y: y}
}

func Read(size uint8, addr Node) *MemRead { return &MemRead{Size: size, Addr: addr} }

func Truncate(bits uint8, signed bool, x Node) *Trunc {
	return &Trunc{Bits: bits, Signed: signed, X: x}
}

func Code(code []byte) *Splice { return &Splice{Code: code} }
