package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/types"
)

// ---------------------------------------------------------------------------
// AST: expression trees produced by the parser
// ---------------------------------------------------------------------------

// Span is a byte range of the expression text.
type Span struct {
	Start int
	End   int
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Mode says how the bytecode of a typed subtree should be read.
type Mode uint8

const (
	ModeNull     Mode = iota
	ModeValue         // the code computes the value itself
	ModeAddress       // the code computes the address of the value
	ModeRegister      // the code computes a byte offset in the register block
)

func (m Mode) String() string {
	switch m {
	case ModeValue:
		return "value"
	case ModeAddress:
		return "address"
	case ModeRegister:
		return "register"
	}
	return "null"
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryOp is an arithmetic prefix operator.
type UnaryOp uint8

const (
	UnaryNeg    UnaryOp = iota // -x
	UnaryLogNot                // !x
	UnaryBitNot                // ~x
)

var unaryOpcodes = [...]bytecode.Opcode{
	UnaryNeg:    bytecode.OpNeg,
	UnaryLogNot: bytecode.OpLogNot,
	UnaryBitNot: bytecode.OpBitNot,
}

var unarySymbols = [...]string{UnaryNeg: "-", UnaryLogNot: "!", UnaryBitNot: "~"}

func (op UnaryOp) Opcode() bytecode.Opcode { return unaryOpcodes[op] }
func (op UnaryOp) String() string          { return unarySymbols[op] }

// BinaryOp is an infix operator.
type BinaryOp uint8

const (
	BinaryMul BinaryOp = iota
	BinaryDiv
	BinaryMod
	BinaryAdd
	BinarySub
	BinaryLShift
	BinaryRShift
	BinaryLess
	BinaryLsEq
	BinaryGrtr
	BinaryGrEq
	BinaryEqEq
	BinaryNtEq
	BinaryBitAnd
	BinaryBitXor
	BinaryBitOr
	BinaryLogAnd
	BinaryLogOr
)

type binaryOpInfo struct {
	symbol string
	prec   int
	opcode bytecode.Opcode
}

// binaryOps is indexed by BinaryOp. Lower precedence numbers bind tighter.
var binaryOps = [...]binaryOpInfo{
	BinaryMul:    {"*", 3, bytecode.OpMul},
	BinaryDiv:    {"/", 3, bytecode.OpDiv},
	BinaryMod:    {"%", 3, bytecode.OpMod},
	BinaryAdd:    {"+", 4, bytecode.OpAdd},
	BinarySub:    {"-", 4, bytecode.OpSub},
	BinaryLShift: {"<<", 5, bytecode.OpLShift},
	BinaryRShift: {">>", 5, bytecode.OpRShift},
	BinaryLess:   {"<", 6, bytecode.OpLess},
	BinaryLsEq:   {"<=", 6, bytecode.OpLsEq},
	BinaryGrtr:   {">", 6, bytecode.OpGrtr},
	BinaryGrEq:   {">=", 6, bytecode.OpGrEq},
	BinaryEqEq:   {"==", 7, bytecode.OpEqEq},
	BinaryNtEq:   {"!=", 7, bytecode.OpNtEq},
	BinaryBitAnd: {"&", 8, bytecode.OpBitAnd},
	BinaryBitXor: {"^", 9, bytecode.OpBitXor},
	BinaryBitOr:  {"|", 10, bytecode.OpBitOr},
	BinaryLogAnd: {"&&", 11, bytecode.OpLogAnd},
	BinaryLogOr:  {"||", 12, bytecode.OpLogOr},
}

const (
	prefixPrecedence  = 2
	ternaryPrecedence = 13
	maxPrecedence     = 15
)

func (op BinaryOp) String() string          { return binaryOps[op].symbol }
func (op BinaryOp) Precedence() int         { return binaryOps[op].prec }
func (op BinaryOp) Opcode() bytecode.Opcode { return binaryOps[op].opcode }

// IsComparison reports whether op yields a bool.
func (op BinaryOp) IsComparison() bool { return op >= BinaryLess && op <= BinaryNtEq }

func lookupBinaryOp(sym string) (BinaryOp, bool) {
	for i, info := range binaryOps {
		if info.symbol == sym {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Unary is -x, !x or ~x.
type Unary struct {
	SpanVal Span
	Op      UnaryOp
	X       Expr
}

// Binary is x op y.
type Binary struct {
	SpanVal Span
	Op      BinaryOp
	X, Y    Expr
}

// Ternary is cond ? then : else.
type Ternary struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

// Cast is (type)x.
type Cast struct {
	SpanVal Span
	Type    Expr // a type expression
	X       Expr
}

// Sizeof is sizeof x or sizeof(type).
type Sizeof struct {
	SpanVal Span
	X       Expr
}

// MemberAccess is x.name or x->name.
type MemberAccess struct {
	SpanVal Span
	X       Expr
	Member  Field
	Arrow   bool
}

// Field is the member name of a MemberAccess.
type Field struct {
	SpanVal Span
	Name    string
}

// Index is x[i].
type Index struct {
	SpanVal Span
	X       Expr
	Index   Expr
}

// AddrOf is &x.
type AddrOf struct {
	SpanVal Span
	X       Expr
}

// Deref is *x.
type Deref struct {
	SpanVal Span
	X       Expr
}

// IntLit is an integer or character literal.
type IntLit struct {
	SpanVal Span
	Value   uint64
	Char    bool
}

// FloatLit is a floating-point literal; Single is set by an f suffix.
type FloatLit struct {
	SpanVal Span
	Value   float64
	Single  bool
}

// Leaf is an identifier already bound to a bytecode fragment.
type Leaf struct {
	SpanVal Span
	Name    string
	Code    []byte
	Type    types.Key
	Mode    Mode
}

// TypeIdent names a type.
type TypeIdent struct {
	SpanVal Span
	Name    string
	Type    types.Key
}

// PointerDecl is a pointer type expression, T*.
type PointerDecl struct {
	SpanVal Span
	Elem    Expr
}

// ArrayDecl is an array type expression, T[N].
type ArrayDecl struct {
	SpanVal Span
	Elem    Expr
	Count   uint64
}

func (n *Unary) Span() Span        { return n.SpanVal }
func (n *Binary) Span() Span       { return n.SpanVal }
func (n *Ternary) Span() Span      { return n.SpanVal }
func (n *Cast) Span() Span         { return n.SpanVal }
func (n *Sizeof) Span() Span       { return n.SpanVal }
func (n *MemberAccess) Span() Span { return n.SpanVal }
func (n *Field) Span() Span        { return n.SpanVal }
func (n *Index) Span() Span        { return n.SpanVal }
func (n *AddrOf) Span() Span       { return n.SpanVal }
func (n *Deref) Span() Span        { return n.SpanVal }
func (n *IntLit) Span() Span       { return n.SpanVal }
func (n *FloatLit) Span() Span     { return n.SpanVal }
func (n *Leaf) Span() Span         { return n.SpanVal }
func (n *TypeIdent) Span() Span    { return n.SpanVal }
func (n *PointerDecl) Span() Span  { return n.SpanVal }
func (n *ArrayDecl) Span() Span    { return n.SpanVal }

func (n *Unary) node()        {}
func (n *Binary) node()       {}
func (n *Ternary) node()      {}
func (n *Cast) node()         {}
func (n *Sizeof) node()       {}
func (n *MemberAccess) node() {}
func (n *Field) node()        {}
func (n *Index) node()        {}
func (n *AddrOf) node()       {}
func (n *Deref) node()        {}
func (n *IntLit) node()       {}
func (n *FloatLit) node()     {}
func (n *Leaf) node()         {}
func (n *TypeIdent) node()    {}
func (n *PointerDecl) node()  {}
func (n *ArrayDecl) node()    {}

func (n *Unary) expr()        {}
func (n *Binary) expr()       {}
func (n *Ternary) expr()      {}
func (n *Cast) expr()         {}
func (n *Sizeof) expr()       {}
func (n *MemberAccess) expr() {}
func (n *Index) expr()        {}
func (n *AddrOf) expr()       {}
func (n *Deref) expr()        {}
func (n *IntLit) expr()       {}
func (n *FloatLit) expr()     {}
func (n *Leaf) expr()         {}
func (n *TypeIdent) expr()    {}
func (n *PointerDecl) expr()  {}
func (n *ArrayDecl) expr()    {}

// IsTypeExpr reports whether e denotes a type rather than a value.
func IsTypeExpr(e Expr) bool {
	switch e.(type) {
	case *TypeIdent, *PointerDecl, *ArrayDecl:
		return true
	}
	return false
}

// FormatExpr renders e as an s-expression, for tests and the REPL.
// Missing subtrees print as _.
func FormatExpr(e Expr) string {
	var sb strings.Builder
	formatExpr(&sb, e)
	return sb.String()
}

func formatExpr(sb *strings.Builder, e Expr) {
	list := func(head string, args ...Expr) {
		sb.WriteString("(" + head)
		for _, a := range args {
			sb.WriteByte(' ')
			formatExpr(sb, a)
		}
		sb.WriteByte(')')
	}

	switch e := e.(type) {
	case nil:
		sb.WriteString("_")
	case *IntLit:
		if e.Char {
			fmt.Fprintf(sb, "%d", int64(e.Value))
		} else {
			fmt.Fprintf(sb, "%d", e.Value)
		}
	case *FloatLit:
		fmt.Fprintf(sb, "%g", e.Value)
		if e.Single {
			sb.WriteByte('f')
		}
	case *Leaf:
		sb.WriteString(e.Name)
	case *TypeIdent:
		sb.WriteString(e.Name)
	case *PointerDecl:
		list("ptr", e.Elem)
	case *ArrayDecl:
		list(fmt.Sprintf("array %d", e.Count), e.Elem)
	case *Unary:
		list(e.Op.String(), e.X)
	case *Binary:
		list(e.Op.String(), e.X, e.Y)
	case *Ternary:
		list("?", e.Cond, e.Then, e.Else)
	case *Cast:
		list("cast", e.Type, e.X)
	case *Sizeof:
		list("sizeof", e.X)
	case *MemberAccess:
		op := "."
		if e.Arrow {
			op = "->"
		}
		sb.WriteString("(" + op + " ")
		formatExpr(sb, e.X)
		sb.WriteString(" " + e.Member.Name + ")")
	case *Index:
		list("[]", e.X, e.Index)
	case *AddrOf:
		list("&", e.X)
	case *Deref:
		list("*", e.X)
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}
