package ir

import (
	"fmt"
	"strings"
)

// Format renders a tree as a single-line s-expression, for tracing and
// the REPL's :ir command.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Const:
		if n.Signed {
			fmt.Fprintf(sb, "%d", int64(n.Value))
		} else {
			fmt.Fprintf(sb, "%du", n.Value)
		}
	case *Unary:
		fmt.Fprintf(sb, "(%s.%s ", opName(n.Op.String()), n.Group)
		format(sb, n.X)
		sb.WriteByte(')')
	case *Binary:
		fmt.Fprintf(sb, "(%s.%s ", opName(n.Op.String()), n.Group)
		format(sb, n.X)
		sb.WriteByte(' ')
		format(sb, n.Y)
		sb.WriteByte(')')
	case *Cond:
		sb.WriteString("(if ")
		format(sb, n.Cond)
		sb.WriteByte(' ')
		format(sb, n.Then)
		sb.WriteByte(' ')
		format(sb, n.Else)
		sb.WriteByte(')')
	case *MemRead:
		fmt.Fprintf(sb, "(read%d ", n.Size)
		format(sb, n.Addr)
		sb.WriteByte(')')
	case *RegReadDyn:
		sb.WriteString("(reg ")
		format(sb, n.Offset)
		sb.WriteByte(')')
	case *Convert:
		fmt.Fprintf(sb, "(convert %s->%s ", n.In, n.Out)
		format(sb, n.X)
		sb.WriteByte(')')
	case *Trunc:
		name := "trunc"
		if n.Signed {
			name = "strunc"
		}
		fmt.Fprintf(sb, "(%s%d ", name, n.Bits)
		format(sb, n.X)
		sb.WriteByte(')')
	case *Splice:
		fmt.Fprintf(sb, "[% x]", n.Code)
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}

func opName(name string) string {
	return strings.ToLower(name)
}
