package ast

import (
	"strconv"
	"strings"
)

// FormatPath renders p in template syntax, e.g. page.items[i].title.
func FormatPath(p Path) string {
	var b strings.Builder
	writePath(&b, p)
	return b.String()
}

func writePath(b *strings.Builder, p Path) {
	switch p := p.(type) {
	case *NameSeg:
		b.WriteString(p.Name)
	case *NumberSeg:
		b.WriteString(p.Text)
	case *DescendSeg:
		writePath(b, p.Parent)
		b.WriteByte('.')
		writePath(b, p.Child)
	case *ExpandSeg:
		writePath(b, p.Parent)
		b.WriteByte('[')
		writeExpr(b, p.Index)
		b.WriteByte(']')
	}
}

// FormatExpr renders e in template syntax with full parenthesization.
func FormatExpr(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case *VarRef:
		writePath(b, e.Path)
	case *StringLit:
		b.WriteString(strconv.Quote(e.Value))
	case *DecimalLit:
		b.WriteString(e.Text)
	case *HexLit:
		b.WriteString(e.Text)
	case *Unary:
		b.WriteString(e.Op.String())
		writeExpr(b, e.X)
	case *Binary:
		b.WriteByte('(')
		writeExpr(b, e.X)
		b.WriteByte(' ')
		b.WriteString(e.Op.String())
		b.WriteByte(' ')
		writeExpr(b, e.Y)
		b.WriteByte(')')
	case *FuncCall:
		writePath(b, e.Name)
		b.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, a)
		}
		b.WriteByte(')')
	case *Exists:
		b.WriteByte('?')
		writeExpr(b, e.X)
	}
}
