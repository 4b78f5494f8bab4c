package compiler

import (
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/convert"
)

// pathTranslator turns a variable path into one VAR_NAME expression. It
// collects one fragment per segment, depth first, and is not reentrant:
// computed [expr] segments are translated by a fresh expression translator
// so the fragments collected here stay intact.
type pathTranslator struct {
	sess  *session
	parts []Code
}

func (s *session) translatePath(p ast.Path) (Expr, error) {
	pt := &pathTranslator{sess: s}
	if err := p.Accept(pt); err != nil {
		return Expr{}, err
	}
	return varNameExpr(foldConcat(pt.parts)), nil
}

func (pt *pathTranslator) VisitNameSeg(n *ast.NameSeg) error {
	pt.parts = append(pt.parts, &StringLit{Value: n.Name})
	return nil
}

// VisitNumberSeg keeps the index as written, so a.01 names the child "01".
func (pt *pathTranslator) VisitNumberSeg(n *ast.NumberSeg) error {
	if _, err := convert.ParseNumber(n.Text); err != nil {
		return compileErr(n.Loc, err, "invalid path index %q", n.Text)
	}
	pt.parts = append(pt.parts, &StringLit{Value: n.Text})
	return nil
}

func (pt *pathTranslator) VisitDescendSeg(n *ast.DescendSeg) error {
	if err := n.Parent.Accept(pt); err != nil {
		return err
	}
	pt.parts = append(pt.parts, &StringLit{Value: "."})
	return n.Child.Accept(pt)
}

func (pt *pathTranslator) VisitExpandSeg(n *ast.ExpandSeg) error {
	if err := n.Parent.Accept(pt); err != nil {
		return err
	}
	pt.parts = append(pt.parts, &StringLit{Value: "."})
	idx, err := newExprTranslator(pt.sess).toString(n.Index)
	if err != nil {
		return err
	}
	pt.parts = append(pt.parts, idx.Code)
	return nil
}

// foldConcat merges adjacent string literals and concatenates the rest in
// order. A single remaining part is returned as is.
func foldConcat(parts []Code) Code {
	var out []Code
	var lit strings.Builder
	pending := false
	flush := func() {
		if pending {
			out = append(out, &StringLit{Value: lit.String()})
			lit.Reset()
			pending = false
		}
	}
	var flat []Code
	for _, p := range parts {
		if c, ok := p.(*Concat); ok {
			flat = append(flat, c.Parts...)
		} else {
			flat = append(flat, p)
		}
	}
	for _, p := range flat {
		if s, ok := p.(*StringLit); ok {
			lit.WriteString(s.Value)
			pending = true
			continue
		}
		flush()
		out = append(out, p)
	}
	flush()
	switch len(out) {
	case 0:
		return &StringLit{}
	case 1:
		return out[0]
	}
	return &Concat{Parts: out}
}
