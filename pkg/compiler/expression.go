package compiler

import (
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/convert"
)

// exprTranslator turns expression trees into typed IR. Each Visit method
// leaves its result in result; translate reads it back after every Accept.
type exprTranslator struct {
	sess   *session
	result Expr
}

func newExprTranslator(s *session) *exprTranslator {
	return &exprTranslator{sess: s}
}

// translate returns the IR for e in its natural type.
func (t *exprTranslator) translate(e ast.Expr) (Expr, error) {
	t.result = Expr{Type: TypeUnknown}
	if err := e.Accept(t); err != nil {
		return Expr{}, err
	}
	return t.result, nil
}

// to translates e and casts it to dest.
func (t *exprTranslator) to(e ast.Expr, dest Type) (Expr, error) {
	x, err := t.translate(e)
	if err != nil {
		return Expr{}, err
	}
	out, err := Cast(x, dest)
	if err != nil {
		return Expr{}, compileErr(e.Pos(), err, "in %s", ast.FormatExpr(e))
	}
	return out, nil
}

func (t *exprTranslator) toString(e ast.Expr) (Expr, error)  { return t.to(e, TypeString) }
func (t *exprTranslator) toBool(e ast.Expr) (Expr, error)    { return t.to(e, TypeBool) }
func (t *exprTranslator) toInt(e ast.Expr) (Expr, error)     { return t.to(e, TypeInt) }
func (t *exprTranslator) toValue(e ast.Expr) (Expr, error)   { return t.to(e, TypeValue) }
func (t *exprTranslator) toData(e ast.Expr) (Expr, error)    { return t.to(e, TypeData) }
func (t *exprTranslator) toVarName(e ast.Expr) (Expr, error) { return t.to(e, TypeVarName) }

func (t *exprTranslator) VisitVarRef(n *ast.VarRef) error {
	x, err := t.sess.translatePath(n.Path)
	if err != nil {
		return err
	}
	t.result = x
	return nil
}

func (t *exprTranslator) VisitStringLit(n *ast.StringLit) error {
	t.result = stringExpr(&StringLit{Value: n.Value})
	return nil
}

func (t *exprTranslator) VisitDecimalLit(n *ast.DecimalLit) error {
	return t.number(n.Loc, n.Text)
}

func (t *exprTranslator) VisitHexLit(n *ast.HexLit) error {
	return t.number(n.Loc, n.Text)
}

// number accepts only literals valid under the template numeric grammar.
func (t *exprTranslator) number(pos ast.Pos, text string) error {
	n, err := convert.ParseNumber(text)
	if err != nil {
		return compileErr(pos, err, "invalid number %q", text)
	}
	t.result = intExpr(&IntLit{Value: n})
	return nil
}

func (t *exprTranslator) VisitUnary(n *ast.Unary) error {
	switch n.Op {
	case ast.Not:
		x, err := t.toBool(n.X)
		if err != nil {
			return err
		}
		t.result = boolExpr(&Not{X: x.Code})
	case ast.Negate:
		x, err := t.toInt(n.X)
		if err != nil {
			return err
		}
		t.result = intExpr(&Negate{X: x.Code})
	case ast.Numeric:
		x, err := t.toInt(n.X)
		if err != nil {
			return err
		}
		t.result = x
	default:
		return compileErr(n.Loc, nil, "unknown unary operator %s", n.Op)
	}
	return nil
}

func (t *exprTranslator) VisitBinary(n *ast.Binary) error {
	switch n.Op {
	case ast.Add:
		x, y, err := t.operands(n, TypeString)
		if err != nil {
			return err
		}
		t.result = stringExpr(&Concat{Parts: []Code{x, y}})
	case ast.NumAdd, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		x, y, err := t.operands(n, TypeInt)
		if err != nil {
			return err
		}
		t.result = intExpr(&Arith{Op: n.Op, X: x, Y: y})
	case ast.Eq, ast.Ne:
		x, y, err := t.operands(n, TypeString)
		if err != nil {
			return err
		}
		t.result = boolExpr(&StringEquals{X: x, Y: y, Negate: n.Op == ast.Ne})
	case ast.NumEq, ast.NumNe, ast.Lt, ast.Gt, ast.Le, ast.Ge:
		x, y, err := t.operands(n, TypeInt)
		if err != nil {
			return err
		}
		t.result = boolExpr(&Compare{Op: n.Op, X: x, Y: y})
	case ast.And, ast.Or:
		x, y, err := t.operands(n, TypeBool)
		if err != nil {
			return err
		}
		t.result = boolExpr(&Logical{Op: n.Op, X: x, Y: y})
	default:
		return compileErr(n.Loc, nil, "unknown binary operator %s", n.Op)
	}
	return nil
}

func (t *exprTranslator) operands(n *ast.Binary, dest Type) (Code, Code, error) {
	x, err := t.to(n.X, dest)
	if err != nil {
		return nil, nil, err
	}
	y, err := t.to(n.Y, dest)
	if err != nil {
		return nil, nil, err
	}
	return x.Code, y.Code, nil
}

func (t *exprTranslator) VisitFuncCall(n *ast.FuncCall) error {
	name, err := functionName(n.Name)
	if err != nil {
		return err
	}
	args := make([]Code, len(n.Args))
	for i, a := range n.Args {
		x, err := t.toValue(a)
		if err != nil {
			return err
		}
		args[i] = x.Code
	}
	t.result = valueExpr(&CallFunc{Name: name, Args: args})
	return nil
}

// VisitExists probes a bare variable; any other operand is trivially true.
func (t *exprTranslator) VisitExists(n *ast.Exists) error {
	ref, ok := n.X.(*ast.VarRef)
	if !ok {
		t.result = boolExpr(&BoolLit{Value: true})
		return nil
	}
	x, err := t.sess.translatePath(ref.Path)
	if err != nil {
		return err
	}
	t.result = boolExpr(&Exists{Name: x.Code})
	return nil
}

// functionName joins the segments of a function name path with ".".
func functionName(p ast.Path) (string, error) {
	var parts []string
	var walk func(ast.Path) error
	walk = func(p ast.Path) error {
		switch p := p.(type) {
		case *ast.NameSeg:
			parts = append(parts, p.Name)
		case *ast.NumberSeg:
			parts = append(parts, p.Text)
		case *ast.DescendSeg:
			if err := walk(p.Parent); err != nil {
				return err
			}
			return walk(p.Child)
		default:
			return compileErr(p.Pos(), nil, "invalid function name %s", ast.FormatPath(p))
		}
		return nil
	}
	if err := walk(p); err != nil {
		return "", err
	}
	return strings.Join(parts, "."), nil
}
