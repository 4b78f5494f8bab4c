package parser

import (
	"strings"

	"github.com/CTAG07/Quicksilver/pkg/ast"
)

type exprParser struct {
	p    *parser
	toks []token
	i    int
}

func (e *exprParser) peek() token {
	return e.toks[e.i]
}

func (e *exprParser) nextTok() token {
	t := e.toks[e.i]
	if t.kind != tEOF {
		e.i++
	}
	return t
}

func (e *exprParser) pos(t token) ast.Pos {
	return e.p.position(t.off)
}

func (e *exprParser) accept(punct string) bool {
	if t := e.peek(); t.kind == tPunct && t.text == punct {
		e.i++
		return true
	}
	return false
}

func (e *exprParser) expect(punct string) error {
	if !e.accept(punct) {
		t := e.peek()
		return e.p.errorf(t.off, "expected %q, got %s", punct, describe(t))
	}
	return nil
}

func (e *exprParser) expectEOF() error {
	if t := e.peek(); t.kind != tEOF {
		return e.p.errorf(t.off, "unexpected %s", describe(t))
	}
	return nil
}

func (e *exprParser) expectIdent() (string, error) {
	t := e.nextTok()
	if t.kind != tIdent {
		return "", e.p.errorf(t.off, "expected a name, got %s", describe(t))
	}
	return t.text, nil
}

func describe(t token) string {
	switch t.kind {
	case tEOF:
		return "end of command"
	case tString:
		return "string literal"
	}
	return "'" + t.text + "'"
}

// dottedName reads a name such as "nav.link" for def and call.
func (e *exprParser) dottedName() (string, error) {
	first, err := e.expectIdent()
	if err != nil {
		return "", err
	}
	parts := []string{first}
	for e.accept(".") {
		t := e.nextTok()
		if t.kind != tIdent && t.kind != tNumber {
			return "", e.p.errorf(t.off, "expected a name after '.', got %s", describe(t))
		}
		parts = append(parts, t.text)
	}
	return strings.Join(parts, "."), nil
}

func (e *exprParser) parseExpr() (ast.Expr, error) {
	return e.parseBinary(0)
}

type binaryLevel struct {
	ops map[string]ast.BinaryOp
}

// levels lists binary operators from lowest to highest precedence.
var levels = []binaryLevel{
	{map[string]ast.BinaryOp{"||": ast.Or}},
	{map[string]ast.BinaryOp{"&&": ast.And}},
	{map[string]ast.BinaryOp{"==": ast.Eq, "!=": ast.Ne}},
	{map[string]ast.BinaryOp{"<": ast.Lt, ">": ast.Gt, "<=": ast.Le, ">=": ast.Ge}},
	{map[string]ast.BinaryOp{"+": ast.Add, "-": ast.Sub}},
	{map[string]ast.BinaryOp{"*": ast.Mul, "/": ast.Div, "%": ast.Mod}},
}

func (e *exprParser) parseBinary(level int) (ast.Expr, error) {
	if level == len(levels) {
		return e.parseUnary()
	}
	x, err := e.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := e.peek()
		op, ok := levels[level].ops[t.text]
		if t.kind != tPunct || !ok {
			return x, nil
		}
		e.i++
		y, err := e.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Loc: e.pos(t), Op: numericVariant(op, x, y), X: x, Y: y}
	}
}

// numericVariant resolves + == != to their numeric forms when either
// operand is numeric.
func numericVariant(op ast.BinaryOp, x, y ast.Expr) ast.BinaryOp {
	if !isNumeric(x) && !isNumeric(y) {
		return op
	}
	switch op {
	case ast.Add:
		return ast.NumAdd
	case ast.Eq:
		return ast.NumEq
	case ast.Ne:
		return ast.NumNe
	}
	return op
}

func isNumeric(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.DecimalLit, *ast.HexLit:
		return true
	case *ast.Unary:
		return x.Op == ast.Negate || x.Op == ast.Numeric
	case *ast.Binary:
		switch x.Op {
		case ast.NumAdd, ast.Sub, ast.Mul, ast.Div, ast.Mod:
			return true
		}
	}
	return false
}

func (e *exprParser) parseUnary() (ast.Expr, error) {
	t := e.peek()
	if t.kind == tPunct {
		var op ast.UnaryOp
		switch t.text {
		case "!":
			op = ast.Not
		case "-":
			op = ast.Negate
		case "#":
			op = ast.Numeric
		case "?":
			e.i++
			x, err := e.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Exists{Loc: e.pos(t), X: x}, nil
		default:
			return e.parsePrimary()
		}
		e.i++
		x, err := e.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Loc: e.pos(t), Op: op, X: x}, nil
	}
	return e.parsePrimary()
}

func (e *exprParser) parsePrimary() (ast.Expr, error) {
	t := e.peek()
	switch t.kind {
	case tString:
		e.i++
		return &ast.StringLit{Loc: e.pos(t), Value: t.text}, nil
	case tNumber:
		e.i++
		if strings.HasPrefix(t.text, "0x") || strings.HasPrefix(t.text, "0X") {
			return &ast.HexLit{Loc: e.pos(t), Text: t.text}, nil
		}
		return &ast.DecimalLit{Loc: e.pos(t), Text: t.text}, nil
	case tIdent:
		path, err := e.parsePath()
		if err != nil {
			return nil, err
		}
		if !e.accept("(") {
			return &ast.VarRef{Loc: e.pos(t), Path: path}, nil
		}
		args, err := e.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.FuncCall{Loc: e.pos(t), Name: path, Args: args}, nil
	case tPunct:
		if t.text == "(" {
			e.i++
			x, err := e.parseExpr()
			if err != nil {
				return nil, err
			}
			return x, e.expect(")")
		}
	}
	return nil, e.p.errorf(t.off, "unexpected %s in expression", describe(t))
}

// parseArgs reads a call argument list after its "(".
func (e *exprParser) parseArgs() ([]ast.Expr, error) {
	var args []ast.Expr
	if e.accept(")") {
		return args, nil
	}
	for {
		x, err := e.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, x)
		if e.accept(")") {
			return args, nil
		}
		if err = e.expect(","); err != nil {
			return nil, err
		}
	}
}

// parsePath reads name(.name|.number|[expr])*.
func (e *exprParser) parsePath() (ast.Path, error) {
	t := e.nextTok()
	if t.kind != tIdent {
		return nil, e.p.errorf(t.off, "expected a variable name, got %s", describe(t))
	}
	var path ast.Path = &ast.NameSeg{Loc: e.pos(t), Name: t.text}
	for {
		switch {
		case e.accept("."):
			seg := e.nextTok()
			var child ast.Path
			switch seg.kind {
			case tIdent:
				child = &ast.NameSeg{Loc: e.pos(seg), Name: seg.text}
			case tNumber:
				child = &ast.NumberSeg{Loc: e.pos(seg), Text: seg.text}
			default:
				return nil, e.p.errorf(seg.off, "expected a name or number after '.', got %s", describe(seg))
			}
			path = &ast.DescendSeg{Loc: path.Pos(), Parent: path, Child: child}
		case e.accept("["):
			idx, err := e.parseExpr()
			if err != nil {
				return nil, err
			}
			if err = e.expect("]"); err != nil {
				return nil, err
			}
			path = &ast.ExpandSeg{Loc: path.Pos(), Parent: path, Index: idx}
		default:
			return path, nil
		}
	}
}
