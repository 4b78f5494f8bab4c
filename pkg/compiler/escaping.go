package compiler

import (
	"github.com/CTAG07/Quicksilver/pkg/ast"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/CTAG07/Quicksilver/pkg/invariant"
)

// escapingEvaluator decides whether the value of an expression is exempt
// from default output escaping.
//
// The boolean analysis marks an expression exempt when it calls an escaping
// function, or when one of the operands of a concatenation, a logical
// operator or a function call is exempt. Literals and variables are never
// exempt on their own.
//
// With propagation on, each expression also gets an escape state: the state
// stored on a variable's node, constant for literals and numeric or boolean
// results, the function's own mode for escaping functions, and the Combine
// of the operand states otherwise. The value is then exempt when that state
// is not none or the boolean analysis holds.
//
// An evaluator handles one expression tree bottom-up and is not reentrant.
type escapingEvaluator struct {
	sess      *session
	propagate bool

	exempt Code // BOOLEAN
	mode   Code // escape.Mode, only with propagate
}

func newEscapingEvaluator(s *session) *escapingEvaluator {
	return &escapingEvaluator{sess: s, propagate: s.opts.PropagateEscapeStatus}
}

// decide returns the exemption predicate for e, folded to a *BoolLit when it
// is known at compile time.
func (ev *escapingEvaluator) decide(e ast.Expr) (Code, error) {
	if err := ev.visit(e); err != nil {
		return nil, err
	}
	if !ev.propagate {
		return ev.exempt, nil
	}
	return orCodes(modeEscaped(ev.mode), ev.exempt), nil
}

// escapeState returns the escape state of e. Only valid with propagation on.
func (ev *escapingEvaluator) escapeState(e ast.Expr) (Code, error) {
	invariant.Precondition(ev.propagate, "escape state requested without propagation")
	if err := ev.visit(e); err != nil {
		return nil, err
	}
	return ev.mode, nil
}

func (ev *escapingEvaluator) visit(e ast.Expr) error {
	ev.exempt, ev.mode = nil, nil
	if err := e.Accept(ev); err != nil {
		return err
	}
	invariant.Invariant(ev.exempt != nil, "escaping analysis of %s ended without a decision", ast.FormatExpr(e))
	invariant.Invariant(!ev.propagate || ev.mode != nil, "escaping analysis of %s ended without an escape state", ast.FormatExpr(e))
	return nil
}

// sub analyzes an operand and returns its results.
func (ev *escapingEvaluator) sub(e ast.Expr) (exempt, mode Code, err error) {
	if err = ev.visit(e); err != nil {
		return nil, nil, err
	}
	return ev.exempt, ev.mode, nil
}

func (ev *escapingEvaluator) set(exempt Code, mode func() Code) {
	ev.exempt = exempt
	if ev.propagate {
		ev.mode = mode()
	}
}

func constantMode() Code { return &ModeLit{Mode: escape.ModeConstant} }

var (
	exemptNo  = &BoolLit{Value: false}
	exemptYes = &BoolLit{Value: true}
)

func (ev *escapingEvaluator) VisitVarRef(n *ast.VarRef) error {
	ev.exempt = exemptNo
	if ev.propagate {
		x, err := ev.sess.translatePath(n.Path)
		if err != nil {
			return err
		}
		ev.mode = &VarMode{Name: x.Code}
	}
	return nil
}

func (ev *escapingEvaluator) VisitStringLit(*ast.StringLit) error {
	ev.set(exemptNo, constantMode)
	return nil
}

func (ev *escapingEvaluator) VisitDecimalLit(*ast.DecimalLit) error {
	ev.set(exemptNo, constantMode)
	return nil
}

func (ev *escapingEvaluator) VisitHexLit(*ast.HexLit) error {
	ev.set(exemptNo, constantMode)
	return nil
}

func (ev *escapingEvaluator) VisitUnary(*ast.Unary) error {
	ev.set(exemptNo, constantMode)
	return nil
}

func (ev *escapingEvaluator) VisitExists(*ast.Exists) error {
	ev.set(exemptNo, constantMode)
	return nil
}

func (ev *escapingEvaluator) VisitBinary(n *ast.Binary) error {
	switch n.Op {
	case ast.Add, ast.And, ast.Or:
	default:
		ev.set(exemptNo, constantMode)
		return nil
	}
	xe, xm, err := ev.sub(n.X)
	if err != nil {
		return err
	}
	ye, ym, err := ev.sub(n.Y)
	if err != nil {
		return err
	}
	ev.set(orCodes(xe, ye), func() Code {
		if n.Op == ast.Add {
			return combineCodes(xm, ym)
		}
		return constantMode()
	})
	return nil
}

func (ev *escapingEvaluator) VisitFuncCall(n *ast.FuncCall) error {
	name, err := functionName(n.Name)
	if err != nil {
		return err
	}
	exempts := []Code{&IsEscapingFunc{Name: name}}
	var modes []Code
	for _, a := range n.Args {
		e, m, err := ev.sub(a)
		if err != nil {
			return err
		}
		exempts = append(exempts, e)
		modes = append(modes, m)
	}
	ev.set(orCodes(exempts...), func() Code {
		return &FuncMode{Name: name, Args: modes}
	})
	return nil
}

// orCodes builds the disjunction of boolean codes, folding constants.
func orCodes(codes ...Code) Code {
	var dynamic []Code
	for _, c := range codes {
		if b, ok := c.(*BoolLit); ok {
			if b.Value {
				return exemptYes
			}
			continue
		}
		dynamic = append(dynamic, c)
	}
	if len(dynamic) == 0 {
		return exemptNo
	}
	out := dynamic[0]
	for _, c := range dynamic[1:] {
		out = &Logical{Op: ast.Or, X: out, Y: c}
	}
	return out
}

// combineCodes combines escape states, folding constant ones.
func combineCodes(a, b Code) Code {
	la, aok := a.(*ModeLit)
	lb, bok := b.(*ModeLit)
	if aok && bok {
		return &ModeLit{Mode: escape.Combine(la.Mode, lb.Mode)}
	}
	if aok && la.Mode == escape.ModeNone {
		return a
	}
	if bok && lb.Mode == escape.ModeNone {
		return b
	}
	if aok && la.Mode == escape.ModeConstant {
		return b
	}
	if bok && lb.Mode == escape.ModeConstant {
		return a
	}
	return &CombineModes{Parts: []Code{a, b}}
}

// modeEscaped tests an escape state, folding constant ones.
func modeEscaped(m Code) Code {
	if lit, ok := m.(*ModeLit); ok {
		return &BoolLit{Value: lit.Mode.IsEscaped()}
	}
	return &ModeEscaped{Mode: m}
}
