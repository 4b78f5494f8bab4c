package compiler

import "fmt"

// CastError reports an illegal cast.
type CastError struct {
	From, To Type
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %s to %s", e.From, e.To)
}

// Cast converts e to dest. Casting to the expression's own type returns e
// unchanged. DATA_CONTEXT and MACRO are never valid destinations.
func Cast(e Expr, dest Type) (Expr, error) {
	if e.Type == dest {
		return e, nil
	}
	rule := castRule(dest)
	if rule == nil {
		return Expr{}, &CastError{From: e.Type, To: dest}
	}
	return rule(e)
}

func castRule(dest Type) func(Expr) (Expr, error) {
	switch dest {
	case TypeString:
		return toStringRule
	case TypeInt:
		return toIntRule
	case TypeBool:
		return toBoolRule
	case TypeValue:
		return toValueRule
	case TypeData:
		return toDataRule
	case TypeVarName:
		return toVarNameRule
	}
	return nil
}

// resolveName looks a VAR_NAME up without creating it.
func resolveName(e Expr) Code {
	return &Resolve{Name: e.Code}
}

func convertTo(e Expr, dest Type) (Expr, error) {
	switch e.Type {
	case TypeString, TypeInt, TypeBool, TypeValue, TypeData:
		return Expr{Type: dest, Code: &Convert{X: e.Code, From: e.Type, To: dest}}, nil
	case TypeVarName:
		return Expr{Type: dest, Code: &Convert{X: resolveName(e), From: TypeData, To: dest}}, nil
	}
	return Expr{}, &CastError{From: e.Type, To: dest}
}

func toStringRule(e Expr) (Expr, error) { return convertTo(e, TypeString) }
func toIntRule(e Expr) (Expr, error)    { return convertTo(e, TypeInt) }
func toBoolRule(e Expr) (Expr, error)   { return convertTo(e, TypeBool) }

// toValueRule wraps a VAR_NAME as a live reference instead of resolving it.
func toValueRule(e Expr) (Expr, error) {
	if e.Type == TypeVarName {
		return valueExpr(&VarRef{Name: e.Code}), nil
	}
	return convertTo(e, TypeValue)
}

// toDataRule resolves a name, given as VAR_NAME or STRING, to its node.
func toDataRule(e Expr) (Expr, error) {
	switch e.Type {
	case TypeVarName, TypeString:
		return Expr{Type: TypeData, Code: resolveName(e)}, nil
	}
	return Expr{}, &CastError{From: e.Type, To: TypeData}
}

// toVarNameRule reinterprets a string as a variable name.
func toVarNameRule(e Expr) (Expr, error) {
	switch e.Type {
	case TypeString:
		return varNameExpr(e.Code), nil
	case TypeInt, TypeBool, TypeValue:
		s, err := toStringRule(e)
		if err != nil {
			return Expr{}, err
		}
		return varNameExpr(s.Code), nil
	}
	return Expr{}, &CastError{From: e.Type, To: TypeVarName}
}
