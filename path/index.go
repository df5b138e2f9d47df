package path

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"math"
	"reflect"
)

// evalIndex resolves an index expression to a non-negative int. The
// expression may combine integer literals, captured variables and constant
// operators; it must not mention the root parameter.
func evalIndex(e ast.Expr, root string, vars map[string]any) (int, error) {
	if root != "" && refersTo(e, root) {
		return 0, fmt.Errorf("index %s depends on the root parameter", types.ExprString(e))
	}
	v, err := evalConst(e, vars)
	if err != nil {
		return 0, err
	}
	v = constant.ToInt(v)
	if v.Kind() != constant.Int {
		return 0, fmt.Errorf("index %s is not an integer", types.ExprString(e))
	}
	i, exact := constant.Int64Val(v)
	if !exact || i > math.MaxInt32 {
		return 0, fmt.Errorf("index %s overflows int", v.ExactString())
	}
	if i < 0 {
		return 0, fmt.Errorf("negative index %d", i)
	}
	return int(i), nil
}

func refersTo(e ast.Expr, name string) bool {
	found := false
	ast.Inspect(e, func(n ast.Node) bool {
		if found {
			return false
		}
		switch x := n.(type) {
		case *ast.SelectorExpr:
			// only the operand can name a variable
			ast.Inspect(x.X, func(m ast.Node) bool {
				if id, ok := m.(*ast.Ident); ok && id.Name == name {
					found = true
				}
				return !found
			})
			return false
		case *ast.Ident:
			if x.Name == name {
				found = true
			}
		}
		return !found
	})
	return found
}

func evalConst(e ast.Expr, vars map[string]any) (constant.Value, error) {
	switch n := e.(type) {
	case *ast.BasicLit:
		switch n.Kind {
		case token.INT, token.CHAR, token.FLOAT:
			v := constant.MakeFromLiteral(n.Value, n.Kind, 0)
			if v.Kind() == constant.Unknown {
				return nil, fmt.Errorf("malformed literal %s", n.Value)
			}
			return v, nil
		default:
			return nil, fmt.Errorf("%s literal used as index", n.Kind)
		}

	case *ast.Ident:
		raw, ok := vars[n.Name]
		if !ok {
			return nil, fmt.Errorf("unresolved identifier %q in index", n.Name)
		}
		return intConstant(n.Name, raw)

	case *ast.ParenExpr:
		return evalConst(n.X, vars)

	case *ast.UnaryExpr:
		x, err := evalConst(n.X, vars)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD, token.SUB:
			return constant.UnaryOp(n.Op, x, 0), nil
		case token.XOR:
			if x = constant.ToInt(x); x.Kind() != constant.Int {
				return nil, fmt.Errorf("^ applied to non-integer index operand")
			}
			return constant.UnaryOp(n.Op, x, 0), nil
		default:
			return nil, fmt.Errorf("operator %s in index", n.Op)
		}

	case *ast.BinaryExpr:
		x, err := evalConst(n.X, vars)
		if err != nil {
			return nil, err
		}
		y, err := evalConst(n.Y, vars)
		if err != nil {
			return nil, err
		}
		return binaryOp(n.Op, x, y)

	case *ast.CallExpr:
		return nil, fmt.Errorf("call %s in index", types.ExprString(n.Fun))
	default:
		return nil, fmt.Errorf("index expression %s", types.ExprString(e))
	}
}

func binaryOp(op token.Token, x, y constant.Value) (constant.Value, error) {
	switch op {
	case token.ADD, token.SUB, token.MUL:
		return constant.BinaryOp(x, op, y), nil
	case token.AND, token.OR, token.XOR, token.AND_NOT:
		x, y = constant.ToInt(x), constant.ToInt(y)
		if x.Kind() != constant.Int || y.Kind() != constant.Int {
			return nil, fmt.Errorf("%s applied to non-integer index operands", op)
		}
		return constant.BinaryOp(x, op, y), nil
	case token.QUO, token.REM:
		if constant.Sign(y) == 0 {
			return nil, fmt.Errorf("division by zero in index")
		}
		if op == token.QUO && x.Kind() == constant.Int && y.Kind() == constant.Int {
			op = token.QUO_ASSIGN
		}
		if op == token.REM && (x.Kind() != constant.Int || y.Kind() != constant.Int) {
			return nil, fmt.Errorf("%% applied to non-integer index operands")
		}
		return constant.BinaryOp(x, op, y), nil
	case token.SHL, token.SHR:
		x, y = constant.ToInt(x), constant.ToInt(y)
		if x.Kind() != constant.Int || y.Kind() != constant.Int {
			return nil, fmt.Errorf("%s applied to non-integer index operands", op)
		}
		s, ok := constant.Uint64Val(y)
		if !ok || s > 62 {
			return nil, fmt.Errorf("invalid shift count %s", y.ExactString())
		}
		return constant.Shift(x, op, uint(s)), nil
	default:
		return nil, fmt.Errorf("operator %s in index", op)
	}
}

func intConstant(name string, raw any) (constant.Value, error) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return constant.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return constant.MakeUint64(rv.Uint()), nil
	default:
		return nil, fmt.Errorf("variable %q is %T, not an integer", name, raw)
	}
}
