package path

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// DefaultIndexer is the method name treated as an element accessor,
// so that o.Items.At(1) reads like o.Items[1].
const DefaultIndexer = "At"

type parseOptions struct {
	root    string
	vars    map[string]any
	indexer string
}

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

// WithRoot pins the name of the root parameter of a bare expression.
func WithRoot(name string) ParseOption {
	return func(o *parseOptions) { o.root = name }
}

// WithVars supplies captured variables usable inside index expressions.
// Values must be integers; they are read once, while parsing.
func WithVars(vars map[string]any) ParseOption {
	return func(o *parseOptions) {
		if o.vars == nil {
			o.vars = make(map[string]any, len(vars))
		}
		for k, v := range vars {
			o.vars[k] = v
		}
	}
}

// WithIndexer changes the method name accepted as an element accessor.
func WithIndexer(method string) ParseOption {
	return func(o *parseOptions) { o.indexer = method }
}

// Parse converts an accessor expression into a Path.
//
// Accepted forms are a function literal with one parameter whose body is a
// single return statement, e.g. func(o *A) string { return o.B.Items[1].Value },
// and a bare chain such as o.B.Items[1].Value whose innermost identifier is
// the root.
func Parse(expr string, opts ...ParseOption) (Path, error) {
	o := parseOptions{indexer: DefaultIndexer}
	for _, opt := range opts {
		opt(&o)
	}

	node, err := parser.ParseExpr(expr)
	if err != nil {
		return Path{}, opticserr.PathNotSupported("syntax error", expr).WithCause(err)
	}

	body := node
	if lit, ok := node.(*ast.FuncLit); ok {
		root, ret, perr := unwrapFuncLit(lit, expr)
		if perr != nil {
			return Path{}, perr
		}
		if o.root != "" && o.root != root {
			return Path{}, opticserr.PathNotSupported(fmt.Sprintf("parameter %q is not the root %q", root, o.root), expr)
		}
		o.root = root
		body = ret
	}

	w := walker{opts: o, expr: expr}
	if w.opts.root == "" {
		w.opts.root = innermostIdent(body)
	}
	if err := w.walk(body); err != nil {
		return Path{}, err
	}
	if len(w.steps) == 0 {
		return Path{}, opticserr.PathNotSupported("expression does not access any property", expr)
	}
	p := New(w.steps...)
	p.expr = expr
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string, opts ...ParseOption) Path {
	return opticserr.Must(Parse(expr, opts...))
}

func unwrapFuncLit(lit *ast.FuncLit, expr string) (string, ast.Expr, error) {
	params := lit.Type.Params.List
	if len(params) != 1 || len(params[0].Names) != 1 {
		return "", nil, opticserr.PathNotSupported("function literal must take exactly one parameter", expr)
	}
	if lit.Type.Results == nil || lit.Type.Results.NumFields() != 1 {
		return "", nil, opticserr.PathNotSupported("function literal must return exactly one value", expr)
	}
	stmts := lit.Body.List
	if len(stmts) != 1 {
		for _, s := range stmts {
			switch s.(type) {
			case *ast.IfStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
				return "", nil, opticserr.PathNotSupported("conditional branch", expr)
			}
		}
		return "", nil, opticserr.PathNotSupported("function body must be a single return statement", expr)
	}
	ret, ok := stmts[0].(*ast.ReturnStmt)
	if !ok {
		if _, cond := stmts[0].(*ast.IfStmt); cond {
			return "", nil, opticserr.PathNotSupported("conditional branch", expr)
		}
		return "", nil, opticserr.PathNotSupported(fmt.Sprintf("statement %T", stmts[0]), expr)
	}
	if len(ret.Results) != 1 {
		return "", nil, opticserr.PathNotSupported("return must yield exactly one value", expr)
	}
	return params[0].Names[0].Name, ret.Results[0], nil
}

func innermostIdent(e ast.Expr) string {
	for {
		switch n := e.(type) {
		case *ast.Ident:
			return n.Name
		case *ast.SelectorExpr:
			e = n.X
		case *ast.IndexExpr:
			e = n.X
		case *ast.ParenExpr:
			e = n.X
		case *ast.CallExpr:
			sel, ok := n.Fun.(*ast.SelectorExpr)
			if !ok {
				return ""
			}
			e = sel.X
		default:
			return ""
		}
	}
}

type walker struct {
	opts  parseOptions
	expr  string
	steps []Step
}

func (w *walker) walk(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return w.walk(n.X)

	case *ast.Ident:
		if n.Name != w.opts.root {
			return w.reject(fmt.Sprintf("identifier %q is not the root parameter", n.Name))
		}
		return nil

	case *ast.SelectorExpr:
		if err := w.walk(n.X); err != nil {
			return err
		}
		w.steps = append(w.steps, Member(n.Sel.Name))
		return nil

	case *ast.IndexExpr:
		return w.index(n.X, n.Index)

	case *ast.CallExpr:
		sel, ok := n.Fun.(*ast.SelectorExpr)
		if !ok {
			return w.reject("call or conversion " + w.text(n.Fun))
		}
		if sel.Sel.Name != w.opts.indexer {
			return w.reject("method call " + sel.Sel.Name)
		}
		if len(n.Args) != 1 || n.Ellipsis.IsValid() {
			return w.reject(fmt.Sprintf("indexer %s with %d arguments", sel.Sel.Name, len(n.Args)))
		}
		return w.index(sel.X, n.Args[0])

	case *ast.IndexListExpr:
		return w.reject(fmt.Sprintf("multi-argument index with %d arguments", len(n.Indices)))
	case *ast.TypeAssertExpr:
		return w.reject("type assertion")
	case *ast.StarExpr:
		return w.reject("pointer dereference")
	case *ast.SliceExpr:
		return w.reject("slice expression")
	case *ast.UnaryExpr:
		return w.reject("unary operator " + n.Op.String())
	case *ast.BinaryExpr:
		return w.reject("binary operator " + n.Op.String())
	case *ast.FuncLit:
		return w.reject("nested function literal")
	case *ast.CompositeLit:
		return w.reject("composite literal")
	case *ast.BasicLit:
		return w.reject("literal " + n.Value)
	default:
		return w.reject(fmt.Sprintf("expression %T", e))
	}
}

func (w *walker) index(x, idx ast.Expr) error {
	if err := w.walk(x); err != nil {
		return err
	}
	if len(w.steps) == 0 {
		return w.reject("index applied to the root")
	}
	i, err := evalIndex(idx, w.opts.root, w.opts.vars)
	if err != nil {
		return w.reject(err.Error())
	}
	w.steps = append(w.steps, Index(i))
	return nil
}

func (w *walker) reject(construct string) error {
	return opticserr.PathNotSupported(construct, w.expr)
}

func (w *walker) text(e ast.Expr) string {
	return types.ExprString(e)
}
