// Package buildutil provides utilities for extracting typed attributes from
// buildtools AST nodes.
//
// Unlike a lenient extractor, every accessor distinguishes "absent" from
// "present but the wrong shape", so config loaders can report exactly which
// field was malformed.
package buildutil

import (
	"fmt"
	"strconv"

	"github.com/bazelbuild/buildtools/build"
)

// ShapeError reports an attribute whose value has the wrong type.
type ShapeError struct {
	Attr string
	Want string
	Got  build.Expr
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("attribute %q: want %s, got %s", e.Attr, e.Want, describe(e.Got))
}

// Lookup returns the value expression of a named argument.
func Lookup(call *build.CallExpr, name string) (build.Expr, bool) {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		lhs, ok := assign.LHS.(*build.Ident)
		if !ok || lhs.Name != name {
			continue
		}
		return assign.RHS, true
	}
	return nil, false
}

// Names returns the names of all keyword arguments in declaration order.
func Names(call *build.CallExpr) []string {
	var names []string
	for _, arg := range call.List {
		if assign, ok := arg.(*build.AssignExpr); ok {
			if lhs, ok := assign.LHS.(*build.Ident); ok {
				names = append(names, lhs.Name)
			}
		}
	}
	return names
}

// String extracts a string attribute.
func String(call *build.CallExpr, name string) (string, bool, error) {
	expr, ok := Lookup(call, name)
	if !ok {
		return "", false, nil
	}
	str, ok := expr.(*build.StringExpr)
	if !ok {
		return "", true, &ShapeError{Attr: name, Want: "string", Got: expr}
	}
	return str.Value, true, nil
}

// Int extracts an integer attribute.
func Int(call *build.CallExpr, name string) (int, bool, error) {
	expr, ok := Lookup(call, name)
	if !ok {
		return 0, false, nil
	}
	// buildtools parses -5 as a UnaryExpr over the literal 5.
	sign := 1
	if u, ok := expr.(*build.UnaryExpr); ok && u.Op == "-" {
		sign = -1
		expr = u.X
	}
	lit, ok := expr.(*build.LiteralExpr)
	if !ok {
		return 0, true, &ShapeError{Attr: name, Want: "integer", Got: expr}
	}
	val, err := strconv.Atoi(lit.Token)
	if err != nil || lit.Token[0] == '-' || lit.Token[0] == '+' {
		return 0, true, &ShapeError{Attr: name, Want: "integer", Got: expr}
	}
	return sign * val, true, nil
}

// Bool extracts a True/False attribute.
func Bool(call *build.CallExpr, name string) (bool, bool, error) {
	expr, ok := Lookup(call, name)
	if !ok {
		return false, false, nil
	}
	if ident, ok := expr.(*build.Ident); ok {
		switch ident.Name {
		case "True":
			return true, true, nil
		case "False":
			return false, true, nil
		}
	}
	return false, true, &ShapeError{Attr: name, Want: "True or False", Got: expr}
}

// StringList extracts a list-of-strings attribute. Every element must be a
// string literal.
func StringList(call *build.CallExpr, name string) ([]string, bool, error) {
	expr, ok := Lookup(call, name)
	if !ok {
		return nil, false, nil
	}
	list, ok := expr.(*build.ListExpr)
	if !ok {
		return nil, true, &ShapeError{Attr: name, Want: "list of strings", Got: expr}
	}
	result := make([]string, 0, len(list.List))
	for _, elem := range list.List {
		str, ok := elem.(*build.StringExpr)
		if !ok {
			return nil, true, &ShapeError{Attr: name, Want: "list of strings", Got: elem}
		}
		result = append(result, str.Value)
	}
	return result, true, nil
}

// List returns the raw elements of a list attribute.
func List(call *build.CallExpr, name string) ([]build.Expr, bool, error) {
	expr, ok := Lookup(call, name)
	if !ok {
		return nil, false, nil
	}
	list, ok := expr.(*build.ListExpr)
	if !ok {
		return nil, true, &ShapeError{Attr: name, Want: "list", Got: expr}
	}
	return list.List, true, nil
}

// PositionalStrings returns all positional string arguments from a call.
// Non-string positional arguments produce a ShapeError.
func PositionalStrings(call *build.CallExpr) ([]string, error) {
	var result []string
	for i, arg := range call.List {
		if _, ok := arg.(*build.AssignExpr); ok {
			continue
		}
		str, ok := arg.(*build.StringExpr)
		if !ok {
			return nil, &ShapeError{Attr: fmt.Sprintf("#%d", i), Want: "string", Got: arg}
		}
		result = append(result, str.Value)
	}
	return result, nil
}

// UnaryCall matches `fn("arg")` and returns the single string argument.
func UnaryCall(expr build.Expr, fn string) (string, bool) {
	call, ok := expr.(*build.CallExpr)
	if !ok || FuncName(call) != fn || len(call.List) != 1 {
		return "", false
	}
	str, ok := call.List[0].(*build.StringExpr)
	if !ok {
		return "", false
	}
	return str.Value, true
}

// FuncName returns the function name from a CallExpr.
// Returns empty string if the call is not a simple function call
// (e.g., method calls like foo.bar()).
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// Line returns the 1-based source line of an expression.
func Line(expr build.Expr) int {
	start, _ := expr.Span()
	return start.Line
}

func describe(expr build.Expr) string {
	switch e := expr.(type) {
	case nil:
		return "nothing"
	case *build.StringExpr:
		return "string"
	case *build.LiteralExpr:
		return "number " + e.Token
	case *build.Ident:
		return "identifier " + e.Name
	case *build.ListExpr:
		return "list"
	case *build.DictExpr:
		return "dict"
	case *build.CallExpr:
		if name := FuncName(e); name != "" {
			return name + "(...) call"
		}
		return "call"
	default:
		return fmt.Sprintf("%T", expr)
	}
}
