package rewrite

import "github.com/gnana997/cjs2esm/pkg/ast"

// IsModuleExports reports whether target is exactly "module.exports".
func IsModuleExports(target ast.Binding) bool {
	dot, ok := memberTarget(target)
	if !ok {
		return false
	}
	obj, ok := dot.Target.Data.(*ast.EIdentifier)
	return ok && obj.Name == "module" && dot.Name == "exports"
}

// ExportsMember returns the property name of an "exports.<name>" target.
func ExportsMember(target ast.Binding) (string, bool) {
	dot, ok := memberTarget(target)
	if !ok {
		return "", false
	}
	obj, ok := dot.Target.Data.(*ast.EIdentifier)
	if !ok || obj.Name != "exports" {
		return "", false
	}
	return dot.Name, true
}

// memberTarget unwraps an expression-as-pattern that is a plain,
// non-optional, non-computed member access.
func memberTarget(target ast.Binding) (*ast.EDot, bool) {
	expr, ok := target.Data.(*ast.BExpr)
	if !ok {
		return nil, false
	}
	dot, ok := expr.Value.Data.(*ast.EDot)
	if !ok || dot.Optional {
		return nil, false
	}
	return dot, true
}

// requireCall returns the call if expr is a call whose callee is the bare
// identifier "require". Arguments are not checked here.
func requireCall(expr ast.Expr) (*ast.ECall, bool) {
	call, ok := expr.Data.(*ast.ECall)
	if !ok {
		return nil, false
	}
	callee, ok := call.Target.Data.(*ast.EIdentifier)
	if !ok || callee.Name != "require" {
		return nil, false
	}
	return call, true
}

// RequireSource returns the module path of a require call. Anything other
// than exactly one non-spread string literal argument is malformed.
func RequireSource(call *ast.ECall) (ast.EString, error) {
	switch len(call.Args) {
	case 0:
		return ast.EString{}, malformed("require() called without arguments")
	case 1:
	default:
		return ast.EString{}, malformed("require() called with %d arguments", len(call.Args))
	}

	switch arg := call.Args[0].Data.(type) {
	case *ast.EString:
		return *arg, nil
	case *ast.ESpread:
		return ast.EString{}, malformed("spread argument")
	default:
		return ast.EString{}, malformed("argument is not a string literal")
	}
}

// reservedWords cannot be used as a declared binding or a local export name.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
}

// IsReservedWord reports whether name cannot be declared as a binding in
// module code.
func IsReservedWord(name string) bool {
	return reservedWords[name]
}
