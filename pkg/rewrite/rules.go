package rewrite

import "github.com/gnana997/cjs2esm/pkg/ast"

// Rule names, in evaluation order.
const (
	RuleDefaultExport      = "default-export"
	RuleNamedExport        = "named-export"
	RuleRequireAssignment  = "require-assignment"
	RuleRequireDeclaration = "require-declaration"
)

// RuleInfo describes a rewrite rule for listings.
type RuleInfo struct {
	Name        string
	Pattern     string
	Replacement string
}

// synthesize builds the replacement declaration for a matched statement.
// It must not modify the statement.
type synthesize func() (ast.ModuleDecl, error)

type rule struct {
	info  RuleInfo
	match func(stmt *ast.Stmt) (synthesize, bool)
}

// rules is evaluated top to bottom and the first match wins. Rule 1 must
// precede rule 3 so that "module.exports = require(...)" becomes a default
// export rather than an import.
var rules = []rule{
	{
		info: RuleInfo{
			Name:        RuleDefaultExport,
			Pattern:     "module.exports = <expr>",
			Replacement: "export default <expr>",
		},
		match: matchDefaultExport,
	},
	{
		info: RuleInfo{
			Name:        RuleNamedExport,
			Pattern:     "exports.<name> = <expr>",
			Replacement: "export function/class <name>, export { <name> as <ident> } or export const <name> = <expr>",
		},
		match: matchNamedExport,
	},
	{
		info: RuleInfo{
			Name:        RuleRequireAssignment,
			Pattern:     "<pattern> = require(\"<source>\")",
			Replacement: "import <specifiers> from \"<source>\"",
		},
		match: matchRequireAssignment,
	},
	{
		info: RuleInfo{
			Name:        RuleRequireDeclaration,
			Pattern:     "var|let|const <pattern> = require(\"<source>\")",
			Replacement: "import <specifiers> from \"<source>\"",
		},
		match: matchRequireDeclaration,
	},
}

// Rules returns the rewrite rules in evaluation order.
func Rules() []RuleInfo {
	infos := make([]RuleInfo, len(rules))
	for i, r := range rules {
		infos[i] = r.info
	}
	return infos
}

// plainAssignment returns the assignment of an expression statement whose
// operator is "=".
func plainAssignment(stmt *ast.Stmt) (*ast.EAssign, bool) {
	s, ok := stmt.Data.(*ast.SExpr)
	if !ok {
		return nil, false
	}
	assign, ok := s.Value.Data.(*ast.EAssign)
	if !ok || assign.Op != "=" {
		return nil, false
	}
	return assign, true
}

func matchDefaultExport(stmt *ast.Stmt) (synthesize, bool) {
	assign, ok := plainAssignment(stmt)
	if !ok || !IsModuleExports(assign.Target) {
		return nil, false
	}
	return func() (ast.ModuleDecl, error) {
		return ast.ModuleDecl{
			Loc:  stmt.Loc,
			Data: &ast.DExportDefaultExpr{Value: assign.Value},
		}, nil
	}, true
}

func matchNamedExport(stmt *ast.Stmt) (synthesize, bool) {
	assign, ok := plainAssignment(stmt)
	if !ok {
		return nil, false
	}
	name, ok := ExportsMember(assign.Target)
	if !ok {
		return nil, false
	}
	return func() (ast.ModuleDecl, error) {
		if IsReservedWord(name) {
			return ast.ModuleDecl{}, unsupported("export name %q is a reserved word", name)
		}

		var data ast.D
		switch value := assign.Value.Data.(type) {
		case *ast.EFunction:
			fn := value.Fn
			fn.Name = nil
			data = &ast.DExportDecl{Decl: &ast.DeclFunction{
				Name: ast.LocName{Loc: assign.Target.Loc, Name: name},
				Fn:   fn,
			}}
		case *ast.EClass:
			class := value.Class
			class.Name = nil
			data = &ast.DExportDecl{Decl: &ast.DeclClass{
				Name:  ast.LocName{Loc: assign.Target.Loc, Name: name},
				Class: class,
			}}
		case *ast.EIdentifier:
			data = &ast.DExportNamed{Specifiers: []ast.ExportSpecifier{exportSpecifier(name, value)}}
		default:
			data = &ast.DExportDecl{Decl: &ast.DeclVar{
				Kind:  ast.LocalConst,
				Name:  ast.LocName{Loc: assign.Target.Loc, Name: name},
				Value: assign.Value,
			}}
		}
		return ast.ModuleDecl{Loc: stmt.Loc, Data: data}, nil
	}, true
}

func matchRequireAssignment(stmt *ast.Stmt) (synthesize, bool) {
	assign, ok := plainAssignment(stmt)
	if !ok {
		return nil, false
	}
	call, ok := requireCall(assign.Value)
	if !ok {
		return nil, false
	}
	return func() (ast.ModuleDecl, error) {
		return importDecl(stmt.Loc, assign.Target, call)
	}, true
}

func matchRequireDeclaration(stmt *ast.Stmt) (synthesize, bool) {
	local, ok := stmt.Data.(*ast.SLocal)
	if !ok || len(local.Decls) == 0 {
		return nil, false
	}
	first := local.Decls[0]
	if first.Value == nil {
		return nil, false
	}
	call, ok := requireCall(*first.Value)
	if !ok {
		return nil, false
	}
	return func() (ast.ModuleDecl, error) {
		if len(local.Decls) > 1 {
			return ast.ModuleDecl{}, unsupported("%s declaration with %d declarators", local.Kind, len(local.Decls))
		}
		return importDecl(stmt.Loc, first.Binding, call)
	}, true
}

func importDecl(loc ast.Loc, binding ast.Binding, call *ast.ECall) (ast.ModuleDecl, error) {
	source, err := RequireSource(call)
	if err != nil {
		return ast.ModuleDecl{}, err
	}
	specifiers, err := importSpecifiers(binding)
	if err != nil {
		return ast.ModuleDecl{}, err
	}
	return ast.ModuleDecl{
		Loc:  loc,
		Data: &ast.DImport{Specifiers: specifiers, Source: source},
	}, nil
}
