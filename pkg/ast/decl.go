package ast

// ModuleDecl is native import/export syntax.
type ModuleDecl struct {
	Loc  Loc
	Data D
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type D interface{ isModuleDecl() }

// import foo from "path"
// import { a, b as c, "d-e" as f } from "path"
type DImport struct {
	Specifiers []ImportSpecifier
	Source     EString
}

// export default <expr>
type DExportDefaultExpr struct {
	Value Expr
}

// export function f() {}
// export class C {}
// export const x = 1
type DExportDecl struct {
	Decl ExportedDecl
}

// export { a, b as c }
type DExportNamed struct {
	Specifiers []ExportSpecifier
}

// DRaw is an import/export declaration that was already native in the
// source. It is never rewritten.
type DRaw struct {
	Text string
}

func (*DImport) isModuleDecl()            {}
func (*DExportDefaultExpr) isModuleDecl() {}
func (*DExportDecl) isModuleDecl()        {}
func (*DExportNamed) isModuleDecl()       {}
func (*DRaw) isModuleDecl()               {}

// ExportedDecl is the declaration carried by DExportDecl.
type ExportedDecl interface{ isExportedDecl() }

type DeclFunction struct {
	Name LocName
	Fn   Fn
}

type DeclClass struct {
	Name  LocName
	Class Class
}

type DeclVar struct {
	Kind  LocalKind
	Name  LocName
	Value Expr
}

func (*DeclFunction) isExportedDecl() {}
func (*DeclClass) isExportedDecl()    {}
func (*DeclVar) isExportedDecl()      {}

// Name is a module export name. Quoted names ("a-b") print differently from
// identifier names, so the written form is kept.
type Name struct {
	Text     string
	IsString bool

	// Raw is the quoted form as written when IsString is set.
	Raw string
}

func IdentName(text string) Name {
	return Name{Text: text}
}

type ImportSpecifierKind uint8

const (
	ImportDefault ImportSpecifierKind = iota
	ImportNamed
)

// ImportSpecifier binds one imported name. Imported is nil for default
// imports.
type ImportSpecifier struct {
	Kind     ImportSpecifierKind
	Imported *Name
	Local    Name
}

// ExportSpecifier is one entry of an export clause. Exported is nil when the
// export is not renamed.
type ExportSpecifier struct {
	Orig     Name
	Exported *Name
}
