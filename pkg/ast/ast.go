// Package ast defines the owned, mutable JavaScript module tree that the
// rewrite engine operates on.
//
// Only the node shapes the CommonJS rewrite needs to inspect are modeled in
// detail. Everything else is carried as raw source text (SRaw, ERaw, BRaw,
// DRaw) and printed back verbatim.
package ast

// Loc is the source position of a node. Byte offsets are 0-based and lines
// are 1-based. A zero Loc means the node was synthesized.
type Loc struct {
	Start   uint32
	End     uint32
	Line    uint32
	EndLine uint32
}

// Module is the ordered sequence of top-level items of one source file.
type Module struct {
	Items []Item

	// Shebang is the leading "#!" line, if any. It is not an item.
	Shebang string
}

// Item is one top-level element of a module. Exactly one of Stmt and Decl
// is set.
type Item struct {
	Loc  Loc
	Stmt *Stmt
	Decl *ModuleDecl
}

func (item *Item) IsStmt() bool { return item.Stmt != nil }
func (item *Item) IsDecl() bool { return item.Decl != nil }

// StmtItem wraps a statement as a top-level item.
func StmtItem(stmt Stmt) Item {
	return Item{Loc: stmt.Loc, Stmt: &stmt}
}

// DeclItem wraps a module declaration as a top-level item.
func DeclItem(decl ModuleDecl) Item {
	return Item{Loc: decl.Loc, Decl: &decl}
}

type Stmt struct {
	Loc  Loc
	Data S
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type S interface{ isStmt() }

type SExpr struct {
	Value Expr
}

type LocalKind uint8

const (
	LocalVar LocalKind = iota
	LocalLet
	LocalConst
)

func (kind LocalKind) String() string {
	switch kind {
	case LocalLet:
		return "let"
	case LocalConst:
		return "const"
	default:
		return "var"
	}
}

type SLocal struct {
	Kind  LocalKind
	Decls []Decl
}

type Decl struct {
	Binding Binding
	Value   *Expr
}

// SRaw is any statement the engine never inspects.
type SRaw struct {
	Text string
}

// SComment is a top-level comment. It is kept as its own item so that
// comments stay in place when the statements around them are replaced.
type SComment struct {
	Text string
}

func (*SExpr) isStmt()    {}
func (*SLocal) isStmt()   {}
func (*SRaw) isStmt()     {}
func (*SComment) isStmt() {}

type Expr struct {
	Loc  Loc
	Data E
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type E interface{ isExpr() }

type EIdentifier struct {
	Name string
}

// EDot is a non-computed member access such as "module.exports".
type EDot struct {
	Target   Expr
	Name     string
	Optional bool
}

// EIndex is a computed member access such as "exports['foo']".
type EIndex struct {
	Target Expr
	Index  Expr
}

type EString struct {
	// Value is the cooked string contents.
	Value string

	// Raw is the literal exactly as written, quotes included. It is empty for
	// synthesized strings.
	Raw string
}

type ECall struct {
	Target Expr
	Args   []Expr
}

type ESpread struct {
	Value Expr
}

// EAssign covers both plain "=" and compound assignment operators.
type EAssign struct {
	Op     string
	Target Binding
	Value  Expr
}

type EFunction struct {
	Fn Fn
}

type EClass struct {
	Class Class
}

// ERaw is any expression the engine never inspects.
type ERaw struct {
	Text string
}

func (*EIdentifier) isExpr() {}
func (*EDot) isExpr()        {}
func (*EIndex) isExpr()      {}
func (*EString) isExpr()     {}
func (*ECall) isExpr()       {}
func (*ESpread) isExpr()     {}
func (*EAssign) isExpr()     {}
func (*EFunction) isExpr()   {}
func (*EClass) isExpr()      {}
func (*ERaw) isExpr()        {}

// Fn keeps the signature and body as source text. Name is nil for
// anonymous functions.
type Fn struct {
	Name *LocName

	// Signature runs from the type parameters or parameter list through the
	// return type annotation, for example "<T>(a: T): T".
	Signature string

	Body        string
	IsAsync     bool
	IsGenerator bool
}

type Class struct {
	Name *LocName

	// Heritage is the source text between the name and the body, for example
	// "extends Base" or "<T> extends Base<T> implements Named".
	Heritage string

	Body string
}

type LocName struct {
	Loc  Loc
	Name string
}

type Binding struct {
	Loc  Loc
	Data B
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type B interface{ isBinding() }

type BIdentifier struct {
	Name string
}

type BObject struct {
	Properties []PropertyBinding
}

type BArray struct {
	Text string
}

// BExpr is an expression in assignment-target position, for example the
// "exports.foo" in "exports.foo = 1".
type BExpr struct {
	Value Expr
}

// BRaw is a pattern the engine does not model, such as "a = 1" inside a
// parameter list.
type BRaw struct {
	Text string
}

func (*BIdentifier) isBinding() {}
func (*BObject) isBinding()     {}
func (*BArray) isBinding()      {}
func (*BExpr) isBinding()       {}
func (*BRaw) isBinding()        {}

// PropertyBinding is one entry of an object pattern.
//
//	{ a }        Key=a, Value=nil
//	{ a: b }     Key=a, Value=b
//	{ "a": b }   Key="a" (IsString), Value=b
//	{ a = 1 }    Key=a, Default=1
//	{ ...rest }  IsRest, Value=rest
type PropertyBinding struct {
	Loc        Loc
	Key        Name
	Value      *Binding
	Default    *Expr
	IsRest     bool
	IsComputed bool

	// IsNumeric marks numeric keys such as "{ 0: a }".
	IsNumeric bool
}

// IsShorthand reports whether the property is written without "key: value".
func (p *PropertyBinding) IsShorthand() bool {
	return p.Value == nil && !p.IsRest
}
