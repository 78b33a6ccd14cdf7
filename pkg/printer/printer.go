// Package printer serializes an ast.Module back to JavaScript source.
//
// Nodes that carry raw source text are printed verbatim. Only synthesized
// declarations and the modeled statement shapes are formatted here.
package printer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

type Options struct {
	// BlankLines keeps a single empty line between items that were separated
	// by one or more empty lines in the source.
	BlankLines bool

	// Source is the text the module was parsed from. When set, statements
	// that still carry a source range are copied from it verbatim instead of
	// being reformatted.
	Source []byte
}

type printer struct {
	js      []byte
	options Options

	// Offsets in js where an expression statement or the value of an
	// "export default" begins. An expression printed at one of them must
	// not start with a token that would make it a declaration.
	stmtStart          int
	exportDefaultStart int
}

func (p *printer) print(text string) {
	p.js = append(p.js, text...)
}

// Print returns the source text of m, one top-level item per line.
func Print(m *ast.Module, options Options) []byte {
	p := &printer{options: options, stmtStart: -1, exportDefaultStart: -1}
	if m == nil {
		return p.js
	}

	if m.Shebang != "" {
		p.print(m.Shebang)
		p.print("\n")
	}

	var prevEnd uint32
	for i := range m.Items {
		item := &m.Items[i]
		if i > 0 {
			p.printSeparator(item, prevEnd)
		}
		p.printItem(item)
		prevEnd = endLine(item.Loc)
	}

	if len(m.Items) > 0 {
		p.print("\n")
	}
	return p.js
}

func endLine(loc ast.Loc) uint32 {
	if loc.EndLine != 0 {
		return loc.EndLine
	}
	return loc.Line
}

func (p *printer) printSeparator(item *ast.Item, prevEnd uint32) {
	line := item.Loc.Line
	if line == 0 || prevEnd == 0 {
		p.print("\n")
		return
	}

	if line == prevEnd && isComment(item) {
		p.print(" ")
		return
	}

	p.print("\n")
	if p.options.BlankLines && line > prevEnd+1 {
		p.print("\n")
	}
}

func isComment(item *ast.Item) bool {
	if item.Stmt == nil {
		return false
	}
	_, ok := item.Stmt.Data.(*ast.SComment)
	return ok
}

func (p *printer) printItem(item *ast.Item) {
	switch {
	case item.Stmt != nil:
		if text, ok := p.sourceText(item.Stmt.Loc); ok {
			p.print(text)
			return
		}
		p.printStmt(item.Stmt)
	case item.Decl != nil:
		p.printModuleDecl(item.Decl)
	}
}

func (p *printer) sourceText(loc ast.Loc) (string, bool) {
	if p.options.Source == nil || loc.End <= loc.Start || int(loc.End) > len(p.options.Source) {
		return "", false
	}
	return string(p.options.Source[loc.Start:loc.End]), true
}

func (p *printer) printStmt(stmt *ast.Stmt) {
	switch s := stmt.Data.(type) {
	case *ast.SExpr:
		p.stmtStart = len(p.js)
		p.printExpr(s.Value)
		p.print(";")

	case *ast.SLocal:
		p.print(s.Kind.String())
		p.print(" ")
		for i, decl := range s.Decls {
			if i > 0 {
				p.print(", ")
			}
			p.printBinding(decl.Binding)
			if decl.Value != nil {
				p.print(" = ")
				p.printExpr(*decl.Value)
			}
		}
		p.print(";")

	case *ast.SRaw:
		p.print(s.Text)

	case *ast.SComment:
		p.print(s.Text)

	default:
		panic("Internal error: unexpected statement type")
	}
}

func (p *printer) printModuleDecl(decl *ast.ModuleDecl) {
	switch d := decl.Data.(type) {
	case *ast.DImport:
		p.printImport(d)

	case *ast.DExportDefaultExpr:
		p.print("export default ")
		switch d.Value.Data.(type) {
		case *ast.EFunction, *ast.EClass:
			// Printed as a default-exported function or class declaration.
		default:
			p.exportDefaultStart = len(p.js)
		}
		p.printExpr(d.Value)
		p.print(";")

	case *ast.DExportDecl:
		p.print("export ")
		p.printExportedDecl(d.Decl)

	case *ast.DExportNamed:
		p.print("export {")
		for i, spec := range d.Specifiers {
			if i > 0 {
				p.print(",")
			}
			p.print(" ")
			p.printName(spec.Orig)
			if spec.Exported != nil && *spec.Exported != spec.Orig {
				p.print(" as ")
				p.printName(*spec.Exported)
			}
		}
		if len(d.Specifiers) > 0 {
			p.print(" ")
		}
		p.print("};")

	case *ast.DRaw:
		p.print(d.Text)

	default:
		panic("Internal error: unexpected module declaration type")
	}
}

func (p *printer) printImport(d *ast.DImport) {
	p.print("import ")

	var named []ast.ImportSpecifier
	wroteDefault := false
	for _, spec := range d.Specifiers {
		if spec.Kind == ast.ImportDefault && !wroteDefault {
			p.printName(spec.Local)
			wroteDefault = true
			continue
		}
		named = append(named, spec)
	}

	if len(named) > 0 || !wroteDefault {
		if wroteDefault {
			p.print(", ")
		}
		p.print("{")
		for i, spec := range named {
			if i > 0 {
				p.print(",")
			}
			p.print(" ")
			imported := spec.Local
			if spec.Imported != nil {
				imported = *spec.Imported
			}
			p.printName(imported)
			if imported != spec.Local {
				p.print(" as ")
				p.printName(spec.Local)
			}
		}
		if len(named) > 0 {
			p.print(" ")
		}
		p.print("}")
	}

	p.print(" from ")
	p.printString(d.Source)
	p.print(";")
}

func (p *printer) printExportedDecl(decl ast.ExportedDecl) {
	switch d := decl.(type) {
	case *ast.DeclFunction:
		p.printFn(&d.Fn, d.Name.Name)
	case *ast.DeclClass:
		p.printClass(&d.Class, d.Name.Name)
	case *ast.DeclVar:
		p.print(d.Kind.String())
		p.print(" ")
		p.print(d.Name.Name)
		p.print(" = ")
		p.printExpr(d.Value)
		p.print(";")
	default:
		panic("Internal error: unexpected exported declaration type")
	}
}

func (p *printer) printFn(fn *ast.Fn, name string) {
	if fn.IsAsync {
		p.print("async ")
	}
	p.print("function")
	if fn.IsGenerator {
		p.print("*")
	}
	if name != "" {
		p.print(" ")
		p.print(name)
	}
	p.print(fn.Signature)
	p.print(" ")
	p.print(fn.Body)
}

func (p *printer) printClass(class *ast.Class, name string) {
	p.print("class")
	if name != "" {
		p.print(" ")
		p.print(name)
	}
	if class.Heritage != "" {
		p.print(" ")
		p.print(class.Heritage)
	}
	p.print(" ")
	p.print(class.Body)
}

func (p *printer) printExpr(expr ast.Expr) {
	switch e := expr.Data.(type) {
	case *ast.EIdentifier:
		p.print(e.Name)

	case *ast.EDot:
		p.printExpr(e.Target)
		if e.Optional {
			p.print("?.")
		} else {
			p.print(".")
		}
		p.print(e.Name)

	case *ast.EIndex:
		p.printExpr(e.Target)
		p.print("[")
		p.printExpr(e.Index)
		p.print("]")

	case *ast.EString:
		p.printString(*e)

	case *ast.ECall:
		p.printExpr(e.Target)
		p.print("(")
		for i, arg := range e.Args {
			if i > 0 {
				p.print(", ")
			}
			p.printExpr(arg)
		}
		p.print(")")

	case *ast.ESpread:
		p.print("...")
		p.printExpr(e.Value)

	case *ast.EAssign:
		_, isObject := e.Target.Data.(*ast.BObject)
		wrap := isObject && p.stmtStart == len(p.js)
		if wrap {
			p.print("(")
		}
		p.printBinding(e.Target)
		p.print(" ")
		p.print(e.Op)
		p.print(" ")
		p.printExpr(e.Value)
		if wrap {
			p.print(")")
		}

	case *ast.EFunction:
		wrap := p.atExpressionStart()
		if wrap {
			p.print("(")
		}
		name := ""
		if e.Fn.Name != nil {
			name = e.Fn.Name.Name
		}
		p.printFn(&e.Fn, name)
		if wrap {
			p.print(")")
		}

	case *ast.EClass:
		wrap := p.atExpressionStart()
		if wrap {
			p.print("(")
		}
		name := ""
		if e.Class.Name != nil {
			name = e.Class.Name.Name
		}
		p.printClass(&e.Class, name)
		if wrap {
			p.print(")")
		}

	case *ast.ERaw:
		text := strings.TrimLeft(e.Text, " \t\r\n")
		wrap := p.atExpressionStart() && startsWithDeclarationKeyword(text) ||
			p.stmtStart == len(p.js) && strings.HasPrefix(text, "{")
		if wrap {
			p.print("(")
		}
		p.print(e.Text)
		if wrap {
			p.print(")")
		}

	default:
		panic("Internal error: unexpected expression type")
	}
}

func (p *printer) printBinding(binding ast.Binding) {
	switch b := binding.Data.(type) {
	case *ast.BIdentifier:
		p.print(b.Name)

	case *ast.BObject:
		p.print("{")
		for i := range b.Properties {
			if i > 0 {
				p.print(",")
			}
			p.print(" ")
			p.printPropertyBinding(&b.Properties[i])
		}
		if len(b.Properties) > 0 {
			p.print(" ")
		}
		p.print("}")

	case *ast.BArray:
		p.print(b.Text)

	case *ast.BExpr:
		p.printExpr(b.Value)

	case *ast.BRaw:
		p.print(b.Text)

	default:
		panic("Internal error: unexpected binding type")
	}
}

func (p *printer) printPropertyBinding(prop *ast.PropertyBinding) {
	if prop.IsRest {
		p.print("...")
		if prop.Value != nil {
			p.printBinding(*prop.Value)
		} else {
			p.print(prop.Key.Text)
		}
		return
	}

	if prop.IsComputed {
		p.print("[")
		p.print(prop.Key.Text)
		p.print("]")
	} else {
		p.printName(prop.Key)
	}

	if prop.Value != nil {
		p.print(": ")
		p.printBinding(*prop.Value)
	}
	if prop.Default != nil {
		p.print(" = ")
		p.printExpr(*prop.Default)
	}
}

func (p *printer) printName(name ast.Name) {
	if !name.IsString {
		p.print(name.Text)
		return
	}
	if name.Raw != "" {
		p.print(name.Raw)
		return
	}
	p.print(quote(name.Text))
}

func (p *printer) printString(s ast.EString) {
	if s.Raw != "" {
		p.print(s.Raw)
		return
	}
	p.print(quote(s.Value))
}

// quote returns text as a double-quoted JavaScript string literal.
func quote(text string) string {
	buf := make([]byte, 0, len(text)+2)
	buf = append(buf, '"')
	for _, r := range text {
		switch r {
		case '"':
			buf = append(buf, `\"`...)
		case '\\':
			buf = append(buf, `\\`...)
		case '\n':
			buf = append(buf, `\n`...)
		case '\r':
			buf = append(buf, `\r`...)
		case '\t':
			buf = append(buf, `\t`...)
		case '\u2028':
			buf = append(buf, `\u2028`...)
		case '\u2029':
			buf = append(buf, `\u2029`...)
		default:
			if r < 0x20 || r == utf8.RuneError {
				buf = append(buf, `\u`...)
				hex := strconv.FormatInt(int64(r), 16)
				for i := len(hex); i < 4; i++ {
					buf = append(buf, '0')
				}
				buf = append(buf, hex...)
				continue
			}
			buf = utf8.AppendRune(buf, r)
		}
	}
	buf = append(buf, '"')
	return string(buf)
}

func (p *printer) atExpressionStart() bool {
	n := len(p.js)
	return p.stmtStart == n || p.exportDefaultStart == n
}

// startsWithDeclarationKeyword reports whether text begins with "function",
// "async function" or "class".
func startsWithDeclarationKeyword(text string) bool {
	if _, ok := cutKeyword(text, "function"); ok {
		return true
	}
	if _, ok := cutKeyword(text, "class"); ok {
		return true
	}
	if rest, ok := cutKeyword(text, "async"); ok {
		_, ok = cutKeyword(strings.TrimLeft(rest, " \t"), "function")
		return ok
	}
	return false
}

func cutKeyword(text, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(text, keyword)
	if !ok || rest != "" && isIdentifierPart(rest[0]) {
		return "", false
	}
	return rest, true
}

func isIdentifierPart(c byte) bool {
	return c == '_' || c == '$' || c >= utf8.RuneSelf ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
