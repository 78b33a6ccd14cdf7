package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

// ParseModule parses source and converts its top level into an ast.Module.
// Syntax errors do not fail the call; the affected statements are carried
// as raw text. Use Parse and ConvertTree when the caller needs the tree.
func (pm *ParserManager) ParseModule(source []byte, lang Language, isTSX bool) (*ast.Module, error) {
	tree, err := pm.Parse(source, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return ConvertTree(tree.RootNode(), source), nil
}

// ConvertTree builds an ast.Module from the program node of a tree-sitter
// JavaScript or TypeScript tree. Only the statement shapes the rewrite rules
// inspect are modeled; every other node is kept as its source text.
func ConvertTree(root *ts.Node, source []byte) *ast.Module {
	b := &moduleBuilder{source: source}
	return b.module(root)
}

// moduleBuilder converts tree-sitter nodes into ast nodes for one source.
type moduleBuilder struct {
	source []byte
}

func (b *moduleBuilder) text(node *ts.Node) string {
	return node.Utf8Text(b.source)
}

func (b *moduleBuilder) loc(node *ts.Node) ast.Loc {
	return ast.Loc{
		Start:   uint32(node.StartByte()),
		End:     uint32(node.EndByte()),
		Line:    uint32(node.StartPosition().Row) + 1,
		EndLine: uint32(node.EndPosition().Row) + 1,
	}
}

func (b *moduleBuilder) module(root *ts.Node) *ast.Module {
	m := &ast.Module{}
	if root == nil {
		return m
	}

	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "hash_bang_line":
			m.Shebang = b.text(child)
		case "comment":
			m.Items = append(m.Items, ast.StmtItem(ast.Stmt{
				Loc:  b.loc(child),
				Data: &ast.SComment{Text: b.text(child)},
			}))
		case "import_statement", "export_statement":
			m.Items = append(m.Items, ast.DeclItem(ast.ModuleDecl{
				Loc:  b.loc(child),
				Data: &ast.DRaw{Text: b.text(child)},
			}))
		default:
			if !child.IsNamed() {
				continue
			}
			m.Items = append(m.Items, ast.StmtItem(b.stmt(child)))
		}
	}

	return m
}

func (b *moduleBuilder) stmt(node *ts.Node) ast.Stmt {
	loc := b.loc(node)

	switch node.Kind() {
	case "expression_statement":
		if assign, ok := b.statementAssignment(node); ok {
			return ast.Stmt{Loc: loc, Data: &ast.SExpr{Value: assign}}
		}

	case "lexical_declaration", "variable_declaration":
		if local, ok := b.local(node); ok {
			return ast.Stmt{Loc: loc, Data: local}
		}
	}

	return ast.Stmt{Loc: loc, Data: &ast.SRaw{Text: b.text(node)}}
}

// statementAssignment returns the assignment an expression statement
// consists of, looking through one level of parentheses so that
// "({ a } = require('a'))" is recognized.
func (b *moduleBuilder) statementAssignment(node *ts.Node) (ast.Expr, bool) {
	expr := firstNamedChild(node)
	if expr == nil {
		return ast.Expr{}, false
	}
	if expr.Kind() == "parenthesized_expression" {
		inner := firstNamedChild(expr)
		if inner == nil || inner.Kind() != "assignment_expression" {
			return ast.Expr{}, false
		}
		expr = inner
	}

	switch expr.Kind() {
	case "assignment_expression", "augmented_assignment_expression":
		return b.assignment(expr), true
	default:
		return ast.Expr{}, false
	}
}

func (b *moduleBuilder) assignment(node *ts.Node) ast.Expr {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		return b.raw(node)
	}

	op := "="
	if node.Kind() == "augmented_assignment_expression" {
		if operator := node.ChildByFieldName("operator"); operator != nil {
			op = b.text(operator)
		}
	}

	return ast.Expr{
		Loc: b.loc(node),
		Data: &ast.EAssign{
			Op:     op,
			Target: b.assignmentTarget(left),
			Value:  b.expr(right),
		},
	}
}

// assignmentTarget converts the left side of an assignment. Patterns become
// bindings, anything else is an expression in target position.
func (b *moduleBuilder) assignmentTarget(node *ts.Node) ast.Binding {
	switch node.Kind() {
	case "identifier", "object_pattern", "array_pattern":
		return b.binding(node)
	default:
		return ast.Binding{Loc: b.loc(node), Data: &ast.BExpr{Value: b.expr(node)}}
	}
}

func (b *moduleBuilder) local(node *ts.Node) (*ast.SLocal, bool) {
	kind, ok := b.localKind(node)
	if !ok {
		return nil, false
	}

	local := &ast.SLocal{Kind: kind}
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}

		name := child.ChildByFieldName("name")
		if name == nil {
			return nil, false
		}
		decl := ast.Decl{Binding: b.binding(name)}
		if value := child.ChildByFieldName("value"); value != nil {
			expr := b.expr(value)
			decl.Value = &expr
		}
		local.Decls = append(local.Decls, decl)
	}

	return local, len(local.Decls) > 0
}

func (b *moduleBuilder) localKind(node *ts.Node) (ast.LocalKind, bool) {
	if node.Kind() == "variable_declaration" {
		return ast.LocalVar, true
	}

	keyword := node.ChildByFieldName("kind")
	if keyword == nil {
		keyword = node.Child(0)
	}
	if keyword == nil {
		return ast.LocalVar, false
	}

	switch b.text(keyword) {
	case "let":
		return ast.LocalLet, true
	case "const":
		return ast.LocalConst, true
	default:
		// "using" and "await using" declarations are left alone.
		return ast.LocalVar, false
	}
}

func (b *moduleBuilder) binding(node *ts.Node) ast.Binding {
	loc := b.loc(node)

	switch node.Kind() {
	case "identifier":
		return ast.Binding{Loc: loc, Data: &ast.BIdentifier{Name: b.text(node)}}
	case "object_pattern":
		return ast.Binding{Loc: loc, Data: b.objectPattern(node)}
	case "array_pattern":
		return ast.Binding{Loc: loc, Data: &ast.BArray{Text: b.text(node)}}
	default:
		return ast.Binding{Loc: loc, Data: &ast.BRaw{Text: b.text(node)}}
	}
}

func (b *moduleBuilder) objectPattern(node *ts.Node) *ast.BObject {
	object := &ast.BObject{}

	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		object.Properties = append(object.Properties, b.propertyBinding(child))
	}

	return object
}

func (b *moduleBuilder) propertyBinding(node *ts.Node) ast.PropertyBinding {
	prop := ast.PropertyBinding{Loc: b.loc(node)}

	switch node.Kind() {
	case "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		prop.Key = ast.IdentName(b.text(node))

	case "pair_pattern":
		if key := node.ChildByFieldName("key"); key != nil {
			b.propertyKey(&prop, key)
		}
		if value := node.ChildByFieldName("value"); value != nil {
			if value.Kind() == "assignment_pattern" {
				b.patternDefault(&prop, value)
			} else {
				binding := b.binding(value)
				prop.Value = &binding
			}
		}

	case "object_assignment_pattern":
		if left := node.ChildByFieldName("left"); left != nil {
			prop.Key = ast.IdentName(b.text(left))
		}
		if right := node.ChildByFieldName("right"); right != nil {
			def := b.expr(right)
			prop.Default = &def
		}

	case "rest_pattern":
		prop.IsRest = true
		if inner := firstNamedChild(node); inner != nil {
			binding := b.binding(inner)
			prop.Value = &binding
			prop.Key = ast.IdentName(b.text(inner))
		}

	default:
		prop.IsComputed = true
		prop.Key = ast.IdentName(b.text(node))
	}

	return prop
}

func (b *moduleBuilder) propertyKey(prop *ast.PropertyBinding, key *ts.Node) {
	switch key.Kind() {
	case "property_identifier", "identifier":
		prop.Key = ast.IdentName(b.text(key))
	case "string":
		prop.Key = ast.Name{Text: b.cookString(key), IsString: true, Raw: b.text(key)}
	case "number":
		prop.Key = ast.IdentName(b.text(key))
		prop.IsNumeric = true
	case "computed_property_name":
		prop.IsComputed = true
		if inner := firstNamedChild(key); inner != nil {
			prop.Key = ast.IdentName(b.text(inner))
		} else {
			prop.Key = ast.IdentName(b.text(key))
		}
	default:
		prop.IsComputed = true
		prop.Key = ast.IdentName(b.text(key))
	}
}

// patternDefault handles "key: local = value" inside an object pattern.
func (b *moduleBuilder) patternDefault(prop *ast.PropertyBinding, node *ts.Node) {
	if left := node.ChildByFieldName("left"); left != nil {
		binding := b.binding(left)
		prop.Value = &binding
	}
	if right := node.ChildByFieldName("right"); right != nil {
		def := b.expr(right)
		prop.Default = &def
	}
}

func (b *moduleBuilder) expr(node *ts.Node) ast.Expr {
	loc := b.loc(node)

	switch node.Kind() {
	case "identifier":
		return ast.Expr{Loc: loc, Data: &ast.EIdentifier{Name: b.text(node)}}

	case "member_expression":
		object := node.ChildByFieldName("object")
		property := node.ChildByFieldName("property")
		if object == nil || property == nil || property.Kind() != "property_identifier" {
			break
		}
		return ast.Expr{Loc: loc, Data: &ast.EDot{
			Target:   b.expr(object),
			Name:     b.text(property),
			Optional: hasChildKind(node, "optional_chain"),
		}}

	case "subscript_expression":
		object := node.ChildByFieldName("object")
		index := node.ChildByFieldName("index")
		if object == nil || index == nil || hasChildKind(node, "optional_chain") {
			break
		}
		return ast.Expr{Loc: loc, Data: &ast.EIndex{Target: b.expr(object), Index: b.expr(index)}}

	case "string":
		return ast.Expr{Loc: loc, Data: &ast.EString{Value: b.cookString(node), Raw: b.text(node)}}

	case "call_expression":
		if call, ok := b.call(node); ok {
			return ast.Expr{Loc: loc, Data: call}
		}

	case "function_expression", "function", "generator_function":
		return ast.Expr{Loc: loc, Data: &ast.EFunction{Fn: b.fn(node)}}

	case "class":
		if class, ok := b.class(node); ok {
			return ast.Expr{Loc: loc, Data: &ast.EClass{Class: class}}
		}
	}

	return b.raw(node)
}

func (b *moduleBuilder) raw(node *ts.Node) ast.Expr {
	return ast.Expr{Loc: b.loc(node), Data: &ast.ERaw{Text: b.text(node)}}
}

func (b *moduleBuilder) call(node *ts.Node) (*ast.ECall, bool) {
	function := node.ChildByFieldName("function")
	arguments := node.ChildByFieldName("arguments")
	if function == nil || arguments == nil || arguments.Kind() != "arguments" {
		return nil, false
	}
	if hasChildKind(node, "optional_chain") || node.ChildByFieldName("type_arguments") != nil {
		return nil, false
	}

	call := &ast.ECall{Target: b.expr(function)}
	count := arguments.NamedChildCount()
	for i := uint(0); i < count; i++ {
		arg := arguments.NamedChild(i)
		if arg == nil || arg.Kind() == "comment" {
			continue
		}
		if arg.Kind() == "spread_element" {
			spread := ast.Expr{Loc: b.loc(arg), Data: &ast.ESpread{}}
			if inner := firstNamedChild(arg); inner != nil {
				spread.Data = &ast.ESpread{Value: b.expr(inner)}
			}
			call.Args = append(call.Args, spread)
			continue
		}
		call.Args = append(call.Args, b.expr(arg))
	}

	return call, true
}

func (b *moduleBuilder) fn(node *ts.Node) ast.Fn {
	fn := ast.Fn{IsGenerator: node.Kind() == "generator_function"}

	var signatureStart uint
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "async":
			fn.IsAsync = true
		case "*":
			fn.IsGenerator = true
		case "type_parameters", "formal_parameters":
			if signatureStart == 0 {
				signatureStart = child.StartByte()
			}
		}
	}

	if name := node.ChildByFieldName("name"); name != nil {
		fn.Name = &ast.LocName{Loc: b.loc(name), Name: b.text(name)}
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		fn.Body = b.text(body)
		if signatureStart != 0 && signatureStart <= body.StartByte() {
			fn.Signature = strings.TrimSpace(string(b.source[signatureStart:body.StartByte()]))
		}
	}

	return fn
}

func (b *moduleBuilder) class(node *ts.Node) (ast.Class, bool) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return ast.Class{}, false
	}

	class := ast.Class{Body: b.text(body)}

	var heritageStart uint
	if name := node.ChildByFieldName("name"); name != nil {
		class.Name = &ast.LocName{Loc: b.loc(name), Name: b.text(name)}
		heritageStart = name.EndByte()
	} else {
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			child := node.Child(i)
			if child != nil && child.Kind() == "class" && !child.IsNamed() {
				heritageStart = child.EndByte()
				break
			}
		}
	}

	// Decorators precede the keyword and cannot be carried onto a
	// declaration, so such classes stay raw.
	if heritageStart == 0 || hasChildKind(node, "decorator") {
		return ast.Class{}, false
	}
	class.Heritage = strings.TrimSpace(string(b.source[heritageStart:body.StartByte()]))

	return class, true
}

// cookString returns the value of a string literal node with escape
// sequences decoded.
func (b *moduleBuilder) cookString(node *ts.Node) string {
	var sb strings.Builder

	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "escape_sequence":
			sb.WriteString(decodeEscape(b.text(child)))
		default:
			sb.WriteString(b.text(child))
		}
	}

	return sb.String()
}

// decodeEscape decodes a single JavaScript escape sequence including the
// leading backslash. Unknown escapes decode to the escaped character.
func decodeEscape(seq string) string {
	if len(seq) < 2 || seq[0] != '\\' {
		return seq
	}

	body := seq[1:]
	switch body[0] {
	case 'n':
		return "\n"
	case 'r':
		return "\r"
	case 't':
		return "\t"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case '0':
		if len(body) == 1 {
			return "\x00"
		}
	case '\n', '\r':
		return ""
	case 'x':
		if v, err := strconv.ParseUint(body[1:], 16, 8); err == nil {
			return string(rune(v))
		}
	case 'u':
		hex := strings.TrimSuffix(strings.TrimPrefix(body[1:], "{"), "}")
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			if !utf8.ValidRune(rune(v)) {
				return string(utf8.RuneError)
			}
			return string(rune(v))
		}
	}

	if strings.HasPrefix(body, "\u2028") || strings.HasPrefix(body, "\u2029") {
		return ""
	}
	return body
}

func firstNamedChild(node *ts.Node) *ts.Node {
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func hasChildKind(node *ts.Node, kind string) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return true
		}
	}
	return false
}

// StringArgument returns the cooked value of the only argument of an
// arguments node when that argument is a string literal.
func StringArgument(args *ts.Node, source []byte) (string, bool) {
	if args == nil || args.Kind() != "arguments" {
		return "", false
	}

	var only *ts.Node
	count := args.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := args.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		if only != nil {
			return "", false
		}
		only = child
	}
	if only == nil || only.Kind() != "string" {
		return "", false
	}

	b := &moduleBuilder{source: source}
	return b.cookString(only), true
}
