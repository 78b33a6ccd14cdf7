package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

func parseJS(t *testing.T, src string) *ast.Module {
	t.Helper()
	manager := NewParserManager(testLogger())
	t.Cleanup(func() { manager.Close() })

	m, err := manager.ParseModule([]byte(src), LanguageJavaScript, false)
	require.NoError(t, err)
	return m
}

func onlyStmt[T ast.S](t *testing.T, m *ast.Module) T {
	t.Helper()
	require.Len(t, m.Items, 1)
	require.True(t, m.Items[0].IsStmt())
	data, ok := m.Items[0].Stmt.Data.(T)
	require.True(t, ok, "unexpected statement type %T", m.Items[0].Stmt.Data)
	return data
}

func assignOf(t *testing.T, m *ast.Module) *ast.EAssign {
	t.Helper()
	s := onlyStmt[*ast.SExpr](t, m)
	assign, ok := s.Value.Data.(*ast.EAssign)
	require.True(t, ok)
	return assign
}

func TestConvert_ExportsAssignment(t *testing.T) {
	assign := assignOf(t, parseJS(t, `exports.foo = "bar";`))

	assert.Equal(t, "=", assign.Op)
	target, ok := assign.Target.Data.(*ast.BExpr)
	require.True(t, ok)
	dot, ok := target.Value.Data.(*ast.EDot)
	require.True(t, ok)
	assert.Equal(t, "foo", dot.Name)
	obj, ok := dot.Target.Data.(*ast.EIdentifier)
	require.True(t, ok)
	assert.Equal(t, "exports", obj.Name)

	str, ok := assign.Value.Data.(*ast.EString)
	require.True(t, ok)
	assert.Equal(t, "bar", str.Value)
	assert.Equal(t, `"bar"`, str.Raw)
}

func TestConvert_FunctionExpression(t *testing.T) {
	assign := assignOf(t, parseJS(t, `exports.foo = async function foo(a, b = 1) { return "foo"; };`))

	fn, ok := assign.Value.Data.(*ast.EFunction)
	require.True(t, ok)
	require.NotNil(t, fn.Fn.Name)
	assert.Equal(t, "foo", fn.Fn.Name.Name)
	assert.Equal(t, "(a, b = 1)", fn.Fn.Signature)
	assert.Equal(t, `{ return "foo"; }`, fn.Fn.Body)
	assert.True(t, fn.Fn.IsAsync)
	assert.False(t, fn.Fn.IsGenerator)
}

func TestConvert_GeneratorFunction(t *testing.T) {
	assign := assignOf(t, parseJS(t, `exports.gen = function* () { yield 1; };`))

	fn, ok := assign.Value.Data.(*ast.EFunction)
	require.True(t, ok)
	assert.Nil(t, fn.Fn.Name)
	assert.True(t, fn.Fn.IsGenerator)
	assert.Equal(t, "()", fn.Fn.Signature)
}

func TestConvert_ClassExpression(t *testing.T) {
	assign := assignOf(t, parseJS(t, `exports.Foo = class extends Base { static bar = "bar" };`))

	class, ok := assign.Value.Data.(*ast.EClass)
	require.True(t, ok)
	assert.Nil(t, class.Class.Name)
	assert.Equal(t, "extends Base", class.Class.Heritage)
	assert.Equal(t, `{ static bar = "bar" }`, class.Class.Body)
}

func TestConvert_TypeScriptSignatures(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	m, err := manager.ParseModule(readTestFile(t, "widget.ts"), LanguageTypeScript, false)
	require.NoError(t, err)
	require.Len(t, m.Items, 4)

	assert.IsType(t, &ast.DRaw{}, m.Items[0].Decl.Data)

	local, ok := m.Items[1].Stmt.Data.(*ast.SLocal)
	require.True(t, ok)
	assert.Equal(t, ast.LocalConst, local.Kind)

	fn, ok := m.Items[2].Stmt.Data.(*ast.SExpr).Value.Data.(*ast.EAssign).Value.Data.(*ast.EFunction)
	require.True(t, ok)
	assert.Equal(t, "<T>(value: T): Box<T>", fn.Fn.Signature)

	class, ok := m.Items[3].Stmt.Data.(*ast.SExpr).Value.Data.(*ast.EAssign).Value.Data.(*ast.EClass)
	require.True(t, ok)
	assert.Equal(t, "<K> extends Map<K, string> implements Named", class.Class.Heritage)
}

func TestConvert_RequireDeclarations(t *testing.T) {
	m := parseJS(t, `const { foo, bar: baz, "a-b": ab, c = 1, ...rest } = require('./foo-bar');`)
	local := onlyStmt[*ast.SLocal](t, m)

	require.Len(t, local.Decls, 1)
	object, ok := local.Decls[0].Binding.Data.(*ast.BObject)
	require.True(t, ok)
	require.Len(t, object.Properties, 5)

	props := object.Properties
	assert.True(t, props[0].IsShorthand())
	assert.Equal(t, "foo", props[0].Key.Text)

	assert.Equal(t, "bar", props[1].Key.Text)
	require.NotNil(t, props[1].Value)
	assert.Equal(t, &ast.BIdentifier{Name: "baz"}, props[1].Value.Data)

	assert.True(t, props[2].Key.IsString)
	assert.Equal(t, "a-b", props[2].Key.Text)
	assert.Equal(t, `"a-b"`, props[2].Key.Raw)

	assert.Equal(t, "c", props[3].Key.Text)
	assert.NotNil(t, props[3].Default)

	assert.True(t, props[4].IsRest)

	call, ok := local.Decls[0].Value.Data.(*ast.ECall)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
	assert.Equal(t, &ast.EString{Value: "./foo-bar", Raw: `'./foo-bar'`}, call.Args[0].Data)
}

func TestConvert_MultipleDeclarators(t *testing.T) {
	local := onlyStmt[*ast.SLocal](t, parseJS(t, `var a = require("a"), b;`))

	assert.Equal(t, ast.LocalVar, local.Kind)
	require.Len(t, local.Decls, 2)
	assert.NotNil(t, local.Decls[0].Value)
	assert.Nil(t, local.Decls[1].Value)
}

func TestConvert_ComputedAndNumericKeys(t *testing.T) {
	local := onlyStmt[*ast.SLocal](t, parseJS(t, `let { [key]: a, 0: b } = require("x");`))

	props := local.Decls[0].Binding.Data.(*ast.BObject).Properties
	require.Len(t, props, 2)
	assert.True(t, props[0].IsComputed)
	assert.Equal(t, "key", props[0].Key.Text)
	assert.True(t, props[1].IsNumeric)
}

func TestConvert_RequireArguments(t *testing.T) {
	testCases := []struct {
		src      string
		expected []any
	}{
		{`x = require();`, nil},
		{`x = require(...args);`, []any{&ast.ESpread{}}},
		{"x = require(`./x`);", []any{&ast.ERaw{}}},
		{`x = require(name, "b");`, []any{&ast.EIdentifier{}, &ast.EString{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			assign := assignOf(t, parseJS(t, tc.src))
			call, ok := assign.Value.Data.(*ast.ECall)
			require.True(t, ok)
			require.Len(t, call.Args, len(tc.expected))
			for i, arg := range call.Args {
				assert.IsType(t, tc.expected[i], arg.Data)
			}
		})
	}
}

func TestConvert_ParenthesizedAssignment(t *testing.T) {
	assign := assignOf(t, parseJS(t, `({ a, b } = require("ab"));`))
	assert.IsType(t, &ast.BObject{}, assign.Target.Data)
}

func TestConvert_CompoundAssignment(t *testing.T) {
	assign := assignOf(t, parseJS(t, `exports.count += 1;`))
	assert.Equal(t, "+=", assign.Op)
}

func TestConvert_RawItems(t *testing.T) {
	m := parseJS(t, "if (x) { y(); }\nimport a from 'a';\nexport const b = 1;\nfoo();\n/* c */\n")
	require.Len(t, m.Items, 5)

	assert.Equal(t, &ast.SRaw{Text: "if (x) { y(); }"}, m.Items[0].Stmt.Data)
	assert.Equal(t, &ast.DRaw{Text: "import a from 'a';"}, m.Items[1].Decl.Data)
	assert.Equal(t, &ast.DRaw{Text: "export const b = 1;"}, m.Items[2].Decl.Data)
	assert.Equal(t, &ast.SRaw{Text: "foo();"}, m.Items[3].Stmt.Data)
	assert.Equal(t, &ast.SComment{Text: "/* c */"}, m.Items[4].Stmt.Data)
}

func TestConvert_LegacyFile(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	m, err := manager.ParseModule(readTestFile(t, "legacy.cjs"), LanguageJavaScript, false)
	require.NoError(t, err)

	assert.Equal(t, "#!/usr/bin/env node", m.Shebang)
	require.Len(t, m.Items, 10)

	lines := make([]uint32, len(m.Items))
	for i, item := range m.Items {
		lines[i] = item.Loc.Line
	}
	assert.Equal(t, []uint32{2, 4, 5, 6, 7, 9, 13, 14, 15, 19}, lines)
	assert.Equal(t, uint32(11), m.Items[5].Loc.EndLine)
}

func TestConvert_Locations(t *testing.T) {
	m := parseJS(t, "a();\n\nexports.x = 1;")
	require.Len(t, m.Items, 2)

	second := m.Items[1].Loc
	assert.Equal(t, uint32(3), second.Line)
	assert.Equal(t, uint32(6), second.Start)
	assert.Equal(t, uint32(20), second.End)
}

func TestDecodeEscape(t *testing.T) {
	testCases := map[string]string{
		`\n`:        "\n",
		`\t`:        "\t",
		`\'`:        "'",
		`\"`:        `"`,
		`\\`:        `\`,
		`\0`:        "\x00",
		`\x41`:      "A",
		`\u00e9`:    "\u00e9",
		`\u{1F600}`: "\U0001F600",
		"\\\n":      "",
		`\q`:        "q",
	}

	for seq, expected := range testCases {
		assert.Equal(t, expected, decodeEscape(seq), "decoding %q", seq)
	}
}

func TestConvert_CookedStrings(t *testing.T) {
	assign := assignOf(t, parseJS(t, `x = require("./a\x2dbc");`))
	call := assign.Value.Data.(*ast.ECall)
	str := call.Args[0].Data.(*ast.EString)

	assert.Equal(t, "./a-bc", str.Value)
	assert.Equal(t, `"./a\x2dbc"`, str.Raw)
}

func TestStringArgument(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	testCases := []struct {
		src      string
		expected string
		ok       bool
	}{
		{`require("./a\x2db");`, "./a-b", true},
		{`require('x' /* c */);`, "x", true},
		{`require(x);`, "", false},
		{`require("a", "b");`, "", false},
		{`require();`, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			source := []byte(tc.src)
			tree, err := manager.Parse(source, LanguageJavaScript, false)
			require.NoError(t, err)
			defer tree.Close()

			call := tree.RootNode().NamedChild(0).NamedChild(0)
			require.Equal(t, "call_expression", call.Kind())

			value, ok := StringArgument(call.ChildByFieldName("arguments"), source)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, value)
		})
	}
}
