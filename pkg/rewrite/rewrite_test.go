package rewrite

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

func expr(data ast.E) ast.Expr {
	return ast.Expr{Data: data}
}

func ident(name string) ast.Expr {
	return expr(&ast.EIdentifier{Name: name})
}

func dot(target ast.Expr, name string) ast.Expr {
	return expr(&ast.EDot{Target: target, Name: name})
}

func str(value string) ast.Expr {
	return expr(&ast.EString{Value: value, Raw: `"` + value + `"`})
}

func requireOf(args ...ast.Expr) ast.Expr {
	return expr(&ast.ECall{Target: ident("require"), Args: args})
}

func assignItem(line uint32, target ast.Binding, value ast.Expr) ast.Item {
	return ast.StmtItem(ast.Stmt{
		Loc: ast.Loc{Line: line},
		Data: &ast.SExpr{Value: expr(&ast.EAssign{
			Op:     "=",
			Target: target,
			Value:  value,
		})},
	})
}

func memberBinding(object, name string) ast.Binding {
	return ast.Binding{Data: &ast.BExpr{Value: dot(ident(object), name)}}
}

func identBinding(name string) ast.Binding {
	return ast.Binding{Data: &ast.BIdentifier{Name: name}}
}

func objectBinding(props ...ast.PropertyBinding) ast.Binding {
	return ast.Binding{Data: &ast.BObject{Properties: props}}
}

func shorthand(name string) ast.PropertyBinding {
	return ast.PropertyBinding{Key: ast.IdentName(name)}
}

func renamed(key, local string) ast.PropertyBinding {
	value := identBinding(local)
	return ast.PropertyBinding{Key: ast.IdentName(key), Value: &value}
}

func localItem(line uint32, kind ast.LocalKind, decls ...ast.Decl) ast.Item {
	return ast.StmtItem(ast.Stmt{
		Loc:  ast.Loc{Line: line},
		Data: &ast.SLocal{Kind: kind, Decls: decls},
	})
}

func decl(binding ast.Binding, value ast.Expr) ast.Decl {
	return ast.Decl{Binding: binding, Value: &value}
}

func rawItem(line uint32, text string) ast.Item {
	return ast.StmtItem(ast.Stmt{Loc: ast.Loc{Line: line}, Data: &ast.SRaw{Text: text}})
}

func quietOptions(mode Mode) Options {
	return Options{
		Mode:   mode,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func declOf[T ast.D](t *testing.T, item ast.Item) T {
	t.Helper()
	require.True(t, item.IsDecl(), "item should be a module declaration")
	data, ok := item.Decl.Data.(T)
	require.True(t, ok, "unexpected declaration type %T", item.Decl.Data)
	return data
}

func TestRewrite_NamedExportIdentifier(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, memberBinding("exports", "foo"), ident("bar")),
	}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rewritten)

	named := declOf[*ast.DExportNamed](t, m.Items[0])
	require.Len(t, named.Specifiers, 1)
	assert.Equal(t, "foo", named.Specifiers[0].Orig.Text)
	require.NotNil(t, named.Specifiers[0].Exported)
	assert.Equal(t, "bar", named.Specifiers[0].Exported.Text)
}

func TestRewrite_NamedExportConst(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, memberBinding("exports", "foo"), str("bar")),
	}}

	_, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)

	exported := declOf[*ast.DExportDecl](t, m.Items[0])
	v, ok := exported.Decl.(*ast.DeclVar)
	require.True(t, ok)
	assert.Equal(t, ast.LocalConst, v.Kind)
	assert.Equal(t, "foo", v.Name.Name)
	s, ok := v.Value.Data.(*ast.EString)
	require.True(t, ok)
	assert.Equal(t, "bar", s.Value)
}

func TestRewrite_NamedExportFunctionAndClass(t *testing.T) {
	fnName := &ast.LocName{Name: "inner"}
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, memberBinding("exports", "run"), expr(&ast.EFunction{Fn: ast.Fn{
			Name:      fnName,
			Signature: "(a, b)",
			Body:      "{ return a + b; }",
			IsAsync:   true,
		}})),
		assignItem(2, memberBinding("exports", "Widget"), expr(&ast.EClass{Class: ast.Class{
			Heritage: "extends Base",
			Body:     "{}",
		}})),
	}}

	_, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)

	fnDecl, ok := declOf[*ast.DExportDecl](t, m.Items[0]).Decl.(*ast.DeclFunction)
	require.True(t, ok)
	assert.Equal(t, "run", fnDecl.Name.Name)
	assert.Nil(t, fnDecl.Fn.Name)
	assert.Equal(t, "(a, b)", fnDecl.Fn.Signature)
	assert.True(t, fnDecl.Fn.IsAsync)

	classDecl, ok := declOf[*ast.DExportDecl](t, m.Items[1]).Decl.(*ast.DeclClass)
	require.True(t, ok)
	assert.Equal(t, "Widget", classDecl.Name.Name)
	assert.Equal(t, "extends Base", classDecl.Class.Heritage)
}

func TestRewrite_DefaultExport(t *testing.T) {
	value := expr(&ast.EFunction{Fn: ast.Fn{Name: &ast.LocName{Name: "foo"}, Signature: "()", Body: "{}"}})
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, memberBinding("module", "exports"), value),
	}}

	_, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)

	def := declOf[*ast.DExportDefaultExpr](t, m.Items[0])
	fn, ok := def.Value.Data.(*ast.EFunction)
	require.True(t, ok)
	require.NotNil(t, fn.Fn.Name)
	assert.Equal(t, "foo", fn.Fn.Name.Name)
}

func TestRewrite_DefaultExportWinsOverRequire(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, memberBinding("module", "exports"), requireOf(str("./impl"))),
	}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)
	assert.Equal(t, RuleDefaultExport, report.Outcomes[0].Rule)
	declOf[*ast.DExportDefaultExpr](t, m.Items[0])
}

func TestRewrite_RequireAssignmentDefault(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, identBinding("foo"), requireOf(str("./foo"))),
	}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)
	assert.Equal(t, RuleRequireAssignment, report.Outcomes[0].Rule)

	imp := declOf[*ast.DImport](t, m.Items[0])
	assert.Equal(t, "./foo", imp.Source.Value)
	require.Len(t, imp.Specifiers, 1)
	assert.Equal(t, ast.ImportDefault, imp.Specifiers[0].Kind)
	assert.Equal(t, "foo", imp.Specifiers[0].Local.Text)
	assert.Nil(t, imp.Specifiers[0].Imported)
}

func TestRewrite_RequireAssignmentDestructured(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		assignItem(1, objectBinding(shorthand("foo"), renamed("bar", "baz")), requireOf(str("./foo-bar"))),
	}}

	_, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)

	imp := declOf[*ast.DImport](t, m.Items[0])
	require.Len(t, imp.Specifiers, 2)
	assert.Equal(t, ast.ImportNamed, imp.Specifiers[0].Kind)
	assert.Equal(t, "foo", imp.Specifiers[0].Imported.Text)
	assert.Equal(t, "foo", imp.Specifiers[0].Local.Text)
	assert.Equal(t, "bar", imp.Specifiers[1].Imported.Text)
	assert.Equal(t, "baz", imp.Specifiers[1].Local.Text)
}

func TestRewrite_RequireDeclaration(t *testing.T) {
	for _, kind := range []ast.LocalKind{ast.LocalVar, ast.LocalLet, ast.LocalConst} {
		t.Run(kind.String(), func(t *testing.T) {
			m := &ast.Module{Items: []ast.Item{
				localItem(1, kind, decl(identBinding("path"), requireOf(str("path")))),
			}}

			report, err := Rewrite(m, quietOptions(FailFast))
			require.NoError(t, err)
			assert.Equal(t, RuleRequireDeclaration, report.Outcomes[0].Rule)

			imp := declOf[*ast.DImport](t, m.Items[0])
			assert.Equal(t, "path", imp.Source.Value)
			assert.Equal(t, "path", imp.Specifiers[0].Local.Text)
		})
	}
}

func TestRewrite_StringKeyIsPreserved(t *testing.T) {
	value := identBinding("fooBar")
	prop := ast.PropertyBinding{
		Key:   ast.Name{Text: "foo-bar", IsString: true, Raw: `'foo-bar'`},
		Value: &value,
	}
	m := &ast.Module{Items: []ast.Item{
		localItem(1, ast.LocalConst, decl(objectBinding(prop), requireOf(str("x")))),
	}}

	_, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)

	imp := declOf[*ast.DImport](t, m.Items[0])
	assert.True(t, imp.Specifiers[0].Imported.IsString)
	assert.Equal(t, "foo-bar", imp.Specifiers[0].Imported.Text)
	assert.Equal(t, "fooBar", imp.Specifiers[0].Local.Text)
}

func TestRewrite_UnmatchedItemsUntouched(t *testing.T) {
	items := []ast.Item{
		rawItem(1, "console.log(1);"),
		assignItem(2, memberBinding("foo", "bar"), str("x")),
		localItem(3, ast.LocalConst, decl(identBinding("a"), expr(&ast.ECall{Target: ident("load"), Args: []ast.Expr{str("x")}}))),
		localItem(4, ast.LocalLet, ast.Decl{Binding: identBinding("b")}),
		ast.StmtItem(ast.Stmt{Data: &ast.SExpr{Value: expr(&ast.EAssign{
			Op:     "+=",
			Target: memberBinding("exports", "count"),
			Value:  str("1"),
		})}}),
		ast.DeclItem(ast.ModuleDecl{Data: &ast.DRaw{Text: `import x from "x";`}}),
	}
	m := &ast.Module{Items: append([]ast.Item(nil), items...)}

	for run := 1; run <= 2; run++ {
		report, err := Rewrite(m, quietOptions(FailFast))
		require.NoError(t, err)
		assert.False(t, report.Changed(), "run %d", run)
		assert.Equal(t, 0, report.Rewritten, "run %d", run)
		assert.Equal(t, len(items), report.Unchanged, "run %d", run)
		assert.Equal(t, items, m.Items, "run %d", run)
	}
}

func TestRewrite_ComputedExportsAccessIsNotMatched(t *testing.T) {
	target := ast.Binding{Data: &ast.BExpr{Value: expr(&ast.EIndex{Target: ident("exports"), Index: str("foo")})}}
	m := &ast.Module{Items: []ast.Item{assignItem(1, target, str("bar"))}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, report.Outcomes[0].Status)
	assert.True(t, m.Items[0].IsStmt())
}

func TestRewrite_Failures(t *testing.T) {
	tests := []struct {
		name string
		item ast.Item
		kind error
		rule string
	}{
		{
			name: "array pattern",
			item: localItem(1, ast.LocalConst, decl(ast.Binding{Data: &ast.BArray{Text: "[a]"}}, requireOf(str("x")))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireDeclaration,
		},
		{
			name: "rest element",
			item: localItem(1, ast.LocalConst, decl(objectBinding(ast.PropertyBinding{
				Key:    ast.IdentName("rest"),
				IsRest: true,
				Value:  &ast.Binding{Data: &ast.BIdentifier{Name: "rest"}},
			}), requireOf(str("x")))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireDeclaration,
		},
		{
			name: "default value",
			item: localItem(1, ast.LocalConst, decl(objectBinding(ast.PropertyBinding{
				Key:     ast.IdentName("a"),
				Default: &ast.Expr{Data: &ast.ERaw{Text: "1"}},
			}), requireOf(str("x")))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireDeclaration,
		},
		{
			name: "nested pattern",
			item: localItem(1, ast.LocalConst, decl(objectBinding(ast.PropertyBinding{
				Key:   ast.IdentName("a"),
				Value: &ast.Binding{Data: &ast.BObject{}},
			}), requireOf(str("x")))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireDeclaration,
		},
		{
			name: "member target",
			item: assignItem(1, memberBinding("a", "b"), requireOf(str("x"))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireAssignment,
		},
		{
			name: "multiple declarators",
			item: localItem(1, ast.LocalVar,
				decl(identBinding("a"), requireOf(str("a"))),
				decl(identBinding("b"), str("b"))),
			kind: ErrUnsupportedPattern,
			rule: RuleRequireDeclaration,
		},
		{
			name: "reserved export name",
			item: assignItem(1, memberBinding("exports", "default"), str("x")),
			kind: ErrUnsupportedPattern,
			rule: RuleNamedExport,
		},
		{
			name: "no arguments",
			item: localItem(1, ast.LocalConst, decl(identBinding("a"), requireOf())),
			kind: ErrMalformedRequireArgument,
			rule: RuleRequireDeclaration,
		},
		{
			name: "two arguments",
			item: localItem(1, ast.LocalConst, decl(identBinding("a"), requireOf(str("a"), str("b")))),
			kind: ErrMalformedRequireArgument,
			rule: RuleRequireDeclaration,
		},
		{
			name: "identifier argument",
			item: assignItem(1, identBinding("a"), requireOf(ident("name"))),
			kind: ErrMalformedRequireArgument,
			rule: RuleRequireAssignment,
		},
		{
			name: "spread argument",
			item: assignItem(1, identBinding("a"), requireOf(expr(&ast.ESpread{Value: ident("args")}))),
			kind: ErrMalformedRequireArgument,
			rule: RuleRequireAssignment,
		},
		{
			name: "template argument",
			item: assignItem(1, identBinding("a"), requireOf(expr(&ast.ERaw{Text: "`./x`"}))),
			kind: ErrMalformedRequireArgument,
			rule: RuleRequireAssignment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.item
			m := &ast.Module{Items: []ast.Item{tt.item}}

			report, err := Rewrite(m, quietOptions(FailFast))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var itemErr *ItemError
			require.True(t, errors.As(err, &itemErr))
			assert.Equal(t, 0, itemErr.Index)
			assert.Equal(t, tt.rule, itemErr.Rule)
			assert.Equal(t, 1, report.Failed)
			assert.Equal(t, original, m.Items[0], "failed item must not be modified")
		})
	}
}

func TestRewrite_FailFastKeepsEarlierRewrites(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		localItem(1, ast.LocalConst, decl(identBinding("a"), requireOf(str("a")))),
		localItem(2, ast.LocalConst, decl(identBinding("b"), requireOf())),
		localItem(3, ast.LocalConst, decl(identBinding("c"), requireOf(str("c")))),
	}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequireArgument)

	assert.Len(t, m.Items, 3)
	assert.True(t, m.Items[0].IsDecl())
	assert.True(t, m.Items[1].IsStmt())
	assert.True(t, m.Items[2].IsStmt())

	assert.Equal(t, StatusRewritten, report.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, StatusNotVisited, report.Outcomes[2].Status)
}

func TestRewrite_BestEffortContinues(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		localItem(1, ast.LocalConst, decl(identBinding("a"), requireOf(str("a")))),
		localItem(2, ast.LocalConst, decl(ast.Binding{Data: &ast.BArray{Text: "[b]"}}, requireOf(str("b")))),
		rawItem(3, "go();"),
		assignItem(4, memberBinding("exports", "c"), ident("c")),
	}}

	report, err := Rewrite(m, quietOptions(BestEffort))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Items)
	assert.Equal(t, 2, report.Rewritten)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Equal(t, uint32(2), report.Failures[0].Loc.Line)

	assert.True(t, m.Items[0].IsDecl())
	assert.True(t, m.Items[1].IsStmt())
	assert.True(t, m.Items[2].IsStmt())
	assert.True(t, m.Items[3].IsDecl())
}

func TestRewrite_PreservesCountAndOrder(t *testing.T) {
	m := &ast.Module{Items: []ast.Item{
		rawItem(1, "'use strict';"),
		localItem(2, ast.LocalConst, decl(identBinding("fs"), requireOf(str("fs")))),
		rawItem(3, "function helper() {}"),
		assignItem(4, memberBinding("exports", "helper"), ident("helper")),
		assignItem(5, memberBinding("module", "exports"), ident("helper")),
	}}

	report, err := Rewrite(m, quietOptions(FailFast))
	require.NoError(t, err)
	require.Len(t, m.Items, 5)

	for i, item := range m.Items {
		assert.Equal(t, uint32(i+1), item.Loc.Line)
	}
	assert.Equal(t, 3, report.Rewritten)
}

func TestRewrite_NilModule(t *testing.T) {
	report, err := Rewrite(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Items)
}

func TestMatchRule(t *testing.T) {
	item := assignItem(1, memberBinding("exports", "x"), str("y"))
	r, build, ok := matchRule(item.Stmt)
	require.True(t, ok)
	assert.Equal(t, RuleNamedExport, r.info.Name)
	assert.NotNil(t, build)

	// Rule 1 is tried before rule 3.
	item = assignItem(1, memberBinding("module", "exports"), requireOf(str("x")))
	r, _, ok = matchRule(item.Stmt)
	require.True(t, ok)
	assert.Equal(t, RuleDefaultExport, r.info.Name)

	raw := rawItem(1, "x();")
	_, _, ok = matchRule(raw.Stmt)
	assert.False(t, ok)

	_, _, ok = matchRule(nil)
	assert.False(t, ok)
}

func TestRules(t *testing.T) {
	infos := Rules()
	require.Len(t, infos, 4)
	assert.Equal(t, RuleDefaultExport, infos[0].Name)
	assert.Equal(t, RuleNamedExport, infos[1].Name)
	assert.Equal(t, RuleRequireAssignment, infos[2].Name)
	assert.Equal(t, RuleRequireDeclaration, infos[3].Name)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("best-effort")
	require.NoError(t, err)
	assert.Equal(t, BestEffort, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, FailFast, mode)

	_, err = ParseMode("lenient")
	assert.Error(t, err)
}
