package converter

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupConverter(t *testing.T, opts Options) *Converter {
	t.Helper()

	pm := parser.NewParserManager(testLogger())
	t.Cleanup(func() { pm.Close() })

	conv, err := NewConverter(pm, opts, testLogger())
	require.NoError(t, err)
	return conv
}

func readTestFile(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestConvert_Scenarios(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "named function export",
			input:    `exports.foo = function foo() { return "foo"; };`,
			expected: `export function foo() { return "foo"; }`,
		},
		{
			name:     "function renamed to property",
			input:    `exports.bar = function foo() { return "foo"; };`,
			expected: `export function bar() { return "foo"; }`,
		},
		{
			name:     "class export",
			input:    `exports.Foo = class { static bar = "bar" };`,
			expected: `export class Foo { static bar = "bar" }`,
		},
		{
			name:     "identifier export",
			input:    `exports.foo = bar;`,
			expected: `export { foo as bar };`,
		},
		{
			name:     "constant export",
			input:    `exports.foo = "bar";`,
			expected: `export const foo = "bar";`,
		},
		{
			name:     "default export keeps function name",
			input:    `module.exports = function foo() { return "foo"; };`,
			expected: `export default function foo() { return "foo"; };`,
		},
		{
			name:     "default export class",
			input:    `module.exports = class Foo { render() { return 1; } };`,
			expected: `export default class Foo { render() { return 1; } };`,
		},
		{
			name:     "default import",
			input:    `const foo = require("./foo");`,
			expected: `import foo from "./foo";`,
		},
		{
			name:     "named imports",
			input:    `const { foo, bar: baz } = require("./foo-bar");`,
			expected: `import { foo, bar as baz } from "./foo-bar";`,
		},
		{
			name:     "require assignment",
			input:    `foo = require('./foo');`,
			expected: `import foo from './foo';`,
		},
		{
			name:     "array pattern left unchanged",
			input:    `const [a, b] = require("./x");`,
			expected: `const [a, b] = require("./x");`,
		},
	}

	conv := setupConverter(t, Options{Mode: rewrite.BestEffort, CacheSize: -1})

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := conv.Convert("index.js", []byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.expected+"\n", string(result.Output))
		})
	}
}

// A default-exported value that begins with "function" or "class" but is not
// itself a function or class would be read as a declaration, so the printer
// parenthesizes it.
func TestConvert_DefaultExportOfCallOnFunction(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{
			input:    `module.exports = function () { return { a: 1 }; }();`,
			expected: `export default (function() { return { a: 1 }; })();`,
		},
		{
			input:    `module.exports = function () {}.call(this);`,
			expected: `export default (function() {}).call(this);`,
		},
		{
			input:    `module.exports = class {}.name;`,
			expected: `export default (class {}).name;`,
		},
		{
			input:    `module.exports = async function () {}();`,
			expected: `export default (async function() {})();`,
		},
	}

	conv := setupConverter(t, Options{Mode: rewrite.FailFast, CacheSize: -1})
	pm := parser.NewParserManager(testLogger())
	t.Cleanup(func() { pm.Close() })

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result, err := conv.Convert("index.js", []byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.expected+"\n", string(result.Output))

			tree, err := pm.Parse(result.Output, parser.LanguageJavaScript, false)
			require.NoError(t, err)
			defer tree.Close()

			root := tree.RootNode()
			require.False(t, root.HasError(), root.ToSexp())
			export := root.NamedChild(0)
			require.Equal(t, "export_statement", export.Kind())
			assert.Nil(t, export.ChildByFieldName("declaration"))
			assert.NotNil(t, export.ChildByFieldName("value"))
		})
	}
}

func TestConvert_ArrayPatternFailure(t *testing.T) {
	source := []byte(`const [a, b] = require("./x");`)

	t.Run("best effort", func(t *testing.T) {
		conv := setupConverter(t, Options{Mode: rewrite.BestEffort})

		result, err := conv.Convert("x.cjs", source)
		require.NoError(t, err)
		assert.False(t, result.Changed)
		require.Len(t, result.Failures(), 1)
		assert.ErrorIs(t, result.Failures()[0], rewrite.ErrUnsupportedPattern)
	})

	t.Run("fail fast", func(t *testing.T) {
		conv := setupConverter(t, Options{Mode: rewrite.FailFast})

		result, err := conv.Convert("x.cjs", source)
		require.Error(t, err)
		assert.ErrorIs(t, err, rewrite.ErrUnsupportedPattern)

		var itemErr *rewrite.ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 0, itemErr.Index)
		assert.Equal(t, rewrite.RuleRequireDeclaration, itemErr.Rule)

		require.NotNil(t, result)
		assert.Equal(t, string(source)+"\n", string(result.Output))
		assert.Equal(t, 0, conv.CacheLen(), "failed conversions are not cached")
	})
}

func TestConvert_LegacyFile(t *testing.T) {
	source := readTestFile(t, "legacy.cjs")

	t.Run("best effort", func(t *testing.T) {
		conv := setupConverter(t, DefaultOptions())

		result, err := conv.Convert("legacy.cjs", source)
		require.NoError(t, err)
		assert.Equal(t, string(readTestFile(t, "legacy.best-effort.mjs")), string(result.Output))

		report := result.Report
		assert.Equal(t, 9, report.Items)
		assert.Equal(t, 4, report.Rewritten)
		assert.Equal(t, 4, report.Unchanged)
		assert.Equal(t, 1, report.Failed)
		assert.True(t, result.Changed)
		assert.False(t, result.SyntaxErrors)
	})

	t.Run("fail fast", func(t *testing.T) {
		conv := setupConverter(t, Options{Mode: rewrite.FailFast, BlankLines: true})

		result, err := conv.Convert("legacy.cjs", source)
		require.Error(t, err)
		assert.Equal(t, string(readTestFile(t, "legacy.fail-fast.mjs")), string(result.Output))

		report := result.Report
		assert.Equal(t, 2, report.Rewritten)
		assert.Equal(t, rewrite.StatusFailed, report.Outcomes[3].Status)
		for _, outcome := range report.Outcomes[4:] {
			assert.Equal(t, rewrite.StatusNotVisited, outcome.Status)
		}
	})
}

func TestConvert_TSX(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())

	result, err := conv.Convert("view.tsx", readTestFile(t, "view.tsx"))
	require.NoError(t, err)
	assert.Equal(t, parser.LanguageTypeScript, result.Language)
	assert.Equal(t, string(readTestFile(t, "view.expected.tsx")), string(result.Output))
}

func TestConvert_TypeScriptPassthrough(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())

	source := "import type { A } from \"./a\";\nexports.make = function <T extends A>(v: T): T { return v; };\n"
	result, err := conv.Convert("make.ts", []byte(source))
	require.NoError(t, err)

	expected := "import type { A } from \"./a\";\nexport function make<T extends A>(v: T): T { return v; }\n"
	assert.Equal(t, expected, string(result.Output))
}

func TestConvert_NoMatchIsIdentity(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())

	source := "// header\nfunction f() {\n  return require(\"x\");\n}\n\nf();\n"
	result, err := conv.Convert("f.js", []byte(source))
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, source, string(result.Output))
}

func TestConvert_Cache(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())
	source := []byte(`exports.a = 1;`)

	first, err := conv.Convert("a.js", source)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := conv.Convert("b.js", source)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "b.js", second.Path)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, 1, conv.CacheLen())

	// TypeScript is a different grammar and does not share the entry.
	third, err := conv.Convert("a.ts", source)
	require.NoError(t, err)
	assert.False(t, third.FromCache)

	conv.Purge()
	assert.Equal(t, 0, conv.CacheLen())
}

func TestConvert_CacheDisabled(t *testing.T) {
	conv := setupConverter(t, Options{Mode: rewrite.BestEffort, CacheSize: -1})

	for i := 0; i < 2; i++ {
		result, err := conv.Convert("a.js", []byte(`exports.a = 1;`))
		require.NoError(t, err)
		assert.False(t, result.FromCache)
	}
	assert.Equal(t, 0, conv.CacheLen())
}

func TestConvert_SyntaxErrors(t *testing.T) {
	source := []byte("const x = ;\nexports.a = 1;\n")

	lenient := setupConverter(t, DefaultOptions())
	result, err := lenient.Convert("a.js", source)
	require.NoError(t, err)
	assert.True(t, result.SyntaxErrors)

	strict := setupConverter(t, Options{Mode: rewrite.BestEffort, RejectSyntaxErrors: true})
	_, err = strict.Convert("a.js", source)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestConvert_UnsupportedLanguage(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())

	_, err := conv.Convert("README.md", []byte("# hi"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestConvertFile(t *testing.T) {
	conv := setupConverter(t, DefaultOptions())

	result, err := conv.ConvertFile(context.Background(), filepath.Join("testdata", "legacy.cjs"))
	require.NoError(t, err)
	assert.True(t, result.Changed)

	_, err = conv.ConvertFile(context.Background(), filepath.Join("testdata", "missing.cjs"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conv.ConvertFile(ctx, filepath.Join("testdata", "legacy.cjs"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewConverter_NilParserManager(t *testing.T) {
	_, err := NewConverter(nil, DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestComputeContentHash(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ComputeContentHash(nil))
	assert.NotEqual(t, ComputeContentHash([]byte("a")), ComputeContentHash([]byte("b")))
}
