package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gnana997/cjs2esm/pkg/ast"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/validator"
	"github.com/gnana997/cjs2esm/pkg/workspace"
)

func TestLineDiff(t *testing.T) {
	from := "a\nb\nc\nd\ne\nf\ng\n"
	to := "a\nb\nc\nD\ne\nf\ng\n"

	expected := `--- x.js
+++ x.js
@@ 1 unchanged lines @@
 b
 c
-d
+D
 e
 f
@@ 1 unchanged lines @@
`
	assert.Equal(t, expected, lineDiff("x.js", from, to))
}

func TestLineDiff_ShortContext(t *testing.T) {
	from := "const a = require(\"a\");\nrun(a);\n"
	to := "import a from \"a\";\nrun(a);\n"

	expected := "--- m.js\n+++ m.js\n-const a = require(\"a\");\n+import a from \"a\";\n run(a);\n"
	assert.Equal(t, expected, lineDiff("m.js", from, to))
}

func TestLineDiff_Equal(t *testing.T) {
	assert.Empty(t, lineDiff("x.js", "same\n", "same\n"))
}

func TestRenderScanSummary(t *testing.T) {
	stats := &workspace.ScanStats{
		FilesDiscovered: 4,
		FilesChanged:    2,
		FilesWritten:    2,
		BytesRead:       2048,
		BytesWritten:    1500,
		Duration:        1500 * time.Millisecond,
		FilesPerSecond:  2.7,
	}

	var buf bytes.Buffer
	renderScanSummary(&buf, stats, false)
	out := buf.String()
	assert.Contains(t, out, "Files discovered")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "1.5 kB")
	assert.Contains(t, strings.ToLower(out), "1.5s (3 files/s)", "footers are upper-cased by the table style")

	buf.Reset()
	renderScanSummary(&buf, stats, true)
	assert.NotContains(t, buf.String(), "Files written")
}

func TestRenderScanProblems(t *testing.T) {
	stats := &workspace.ScanStats{
		Errors: []workspace.FileError{{FilePath: "/repo/src/bad.js", Error: errors.New("read failed")}},
		ItemFailures: []workspace.ItemFailure{{
			FilePath: "/repo/src/a.js",
			Err: &rewrite.ItemError{
				Index: 1,
				Loc:   ast.Loc{Line: 7},
				Rule:  rewrite.RuleRequireDeclaration,
				Err:   rewrite.ErrUnsupportedPattern,
			},
		}},
	}

	var buf bytes.Buffer
	renderScanProblems(&buf, "/repo", stats)
	out := buf.String()
	assert.Contains(t, out, "src/bad.js")
	assert.Contains(t, out, "read failed")
	assert.Contains(t, out, "src/a.js")
	assert.Contains(t, out, "require-declaration")

	buf.Reset()
	renderScanProblems(&buf, "/repo", &workspace.ScanStats{})
	assert.Empty(t, buf.String())
}

func TestRenderViolations(t *testing.T) {
	result := &validator.ValidationResult{
		FilePath: "a.js",
		Summary:  "1 error",
		Violations: []validator.Violation{
			{Rule: validator.RuleUnsupported, Severity: validator.SeverityError, Line: 3, Column: 1, Message: "array pattern"},
		},
	}

	var buf bytes.Buffer
	renderViolations(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "FAIL a.js: 1 error")
	assert.Contains(t, out, "3:1")
	assert.Contains(t, out, "unsupported")
}
