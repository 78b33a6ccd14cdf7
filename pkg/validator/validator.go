// Package validator reports which CommonJS constructs in a file the rewrite
// can convert, which it rejects and which it cannot reach.
package validator

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/cjs2esm/pkg/ast"
	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/parser/queries"
	"github.com/gnana997/cjs2esm/pkg/printer"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

// Violation rules.
const (
	RuleConvertible         = "convertible"
	RuleUnsupported         = "unsupported"
	RuleNestedRequire       = "nested-require"
	RuleNestedExports       = "nested-exports"
	RuleMixedModule         = "mixed-module"
	RuleSyntaxError         = "syntax-error"
	RuleUnsupportedLanguage = "unsupported-language"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Validator checks sources without modifying them.
type Validator struct {
	parser  *parser.ParserManager
	queries *queries.QueryManager
	logger  *slog.Logger
}

// ValidationResult is the outcome of checking one file. A file is Valid when
// it has no error-severity violations.
type ValidationResult struct {
	FilePath   string      `json:"file_path"`
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
	Summary    string      `json:"summary"`
}

// Violation is a single finding.
type Violation struct {
	Rule       string   `json:"rule"`
	Message    string   `json:"message"`
	Severity   string   `json:"severity"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Suggestion string   `json:"suggestion,omitempty"`
	Fix        *AutoFix `json:"fix,omitempty"`
}

func NewValidator(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{parser: pm, queries: qm, logger: logger}
}

// Validate checks source, choosing the grammar from the extension of path.
func (v *Validator) Validate(path string, source []byte) *ValidationResult {
	lang := parser.DetectLanguage(path)
	if lang == parser.LanguageUnknown {
		result := &ValidationResult{FilePath: path}
		result.add(Violation{
			Rule:     RuleUnsupportedLanguage,
			Message:  fmt.Sprintf("no grammar for %q", path),
			Severity: SeverityError,
		})
		result.finish()
		return result
	}
	return v.ValidateSource(path, source, lang, parser.IsTSXFile(path))
}

// ValidateSource checks source with an explicit grammar.
func (v *Validator) ValidateSource(path string, source []byte, lang parser.Language, isTSX bool) *ValidationResult {
	result := &ValidationResult{FilePath: path}
	defer result.finish()

	tree, err := v.parser.Parse(source, lang, isTSX)
	if err != nil {
		result.add(Violation{
			Rule:     RuleSyntaxError,
			Message:  err.Error(),
			Severity: SeverityError,
		})
		return result
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := firstErrorNode(root); bad != nil {
		pos := bad.StartPosition()
		result.add(Violation{
			Rule:       RuleSyntaxError,
			Message:    "source does not parse cleanly; statements around the error are left unchanged",
			Severity:   SeverityWarning,
			Line:       int(pos.Row) + 1,
			Column:     int(pos.Column) + 1,
			Suggestion: "fix the syntax error before converting",
		})
	}

	module := parser.ConvertTree(root, source)
	spans := itemSpans(module)

	// Best effort visits every item; the module is discarded afterwards.
	report, _ := rewrite.Rewrite(module, rewrite.Options{Mode: rewrite.BestEffort, Logger: v.logger})

	for i, outcome := range report.Outcomes {
		span := spans[i]
		switch outcome.Status {
		case rewrite.StatusRewritten:
			replacement := printItem(module.Items[i])
			result.add(Violation{
				Rule:       RuleConvertible,
				Message:    fmt.Sprintf("%s can be converted", outcome.Rule),
				Severity:   SeverityInfo,
				Line:       int(span.Line),
				Column:     columnAt(source, span.Start),
				Suggestion: replacement,
				Fix: &AutoFix{
					Line:    int(span.Line),
					OldText: string(source[span.Start:span.End]),
					NewText: replacement,
					Reason:  outcome.Rule,
				},
			})
		case rewrite.StatusFailed:
			result.add(Violation{
				Rule:       RuleUnsupported,
				Message:    outcome.Err.Err.Error(),
				Severity:   SeverityError,
				Line:       int(span.Line),
				Column:     columnAt(source, span.Start),
				Suggestion: suggestionFor(outcome.Err),
			})
		}
	}

	if err := v.checkUnreachable(result, tree, source, lang, isTSX, spans, report); err != nil {
		v.logger.Warn("CommonJS query failed", "file", path, "error", err)
	}
	return result
}

// checkUnreachable reports require calls and exports references that no
// rule consumes. Each rewritten or rejected item owns the first reference of
// its kind; every other reference stays in the output.
func (v *Validator) checkUnreachable(result *ValidationResult, tree *ts.Tree, source []byte, lang parser.Language, isTSX bool, spans []ast.Loc, report *rewrite.Report) error {
	cjsQuery, err := v.queries.GetQuery(lang, isTSX, queries.QueryTypeCommonJS)
	if err != nil {
		return err
	}
	matches, err := v.queries.ExecuteQuery(tree, cjsQuery, source)
	if err != nil {
		return err
	}

	claimed := make(map[int]bool)
	var firstCJS *queries.QueryCapture

	for _, match := range sortedMatches(matches) {
		capture, kind := commonJSCapture(&match)
		if capture == nil {
			continue
		}
		if firstCJS == nil {
			firstCJS = capture
		}

		item := itemAt(spans, capture.Location.StartByte)
		if item >= 0 && ownsReference(report.Outcomes[item].Rule, kind) && !claimed[item] {
			claimed[item] = true
			continue
		}

		if kind == RuleNestedRequire {
			result.add(Violation{
				Rule:       RuleNestedRequire,
				Message:    fmt.Sprintf("%s is not a top-level import and stays CommonJS", capture.Text),
				Severity:   SeverityWarning,
				Line:       int(capture.Location.StartLine),
				Column:     int(capture.Location.StartColumn),
				Suggestion: "hoist the require to a top-level declaration or use a dynamic import()",
			})
			continue
		}
		result.add(Violation{
			Rule:       RuleNestedExports,
			Message:    fmt.Sprintf("%s is not a top-level export assignment and stays CommonJS", capture.Text),
			Severity:   SeverityWarning,
			Line:       int(capture.Location.StartLine),
			Column:     int(capture.Location.StartColumn),
			Suggestion: "assign exports once at the top level",
		})
	}

	if firstCJS == nil {
		return nil
	}

	esmQuery, err := v.queries.GetQuery(lang, isTSX, queries.QueryTypeESM)
	if err != nil {
		return err
	}
	esmMatches, err := v.queries.ExecuteQuery(tree, esmQuery, source)
	if err != nil {
		return err
	}
	for _, match := range sortedMatches(esmMatches) {
		statement, ok := match.Capture("import.statement")
		if !ok {
			statement, ok = match.Capture("export.statement")
		}
		if !ok {
			continue
		}
		result.add(Violation{
			Rule:       RuleMixedModule,
			Message:    "file mixes import/export statements with CommonJS",
			Severity:   SeverityWarning,
			Line:       int(statement.Location.StartLine),
			Column:     int(statement.Location.StartColumn),
			Suggestion: "convert the remaining CommonJS so the file is a single module kind",
		})
		break
	}

	return nil
}

func commonJSCapture(match *queries.QueryMatch) (*queries.QueryCapture, string) {
	if c, ok := match.Capture("require.call"); ok {
		return c, RuleNestedRequire
	}
	if c, ok := match.Capture("exports.module"); ok {
		return c, RuleNestedExports
	}
	if c, ok := match.Capture("exports.member"); ok {
		return c, RuleNestedExports
	}
	return nil, ""
}

func ownsReference(rule, kind string) bool {
	switch rule {
	case rewrite.RuleRequireAssignment, rewrite.RuleRequireDeclaration:
		return kind == RuleNestedRequire
	case rewrite.RuleDefaultExport, rewrite.RuleNamedExport:
		return kind == RuleNestedExports
	}
	return false
}

func sortedMatches(matches []queries.QueryMatch) []queries.QueryMatch {
	start := func(m queries.QueryMatch) uint32 {
		if len(m.Captures) == 0 {
			return 0
		}
		s := m.Captures[0].Location.StartByte
		for _, c := range m.Captures[1:] {
			s = min(s, c.Location.StartByte)
		}
		return s
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return start(matches[i]) < start(matches[j])
	})
	return matches
}

func itemSpans(m *ast.Module) []ast.Loc {
	spans := make([]ast.Loc, len(m.Items))
	for i, item := range m.Items {
		spans[i] = item.Loc
	}
	return spans
}

// itemAt returns the index of the item whose range contains offset, or -1.
func itemAt(spans []ast.Loc, offset uint32) int {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].End > offset })
	if i < len(spans) && spans[i].Start <= offset {
		return i
	}
	return -1
}

func printItem(item ast.Item) string {
	out := printer.Print(&ast.Module{Items: []ast.Item{item}}, printer.Options{})
	return strings.TrimSuffix(string(out), "\n")
}

func columnAt(source []byte, offset uint32) int {
	if int(offset) > len(source) {
		return 1
	}
	lineStart := strings.LastIndexByte(string(source[:offset]), '\n') + 1
	return int(offset) - lineStart + 1
}

func firstErrorNode(node *ts.Node) *ts.Node {
	if !node.HasError() {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if bad := firstErrorNode(node.Child(i)); bad != nil {
			return bad
		}
	}
	return node
}

func (r *ValidationResult) add(v Violation) {
	r.Violations = append(r.Violations, v)
}

func (r *ValidationResult) finish() {
	sort.SliceStable(r.Violations, func(i, j int) bool {
		a, b := r.Violations[i], r.Violations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	counts := r.Counts()
	r.Valid = counts[SeverityError] == 0
	r.Summary = summarize(counts)
}

// Counts returns the number of violations per severity.
func (r *ValidationResult) Counts() map[string]int {
	counts := make(map[string]int, 3)
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	return counts
}

func summarize(counts map[string]int) string {
	var parts []string
	for _, severity := range []string{SeverityError, SeverityWarning, SeverityInfo} {
		n := counts[severity]
		if n == 0 {
			continue
		}
		label := severity
		if severity == SeverityInfo {
			label = "convertible item"
		}
		if n > 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	if len(parts) == 0 {
		return "no issues found"
	}
	return strings.Join(parts, ", ")
}
