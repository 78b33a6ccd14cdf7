// Package rewrite converts CommonJS export and require statements at the top
// level of a module into native import and export declarations.
//
// Each top-level statement is offered to the rules in order. The first rule
// whose shape matches builds a replacement declaration which takes the
// statement's slot. Statements no rule matches are left untouched, so the
// number and order of items never change.
package rewrite

import (
	"errors"
	"log/slog"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

// Mode selects how an item that matched a rule but could not be rewritten
// is handled.
type Mode uint8

const (
	// FailFast stops at the first failing item and returns its error. Items
	// rewritten before it keep their new form.
	FailFast Mode = iota

	// BestEffort leaves failing items unchanged, records them in the report
	// and continues.
	BestEffort
)

func (m Mode) String() string {
	if m == BestEffort {
		return "best-effort"
	}
	return "fail-fast"
}

// ParseMode accepts "fail-fast" or "best-effort".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fail-fast", "failfast", "":
		return FailFast, nil
	case "best-effort", "besteffort":
		return BestEffort, nil
	default:
		return FailFast, errors.New("unknown rewrite mode: " + s)
	}
}

// Options configures Rewrite.
type Options struct {
	Mode Mode

	// Logger receives one debug record per rewritten item and one warning
	// per failed item. Nil uses slog.Default().
	Logger *slog.Logger
}

// Status is the result of processing one item.
type Status uint8

const (
	StatusUnchanged Status = iota
	StatusRewritten
	StatusFailed

	// StatusNotVisited marks items after a fail-fast abort.
	StatusNotVisited
)

func (s Status) String() string {
	switch s {
	case StatusRewritten:
		return "rewritten"
	case StatusFailed:
		return "failed"
	case StatusNotVisited:
		return "not-visited"
	default:
		return "unchanged"
	}
}

// ItemOutcome records what happened to one top-level item.
type ItemOutcome struct {
	Index  int
	Line   uint32
	Rule   string
	Status Status
	Err    *ItemError
}

// Report summarizes a Rewrite call.
type Report struct {
	Items     int
	Rewritten int
	Unchanged int
	Failed    int

	// Outcomes has one entry per item in module order.
	Outcomes []ItemOutcome
	Failures []*ItemError
}

// Changed reports whether any item was replaced.
func (r *Report) Changed() bool {
	return r.Rewritten > 0
}

// Rewrite transforms m in place. In FailFast mode the first failure is
// returned as an *ItemError together with the partial report; in BestEffort
// mode the error is always nil and failures are listed in the report.
func Rewrite(m *ast.Module, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &Report{}
	if m == nil {
		return report, nil
	}

	report.Items = len(m.Items)
	report.Outcomes = make([]ItemOutcome, len(m.Items))
	for i := range m.Items {
		report.Outcomes[i] = ItemOutcome{Index: i, Line: m.Items[i].Loc.Line, Status: StatusNotVisited}
	}

	for i := range m.Items {
		item := &m.Items[i]
		outcome := &report.Outcomes[i]

		ruleName, decl, err := rewriteItem(item)
		outcome.Rule = ruleName

		switch {
		case err != nil:
			itemErr := &ItemError{Index: i, Loc: item.Loc, Rule: ruleName, Err: err}
			outcome.Status = StatusFailed
			outcome.Err = itemErr
			report.Failed++
			report.Failures = append(report.Failures, itemErr)

			logger.Warn("Item not rewritten",
				"index", i,
				"line", item.Loc.Line,
				"rule", ruleName,
				"error", err)

			if opts.Mode == FailFast {
				return report, itemErr
			}

		case decl != nil:
			*item = ast.DeclItem(*decl)
			outcome.Status = StatusRewritten
			report.Rewritten++

			logger.Debug("Item rewritten",
				"index", i,
				"line", item.Loc.Line,
				"rule", ruleName)

		default:
			outcome.Status = StatusUnchanged
			report.Unchanged++
		}
	}

	return report, nil
}

// rewriteItem returns the matching rule's name and its replacement. A nil
// declaration with a nil error means no rule applies.
func rewriteItem(item *ast.Item) (string, *ast.ModuleDecl, error) {
	r, build, ok := matchRule(item.Stmt)
	if !ok {
		return "", nil, nil
	}
	decl, err := build()
	if err != nil {
		return r.info.Name, nil, err
	}
	return r.info.Name, &decl, nil
}

// matchRule returns the first rule whose shape matches stmt, along with the
// builder for its replacement. Nothing is built here.
func matchRule(stmt *ast.Stmt) (*rule, synthesize, bool) {
	if stmt == nil {
		return nil, nil, false
	}
	for i := range rules {
		if build, ok := rules[i].match(stmt); ok {
			return &rules[i], build, true
		}
	}
	return nil, nil, false
}
