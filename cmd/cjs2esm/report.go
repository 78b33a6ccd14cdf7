package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gnana997/cjs2esm/pkg/validator"
	"github.com/gnana997/cjs2esm/pkg/workspace"
)

// diffContext is the number of unchanged lines shown around a change.
const diffContext = 2

var (
	addColor    = color.New(color.FgGreen)
	removeColor = color.New(color.FgRed)
	hunkColor   = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	failColor   = color.New(color.FgRed)
)

// lineDiff renders a line diff of from and to. Runs of unchanged lines are
// trimmed to diffContext lines around each change. It returns "" when the
// inputs are equal.
func lineDiff(name string, from, to string) string {
	if from == to {
		return ""
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", name, name)

	for i, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range text {
				sb.WriteString(removeColor.Sprint("-" + line))
				sb.WriteByte('\n')
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range text {
				sb.WriteString(addColor.Sprint("+" + line))
				sb.WriteByte('\n')
			}
		case diffmatchpatch.DiffEqual:
			head, tail := diffContext, diffContext
			if i == 0 {
				head = 0
			}
			if i == len(diffs)-1 {
				tail = 0
			}
			if len(text) <= head+tail {
				writeContext(&sb, text)
				continue
			}
			writeContext(&sb, text[:head])
			sb.WriteString(hunkColor.Sprintf("@@ %d unchanged lines @@", len(text)-head-tail))
			sb.WriteByte('\n')
			writeContext(&sb, text[len(text)-tail:])
		}
	}
	return sb.String()
}

func splitLines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func writeContext(sb *strings.Builder, lines []string) {
	for _, line := range lines {
		sb.WriteString(" " + line + "\n")
	}
}

// renderScanSummary writes the totals of a workspace run.
func renderScanSummary(w io.Writer, stats *workspace.ScanStats, dryRun bool) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Files discovered", stats.FilesDiscovered},
		{"Converted", stats.FilesChanged},
		{"Partially converted", stats.FilesPartial},
		{"Unchanged", stats.FilesUnchanged},
		{"Failed", stats.FilesFailed},
		{"Items rewritten", stats.ItemsRewritten},
		{"Items failed", stats.ItemsFailed},
		{"Read", humanize.Bytes(uint64(stats.BytesRead))},
	})
	if !dryRun {
		tbl.AppendRows([]table.Row{
			{"Files written", stats.FilesWritten},
			{"Written", humanize.Bytes(uint64(stats.BytesWritten))},
		})
	}
	tbl.AppendFooter(table.Row{"Duration", fmt.Sprintf("%s (%.0f files/s)", stats.Duration.Round(time.Millisecond), stats.FilesPerSecond)})
	tbl.Render()
}

// renderScanProblems lists file errors and unconvertible items.
func renderScanProblems(w io.Writer, root string, stats *workspace.ScanStats) {
	if len(stats.Errors) == 0 && len(stats.ItemFailures) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Line", "Rule", "Problem"})

	for _, fe := range stats.Errors {
		tbl.AppendRow(table.Row{relPath(root, fe.FilePath), "", "", failColor.Sprint(fe.Error.Error())})
	}
	for _, f := range stats.ItemFailures {
		tbl.AppendRow(table.Row{relPath(root, f.FilePath), f.Err.Loc.Line, f.Err.Rule, f.Err.Err.Error()})
	}
	tbl.Render()
}

// renderViolations writes one table row per finding.
func renderViolations(w io.Writer, result *validator.ValidationResult) {
	status := okColor.Sprint("ok")
	if !result.Valid {
		status = failColor.Sprint("FAIL")
	}
	fmt.Fprintf(w, "%s %s: %s\n", status, result.FilePath, result.Summary)

	if len(result.Violations) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.AppendHeader(table.Row{"Pos", "Severity", "Rule", "Message"})
	for _, v := range result.Violations {
		tbl.AppendRow(table.Row{fmt.Sprintf("%d:%d", v.Line, v.Column), severityText(v.Severity), v.Rule, v.Message})
	}
	tbl.Render()
}

func severityText(severity string) string {
	switch severity {
	case validator.SeverityError:
		return failColor.Sprint(severity)
	case validator.SeverityWarning:
		return warnColor.Sprint(severity)
	default:
		return severity
	}
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
