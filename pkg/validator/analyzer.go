package validator

import (
	"strings"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/parser/queries"
)

// ModuleAnalysis is a compact summary of a file's CommonJS surface.
type ModuleAnalysis struct {
	Requires  []RequireSummary `json:"requires"`
	Exports   []ExportSummary  `json:"exports"`
	ESM       bool             `json:"esm"`
	LineCount int              `json:"line_count"`
}

// RequireSummary is one require call. Source is empty when the argument is
// not a single string literal.
type RequireSummary struct {
	Source   string `json:"source,omitempty"`
	Argument string `json:"argument"`
	Line     int    `json:"line"`
}

// ExportSummary is one reference to module.exports or exports.<name>.
type ExportSummary struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// AnalyzeModule lists every require call and exports reference in code, at
// any depth.
func (v *Validator) AnalyzeModule(code string, lang parser.Language, isTSX bool) (*ModuleAnalysis, error) {
	source := []byte(code)
	analysis := &ModuleAnalysis{LineCount: strings.Count(code, "\n") + 1}

	tree, err := v.parser.Parse(source, lang, isTSX)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	cjsQuery, err := v.queries.GetQuery(lang, isTSX, queries.QueryTypeCommonJS)
	if err != nil {
		return nil, err
	}
	matches, err := v.queries.ExecuteQuery(tree, cjsQuery, source)
	if err != nil {
		return nil, err
	}

	for _, match := range sortedMatches(matches) {
		if call, ok := match.Capture("require.call"); ok {
			summary := RequireSummary{Line: int(call.Location.StartLine)}
			if args, ok := match.Capture("require.arguments"); ok {
				summary.Argument = strings.TrimSuffix(strings.TrimPrefix(args.Text, "("), ")")
				summary.Source, _ = parser.StringArgument(args.Node, source)
			}
			analysis.Requires = append(analysis.Requires, summary)
			continue
		}
		if ref, ok := match.Capture("exports.module"); ok {
			analysis.Exports = append(analysis.Exports, ExportSummary{Name: "default", Line: int(ref.Location.StartLine)})
			continue
		}
		if ref, ok := match.Capture("exports.member"); ok {
			name := ""
			if property, ok := match.Capture("exports.property"); ok {
				name = property.Text
			}
			analysis.Exports = append(analysis.Exports, ExportSummary{Name: name, Line: int(ref.Location.StartLine)})
		}
	}

	esmQuery, err := v.queries.GetQuery(lang, isTSX, queries.QueryTypeESM)
	if err != nil {
		return nil, err
	}
	esmMatches, err := v.queries.ExecuteQuery(tree, esmQuery, source)
	if err != nil {
		return nil, err
	}
	for _, match := range esmMatches {
		if _, ok := match.Capture("import.dynamic"); !ok {
			analysis.ESM = true
			break
		}
	}

	return analysis, nil
}
