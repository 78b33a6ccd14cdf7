package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/validator"
)

// modulePath names sources passed inline in results.
const modulePath = "<input>"

type convertResponse struct {
	Output    string        `json:"output"`
	Changed   bool          `json:"changed"`
	Mode      string        `json:"mode"`
	Items     int           `json:"items"`
	Rewritten int           `json:"rewritten"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Failures  []itemFailure `json:"failures,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type itemFailure struct {
	Index   int    `json:"index"`
	Line    uint32 `json:"line"`
	Rule    string `json:"rule"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type checkResponse struct {
	*validator.ValidationResult
	FixedCode    string `json:"fixed_code,omitempty"`
	FixesApplied int    `json:"fixes_applied,omitempty"`
}

func (s *Server) handleConvertModule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	lang, isTSX, err := languageArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := rewrite.ParseMode(req.GetString("mode", rewrite.BestEffort.String()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, convErr := s.converters[mode].ConvertSource(modulePath, []byte(code), lang, isTSX)
	if result == nil {
		return mcp.NewToolResultErrorFromErr("conversion failed", convErr), nil
	}

	report := result.Report
	resp := convertResponse{
		Output:    string(result.Output),
		Changed:   result.Changed,
		Mode:      mode.String(),
		Items:     report.Items,
		Rewritten: report.Rewritten,
		Unchanged: report.Unchanged,
		Failed:    report.Failed,
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, itemFailure{
			Index:   f.Index,
			Line:    f.Loc.Line,
			Rule:    f.Rule,
			Kind:    failureKind(f),
			Message: f.Err.Error(),
		})
	}
	if convErr != nil {
		resp.Error = convErr.Error()
	}

	out, err := jsonResult(resp)
	if err == nil && convErr != nil {
		out.IsError = true
	}
	return out, err
}

func (s *Server) handleCheckModule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.validator == nil {
		return mcp.NewToolResultError("checking is not available"), nil
	}
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	lang, isTSX, err := languageArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := checkResponse{ValidationResult: s.validator.ValidateSource(modulePath, []byte(code), lang, isTSX)}
	if req.GetBool("auto_fix", false) {
		resp.FixedCode, resp.FixesApplied = validator.ApplyFixes(code, resp.Fixes())
	}
	return jsonResult(resp)
}

func (s *Server) handleAnalyzeModule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.validator == nil {
		return mcp.NewToolResultError("analysis is not available"), nil
	}
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	lang, isTSX, err := languageArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	analysis, err := s.validator.AnalyzeModule(code, lang, isTSX)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("analysis failed", err), nil
	}
	return jsonResult(analysis)
}

func (s *Server) handleListRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(Rules())
}

// languageArg reads the optional language argument. "tsx" selects the
// TypeScript grammar with JSX.
func languageArg(req mcp.CallToolRequest) (parser.Language, bool, error) {
	name := req.GetString("language", "javascript")
	if name == "tsx" {
		return parser.LanguageTypeScript, true, nil
	}
	lang := parser.ParseLanguageString(name)
	if lang == parser.LanguageUnknown {
		return lang, false, fmt.Errorf("unsupported language: %s", name)
	}
	return lang, false, nil
}

func failureKind(err *rewrite.ItemError) string {
	if errors.Is(err, rewrite.ErrMalformedRequireArgument) {
		return "malformed-require-argument"
	}
	return "unsupported-pattern"
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
