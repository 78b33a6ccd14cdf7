package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/validator"
)

func languageOption() mcp.ToolOption {
	return mcp.WithString("language",
		mcp.Description("Grammar of the source. Defaults to javascript."),
		mcp.Enum("javascript", "typescript", "tsx"),
	)
}

func convertModuleTool() mcp.Tool {
	return mcp.NewTool("convert_module",
		mcp.WithDescription("Rewrite top-level CommonJS require and exports statements of a module to ES module syntax. Returns the converted source and a per-item report."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Module source")),
		languageOption(),
		mcp.WithString("mode",
			mcp.Description("best-effort leaves unsupported items unchanged; fail-fast stops at the first one. Defaults to best-effort."),
			mcp.Enum("best-effort", "fail-fast"),
		),
	)
}

func checkModuleTool() mcp.Tool {
	return mcp.NewTool("check_module",
		mcp.WithDescription("Report which CommonJS statements convert cleanly, which cannot be converted and which sit out of reach inside nested code. Never modifies the source."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Module source")),
		languageOption(),
		mcp.WithBoolean("auto_fix", mcp.Description("Also return the source with every convertible item rewritten")),
	)
}

func analyzeModuleTool() mcp.Tool {
	return mcp.NewTool("analyze_module",
		mcp.WithDescription("List every require call and exports reference in a module at any depth, and whether it already uses import or export."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Module source")),
		languageOption(),
	)
}

func listRulesTool() mcp.Tool {
	return mcp.NewTool("list_rules",
		mcp.WithDescription("List the rewrite rules and check findings with their meaning"),
	)
}

// RuleInfo describes a rewrite rule or a check finding.
type RuleInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Severity    string `json:"severity,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	Description string `json:"description,omitempty"`
}

// Rules lists the rewrite rules in the order they are tried, followed by
// the check findings.
func Rules() []RuleInfo {
	var infos []RuleInfo
	for _, r := range rewrite.Rules() {
		infos = append(infos, RuleInfo{
			Name:        r.Name,
			Kind:        "rewrite",
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		})
	}

	return append(infos,
		RuleInfo{Name: validator.RuleConvertible, Kind: "check", Severity: validator.SeverityInfo, Description: "item will be rewritten"},
		RuleInfo{Name: validator.RuleUnsupported, Kind: "check", Severity: validator.SeverityError, Description: "item matches a rule but cannot be rewritten"},
		RuleInfo{Name: validator.RuleNestedRequire, Kind: "check", Severity: validator.SeverityWarning, Description: "require call that no top-level rule reaches"},
		RuleInfo{Name: validator.RuleNestedExports, Kind: "check", Severity: validator.SeverityWarning, Description: "exports reference that no top-level rule reaches"},
		RuleInfo{Name: validator.RuleMixedModule, Kind: "check", Severity: validator.SeverityWarning, Description: "module mixes CommonJS with import or export"},
		RuleInfo{Name: validator.RuleSyntaxError, Kind: "check", Severity: validator.SeverityWarning, Description: "source does not parse cleanly"},
		RuleInfo{Name: validator.RuleUnsupportedLanguage, Kind: "check", Severity: validator.SeverityError, Description: "file extension maps to no grammar"},
	)
}
