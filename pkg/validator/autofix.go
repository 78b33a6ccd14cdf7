package validator

import (
	"errors"
	"strings"

	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

// AutoFix replaces the source text of one top-level item with its ES module
// form.
type AutoFix struct {
	Line    int    `json:"line"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
	Reason  string `json:"reason"`
}

// ApplyFixes replaces each fix's OldText with NewText, first occurrence
// after the previous fix. Fixes must be in source order. It returns the
// number of fixes applied.
func ApplyFixes(source string, fixes []AutoFix) (string, int) {
	var sb strings.Builder
	applied := 0
	rest := source

	for _, fix := range fixes {
		i := strings.Index(rest, fix.OldText)
		if i < 0 || fix.OldText == "" {
			continue
		}
		sb.WriteString(rest[:i])
		sb.WriteString(fix.NewText)
		rest = rest[i+len(fix.OldText):]
		applied++
	}
	sb.WriteString(rest)

	return sb.String(), applied
}

// Fixes collects the fixes attached to convertible violations.
func (r *ValidationResult) Fixes() []AutoFix {
	var fixes []AutoFix
	for _, v := range r.Violations {
		if v.Fix != nil {
			fixes = append(fixes, *v.Fix)
		}
	}
	return fixes
}

func suggestionFor(err *rewrite.ItemError) string {
	switch {
	case errors.Is(err, rewrite.ErrMalformedRequireArgument):
		return "pass a single string literal to require"
	case err.Rule == rewrite.RuleRequireDeclaration:
		return "declare one binding per statement with an identifier or a flat object pattern"
	case err.Rule == rewrite.RuleRequireAssignment:
		return "assign require to an identifier or a flat object pattern"
	case err.Rule == rewrite.RuleNamedExport:
		return "export under a name that is not a reserved word"
	default:
		return ""
	}
}
