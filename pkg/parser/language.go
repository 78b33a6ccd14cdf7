package parser

import (
	"path/filepath"
	"strings"
)

// Language is a grammar family the converter can parse.
type Language int

const (
	LanguageTypeScript Language = iota
	LanguageJavaScript
	LanguageUnknown
)

func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage maps a file extension to a grammar. CommonJS sources use
// .js, .cjs and .jsx as well as .ts and .cts; the ESM extensions are accepted
// too since mixed files are common during a migration.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether filePath needs the TSX grammar.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// ParseLanguageString converts a language name or file extension such as
// "js", "cjs" or "typescript" to a Language.
func ParseLanguageString(lang string) Language {
	switch strings.ToLower(strings.TrimPrefix(lang, ".")) {
	case "typescript", "ts", "cts", "mts", "tsx":
		return LanguageTypeScript
	case "javascript", "js", "cjs", "mjs", "jsx":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// ESMPath returns the path a converted file is written to: .cjs becomes .mjs
// and .cts becomes .mts. Other extensions are kept.
func ESMPath(filePath string) string {
	ext := filepath.Ext(filePath)
	base := strings.TrimSuffix(filePath, ext)

	switch strings.ToLower(ext) {
	case ".cjs":
		return base + ".mjs"
	case ".cts":
		return base + ".mts"
	default:
		return filePath
	}
}

// SupportedLanguages returns the parseable languages.
func SupportedLanguages() []Language {
	return []Language{LanguageTypeScript, LanguageJavaScript}
}
