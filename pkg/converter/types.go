package converter

import (
	"errors"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

var (
	// ErrSyntax is returned when the source does not parse cleanly and
	// Options.RejectSyntaxErrors is set.
	ErrSyntax = errors.New("source contains syntax errors")

	// ErrUnsupportedLanguage is returned for paths whose extension maps to
	// no grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Options configures a Converter.
type Options struct {
	Mode rewrite.Mode

	// CacheSize is the number of results kept in the LRU cache. Zero uses
	// DefaultCacheSize; a negative value disables caching.
	CacheSize int

	// RejectSyntaxErrors fails files whose tree contains error nodes instead
	// of converting the statements that did parse.
	RejectSyntaxErrors bool

	// BlankLines keeps blank lines between top-level items.
	BlankLines bool
}

// DefaultCacheSize is the result cache capacity when Options.CacheSize is
// zero.
const DefaultCacheSize = 512

// DefaultOptions converts in best-effort mode and preserves blank lines.
func DefaultOptions() Options {
	return Options{
		Mode:       rewrite.BestEffort,
		CacheSize:  DefaultCacheSize,
		BlankLines: true,
	}
}

// Result is the outcome of converting one source.
type Result struct {
	Path     string
	Language parser.Language

	// Output is the printed module. In fail-fast mode it reflects the items
	// rewritten before the failing one.
	Output []byte
	Report *rewrite.Report

	// Changed is true when at least one item was rewritten.
	Changed bool

	// ContentHash is the hex SHA-256 of the input source.
	ContentHash string

	// FromCache is true when the result was served from the cache.
	FromCache bool

	// SyntaxErrors is true when the tree contained error nodes.
	SyntaxErrors bool
}

// Failures returns the per-item failures of the conversion.
func (r *Result) Failures() []*rewrite.ItemError {
	if r.Report == nil {
		return nil
	}
	return r.Report.Failures
}
