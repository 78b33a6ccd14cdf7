// Package converter turns one CommonJS source file into an ES module by
// parsing it, rewriting its top-level items and printing the result.
package converter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/printer"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

// Converter parses each source once, rewrites it and prints it. Results of
// successful conversions are cached by content hash, so unchanged files in
// watch mode are not parsed again.
//
// A Converter is safe for concurrent use. It does not own the parser
// manager.
//
// Usage:
//
//	conv, err := NewConverter(parserManager, DefaultOptions(), logger)
//	result, err := conv.Convert("lib/index.cjs", source)
//	os.Stdout.Write(result.Output)
type Converter struct {
	parserManager *parser.ParserManager
	cache         *lru.Cache[cacheKey, *Result]
	options       Options
	logger        *slog.Logger
}

type cacheKey struct {
	hash  string
	lang  parser.Language
	isTSX bool
}

// NewConverter creates a converter backed by pm.
func NewConverter(pm *parser.ParserManager, opts Options, logger *slog.Logger) (*Converter, error) {
	if pm == nil {
		return nil, fmt.Errorf("parser manager is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Converter{
		parserManager: pm,
		options:       opts,
		logger:        logger,
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[cacheKey, *Result](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// Options returns the converter's options.
func (c *Converter) Options() Options {
	return c.options
}

// Convert converts source, choosing the grammar from the extension of path.
//
// In fail-fast mode a failing item is returned as a *rewrite.ItemError
// wrapped in the error, together with the partial Result. In best-effort
// mode the error is only non-nil when the source could not be processed at
// all.
func (c *Converter) Convert(path string, source []byte) (*Result, error) {
	lang := parser.DetectLanguage(path)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return c.ConvertSource(path, source, lang, parser.IsTSXFile(path))
}

// ConvertSource converts source with an explicit grammar. path is only used
// for logging and the Result.
func (c *Converter) ConvertSource(path string, source []byte, lang parser.Language, isTSX bool) (*Result, error) {
	if lang != parser.LanguageTypeScript {
		isTSX = false
	}
	key := cacheKey{hash: ComputeContentHash(source), lang: lang, isTSX: isTSX}

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("Conversion served from cache", "file", path)
			result := *cached
			result.Path = path
			result.FromCache = true
			return &result, nil
		}
	}

	tree, err := c.parserManager.Parse(source, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	syntaxErrors := root.HasError()
	if syntaxErrors && c.options.RejectSyntaxErrors {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}

	module := parser.ConvertTree(root, source)
	report, rewriteErr := rewrite.Rewrite(module, rewrite.Options{
		Mode:   c.options.Mode,
		Logger: c.logger.With("file", path),
	})

	result := &Result{
		Path:     path,
		Language: lang,
		Output: printer.Print(module, printer.Options{
			BlankLines: c.options.BlankLines,
			Source:     source,
		}),
		Report:       report,
		Changed:      report.Changed(),
		ContentHash:  key.hash,
		SyntaxErrors: syntaxErrors,
	}

	if rewriteErr != nil {
		return result, fmt.Errorf("failed to convert %s: %w", path, rewriteErr)
	}

	c.logger.Debug("Converted file",
		"file", path,
		"language", lang.String(),
		"items", report.Items,
		"rewritten", report.Rewritten,
		"failed", report.Failed)

	if c.cache != nil {
		c.cache.Add(key, result)
	}
	return result, nil
}

// ConvertFile reads and converts the file at path.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.Convert(path, source)
}

// CacheLen returns the number of cached results.
func (c *Converter) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge drops every cached result.
func (c *Converter) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// ComputeContentHash returns the hex SHA-256 of content.
func ComputeContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
