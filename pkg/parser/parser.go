package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// poolKey identifies a parser pool by grammar.
type poolKey struct {
	lang  Language
	isTSX bool
}

// ParserManager hands out tree-sitter parsers for the JavaScript and
// TypeScript grammars.
//
// Pools are created lazily, one per grammar, and sized from the CPU count
// unless Options.PoolSize overrides it. The manager owns the pools and must
// be closed via Close(). Callers own every Tree returned by Parse.
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	module, err := manager.ParseModule(src, LanguageJavaScript, false)
type ParserManager struct {
	pools    map[poolKey]*parserPool
	mutex    sync.RWMutex
	poolSize int
	logger   *slog.Logger

	parses   atomic.Int64
	errorful atomic.Int64
}

// Options configures a ParserManager.
type Options struct {
	// PoolSize caps the parsers per grammar. Zero selects the CPU-based
	// default.
	PoolSize int
}

// NewParserManager creates a manager with default pool sizing.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithOptions(logger, Options{})
}

// NewParserManagerWithOptions creates a manager with explicit options. The
// pool size should match the number of workers that parse concurrently so
// that workers never block on a parser.
func NewParserManagerWithOptions(logger *slog.Logger, opts Options) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: getPoolSize(opts.PoolSize),
		logger:   logger,
	}
}

// Parse parses source with the grammar for lang. isTSX selects the TSX
// grammar and is ignored for JavaScript, whose grammar always accepts JSX.
//
// Trees with syntax errors are still returned; the error nodes are logged at
// warn level. The caller must Close the returned tree.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}
	pm.parses.Add(1)

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree for %s source", lang)
	}

	if tree.RootNode().HasError() {
		pm.errorful.Add(1)
		pm.logger.Warn("Parse tree contains errors",
			"language", lang.String(),
			"isTSX", isTSX)
	}

	return tree, nil
}

// ParseFile parses source using the grammar selected by the extension of
// filePath. The caller must Close the returned tree.
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// DumpTree returns the S-expression of the concrete syntax tree for source.
// It shows which node kinds the grammar produces when a statement is not
// recognized the way it was expected to be.
func (pm *ParserManager) DumpTree(source []byte, lang Language, isTSX bool) (string, error) {
	tree, err := pm.Parse(source, lang, isTSX)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	return tree.RootNode().ToSexp(), nil
}

// Close releases every parser. The manager cannot be used afterwards.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.logger.Debug("Closing parser manager",
		"pools", len(pm.pools),
		"parses", pm.parses.Load())

	for _, pool := range pm.pools {
		pool.close()
	}
	pm.pools = make(map[poolKey]*parserPool)

	return nil
}

// getOrCreatePool returns the pool for a grammar, creating it on first use.
func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	if lang == LanguageJavaScript {
		isTSX = false
	}
	key := poolKey{lang: lang, isTSX: isTSX}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := pm.GetLanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(key, langPtr, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("Created parser pool",
		"language", lang.String(),
		"isTSX", isTSX,
		"maxSize", pm.poolSize)

	return pool, nil
}

// GetLanguagePointer returns the grammar for lang. QueryManager uses it to
// compile queries against the same grammar the trees were parsed with.
func (pm *ParserManager) GetLanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang.String())
	}
}

// GetStats returns parser usage counters.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	created := 0
	for _, pool := range pm.pools {
		created += pool.createdCount()
	}

	return ParserStats{
		ParsersCreated:     created,
		ParsesCalled:       int(pm.parses.Load()),
		TreesWithErrors:    int(pm.errorful.Load()),
		PoolSizePerGrammar: pm.poolSize,
	}
}

// ParserStats contains parser usage counters.
type ParserStats struct {
	ParsersCreated  int
	ParsesCalled    int
	TreesWithErrors int

	PoolSizePerGrammar int
}
