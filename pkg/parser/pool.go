package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool holds up to maxSize parsers for one grammar. Idle parsers wait
// in a buffered channel; new ones are created on demand until the cap is
// reached, after which acquire blocks for a release.
type parserPool struct {
	key     poolKey
	langPtr unsafe.Pointer
	idle    chan *ts.Parser
	maxSize int
	logger  *slog.Logger

	mutex   sync.Mutex
	created int
}

func newParserPool(key poolKey, langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		key:     key,
		langPtr: langPtr,
		idle:    make(chan *ts.Parser, maxSize),
		maxSize: maxSize,
		logger:  logger,
	}
}

func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}

	p.mutex.Lock()
	if p.created >= p.maxSize {
		p.mutex.Unlock()
		return <-p.idle, nil
	}

	parser := ts.NewParser()
	if parser == nil {
		p.mutex.Unlock()
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		p.mutex.Unlock()
		return nil, fmt.Errorf("failed to set language %s: %w", p.key.lang, err)
	}
	p.created++
	created := p.created
	p.mutex.Unlock()

	p.logger.Debug("Created parser",
		"language", p.key.lang.String(),
		"isTSX", p.key.isTSX,
		"created", created)

	return parser, nil
}

func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}

	select {
	case p.idle <- parser:
	default:
		parser.Close()
		p.logger.Warn("Parser pool full, closing parser",
			"language", p.key.lang.String())
	}
}

// close closes all idle parsers. Parsers still checked out are not tracked.
func (p *parserPool) close() {
	close(p.idle)

	closed := 0
	for parser := range p.idle {
		parser.Close()
		closed++
	}

	p.logger.Debug("Closed parser pool",
		"language", p.key.lang.String(),
		"isTSX", p.key.isTSX,
		"closed", closed)
}

func (p *parserPool) createdCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.created
}
