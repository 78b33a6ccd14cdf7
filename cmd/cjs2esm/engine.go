package main

import (
	"log/slog"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/parser/queries"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/util"
	"github.com/gnana997/cjs2esm/pkg/validator"
	"github.com/gnana997/cjs2esm/pkg/workspace"
)

// engine owns the parser and query pools shared by a command.
type engine struct {
	cfg     *Config
	logger  *slog.Logger
	parsers *parser.ParserManager
	queries *queries.QueryManager
	sources util.SourceCache
}

func newEngine(cfg *Config, logger *slog.Logger) *engine {
	pm := parser.NewParserManagerWithOptions(logger, parser.Options{PoolSize: cfg.Workers})
	return &engine{
		cfg:     cfg,
		logger:  logger,
		parsers: pm,
		queries: queries.NewQueryManager(pm, logger),
	}
}

func (e *engine) converter(mode rewrite.Mode) (*converter.Converter, error) {
	opts := converter.DefaultOptions()
	opts.Mode = mode
	if e.cfg.CacheSize != 0 {
		opts.CacheSize = e.cfg.CacheSize
	}
	return converter.NewConverter(e.parsers, opts, e.logger)
}

func (e *engine) validator() *validator.Validator {
	return validator.NewValidator(e.parsers, e.queries, e.logger)
}

func (e *engine) scanner(mode rewrite.Mode) (*workspace.Scanner, error) {
	conv, err := e.converter(mode)
	if err != nil {
		return nil, err
	}
	ledger, err := workspace.NewLedger(0, e.logger)
	if err != nil {
		return nil, err
	}

	if e.sources == nil {
		sc := util.DefaultSourceCacheConfig()
		sc.Logger = e.logger
		e.sources = util.NewSourceCache(sc)
	}
	return workspace.NewScanner(conv, e.sources, ledger, e.logger), nil
}

func (e *engine) Close() {
	if e.sources != nil {
		if err := e.sources.Close(); err != nil {
			e.logger.Warn("Failed to release sources", "error", err)
		}
	}
	e.queries.Close()
	e.parsers.Close()
}
