package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/mcplog"
	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/validator"
)

const serverVersion = "0.1.0-dev"

// Server exposes conversion and checking as MCP tools.
type Server struct {
	mcpServer  *server.MCPServer
	converters map[rewrite.Mode]*converter.Converter
	validator  *validator.Validator // may be nil
	logger     *mcplog.Logger       // may be nil
}

// NewServer creates a server converting with pm. The validator and the call
// logger are optional; without a validator the check and analyze tools
// return errors.
func NewServer(pm *parser.ParserManager, v *validator.Validator, logger *mcplog.Logger) (*Server, error) {
	s := &Server{
		converters: make(map[rewrite.Mode]*converter.Converter, 2),
		validator:  v,
		logger:     logger,
	}

	for _, mode := range []rewrite.Mode{rewrite.BestEffort, rewrite.FailFast} {
		opts := converter.DefaultOptions()
		opts.Mode = mode
		conv, err := converter.NewConverter(pm, opts, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s converter: %w", mode, err)
		}
		s.converters[mode] = conv
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		serverOpts = append(serverOpts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("cjs2esm", serverVersion, serverOpts...)
	s.mcpServer.AddTools(
		server.ServerTool{Tool: convertModuleTool(), Handler: s.handleConvertModule},
		server.ServerTool{Tool: checkModuleTool(), Handler: s.handleCheckModule},
		server.ServerTool{Tool: analyzeModuleTool(), Handler: s.handleAnalyzeModule},
		server.ServerTool{Tool: listRulesTool(), Handler: s.handleListRules},
	)

	return s, nil
}

// ServeStdio serves MCP on stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
