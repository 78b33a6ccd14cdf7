package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/cjs2esm/pkg/mcp"
	"github.com/gnana997/cjs2esm/pkg/mcplog"
)

func serveCmd(ro *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve the convert_module, check_module, analyze_module and list_rules tools
over the Model Context Protocol on stdin and stdout.

With --log-file every tool call is appended to a JSONL file. Module source is
never written to the log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, ro, logFile)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "append a JSONL record per tool call to this file")

	return cmd
}

func runServe(cmd *cobra.Command, ro *rootOptions, logFile string) error {
	cfg, logger, err := ro.setup(cmd)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, logger)
	defer eng.Close()

	callLog, err := mcplog.NewLogger(logFile)
	if err != nil {
		return err
	}
	if callLog != nil {
		defer callLog.Close()
	}

	srv, err := mcpserver.NewServer(eng.parsers, eng.validator(), callLog)
	if err != nil {
		return err
	}

	logger.Info("Serving MCP on stdio", "version", version)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
