package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/cjs2esm/pkg/metrics"
	"github.com/gnana997/cjs2esm/pkg/workspace"
)

type watchOptions struct {
	scanOptions
	metricsAddr string
	debounce    time.Duration
}

func watchCmd(ro *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Convert a directory and keep it converted as files change",
		Long: `Convert every module under a directory, then convert each file again when it
changes. Requires --out-dir or --write.

With --metrics-addr, Prometheus metrics are served on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, ro, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "write converted files under this directory")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "convert files in place (.cjs becomes .mjs)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "leave a file untouched at its first unconvertible item")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "glob of files to convert (repeatable)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "glob of files to skip (repeatable)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "quiet period before a changed file is converted")
	cmd.MarkFlagsMutuallyExclusive("out-dir", "write")

	return cmd
}

func runWatch(cmd *cobra.Command, ro *rootOptions, root string, opts watchOptions) error {
	cfg, logger, err := ro.setup(cmd)
	if err != nil {
		return err
	}
	if root, err = filepath.Abs(root); err != nil {
		return err
	}

	wsOpts := opts.workspaceOptions(cfg)
	if wsOpts.DryRun {
		return errors.New("watch needs --out-dir or --write")
	}

	eng := newEngine(cfg, logger)
	defer eng.Close()

	scanner, err := eng.scanner(cfg.RewriteMode(opts.failFast))
	if err != nil {
		return err
	}

	m := metrics.New()
	scanner.SetRecorder(m)

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		srv, err := metrics.Serve(addr, m, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(ctx); err != nil {
				logger.Warn("Failed to stop metrics server", "error", err)
			}
		}()
		logger.Info("Serving metrics", "addr", srv.Addr())
	}

	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	stats, err := scanner.ConvertWorkspace(ctx, root, wsOpts, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if !ro.quiet {
		renderScanSummary(stdout, stats, false)
		renderScanProblems(stdout, root, stats)
	}

	watchOpts := workspace.DefaultWatchOptions()
	watchOpts.Debounce = cfg.Debounce()
	if opts.debounce > 0 {
		watchOpts.Debounce = opts.debounce
	}

	watcher, err := workspace.NewWatcher(scanner, watchOpts, logger)
	if err != nil {
		return err
	}
	if !ro.quiet {
		watcher.OnResult = func(r workspace.FileResult) {
			printWatchResult(cmd, root, r)
		}
	}
	if err := watcher.Start(ctx, root, wsOpts); err != nil {
		return err
	}

	<-ctx.Done()
	return watcher.Stop()
}

func printWatchResult(cmd *cobra.Command, root string, r workspace.FileResult) {
	w := cmd.OutOrStdout()
	name := relPath(root, r.FilePath)

	switch {
	case r.Err != nil:
		failColor.Fprintf(w, "%s  %s: %v\n", time.Now().Format(time.TimeOnly), name, r.Err)
	case r.Result.Report.Failed > 0:
		warnColor.Fprintf(w, "%s  %s: %d rewritten, %d failed\n",
			time.Now().Format(time.TimeOnly), name, r.Result.Report.Rewritten, r.Result.Report.Failed)
	default:
		fmt.Fprintf(w, "%s  %s: %d rewritten\n", time.Now().Format(time.TimeOnly), name, r.Result.Report.Rewritten)
	}
}
