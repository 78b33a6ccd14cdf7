package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/cjs2esm/pkg/workspace"
)

type scanOptions struct {
	outDir   string
	write    bool
	dryRun   bool
	diff     bool
	failFast bool
	include  []string
	exclude  []string
	workers  int
}

func scanCmd(ro *rootOptions) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Convert every module under a directory",
		Long: `Convert every JavaScript and TypeScript module under a directory in parallel.

Without --out-dir or --write nothing is written and the command reports what
would change. node_modules, build output and minified files are skipped.

Examples:
  cjs2esm scan .                          # dry run
  cjs2esm scan --diff src
  cjs2esm scan --out-dir esm .
  cjs2esm scan --write --exclude "test/**" .
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, ro, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "write converted files under this directory")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "convert files in place (.cjs becomes .mjs)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a line diff for every changed file")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "leave a file untouched at its first unconvertible item")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "glob of files to convert (repeatable)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "glob of files to skip (repeatable)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "files converted concurrently (default: CPU based)")
	cmd.MarkFlagsMutuallyExclusive("out-dir", "write")

	return cmd
}

func (o scanOptions) workspaceOptions(cfg *Config) workspace.ScanOptions {
	opts := workspace.ScanOptions{
		Include: cfg.Include,
		Exclude: cfg.Exclude,
		OutDir:  cfg.OutDir,
		Write:   o.write,
		DryRun:  o.dryRun,
		Workers: cfg.Workers,
	}
	if len(o.include) > 0 {
		opts.Include = o.include
	}
	opts.Exclude = append(opts.Exclude, o.exclude...)
	if o.outDir != "" {
		opts.OutDir = o.outDir
	}
	if o.write {
		opts.OutDir = ""
	}
	if o.workers > 0 {
		opts.Workers = o.workers
	}
	if opts.OutDir == "" && !opts.Write {
		opts.DryRun = true
	}
	return opts
}

func runScan(cmd *cobra.Command, ro *rootOptions, root string, opts scanOptions) error {
	cfg, logger, err := ro.setup(cmd)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if root, err = filepath.Abs(root); err != nil {
		return err
	}

	eng := newEngine(cfg, logger)
	defer eng.Close()

	scanner, err := eng.scanner(cfg.RewriteMode(opts.failFast))
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	wsOpts := opts.workspaceOptions(cfg)
	if opts.diff {
		wsOpts.OnResult = func(r workspace.FileResult) {
			if r.Err == nil && r.Result.Changed {
				fmt.Fprint(stdout, lineDiff(relPath(root, r.FilePath), string(r.Source), string(r.Result.Output)))
			}
		}
	}

	stats, err := scanner.ConvertWorkspace(cmd.Context(), root, wsOpts, func(done, total int, file string) {
		logger.Debug("Converted file", "done", done, "total", total, "file", file)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if !ro.quiet {
		renderScanSummary(stdout, stats, wsOpts.DryRun)
		renderScanProblems(stdout, root, stats)
	}
	if err != nil {
		return err
	}
	if stats.FilesFailed > 0 {
		return fmt.Errorf("%w: %d of %d files", errConversionFailed, stats.FilesFailed, stats.FilesDiscovered)
	}
	return nil
}
