package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/validator"
)

func checkCmd(ro *rootOptions) *cobra.Command {
	var format string
	var fix bool

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Report what can and cannot be converted",
		Long: `Check modules without changing them.

Each top-level CommonJS statement is reported as convertible or unsupported.
require calls and exports references nested inside functions or blocks are
reported as warnings, since only top-level statements are rewritten.

The command exits with status 2 when any file has an unsupported item.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, ro, args, format, fix)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&fix, "fix", false, "write the convertible items to the ESM path of each file")

	return cmd
}

func runCheck(cmd *cobra.Command, ro *rootOptions, paths []string, format string, fix bool) error {
	if format != "text" && format != formatJSON {
		return fmt.Errorf("unknown format: %s", format)
	}
	cfg, logger, err := ro.setup(cmd)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, logger)
	defer eng.Close()
	v := eng.validator()

	stdout := cmd.OutOrStdout()
	results := make([]*validator.ValidationResult, 0, len(paths))
	failed := false

	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}

		result := v.Validate(path, source)
		results = append(results, result)
		failed = failed || !result.Valid

		if fix {
			if fixes := result.Fixes(); len(fixes) > 0 {
				fixed, n := validator.ApplyFixes(string(source), fixes)
				target := parser.ESMPath(path)
				if err := os.WriteFile(target, []byte(fixed), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", target, err)
				}
				logger.Info("Applied fixes", "file", path, "output", target, "fixes", n)
			}
		}

		if format == "text" && !ro.quiet {
			renderViolations(stdout, result)
		}
	}

	if format == formatJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	}

	if failed {
		return errCheckFailed
	}
	return nil
}
