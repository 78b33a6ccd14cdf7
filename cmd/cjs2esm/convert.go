package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnana997/cjs2esm/pkg/parser"
)

type convertOptions struct {
	write    bool
	diff     bool
	out      string
	failFast bool
	dumpTree bool
	language string
}

func convertCmd(ro *rootOptions) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <file|->",
		Short: "Convert one module and print the result",
		Long: `Convert the top-level CommonJS statements of one module.

The converted source is printed to stdout unless --write or --out is given.
Items that cannot be converted are left unchanged and listed on stderr; with
--fail-fast the first one aborts the conversion.

Examples:
  cjs2esm convert lib/index.cjs
  cjs2esm convert --diff lib/index.js
  cjs2esm convert --write lib/index.cjs     # writes lib/index.mjs
  cat index.js | cjs2esm convert --language typescript -
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ro, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "write the result next to the input (.cjs becomes .mjs)")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a line diff instead of the result")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the result to this file")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first item that cannot be converted")
	cmd.Flags().BoolVar(&opts.dumpTree, "dump-tree", false, "print the parse tree and exit")
	cmd.Flags().StringVar(&opts.language, "language", "", "javascript, typescript or tsx (default: from the file extension)")
	cmd.MarkFlagsMutuallyExclusive("write", "out", "diff")

	return cmd
}

func runConvert(cmd *cobra.Command, ro *rootOptions, path string, opts convertOptions) error {
	cfg, logger, err := ro.setup(cmd)
	if err != nil {
		return err
	}

	if path == "-" && opts.write {
		return errors.New("--write needs a file path")
	}
	source, err := readSource(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	lang, isTSX, err := resolveLanguage(path, opts.language)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, logger)
	defer eng.Close()

	stdout := cmd.OutOrStdout()
	if opts.dumpTree {
		dump, err := eng.parsers.DumpTree(source, lang, isTSX)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, dump)
		return nil
	}

	conv, err := eng.converter(cfg.RewriteMode(opts.failFast))
	if err != nil {
		return err
	}
	result, convErr := conv.ConvertSource(path, source, lang, isTSX)
	if result == nil {
		return convErr
	}

	stderr := cmd.ErrOrStderr()
	if result.SyntaxErrors {
		warnColor.Fprintf(stderr, "%s: source has syntax errors; statements around them were left unchanged\n", path)
	}
	for _, f := range result.Failures() {
		warnColor.Fprintf(stderr, "%s:%d: %s: %v\n", path, f.Loc.Line, f.Rule, f.Err)
	}
	if convErr != nil {
		return fmt.Errorf("%w: %s: %w", errConversionFailed, path, convErr)
	}

	switch {
	case opts.diff:
		fmt.Fprint(stdout, lineDiff(path, string(source), string(result.Output)))
	case opts.write || opts.out != "":
		target := opts.out
		if target == "" {
			target = parser.ESMPath(path)
		}
		if err := os.WriteFile(target, result.Output, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		if !ro.quiet {
			okColor.Fprintf(stderr, "wrote %s (%d rewritten, %d failed)\n", target, result.Report.Rewritten, result.Report.Failed)
		}
	default:
		_, err = stdout.Write(result.Output)
		return err
	}
	return nil
}

func readSource(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return data, nil
}

// resolveLanguage picks the grammar from --language, or from the extension
// of path. Stdin defaults to JavaScript.
func resolveLanguage(path, flag string) (parser.Language, bool, error) {
	switch {
	case flag == "tsx":
		return parser.LanguageTypeScript, true, nil
	case flag != "":
		lang := parser.ParseLanguageString(flag)
		if lang == parser.LanguageUnknown {
			return lang, false, fmt.Errorf("unsupported language: %s", flag)
		}
		return lang, false, nil
	case path == "-":
		return parser.LanguageJavaScript, false, nil
	}

	lang := parser.DetectLanguage(path)
	if lang == parser.LanguageUnknown {
		return lang, false, fmt.Errorf("cannot detect the language of %s; use --language", path)
	}
	return lang, parser.IsTSXFile(path), nil
}
