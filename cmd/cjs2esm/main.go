// Command cjs2esm rewrites CommonJS modules to ES module syntax.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

// formatJSON is the value of --format that selects JSON output.
const formatJSON = "json"

const (
	exitFailure      = 1
	exitCheckFailure = 2
)

var (
	// errCheckFailed is returned when check found error-severity issues.
	errCheckFailed = errors.New("check found unconvertible items")

	// errConversionFailed is returned when a file could not be converted.
	errConversionFailed = errors.New("conversion failed")
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
}

// setup loads the configuration and builds the logger for a command.
func (ro *rootOptions) setup(cmd *cobra.Command) (*Config, *slog.Logger, error) {
	if ro.noColor {
		color.NoColor = true
	}
	cfg, err := loadConfig(ro.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(cmd.ErrOrStderr(), ro.verbose, ro.quiet), nil
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cjs2esm",
		Short: "Rewrite CommonJS modules to ES modules",
		Long: `cjs2esm rewrites the top-level require calls and exports assignments of
JavaScript and TypeScript modules to import and export statements.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "config file (default is "+defaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&ro.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&ro.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(convertCmd(ro))
	rootCmd.AddCommand(checkCmd(ro))
	rootCmd.AddCommand(scanCmd(ro))
	rootCmd.AddCommand(watchCmd(ro))
	rootCmd.AddCommand(serveCmd(ro))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cjs2esm %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, errCheckFailed) {
		os.Exit(exitCheckFailure)
	}
	os.Exit(exitFailure)
}
