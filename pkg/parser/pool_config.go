package parser

import (
	"github.com/gnana997/cjs2esm/pkg/util"
)

// getPoolSize returns the parsers allowed per grammar. A positive override
// wins; otherwise the size follows util.GetOptimalPoolSize so that a
// workspace run with default workers never waits on a parser.
func getPoolSize(override int) int {
	return util.GetOptimalPoolSizeWithOverride(override)
}
