package rewrite

import (
	"errors"
	"fmt"

	"github.com/gnana997/cjs2esm/pkg/ast"
)

// Sentinel errors for items whose CommonJS shape was recognized but whose
// parts cannot be expressed as module syntax.
var (
	ErrUnsupportedPattern       = errors.New("unsupported pattern")
	ErrMalformedRequireArgument = errors.New("malformed require argument")
)

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPattern, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequireArgument, fmt.Sprintf(format, args...))
}

// ItemError identifies a top-level item that matched a rewrite rule but
// could not be rewritten. It wraps ErrUnsupportedPattern or
// ErrMalformedRequireArgument.
type ItemError struct {
	// Index is the position of the item in Module.Items.
	Index int
	Loc   ast.Loc
	Rule  string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (line %d, %s): %v", e.Index, e.Loc.Line, e.Rule, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
