// Package esm holds tree-sitter queries for native module syntax, used to
// spot files that already mix import/export statements with CommonJS.
package esm

// Queries matches static imports, export statements and dynamic import()
// calls.
//
// Captures:
//   - @import.statement and @import.source
//   - @export.statement
//   - @import.dynamic
const Queries = `
(import_statement
  source: (string) @import.source) @import.statement

(export_statement) @export.statement

(call_expression
  function: (import)
  arguments: (arguments)) @import.dynamic
`
