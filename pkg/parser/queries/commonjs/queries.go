// Package commonjs holds tree-sitter queries that locate CommonJS module
// usage anywhere in a file, not only at the top level.
package commonjs

// Queries matches require calls and references to module.exports and
// exports.<name>. The JavaScript and TypeScript grammars share these node
// kinds, so one query serves both.
//
// Captures:
//   - @require.call, @require.callee, @require.arguments
//   - @exports.module for module.exports
//   - @exports.member and @exports.property for exports.<name>
const Queries = `
; require("x"), require(x), require(...x)
(call_expression
  function: (identifier) @require.callee
  arguments: (arguments) @require.arguments
  (#eq? @require.callee "require")) @require.call

; module.exports
(member_expression
  object: (identifier) @exports.object
  property: (property_identifier) @exports.name
  (#eq? @exports.object "module")
  (#eq? @exports.name "exports")) @exports.module

; exports.foo
(member_expression
  object: (identifier) @exports.target
  property: (property_identifier) @exports.property
  (#eq? @exports.target "exports")) @exports.member
`
