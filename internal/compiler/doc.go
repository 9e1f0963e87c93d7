// Package compiler turns source text into code units in one pass.
//
// Statements are parsed by recursive descent and emitted as soon as they are
// recognised. Expressions are parsed with operator precedence into a small
// node tree (needed for assignment targets, short-circuit patching, right to
// left evaluation and folding of negative literals) which is emitted
// immediately and discarded. Lambdas and comprehensions get their own units,
// built when their node is emitted.
//
// Name references inside functions are emitted with a placeholder opcode and
// patched when the function body is complete: by then it is known whether a
// name is a local slot, a closure variable or a global.
package compiler
