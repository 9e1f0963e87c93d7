// Package token defines lexical token kinds for krait source text.
// Invariants:
//   - Token.Span matches the source bytes of the token exactly; synthetic tokens
//     (Newline at EOF, Indent, Dedent) carry an empty span at the position that
//     produced them.
//   - Literal tokens carry their decoded value in Value/Str, Text stays the raw slice.
//   - Compound keywords ("not in", "is not") are merged into one token by the lexer.
package token
