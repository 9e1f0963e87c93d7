// Package diag defines the diagnostic model shared by the lexer and compiler.
//
// # Purpose
//
//   - Provide deterministic data structures for findings produced while turning
//     source text into code units.
//   - Offer light-weight utilities (Reporter, Bag) so producers emit diagnostics
//     without coupling to storage or formatting.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error (severity.go).
//   - Code – compact numeric identifier with a stable string form (codes.go).
//     Codes are grouped: LEX (1000), SYN (2000), IND (3000), RUN (4000).
//   - Message – short human text.
//   - Primary span – the source.Span pointing at the issue.
//   - Notes – optional secondary spans for extra context.
//
// # Emitting diagnostics
//
// The lexer and compiler report through a Reporter. BagReporter aggregates
// into a Bag, Dedup filters repeats on the way, and FirstErrorReporter keeps
// only the first error for the compiler's stop-at-first-error contract.
//
// WriteShort renders the one-line-per-diagnostic format of
// `krait check --format short`; pretty and JSON rendering live in
// internal/diagfmt.
package diag
