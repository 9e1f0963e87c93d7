package compiler

import (
	"fmt"
	"strings"

	"krait/internal/diag"
	"krait/internal/diagfmt"
	"krait/internal/source"
)

// Error is a compile-time failure. No code unit accompanies it.
type Error struct {
	Diag diag.Diagnostic
	File *source.File
	// NeedMore is set in REPL mode when the input ended inside an unfinished
	// construct; the caller should read another line and retry.
	NeedMore bool
}

// Kind returns the script-level exception type name.
func (e *Error) Kind() string {
	if e.Diag.Code.IsIndentation() {
		return "IndentationError"
	}
	return "SyntaxError"
}

// Message returns the bare message.
func (e *Error) Message() string { return e.Diag.Message }

// Line returns the 1-based line of the error.
func (e *Error) Line() uint32 {
	if e.File == nil {
		return 0
	}
	return e.File.Position(e.Diag.Primary.Start).Line
}

func (e *Error) Path() string {
	if e.File == nil {
		return "<unknown>"
	}
	return e.File.Path
}

func (e *Error) Error() string {
	if e.NeedMore {
		return "incomplete input"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "  File \"%s\", line %d\n", e.Path(), e.Line())
	if e.File != nil {
		sb.WriteString(diagfmt.Snippet(e.File, e.Diag.Primary, diagfmt.PrettyOpts{}))
	}
	fmt.Fprintf(&sb, "%s: %s", e.Kind(), e.Diag.Message)
	return sb.String()
}

// Snippet returns the caret-marked source excerpt.
func (e *Error) Snippet(opts diagfmt.PrettyOpts) string {
	if e.File == nil {
		return ""
	}
	return diagfmt.Snippet(e.File, e.Diag.Primary, opts)
}

// bailout is the panic payload used to abandon compilation.
type bailout struct{ err *Error }

func (c *compiler) fail(code diag.Code, sp source.Span, format string, args ...any) {
	d := diag.NewError(code, sp, fmt.Sprintf(format, args...))
	panic(bailout{&Error{Diag: d, File: c.file}})
}

// failAt reports at tok, turning an unexpected end of input into NeedMore
// when compiling interactively.
func (c *compiler) failAt(code diag.Code, tokIdx int, format string, args ...any) {
	tok := c.toks[min(tokIdx, len(c.toks)-1)]
	if c.interactive && c.atInputEnd(tokIdx) {
		panic(bailout{&Error{Diag: diag.NewError(code, tok.Span, "incomplete input"), File: c.file, NeedMore: true}})
	}
	c.fail(code, tok.Span, format, args...)
}
