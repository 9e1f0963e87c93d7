package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"krait/internal/diag"
	"krait/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <sev> <CODE>: <Message>
// затем строку исходника с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		file := fs.Get(d.Primary.File)
		writeOne(w, file, d.Severity, d.Code, d.Primary, d.Message, opts)
		if !opts.ShowNotes {
			continue
		}
		for _, note := range d.Notes {
			writeOne(w, fs.Get(note.Span.File), diag.SevInfo, d.Code, note.Span, "note: "+note.Msg, opts)
		}
	}
}

// Diagnostic renders a single diagnostic that belongs to a standalone file
// (eval text, REPL cells, imported modules).
func Diagnostic(w io.Writer, file *source.File, d diag.Diagnostic, opts PrettyOpts) {
	writeOne(w, file, d.Severity, d.Code, d.Primary, d.Message, opts)
	if opts.ShowNotes {
		for _, note := range d.Notes {
			writeOne(w, file, diag.SevInfo, d.Code, note.Span, "note: "+note.Msg, opts)
		}
	}
}

func writeOne(w io.Writer, file *source.File, sev diag.Severity, code diag.Code, sp source.Span, msg string, opts PrettyOpts) {
	sevColor := severityColor(sev, opts.Color)
	bold := newColor(opts.Color, color.Bold)

	if file == nil {
		fmt.Fprintf(w, "%s %s: %s\n", sevColor.Sprint(sev.String()), code.ID(), msg)
		return
	}
	pos := file.Position(sp.Start)
	path := formatPath(file.Path, opts.PathMode, opts.BaseDir)
	fmt.Fprintf(w, "%s: %s %s: %s\n",
		bold.Sprintf("%s:%d:%d", path, pos.Line, pos.Col),
		sevColor.Sprint(sev.String()), code.ID(), msg)

	ctx := int(opts.Context)
	for line := int(pos.Line) - ctx; line < int(pos.Line); line++ {
		if line >= 1 {
			fmt.Fprintf(w, "%5d | %s\n", line, clip(expandTabs(file.GetLine(uint32(line))), opts.Width)) // #nosec G115 -- line >= 1
		}
	}
	fmt.Fprint(w, Snippet(file, sp, opts))
}

// Snippet returns the offending line followed by a caret line marking span.
// Columns are measured in terminal cells so wide runes stay aligned.
func Snippet(file *source.File, sp source.Span, opts PrettyOpts) string {
	pos := file.Position(sp.Start)
	line := file.GetLine(pos.Line)
	if line == "" && sp.Empty() {
		return ""
	}
	lineStart := file.LineStart(pos.Line)
	startCol := int(sp.Start - lineStart)
	endCol := len(line)
	if sp.End > sp.Start && int(sp.End-lineStart) < endCol {
		endCol = int(sp.End - lineStart)
	}
	startCol = min(startCol, len(line))
	endCol = max(endCol, startCol)

	prefix := expandTabs(line[:startCol])
	marked := expandTabs(line[startCol:endCol])
	pad := runewidth.StringWidth(prefix)
	width := max(runewidth.StringWidth(marked), 1)

	caret := newColor(opts.Color, color.FgGreen, color.Bold)
	var b strings.Builder
	fmt.Fprintf(&b, "%5d | %s\n", pos.Line, clip(expandTabs(line), opts.Width))
	b.WriteString("      | ")
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(caret.Sprint("^" + strings.Repeat("~", width-1)))
	b.WriteByte('\n')
	return b.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

func clip(s string, width uint8) string {
	if width == 0 || runewidth.StringWidth(s) <= int(width) {
		return s
	}
	return runewidth.Truncate(s, int(width), "…")
}

func severityColor(sev diag.Severity, enabled bool) *color.Color {
	switch sev {
	case diag.SevError:
		return newColor(enabled, color.FgRed, color.Bold)
	case diag.SevWarning:
		return newColor(enabled, color.FgYellow, color.Bold)
	default:
		return newColor(enabled, color.FgCyan)
	}
}

func newColor(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
