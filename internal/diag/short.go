package diag

import (
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"krait/internal/source"
)

// shortLine is one row of the short format:
//
//	severity CODE path:line:col message
type shortLine struct {
	sev  string
	code string
	path string
	line uint32
	col  uint32
	msg  string
}

// WriteShort renders diagnostics one per line, sorted by location. Notes
// become their own "note" lines when includeNotes is set. Spans outside fs
// are skipped.
func WriteShort(w io.Writer, diags []Diagnostic, fs *source.FileSet, includeNotes bool) error {
	if fs == nil {
		return nil
	}
	var lines []shortLine
	add := func(sev string, code Code, sp source.Span, msg string) {
		f := fs.Get(sp.File)
		if f == nil {
			return
		}
		pos := f.Position(sp.Start)
		lines = append(lines, shortLine{
			sev:  sev,
			code: code.ID(),
			path: strings.TrimPrefix(filepath.ToSlash(filepath.Clean(f.Path)), "./"),
			line: pos.Line,
			col:  pos.Col,
			msg:  strings.Join(strings.Fields(msg), " "),
		})
	}
	for i := range diags {
		d := &diags[i]
		add(d.Severity.String(), d.Code, d.Primary, d.Message)
		if includeNotes {
			for _, n := range d.Notes {
				add("note", d.Code, n.Span, n.Msg)
			}
		}
	}

	slices.SortStableFunc(lines, func(x, y shortLine) int {
		return cmp.Or(
			cmp.Compare(x.path, y.path),
			cmp.Compare(x.line, y.line),
			cmp.Compare(x.col, y.col),
			cmp.Compare(x.sev, y.sev),
			cmp.Compare(x.code, y.code),
			cmp.Compare(x.msg, y.msg),
		)
	})
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s %s %s:%d:%d %s\n", l.sev, l.code, l.path, l.line, l.col, l.msg); err != nil {
			return err
		}
	}
	return nil
}
