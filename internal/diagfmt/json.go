package diagfmt

import (
	"encoding/json"
	"io"

	"krait/internal/diag"
	"krait/internal/source"
)

type jsonSpan struct {
	File    string `json:"file,omitempty"`
	Start   uint32 `json:"start"`
	End     uint32 `json:"end"`
	Line    uint32 `json:"line,omitempty"`
	Col     uint32 `json:"col,omitempty"`
	EndLine uint32 `json:"end_line,omitempty"`
	EndCol  uint32 `json:"end_col,omitempty"`
}

type jsonNote struct {
	Message string   `json:"message"`
	Span    jsonSpan `json:"span"`
}

type jsonDiagnostic struct {
	Severity string     `json:"severity"`
	Code     string     `json:"code"`
	Title    string     `json:"title,omitempty"`
	Message  string     `json:"message"`
	Span     jsonSpan   `json:"span"`
	Notes    []jsonNote `json:"notes,omitempty"`
}

// Report is the document written by JSON.
type Report struct {
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
	Count       int              `json:"count"`
	Truncated   int              `json:"truncated,omitempty"` // cut by Max or by the bag limit
}

type jsonBuilder struct {
	fs   *source.FileSet
	opts JSONOpts
}

func (b jsonBuilder) span(sp source.Span) jsonSpan {
	out := jsonSpan{Start: sp.Start, End: sp.End}
	f := b.fs.Get(sp.File)
	if f == nil {
		return out
	}
	out.File = formatPath(f.Path, b.opts.PathMode, b.opts.BaseDir)
	if b.opts.IncludePositions {
		start, end := f.Position(sp.Start), f.Position(sp.End)
		out.Line, out.Col = start.Line, start.Col
		out.EndLine, out.EndCol = end.Line, end.Col
	}
	return out
}

func (b jsonBuilder) diagnostic(d *diag.Diagnostic) jsonDiagnostic {
	out := jsonDiagnostic{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Title:    d.Code.Title(),
		Message:  d.Message,
		Span:     b.span(d.Primary),
	}
	if b.opts.IncludeNotes {
		for _, n := range d.Notes {
			out.Notes = append(out.Notes, jsonNote{Message: n.Msg, Span: b.span(n.Span)})
		}
	}
	return out
}

// BuildReport converts bag without encoding it.
func BuildReport(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) Report {
	items := bag.Items()
	n := len(items)
	if opts.Max > 0 {
		n = min(n, opts.Max)
	}
	b := jsonBuilder{fs: fs, opts: opts}
	rep := Report{
		Diagnostics: make([]jsonDiagnostic, 0, n),
		Truncated:   len(items) - n + bag.Dropped(),
	}
	for i := range n {
		rep.Diagnostics = append(rep.Diagnostics, b.diagnostic(&items[i]))
	}
	rep.Count = len(rep.Diagnostics)
	return rep
}

func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildReport(bag, fs, opts))
}
