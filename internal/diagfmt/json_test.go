package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"krait/internal/diag"
	"krait/internal/source"
)

func TestJSONReport(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("/tmp/proj/a.kr", []byte("x = 1\ny = )\n"))
	bag := diag.NewBag(2)
	bag.Add(diag.NewError(diag.SynUnexpectedToken, source.Span{File: id, Start: 10, End: 11}, "unexpected ')'").
		WithNote(source.Span{File: id, Start: 0, End: 1}, "x defined here"))
	bag.Add(diag.New(diag.SevWarning, diag.SynUnknownLabel, source.Span{File: id}, "w"))
	bag.Add(diag.New(diag.SevWarning, diag.SynUnknownLabel, source.Span{File: id}, "over the limit"))

	var buf bytes.Buffer
	err := JSON(&buf, bag, fs, JSONOpts{
		IncludePositions: true,
		IncludeNotes:     true,
		PathMode:         PathModeRelative,
		BaseDir:          "/tmp/proj",
		Max:              1,
	})
	if err != nil {
		t.Fatal(err)
	}
	var rep Report
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	// один обрезан Max, один не влез в bag
	if rep.Count != 1 || rep.Truncated != 2 {
		t.Fatalf("count %d truncated %d", rep.Count, rep.Truncated)
	}
	d := rep.Diagnostics[0]
	if d.Severity != "error" || d.Code != "SYN2001" || d.Span.File != "a.kr" {
		t.Fatalf("diagnostic = %+v", d)
	}
	if d.Span.Line != 2 || d.Span.Col != 5 || d.Span.EndCol != 6 {
		t.Fatalf("positions = %+v", d.Span)
	}
	if len(d.Notes) != 1 || d.Notes[0].Span.Line != 1 {
		t.Fatalf("notes = %+v", d.Notes)
	}
}

func TestParsePathMode(t *testing.T) {
	if m, err := ParsePathMode("Basename"); err != nil || m != PathModeBasename {
		t.Fatalf("basename -> %v %v", m, err)
	}
	if _, err := ParsePathMode("weird"); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
