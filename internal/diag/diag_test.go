package diag

import (
	"strings"
	"testing"

	"krait/internal/source"
)

func TestWriteShort(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Add("./testdata/sample.kr", []byte("a\nb\n"), 0)

	diags := []Diagnostic{
		NewError(SynUnexpectedToken, source.Span{File: file, Start: 0, End: 1}, "first line\nsecond").
			WithNote(source.Span{File: file, Start: 2, End: 3}, "note line"),
		New(SevWarning, SynUnknownLabel, source.Span{File: file, Start: 2, End: 3}, "another"),
		// файла нет в наборе: строка пропускается
		NewError(IOLoadFileError, source.Span{File: 99}, "lost"),
	}

	var b strings.Builder
	if err := WriteShort(&b, diags, fs, true); err != nil {
		t.Fatal(err)
	}
	want := "error SYN2001 testdata/sample.kr:1:1 first line second\n" +
		"note SYN2001 testdata/sample.kr:2:1 note line\n" +
		"warning SYN2011 testdata/sample.kr:2:1 another\n"
	if b.String() != want {
		t.Fatalf("want:\n%s\ngot:\n%s", want, b.String())
	}

	b.Reset()
	if err := WriteShort(&b, diags, fs, false); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), "note") {
		t.Fatalf("notes printed without includeNotes:\n%s", b.String())
	}
}

func TestBagLimitAndDedup(t *testing.T) {
	bag := NewBag(2)
	sp := source.Span{Start: 1, End: 2}
	if !bag.Add(NewError(LexUnknownChar, sp, "x")) || !bag.Add(NewError(LexUnknownChar, sp, "x")) {
		t.Fatalf("bag should accept up to its cap")
	}
	if bag.Add(NewError(LexBadNumber, sp, "y")) || bag.Dropped() != 1 {
		t.Fatalf("bag must refuse past its cap, dropped %d", bag.Dropped())
	}
	bag.Dedup()
	if bag.Len() != 1 || !bag.HasErrors() {
		t.Fatalf("dedup left %d items", bag.Len())
	}

	unlimited := NewBag(0)
	for range 1000 {
		unlimited.Add(New(SevInfo, LexInfo, sp, "i"))
	}
	if unlimited.Len() != 1000 || unlimited.HasWarnings() {
		t.Fatalf("unlimited bag: len %d", unlimited.Len())
	}
}

func TestBagSortAndMerge(t *testing.T) {
	a, b := NewBag(0), NewBag(0)
	a.Add(New(SevWarning, SynUnknownLabel, source.Span{File: 2, Start: 0}, "w"))
	b.Add(New(SevWarning, SynUnknownLabel, source.Span{File: 1, Start: 5}, "w5"))
	b.Add(NewError(SynUnexpectedToken, source.Span{File: 1, Start: 5}, "e5"))
	b.Add(NewError(LexBadNumber, source.Span{File: 1, Start: 1}, "e1"))
	a.Merge(b)
	a.Sort()

	var got []string
	for _, d := range a.Items() {
		got = append(got, d.Message)
	}
	if strings.Join(got, ",") != "e1,e5,w5,w" {
		t.Fatalf("order = %v", got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := Dedup(BagReporter{Bag: bag})
	sp := source.Span{File: 1, Start: 3, End: 4}
	r.Report(NewError(IndInconsistent, sp, "dedent"))
	r.Report(NewError(IndInconsistent, sp, "dedent"))
	r.Report(NewError(IndInconsistent, sp, "other"))
	if bag.Len() != 2 {
		t.Fatalf("len = %d", bag.Len())
	}
}

func TestFirstErrorReporter(t *testing.T) {
	var r FirstErrorReporter
	r.Report(New(SevWarning, LexInfo, source.Span{}, "warn"))
	r.Report(NewError(IndInconsistent, source.Span{Start: 4}, "first"))
	r.Report(NewError(SynUnexpectedToken, source.Span{}, "second"))
	if r.First == nil || r.First.Message != "first" || !r.First.Code.IsIndentation() {
		t.Fatalf("unexpected first error: %+v", r.First)
	}
}

func TestSeverityLabels(t *testing.T) {
	for _, sev := range []Severity{SevInfo, SevWarning, SevError} {
		got, err := ParseSeverity(strings.ToUpper(sev.String()))
		if err != nil || got != sev {
			t.Fatalf("round trip %v: %v %v", sev, got, err)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Fatal("unknown severity accepted")
	}
}
