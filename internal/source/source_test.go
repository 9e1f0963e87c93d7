package source

import "testing"

func TestPositionAcrossLines(t *testing.T) {
	f := NewFile("test.kr", []byte("x = 1\nwhile x:\n  x = 0\n"))
	tests := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{Line: 1, Col: 1}},
		{4, LineCol{Line: 1, Col: 5}},
		{5, LineCol{Line: 1, Col: 6}},
		{6, LineCol{Line: 2, Col: 1}},
		{17, LineCol{Line: 3, Col: 3}},
	}
	for _, tt := range tests {
		if got := f.Position(tt.off); got != tt.want {
			t.Errorf("Position(%d) = %+v, want %+v", tt.off, got, tt.want)
		}
	}
}

func TestGetLine(t *testing.T) {
	f := NewFile("test.kr", []byte("first\r\nsecond\nthird"))
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("expected CRLF normalization flag")
	}
	want := []string{"", "first", "second", "third", ""}
	for i, w := range want {
		if got := f.GetLine(uint32(i)); got != w {
			t.Errorf("GetLine(%d) = %q, want %q", i, got, w)
		}
	}
}

func TestFileSetLatest(t *testing.T) {
	fs := NewFileSet()
	a := fs.AddVirtual("mod.kr", []byte("a"))
	b := fs.AddVirtual("mod.kr", []byte("b"))
	if a == b {
		t.Fatalf("expected distinct ids")
	}
	id, ok := fs.GetLatest("mod.kr")
	if !ok || id != b {
		t.Fatalf("GetLatest = %d,%v want %d", id, ok, b)
	}
	if fs.Get(99) != nil {
		t.Fatalf("unknown id should resolve to nil")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 8}) {
		t.Fatalf("Cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 1}); got != a {
		t.Fatalf("cross-file cover must keep receiver, got %v", got)
	}
}

func TestFileSetReservesNoFile(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("bom.kr", []byte("\xEF\xBB\xBFx = 1\r\n"))
	if id == NoFile || fs.Len() != 1 {
		t.Fatalf("id = %d, len = %d", id, fs.Len())
	}
	if fs.Get(NoFile) != nil {
		t.Fatal("NoFile must not resolve")
	}
	f := fs.Get(id)
	if string(f.Content) != "x = 1\n" || f.Flags&FileHadBOM == 0 || f.Flags&FileVirtual == 0 {
		t.Fatalf("content %q flags %b", f.Content, f.Flags)
	}
	// позиции без файла нулевые
	if start, _ := fs.Resolve(Span{File: NoFile, Start: 3}); start != (LineCol{}) {
		t.Fatalf("Resolve(NoFile) = %+v", start)
	}
}
