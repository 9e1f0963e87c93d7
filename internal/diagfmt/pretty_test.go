package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/source"
)

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("/home/user/project/src/test.kr", []byte("x = 'unterminated\n"))

	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.LexUnterminatedString, source.Span{File: fileID, Start: 4, End: 17}, "unterminated string literal"))

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{"Absolute path", PathModeAbsolute, "/home/user/project/src/test.kr:1:5"},
		{"Relative path", PathModeRelative, "src/test.kr:1:5"},
		{"Basename only", PathModeBasename, "test.kr:1:5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/project"})
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.contains, buf.String())
			}
		})
	}
}

func TestSnippetCaret(t *testing.T) {
	file := source.NewFile("t.kr", []byte("a = 1\nb = )\n"))
	got := Snippet(file, source.Span{Start: 10, End: 11}, PrettyOpts{})
	want := "    2 | b = )\n      |     ^\n"
	if got != want {
		t.Fatalf("snippet mismatch:\n%q\n%q", got, want)
	}
}

func TestSnippetWideRunes(t *testing.T) {
	// "变量" занимает 4 колонки терминала
	file := source.NewFile("t.kr", []byte("变量 = ?\n"))
	off := uint32(len("变量 = "))
	got := Snippet(file, source.Span{Start: off, End: off + 1}, PrettyOpts{})
	if !strings.HasSuffix(got, "      |        ^\n") {
		t.Fatalf("caret misaligned:\n%s", got)
	}
}

func TestTokensJSON(t *testing.T) {
	file := source.NewFile("t.kr", []byte("x = 0x10\n"))
	toks := lexer.Tokenize(file, lexer.Options{})
	var buf bytes.Buffer
	if err := FormatTokensJSON(&buf, toks); err != nil {
		t.Fatal(err)
	}
	var out []TokenOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 5 || out[2].Kind != "int" || out[2].Value.(float64) != 16 {
		t.Fatalf("unexpected tokens: %+v", out)
	}
}
