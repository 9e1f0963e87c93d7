package lexer_test

import (
	"fmt"
	"strings"
	"testing"

	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/source"
	"krait/internal/token"
)

// testReporter собирает все диагностики, полученные от лексера
type testReporter struct {
	diagnostics []diag.Diagnostic
}

func (r *testReporter) Report(d diag.Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
}

func (r *testReporter) ErrorMessages() []string {
	messages := make([]string, 0, len(r.diagnostics))
	for _, d := range r.diagnostics {
		messages = append(messages, fmt.Sprintf("[%s] %s: %s", d.Code.ID(), d.Severity, d.Message))
	}
	return messages
}

func makeTestLexer(input string, interactive bool) (*lexer.Lexer, *testReporter) {
	file := source.NewFile("test.kr", []byte(input))
	reporter := &testReporter{}
	return lexer.New(file, lexer.Options{Reporter: reporter, Interactive: interactive}), reporter
}

func collectKinds(lx *lexer.Lexer) []token.Kind {
	var kinds []token.Kind
	for {
		tok := lx.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == token.EOF {
			return kinds
		}
	}
}

func expectKinds(t *testing.T, input string, want ...token.Kind) {
	t.Helper()
	lx, rep := makeTestLexer(input, false)
	got := collectKinds(lx)
	if len(rep.diagnostics) > 0 {
		t.Fatalf("unexpected diagnostics for %q: %s", input, strings.Join(rep.ErrorMessages(), "; "))
	}
	if len(got) != len(want) {
		t.Fatalf("%q: got %v, want %v", input, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%q: token %d is %v, want %v (all: %v)", input, i, got[i], want[i], got)
		}
	}
}

func TestIndentDedent(t *testing.T) {
	expectKinds(t, "while x:\n  x = 1\n\n  # c\ny\n",
		token.KwWhile, token.Ident, token.Colon, token.Newline,
		token.Indent, token.Ident, token.Assign, token.IntLit, token.Newline,
		token.Dedent, token.Ident, token.Newline, token.EOF)
}

func TestDedentAtEOF(t *testing.T) {
	expectKinds(t, "if a:\n    if b:\n        c",
		token.KwIf, token.Ident, token.Colon, token.Newline,
		token.Indent, token.KwIf, token.Ident, token.Colon, token.Newline,
		token.Indent, token.Ident, token.Newline,
		token.Dedent, token.Dedent, token.EOF)
}

func TestBracketsSuppressNewlines(t *testing.T) {
	expectKinds(t, "f(1,\n   2)\n",
		token.Ident, token.LParen, token.IntLit, token.Comma, token.IntLit, token.RParen, token.Newline, token.EOF)
}

func TestLineContinuation(t *testing.T) {
	expectKinds(t, "a = 1 + \\\n  2\n",
		token.Ident, token.Assign, token.IntLit, token.Plus, token.IntLit, token.Newline, token.EOF)
}

func TestInconsistentDedent(t *testing.T) {
	lx, rep := makeTestLexer("if a:\n    b\n  c\n", false)
	collectKinds(lx)
	if len(rep.diagnostics) != 1 || rep.diagnostics[0].Code != diag.IndInconsistent {
		t.Fatalf("expected one indentation error, got %v", rep.ErrorMessages())
	}
}

func TestCompoundKeywords(t *testing.T) {
	expectKinds(t, "a not in b is not c not d\n",
		token.Ident, token.NotIn, token.Ident, token.IsNot, token.Ident, token.KwNot, token.Ident, token.Newline, token.EOF)
}

func TestSoftKeywords(t *testing.T) {
	expectKinds(t, "label .top\ngoto .top\nlabel = 1\n",
		token.KwLabel, token.Dot, token.Ident, token.Newline,
		token.KwGoto, token.Dot, token.Ident, token.Newline,
		token.Ident, token.Assign, token.IntLit, token.Newline, token.EOF)
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		src  string
		kind token.Kind
		i    int64
		f    float64
	}{
		{"42", token.IntLit, 42, 0},
		{"1_000", token.IntLit, 1000, 0},
		{"0x1F", token.IntLit, 31, 0},
		{"0o17", token.IntLit, 15, 0},
		{"0b101", token.IntLit, 5, 0},
		{"1.5", token.FloatLit, 0, 1.5},
		{".25", token.FloatLit, 0, 0.25},
		{"1e3", token.FloatLit, 0, 1000},
		{"2.", token.FloatLit, 0, 2},
	}
	for _, tt := range tests {
		lx, rep := makeTestLexer(tt.src, false)
		tok := lx.Next()
		if len(rep.diagnostics) != 0 {
			t.Fatalf("%q: %v", tt.src, rep.ErrorMessages())
		}
		if tok.Kind != tt.kind || tok.Int != tt.i || tok.Float != tt.f {
			t.Errorf("%q: got %v %d %g", tt.src, tok.Kind, tok.Int, tok.Float)
		}
	}
}

func TestIntOverflowIsError(t *testing.T) {
	lx, rep := makeTestLexer("99999999999999999999", false)
	if tok := lx.Next(); tok.Kind != token.Invalid {
		t.Fatalf("expected invalid token, got %v", tok.Kind)
	}
	if len(rep.diagnostics) != 1 || rep.diagnostics[0].Code != diag.LexIntOverflow {
		t.Fatalf("unexpected diagnostics %v", rep.ErrorMessages())
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		src  string
		kind token.Kind
		want string
	}{
		{`'a\tb'`, token.StringLit, "a\tb"},
		{`"it's"`, token.StringLit, "it's"},
		{`r'a\nb'`, token.StringLit, `a\nb`},
		{`'\x41\u00e9'`, token.StringLit, "Aé"},
		{"'''two\nlines'''", token.StringLit, "two\nlines"},
		{`f'x={x}'`, token.FStringLit, "x={x}"},
	}
	for _, tt := range tests {
		lx, rep := makeTestLexer(tt.src, false)
		tok := lx.Next()
		if len(rep.diagnostics) != 0 {
			t.Fatalf("%s: %v", tt.src, rep.ErrorMessages())
		}
		if tok.Kind != tt.kind || tok.Str != tt.want {
			t.Errorf("%s: got %v %q want %q", tt.src, tok.Kind, tok.Str, tt.want)
		}
	}
}

func TestBodyStart(t *testing.T) {
	src := `x = rf"""ab"""`
	lx, _ := makeTestLexer(src, false)
	lx.Next()
	lx.Next()
	tok := lx.Next()
	if got := lexer.BodyStart(tok); src[got:got+2] != "ab" {
		t.Fatalf("body starts at %d (%q)", got, src[got:])
	}
	if !lexer.IsRawString(tok) {
		t.Fatalf("expected raw prefix")
	}
}

func TestSplitFString(t *testing.T) {
	parts, err := lexer.SplitFString(`a{{b}} {x!r:>4} {f(1, 2)}\n`, false)
	if err != nil {
		t.Fatalf("SplitFString: %v", err)
	}
	if len(parts) != 5 {
		t.Fatalf("got %d parts: %+v", len(parts), parts)
	}
	if parts[0].Lit != "a{b} " || !parts[1].IsExpr || parts[1].Expr != "x" || parts[1].Conv != 'r' || parts[1].Spec != ">4" {
		t.Fatalf("unexpected parts: %+v", parts[:2])
	}
	if parts[3].Expr != "f(1, 2)" || parts[4].Lit != "\n" {
		t.Fatalf("unexpected tail: %+v", parts[3:])
	}
	if _, err := lexer.SplitFString("a}b", false); err == nil {
		t.Fatalf("single '}' must be rejected")
	}
}

func TestUnicodeIdentifierNFC(t *testing.T) {
	// "é" как 'e' + U+0301
	lx, rep := makeTestLexer("cafe\u0301 = 1", false)
	tok := lx.Next()
	if len(rep.diagnostics) != 0 {
		t.Fatalf("%v", rep.ErrorMessages())
	}
	if tok.Kind != token.Ident || tok.Text != "caf\u00e9" {
		t.Fatalf("got %v %q", tok.Kind, tok.Text)
	}
	lx, _ = makeTestLexer("变量 = 2", false)
	if tok := lx.Next(); tok.Kind != token.Ident || tok.Text != "变量" {
		t.Fatalf("CJK identifier: got %v %q", tok.Kind, tok.Text)
	}
}

func TestInteractiveNeedMore(t *testing.T) {
	for _, src := range []string{"f(1,\n", "s = '''abc\n", "x = 1 + \\"} {
		lx, rep := makeTestLexer(src, true)
		collectKinds(lx)
		if !lx.NeedMore() {
			t.Errorf("%q: expected NeedMore", src)
		}
		if len(rep.diagnostics) != 0 {
			t.Errorf("%q: interactive mode must not report: %v", src, rep.ErrorMessages())
		}
	}
	lx, rep := makeTestLexer("s = '''abc\n", false)
	collectKinds(lx)
	if lx.NeedMore() || len(rep.diagnostics) != 1 {
		t.Fatalf("batch mode must report an unterminated string")
	}
}

func TestLineNumbers(t *testing.T) {
	lx, _ := makeTestLexer("a\n\nb\n", false)
	a := lx.Next()
	lx.Next()
	b := lx.Next()
	if a.Line != 1 || b.Line != 3 {
		t.Fatalf("lines: a=%d b=%d", a.Line, b.Line)
	}
}
