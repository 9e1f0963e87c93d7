package lexer

import (
	"testing"

	"krait/internal/source"
)

func cursorOver(t *testing.T, content string) Cursor {
	t.Helper()
	fs := source.NewFileSet()
	return NewCursor(fs.Get(fs.AddVirtual("cursor.kr", []byte(content))))
}

func TestCursorBumpAndPeek(t *testing.T) {
	c := cursorOver(t, "a\nb")
	var got []byte
	for !c.EOF() {
		if c.Peek() != c.PeekAt(0) {
			t.Fatalf("Peek and PeekAt(0) disagree at %d", c.Off)
		}
		got = append(got, c.Bump())
	}
	if string(got) != "a\nb" {
		t.Fatalf("read %q", got)
	}
	// после конца всё возвращает ноль и не двигается
	if c.Peek() != 0 || c.Bump() != 0 || c.Off != 3 {
		t.Fatalf("past EOF: peek=%d off=%d", c.Peek(), c.Off)
	}
	if c.Rest() != nil {
		t.Fatalf("Rest at EOF = %q", c.Rest())
	}
}

func TestCursorPeekAt(t *testing.T) {
	c := cursorOver(t, "xyz")
	for i, want := range []byte{'x', 'y', 'z', 0, 0} {
		if got := c.PeekAt(i); got != want {
			t.Errorf("PeekAt(%d) = %q, want %q", i, got, want)
		}
	}
	c.Bump()
	if c.PeekAt(1) != 'z' || c.PeekAt(2) != 0 {
		t.Fatalf("PeekAt after bump: %q %q", c.PeekAt(1), c.PeekAt(2))
	}
}

func TestCursorEat(t *testing.T) {
	c := cursorOver(t, "**=x")
	if c.Eat('x') {
		t.Fatal("Eat matched the wrong byte")
	}
	if c.EatSeq("*=") {
		t.Fatal("EatSeq matched a non-prefix")
	}
	if !c.EatSeq("**=") || c.Off != 3 {
		t.Fatalf("EatSeq(**=) off=%d", c.Off)
	}
	if !c.Eat('x') || !c.EOF() {
		t.Fatal("Eat(x) at end failed")
	}
	if c.Eat(0) {
		t.Fatal("Eat(0) succeeded at EOF")
	}
	if c.EatSeq("x") {
		t.Fatal("EatSeq succeeded at EOF")
	}
}

func TestCursorMarkSpanReset(t *testing.T) {
	c := cursorOver(t, "name = 1")
	m := c.Mark()
	for isIdentContinueByte(c.Peek()) {
		c.Bump()
	}
	sp := c.SpanFrom(m)
	if sp.Start != 0 || sp.End != 4 || c.Text(sp) != "name" {
		t.Fatalf("span %v text %q", sp, c.Text(sp))
	}
	c.Reset(m)
	if c.Off != 0 || c.Peek() != 'n' {
		t.Fatalf("reset off=%d", c.Off)
	}
	c.Advance(100)
	if !c.EOF() || c.Off != 8 {
		t.Fatalf("Advance past end off=%d", c.Off)
	}
}

func TestCursorNarrow(t *testing.T) {
	// f"{a+b}": выражение лежит в [3, 6)
	c := cursorOver(t, `f"{a+b}"`)
	c.Narrow(3, 6)
	m := c.Mark()
	if c.Peek() != 'a' {
		t.Fatalf("narrowed start peek = %q", c.Peek())
	}
	if c.PeekAt(3) != 0 {
		t.Fatalf("PeekAt crossed the limit: %q", c.PeekAt(3))
	}
	if c.EatSeq("a+b}") {
		t.Fatal("EatSeq crossed the limit")
	}
	c.Advance(3)
	if !c.EOF() {
		t.Fatal("expected EOF at the limit")
	}
	sp := c.SpanFrom(m)
	if sp.Start != 3 || sp.End != 6 || c.Text(sp) != "a+b" {
		t.Fatalf("span %v text %q", sp, c.Text(sp))
	}
	if string(c.Rest()) != "" {
		t.Fatalf("Rest = %q", c.Rest())
	}
}
