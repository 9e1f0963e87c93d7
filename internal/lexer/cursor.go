package lexer

import (
	"bytes"
	"fmt"

	"fortio.org/safecast"

	"krait/internal/source"
)

// Cursor walks the bytes of one file. Offsets are absolute file offsets,
// also when the cursor is narrowed to an f-string expression.
type Cursor struct {
	file source.FileID
	src  []byte // file content up to the lexing limit
	Off  uint32
}

// NewCursor positions a cursor at the start of f.
func NewCursor(f *source.File) Cursor {
	if _, err := safecast.Conv[uint32](len(f.Content)); err != nil {
		panic(fmt.Errorf("%s: file too large: %w", f.Path, err))
	}
	return Cursor{file: f.ID, src: f.Content}
}

// Narrow restricts the cursor to [start, end).
func (c *Cursor) Narrow(start, end uint32) {
	c.src = c.src[:end]
	c.Off = start
}

// EOF reports whether the limit is reached.
func (c *Cursor) EOF() bool { return int(c.Off) >= len(c.src) }

// Peek returns the current byte, or 0 at EOF.
func (c *Cursor) Peek() byte { return c.PeekAt(0) }

// PeekAt returns the byte n positions ahead, or 0 past the limit.
func (c *Cursor) PeekAt(n int) byte {
	if i := int(c.Off) + n; i < len(c.src) {
		return c.src[i]
	}
	return 0
}

// Rest is the unread input.
func (c *Cursor) Rest() []byte {
	if c.EOF() {
		return nil
	}
	return c.src[c.Off:]
}

// Bump consumes and returns one byte; 0 at EOF.
func (c *Cursor) Bump() byte {
	if c.EOF() {
		return 0
	}
	b := c.src[c.Off]
	c.Off++
	return b
}

// Advance skips n bytes, stopping at the limit.
func (c *Cursor) Advance(n int) {
	for ; n > 0 && !c.EOF(); n-- {
		c.Off++
	}
}

// Eat consumes b if it is next.
func (c *Cursor) Eat(b byte) bool {
	if c.Peek() == b && !c.EOF() {
		c.Off++
		return true
	}
	return false
}

// EatSeq consumes s if the input continues with it.
func (c *Cursor) EatSeq(s string) bool {
	if !bytes.HasPrefix(c.Rest(), []byte(s)) {
		return false
	}
	c.Advance(len(s))
	return true
}

// Mark remembers a position for SpanFrom and Reset.
type Mark uint32

func (c *Cursor) Mark() Mark { return Mark(c.Off) }

// SpanFrom covers the bytes read since m.
func (c *Cursor) SpanFrom(m Mark) source.Span {
	return source.Span{File: c.file, Start: uint32(m), End: c.Off}
}

// Reset moves back to m.
func (c *Cursor) Reset(m Mark) { c.Off = uint32(m) }

// Text returns the source text of sp, which must lie within the limit.
func (c *Cursor) Text(sp source.Span) string { return string(c.src[sp.Start:sp.End]) }
