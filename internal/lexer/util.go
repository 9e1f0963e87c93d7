package lexer

import (
	"unicode"
	"unicode/utf8"
)

// classes of ASCII bytes used by the scanners
const (
	clsIdent uint8 = 1 << iota
	clsDec
	clsHex
)

var byteClass = func() (t [utf8.RuneSelf]uint8) {
	for b := 'a'; b <= 'z'; b++ {
		t[b] |= clsIdent
	}
	for b := 'A'; b <= 'Z'; b++ {
		t[b] |= clsIdent
	}
	t['_'] |= clsIdent
	for b := '0'; b <= '9'; b++ {
		t[b] |= clsDec | clsHex
	}
	for _, b := range "abcdefABCDEF" {
		t[b] |= clsHex
	}
	return t
}()

func hasClass(b byte, c uint8) bool { return b < utf8.RuneSelf && byteClass[b]&c != 0 }

func isIdentStartByte(b byte) bool    { return hasClass(b, clsIdent) }
func isIdentContinueByte(b byte) bool { return hasClass(b, clsIdent|clsDec) }
func isDec(b byte) bool               { return hasClass(b, clsDec) }
func isHex(b byte) bool               { return hasClass(b, clsHex) }

// Outside ASCII an identifier is any letter; marks and digits may follow it.
func isIdentStartRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinueRune(r rune) bool {
	return isIdentStartRune(r) || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc)
}

// peekRune returns the rune at the cursor and its width; width 0 at EOF.
func (lx *Lexer) peekRune() (rune, int) {
	if lx.cursor.EOF() {
		return utf8.RuneError, 0
	}
	if b := lx.cursor.Peek(); b < utf8.RuneSelf {
		return rune(b), 1
	}
	return utf8.DecodeRune(lx.cursor.Rest())
}

func (lx *Lexer) bumpRune() {
	if _, sz := lx.peekRune(); sz > 0 {
		lx.cursor.Advance(sz)
	}
}

// ".5" style literal
func (lx *Lexer) isNumberAfterDot() bool {
	return lx.cursor.Peek() == '.' && isDec(lx.cursor.PeekAt(1))
}
