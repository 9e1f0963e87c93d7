package lexer

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"krait/internal/diag"
	"krait/internal/token"
)

// scanIdentOrKeyword сканирует [Ident] и проверяет через LookupKeyword.
// Ключевые слова регистрозависимые. Не-ASCII идентификаторы приводятся к NFC,
// Token.Text тогда хранит нормализованную форму.
func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.cursor.Mark()
	ascii := true

	r, sz := lx.peekRune()
	if sz == 0 {
		return token.Token{Kind: token.Invalid, Span: lx.cursor.SpanFrom(start)}
	}
	if r < utf8.RuneSelf {
		lx.cursor.Bump()
	} else {
		if !isIdentStartRune(r) {
			lx.bumpRune()
			sp := lx.cursor.SpanFrom(start)
			lx.errLex(diag.LexBadIdentifier, sp, "invalid character in identifier")
			return token.Token{Kind: token.Invalid, Span: sp, Text: lx.cursor.Text(sp)}
		}
		ascii = false
		lx.bumpRune()
	}
	for !lx.cursor.EOF() {
		b := lx.cursor.Peek()
		if b < utf8.RuneSelf {
			if !isIdentContinueByte(b) {
				break
			}
			lx.cursor.Bump()
			continue
		}
		r2, sz2 := lx.peekRune()
		if sz2 == 0 || !isIdentContinueRune(r2) {
			break
		}
		ascii = false
		lx.bumpRune()
	}

	sp := lx.cursor.SpanFrom(start)
	text := lx.cursor.Text(sp)
	if !ascii {
		return token.Token{Kind: token.Ident, Span: sp, Text: norm.NFC.String(text)}
	}

	if k, ok := token.LookupKeyword(text); ok {
		return token.Token{Kind: k, Span: sp, Text: text}
	}
	// "label .x" / "goto .x" — только в начале логической строки и перед '.'
	if k, ok := token.LookupSoftKeyword(text); ok && lx.firstTok && lx.dotFollows() {
		return token.Token{Kind: k, Span: sp, Text: text}
	}
	return token.Token{Kind: token.Ident, Span: sp, Text: text}
}

func (lx *Lexer) dotFollows() bool {
	m := lx.cursor.Mark()
	defer lx.cursor.Reset(m)
	for !lx.cursor.EOF() {
		switch lx.cursor.Peek() {
		case ' ', '\t':
			lx.cursor.Bump()
		case '.':
			return true
		default:
			return false
		}
	}
	return false
}
