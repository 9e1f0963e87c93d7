package lexer

import (
	"errors"
	"strconv"
	"strings"

	"krait/internal/diag"
	"krait/internal/token"
)

// Поддержка: 0, 123, 1_000, 0b..., 0o..., 0x..., 1.0, .5, 1., 1e-3, 1.0e+10.
// Значение декодируется сразу: Token.Int / Token.Float.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	kind := token.IntLit
	base := 10

	if lx.cursor.Peek() == '.' {
		lx.cursor.Bump()
		kind = token.FloatLit
		lx.eatDigits(isDec)
		goto exponent
	}

	if lx.cursor.Peek() == '0' {
		switch lx.cursor.PeekAt(1) {
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		case 'x', 'X':
			base = 16
		}
		if base != 10 {
			lx.cursor.Bump()
			lx.cursor.Bump()
			n := lx.eatDigits(digitClass(base))
			if n == 0 {
				return lx.badNumber(start, "invalid digit in numeric literal")
			}
			goto emit
		}
	}

	lx.eatDigits(isDec)
	if lx.cursor.Peek() == '.' {
		// "1..2" не встречается, а "1.__add__" — атрибут; дробь только перед цифрой/e/не-идентом
		if b1 := lx.cursor.PeekAt(1); !isIdentStartByte(b1) || b1 == 'e' || b1 == 'E' {
			lx.cursor.Bump()
			kind = token.FloatLit
			lx.eatDigits(isDec)
		}
	}

exponent:
	if b := lx.cursor.Peek(); b == 'e' || b == 'E' {
		kind = token.FloatLit
		lx.cursor.Bump()
		if b := lx.cursor.Peek(); b == '+' || b == '-' {
			lx.cursor.Bump()
		}
		if lx.eatDigits(isDec) == 0 {
			return lx.badNumber(start, "expected digit after exponent")
		}
	}

emit:
	if isIdentStartByte(lx.cursor.Peek()) {
		for isIdentContinueByte(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
		return lx.badNumber(start, "invalid numeric literal")
	}

	sp := lx.cursor.SpanFrom(start)
	text := lx.cursor.Text(sp)
	tok := token.Token{Kind: kind, Span: sp, Text: text}
	clean := strings.ReplaceAll(text, "_", "")

	if kind == token.FloatLit {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return lx.badNumber(start, "malformed float literal")
		}
		tok.Float = f
		return tok
	}

	digits := clean
	if base != 10 {
		digits = clean[2:]
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			lx.errLex(diag.LexIntOverflow, sp, "integer literal is too large")
			return token.Token{Kind: token.Invalid, Span: sp, Text: text}
		}
		return lx.badNumber(start, "malformed integer literal")
	}
	tok.Int = v
	return tok
}

func (lx *Lexer) eatDigits(class func(byte) bool) int {
	n := 0
	for {
		b := lx.cursor.Peek()
		if class(b) {
			n++
		} else if b != '_' || n == 0 {
			return n
		}
		lx.cursor.Bump()
	}
}

func digitClass(base int) func(byte) bool {
	switch base {
	case 2:
		return func(b byte) bool { return b == '0' || b == '1' }
	case 8:
		return func(b byte) bool { return b >= '0' && b <= '7' }
	default:
		return isHex
	}
}

func (lx *Lexer) badNumber(start Mark, msg string) token.Token {
	sp := lx.cursor.SpanFrom(start)
	lx.errLex(diag.LexBadNumber, sp, msg)
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.cursor.Text(sp)}
}
