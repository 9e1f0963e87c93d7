package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"krait/internal/diag"
	"krait/internal/source"
	"krait/internal/token"
)

// isStringStart проверяет кавычку или префикс r/f (в любом регистре и порядке) перед кавычкой.
func isStringStart(lx *Lexer) bool {
	b0 := lx.cursor.Peek()
	if b0 == '"' || b0 == '\'' {
		return true
	}
	if !isStringPrefix(b0) {
		return false
	}
	b1 := lx.cursor.PeekAt(1)
	if b1 == '"' || b1 == '\'' {
		return true
	}
	b2 := lx.cursor.PeekAt(2)
	return isStringPrefix(b1) && lower(b1) != lower(b0) && (b2 == '"' || b2 == '\'')
}

func isStringPrefix(b byte) bool {
	switch b {
	case 'r', 'R', 'f', 'F':
		return true
	}
	return false
}

func lower(b byte) byte { return b | 0x20 }

// scanString сканирует '...', "...", тройные кавычки, r'' и f''.
// Для обычных строк Str содержит декодированное значение, для raw — тело как есть,
// для f-строк — сырое тело; его разбирает SplitFString.
func (lx *Lexer) scanString() token.Token {
	start := lx.cursor.Mark()
	raw, interp := false, false
	for isStringPrefix(lx.cursor.Peek()) {
		switch lower(lx.cursor.Bump()) {
		case 'r':
			raw = true
		case 'f':
			interp = true
		}
	}
	quote := lx.cursor.Bump()
	triple := false
	if lx.cursor.Peek() == quote && lx.cursor.PeekAt(1) == quote {
		lx.cursor.Bump()
		lx.cursor.Bump()
		triple = true
	}
	bodyStart := lx.cursor.Off

	for !lx.cursor.EOF() {
		b := lx.cursor.Peek()
		switch {
		case b == '\\':
			lx.cursor.Bump()
			if !lx.cursor.EOF() {
				lx.cursor.Bump()
			}
			continue
		case b == '\n' && !triple:
			sp := lx.cursor.SpanFrom(start)
			lx.errLex(diag.LexUnterminatedString, sp, "unterminated string literal")
			return token.Token{Kind: token.Invalid, Span: sp, Text: lx.cursor.Text(sp)}
		case b == quote:
			if !triple {
				bodyEnd := lx.cursor.Off
				lx.cursor.Bump()
				return lx.stringToken(start, bodyStart, bodyEnd, raw, interp)
			}
			bodyEnd := lx.cursor.Off
			if lx.cursor.EatSeq(string([]byte{quote, quote, quote})) {
				return lx.stringToken(start, bodyStart, bodyEnd, raw, interp)
			}
		}
		lx.cursor.Bump()
	}

	sp := lx.cursor.SpanFrom(start)
	if triple && lx.opts.Interactive {
		lx.needMore = true
		return token.Token{Kind: token.EOF, Span: lx.emptySpan()}
	}
	lx.errLex(diag.LexUnterminatedString, sp, "unterminated string literal")
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.cursor.Text(sp)}
}

func (lx *Lexer) stringToken(start Mark, bodyStart, bodyEnd uint32, raw, interp bool) token.Token {
	sp := lx.cursor.SpanFrom(start)
	tok := token.Token{Kind: token.StringLit, Span: sp, Text: lx.cursor.Text(sp)}
	body := lx.cursor.Text(source.Span{Start: bodyStart, End: bodyEnd})
	switch {
	case interp:
		tok.Kind = token.FStringLit
		tok.Str = body
	case raw:
		tok.Str = body
	default:
		s, err := Unescape(body)
		if err != nil {
			lx.errLex(diag.LexBadEscape, sp, err.Error())
			tok.Kind = token.Invalid
			return tok
		}
		tok.Str = s
	}
	return tok
}

// BodyStart returns the offset of the first body byte of a string token.
func BodyStart(tok token.Token) uint32 {
	off := tok.Span.Start
	i := 0
	for i < len(tok.Text) && isStringPrefix(tok.Text[i]) {
		i++
	}
	q := 1
	if len(tok.Text) >= i+3 && tok.Text[i+1] == tok.Text[i] && tok.Text[i+2] == tok.Text[i] && len(tok.Text)-i >= 6 {
		q = 3
	}
	return off + uint32(i+q) // #nosec G115 -- bounded by token length
}

// IsRawString reports whether a string token carries the r prefix.
func IsRawString(tok token.Token) bool {
	for i := 0; i < len(tok.Text) && isStringPrefix(tok.Text[i]); i++ {
		if lower(tok.Text[i]) == 'r' {
			return true
		}
	}
	return false
}

type escapeError string

func (e escapeError) Error() string { return string(e) }

// Unescape декодирует \n \t \r \\ \' \" \0 \a \b \f \v \xHH \uHHHH \UHHHHHHHH
// и продолжение строки "\<newline>". Неизвестные escape остаются как есть.
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			b.WriteByte('\\')
			break
		}
		switch s[i] {
		case '\n':
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[i]]
			if i+1+width > len(s) {
				return "", escapeError("truncated \\" + string(s[i]) + " escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", escapeError("invalid \\" + string(s[i]) + " escape")
			}
			r := rune(v) // #nosec G115 -- at most 8 hex digits
			if s[i] == 'x' {
				if r < utf8.RuneSelf {
					b.WriteByte(byte(r))
				} else {
					b.WriteRune(r)
				}
			} else {
				if !utf8.ValidRune(r) {
					return "", escapeError("invalid code point in escape")
				}
				b.WriteRune(r)
			}
			i += width
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}
