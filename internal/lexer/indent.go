package lexer

import (
	"krait/internal/diag"
	"krait/internal/token"
)

const tabWidth = 4

// scanIndentation меряет отступ новой логической строки и ставит в очередь
// Indent/Dedent. Пустые строки и строки из одного комментария пропускаются.
// Возвращает true, если в очередь что-то добавлено или строка пропущена.
func (lx *Lexer) scanIndentation() bool {
	for {
		start := lx.cursor.Mark()
		var width uint32
		for !lx.cursor.EOF() {
			switch lx.cursor.Peek() {
			case ' ':
				width++
			case '\t':
				width += tabWidth
			case '\r', '\f':
			default:
				goto measured
			}
			lx.cursor.Bump()
		}
	measured:
		if lx.cursor.EOF() {
			return false
		}
		switch lx.cursor.Peek() {
		case '\n':
			lx.cursor.Bump()
			continue
		case '#':
			for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
				lx.cursor.Bump()
			}
			if lx.cursor.Eat('\n') {
				continue
			}
			return false
		}

		sp := lx.cursor.SpanFrom(start)
		top := lx.indents[len(lx.indents)-1]
		switch {
		case width > top:
			lx.indents = append(lx.indents, width)
			lx.pending = append(lx.pending, token.Token{Kind: token.Indent, Span: sp})
			return true
		case width < top:
			for len(lx.indents) > 1 && lx.indents[len(lx.indents)-1] > width {
				lx.indents = lx.indents[:len(lx.indents)-1]
				lx.pending = append(lx.pending, token.Token{Kind: token.Dedent, Span: sp})
			}
			if lx.indents[len(lx.indents)-1] != width {
				lx.errLex(diag.IndInconsistent, sp, "unindent does not match any outer indentation level")
				lx.pending = append(lx.pending, token.Token{Kind: token.Invalid, Span: sp})
			}
			return true
		default:
			return false
		}
	}
}
