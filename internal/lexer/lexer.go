package lexer

import (
	"unicode/utf8"

	"krait/internal/diag"
	"krait/internal/source"
	"krait/internal/token"
)

type Lexer struct {
	file   *source.File
	cursor Cursor
	opts   Options

	look    *token.Token  // 1 элементный буфер для Peek
	pending []token.Token // синтетические токены (Indent/Dedent/Newline), ждущие выдачи

	indents   []uint32 // стек отступов, indents[0] == 0
	depth     int      // глубина вложенности скобок; внутри скобок переводы строк игнорируются
	lineStart bool     // курсор стоит в начале логической строки
	firstTok  bool     // следующий токен — первый на логической строке
	last      token.Kind
	done      bool
	ranged    bool
	needMore  bool
	errors    int
}

func New(file *source.File, opts Options) *Lexer {
	return &Lexer{
		file:      file,
		cursor:    NewCursor(file),
		opts:      opts,
		indents:   []uint32{0},
		lineStart: true,
		firstTok:  true,
		last:      token.Newline,
	}
}

// NewRange lexes only file.Content[start:end]; used for f-string expressions.
// The range is treated as if it were inside brackets: no indentation tracking.
func NewRange(file *source.File, start, end uint32, opts Options) *Lexer {
	lx := New(file, opts)
	lx.cursor.Narrow(start, end)
	lx.depth = 1
	lx.ranged = true
	lx.lineStart = false
	lx.firstTok = false
	return lx
}

// File returns the file being lexed.
func (lx *Lexer) File() *source.File { return lx.file }

// NeedMore reports that input ended inside an unfinished construct while
// lexing in interactive mode.
func (lx *Lexer) NeedMore() bool { return lx.needMore }

// Errors returns the number of lexical errors reported so far.
func (lx *Lexer) Errors() int { return lx.errors }

// Next возвращает следующий значимый токен; составные ключевые слова
// ("not in", "is not") уже слиты. После EOF всегда возвращает EOF.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}
	tok := lx.next()
	if tok.Kind == token.KwNot || tok.Kind == token.KwIs {
		follow := lx.next()
		if merged, ok := token.MergeCompound(tok.Kind, follow.Kind); ok {
			tok.Kind = merged
			tok.Span = tok.Span.Cover(follow.Span)
			tok.Text = tok.Kind.String()
		} else {
			lx.look = &follow
		}
	}
	return tok
}

// Peek возвращает следующий токен, не потребляя его.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

// Tokenize collects every token up to and including EOF.
func Tokenize(file *source.File, opts Options) []token.Token {
	lx := New(file, opts)
	out := make([]token.Token, 0, len(file.Content)/4+1)
	for {
		tok := lx.Next()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func (lx *Lexer) next() token.Token {
	for {
		if len(lx.pending) > 0 {
			tok := lx.pending[0]
			lx.pending = lx.pending[1:]
			return lx.finish(tok)
		}
		if lx.done {
			return lx.finish(token.Token{Kind: token.EOF, Span: lx.emptySpan()})
		}
		if lx.lineStart && lx.depth == 0 {
			lx.lineStart = false
			if lx.scanIndentation() {
				continue
			}
		}
		if tok, ok := lx.scanToken(); ok {
			return lx.finish(tok)
		}
	}
}

func (lx *Lexer) finish(tok token.Token) token.Token {
	tok.Line = lx.file.Position(tok.Span.Start).Line
	switch tok.Kind {
	case token.Newline:
		lx.firstTok = true
	case token.Indent, token.Dedent:
	default:
		lx.firstTok = false
	}
	lx.last = tok.Kind
	return tok
}

// scanToken пропускает пробелы и комментарии и сканирует один токен.
// ok == false означает, что токена нет и нужно повторить цикл
// (например, встретился перевод строки внутри скобок).
func (lx *Lexer) scanToken() (token.Token, bool) {
	lx.skipSpaces()

	if lx.cursor.EOF() {
		lx.atEOF()
		return token.Token{}, false
	}

	ch := lx.cursor.Peek()
	switch {
	case ch == '\n':
		start := lx.cursor.Mark()
		lx.cursor.Bump()
		if lx.depth > 0 {
			return token.Token{}, false
		}
		lx.lineStart = true
		if lx.last == token.Newline {
			return token.Token{}, false
		}
		return token.Token{Kind: token.Newline, Span: lx.cursor.SpanFrom(start), Text: "\n"}, true

	case ch == '\\':
		start := lx.cursor.Mark()
		lx.cursor.Bump()
		if lx.cursor.Eat('\n') {
			return token.Token{}, false
		}
		if lx.cursor.EOF() && lx.opts.Interactive {
			lx.needMore = true
			lx.atEOF()
			return token.Token{}, false
		}
		sp := lx.cursor.SpanFrom(start)
		lx.errLex(diag.LexStrayBackslash, sp, "unexpected character after line continuation character")
		return token.Token{Kind: token.Invalid, Span: sp, Text: "\\"}, true

	case isStringStart(lx):
		return lx.scanString(), true

	case isIdentStartByte(ch) || ch >= utf8.RuneSelf:
		return lx.scanIdentOrKeyword(), true

	case isDec(ch):
		return lx.scanNumber(), true

	case ch == '.' && lx.isNumberAfterDot():
		return lx.scanNumber(), true

	default:
		return lx.scanOperatorOrPunct(), true
	}
}

// atEOF закрывает логическую строку, выдаёт Dedent для всех открытых блоков и EOF.
func (lx *Lexer) atEOF() {
	lx.done = true
	if lx.ranged {
		return
	}
	if lx.opts.Interactive && lx.depth > 0 {
		lx.needMore = true
	}
	sp := lx.emptySpan()
	if lx.last != token.Newline && lx.last != token.Dedent && lx.last != token.Indent {
		lx.pending = append(lx.pending, token.Token{Kind: token.Newline, Span: sp})
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.pending = append(lx.pending, token.Token{Kind: token.Dedent, Span: sp})
	}
}

func (lx *Lexer) skipSpaces() {
	for !lx.cursor.EOF() {
		switch lx.cursor.Peek() {
		case ' ', '\t', '\r', '\f':
			lx.cursor.Bump()
		case '#':
			for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
				lx.cursor.Bump()
			}
		default:
			return
		}
	}
}

func (lx *Lexer) emptySpan() source.Span {
	return source.Span{File: lx.file.ID, Start: lx.cursor.Off, End: lx.cursor.Off}
}
