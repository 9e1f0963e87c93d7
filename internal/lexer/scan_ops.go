package lexer

import (
	"krait/internal/diag"
	"krait/internal/token"
)

// multiOps is tried in order, so longer operators come first.
var multiOps = []struct {
	text string
	kind token.Kind
}{
	{"...", token.Ellipsis},
	{"**=", token.PowAssign},
	{"//=", token.FloorAssign},
	{"<<=", token.ShlAssign},
	{">>=", token.ShrAssign},
	{"**", token.StarStar},
	{"//", token.SlashSlash},
	{"<<", token.Shl},
	{">>", token.Shr},
	{"->", token.Arrow},
	{"==", token.EqEq},
	{"!=", token.BangEq},
	{"<=", token.LtEq},
	{">=", token.GtEq},
	{"+=", token.PlusAssign},
	{"-=", token.MinusAssign},
	{"*=", token.StarAssign},
	{"/=", token.SlashAssign},
	{"%=", token.PercentAssign},
	{"&=", token.AmpAssign},
	{"|=", token.PipeAssign},
	{"^=", token.CaretAssign},
}

var singleOps = [256]token.Kind{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash,
	'%': token.Percent, '@': token.At, '&': token.Amp, '|': token.Pipe,
	'^': token.Caret, '~': token.Tilde, '=': token.Assign, '<': token.Lt,
	'>': token.Gt, ':': token.Colon, ';': token.Semicolon, ',': token.Comma,
	'.': token.Dot,
	'(': token.LParen, '[': token.LBracket, '{': token.LBrace,
	')': token.RParen, ']': token.RBracket, '}': token.RBrace,
}

// scanOperatorOrPunct matches greedily. Brackets adjust lx.depth; inside
// them newlines and indentation are not significant.
func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Mark()
	emit := func(k token.Kind) token.Token {
		sp := lx.cursor.SpanFrom(start)
		return token.Token{Kind: k, Span: sp, Text: lx.cursor.Text(sp)}
	}

	for _, op := range multiOps {
		if lx.cursor.EatSeq(op.text) {
			return emit(op.kind)
		}
	}

	ch := lx.cursor.Bump()
	switch kind := singleOps[ch]; kind {
	case token.LParen, token.LBracket, token.LBrace:
		lx.depth++
		return emit(kind)
	case token.RParen, token.RBracket, token.RBrace:
		if lx.depth > 0 {
			lx.depth--
		}
		return emit(kind)
	case token.Invalid:
	default:
		return emit(kind)
	}

	sp := lx.cursor.SpanFrom(start)
	lx.errLex(diag.LexUnknownChar, sp, "invalid character '"+string(rune(ch))+"'")
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.cursor.Text(sp)}
}
