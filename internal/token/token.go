package token

import (
	"krait/internal/source"
)

// Token represents a single source token with its location and decoded payload.
type Token struct {
	Kind Kind
	Span source.Span
	Line uint32 // 1-based line of Span.Start
	Text string

	Int   int64   // IntLit
	Float float64 // FloatLit
	Str   string  // StringLit/FStringLit decoded body
}

// IsLiteral reports whether the token is a numeric or string literal.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case IntLit, FloatLit, StringLit, FStringLit:
		return true
	default:
		return false
	}
}

// IsKeyword reports whether the token is a language keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwFalse && t.Kind <= KwLabel
}

// IsIdent reports whether the token is an identifier.
func (t Token) IsIdent() bool { return t.Kind == Ident }

// IsStructural reports whether the token only shapes blocks (Newline/Indent/Dedent/EOF).
func (t Token) IsStructural() bool {
	switch t.Kind {
	case Newline, Indent, Dedent, EOF:
		return true
	default:
		return false
	}
}
