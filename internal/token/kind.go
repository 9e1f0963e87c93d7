package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF
	// Newline ends a logical line.
	Newline
	// Indent opens an indented block.
	Indent
	// Dedent closes an indented block.
	Dedent

	// Ident represents an identifier token.
	Ident
	// IntLit represents an integer literal.
	IntLit
	// FloatLit represents a float literal.
	FloatLit
	// StringLit represents a normal or raw string literal.
	StringLit
	// FStringLit represents an interpolated string literal.
	FStringLit

	KwFalse
	KwNone
	KwTrue
	KwAnd
	KwAs
	KwAssert
	KwBreak
	KwClass
	KwContinue
	KwDef
	KwDel
	KwElif
	KwElse
	KwExcept
	KwFinally
	KwFor
	KwFrom
	KwGlobal
	KwIf
	KwImport
	KwIn
	KwIs
	KwLambda
	KwNonlocal
	KwNot
	KwOr
	KwPass
	KwRaise
	KwReturn
	KwTry
	KwWhile
	KwWith
	KwYield
	KwGoto  // soft keyword, only before '.'
	KwLabel // soft keyword, only before '.'

	// NotIn is the merged "not in" operator.
	NotIn
	// IsNot is the merged "is not" operator.
	IsNot

	Plus          // +
	Minus         // -
	Star          // *
	StarStar      // **
	Slash         // /
	SlashSlash    // //
	Percent       // %
	At            // @
	Amp           // &
	Pipe          // |
	Caret         // ^
	Tilde         // ~
	Shl           // <<
	Shr           // >>
	Assign        // =
	PlusAssign    // +=
	MinusAssign   // -=
	StarAssign    // *=
	SlashAssign   // /=
	FloorAssign   // //=
	PercentAssign // %=
	AmpAssign     // &=
	PipeAssign    // |=
	CaretAssign   // ^=
	ShlAssign     // <<=
	ShrAssign     // >>=
	PowAssign     // **=
	EqEq          // ==
	BangEq        // !=
	Lt            // <
	LtEq          // <=
	Gt            // >
	GtEq          // >=
	Colon         // :
	Semicolon     // ;
	Comma         // ,
	Dot           // .
	Ellipsis      // ...
	Arrow         // ->
	LParen        // (
	RParen        // )
	LBracket      // [
	RBracket      // ]
	LBrace        // {
	RBrace        // }

	kindCount
)

var kindNames = [kindCount]string{
	Invalid: "invalid", EOF: "eof", Newline: "newline", Indent: "indent", Dedent: "dedent",
	Ident: "identifier", IntLit: "int", FloatLit: "float", StringLit: "str", FStringLit: "fstring",
	KwFalse: "False", KwNone: "None", KwTrue: "True", KwAnd: "and", KwAs: "as",
	KwAssert: "assert", KwBreak: "break", KwClass: "class", KwContinue: "continue",
	KwDef: "def", KwDel: "del", KwElif: "elif", KwElse: "else", KwExcept: "except",
	KwFinally: "finally", KwFor: "for", KwFrom: "from", KwGlobal: "global", KwIf: "if",
	KwImport: "import", KwIn: "in", KwIs: "is", KwLambda: "lambda", KwNonlocal: "nonlocal",
	KwNot: "not", KwOr: "or", KwPass: "pass", KwRaise: "raise", KwReturn: "return",
	KwTry: "try", KwWhile: "while", KwWith: "with", KwYield: "yield", KwGoto: "goto",
	KwLabel: "label", NotIn: "not in", IsNot: "is not",
	Plus: "+", Minus: "-", Star: "*", StarStar: "**", Slash: "/", SlashSlash: "//",
	Percent: "%", At: "@", Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Shl: "<<", Shr: ">>",
	Assign: "=", PlusAssign: "+=", MinusAssign: "-=", StarAssign: "*=", SlashAssign: "/=",
	FloorAssign: "//=", PercentAssign: "%=", AmpAssign: "&=", PipeAssign: "|=",
	CaretAssign: "^=", ShlAssign: "<<=", ShrAssign: ">>=", PowAssign: "**=",
	EqEq: "==", BangEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=", Colon: ":",
	Semicolon: ";", Comma: ",", Dot: ".", Ellipsis: "...", Arrow: "->", LParen: "(", RParen: ")",
	LBracket: "[", RBracket: "]", LBrace: "{", RBrace: "}",
}

// String returns the source spelling of operators/keywords or a category name.
func (k Kind) String() string {
	if k < kindCount && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsAugAssign reports whether k is an augmented assignment operator.
func (k Kind) IsAugAssign() bool {
	switch k {
	case PlusAssign, MinusAssign, StarAssign, SlashAssign, FloorAssign, PercentAssign,
		AmpAssign, PipeAssign, CaretAssign, ShlAssign, ShrAssign, PowAssign:
		return true
	default:
		return false
	}
}

// AugBase maps an augmented assignment operator to its binary operator.
func (k Kind) AugBase() Kind {
	switch k {
	case PlusAssign:
		return Plus
	case MinusAssign:
		return Minus
	case StarAssign:
		return Star
	case SlashAssign:
		return Slash
	case FloorAssign:
		return SlashSlash
	case PercentAssign:
		return Percent
	case AmpAssign:
		return Amp
	case PipeAssign:
		return Pipe
	case CaretAssign:
		return Caret
	case ShlAssign:
		return Shl
	case ShrAssign:
		return Shr
	case PowAssign:
		return StarStar
	default:
		return Invalid
	}
}
