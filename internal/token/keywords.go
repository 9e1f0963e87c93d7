package token

var keywords = map[string]Kind{
	"False":    KwFalse,
	"None":     KwNone,
	"True":     KwTrue,
	"and":      KwAnd,
	"as":       KwAs,
	"assert":   KwAssert,
	"break":    KwBreak,
	"class":    KwClass,
	"continue": KwContinue,
	"def":      KwDef,
	"del":      KwDel,
	"elif":     KwElif,
	"else":     KwElse,
	"except":   KwExcept,
	"finally":  KwFinally,
	"for":      KwFor,
	"from":     KwFrom,
	"global":   KwGlobal,
	"if":       KwIf,
	"import":   KwImport,
	"in":       KwIn,
	"is":       KwIs,
	"lambda":   KwLambda,
	"nonlocal": KwNonlocal,
	"not":      KwNot,
	"or":       KwOr,
	"pass":     KwPass,
	"raise":    KwRaise,
	"return":   KwReturn,
	"try":      KwTry,
	"while":    KwWhile,
	"with":     KwWith,
	"yield":    KwYield,
}

var softKeywords = map[string]Kind{
	"goto":  KwGoto,
	"label": KwLabel,
}

// LookupKeyword returns the keyword kind for ident.
// Keywords are case-sensitive.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// LookupSoftKeyword returns the kind of a contextual keyword; the lexer only
// applies it when the next significant byte is '.'.
func LookupSoftKeyword(ident string) (Kind, bool) {
	k, ok := softKeywords[ident]
	return k, ok
}

// MergeCompound folds two adjacent keywords that form one logical operator.
func MergeCompound(first, second Kind) (Kind, bool) {
	switch {
	case first == KwNot && second == KwIn:
		return NotIn, true
	case first == KwIs && second == KwNot:
		return IsNot, true
	default:
		return Invalid, false
	}
}
