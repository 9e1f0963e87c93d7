package lexer

import (
	"strings"
)

// FPart is one piece of an f-string body: either literal text or an
// interpolated expression with optional conversion and format spec.
type FPart struct {
	Lit    string
	IsExpr bool
	Expr   string
	Off    uint32 // offset of Expr within the body
	Conv   byte   // 'r', 's' or 0
	Spec   string
}

// SplitFString splits the raw body of an f-string into literal and expression parts.
// Literal text is unescaped unless raw is set.
func SplitFString(body string, raw bool) ([]FPart, error) {
	var parts []FPart
	var lit strings.Builder
	flush := func() error {
		if lit.Len() == 0 {
			return nil
		}
		text := lit.String()
		lit.Reset()
		if !raw {
			var err error
			if text, err = Unescape(text); err != nil {
				return err
			}
		}
		parts = append(parts, FPart{Lit: text})
		return nil
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '{':
			if i+1 < len(body) && body[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			end, part, err := scanFExpr(body, i+1)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			i = end
		case '}':
			if i+1 < len(body) && body[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, escapeError("f-string: single '}' is not allowed")
		case '\\':
			lit.WriteByte(c)
			if i+1 < len(body) {
				i++
				lit.WriteByte(body[i])
			}
		default:
			lit.WriteByte(c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

// scanFExpr reads "expr[!c][:spec]}" starting at body[start]; returns the index of '}'.
func scanFExpr(body string, start int) (int, FPart, error) {
	depth := 0
	var quote byte
	exprEnd := -1
	part := FPart{IsExpr: true, Off: uint32(start)} // #nosec G115 -- body comes from a uint32-addressed file
	for i := start; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			if exprEnd < 0 {
				exprEnd = i
			}
			part.Expr = body[start:exprEnd]
			if strings.TrimSpace(part.Expr) == "" {
				return 0, part, escapeError("f-string: empty expression not allowed")
			}
			if i > exprEnd {
				tail := body[exprEnd:i]
				if strings.HasPrefix(tail, "!") {
					if len(tail) < 2 || (tail[1] != 'r' && tail[1] != 's') {
						return 0, part, escapeError("f-string: invalid conversion character")
					}
					part.Conv = tail[1]
					tail = tail[2:]
				}
				if strings.HasPrefix(tail, ":") {
					part.Spec = tail[1:]
				} else if tail != "" {
					return 0, part, escapeError("f-string: expecting '}'")
				}
			}
			return i, part, nil
		case '!':
			if depth == 0 && exprEnd < 0 && (i+1 >= len(body) || body[i+1] != '=') {
				exprEnd = i
			}
		case ':':
			if depth == 0 && exprEnd < 0 {
				exprEnd = i
			}
		}
	}
	return 0, part, escapeError("f-string: expecting '}'")
}
