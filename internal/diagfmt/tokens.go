package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"

	"krait/internal/source"
	"krait/internal/token"
)

type TokenOutput struct {
	Kind  string      `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Value any         `json:"value,omitempty"`
	Line  uint32      `json:"line"`
	Span  source.Span `json:"span"`
}

// FormatTokensPretty выводит токены в человекочитаемом формате
func FormatTokensPretty(w io.Writer, tokens []token.Token, file *source.File) error {
	for i, tok := range tokens {
		startPos := file.Position(tok.Span.Start)
		endPos := file.Position(tok.Span.End)

		if _, err := fmt.Fprintf(w, "%3d: %-12s", i+1, tok.Kind.String()); err != nil {
			return err
		}
		if tok.Text != "" && tok.Kind != token.Newline {
			fmt.Fprintf(w, " %q", tok.Text)
		}
		fmt.Fprintf(w, " at %d:%d-%d:%d\n", startPos.Line, startPos.Col, endPos.Line, endPos.Col)

		if tok.Kind == token.EOF {
			break
		}
	}
	return nil
}

// FormatTokensJSON выводит токены в JSON формате
func FormatTokensJSON(w io.Writer, tokens []token.Token) error {
	output := make([]TokenOutput, 0, len(tokens))
	for _, tok := range tokens {
		out := TokenOutput{
			Kind: tok.Kind.String(),
			Text: tok.Text,
			Line: tok.Line,
			Span: tok.Span,
		}
		switch tok.Kind {
		case token.IntLit:
			out.Value = tok.Int
		case token.FloatLit:
			out.Value = tok.Float
		case token.StringLit, token.FStringLit:
			out.Value = tok.Str
		case token.Newline:
			out.Text = ""
		}
		output = append(output, out)
		if tok.Kind == token.EOF {
			break
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
