package token_test

import (
	"testing"

	"krait/internal/token"
)

func TestLookupKeyword(t *testing.T) {
	for _, word := range []string{"def", "class", "None", "yield", "nonlocal"} {
		if _, ok := token.LookupKeyword(word); !ok {
			t.Errorf("%q should be a keyword", word)
		}
	}
	for _, word := range []string{"Def", "none", "goto", "print", ""} {
		if _, ok := token.LookupKeyword(word); ok {
			t.Errorf("%q must not be a keyword", word)
		}
	}
	if k, ok := token.LookupSoftKeyword("goto"); !ok || k != token.KwGoto {
		t.Errorf("goto should be a soft keyword")
	}
}

func TestMergeCompound(t *testing.T) {
	tests := []struct {
		a, b token.Kind
		want token.Kind
		ok   bool
	}{
		{token.KwNot, token.KwIn, token.NotIn, true},
		{token.KwIs, token.KwNot, token.IsNot, true},
		{token.KwIn, token.KwNot, token.Invalid, false},
		{token.KwNot, token.KwNot, token.Invalid, false},
	}
	for _, tt := range tests {
		got, ok := token.MergeCompound(tt.a, tt.b)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MergeCompound(%v, %v) = %v,%v want %v,%v", tt.a, tt.b, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKindPredicates(t *testing.T) {
	if !(token.Token{Kind: token.KwWhile}).IsKeyword() {
		t.Errorf("while should be keyword")
	}
	if (token.Token{Kind: token.NotIn}).IsKeyword() {
		t.Errorf("merged operator is not a keyword")
	}
	if !(token.Token{Kind: token.FStringLit}).IsLiteral() {
		t.Errorf("fstring is a literal")
	}
	if !token.FloorAssign.IsAugAssign() || token.FloorAssign.AugBase() != token.SlashSlash {
		t.Errorf("//= maps to //")
	}
	if token.StarStar.String() != "**" {
		t.Errorf("String() = %q", token.StarStar.String())
	}
}
