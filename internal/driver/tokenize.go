package driver

import (
	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/source"
	"krait/internal/token"
)

type TokenizeResult struct {
	FileSet *source.FileSet
	File    *source.File
	Tokens  []token.Token
	Bag     *diag.Bag
}

// Tokenize lexes one file, collecting every lexical error instead of
// stopping at the first.
func Tokenize(path string, maxDiagnostics int) (*TokenizeResult, error) {
	fs := source.NewFileSet()
	fileID, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	file := fs.Get(fileID)
	bag := diag.NewBag(maxDiagnostics)
	tokens := lexer.Tokenize(file, lexer.Options{Reporter: diag.Dedup(diag.BagReporter{Bag: bag})})
	return &TokenizeResult{FileSet: fs, File: file, Tokens: tokens, Bag: bag}, nil
}
