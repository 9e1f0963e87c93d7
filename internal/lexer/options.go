package lexer

import (
	"krait/internal/diag"
	"krait/internal/source"
)

type Options struct {
	Reporter diag.Reporter // может быть nil — тогда ошибки игнорируем (но продолжаем лексить)
	// Interactive turns end-of-input inside an unfinished construct into a
	// NeedMore signal instead of an error.
	Interactive bool
}

func (lx *Lexer) errLex(code diag.Code, sp source.Span, msg string) {
	lx.errors++
	if lx.opts.Reporter != nil {
		lx.opts.Reporter.Report(diag.NewError(code, sp, msg))
	}
}
