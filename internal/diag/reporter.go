package diag

// Reporter receives diagnostics from the lexer and the compiler.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// BagReporter stores everything into Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag != nil {
		r.Bag.Add(d)
	}
}

// Dedup forwards each distinct diagnostic to next once.
func Dedup(next Reporter) Reporter {
	seen := make(map[key]struct{})
	return ReporterFunc(func(d Diagnostic) {
		k := d.key()
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		next.Report(d)
	})
}

// FirstErrorReporter keeps only the first error-level diagnostic.
// The compiler stops at the first error, so this is its default sink.
type FirstErrorReporter struct {
	First *Diagnostic
}

func (r *FirstErrorReporter) Report(d Diagnostic) {
	if r.First != nil || d.Severity < SevError {
		return
	}
	r.First = &d
}
