package observ

import (
	"fmt"
	"io"
	"sort"
	"time"

	"krait/internal/trace"
)

// Phase records one timed step: load, lex, compile or execute.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string

	span *trace.Span
}

// Timer collects phase durations for one file or one command.
// A Timer is not safe for concurrent use; the checker gives each file its own.
type Timer struct {
	phases []Phase
	tracer trace.Tracer
	parent uint64
	now    func() time.Time
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer {
	return &Timer{phases: make([]Phase, 0, 4), tracer: trace.Nop, now: time.Now}
}

// WithTracer mirrors every phase as a pass-scoped span under parent.
func (t *Timer) WithTracer(tr trace.Tracer, parent uint64) *Timer {
	if tr != nil {
		t.tracer = tr
	}
	t.parent = parent
	return t
}

// Begin starts a phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{
		Name:  name,
		Start: t.now(),
		span:  trace.Begin(t.tracer, trace.ScopePass, name, t.parent),
	})
	return len(t.phases) - 1
}

// End finishes the phase at idx. Out-of-range indices are ignored.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = t.now().Sub(p.Start)
	p.Note = note
	if p.span != nil {
		p.span.End(note)
		p.span = nil
	}
}

// Track times fn as a single phase; the phase note is the error text.
func (t *Timer) Track(name string, fn func() error) error {
	idx := t.Begin(name)
	err := fn()
	note := ""
	if err != nil {
		note = err.Error()
	}
	t.End(idx, note)
	return err
}

// PhaseReport is the serialisable form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the phases of a timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report returns the phases in the order they were started.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.Dur
		r.Phases[i] = PhaseReport{Name: p.Name, DurationMS: millis(p.Dur), Note: p.Note}
	}
	r.TotalMS = millis(total)
	return r
}

// Merge sums reports phase by phase; phases keep the order of first appearance.
// Notes are dropped.
func Merge(reports ...Report) Report {
	var out Report
	index := map[string]int{}
	for _, r := range reports {
		out.TotalMS += r.TotalMS
		for _, p := range r.Phases {
			i, ok := index[p.Name]
			if !ok {
				i = len(out.Phases)
				index[p.Name] = i
				out.Phases = append(out.Phases, PhaseReport{Name: p.Name})
			}
			out.Phases[i].DurationMS += p.DurationMS
		}
	}
	return out
}

// Slowest returns up to n phases ordered by duration, longest first.
func (r Report) Slowest(n int) []PhaseReport {
	ps := append([]PhaseReport(nil), r.Phases...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].DurationMS > ps[j].DurationMS })
	if n >= 0 && n < len(ps) {
		ps = ps[:n]
	}
	return ps
}

// WriteSummary prints a timings table.
func (r Report) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "timings:"); err != nil {
		return err
	}
	for _, p := range r.Phases {
		line := fmt.Sprintf("  %-20s %8.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  %-20s %8.2f ms\n", "total", r.TotalMS)
	return err
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
