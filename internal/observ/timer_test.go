package observ

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"krait/internal/trace"
)

func fakeClock(step time.Duration) func() time.Time {
	base := time.Unix(0, 0)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * step)
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(time.Millisecond)
	i := tm.Begin("lex")
	tm.End(i, "")
	err := tm.Track("compile", func() error { return errors.New("boom") })
	if err == nil {
		t.Fatal("Track must return fn's error")
	}
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d", len(r.Phases))
	}
	if r.Phases[0].DurationMS != 1 || r.Phases[1].Note != "boom" {
		t.Fatalf("report = %+v", r)
	}
	if r.TotalMS != 2 {
		t.Fatalf("total = %v", r.TotalMS)
	}
}

func TestMergeAndSlowest(t *testing.T) {
	a := Report{TotalMS: 3, Phases: []PhaseReport{{Name: "lex", DurationMS: 1}, {Name: "compile", DurationMS: 2}}}
	b := Report{TotalMS: 5, Phases: []PhaseReport{{Name: "compile", DurationMS: 4}, {Name: "load", DurationMS: 1}}}
	m := Merge(a, b)
	if m.TotalMS != 8 || len(m.Phases) != 3 {
		t.Fatalf("merged = %+v", m)
	}
	if m.Phases[1].Name != "compile" || m.Phases[1].DurationMS != 6 {
		t.Fatalf("compile = %+v", m.Phases[1])
	}
	if s := m.Slowest(1); len(s) != 1 || s[0].Name != "compile" {
		t.Fatalf("slowest = %+v", s)
	}
}

func TestSummaryAndSpans(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelDebug)
	tm := NewTimer().WithTracer(ring, 0)
	tm.End(tm.Begin("execute"), "")

	var buf bytes.Buffer
	if err := tm.Report().WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "execute") || !strings.Contains(buf.String(), "total") {
		t.Fatalf("summary:\n%s", buf.String())
	}
	found := false
	for _, ev := range ring.Snapshot() {
		if ev.Name == "execute" {
			found = true
		}
	}
	if !found {
		t.Fatal("no span emitted for the phase")
	}
}
