package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeEngine, false},
		{LevelError, ScopeEngine, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeModule, true},
		{LevelDetail, ScopeHeap, false},
		{LevelDebug, ScopeHeap, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted garbage")
	}
}

func TestStreamSpanNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	span := Begin(tr, ScopePass, "compile", 0)
	span.WithExtra("units", "3").End("ok")
	Point(tr, ScopeHeap, "gc", "", nil) // отфильтровано уровнем

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	var end map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &end); err != nil {
		t.Fatal(err)
	}
	if end["kind"] != "end" || end["detail"] != "ok" || end["scope"] != "pass" {
		t.Fatalf("unexpected end event %v", end)
	}
}

func TestRingKeepsLatest(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeHeap, name, "", nil)
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Name != "c" || snap[2].Name != "e" {
		t.Fatalf("snapshot %v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "• e") {
		t.Fatalf("text dump missing event:\n%s", buf.String())
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatal("empty context must yield the nop tracer")
	}
	r := NewRingTracer(4, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatal("tracer lost in context")
	}
	// nil span is safe
	var s *Span
	if s.End("") != 0 || s.ID() != 0 {
		t.Fatal("nil span misbehaves")
	}
}

func TestErrorLevelRecordsOnlyIntoRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelError, Mode: ModeBoth, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopeModule, "import:json", 0).End("")
	Point(tr, ScopeHeap, "gc", "", nil)
	if buf.Len() != 0 {
		t.Fatalf("stream wrote at error level:\n%s", buf.String())
	}
	ring, ok := Ring(tr)
	if !ok {
		t.Fatal("both mode must keep a ring")
	}
	if snap := ring.Snapshot(); len(snap) != 2 || snap[1].Kind != KindSpanEnd {
		t.Fatalf("ring = %v", snap)
	}
}

func TestSpanFailAndDuration(t *testing.T) {
	r := NewRingTracer(4, LevelPhase)
	s := Begin(r, ScopePass, "execute", 0)
	time.Sleep(time.Millisecond)
	if d := s.Fail(errors.New("ZeroDivisionError")); d <= 0 {
		t.Fatalf("duration = %v", d)
	}
	snap := r.Snapshot()
	end := snap[len(snap)-1]
	if end.Detail != "error: ZeroDivisionError" || end.Dur <= 0 {
		t.Fatalf("end event = %+v", end)
	}
	if !strings.Contains(string(FormatEvent(&end, FormatText)), "← execute (error: ZeroDivisionError)") {
		t.Fatalf("text = %s", FormatEvent(&end, FormatText))
	}
}

func TestRingDropped(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for range 5 {
		Point(r, ScopeHeap, "gc", "", nil)
	}
	if r.Dropped() != 3 {
		t.Fatalf("dropped = %d", r.Dropped())
	}
}

func TestHeartbeatStop(t *testing.T) {
	r := NewRingTracer(16, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	h.Stop()
	h.Stop()
	n := len(r.Snapshot())
	if n == 0 {
		t.Fatal("no heartbeats recorded")
	}
	time.Sleep(5 * time.Millisecond)
	if len(r.Snapshot()) != n {
		t.Fatal("heartbeat kept running after Stop")
	}
	var nilBeat *Heartbeat
	nilBeat.Stop()
	if StartHeartbeat(Nop, time.Second) != nil {
		t.Fatal("heartbeat on a disabled tracer")
	}
}
