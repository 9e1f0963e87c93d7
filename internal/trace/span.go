package trace

import (
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var seqCounter, spanCounter atomic.Uint64

// NextSeq numbers events in the order they were created.
func NextSeq() uint64 { return seqCounter.Add(1) }

// NextSpanID returns a fresh span ID; 0 means "no span".
func NextSpanID() uint64 { return spanCounter.Add(1) }

// goid reads the goroutine number from the stack header
// "goroutine 17 [running]:". Check spans are told apart by it.
func goid() uint64 {
	var buf [32]byte
	b := buf[:runtime.Stack(buf[:], false)]
	const prefix = len("goroutine ")
	if len(b) <= prefix {
		return 0
	}
	b = b[prefix:]
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Span is an open begin/end pair. A disabled span has a nil tracer and all
// methods are no-ops, as are methods on a nil *Span.
type Span struct {
	tracer Tracer
	id     uint64
	parent uint64
	gid    uint64
	scope  Scope
	name   string
	start  time.Time
	extra  map[string]string
}

// Begin opens a span under parent (0 for a root) and emits its begin event.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().Records(scope) {
		return &Span{}
	}
	s := &Span{
		tracer: t,
		id:     NextSpanID(),
		parent: parent,
		gid:    goid(),
		scope:  scope,
		name:   name,
		start:  time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.start, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
	}
}

// End emits the end event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	now := time.Now()
	ev := s.event(KindSpanEnd, now, detail)
	ev.Dur = now.Sub(s.start)
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return ev.Dur
}

// Fail ends the span with err's text as the detail, or "" for a nil err.
func (s *Span) Fail(err error) time.Duration {
	if err == nil {
		return s.End("")
	}
	return s.End("error: " + err.Error())
}

// WithExtra attaches a key to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID is the span ID to pass as parent; 0 when disabled.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
