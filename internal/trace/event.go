package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of an event.
// Lower values are coarser.
type Scope uint8

const (
	ScopeEngine Scope = iota + 1 // engine / CLI command
	ScopePass                    // compile, execute
	ScopeModule                  // import of one module
	ScopeHeap                    // collector cycles, allocator events
)

func (s Scope) String() string {
	switch s {
	case ScopeEngine:
		return "engine"
	case ScopePass:
		return "pass"
	case ScopeModule:
		return "module"
	case ScopeHeap:
		return "heap"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global sequence number
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64
	Name     string // "compile", "execute", "import:json", "gc"
	Detail   string
	Dur      time.Duration // span end events only
	Extra    map[string]string
}

// Point emits an instant event if t accepts the scope.
func Point(t Tracer, scope Scope, name, detail string, extra map[string]string) {
	if t == nil || !t.Enabled() || !t.Level().Records(scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindPoint,
		Scope:  scope,
		Name:   name,
		Detail: detail,
		Extra:  extra,
	})
}
