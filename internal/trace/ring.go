package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory. The CLI dumps it when
// a script dies with a fatal error.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	total uint64 // events ever stored; buf[total%len] is the next slot
	level Level
}

// NewRingTracer keeps up to capacity events (4096 when capacity <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.Records(ev.Scope) {
		return
	}
	t.mu.Lock()
	t.buf[t.total%uint64(len(t.buf))] = *ev
	t.total++
	t.mu.Unlock()
}

// Snapshot copies the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	size := uint64(len(t.buf))
	if t.total <= size {
		return append([]Event(nil), t.buf[:t.total]...)
	}
	start := t.total % size
	out := make([]Event, 0, size)
	out = append(out, t.buf[start:]...)
	return append(out, t.buf[:start]...)
}

// Dropped is the number of events overwritten so far.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if size := uint64(len(t.buf)); t.total > size {
		return t.total - size
	}
	return 0
}

// Dump writes the retained events in format.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
