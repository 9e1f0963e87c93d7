package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a liveness event at a fixed interval while a script runs.
// A run of heartbeats with no span end in between points at a script stuck
// in a loop.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat starts beating into tracer. It returns nil, which is safe to
// Stop, when tracing is off or interval is not positive.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go h.run(tracer, interval)
	return h
}

func (h *Heartbeat) run(tracer Tracer, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	started := time.Now()
	for n := 1; ; n++ {
		select {
		case now := <-ticker.C:
			tracer.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeEngine,
				GID:    goid(),
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d after %s", n, now.Sub(started).Round(time.Millisecond)),
			})
		case <-h.stop:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. Repeated calls are
// harmless.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
