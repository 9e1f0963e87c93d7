package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives events. Implementations are safe for concurrent use:
// check compiles files on several goroutines against one tracer.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	// Enabled is Level() > LevelOff; Begin and Point test it first.
	Enabled() bool
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything. Engines use it when no tracer is configured.
var Nop Tracer = nopTracer{}

// fanout forwards to several tracers; used for --trace-mode=both.
type fanout struct {
	level Level
	sinks []Tracer
}

func (f *fanout) Emit(ev *Event) {
	for _, s := range f.sinks {
		s.Emit(ev)
	}
}

func (f *fanout) Flush() error {
	var errs []error
	for _, s := range f.sinks {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (f *fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (f *fanout) Level() Level  { return f.level }
func (f *fanout) Enabled() bool { return f.level > LevelOff }

// Ring returns the ring buffer behind t, if it keeps one.
func Ring(t Tracer) (*RingTracer, bool) {
	switch t := t.(type) {
	case *RingTracer:
		return t, true
	case *fanout:
		for _, s := range t.sinks {
			if r, ok := s.(*RingTracer); ok {
				return r, true
			}
		}
	}
	return nil, false
}

// StorageMode selects where events go.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as they happen
	ModeRing                          // kept in memory for dumps
	ModeBoth
)

var modeNames = [...]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m StorageMode) String() string {
	if int(m) < len(modeNames) && modeNames[m] != "" {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode parses a --trace-mode value.
func ParseMode(s string) (StorageMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name != "" && name == s {
			return StorageMode(m), nil
		}
	}
	return 0, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// Config describes the tracer built by New.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format    // FormatAuto picks NDJSON for .json/.ndjson paths
	Output     io.Writer // overrides OutputPath
	OutputPath string    // "-" or "" is stderr
	RingSize   int       // default 4096
	// Heartbeat is not started by New; see StartHeartbeat.
	Heartbeat time.Duration
}

// New builds a tracer from cfg. LevelOff always yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}
	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") || strings.HasSuffix(cfg.OutputPath, ".json") {
			format = FormatNDJSON
		}
	}

	switch cfg.Mode {
	case ModeRing:
		return NewRingTracer(cfg.RingSize, cfg.Level), nil
	case ModeStream, ModeBoth:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		stream := NewStreamTracer(w, cfg.Level, format)
		if cfg.Mode == ModeStream {
			return stream, nil
		}
		return &fanout{level: cfg.Level, sinks: []Tracer{stream, NewRingTracer(cfg.RingSize, cfg.Level)}}, nil
	}
	return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
}

// bufferedFile flushes its buffer before closing the file.
type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	return errors.Join(b.Writer.Flush(), b.f.Close())
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return &bufferedFile{Writer: bufio.NewWriterSize(f, 64<<10), f: f}, nil
}
