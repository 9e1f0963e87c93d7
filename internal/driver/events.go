package driver

import "time"

// Stage is a step of checking one file.
type Stage string

const (
	StageLoad    Stage = "load"
	StageLex     Stage = "lex"
	StageCompile Stage = "compile"
)

// Status reports where a file is in the pipeline.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	// StatusCached marks a file whose diagnostics came from the disk cache.
	StatusCached Status = "cached"
)

// Event reports progress for a file.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressFunc receives events from the checker goroutines; it must be safe
// for concurrent use.
type ProgressFunc func(Event)

// ChannelProgress forwards events into ch.
func ChannelProgress(ch chan<- Event) ProgressFunc {
	return func(ev Event) { ch <- ev }
}

func (p ProgressFunc) emit(ev Event) {
	if p != nil {
		p(ev)
	}
}
