package vm

import (
	"os"
	"time"
)

// Runtime provides the interface between the OS-facing modules and the
// outside world.
type Runtime interface {
	// Argv returns the script arguments; Argv()[0] is the script name.
	Argv() []string

	Getenv(key string) (string, bool)
	Getwd() (string, error)
	Getpid() int

	Now() time.Time
	Sleep(d time.Duration)
}

// DefaultRuntime implements Runtime using OS facilities.
type DefaultRuntime struct {
	argv []string
}

// NewDefaultRuntime creates a runtime with the given script arguments.
func NewDefaultRuntime(argv []string) *DefaultRuntime {
	return &DefaultRuntime{argv: argv}
}

func (r *DefaultRuntime) Argv() []string                   { return r.argv }
func (r *DefaultRuntime) Getenv(key string) (string, bool) { return os.LookupEnv(key) }
func (r *DefaultRuntime) Getwd() (string, error)           { return os.Getwd() }
func (r *DefaultRuntime) Getpid() int                      { return os.Getpid() }
func (r *DefaultRuntime) Now() time.Time                   { return time.Now() }
func (r *DefaultRuntime) Sleep(d time.Duration)            { time.Sleep(d) }

// TestRuntime implements Runtime with controlled inputs for testing.
type TestRuntime struct {
	Args  []string
	Env   map[string]string
	Dir   string
	Pid   int
	Clock time.Time
	Slept time.Duration
}

// NewTestRuntime creates a test runtime with a fixed clock.
func NewTestRuntime(argv []string) *TestRuntime {
	return &TestRuntime{
		Args:  argv,
		Env:   map[string]string{},
		Dir:   "/work",
		Pid:   4242,
		Clock: time.Unix(1_700_000_000, 0),
	}
}

func (r *TestRuntime) Argv() []string { return r.Args }

func (r *TestRuntime) Getenv(key string) (string, bool) {
	v, ok := r.Env[key]
	return v, ok
}

func (r *TestRuntime) Getwd() (string, error) { return r.Dir, nil }
func (r *TestRuntime) Getpid() int            { return r.Pid }

// Now advances with Sleep so time deltas stay deterministic.
func (r *TestRuntime) Now() time.Time { return r.Clock.Add(r.Slept) }

func (r *TestRuntime) Sleep(d time.Duration) { r.Slept += d }
