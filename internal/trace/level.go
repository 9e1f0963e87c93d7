package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // nothing is written; the ring still records for crash dumps
	LevelPhase        // engine and pass boundaries
	LevelDetail       // plus module imports
	LevelDebug        // plus heap events
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel parses a --trace-level value, ignoring case.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|phase|detail|debug)", s)
}

// finest is the finest scope written at each level.
var finest = [...]Scope{
	LevelOff:    0,
	LevelError:  0,
	LevelPhase:  ScopePass,
	LevelDetail: ScopeModule,
	LevelDebug:  ScopeHeap,
}

// ShouldEmit reports whether a stream at level l writes events of scope.
func (l Level) ShouldEmit(scope Scope) bool {
	return int(l) < len(finest) && scope <= finest[l]
}

// Records reports whether events of scope are produced at all. At
// LevelError they are, so that a ring has something to dump.
func (l Level) Records(scope Scope) bool {
	if l == LevelError {
		return scope <= ScopeModule
	}
	return l.ShouldEmit(scope)
}
