// Package trace is the structured event stream of the krait runtime and CLI.
//
// The engine does not log. Interesting boundaries (compile, execute, import,
// collection cycles) are reported as span or point events to a Tracer, which
// either drops them, writes them out immediately, or keeps the most recent
// ones in a ring for post-mortem dumps.
//
// # Usage
//
//	krait run --trace=- --trace-level=detail script.kr
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: nothing is written; the ring records for crash dumps
//   - LevelPhase: engine and pass boundaries (compile, execute)
//   - LevelDetail: module imports
//   - LevelDebug: everything, including heap events
//
// A fatal engine error makes the CLI dump the ring (see Ring) to stderr.
//
// # Context propagation
//
// CLI code carries the tracer in a context; embedders pass it in krait.Config.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "compile", 0)
//	defer span.End("")
package trace
