package vm

import (
	"fmt"
	"io"

	"krait/internal/code"
)

// ExecTracer writes one line per dispatched instruction.
// Format: [depth=N] <unit> ip<ip> <OP> <arg> @ <file>:<line>
type ExecTracer struct {
	w io.Writer
	// Limit stops tracing after that many lines; 0 means unlimited.
	Limit int
	n     int
}

// NewExecTracer creates a tracer writing to w.
func NewExecTracer(w io.Writer) *ExecTracer {
	return &ExecTracer{w: w}
}

// Lines reports how many instructions were traced.
func (t *ExecTracer) Lines() int { return t.n }

func (t *ExecTracer) instr(vm *VM, f *Frame, ip int, in code.Instr) {
	if t == nil || t.w == nil || (t.Limit > 0 && t.n >= t.Limit) {
		return
	}
	t.n++
	u := f.Unit
	op := in.Op.String()
	if arg := u.ArgString(in); arg != "" {
		op += " " + arg
	}
	fmt.Fprintf(t.w, "[depth=%d] %s ip%d %s @ %s:%d\n", len(vm.frames), u.Name, ip, op, u.Path(), u.Line(ip))
}
