package vm

import (
	"fmt"
	"strings"

	"krait/internal/code"
)

// PanicCode identifies an unrecoverable VM condition.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicBadOpcode    PanicCode = 1001 // VM1001: unknown opcode
	PanicBadValue     PanicCode = 1002 // VM1002: corrupted tag or dangling handle
	PanicStackCorrupt PanicCode = 1003 // VM1003: value stack out of balance
	PanicBadBlock     PanicCode = 1004 // VM1004: block table inconsistent with the stack
	PanicHeap         PanicCode = 1005 // VM1005: collector or allocator invariant
	PanicReleased     PanicCode = 1006 // VM1006: code unit used after release
	PanicInternal     PanicCode = 1999 // VM1999: recovered Go panic
)

// String returns the code as "VM1001".
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame is one frame of a fatal error backtrace.
type BacktraceFrame struct {
	FuncName string
	File     string
	Line     uint32
	IP       int
}

// FatalError aborts the dispatch loop. Script code can never catch it.
type FatalError struct {
	Code      PanicCode
	Message   string
	Backtrace []BacktraceFrame // top to bottom
}

func (p *FatalError) Error() string {
	return fmt.Sprintf("fatal %s: %s", p.Code, p.Message)
}

// Format renders the error with its backtrace.
func (p *FatalError) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fatal %s: %s\n", p.Code, p.Message)
	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, fr := range p.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s at %s:%d (ip %d)\n", i, fr.FuncName, fr.File, fr.Line, fr.IP)
		}
	}
	return sb.String()
}

// errorBuilder constructs FatalError values from the live call stack.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *FatalError {
	e := &FatalError{Code: code, Message: msg}
	frames := eb.vm.frames
	e.Backtrace = make([]BacktraceFrame, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		ip := max(f.IP-1, 0)
		e.Backtrace = append(e.Backtrace, BacktraceFrame{
			FuncName: f.Unit.Name,
			File:     f.Unit.Path(),
			Line:     f.Unit.Line(ip),
			IP:       ip,
		})
	}
	return e
}

func (eb *errorBuilder) badOpcode(op code.Opcode) *FatalError {
	return eb.makeError(PanicBadOpcode, fmt.Sprintf("unknown opcode %s", op))
}

func (eb *errorBuilder) badValue(what string, v Value) *FatalError {
	return eb.makeError(PanicBadValue, fmt.Sprintf("%s: unexpected value %s", what, v))
}

func (eb *errorBuilder) stackCorrupt(msg string) *FatalError {
	return eb.makeError(PanicStackCorrupt, msg)
}

func (eb *errorBuilder) badBlock(u *code.Unit, idx int) *FatalError {
	return eb.makeError(PanicBadBlock, fmt.Sprintf("block %d of %s does not match the stack", idx, u.Name))
}

func (eb *errorBuilder) released(u *code.Unit) *FatalError {
	return eb.makeError(PanicReleased, fmt.Sprintf("code unit %s used after release", u.Name))
}

func (eb *errorBuilder) recovered(r any) *FatalError {
	return eb.makeError(PanicInternal, fmt.Sprintf("internal error: %v", r))
}
