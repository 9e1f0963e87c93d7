package vm

import (
	"errors"
	"fmt"
	"strings"

	"krait/internal/compiler"
	"krait/internal/object"
)

// Exception is an uncaught script exception surfaced to the embedder.
type Exception struct {
	Type    string
	Message string
	// Trace lists the frames the exception passed through, innermost first.
	Trace []object.TraceEntry
	// Value is the exception object. It is only valid until the next
	// collection unless the embedder keeps it reachable.
	Value Value
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// Traceback renders the exception the way the REPL prints it.
func (e *Exception) Traceback() string {
	var sb strings.Builder
	if len(e.Trace) > 0 {
		sb.WriteString("Traceback (most recent call last):\n")
		for i := len(e.Trace) - 1; i >= 0; i-- {
			t := e.Trace[i]
			fmt.Fprintf(&sb, "  File \"%s\", line %d, in %s\n", t.File, t.Line, t.Func)
			if t.Snippet != "" {
				fmt.Fprintf(&sb, "    %s\n", t.Snippet)
			}
		}
	}
	sb.WriteString(e.Error())
	return sb.String()
}

// exception converts a raised exception object for the embedder.
func (vm *VM) exception(exc Value) *Exception {
	e := &Exception{Type: vm.typeName(exc), Value: exc}
	if o := vm.obj(exc); o != nil {
		if info, ok := o.Data.(*object.ExcInfo); ok {
			e.Trace = append(e.Trace, info.Trace...)
		}
	}
	e.Message = vm.excMessage(exc)
	return e
}

// excMessage is str(exc) without calling user code.
func (vm *VM) excMessage(exc Value) string {
	o := vm.obj(exc)
	if o == nil {
		return ""
	}
	info, ok := o.Data.(*object.ExcInfo)
	if !ok {
		return ""
	}
	args, _ := vm.elems(info.Args)
	switch len(args) {
	case 0:
		return ""
	case 1:
		if s, ok := vm.strOf(args[0]); ok {
			return s
		}
		return vm.safeRepr(args[0])
	}
	return vm.safeRepr(info.Args)
}

// safeRepr formats v without running script code.
func (vm *VM) safeRepr(v Value) string {
	vm.GC.Lock()
	defer vm.GC.Unlock()
	s, err := vm.reprBuiltin(v)
	if err != nil {
		vm.exc = Nil
		return fmt.Sprintf("<%s object>", vm.typeName(v))
	}
	return s
}

// newException instantiates an exception type with args, bypassing __init__.
func (vm *VM) newException(typ Value, args ...Value) Value {
	v, o := vm.Heap.New(object.KException, typ, 0)
	o.Attr = object.NewNameDict(0)
	o.Data = &object.ExcInfo{Args: vm.NewTuple(args), Cause: None}
	return v
}

// raise makes exc the propagating exception.
func (vm *VM) raise(exc Value) error {
	vm.exc = exc
	return errThrown
}

// raisef raises typ with a formatted message.
func (vm *VM) raisef(typ Value, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return vm.raise(vm.newException(typ, vm.NewStr(msg)))
}

func (vm *VM) typeError(format string, args ...any) error {
	return vm.raisef(vm.types.typeError, format, args...)
}

func (vm *VM) valueError(format string, args ...any) error {
	return vm.raisef(vm.types.valueError, format, args...)
}

// excFromError turns a Go error returned by a native into an exception.
func (vm *VM) excFromError(err error) Value {
	var ce *compiler.Error
	var ex *Exception
	switch {
	case errors.Is(err, errThrown):
		return vm.exc
	case errors.As(err, &ce):
		return vm.compileException(ce)
	case errors.As(err, &ex):
		if t, ok := vm.excTypes[ex.Type]; ok {
			return vm.newException(t, vm.NewStr(ex.Message))
		}
	}
	return vm.newException(vm.types.runtimeError, vm.NewStr(err.Error()))
}

// compileException wraps a compile error into SyntaxError whose trace is
// never extended.
func (vm *VM) compileException(ce *compiler.Error) Value {
	typ := vm.types.syntaxError
	if ce.Kind() == "IndentationError" {
		typ = vm.types.indentationError
	}
	exc := vm.newException(typ, vm.NewStr(ce.Message()))
	info := vm.obj(exc).Data.(*object.ExcInfo)
	entry := object.TraceEntry{File: ce.Path(), Line: ce.Line(), Func: "<compile>"}
	if ce.File != nil && entry.Line > 0 {
		entry.Snippet = strings.TrimSpace(ce.File.GetLine(entry.Line))
	}
	info.Trace = append(info.Trace, entry)
	info.NoTrace = true
	return exc
}

// excInfo returns the payload of an exception instance.
func (vm *VM) excInfo(v Value) (*object.ExcInfo, bool) {
	o := vm.obj(v)
	if o == nil || o.Kind != object.KException {
		return nil, false
	}
	info, ok := o.Data.(*object.ExcInfo)
	return info, ok
}

// addTrace records the frame an exception is leaving or being handled in.
func (vm *VM) addTrace(f *Frame, exc Value) {
	info, ok := vm.excInfo(exc)
	if !ok {
		return
	}
	if info.Raised {
		info.Raised = false
		return
	}
	ip := max(f.IP-1, 0)
	line := f.Unit.Line(ip)
	entry := object.TraceEntry{File: f.Unit.Path(), Line: line, Func: f.Unit.Name}
	if f.Unit.File != nil && line > 0 {
		entry.Snippet = strings.TrimSpace(f.Unit.File.GetLine(line))
	}
	info.PushTrace(entry)
}

// IsExceptionType reports whether err is an uncaught exception of the named type.
func IsExceptionType(err error, typ string) bool {
	var e *Exception
	return errors.As(err, &e) && e.Type == typ
}
