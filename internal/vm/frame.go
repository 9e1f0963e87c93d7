package vm

import (
	"krait/internal/code"
	"krait/internal/object"
)

type pendingKind uint8

const (
	pendReturn pendingKind = iota
	pendBreak
	pendContinue
)

// pending is a return/break/continue postponed until a finally body has run.
type pending struct {
	kind   pendingKind
	value  Value // return value
	target int32 // loop block
	slot   int   // marker slot, relative to Frame.Base
}

// classCtx is a class whose body is executing inline in the frame.
type classCtx struct {
	typ     Value
	beginIP int
}

// Frame is one activation. Its window of the value stack starts at Base:
// NLocals local slots followed by the operand stack.
type Frame struct {
	Unit    *code.Unit
	Func    Value // running KFunction, Nil for module code
	Module  Value
	Globals *object.NameDict
	IP      int
	Base    int
	Ret     int // stack top restored on return

	consts   []Value
	closure  Value // cells of the defining frame
	cells    Value // this frame's cells, created by its first closure
	classes  []classCtx
	pending  []pending
	gen      *Generator
	instance Value // object under construction by __init__
	dyn      int   // frame whose locals a dynamic unit sees, -1
	entry    bool  // returning leaves the current run loop
}

// sb is the operand stack base.
func (f *Frame) sb() int { return f.Base + len(f.Unit.Varnames) }

func (f *Frame) dropPending(sp int) {
	for len(f.pending) > 0 && f.Base+f.pending[len(f.pending)-1].slot >= sp {
		f.pending = f.pending[:len(f.pending)-1]
	}
}

// dropClasses forgets class bodies entered at or after ip.
func (f *Frame) dropClasses(ip uint32) {
	for len(f.classes) > 0 && f.classes[len(f.classes)-1].beginIP >= int(ip) {
		f.classes = f.classes[:len(f.classes)-1]
	}
}

func (f *Frame) roots(mark func(Value)) {
	mark(f.Func)
	mark(f.Module)
	mark(f.closure)
	mark(f.cells)
	mark(f.instance)
	for _, c := range f.classes {
		mark(c.typ)
	}
	for _, p := range f.pending {
		mark(p.value)
	}
}

// pushFrame starts an activation of u whose locals begin at base. The local
// slots past the arguments already written by the caller are cleared.
func (vm *VM) pushFrame(u *code.Unit, base, ret int) (*Frame, error) {
	if len(vm.frames) >= MaxCallDepth {
		return nil, vm.raisef(vm.types.recursionError, "maximum recursion depth exceeded")
	}
	if base+len(u.Varnames)+u.MaxDepth > len(vm.stack) {
		return nil, vm.raisef(vm.types.stackOverflow, "value stack overflow")
	}
	var f *Frame
	if n := len(vm.framePool); n > 0 {
		f = vm.framePool[n-1]
		vm.framePool = vm.framePool[:n-1]
	} else {
		f = &Frame{}
	}
	*f = Frame{Unit: u, Base: base, Ret: ret, dyn: -1, consts: vm.constsOf(u)}
	top := base + len(u.Varnames)
	if vm.sp < top {
		clear(vm.stack[vm.sp:top])
	}
	vm.sp = top
	vm.frames = append(vm.frames, f)
	return f, nil
}

// releaseFrame pops the top frame, which must be f.
func (vm *VM) releaseFrame(f *Frame) {
	vm.frames = vm.frames[:len(vm.frames)-1]
	*f = Frame{}
	vm.framePool = append(vm.framePool, f)
}

func (vm *VM) top() *Frame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) push(v Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Nil
	return v
}

func (vm *VM) peek(n int) Value { return vm.stack[vm.sp-1-n] }

// popN drops n values.
func (vm *VM) popN(n int) {
	clear(vm.stack[vm.sp-n : vm.sp])
	vm.sp -= n
}

// truncate lowers the stack top to sp.
func (vm *VM) truncate(sp int) {
	if sp < vm.sp {
		clear(vm.stack[sp:vm.sp])
	}
	vm.sp = sp
}

// ensure checks that n more values fit.
func (vm *VM) ensure(n int) error {
	if vm.sp+n > len(vm.stack) {
		return vm.raisef(vm.types.stackOverflow, "value stack overflow")
	}
	return nil
}

// unitCache holds the materialised constants of a unit.
type unitCache struct {
	vm     *VM
	consts []Value
}

func (vm *VM) constsOf(u *code.Unit) []Value {
	if c, ok := u.Cache.(*unitCache); ok && c.vm == vm {
		return c.consts
	}
	consts := make([]Value, len(u.Consts))
	for i, k := range u.Consts {
		consts[i] = vm.constValue(k)
	}
	u.Cache = &unitCache{vm: vm, consts: consts}
	vm.units = append(vm.units, u)
	return consts
}

func (vm *VM) constValue(k code.Const) Value {
	switch k.Kind {
	case code.ConstNone:
		return None
	case code.ConstTrue:
		return True
	case code.ConstFalse:
		return False
	case code.ConstEllipsis:
		return Ellipsis
	case code.ConstInt:
		return vm.NewInt(k.Int)
	case code.ConstFloat:
		return vm.NewFloat(k.Float)
	}
	return vm.NewStr(k.Str)
}
