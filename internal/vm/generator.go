package vm

import (
	"krait/internal/object"
	"krait/internal/symbol"
)

type genState uint8

const (
	genFresh genState = iota
	genSuspended
	genRunning
	genExhausted
)

func (s genState) String() string {
	switch s {
	case genFresh:
		return "fresh"
	case genSuspended:
		return "suspended"
	case genRunning:
		return "running"
	}
	return "exhausted"
}

// Generator is the payload of generator objects. While suspended, frame
// holds the activation and saved its stack window: locals followed by the
// operand stack.
type Generator struct {
	state genState
	frame Frame
	saved []Value
	name  string
}

func (g *Generator) Trace(mark func(Value)) {
	g.frame.roots(mark)
	for _, v := range g.saved {
		mark(v)
	}
}

// newGeneratorAt replaces the call at fi with a fresh generator whose
// locals are already bound.
func (vm *VM) newGeneratorAt(fi int, callee Value, fn *object.Function, locals []Value) error {
	u := fn.Decl.Unit
	g := &Generator{
		state: genFresh,
		saved: append(make([]Value, 0, len(locals)+u.MaxDepth), locals...),
		name:  fn.Decl.Name,
		frame: Frame{
			Unit:    u,
			Func:    callee,
			Module:  fn.Module,
			Globals: vm.obj(fn.Module).Attr,
			closure: fn.Closure,
			dyn:     -1,
		},
	}
	v, _ := vm.Heap.NewData(object.KGenerator, vm.types.generator, g)
	vm.truncate(fi)
	vm.push(v)
	return nil
}

// resume runs g until it yields or finishes. done reports completion, v is
// then the return value.
func (vm *VM) resume(g *Generator, sent Value) (v Value, done bool, err error) {
	switch g.state {
	case genRunning:
		return Nil, false, vm.valueError("generator already executing")
	case genExhausted:
		return Nil, true, nil
	case genFresh:
		if sent != None && sent != Nil {
			return Nil, false, vm.typeError("can't send non-None value to a just-started generator")
		}
	}
	u := g.frame.Unit
	if u.Released() {
		return Nil, false, vm.eb.released(u)
	}
	base := vm.sp
	if base+len(g.saved)+u.MaxDepth+1 > len(vm.stack) {
		return Nil, false, vm.raisef(vm.types.stackOverflow, "value stack overflow")
	}
	f, err := vm.pushFrame(u, base, base)
	if err != nil {
		return Nil, false, err
	}
	ret := f.Ret
	consts := f.consts
	*f = g.frame
	f.Base, f.Ret, f.consts = base, ret, consts
	f.gen = g
	f.entry = true
	copy(vm.stack[base:], g.saved)
	vm.sp = base + len(g.saved)
	if g.state == genSuspended {
		vm.push(sent)
	}
	clear(g.saved)
	g.saved = g.saved[:0]
	g.frame = Frame{}
	g.state = genRunning

	r, err := vm.run(len(vm.frames) - 1)
	if err != nil {
		return Nil, false, err
	}
	if r == object.YieldMarker {
		y := vm.yielded
		vm.yielded = Nil
		return y, false, nil
	}
	return r, true, nil
}

// suspend saves the generator frame f after YIELD_VALUE and leaves it.
func (vm *VM) suspend(f *Frame, v Value) Value {
	g := f.gen
	if g == nil {
		panic(vm.eb.stackCorrupt("yield outside a generator frame"))
	}
	g.saved = append(g.saved[:0], vm.stack[f.Base:vm.sp]...)
	g.frame = *f
	g.frame.gen = nil
	g.frame.entry = false
	g.state = genSuspended
	vm.yielded = v
	vm.truncate(f.Ret)
	vm.releaseFrame(f)
	return object.YieldMarker
}

// delegate advances the iterator of a yield from. finished reports that it
// is exhausted; v is then the value of the yield from expression.
func (vm *VM) delegate(iter, sent Value) (v Value, finished bool, err error) {
	if o := vm.obj(iter); o != nil && o.Kind == object.KGenerator {
		v, done, err := vm.resume(o.Data.(*Generator), sent)
		if err != nil {
			return Nil, false, err
		}
		if done {
			if v == Nil {
				v = None
			}
			return v, true, nil
		}
		return v, false, nil
	}
	if sent == None || sent == Nil {
		x, ok, err := vm.iterNext(iter)
		if err != nil {
			return Nil, false, err
		}
		if !ok {
			return None, true, nil
		}
		return x, false, nil
	}
	x, err := vm.callMethod(iter, symbol.Send, sent)
	if err != nil {
		if err == errThrown && vm.isInstance(vm.exc, vm.types.stopIteration) {
			r := vm.stopValue(vm.exc)
			vm.exc = Nil
			return r, true, nil
		}
		return Nil, false, err
	}
	return x, false, nil
}

// stopValue is the value carried by a StopIteration.
func (vm *VM) stopValue(exc Value) Value {
	if info, ok := vm.excInfo(exc); ok {
		if args, _ := vm.elems(info.Args); len(args) > 0 {
			return args[0]
		}
	}
	return None
}

// stopIteration raises StopIteration carrying a generator's return value.
func (vm *VM) stopIteration(v Value) error {
	if v == Nil || v == None {
		return vm.raise(vm.newException(vm.types.stopIteration))
	}
	return vm.raise(vm.newException(vm.types.stopIteration, v))
}

func (vm *VM) genOf(v Value) (*Generator, error) {
	if o := vm.obj(v); o != nil && o.Kind == object.KGenerator {
		return o.Data.(*Generator), nil
	}
	return nil, vm.typeError("descriptor requires a 'generator' object but received a '%s'", vm.typeName(v))
}

func (vm *VM) initGeneratorMethods() {
	t := vm.obj(vm.types.generator).Attr
	t.Set(symbol.Iter, vm.newMethod("__iter__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		return args[0], nil
	}))
	t.Set(symbol.Next, vm.newMethod("__next__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		g, err := vm.genOf(args[0])
		if err != nil {
			return Nil, err
		}
		v, done, err := vm.resume(g, None)
		if err != nil {
			return Nil, err
		}
		if done {
			return Nil, vm.stopIteration(v)
		}
		return v, nil
	}))
	t.Set(symbol.Send, vm.newMethod("send", 1, func(vm *VM, args, _ []Value) (Value, error) {
		g, err := vm.genOf(args[0])
		if err != nil {
			return Nil, err
		}
		v, done, err := vm.resume(g, args[1])
		if err != nil {
			return Nil, err
		}
		if done {
			return Nil, vm.stopIteration(v)
		}
		return v, nil
	}))
	// close drops a suspended generator without running its finally blocks
	t.Set(closeName, vm.newMethod("close", 0, func(vm *VM, args, _ []Value) (Value, error) {
		g, err := vm.genOf(args[0])
		if err != nil {
			return Nil, err
		}
		if g.state == genRunning {
			return Nil, vm.valueError("generator already executing")
		}
		g.state = genExhausted
		clear(g.saved)
		g.saved = g.saved[:0]
		g.frame = Frame{}
		return None, nil
	}))

	it := vm.obj(vm.types.iterator).Attr
	it.Set(symbol.Iter, vm.newMethod("__iter__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		return args[0], nil
	}))
	it.Set(symbol.Next, vm.newMethod("__next__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		v, ok, err := vm.iterNext(args[0])
		if err != nil {
			return Nil, err
		}
		if !ok {
			return Nil, vm.stopIteration(None)
		}
		return v, nil
	}))
}
