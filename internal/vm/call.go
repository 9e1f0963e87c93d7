package vm

import (
	"strconv"

	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// NativeFn implements a builtin. args holds the positional arguments
// (the receiver first for methods); kw holds one value per declared keyword
// parameter, Nil when not supplied and without default.
type NativeFn func(vm *VM, args []Value, kw []Value) (Value, error)

// NewNative creates a native function object. argc is the number of required
// positional arguments, -1 for variadic; positionals beyond argc fill kw in
// order. A keyword parameter named "**" receives the remaining keywords as a
// dict.
func (vm *VM) NewNative(nm string, argc int, fn NativeFn, kw ...object.NameArg) Value {
	v, _ := vm.Heap.NewData(object.KNative, vm.types.native, &object.NativeFunc{
		Name: nm,
		Argc: argc,
		Kw:   kw,
		Fn:   fn,
	})
	return v
}

// newMethod creates a native that takes the receiver as its first argument.
func (vm *VM) newMethod(nm string, argc int, fn NativeFn, kw ...object.NameArg) Value {
	v := vm.NewNative(nm, argc, fn, kw...)
	vm.obj(v).Data.(*object.NativeFunc).BindsSelf = true
	return v
}

// opt declares an optional keyword parameter.
func opt(nm string, def Value) object.NameArg { return object.NameArg{Name: nm, Default: def} }

// Call calls fn with positional arguments and returns its result.
func (vm *VM) Call(fn Value, args ...Value) (Value, error) {
	return vm.CallKw(fn, args, nil, nil)
}

// CallKw calls fn with positional and keyword arguments.
func (vm *VM) CallKw(fn Value, args []Value, kwNames []string, kwValues []Value) (Value, error) {
	return vm.callSelf(fn, Nil, args, kwNames, kwValues)
}

// callMethod calls the method nm of obj.
func (vm *VM) callMethod(obj Value, nm symbol.Name, args ...Value) (Value, error) {
	fn, self, err := vm.loadMethod(obj, nm)
	if err != nil {
		return Nil, err
	}
	return vm.callSelf(fn, self, args, nil, nil)
}

func (vm *VM) callSelf(fn, self Value, args []Value, kwNames []string, kwValues []Value) (Value, error) {
	if err := vm.ensure(2 + len(args) + 2*len(kwNames)); err != nil {
		return Nil, err
	}
	fi := vm.sp
	vm.push(fn)
	vm.push(self)
	for _, a := range args {
		vm.push(a)
	}
	for i, k := range kwNames {
		vm.push(vm.NewStr(k))
		vm.push(kwValues[i])
	}
	pushed, err := vm.invoke(fi, len(args), len(kwNames), true)
	if err != nil {
		vm.truncate(fi)
		return Nil, err
	}
	if !pushed {
		r := vm.stack[fi]
		vm.truncate(fi)
		return r, nil
	}
	return vm.run(len(vm.frames) - 1)
}

// insertSelf makes room for a receiver in front of the arguments of the
// call at fi, moving an occupied self slot into the positional arguments.
func (vm *VM) insertSelf(fi int, self Value, argc *int) error {
	if vm.stack[fi+1] == Nil {
		vm.stack[fi+1] = self
		return nil
	}
	if err := vm.ensure(1); err != nil {
		return err
	}
	copy(vm.stack[fi+2:vm.sp+1], vm.stack[fi+1:vm.sp])
	vm.sp++
	vm.stack[fi+1] = self
	*argc++
	return nil
}

// invoke calls the callable at stack[fi]. The layout above it is the self
// slot, argc positional arguments and kwc name/value pairs. When a script
// frame is pushed it reports true and the frame returns into fi; otherwise
// the result is already at stack[fi] and sp is fi+1.
func (vm *VM) invoke(fi, argc, kwc int, entry bool) (bool, error) {
	for {
		callee := vm.stack[fi]
		o := vm.obj(callee)
		if o == nil {
			return false, vm.typeError("'%s' object is not callable", vm.typeName(callee))
		}
		switch o.Kind {
		case object.KFunction:
			return vm.callFunction(fi, callee, o.Data.(*object.Function), argc, kwc, entry)
		case object.KNative:
			return false, vm.callNative(fi, o.Data.(*object.NativeFunc), argc, kwc)
		case object.KBoundMethod:
			bm := o.Data.(*object.BoundMethod)
			vm.stack[fi] = bm.Func
			if err := vm.insertSelf(fi, bm.Self, &argc); err != nil {
				return false, err
			}
		case object.KStaticMethod, object.KClassMethod:
			vm.stack[fi] = o.Data.(*object.Wrapped).Func
		case object.KType:
			return vm.instantiate(fi, callee, argc, kwc, entry)
		default:
			call, ok := vm.lookupType(o.Type, symbol.Call)
			if !ok {
				return false, vm.typeError("'%s' object is not callable", vm.typeName(callee))
			}
			vm.stack[fi] = call
			if err := vm.insertSelf(fi, callee, &argc); err != nil {
				return false, err
			}
		}
	}
}

// callArgs returns the positional arguments of the call at fi, including a
// non-Nil self slot.
func (vm *VM) callArgs(fi, argc int) []Value {
	if vm.stack[fi+1] != Nil {
		return vm.stack[fi+1 : fi+2+argc]
	}
	return vm.stack[fi+2 : fi+2+argc]
}

func (vm *VM) callFunction(fi int, callee Value, fn *object.Function, argc, kwc int, entry bool) (bool, error) {
	decl := fn.Decl
	u := decl.Unit
	if u.Released() {
		return false, vm.eb.released(u)
	}
	pos := vm.callArgs(fi, argc)
	base := fi + 2
	if vm.stack[fi+1] != Nil {
		base = fi + 1
	}

	if decl.Simple && kwc == 0 {
		if len(pos) != decl.NArgs {
			return false, vm.arityError(decl, len(pos))
		}
	} else {
		locals, err := vm.bind(decl, fn, pos, vm.stack[fi+2+argc:fi+2+argc+2*kwc])
		if err != nil {
			return false, err
		}
		base = fi + 1
		if decl.Generator {
			return false, vm.newGeneratorAt(fi, callee, fn, locals)
		}
		if base+u.NLocals()+u.MaxDepth > len(vm.stack) {
			return false, vm.raisef(vm.types.stackOverflow, "value stack overflow")
		}
		vm.truncate(base)
		copy(vm.stack[base:], locals)
		vm.sp = base + len(locals)
	}

	f, err := vm.pushFrame(u, base, fi)
	if err != nil {
		return false, err
	}
	f.Func = callee
	f.Module = fn.Module
	f.Globals = vm.obj(fn.Module).Attr
	f.closure = fn.Closure
	f.entry = entry
	return true, nil
}

func (vm *VM) arityError(decl *code.FuncDecl, given int) error {
	if given < decl.NArgs {
		return vm.typeError("%s() missing %d required positional argument%s: '%s'",
			decl.Name, decl.NArgs-given, plural(decl.NArgs-given), decl.Unit.Varnames[given])
	}
	return vm.typeError("%s() takes %d positional argument%s but %d were given",
		decl.Name, decl.NArgs, plural(decl.NArgs), given)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// bind maps positional arguments and keyword pairs onto the parameter slots
// of decl. The result lives in vm.scratch and holds every local slot.
func (vm *VM) bind(decl *code.FuncDecl, fn *object.Function, pos []Value, kws []Value) ([]Value, error) {
	u := decl.Unit
	n := u.NLocals()
	if cap(vm.scratch) < n {
		vm.scratch = make([]Value, n)
	}
	out := vm.scratch[:n]
	clear(out)

	np := decl.NArgs
	if len(pos) > np && !decl.Star {
		return nil, vm.typeError("%s() takes %d positional argument%s but %d were given",
			decl.Name, np, plural(np), len(pos))
	}
	copy(out, pos[:min(len(pos), np)])
	if decl.Star {
		var rest []Value
		if len(pos) > np {
			rest = pos[np:]
		}
		out[decl.StarSlot()] = vm.NewTuple(rest)
	}

	var extra *object.Dict
	var extraV Value
	if decl.StarKw {
		extraV = vm.NewDict()
		extra, _ = vm.dictOf(extraV)
		out[decl.StarKwSlot()] = extraV
	}
	named := np + len(decl.KwOnly)
	for i := 0; i+1 < len(kws); i += 2 {
		key, _ := vm.strOf(kws[i])
		slot, ok := u.VarIndex[symbol.Intern(key)]
		if ok && slot < named {
			if out[slot] != Nil {
				return nil, vm.typeError("%s() got multiple values for argument '%s'", decl.Name, key)
			}
			out[slot] = kws[i+1]
			continue
		}
		if extra == nil {
			return nil, vm.typeError("%s() got an unexpected keyword argument '%s'", decl.Name, key)
		}
		if err := extra.Set(vm, kws[i], kws[i+1]); err != nil {
			return nil, err
		}
	}

	firstDefault := np - len(decl.Defaults)
	for i := 0; i < np; i++ {
		if out[i] != Nil {
			continue
		}
		if i >= firstDefault {
			out[i] = fn.Defaults[i-firstDefault]
			continue
		}
		return nil, vm.typeError("%s() missing 1 required positional argument: '%s'", decl.Name, u.Varnames[i])
	}
	for j := range decl.KwOnly {
		if out[np+j] != Nil {
			continue
		}
		if d := fn.Defaults[len(decl.Defaults)+j]; d != Nil {
			out[np+j] = d
			continue
		}
		return nil, vm.typeError("%s() missing 1 required keyword-only argument: '%s'", decl.Name, decl.KwOnly[j])
	}
	return out, nil
}

func (vm *VM) callNative(fi int, n *object.NativeFunc, argc, kwc int) error {
	fn, ok := n.Fn.(NativeFn)
	if !ok {
		if f, ok2 := n.Fn.(func(*VM, []Value, []Value) (Value, error)); ok2 {
			fn = f
		} else {
			return vm.eb.badValue("native "+n.Name, vm.stack[fi])
		}
	}
	args := vm.callArgs(fi, argc)
	given := len(args)
	if n.BindsSelf {
		if given == 0 {
			return vm.typeError("descriptor '%s' needs an argument", n.Name)
		}
		given--
	}

	var kw []Value
	if len(n.Kw) > 0 {
		kw = make([]Value, len(n.Kw))
		for i, a := range n.Kw {
			kw[i] = a.Default
		}
	}
	if n.Argc >= 0 {
		if given < n.Argc {
			return vm.typeError("%s() takes %s but %d were given", n.Name, vm.nativeArity(n), given)
		}
		if extra := given - n.Argc; extra > 0 {
			if extra > countPositionalKw(n.Kw) {
				return vm.typeError("%s() takes %s but %d were given", n.Name, vm.nativeArity(n), given)
			}
			pos := args[len(args)-extra:]
			copy(kw, pos)
			args = args[:len(args)-extra]
		}
	}

	var rest *object.Dict
	restSlot := -1
	for i, a := range n.Kw {
		if a.Name == "**" {
			restSlot = i
		}
	}
	kws := vm.stack[fi+2+argc : fi+2+argc+2*kwc]
	for i := 0; i+1 < len(kws); i += 2 {
		key, _ := vm.strOf(kws[i])
		slot := -1
		for j, a := range n.Kw {
			if a.Name == key {
				slot = j
				break
			}
		}
		if slot >= 0 {
			kw[slot] = kws[i+1]
			continue
		}
		if restSlot < 0 {
			return vm.typeError("%s() got an unexpected keyword argument '%s'", n.Name, key)
		}
		if rest == nil {
			d := vm.NewDict()
			kw[restSlot] = d
			rest, _ = vm.dictOf(d)
		}
		if err := rest.Set(vm, kws[i], kws[i+1]); err != nil {
			return err
		}
	}

	r, err := fn(vm, args, kw)
	if err != nil {
		return vm.throw(err)
	}
	if r == Nil {
		r = None
	}
	vm.truncate(fi)
	vm.push(r)
	return nil
}

// countPositionalKw is the number of keyword parameters that may also be
// passed positionally.
func countPositionalKw(kw []object.NameArg) int {
	n := 0
	for _, a := range kw {
		if a.Name == "**" {
			break
		}
		n++
	}
	return n
}

func (vm *VM) nativeArity(n *object.NativeFunc) string {
	opt := countPositionalKw(n.Kw)
	switch {
	case opt == 0 && n.Argc == 1:
		return "exactly one argument"
	case opt == 0:
		return strconv.Itoa(n.Argc) + " arguments"
	}
	return "from " + strconv.Itoa(n.Argc) + " to " + strconv.Itoa(n.Argc+opt) + " arguments"
}

// throw normalises an error returned by Go code into the raised exception.
func (vm *VM) throw(err error) error {
	if err == errThrown {
		return err
	}
	if _, fatal := err.(*FatalError); fatal {
		return err
	}
	vm.exc = vm.excFromError(err)
	return errThrown
}

// instantiate calls a type.
func (vm *VM) instantiate(fi int, typ Value, argc, kwc int, entry bool) (bool, error) {
	ti := vm.typeInfo(typ)
	if ctor, ok := vm.ctors[typ]; ok {
		vm.stack[fi] = ctor
		return false, vm.callNative(fi, vm.obj(ctor).Data.(*object.NativeFunc), argc, kwc)
	}
	if ti.Instance != object.KInstance && ti.Instance != object.KException {
		return false, vm.typeError("cannot create '%s' instances", ti.Name)
	}
	if vm.stack[fi+1] != Nil {
		// a receiver in the self slot is a positional argument of the type
		if err := vm.insertSelf(fi, Nil, &argc); err != nil {
			return false, err
		}
	}

	var inst Value
	if ti.Instance == object.KException {
		inst = vm.newException(typ, vm.stack[fi+2:fi+2+argc]...)
	} else {
		var o *object.Object
		inst, o = vm.Heap.New(object.KInstance, typ, 0)
		o.Attr = object.NewNameDict(0)
	}

	init, ok := vm.lookupType(typ, symbol.Init)
	if !ok {
		if ti.Instance == object.KInstance && argc+kwc > 0 {
			return false, vm.typeError("%s() takes no arguments", ti.Name)
		}
		vm.truncate(fi)
		vm.push(inst)
		return false, nil
	}
	vm.stack[fi] = init
	vm.stack[fi+1] = inst
	io := vm.obj(init)
	if io != nil && io.Kind == object.KFunction {
		pushed, err := vm.callFunction(fi, init, io.Data.(*object.Function), argc, kwc, entry)
		if err != nil || !pushed {
			return pushed, err
		}
		vm.top().instance = inst
		return true, nil
	}
	// native __init__ (BaseException): keep the instance, drop the result
	if _, err := vm.invoke(fi, argc, kwc, false); err != nil {
		return false, err
	}
	vm.stack[fi] = inst
	return false, nil
}

// callable reports whether v can be called.
func (vm *VM) callable(v Value) bool {
	o := vm.obj(v)
	if o == nil {
		return false
	}
	switch o.Kind {
	case object.KFunction, object.KNative, object.KBoundMethod, object.KType,
		object.KStaticMethod, object.KClassMethod:
		return true
	}
	_, ok := vm.lookupType(o.Type, symbol.Call)
	return ok
}

// newFunction materialises a function object for decl.
func (vm *VM) newFunction(f *Frame, decl *code.FuncDecl) Value {
	defaults := make([]Value, 0, len(decl.Defaults)+len(decl.KwDefaults))
	for _, k := range decl.Defaults {
		defaults = append(defaults, vm.constValue(k))
	}
	for _, k := range decl.KwDefaults {
		if k.Has {
			defaults = append(defaults, vm.constValue(k.Value))
		} else {
			defaults = append(defaults, Nil)
		}
	}
	closure := vm.frameCells(f)
	v, _ := vm.Heap.NewData(object.KFunction, vm.types.function, &object.Function{
		Decl:     decl.Retain(),
		Module:   f.Module,
		Closure:  closure,
		Owner:    Nil,
		Defaults: defaults,
	})
	return v
}

// frameCells returns the closure environment of f, creating it from the
// bound locals on first use. Module frames have none.
func (vm *VM) frameCells(f *Frame) Value {
	if f.cells != Nil {
		return f.cells
	}
	if f.Unit.Kind == code.KindModule {
		return Nil
	}
	v, o := vm.Heap.NewData(object.KCells, vm.types.cells, &object.Cells{Parent: f.closure})
	o.Attr = object.NewNameDict(len(f.Unit.Varnames))
	for i, n := range f.Unit.Varnames {
		if x := vm.stack[f.Base+i]; x != Nil {
			o.Attr.Set(n, x)
		}
	}
	f.cells = v
	return v
}
