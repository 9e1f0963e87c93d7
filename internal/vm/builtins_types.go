package vm

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"krait/internal/object"
	"krait/internal/symbol"
)

// ctor registers the constructor called when a builtin type is called.
func (vm *VM) ctor(typ Value, nm string, argc int, fn NativeFn, kw ...object.NameArg) {
	vm.ctors[typ] = vm.NewNative(nm, argc, fn, kw...)
}

func (vm *VM) initCtors() {
	t := &vm.types
	vm.ctor(t.int_, "int", 0, ctorInt, opt("x", vm.NewInt(0)), opt("base", Nil))
	vm.ctor(t.float, "float", 0, ctorFloat, opt("x", vm.NewFloat(0)))
	vm.ctor(t.str, "str", 0, func(vm *VM, _, kw []Value) (Value, error) {
		if kw[0] == Nil {
			return vm.NewStr(""), nil
		}
		if vm.is(kw[0], object.KStr) {
			return kw[0], nil
		}
		s, err := vm.str(kw[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	}, opt("object", Nil))
	vm.ctor(t.bool_, "bool", 0, func(vm *VM, _, kw []Value) (Value, error) {
		b, err := vm.truth(kw[0])
		return object.Bool(b), err
	}, opt("x", False))
	vm.ctor(t.list, "list", 0, func(vm *VM, _, kw []Value) (Value, error) {
		if kw[0] == Nil {
			return vm.NewList(nil), nil
		}
		return vm.collect(kw[0])
	}, opt("iterable", Nil))
	vm.ctor(t.tuple, "tuple", 0, func(vm *VM, _, kw []Value) (Value, error) {
		switch {
		case kw[0] == Nil:
			return vm.NewTuple(nil), nil
		case vm.is(kw[0], object.KTuple):
			return kw[0], nil
		}
		items, err := vm.sequence(kw[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewTuple(items), nil
	}, opt("iterable", Nil))
	vm.ctor(t.dict, "dict", 0, func(vm *VM, _, kw []Value) (Value, error) {
		d := vm.NewDict()
		n := vm.pin(d)
		defer vm.unpinTo(n)
		if kw[0] != Nil {
			if err := vm.dictMerge(d, kw[0]); err != nil {
				return Nil, err
			}
		}
		if kw[1] != Nil {
			if err := vm.dictUpdate(d, kw[1]); err != nil {
				return Nil, err
			}
		}
		return d, nil
	}, opt("mapping", Nil), opt("**", Nil))
	vm.ctor(t.typ, "type", 1, ctorType, opt("bases", Nil), opt("dict", Nil))
	vm.ctor(t.object, "object", 0, func(vm *VM, _, _ []Value) (Value, error) {
		v, _ := vm.Heap.New(object.KInstance, vm.types.object, 0)
		return v, nil
	})
	vm.ctor(t.range_, "range", 1, ctorRange, opt("stop", Nil), opt("step", Nil))
	vm.ctor(t.slice, "slice", 1, func(vm *VM, args, kw []Value) (Value, error) {
		s := &object.Slice{Start: None, Stop: args[0], Step: None}
		if kw[0] != Nil {
			s.Start, s.Stop = args[0], kw[0]
			if kw[1] != Nil {
				s.Step = kw[1]
			}
		}
		v, _ := vm.Heap.NewData(object.KSlice, vm.types.slice, s)
		return v, nil
	}, opt("stop", Nil), opt("step", Nil))
	vm.ctor(t.property, "property", 0, func(vm *VM, _, kw []Value) (Value, error) {
		return vm.newProperty(kw[0], kw[1]), nil
	}, opt("fget", None), opt("fset", None), opt("fdel", None), opt("doc", None))
	vm.ctor(t.staticmethod, "staticmethod", 1, func(vm *VM, args, _ []Value) (Value, error) {
		v, _ := vm.Heap.NewData(object.KStaticMethod, vm.types.staticmethod, &object.Wrapped{Func: args[0]})
		return v, nil
	})
	vm.ctor(t.classmethod, "classmethod", 1, func(vm *VM, args, _ []Value) (Value, error) {
		v, _ := vm.Heap.NewData(object.KClassMethod, vm.types.classmethod, &object.Wrapped{Func: args[0]})
		return v, nil
	})
	vm.ctor(t.super, "super", 0, ctorSuper, opt("type", Nil), opt("object", Nil))
}

func (vm *VM) newProperty(get, set Value) Value {
	v, _ := vm.Heap.NewData(object.KProperty, vm.types.property, &object.Property{Getter: get, Setter: set})
	return v
}

// dictMerge fills d from a mapping or an iterable of key/value pairs.
func (vm *VM) dictMerge(dst, src Value) error {
	if vm.is(src, object.KDict) {
		return vm.dictUpdate(dst, src)
	}
	d, _ := vm.dictOf(dst)
	it, err := vm.iter(src)
	if err != nil {
		return err
	}
	n := vm.pin(it)
	defer vm.unpinTo(n)
	for i := 0; ; i++ {
		x, ok, err := vm.iterNext(it)
		if err != nil || !ok {
			return err
		}
		pair, err := vm.sequence(x)
		if err != nil {
			return vm.typeError("cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return vm.valueError("dictionary update sequence element #%d has length %d; 2 is required", i, len(pair))
		}
		if err := d.Set(vm, pair[0], pair[1]); err != nil {
			return err
		}
	}
}

func ctorInt(vm *VM, _, kw []Value) (Value, error) {
	x, base := kw[0], kw[1]
	if base != Nil {
		b, ok := vm.intOf(base)
		if !ok {
			return Nil, vm.notInteger(base)
		}
		s, ok := vm.strOf(x)
		if !ok {
			return Nil, vm.typeError("int() can't convert non-string with explicit base")
		}
		if b != 0 && (b < 2 || b > 36) {
			return Nil, vm.valueError("int() base must be >= 2 and <= 36, or 0")
		}
		return vm.parseInt(s, int(b))
	}
	if i, ok := vm.intOf(x); ok {
		return vm.NewInt(i), nil
	}
	if f, ok := vm.floatOf(x); ok {
		return vm.floatToInt(f)
	}
	if s, ok := vm.strOf(x); ok {
		return vm.parseInt(s, 10)
	}
	if fn, ok := vm.lookupType(vm.typeOf(x), symbol.Intern("__int__")); ok {
		r, err := vm.Call(fn, x)
		if err != nil {
			return Nil, err
		}
		if !vm.isInt(r) {
			return Nil, vm.typeError("__int__ returned non-int (type %s)", vm.typeName(r))
		}
		return r, nil
	}
	return Nil, vm.typeError("int() argument must be a string or a number, not '%s'", vm.typeName(x))
}

func (vm *VM) floatToInt(f float64) (Value, error) {
	switch {
	case math.IsNaN(f):
		return Nil, vm.valueError("cannot convert float NaN to integer")
	case math.IsInf(f, 0):
		return Nil, vm.raisef(vm.types.overflowError, "cannot convert float infinity to integer")
	}
	f = math.Trunc(f)
	if f < -(1<<63) || f >= 1<<63 {
		return Nil, vm.overflow()
	}
	return vm.NewInt(int64(f)), nil
}

// stripUnderscores removes digit separators, rejecting misplaced ones.
func stripUnderscores(s string) (string, bool) {
	if !strings.Contains(s, "_") {
		return s, true
	}
	if strings.HasPrefix(s, "_") || strings.HasSuffix(s, "_") || strings.Contains(s, "__") {
		return "", false
	}
	return strings.ReplaceAll(s, "_", ""), true
}

// parseInt converts a literal the way int(s, base) does.
func (vm *VM) parseInt(lit string, base int) (Value, error) {
	bad := func() error {
		return vm.valueError("invalid literal for int() with base %d: %s", base, quoteString(lit))
	}
	s := strings.TrimSpace(lit)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if len(s) > 2 && s[0] == '0' {
		p := base
		switch s[1] {
		case 'x', 'X':
			p = 16
		case 'o', 'O':
			p = 8
		case 'b', 'B':
			p = 2
		}
		if p != base && base == 0 {
			base = p
		}
		if p == base && s[1] > '9' {
			s = strings.TrimPrefix(s[2:], "_")
		}
	}
	if base == 0 {
		if len(s) > 1 && s[0] == '0' && strings.Trim(s, "0_") != "" {
			return Nil, bad()
		}
		base = 10
	}
	s, ok := stripUnderscores(s)
	if !ok || s == "" {
		return Nil, bad()
	}
	u, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return Nil, vm.overflow()
		}
		return Nil, bad()
	}
	switch {
	case neg && u <= 1<<63:
		return vm.NewInt(int64(-u)), nil // #nosec G115 -- bounded above
	case !neg && u < 1<<63:
		return vm.NewInt(int64(u)), nil // #nosec G115 -- bounded above
	}
	return Nil, vm.overflow()
}

func ctorFloat(vm *VM, _, kw []Value) (Value, error) {
	x := kw[0]
	if f, ok := vm.floatOf(x); ok {
		return vm.NewFloat(f), nil
	}
	if i, ok := vm.intOf(x); ok {
		return vm.NewFloat(float64(i)), nil
	}
	if s, ok := vm.strOf(x); ok {
		return vm.parseFloat(s)
	}
	if fn, ok := vm.lookupType(vm.typeOf(x), symbol.Intern("__float__")); ok {
		return vm.Call(fn, x)
	}
	return Nil, vm.typeError("float() argument must be a string or a real number, not '%s'", vm.typeName(x))
}

func (vm *VM) parseFloat(lit string) (Value, error) {
	s := strings.TrimSpace(lit)
	bad := vm.valueError
	if strings.ContainsAny(s, "xXpP") && !strings.Contains(strings.ToLower(s), "inf") {
		return Nil, bad("could not convert string to float: %s", quoteString(lit))
	}
	t, ok := stripUnderscores(s)
	if !ok {
		return Nil, bad("could not convert string to float: %s", quoteString(lit))
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Nil, bad("could not convert string to float: %s", quoteString(lit))
	}
	return vm.NewFloat(f), nil
}

func ctorType(vm *VM, args, kw []Value) (Value, error) {
	if kw[0] == Nil && kw[1] == Nil {
		return vm.typeOf(args[0]), nil
	}
	if kw[1] == Nil {
		return Nil, vm.typeError("type() takes 1 or 3 arguments")
	}
	nm, ok := vm.strOf(args[0])
	if !ok {
		return Nil, vm.typeError("type.__new__() argument 1 must be str, not %s", vm.typeName(args[0]))
	}
	bases, ok := vm.elems(kw[0])
	if !ok || !vm.is(kw[0], object.KTuple) {
		return Nil, vm.typeError("type.__new__() argument 2 must be tuple, not %s", vm.typeName(kw[0]))
	}
	ns, ok := vm.dictOf(kw[1])
	if !ok {
		return Nil, vm.typeError("type.__new__() argument 3 must be dict, not %s", vm.typeName(kw[1]))
	}
	base := Nil
	switch len(bases) {
	case 0:
	case 1:
		base = bases[0]
	default:
		return Nil, vm.typeError("multiple inheritance is not supported")
	}
	mod := vm.callerModule()
	cls, err := vm.newClass(nm, base, mod)
	if err != nil {
		return Nil, err
	}
	vm.obj(cls).Attr.Set(symbol.Module, vm.NewStr(mod))
	var keyErr error
	ns.Each(func(k, v Value) bool {
		ks, ok := vm.strOf(k)
		if !ok {
			keyErr = vm.typeError("type.__new__() dict keys must be str")
			return false
		}
		vm.storeClassAttr(cls, symbol.Intern(ks), v)
		return true
	})
	return cls, keyErr
}

// callerModule is the name of the module whose code is running.
func (vm *VM) callerModule() string {
	if len(vm.frames) == 0 {
		return symbol.Main.String()
	}
	if mi, ok := vm.obj(vm.top().Module).Data.(*object.ModuleInfo); ok {
		return mi.Name
	}
	return ""
}

func ctorRange(vm *VM, args, kw []Value) (Value, error) {
	r := &object.Range{Step: 1}
	vals := []*int64{&r.Stop}
	src := []Value{args[0]}
	if kw[0] != Nil {
		vals = []*int64{&r.Start, &r.Stop}
		src = []Value{args[0], kw[0]}
		if kw[1] != Nil {
			vals = append(vals, &r.Step)
			src = append(src, kw[1])
		}
	}
	for i, v := range src {
		x, ok := vm.intOf(v)
		if !ok {
			return Nil, vm.notInteger(v)
		}
		*vals[i] = x
	}
	if r.Step == 0 {
		return Nil, vm.valueError("range() arg 3 must not be zero")
	}
	v, _ := vm.Heap.NewData(object.KRange, vm.types.range_, r)
	return v, nil
}

// ctorSuper builds a super proxy. Without arguments the class comes from
// the running method and the receiver from its first parameter.
func ctorSuper(vm *VM, _, kw []Value) (Value, error) {
	start, self := kw[0], kw[1]
	if start == Nil {
		if len(vm.frames) == 0 {
			return Nil, vm.raisef(vm.types.runtimeError, "super(): no arguments")
		}
		f := vm.top()
		fo := vm.obj(f.Func)
		if fo == nil || fo.Kind != object.KFunction {
			return Nil, vm.raisef(vm.types.runtimeError, "super(): no arguments")
		}
		fn := fo.Data.(*object.Function)
		if fn.Owner == Nil {
			return Nil, vm.raisef(vm.types.runtimeError, "super(): __class__ cell not found")
		}
		if len(f.Unit.Varnames) == 0 || fn.Decl.NArgs == 0 {
			return Nil, vm.raisef(vm.types.runtimeError, "super(): no arguments")
		}
		start, self = fn.Owner, vm.loadLocal(f, 0)
		if self == Nil {
			return Nil, vm.raisef(vm.types.runtimeError, "super(): arg[0] deleted")
		}
	}
	if !vm.isType(start) {
		return Nil, vm.typeError("super() argument 1 must be a type, not %s", vm.typeName(start))
	}
	if self == Nil {
		return Nil, vm.typeError("super() without an object argument is not supported")
	}
	if !vm.isInstance(self, start) && !(vm.isType(self) && vm.isSubtype(self, start)) {
		return Nil, vm.typeError("super(type, obj): obj must be an instance or subtype of type")
	}
	v, _ := vm.Heap.NewData(object.KSuper, vm.types.super, &object.Super{Self: self, Start: start})
	return v, nil
}

func (vm *VM) excSelf(v Value) (*object.ExcInfo, error) {
	info, ok := vm.excInfo(v)
	if !ok {
		return nil, vm.typeError("descriptor requires a 'BaseException' object but received a '%s'", vm.typeName(v))
	}
	return info, nil
}

func (vm *VM) initExceptionMethods() {
	t := vm.obj(vm.types.baseException).Attr
	t.Set(symbol.Init, vm.newMethod("__init__", -1, func(vm *VM, args, _ []Value) (Value, error) {
		info, err := vm.excSelf(args[0])
		if err != nil {
			return Nil, err
		}
		info.Args = vm.NewTuple(args[1:])
		return None, nil
	}))
	t.Set(symbol.Str, vm.newMethod("__str__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		if _, err := vm.excSelf(args[0]); err != nil {
			return Nil, err
		}
		s, err := vm.exceptionString(args[0], vm.obj(args[0]), false, true)
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	}))
	t.Set(symbol.Repr, vm.newMethod("__repr__", 0, func(vm *VM, args, _ []Value) (Value, error) {
		if _, err := vm.excSelf(args[0]); err != nil {
			return Nil, err
		}
		s, err := vm.exceptionString(args[0], vm.obj(args[0]), true, true)
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	}))
	t.Set(symbol.Intern("with_traceback"), vm.newMethod("with_traceback", 1, func(vm *VM, args, _ []Value) (Value, error) {
		info, err := vm.excSelf(args[0])
		if err != nil {
			return Nil, err
		}
		if args[1] == None {
			info.Trace = info.Trace[:0]
		}
		return args[0], nil
	}))
}

// initObjectMethods installs methods of property, type, int and float.
func (vm *VM) initObjectMethods() {
	prop := func(v Value) (*object.Property, error) {
		if o := vm.obj(v); o != nil && o.Kind == object.KProperty {
			return o.Data.(*object.Property), nil
		}
		return nil, vm.typeError("descriptor requires a 'property' object but received a '%s'", vm.typeName(v))
	}
	p := vm.obj(vm.types.property).Attr
	p.Set(symbol.Intern("getter"), vm.newMethod("getter", 1, func(vm *VM, args, _ []Value) (Value, error) {
		pr, err := prop(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.newProperty(args[1], pr.Setter), nil
	}))
	p.Set(symbol.Intern("setter"), vm.newMethod("setter", 1, func(vm *VM, args, _ []Value) (Value, error) {
		pr, err := prop(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.newProperty(pr.Getter, args[1]), nil
	}))

	vm.obj(vm.types.typ).Attr.Set(symbol.Intern("mro"), vm.newMethod("mro", 0, func(vm *VM, args, _ []Value) (Value, error) {
		if !vm.isType(args[0]) {
			return Nil, vm.typeError("descriptor 'mro' requires a 'type' object")
		}
		var chain []Value
		for t := args[0]; t != Nil; t = vm.typeInfo(t).Base {
			chain = append(chain, t)
		}
		return vm.NewList(chain), nil
	}))

	vm.obj(vm.types.int_).Attr.Set(symbol.Intern("bit_length"), vm.newMethod("bit_length", 0, func(vm *VM, args, _ []Value) (Value, error) {
		i, ok := vm.intOf(args[0])
		if !ok {
			return Nil, vm.notInteger(args[0])
		}
		n := int64(0)
		u := uint64(i) // #nosec G115 -- magnitude below
		if i < 0 {
			u = -u
		}
		for ; u != 0; u >>= 1 {
			n++
		}
		return vm.NewInt(n), nil
	}))
	vm.obj(vm.types.float).Attr.Set(symbol.Intern("is_integer"), vm.newMethod("is_integer", 0, func(vm *VM, args, _ []Value) (Value, error) {
		f, ok := vm.floatOf(args[0])
		if !ok {
			return Nil, vm.typeError("descriptor 'is_integer' requires a 'float' object")
		}
		return object.Bool(!math.IsInf(f, 0) && f == math.Trunc(f)), nil
	}))
}
