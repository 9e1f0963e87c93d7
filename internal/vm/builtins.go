package vm

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// def registers a builtin function.
func (vm *VM) def(nm string, argc int, fn NativeFn, kw ...object.NameArg) {
	vm.builtins.Set(symbol.Intern(nm), vm.NewNative(nm, argc, fn, kw...))
}

func (vm *VM) initBuiltins() {
	vm.builtins = object.NewNameDict(128)
	mod := vm.newModule("builtins", "")
	vm.obj(mod).Attr = vm.builtins
	vm.builtins.Set(symbol.NameAttr, vm.NewStr("builtins"))
	vm.register("builtins", mod)

	t := &vm.types
	for nm, typ := range map[string]Value{
		"object": t.object, "type": t.typ, "int": t.int_, "float": t.float, "bool": t.bool_,
		"str": t.str, "list": t.list, "tuple": t.tuple, "dict": t.dict, "range": t.range_,
		"slice": t.slice, "property": t.property, "staticmethod": t.staticmethod,
		"classmethod": t.classmethod, "super": t.super,
	} {
		vm.builtins.Set(symbol.Intern(nm), typ)
	}
	for nm, typ := range vm.excTypes {
		vm.builtins.Set(symbol.Intern(nm), typ)
	}
	vm.builtins.Set(symbol.Intern("NotImplemented"), NotImplemented)
	vm.builtins.Set(symbol.Intern("Ellipsis"), Ellipsis)

	vm.initCtors()
	vm.initExceptionMethods()
	vm.initGeneratorMethods()
	vm.initStrMethods()
	vm.initListMethods()
	vm.initDictMethods()
	vm.initObjectMethods()

	vm.def("print", -1, builtinPrint, opt("sep", None), opt("end", None))
	vm.def("len", 1, func(vm *VM, args, _ []Value) (Value, error) {
		n, err := vm.length(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewInt(n), nil
	})
	vm.def("repr", 1, func(vm *VM, args, _ []Value) (Value, error) {
		s, err := vm.repr(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	})
	vm.def("format", 1, func(vm *VM, args, kw []Value) (Value, error) {
		spec := ""
		if kw[0] != None {
			s, ok := vm.strOf(kw[0])
			if !ok {
				return Nil, vm.typeError("format() argument 2 must be str, not %s", vm.typeName(kw[0]))
			}
			spec = s
		}
		s, err := vm.format(args[0], spec)
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(s), nil
	}, opt("format_spec", None))
	vm.def("isinstance", 2, func(vm *VM, args, _ []Value) (Value, error) {
		ok, err := vm.classCheck("isinstance", vm.typeOf(args[0]), args[1])
		return object.Bool(ok), err
	})
	vm.def("issubclass", 2, func(vm *VM, args, _ []Value) (Value, error) {
		if !vm.isType(args[0]) {
			return Nil, vm.typeError("issubclass() arg 1 must be a class")
		}
		ok, err := vm.classCheck("issubclass", args[0], args[1])
		return object.Bool(ok), err
	})
	vm.def("hasattr", 2, func(vm *VM, args, _ []Value) (Value, error) {
		n, err := vm.attrName(args[1])
		if err != nil {
			return Nil, err
		}
		ok, err := vm.hasattr(args[0], n)
		return object.Bool(ok), err
	})
	vm.def("getattr", 2, func(vm *VM, args, kw []Value) (Value, error) {
		n, err := vm.attrName(args[1])
		if err != nil {
			return Nil, err
		}
		if kw[0] == Nil {
			return vm.getattr(args[0], n)
		}
		ok, err := vm.hasattr(args[0], n)
		if err != nil || !ok {
			return kw[0], err
		}
		return vm.getattr(args[0], n)
	}, opt("default", Nil))
	vm.def("setattr", 3, func(vm *VM, args, _ []Value) (Value, error) {
		n, err := vm.attrName(args[1])
		if err != nil {
			return Nil, err
		}
		return None, vm.setattr(args[0], n, args[2])
	})
	vm.def("delattr", 2, func(vm *VM, args, _ []Value) (Value, error) {
		n, err := vm.attrName(args[1])
		if err != nil {
			return Nil, err
		}
		return None, vm.delattr(args[0], n)
	})
	vm.def("abs", 1, builtinAbs)
	vm.def("min", -1, func(vm *VM, args, kw []Value) (Value, error) {
		return vm.minmax("min", args, kw[0], kw[1], false)
	}, opt("key", None), opt("default", Nil))
	vm.def("max", -1, func(vm *VM, args, kw []Value) (Value, error) {
		return vm.minmax("max", args, kw[0], kw[1], true)
	}, opt("key", None), opt("default", Nil))
	vm.def("sum", 1, builtinSum, opt("start", vm.NewInt(0)))
	vm.def("sorted", 1, func(vm *VM, args, kw []Value) (Value, error) {
		lst, err := vm.collect(args[0])
		if err != nil {
			return Nil, err
		}
		n := vm.pin(lst)
		defer vm.unpinTo(n)
		rev, err := vm.truth(kw[1])
		if err != nil {
			return Nil, err
		}
		return lst, vm.sortList(vm.obj(lst), kw[0], rev)
	}, opt("key", None), opt("reverse", False))
	vm.def("reversed", 1, builtinReversed)
	vm.def("enumerate", 1, func(vm *VM, args, kw []Value) (Value, error) {
		start, ok := vm.intOf(kw[0])
		if !ok {
			return Nil, vm.notInteger(kw[0])
		}
		it, err := vm.iter(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.newIter(&enumerateIter{it: it, n: start}), nil
	}, opt("start", vm.NewInt(0)))
	vm.def("zip", -1, func(vm *VM, args, _ []Value) (Value, error) {
		its, err := vm.iters(args)
		if err != nil {
			return Nil, err
		}
		return vm.newIter(&zipIter{its: its}), nil
	})
	vm.def("map", -1, func(vm *VM, args, _ []Value) (Value, error) {
		if len(args) < 2 {
			return Nil, vm.typeError("map() must have at least two arguments.")
		}
		its, err := vm.iters(args[1:])
		if err != nil {
			return Nil, err
		}
		return vm.newIter(&mapIter{fn: args[0], its: its}), nil
	})
	vm.def("filter", 2, func(vm *VM, args, _ []Value) (Value, error) {
		it, err := vm.iter(args[1])
		if err != nil {
			return Nil, err
		}
		return vm.newIter(&filterIter{fn: args[0], it: it}), nil
	})
	vm.def("iter", 1, func(vm *VM, args, _ []Value) (Value, error) {
		return vm.iter(args[0])
	})
	vm.def("next", 1, func(vm *VM, args, kw []Value) (Value, error) {
		if !vm.isIterator(args[0]) {
			return Nil, vm.typeError("'%s' object is not an iterator", vm.typeName(args[0]))
		}
		if o := vm.obj(args[0]); o.Kind == object.KGenerator {
			v, done, err := vm.resume(o.Data.(*Generator), None)
			switch {
			case err != nil:
				return Nil, err
			case !done:
				return v, nil
			case kw[0] != Nil:
				return kw[0], nil
			}
			return Nil, vm.stopIteration(v)
		}
		v, ok, err := vm.iterNext(args[0])
		if err != nil {
			return Nil, err
		}
		if !ok {
			if kw[0] != Nil {
				return kw[0], nil
			}
			return Nil, vm.stopIteration(None)
		}
		return v, nil
	}, opt("default", Nil))
	vm.def("hash", 1, func(vm *VM, args, _ []Value) (Value, error) {
		h, err := vm.Hash(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewInt(h), nil
	})
	vm.def("id", 1, func(vm *VM, args, _ []Value) (Value, error) {
		return vm.NewInt(int64(uint64(args[0]) >> 2)), nil // #nosec G115 -- identity bits
	})
	vm.def("callable", 1, func(vm *VM, args, _ []Value) (Value, error) {
		return object.Bool(vm.callable(args[0])), nil
	})
	vm.def("chr", 1, func(vm *VM, args, _ []Value) (Value, error) {
		i, ok := vm.intOf(args[0])
		if !ok {
			return Nil, vm.notInteger(args[0])
		}
		if i < 0 || i > utf8.MaxRune {
			return Nil, vm.valueError("chr() arg not in range(0x110000)")
		}
		return vm.NewStr(string(rune(i))), nil
	})
	vm.def("ord", 1, func(vm *VM, args, _ []Value) (Value, error) {
		s, ok := vm.strOf(args[0])
		if !ok {
			return Nil, vm.typeError("ord() expected string of length 1, but %s found", vm.typeName(args[0]))
		}
		if n := utf8.RuneCountInString(s); n != 1 {
			return Nil, vm.typeError("ord() expected a character, but string of length %d found", n)
		}
		r, _ := utf8.DecodeRuneInString(s)
		return vm.NewInt(int64(r)), nil
	})
	vm.def("hex", 1, radix(16, "0x"))
	vm.def("oct", 1, radix(8, "0o"))
	vm.def("bin", 1, radix(2, "0b"))
	vm.def("round", 1, builtinRound, opt("ndigits", None))
	vm.def("divmod", 2, func(vm *VM, args, _ []Value) (Value, error) {
		q, err := vm.binary(code.OpFloorDiv, args[0], args[1])
		if err != nil {
			return Nil, err
		}
		n := vm.pin(q)
		defer vm.unpinTo(n)
		r, err := vm.binary(code.OpMod, args[0], args[1])
		if err != nil {
			return Nil, err
		}
		return vm.NewTuple([]Value{q, r}), nil
	})
	vm.def("any", 1, func(vm *VM, args, _ []Value) (Value, error) {
		return vm.anyAll(args[0], true)
	})
	vm.def("all", 1, func(vm *VM, args, _ []Value) (Value, error) {
		return vm.anyAll(args[0], false)
	})
	vm.def("pow", 2, builtinPow, opt("mod", None))
	vm.def("dir", 0, builtinDir, opt("object", Nil))
	vm.def("vars", 0, func(vm *VM, _ []Value, kw []Value) (Value, error) {
		if kw[0] == Nil {
			return vm.globalsDict(), nil
		}
		o := vm.obj(kw[0])
		if o == nil || o.Attr == nil {
			return Nil, vm.typeError("vars() argument must have __dict__ attribute")
		}
		return vm.attrDict(o.Attr), nil
	}, opt("object", Nil))
	vm.def("__import__", 1, func(vm *VM, args, _ []Value) (Value, error) {
		s, ok := vm.strOf(args[0])
		if !ok {
			return Nil, vm.typeError("__import__() argument 1 must be str, not %s", vm.typeName(args[0]))
		}
		return vm.importModule(s)
	})
	vm.def("eval", 1, builtinEval, opt("globals", None), opt("locals", None))
	vm.def("exec", 1, builtinExec, opt("globals", None), opt("locals", None))
	vm.def("globals", 0, func(vm *VM, _, _ []Value) (Value, error) {
		return vm.globalsDict(), nil
	})
}

func builtinPrint(vm *VM, args, kw []Value) (Value, error) {
	sep, end := " ", "\n"
	for i, dst := range []*string{&sep, &end} {
		if kw[i] == None {
			continue
		}
		s, ok := vm.strOf(kw[i])
		if !ok {
			return Nil, vm.typeError("%s must be None or a string, not %s", []string{"sep", "end"}[i], vm.typeName(kw[i]))
		}
		*dst = s
	}
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteString(sep)
		}
		s, err := vm.str(a)
		if err != nil {
			return Nil, err
		}
		sb.WriteString(s)
	}
	sb.WriteString(end)
	return None, vm.write(sb.String())
}

// classCheck implements the second argument of isinstance and issubclass.
func (vm *VM) classCheck(fn string, t, spec Value) (bool, error) {
	if vm.isType(spec) {
		return vm.isSubtype(t, spec), nil
	}
	if o := vm.obj(spec); o != nil && o.Kind == object.KTuple {
		for _, x := range o.Elems() {
			ok, err := vm.classCheck(fn, t, x)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, vm.typeError("%s() arg 2 must be a type or tuple of types", fn)
}

func (vm *VM) attrName(v Value) (symbol.Name, error) {
	s, ok := vm.strOf(v)
	if !ok {
		return 0, vm.typeError("attribute name must be string, not '%s'", vm.typeName(v))
	}
	return symbol.Intern(s), nil
}

func (vm *VM) notInteger(v Value) error {
	return vm.typeError("'%s' object cannot be interpreted as an integer", vm.typeName(v))
}

var absName = symbol.Intern("__abs__")

func builtinAbs(vm *VM, args, _ []Value) (Value, error) {
	v := args[0]
	if i, ok := vm.intOf(v); ok {
		if i == math.MinInt64 {
			return Nil, vm.overflow()
		}
		if i < 0 {
			i = -i
		}
		return vm.NewInt(i), nil
	}
	if f, ok := vm.floatOf(v); ok {
		return vm.NewFloat(math.Abs(f)), nil
	}
	if fn, ok := vm.lookupType(vm.typeOf(v), absName); ok {
		return vm.Call(fn, v)
	}
	return Nil, vm.typeError("bad operand type for abs(): '%s'", vm.typeName(v))
}

// minmax implements min and max over one iterable or several arguments.
func (vm *VM) minmax(nm string, args []Value, key, def Value, greater bool) (Value, error) {
	var items []Value
	switch len(args) {
	case 0:
		return Nil, vm.typeError("%s expected at least 1 argument, got 0", nm)
	case 1:
		lst, err := vm.collect(args[0])
		if err != nil {
			return Nil, err
		}
		n := vm.pin(lst)
		defer vm.unpinTo(n)
		items = vm.obj(lst).Items
	default:
		if def != Nil {
			return Nil, vm.typeError("Cannot specify a default for %s() with multiple positional arguments", nm)
		}
		items = args
	}
	if len(items) == 0 {
		if def != Nil {
			return def, nil
		}
		return Nil, vm.valueError("%s() arg is an empty sequence", nm)
	}
	keys := items
	if key != None {
		kl, err := vm.mapKeys(items, key)
		if err != nil {
			return Nil, err
		}
		n := vm.pin(kl)
		defer vm.unpinTo(n)
		keys = vm.obj(kl).Items
	}
	best := 0
	for i := 1; i < len(items); i++ {
		var better bool
		var err error
		if greater {
			better, err = vm.less(keys[best], keys[i])
		} else {
			better, err = vm.less(keys[i], keys[best])
		}
		if err != nil {
			return Nil, err
		}
		if better {
			best = i
		}
	}
	return items[best], nil
}

// mapKeys applies key to every item, returning the results in a list.
func (vm *VM) mapKeys(items []Value, key Value) (Value, error) {
	kl := vm.NewList(make([]Value, 0, len(items)))
	n := vm.pin(kl)
	defer vm.unpinTo(n)
	ko := vm.obj(kl)
	for _, x := range items {
		k, err := vm.Call(key, x)
		if err != nil {
			return Nil, err
		}
		ko.Items = append(ko.Items, k)
	}
	return kl, nil
}

// sortList sorts a list in place, stable, optionally by key.
func (vm *VM) sortList(lo *object.Object, key Value, reverse bool) error {
	items := append([]Value(nil), lo.Items...)
	keys := items
	if key != None && key != Nil {
		kl, err := vm.mapKeys(items, key)
		if err != nil {
			return err
		}
		n := vm.pin(kl)
		defer vm.unpinTo(n)
		keys = vm.obj(kl).Items
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		x, y := keys[idx[a]], keys[idx[b]]
		if reverse {
			x, y = y, x
		}
		lt, err := vm.less(x, y)
		if err != nil {
			sortErr = err
		}
		return lt
	})
	if sortErr != nil {
		return sortErr
	}
	out := make([]Value, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	lo.Items = out
	return nil
}

func builtinSum(vm *VM, args, kw []Value) (Value, error) {
	if _, ok := vm.strOf(kw[0]); ok {
		return Nil, vm.typeError("sum() can't sum strings [use ''.join(seq) instead]")
	}
	it, err := vm.iter(args[0])
	if err != nil {
		return Nil, err
	}
	n := vm.pin(it)
	defer vm.unpinTo(n)
	acc := vm.pin(kw[0])
	for {
		x, ok, err := vm.iterNext(it)
		if err != nil {
			return Nil, err
		}
		if !ok {
			return vm.temps[acc], nil
		}
		r, err := vm.binary(code.OpAdd, vm.temps[acc], x)
		if err != nil {
			return Nil, err
		}
		vm.temps[acc] = r
	}
}

func builtinReversed(vm *VM, args, _ []Value) (Value, error) {
	v := args[0]
	o := vm.obj(v)
	if o != nil {
		switch o.Kind {
		case object.KList, object.KTuple:
			return vm.newIter(&reversedIter{seq: v, i: int64(len(o.Elems())) - 1}), nil
		case object.KStr:
			chars := vm.chars(o.Str)
			for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
				chars[i], chars[j] = chars[j], chars[i]
			}
			return vm.newIter(&seqIter{seq: vm.NewList(chars)}), nil
		case object.KRange:
			return vm.newIter(&reversedIter{seq: v, i: rangeLen(o.Data.(*object.Range)) - 1}), nil
		case object.KInstance:
			if _, ok := vm.lookupType(o.Type, symbol.GetItem); ok {
				n, err := vm.length(v)
				if err != nil {
					return Nil, err
				}
				return vm.newIter(&reversedIter{seq: v, i: n - 1}), nil
			}
		}
	}
	return Nil, vm.typeError("'%s' object is not reversible", vm.typeName(v))
}

// iters calls iter on every argument.
func (vm *VM) iters(args []Value) ([]Value, error) {
	lst := vm.NewList(make([]Value, 0, len(args)))
	n := vm.pin(lst)
	defer vm.unpinTo(n)
	lo := vm.obj(lst)
	for _, a := range args {
		it, err := vm.iter(a)
		if err != nil {
			return nil, err
		}
		lo.Items = append(lo.Items, it)
	}
	return lo.Items, nil
}

func radix(base int, prefix string) NativeFn {
	return func(vm *VM, args, _ []Value) (Value, error) {
		i, ok := vm.intOf(args[0])
		if !ok {
			return Nil, vm.notInteger(args[0])
		}
		if i < 0 {
			u := -uint64(i) // #nosec G115 -- magnitude of a negative int64
			return vm.NewStr("-" + prefix + strconv.FormatUint(u, base)), nil
		}
		return vm.NewStr(prefix + strconv.FormatInt(i, base)), nil
	}
}

func builtinRound(vm *VM, args, kw []Value) (Value, error) {
	v := args[0]
	if i, ok := vm.intOf(v); ok {
		if kw[0] == None {
			return vm.NewInt(i), nil
		}
		nd, ok := vm.intOf(kw[0])
		if !ok {
			return Nil, vm.notInteger(kw[0])
		}
		if nd >= 0 {
			return vm.NewInt(i), nil
		}
		p := int64(math.Pow10(int(-nd)))
		if p == 0 {
			return vm.NewInt(0), nil
		}
		r := float64(i) / float64(p)
		return vm.NewInt(int64(math.RoundToEven(r)) * p), nil
	}
	f, ok := vm.floatOf(v)
	if !ok {
		if fn, found := vm.lookupType(vm.typeOf(v), symbol.Intern("__round__")); found {
			return vm.Call(fn, v)
		}
		return Nil, vm.typeError("type %s doesn't define __round__ method", vm.typeName(v))
	}
	if kw[0] == None {
		switch {
		case math.IsNaN(f):
			return Nil, vm.valueError("cannot convert float NaN to integer")
		case math.IsInf(f, 0):
			return Nil, vm.raisef(vm.types.overflowError, "cannot convert float infinity to integer")
		}
		r := math.RoundToEven(f)
		if r < -(1<<63) || r >= 1<<63 {
			return Nil, vm.overflow()
		}
		return vm.NewInt(int64(r)), nil
	}
	nd, ok := vm.intOf(kw[0])
	if !ok {
		return Nil, vm.notInteger(kw[0])
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return v, nil
	}
	// decimal rounding through the shortest representation avoids 2.675 -> 2.68
	s := strconv.FormatFloat(f, 'f', int(max(nd, 0)), 64)
	if nd < 0 {
		p := math.Pow10(int(-nd))
		return vm.NewFloat(math.RoundToEven(f/p) * p), nil
	}
	r, _ := strconv.ParseFloat(s, 64)
	return vm.NewFloat(r), nil
}

func (vm *VM) anyAll(v Value, want bool) (Value, error) {
	it, err := vm.iter(v)
	if err != nil {
		return Nil, err
	}
	n := vm.pin(it)
	defer vm.unpinTo(n)
	for {
		x, ok, err := vm.iterNext(it)
		if err != nil {
			return Nil, err
		}
		if !ok {
			return object.Bool(!want), nil
		}
		t, err := vm.truth(x)
		if err != nil {
			return Nil, err
		}
		if t == want {
			return object.Bool(want), nil
		}
	}
}

func builtinPow(vm *VM, args, kw []Value) (Value, error) {
	if kw[0] == None {
		return vm.binary(code.OpPow, args[0], args[1])
	}
	b, ok1 := vm.intOf(args[0])
	e, ok2 := vm.intOf(args[1])
	m, ok3 := vm.intOf(kw[0])
	if !ok1 || !ok2 || !ok3 {
		return Nil, vm.typeError("pow() 3rd argument not allowed unless all arguments are integers")
	}
	if m == 0 {
		return Nil, vm.valueError("pow() 3rd argument cannot be 0")
	}
	if e < 0 {
		return Nil, vm.valueError("pow() 2nd argument cannot be negative when 3rd argument specified")
	}
	r := int64(1)
	b = floorMod(b, m)
	for e > 0 {
		if e&1 == 1 {
			r = mulMod(r, b, m)
		}
		b = mulMod(b, b, m)
		e >>= 1
	}
	return vm.NewInt(floorMod(r, m)), nil
}

// mulMod computes a*b mod m without overflowing.
func mulMod(a, b, m int64) int64 {
	if r, ok := mulInt(a, b); ok {
		return floorMod(r, m)
	}
	var r int64
	a, b = floorMod(a, m), floorMod(b, m)
	for b > 0 {
		if b&1 == 1 {
			r = floorMod(r+a, m)
		}
		a = floorMod(a+a, m)
		b >>= 1
	}
	return r
}

func builtinDir(vm *VM, _ []Value, kw []Value) (Value, error) {
	seen := make(map[string]bool)
	add := func(d *object.NameDict) {
		if d == nil {
			return
		}
		d.Each(func(n symbol.Name, _ Value) bool {
			seen[n.String()] = true
			return true
		})
	}
	v := kw[0]
	if v == Nil {
		if len(vm.frames) > 0 {
			add(vm.top().Globals)
		}
	} else {
		o := vm.obj(v)
		if o != nil {
			add(o.Attr)
		}
		if o == nil || o.Kind != object.KModule {
			t := vm.typeOf(v)
			if o != nil && o.Kind == object.KType {
				t = v
			}
			for t != Nil {
				to := vm.obj(t)
				add(to.Attr)
				t = to.Data.(*object.TypeInfo).Base
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	items := make([]Value, len(names))
	for i, n := range names {
		items[i] = vm.NewStr(n)
	}
	return vm.NewList(items), nil
}
