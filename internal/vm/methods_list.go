package vm

import (
	"krait/internal/object"
	"krait/internal/symbol"
)

type objFn func(vm *VM, o *object.Object, self Value, args, kw []Value) (Value, error)

// method registers a builtin method on typ whose receiver has kind k.
func (vm *VM) method(typ Value, k object.Kind, nm string, argc int, fn objFn, kw ...object.NameArg) {
	tn := vm.typeInfo(typ).Name
	vm.obj(typ).Attr.Set(symbol.Intern(nm), vm.newMethod(nm, argc, func(vm *VM, args, kwv []Value) (Value, error) {
		o, err := vm.receiver(args, k, nm, tn)
		if err != nil {
			return Nil, err
		}
		return fn(vm, o, args[0], args[1:], kwv)
	}, kw...))
}

// seqIndex finds x in o's elements within [start, end).
func (vm *VM) seqIndex(o *object.Object, x, start, end Value) (int, error) {
	n := len(o.Elems())
	b, e, _, err := vm.sliceIndices(&object.Slice{Start: noneIfNil(start), Stop: noneIfNil(end), Step: None}, n)
	if err != nil {
		return -1, err
	}
	// __eq__ may shrink the list, so the length is re-read
	for i := b; i < e && i < len(o.Elems()); i++ {
		ok, err := vm.eq(o.Elems()[i], x)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func (vm *VM) seqCount(o *object.Object, x Value) (int64, error) {
	var n int64
	for i := 0; i < len(o.Elems()); i++ {
		ok, err := vm.eq(o.Elems()[i], x)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (vm *VM) initListMethods() {
	l := vm.types.list
	vm.method(l, object.KList, "append", 1, func(vm *VM, o *object.Object, _ Value, args, _ []Value) (Value, error) {
		o.Items = append(o.Items, args[0])
		return None, nil
	})
	vm.method(l, object.KList, "extend", 1, func(vm *VM, _ *object.Object, self Value, args, _ []Value) (Value, error) {
		return None, vm.listExtend(self, args[0])
	})
	vm.method(l, object.KList, "insert", 2, func(vm *VM, o *object.Object, _ Value, args, _ []Value) (Value, error) {
		i, ok := vm.intOf(args[0])
		if !ok {
			return Nil, vm.notInteger(args[0])
		}
		n := int64(len(o.Items))
		if i < 0 {
			i = max(i+n, 0)
		}
		i = min(i, n)
		o.Items = append(o.Items, Nil)
		copy(o.Items[i+1:], o.Items[i:])
		o.Items[i] = args[1]
		return None, nil
	})
	vm.method(l, object.KList, "pop", 0, func(vm *VM, o *object.Object, _ Value, _, kw []Value) (Value, error) {
		if len(o.Items) == 0 {
			return Nil, vm.raisef(vm.types.indexError, "pop from empty list")
		}
		i, ok := vm.intOf(kw[0])
		if !ok {
			return Nil, vm.notInteger(kw[0])
		}
		n := int64(len(o.Items))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return Nil, vm.raisef(vm.types.indexError, "pop index out of range")
		}
		x := o.Items[i]
		copy(o.Items[i:], o.Items[i+1:])
		o.Items[n-1] = Nil
		o.Items = o.Items[:n-1]
		return x, nil
	}, opt("index", vm.NewInt(-1)))
	vm.method(l, object.KList, "remove", 1, func(vm *VM, o *object.Object, _ Value, args, _ []Value) (Value, error) {
		i, err := vm.seqIndex(o, args[0], None, None)
		if err != nil {
			return Nil, err
		}
		if i < 0 {
			return Nil, vm.valueError("list.remove(x): x not in list")
		}
		n := len(o.Items)
		copy(o.Items[i:], o.Items[i+1:])
		o.Items[n-1] = Nil
		o.Items = o.Items[:n-1]
		return None, nil
	})
	vm.method(l, object.KList, "index", 1, func(vm *VM, o *object.Object, _ Value, args, kw []Value) (Value, error) {
		i, err := vm.seqIndex(o, args[0], kw[0], kw[1])
		if err != nil {
			return Nil, err
		}
		if i < 0 {
			return Nil, vm.valueError("%s is not in list", vm.safeRepr(args[0]))
		}
		return vm.NewInt(int64(i)), nil
	}, opt("start", None), opt("end", None))
	vm.method(l, object.KList, "count", 1, func(vm *VM, o *object.Object, _ Value, args, _ []Value) (Value, error) {
		n, err := vm.seqCount(o, args[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewInt(n), nil
	})
	vm.method(l, object.KList, "reverse", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		for i, j := 0, len(o.Items)-1; i < j; i, j = i+1, j-1 {
			o.Items[i], o.Items[j] = o.Items[j], o.Items[i]
		}
		return None, nil
	})
	vm.method(l, object.KList, "sort", 0, func(vm *VM, o *object.Object, _ Value, _, kw []Value) (Value, error) {
		rev, err := vm.truth(kw[1])
		if err != nil {
			return Nil, err
		}
		return None, vm.sortList(o, kw[0], rev)
	}, opt("key", None), opt("reverse", False))
	vm.method(l, object.KList, "clear", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		clear(o.Items)
		o.Items = o.Items[:0]
		return None, nil
	})
	vm.method(l, object.KList, "copy", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		return vm.NewList(append([]Value(nil), o.Items...)), nil
	})

	t := vm.types.tuple
	vm.method(t, object.KTuple, "index", 1, func(vm *VM, o *object.Object, _ Value, args, kw []Value) (Value, error) {
		i, err := vm.seqIndex(o, args[0], kw[0], kw[1])
		if err != nil {
			return Nil, err
		}
		if i < 0 {
			return Nil, vm.valueError("tuple.index(x): x not in tuple")
		}
		return vm.NewInt(int64(i)), nil
	}, opt("start", None), opt("end", None))
	vm.method(t, object.KTuple, "count", 1, func(vm *VM, o *object.Object, _ Value, args, _ []Value) (Value, error) {
		n, err := vm.seqCount(o, args[0])
		if err != nil {
			return Nil, err
		}
		return vm.NewInt(n), nil
	})
}

// Dict views are materialised as lists.
func (vm *VM) initDictMethods() {
	d := vm.types.dict
	dictOf := func(o *object.Object) *object.Dict { return o.Data.(*object.Dict) }

	vm.method(d, object.KDict, "keys", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		return vm.NewList(dictOf(o).Keys()), nil
	})
	vm.method(d, object.KDict, "values", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		return vm.NewList(dictOf(o).Values()), nil
	})
	vm.method(d, object.KDict, "items", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		dd := dictOf(o)
		lst := vm.NewList(make([]Value, 0, dd.Len()))
		lo := vm.obj(lst)
		dd.Each(func(k, v Value) bool {
			lo.Items = append(lo.Items, vm.NewTuple([]Value{k, v}))
			return true
		})
		return lst, nil
	})
	vm.method(d, object.KDict, "get", 1, func(vm *VM, o *object.Object, _ Value, args, kw []Value) (Value, error) {
		v, ok, err := dictOf(o).Get(vm, args[0])
		if err != nil {
			return Nil, err
		}
		if !ok {
			return kw[0], nil
		}
		return v, nil
	}, opt("default", None))
	vm.method(d, object.KDict, "pop", 1, func(vm *VM, o *object.Object, _ Value, args, kw []Value) (Value, error) {
		v, ok, err := dictOf(o).Delete(vm, args[0])
		if err != nil {
			return Nil, err
		}
		if !ok {
			if kw[0] != Nil {
				return kw[0], nil
			}
			return Nil, vm.raise(vm.newException(vm.types.keyError, args[0]))
		}
		return v, nil
	}, opt("default", Nil))
	vm.method(d, object.KDict, "popitem", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		k, v, ok := dictOf(o).Pop()
		if !ok {
			return Nil, vm.raisef(vm.types.keyError, "popitem(): dictionary is empty")
		}
		return vm.NewTuple([]Value{k, v}), nil
	})
	vm.method(d, object.KDict, "setdefault", 1, func(vm *VM, o *object.Object, _ Value, args, kw []Value) (Value, error) {
		dd := dictOf(o)
		v, ok, err := dd.Get(vm, args[0])
		if err != nil || ok {
			return v, err
		}
		return kw[0], dd.Set(vm, args[0], kw[0])
	}, opt("default", None))
	vm.method(d, object.KDict, "update", 0, func(vm *VM, _ *object.Object, self Value, _, kw []Value) (Value, error) {
		if kw[0] != Nil {
			if err := vm.dictMerge(self, kw[0]); err != nil {
				return Nil, err
			}
		}
		if kw[1] != Nil {
			return None, vm.dictUpdate(self, kw[1])
		}
		return None, nil
	}, opt("other", Nil), opt("**", Nil))
	vm.method(d, object.KDict, "clear", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		dictOf(o).Clear()
		return None, nil
	})
	vm.method(d, object.KDict, "copy", 0, func(vm *VM, o *object.Object, _ Value, _, _ []Value) (Value, error) {
		return vm.Heap.NewDict(vm.types.dict, dictOf(o).Copy()), nil
	})
}
