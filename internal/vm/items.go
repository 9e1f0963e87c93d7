package vm

import (
	"strings"
	"unicode/utf8"

	"krait/internal/object"
	"krait/internal/symbol"
)

// collect drains an iterable into a fresh list. The list is reachable
// while the iterator runs script code.
func (vm *VM) collect(v Value) (Value, error) {
	lst := vm.NewList(nil)
	n := vm.pin(lst)
	defer vm.unpinTo(n)
	if err := vm.listExtend(lst, v); err != nil {
		return Nil, err
	}
	return lst, nil
}

// sequence returns the elements of an iterable. Lists and tuples are
// returned without copying; the result must not be modified.
func (vm *VM) sequence(v Value) ([]Value, error) {
	if items, ok := vm.elems(v); ok {
		return items, nil
	}
	lst, err := vm.collect(v)
	if err != nil {
		return nil, err
	}
	return vm.obj(lst).Items, nil
}

// listExtend appends the items of an iterable to a list.
func (vm *VM) listExtend(list, src Value) error {
	lo := vm.obj(list)
	so := vm.obj(src)
	if so != nil {
		switch so.Kind {
		case object.KList, object.KTuple:
			lo.Items = append(lo.Items, so.Elems()...)
			return nil
		case object.KStr:
			for _, r := range so.Str {
				lo.Items = append(lo.Items, vm.NewStr(string(r)))
			}
			return nil
		case object.KDict:
			lo.Items = append(lo.Items, so.Data.(*object.Dict).Keys()...)
			return nil
		case object.KRange:
			r := so.Data.(*object.Range)
			for i, n := int64(0), rangeLen(r); i < n; i++ {
				lo.Items = append(lo.Items, vm.NewInt(r.Start+i*r.Step))
			}
			return nil
		}
	}
	it, err := vm.iter(src)
	if err != nil {
		return err
	}
	n := vm.pin(it)
	defer vm.unpinTo(n)
	for {
		x, ok, err := vm.iterNext(it)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		lo.Items = append(lo.Items, x)
	}
}

// dictUpdate merges a mapping into a dict.
func (vm *VM) dictUpdate(dst, src Value) error {
	d, _ := vm.dictOf(dst)
	s, ok := vm.dictOf(src)
	if !ok {
		return vm.typeError("'%s' object is not a mapping", vm.typeName(src))
	}
	for pos := 0; ; {
		k, v, next, ok := s.Next(pos)
		if !ok {
			return nil
		}
		pos = next
		if err := d.Set(vm, k, v); err != nil {
			return err
		}
	}
}

// unpack replaces the iterable on top of the stack with n values, the first
// one on top.
func (vm *VM) unpack(n int) error {
	items, err := vm.unpackItems(vm.peek(0))
	if err != nil {
		return err
	}
	switch {
	case len(items) > n:
		return vm.valueError("too many values to unpack (expected %d)", n)
	case len(items) < n:
		return vm.valueError("not enough values to unpack (expected %d, got %d)", n, len(items))
	}
	if err := vm.ensure(n - 1); err != nil {
		return err
	}
	vm.pop()
	for i := n - 1; i >= 0; i-- {
		vm.push(items[i])
	}
	return nil
}

// unpackEx is unpack with a starred target collecting the middle into a list.
func (vm *VM) unpackEx(before, after int) error {
	items, err := vm.unpackItems(vm.peek(0))
	if err != nil {
		return err
	}
	if len(items) < before+after {
		return vm.valueError("not enough values to unpack (expected at least %d, got %d)", before+after, len(items))
	}
	if err := vm.ensure(before + after); err != nil {
		return err
	}
	mid := make([]Value, len(items)-before-after)
	copy(mid, items[before:len(items)-after])
	rest := vm.NewList(mid)
	vm.pop()
	for i := len(items) - 1; i >= len(items)-after; i-- {
		vm.push(items[i])
	}
	vm.push(rest)
	for i := before - 1; i >= 0; i-- {
		vm.push(items[i])
	}
	return nil
}

func (vm *VM) unpackItems(v Value) ([]Value, error) {
	if !vm.iterable(v) {
		return nil, vm.typeError("cannot unpack non-iterable %s object", vm.typeName(v))
	}
	return vm.sequence(v)
}

// iterable reports whether iter(v) can succeed.
func (vm *VM) iterable(v Value) bool {
	o := vm.obj(v)
	if o == nil {
		return false
	}
	switch o.Kind {
	case object.KStr, object.KList, object.KTuple, object.KDict, object.KRange, object.KGenerator, object.KIter:
		return true
	}
	if _, ok := vm.lookupType(o.Type, symbol.Iter); ok {
		return true
	}
	_, ok := vm.lookupType(o.Type, symbol.GetItem)
	return ok
}

// contains evaluates item in container.
func (vm *VM) contains(container, item Value) (bool, error) {
	o := vm.obj(container)
	if o != nil {
		switch o.Kind {
		case object.KStr:
			s, ok := vm.strOf(item)
			if !ok {
				return false, vm.typeError("'in <string>' requires string as left operand, not %s", vm.typeName(item))
			}
			return strings.Contains(o.Str, s), nil
		case object.KList, object.KTuple:
			for _, x := range o.Elems() {
				eq, err := vm.eq(x, item)
				if err != nil || eq {
					return eq, err
				}
			}
			return false, nil
		case object.KDict:
			_, found, err := o.Data.(*object.Dict).Get(vm, item)
			return found, err
		case object.KRange:
			i, ok := vm.intOf(item)
			if !ok {
				return false, nil
			}
			r := o.Data.(*object.Range)
			if r.Step > 0 && (i < r.Start || i >= r.Stop) || r.Step < 0 && (i > r.Start || i <= r.Stop) {
				return false, nil
			}
			return (i-r.Start)%r.Step == 0, nil
		case object.KInstance, object.KException:
			if fn, ok := vm.lookupType(o.Type, symbol.Contains); ok {
				r, err := vm.Call(fn, container, item)
				if err != nil {
					return false, err
				}
				return vm.truth(r)
			}
		}
	}
	if !vm.iterable(container) {
		return false, vm.typeError("argument of type '%s' is not iterable", vm.typeName(container))
	}
	it, err := vm.iter(container)
	if err != nil {
		return false, err
	}
	n := vm.pin(it)
	defer vm.unpinTo(n)
	for {
		x, ok, err := vm.iterNext(it)
		if err != nil || !ok {
			return false, err
		}
		eq, err := vm.eq(x, item)
		if err != nil || eq {
			return eq, err
		}
	}
}

// length implements len().
func (vm *VM) length(v Value) (int64, error) {
	if o := vm.obj(v); o != nil {
		switch o.Kind {
		case object.KStr:
			return int64(object.StrLen(o)), nil
		case object.KList, object.KTuple:
			return int64(len(o.Elems())), nil
		case object.KDict:
			return int64(o.Data.(*object.Dict).Len()), nil
		case object.KRange:
			return rangeLen(o.Data.(*object.Range)), nil
		}
		if fn, ok := vm.lookupType(o.Type, symbol.LenMethod); ok {
			r, err := vm.Call(fn, v)
			if err != nil {
				return 0, err
			}
			n, ok := vm.intOf(r)
			if !ok {
				return 0, vm.typeError("'%s' object cannot be interpreted as an integer", vm.typeName(r))
			}
			if n < 0 {
				return 0, vm.valueError("__len__() should return >= 0")
			}
			return n, nil
		}
	}
	return 0, vm.typeError("object of type '%s' has no len()", vm.typeName(v))
}

func rangeLen(r *object.Range) int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// index converts a subscript to a position in a sequence of length n.
func (vm *VM) index(seq string, key Value, n int) (int, error) {
	i, ok := vm.intOf(key)
	if !ok {
		return 0, vm.typeError("%s indices must be integers or slices, not %s", seq, vm.typeName(key))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, vm.raisef(vm.types.indexError, "%s index out of range", seq)
	}
	return int(i), nil
}

// sliceIndices resolves a slice against a sequence of length n.
func (vm *VM) sliceIndices(s *object.Slice, n int) (start, stop, step int, err error) {
	step = 1
	if s.Step != None && s.Step != Nil {
		st, ok := vm.intOf(s.Step)
		if !ok {
			return 0, 0, 0, vm.typeError("slice indices must be integers or None")
		}
		if st == 0 {
			return 0, 0, 0, vm.valueError("slice step cannot be zero")
		}
		step = int(st)
	}
	bound := func(v Value, def int) (int, error) {
		if v == None || v == Nil {
			return def, nil
		}
		i, ok := vm.intOf(v)
		if !ok {
			return 0, vm.typeError("slice indices must be integers or None")
		}
		if i < 0 {
			i += int64(n)
			if i < 0 {
				if step < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= int64(n) {
			if step < 0 {
				return n - 1, nil
			}
			return n, nil
		}
		return int(i), nil
	}
	if step > 0 {
		start, err = bound(s.Start, 0)
		if err == nil {
			stop, err = bound(s.Stop, n)
		}
	} else {
		start, err = bound(s.Start, n-1)
		if err == nil {
			stop, err = bound(s.Stop, -1)
		}
	}
	return start, stop, step, err
}

// slicePositions lists the positions a slice selects.
func slicePositions(start, stop, step int) []int {
	var out []int
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out
}

func (vm *VM) asSlice(key Value) (*object.Slice, bool) {
	if o := vm.obj(key); o != nil && o.Kind == object.KSlice {
		return o.Data.(*object.Slice), true
	}
	return nil, false
}

// getitem evaluates obj[key].
func (vm *VM) getitem(obj, key Value) (Value, error) {
	o := vm.obj(obj)
	if o == nil {
		return Nil, vm.typeError("'%s' object is not subscriptable", vm.typeName(obj))
	}
	switch o.Kind {
	case object.KList, object.KTuple:
		seq := "list"
		if o.Kind == object.KTuple {
			seq = "tuple"
		}
		items := o.Elems()
		if s, ok := vm.asSlice(key); ok {
			start, stop, step, err := vm.sliceIndices(s, len(items))
			if err != nil {
				return Nil, err
			}
			pos := slicePositions(start, stop, step)
			out := make([]Value, len(pos))
			for i, p := range pos {
				out[i] = items[p]
			}
			if o.Kind == object.KTuple {
				return vm.NewTuple(out), nil
			}
			return vm.NewList(out), nil
		}
		i, err := vm.index(seq, key, len(items))
		if err != nil {
			return Nil, err
		}
		return items[i], nil
	case object.KStr:
		n := object.StrLen(o)
		if s, ok := vm.asSlice(key); ok {
			start, stop, step, err := vm.sliceIndices(s, n)
			if err != nil {
				return Nil, err
			}
			if step == 1 {
				return vm.NewStr(object.Substr(o, start, max(start, stop))), nil
			}
			var sb strings.Builder
			for _, p := range slicePositions(start, stop, step) {
				sb.WriteString(object.Substr(o, p, p+1))
			}
			return vm.NewStr(sb.String()), nil
		}
		i, err := vm.index("string", key, n)
		if err != nil {
			return Nil, err
		}
		return vm.NewStr(object.Substr(o, i, i+1)), nil
	case object.KDict:
		v, found, err := o.Data.(*object.Dict).Get(vm, key)
		if err != nil {
			return Nil, err
		}
		if !found {
			return Nil, vm.raise(vm.newException(vm.types.keyError, key))
		}
		return v, nil
	case object.KRange:
		r := o.Data.(*object.Range)
		n := rangeLen(r)
		if s, ok := vm.asSlice(key); ok {
			start, stop, step, err := vm.sliceIndices(s, int(n))
			if err != nil {
				return Nil, err
			}
			nr := &object.Range{
				Start: r.Start + int64(start)*r.Step,
				Stop:  r.Start + int64(stop)*r.Step,
				Step:  r.Step * int64(step),
			}
			v, _ := vm.Heap.NewData(object.KRange, vm.types.range_, nr)
			return v, nil
		}
		i, err := vm.index("range object", key, int(n))
		if err != nil {
			return Nil, err
		}
		return vm.NewInt(r.Start + int64(i)*r.Step), nil
	}
	if fn, ok := vm.lookupType(o.Type, symbol.GetItem); ok {
		return vm.Call(fn, obj, key)
	}
	return Nil, vm.typeError("'%s' object is not subscriptable", vm.typeName(obj))
}

// setitem performs obj[key] = v.
func (vm *VM) setitem(obj, key, v Value) error {
	o := vm.obj(obj)
	if o != nil {
		switch o.Kind {
		case object.KList:
			if s, ok := vm.asSlice(key); ok {
				return vm.setSlice(o, s, v)
			}
			i, err := vm.index("list", key, len(o.Items))
			if err != nil {
				return err
			}
			o.Items[i] = v
			return nil
		case object.KDict:
			return o.Data.(*object.Dict).Set(vm, key, v)
		}
		if fn, ok := vm.lookupType(o.Type, symbol.SetItem); ok {
			_, err := vm.Call(fn, obj, key, v)
			return err
		}
	}
	return vm.typeError("'%s' object does not support item assignment", vm.typeName(obj))
}

func (vm *VM) setSlice(o *object.Object, s *object.Slice, v Value) error {
	src, err := vm.sequence(v)
	if err != nil {
		return err
	}
	start, stop, step, err := vm.sliceIndices(s, len(o.Items))
	if err != nil {
		return err
	}
	if step == 1 {
		stop = max(start, stop)
		items := make([]Value, 0, len(o.Items)-(stop-start)+len(src))
		items = append(items, o.Items[:start]...)
		items = append(items, src...)
		o.Items = append(items, o.Items[stop:]...)
		return nil
	}
	pos := slicePositions(start, stop, step)
	if len(pos) != len(src) {
		return vm.valueError("attempt to assign sequence of size %d to extended slice of size %d", len(src), len(pos))
	}
	vals := append([]Value(nil), src...)
	for i, p := range pos {
		o.Items[p] = vals[i]
	}
	return nil
}

// delitem performs del obj[key].
func (vm *VM) delitem(obj, key Value) error {
	o := vm.obj(obj)
	if o != nil {
		switch o.Kind {
		case object.KList:
			if s, ok := vm.asSlice(key); ok {
				start, stop, step, err := vm.sliceIndices(s, len(o.Items))
				if err != nil {
					return err
				}
				drop := make(map[int]bool)
				for _, p := range slicePositions(start, stop, step) {
					drop[p] = true
				}
				kept := o.Items[:0]
				for i, x := range o.Items {
					if !drop[i] {
						kept = append(kept, x)
					}
				}
				clear(o.Items[len(kept):])
				o.Items = kept
				return nil
			}
			i, err := vm.index("list", key, len(o.Items))
			if err != nil {
				return err
			}
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.Items[len(o.Items):cap(o.Items)][0] = Nil
			return nil
		case object.KDict:
			_, found, err := o.Data.(*object.Dict).Delete(vm, key)
			if err != nil {
				return err
			}
			if !found {
				return vm.raise(vm.newException(vm.types.keyError, key))
			}
			return nil
		}
		if fn, ok := vm.lookupType(o.Type, symbol.DelItem); ok {
			_, err := vm.Call(fn, obj, key)
			return err
		}
	}
	return vm.typeError("'%s' object doesn't support item deletion", vm.typeName(obj))
}

// chars splits a string into one-character strings.
func (vm *VM) chars(s string) []Value {
	out := make([]Value, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, vm.NewStr(string(r)))
	}
	return out
}
