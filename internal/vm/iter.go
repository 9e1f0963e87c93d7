package vm

import (
	"unicode/utf8"

	"krait/internal/object"
	"krait/internal/symbol"
)

// iterState is the payload of builtin iterator objects.
type iterState interface {
	object.Traceable
	next(vm *VM) (Value, bool, error)
}

func (vm *VM) newIter(s iterState) Value {
	v, _ := vm.Heap.NewData(object.KIter, vm.types.iterator, s)
	return v
}

// seqIter walks a list or tuple by index so appends during the loop are seen.
type seqIter struct {
	seq Value
	i   int
}

func (it *seqIter) Trace(mark func(Value)) { mark(it.seq) }

func (it *seqIter) next(vm *VM) (Value, bool, error) {
	items := vm.obj(it.seq).Elems()
	if it.i >= len(items) {
		return Nil, false, nil
	}
	it.i++
	return items[it.i-1], true, nil
}

type strIter struct {
	s   Value
	off int
}

func (it *strIter) Trace(mark func(Value)) { mark(it.s) }

func (it *strIter) next(vm *VM) (Value, bool, error) {
	s := vm.obj(it.s).Str
	if it.off >= len(s) {
		return Nil, false, nil
	}
	_, w := utf8.DecodeRuneInString(s[it.off:])
	c := s[it.off : it.off+w]
	it.off += w
	return vm.NewStr(c), true, nil
}

type rangeIter struct {
	cur, left, step int64
}

func (it *rangeIter) Trace(func(Value)) {}

func (it *rangeIter) next(vm *VM) (Value, bool, error) {
	if it.left <= 0 {
		return Nil, false, nil
	}
	v := it.cur
	it.cur += it.step
	it.left--
	return vm.NewInt(v), true, nil
}

type dictMode uint8

const (
	dictKeys dictMode = iota
	dictValues
	dictItems
)

type dictIter struct {
	dict Value
	pos  int
	size int
	mode dictMode
}

func (it *dictIter) Trace(mark func(Value)) { mark(it.dict) }

func (it *dictIter) next(vm *VM) (Value, bool, error) {
	d, _ := vm.dictOf(it.dict)
	if d.Len() != it.size {
		return Nil, false, vm.raisef(vm.types.runtimeError, "dictionary changed size during iteration")
	}
	k, v, next, ok := d.Next(it.pos)
	if !ok {
		return Nil, false, nil
	}
	it.pos = next
	switch it.mode {
	case dictValues:
		return v, true, nil
	case dictItems:
		return vm.NewTuple([]Value{k, v}), true, nil
	}
	return k, true, nil
}

type enumerateIter struct {
	it Value
	n  int64
}

func (it *enumerateIter) Trace(mark func(Value)) { mark(it.it) }

func (it *enumerateIter) next(vm *VM) (Value, bool, error) {
	x, ok, err := vm.iterNext(it.it)
	if err != nil || !ok {
		return Nil, false, err
	}
	it.n++
	return vm.NewTuple([]Value{vm.NewInt(it.n - 1), x}), true, nil
}

type zipIter struct {
	its []Value
}

func (it *zipIter) Trace(mark func(Value)) {
	for _, v := range it.its {
		mark(v)
	}
}

func (it *zipIter) next(vm *VM) (Value, bool, error) {
	if len(it.its) == 0 {
		return Nil, false, nil
	}
	row := vm.NewList(make([]Value, 0, len(it.its)))
	n := vm.pin(row)
	defer vm.unpinTo(n)
	ro := vm.obj(row)
	for _, src := range it.its {
		x, ok, err := vm.iterNext(src)
		if err != nil || !ok {
			return Nil, false, err
		}
		ro.Items = append(ro.Items, x)
	}
	return vm.NewTuple(ro.Items), true, nil
}

type mapIter struct {
	fn  Value
	its []Value
}

func (it *mapIter) Trace(mark func(Value)) {
	mark(it.fn)
	for _, v := range it.its {
		mark(v)
	}
}

func (it *mapIter) next(vm *VM) (Value, bool, error) {
	args := vm.NewList(make([]Value, 0, len(it.its)))
	n := vm.pin(args)
	defer vm.unpinTo(n)
	ao := vm.obj(args)
	for _, src := range it.its {
		x, ok, err := vm.iterNext(src)
		if err != nil || !ok {
			return Nil, false, err
		}
		ao.Items = append(ao.Items, x)
	}
	r, err := vm.Call(it.fn, ao.Items...)
	return r, err == nil, err
}

type filterIter struct {
	fn Value // None keeps truthy items
	it Value
}

func (it *filterIter) Trace(mark func(Value)) {
	mark(it.fn)
	mark(it.it)
}

func (it *filterIter) next(vm *VM) (Value, bool, error) {
	for {
		x, ok, err := vm.iterNext(it.it)
		if err != nil || !ok {
			return Nil, false, err
		}
		test := x
		if it.fn != None {
			n := vm.pin(x)
			test, err = vm.Call(it.fn, x)
			vm.unpinTo(n)
			if err != nil {
				return Nil, false, err
			}
		}
		keep, err := vm.truth(test)
		if err != nil {
			return Nil, false, err
		}
		if keep {
			return x, true, nil
		}
	}
}

// reversedIter walks a sequence backwards through getitem.
type reversedIter struct {
	seq Value
	i   int64
}

func (it *reversedIter) Trace(mark func(Value)) { mark(it.seq) }

func (it *reversedIter) next(vm *VM) (Value, bool, error) {
	if it.i < 0 {
		return Nil, false, nil
	}
	if items, ok := vm.elems(it.seq); ok && it.i >= int64(len(items)) {
		it.i = -1
		return Nil, false, nil
	}
	x, err := vm.getitem(it.seq, vm.NewInt(it.i))
	it.i--
	return x, err == nil, err
}

// getitemIter iterates an object with __getitem__ until IndexError.
type getitemIter struct {
	obj Value
	i   int64
}

func (it *getitemIter) Trace(mark func(Value)) { mark(it.obj) }

func (it *getitemIter) next(vm *VM) (Value, bool, error) {
	if it.i < 0 {
		return Nil, false, nil
	}
	x, err := vm.getitem(it.obj, vm.NewInt(it.i))
	if err != nil {
		if vm.caught(err, vm.types.indexError) || vm.caught(err, vm.types.stopIteration) {
			it.i = -1
			return Nil, false, nil
		}
		return Nil, false, err
	}
	it.i++
	return x, true, nil
}

// caught reports whether err is a raised exception of type typ and clears it.
func (vm *VM) caught(err error, typ Value) bool {
	if err != errThrown || !vm.isInstance(vm.exc, typ) {
		return false
	}
	vm.exc = Nil
	return true
}

// iter implements iter(v).
func (vm *VM) iter(v Value) (Value, error) {
	o := vm.obj(v)
	if o == nil {
		return Nil, vm.typeError("'%s' object is not iterable", vm.typeName(v))
	}
	switch o.Kind {
	case object.KIter, object.KGenerator:
		return v, nil
	case object.KList, object.KTuple:
		return vm.newIter(&seqIter{seq: v}), nil
	case object.KStr:
		return vm.newIter(&strIter{s: v}), nil
	case object.KDict:
		return vm.newIter(&dictIter{dict: v, size: o.Data.(*object.Dict).Len()}), nil
	case object.KRange:
		r := o.Data.(*object.Range)
		return vm.newIter(&rangeIter{cur: r.Start, left: rangeLen(r), step: r.Step}), nil
	}
	if fn, ok := vm.lookupType(o.Type, symbol.Iter); ok {
		it, err := vm.Call(fn, v)
		if err != nil {
			return Nil, err
		}
		if !vm.isIterator(it) {
			return Nil, vm.typeError("iter() returned non-iterator of type '%s'", vm.typeName(it))
		}
		return it, nil
	}
	if _, ok := vm.lookupType(o.Type, symbol.GetItem); ok {
		return vm.newIter(&getitemIter{obj: v}), nil
	}
	return Nil, vm.typeError("'%s' object is not iterable", vm.typeName(v))
}

func (vm *VM) isIterator(v Value) bool {
	o := vm.obj(v)
	if o == nil {
		return false
	}
	if o.Kind == object.KIter || o.Kind == object.KGenerator {
		return true
	}
	_, ok := vm.lookupType(o.Type, symbol.Next)
	return ok
}

// iterNext advances an iterator; ok is false once it is exhausted.
func (vm *VM) iterNext(it Value) (Value, bool, error) {
	o := vm.obj(it)
	if o != nil {
		switch o.Kind {
		case object.KIter:
			return o.Data.(iterState).next(vm)
		case object.KGenerator:
			v, done, err := vm.resume(o.Data.(*Generator), None)
			if err != nil || done {
				return Nil, false, err
			}
			return v, true, nil
		}
		if fn, ok := vm.lookupType(o.Type, symbol.Next); ok {
			v, err := vm.Call(fn, it)
			if err != nil {
				if vm.caught(err, vm.types.stopIteration) {
					return Nil, false, nil
				}
				return Nil, false, err
			}
			return v, true, nil
		}
	}
	return Nil, false, vm.typeError("'%s' object is not an iterator", vm.typeName(it))
}
