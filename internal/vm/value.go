package vm

import (
	"math"

	"krait/internal/object"
	"krait/internal/symbol"
)

// Value is the VM's view of a tagged word.
type Value = object.Value

// Re-exported singletons.
const (
	Nil            = object.Nil
	None           = object.None
	True           = object.True
	False          = object.False
	NotImplemented = object.NotImplemented
	Ellipsis       = object.Ellipsis
)

// obj resolves a heap value; nil for scalars and specials.
func (vm *VM) obj(v Value) *object.Object {
	if !v.IsHeap() {
		return nil
	}
	return vm.Heap.Get(v)
}

func (vm *VM) kindOf(v Value) (object.Kind, bool) {
	if o := vm.obj(v); o != nil {
		return o.Kind, true
	}
	return 0, false
}

func (vm *VM) is(v Value, k object.Kind) bool {
	o := vm.obj(v)
	return o != nil && o.Kind == k
}

// NewInt returns i as a tagged int or a boxed one.
func (vm *VM) NewInt(i int64) Value {
	if v, ok := object.SmallInt(i); ok {
		return v
	}
	v, o := vm.Heap.New(object.KInt, vm.types.int_, 0)
	o.Int = i
	return v
}

// NewFloat returns f as a tagged float or a boxed one.
func (vm *VM) NewFloat(f float64) Value {
	if v, ok := object.SmallFloat(f); ok {
		return v
	}
	v, o := vm.Heap.New(object.KFloat, vm.types.float, 0)
	o.Float = f
	return v
}

func (vm *VM) NewStr(s string) Value { return vm.Heap.NewStr(vm.types.str, s) }

// NewTuple copies elems.
func (vm *VM) NewTuple(elems []Value) Value { return vm.Heap.NewTuple(vm.types.tuple, elems) }

// NewList takes ownership of items.
func (vm *VM) NewList(items []Value) Value { return vm.Heap.NewList(vm.types.list, items) }

// NewDict returns an empty dict.
func (vm *VM) NewDict() Value { return vm.Heap.NewDict(vm.types.dict, nil) }

func (vm *VM) intOf(v Value) (int64, bool) {
	switch {
	case v.IsSmallInt():
		return v.Int(), true
	case v == True:
		return 1, true
	case v == False:
		return 0, true
	}
	if o := vm.obj(v); o != nil && o.Kind == object.KInt {
		return o.Int, true
	}
	return 0, false
}

// isInt reports ints proper, excluding bools.
func (vm *VM) isInt(v Value) bool {
	return v.IsSmallInt() || vm.is(v, object.KInt)
}

func (vm *VM) floatOf(v Value) (float64, bool) {
	if v.IsSmallFloat() {
		return v.Float(), true
	}
	if o := vm.obj(v); o != nil && o.Kind == object.KFloat {
		return o.Float, true
	}
	return 0, false
}

// numOf converts ints, bools and floats to float64.
func (vm *VM) numOf(v Value) (f float64, isFloat, ok bool) {
	if f, ok := vm.floatOf(v); ok {
		return f, true, true
	}
	if i, ok := vm.intOf(v); ok {
		return float64(i), false, true
	}
	return 0, false, false
}

func (vm *VM) strOf(v Value) (string, bool) {
	if o := vm.obj(v); o != nil && o.Kind == object.KStr {
		return o.Str, true
	}
	return "", false
}

// elems returns the elements of a list or tuple.
func (vm *VM) elems(v Value) ([]Value, bool) {
	if o := vm.obj(v); o != nil && (o.Kind == object.KList || o.Kind == object.KTuple) {
		return o.Elems(), true
	}
	return nil, false
}

func (vm *VM) dictOf(v Value) (*object.Dict, bool) {
	if o := vm.obj(v); o != nil && o.Kind == object.KDict {
		d, ok := o.Data.(*object.Dict)
		return d, ok
	}
	return nil, false
}

// name interns s.
func name(s string) symbol.Name { return symbol.Intern(s) }

// floatIsInt reports whether f has an exact int64 value.
func floatIsInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// Int reads an int or bool.
func (vm *VM) Int(v Value) (int64, bool) { return vm.intOf(v) }

// Float reads a float; ints are not converted.
func (vm *VM) Float(v Value) (float64, bool) { return vm.floatOf(v) }

// String reads a str.
func (vm *VM) String(v Value) (string, bool) { return vm.strOf(v) }

// Items returns the elements of a list or tuple. The slice aliases the
// object and is only valid until the script next runs.
func (vm *VM) Items(v Value) ([]Value, bool) { return vm.elems(v) }

// GetAttr reads attribute nm of obj.
func (vm *VM) GetAttr(obj Value, nm string) (Value, error) {
	v, err := vm.getattr(obj, symbol.Intern(nm))
	if err != nil {
		return Nil, vm.escape(err)
	}
	return v, nil
}

// SetAttr stores attribute nm of obj.
func (vm *VM) SetAttr(obj Value, nm string, v Value) error {
	if err := vm.setattr(obj, symbol.Intern(nm), v); err != nil {
		return vm.escape(err)
	}
	return nil
}
