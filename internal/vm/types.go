package vm

import (
	"krait/internal/object"
	"krait/internal/symbol"
)

type builtinTypes struct {
	object, typ, int_, float, bool_, str, list, tuple, dict   Value
	none, notImpl, ellipsis                                   Value
	function, native, method, staticmethod, classmethod       Value
	property, module, generator, iterator, slice, range_      Value
	super, cells, userdata                                    Value

	baseException, exception, stopIteration, typeError, valueError Value
	nameError, unboundLocal, attributeError, lookupError           Value
	indexError, keyError, arithmeticError, zeroDivision            Value
	overflowError, runtimeError, notImplementedError               Value
	recursionError, stackOverflow, assertionError, importError     Value
	syntaxError, indentationError, keyboardInterrupt               Value
	osError                                                        Value
}

// newType creates a pinned type object.
func (vm *VM) newType(name string, base Value, inst object.Kind, subclassable bool) Value {
	v, o := vm.Heap.NewData(object.KType, vm.types.typ, &object.TypeInfo{
		Name:         name,
		Module:       "builtins",
		Base:         base,
		Instance:     inst,
		Subclassable: subclassable,
	})
	o.Attr = object.NewNameDict(0)
	vm.Heap.Pin(v)
	return v
}

func (vm *VM) initTypes() {
	t := &vm.types
	// type(type) is type: the first object is patched after creation
	t.object = vm.newType("object", Nil, object.KInstance, true)
	t.typ = vm.newType("type", t.object, object.KType, false)
	vm.Heap.Get(t.object).Type = t.typ
	vm.Heap.Get(t.typ).Type = t.typ

	t.int_ = vm.newType("int", t.object, object.KInt, false)
	t.bool_ = vm.newType("bool", t.int_, object.KInt, false)
	t.float = vm.newType("float", t.object, object.KFloat, false)
	t.str = vm.newType("str", t.object, object.KStr, false)
	t.list = vm.newType("list", t.object, object.KList, false)
	t.tuple = vm.newType("tuple", t.object, object.KTuple, false)
	t.dict = vm.newType("dict", t.object, object.KDict, false)
	t.none = vm.newType("NoneType", t.object, object.KInstance, false)
	t.notImpl = vm.newType("NotImplementedType", t.object, object.KInstance, false)
	t.ellipsis = vm.newType("ellipsis", t.object, object.KInstance, false)
	t.function = vm.newType("function", t.object, object.KFunction, false)
	t.native = vm.newType("builtin_function_or_method", t.object, object.KNative, false)
	t.method = vm.newType("method", t.object, object.KBoundMethod, false)
	t.staticmethod = vm.newType("staticmethod", t.object, object.KStaticMethod, false)
	t.classmethod = vm.newType("classmethod", t.object, object.KClassMethod, false)
	t.property = vm.newType("property", t.object, object.KProperty, false)
	t.module = vm.newType("module", t.object, object.KModule, false)
	t.generator = vm.newType("generator", t.object, object.KGenerator, false)
	t.iterator = vm.newType("iterator", t.object, object.KIter, false)
	t.slice = vm.newType("slice", t.object, object.KSlice, false)
	t.range_ = vm.newType("range", t.object, object.KRange, false)
	t.super = vm.newType("super", t.object, object.KSuper, false)
	t.cells = vm.newType("cell", t.object, object.KCells, false)
	t.userdata = vm.newType("userdata", t.object, object.KUserdata, false)

	exc := func(name string, base Value) Value {
		v := vm.newType(name, base, object.KException, true)
		vm.excTypes[name] = v
		return v
	}
	t.baseException = exc("BaseException", t.object)
	t.exception = exc("Exception", t.baseException)
	t.keyboardInterrupt = exc("KeyboardInterrupt", t.baseException)
	t.stopIteration = exc("StopIteration", t.exception)
	t.typeError = exc("TypeError", t.exception)
	t.valueError = exc("ValueError", t.exception)
	t.nameError = exc("NameError", t.exception)
	t.unboundLocal = exc("UnboundLocalError", t.nameError)
	t.attributeError = exc("AttributeError", t.exception)
	t.lookupError = exc("LookupError", t.exception)
	t.indexError = exc("IndexError", t.lookupError)
	t.keyError = exc("KeyError", t.lookupError)
	t.arithmeticError = exc("ArithmeticError", t.exception)
	t.zeroDivision = exc("ZeroDivisionError", t.arithmeticError)
	t.overflowError = exc("OverflowError", t.arithmeticError)
	t.runtimeError = exc("RuntimeError", t.exception)
	t.notImplementedError = exc("NotImplementedError", t.runtimeError)
	t.recursionError = exc("RecursionError", t.runtimeError)
	t.stackOverflow = exc("StackOverflowError", t.runtimeError)
	t.assertionError = exc("AssertionError", t.exception)
	t.importError = exc("ImportError", t.exception)
	t.osError = exc("OSError", t.exception)
	t.syntaxError = exc("SyntaxError", t.exception)
	t.indentationError = exc("IndentationError", t.syntaxError)
}

// typeOf returns the type object of any value.
func (vm *VM) typeOf(v Value) Value {
	switch {
	case v.IsSmallInt():
		return vm.types.int_
	case v.IsSmallFloat():
		return vm.types.float
	case v.IsHeap():
		if o := vm.Heap.Get(v); o != nil {
			return o.Type
		}
		return vm.types.object
	}
	switch v {
	case True, False:
		return vm.types.bool_
	case NotImplemented:
		return vm.types.notImpl
	case Ellipsis:
		return vm.types.ellipsis
	}
	return vm.types.none
}

func (vm *VM) typeInfo(t Value) *object.TypeInfo {
	if o := vm.obj(t); o != nil && o.Kind == object.KType {
		if ti, ok := o.Data.(*object.TypeInfo); ok {
			return ti
		}
	}
	return nil
}

// typeName is the __name__ of v's type.
func (vm *VM) typeName(v Value) string {
	if ti := vm.typeInfo(vm.typeOf(v)); ti != nil {
		return ti.Name
	}
	return "?"
}

// TypeName returns the type name of v.
func (vm *VM) TypeName(v Value) string { return vm.typeName(v) }

func (vm *VM) isType(v Value) bool { return vm.typeInfo(v) != nil }

// isSubtype walks the single-inheritance chain of t.
func (vm *VM) isSubtype(t, base Value) bool {
	for t != Nil {
		if t == base {
			return true
		}
		ti := vm.typeInfo(t)
		if ti == nil {
			return false
		}
		t = ti.Base
	}
	return false
}

func (vm *VM) isInstance(v, t Value) bool { return vm.isSubtype(vm.typeOf(v), t) }

// isExceptionValue reports whether v is an exception instance.
func (vm *VM) isExceptionValue(v Value) bool {
	return vm.isInstance(v, vm.types.baseException)
}

// lookupType finds n in the attribute tables along t's base chain.
func (vm *VM) lookupType(t Value, n symbol.Name) (Value, bool) {
	for t != Nil {
		o := vm.obj(t)
		if o == nil {
			return Nil, false
		}
		if v, ok := o.Attr.Get(n); ok {
			return v, true
		}
		ti, _ := o.Data.(*object.TypeInfo)
		if ti == nil {
			return Nil, false
		}
		t = ti.Base
	}
	return Nil, false
}

// Type returns a builtin type or exception type by name.
func (vm *VM) Type(name string) (Value, bool) {
	if v, ok := vm.excTypes[name]; ok {
		return v, true
	}
	v, ok := vm.builtins.Get(symbol.Intern(name))
	if !ok || !vm.isType(v) {
		return Nil, false
	}
	return v, true
}

// newClass creates a user class; class statements and type(name, base, dict)
// both end here.
func (vm *VM) newClass(name string, base Value, module string) (Value, error) {
	if base == None || base == Nil {
		base = vm.types.object
	}
	bi := vm.typeInfo(base)
	if bi == nil {
		return Nil, vm.typeError("bases must be types")
	}
	if !bi.Subclassable {
		return Nil, vm.typeError("type '%s' is not an acceptable base type", bi.Name)
	}
	v, o := vm.Heap.NewData(object.KType, vm.types.typ, &object.TypeInfo{
		Name:         name,
		Module:       module,
		Base:         base,
		Instance:     bi.Instance,
		Subclassable: true,
		HasGetAttr:   bi.HasGetAttr,
	})
	o.Attr = object.NewNameDict(0)
	return v, nil
}
