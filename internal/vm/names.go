package vm

import (
	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// loadLocal reads slot i of f. Once closures exist the cell table is
// authoritative, since inner functions may rebind the name.
func (vm *VM) loadLocal(f *Frame, i int) Value {
	if f.cells != Nil {
		v, _ := vm.obj(f.cells).Attr.Get(f.Unit.Varnames[i])
		return v
	}
	return vm.stack[f.Base+i]
}

func (vm *VM) storeLocal(f *Frame, i int, v Value) {
	vm.stack[f.Base+i] = v
	if f.cells != Nil {
		vm.obj(f.cells).Attr.Set(f.Unit.Varnames[i], v)
	}
}

func (vm *VM) deleteLocal(f *Frame, i int) {
	vm.stack[f.Base+i] = Nil
	if f.cells != Nil {
		vm.obj(f.cells).Attr.Delete(f.Unit.Varnames[i])
	}
}

// localsFrame is the frame whose local slots a LOAD_NAME in f sees.
func (vm *VM) localsFrame(f *Frame) *Frame {
	if f.dyn >= 0 && f.dyn < len(vm.frames) {
		return vm.frames[f.dyn]
	}
	return f
}

// loadName resolves a name at run time: the class body being executed, the
// locals of the frame, the closure chain, globals, builtins.
func (vm *VM) loadName(f *Frame, n symbol.Name) (Value, error) {
	if len(f.classes) > 0 {
		if v, ok := vm.obj(f.classes[len(f.classes)-1].typ).Attr.Get(n); ok {
			return v, nil
		}
	}
	lf := vm.localsFrame(f)
	if i, ok := lf.Unit.VarIndex[n]; ok && lf.Unit.Kind != code.KindModule {
		if v := vm.loadLocal(lf, i); v != Nil {
			return v, nil
		}
	}
	if v, ok := vm.lookupClosure(lf.closure, n); ok {
		return v, nil
	}
	return vm.loadGlobal(f, n)
}

func (vm *VM) storeName(f *Frame, n symbol.Name, v Value) {
	if f.dyn >= 0 {
		lf := vm.localsFrame(f)
		if i, ok := lf.Unit.VarIndex[n]; ok {
			vm.storeLocal(lf, i, v)
			return
		}
	}
	f.Globals.Set(n, v)
}

func (vm *VM) deleteName(f *Frame, n symbol.Name) error {
	if len(f.classes) > 0 {
		if vm.obj(f.classes[len(f.classes)-1].typ).Attr.Delete(n) {
			return nil
		}
		return vm.nameError(n)
	}
	if f.dyn >= 0 {
		lf := vm.localsFrame(f)
		if i, ok := lf.Unit.VarIndex[n]; ok && vm.loadLocal(lf, i) != Nil {
			vm.deleteLocal(lf, i)
			return nil
		}
	}
	if !f.Globals.Delete(n) {
		return vm.nameError(n)
	}
	return nil
}

func (vm *VM) lookupClosure(c Value, n symbol.Name) (Value, bool) {
	for c != Nil {
		o := vm.obj(c)
		if v, ok := o.Attr.Get(n); ok {
			return v, true
		}
		c = o.Data.(*object.Cells).Parent
	}
	return Nil, false
}

// cellsWith returns the first environment on the chain binding n.
func (vm *VM) cellsWith(c Value, n symbol.Name) *object.Object {
	for c != Nil {
		o := vm.obj(c)
		if _, ok := o.Attr.Get(n); ok {
			return o
		}
		c = o.Data.(*object.Cells).Parent
	}
	return nil
}

func (vm *VM) loadNonlocal(f *Frame, n symbol.Name) (Value, error) {
	if v, ok := vm.lookupClosure(f.closure, n); ok {
		return v, nil
	}
	return vm.loadGlobal(f, n)
}

func (vm *VM) storeNonlocal(f *Frame, n symbol.Name, v Value) error {
	o := vm.cellsWith(f.closure, n)
	if o == nil {
		if f.closure == Nil {
			return vm.raisef(vm.types.runtimeError, "no binding for nonlocal '%s'", n)
		}
		o = vm.obj(f.closure)
	}
	o.Attr.Set(n, v)
	return nil
}

func (vm *VM) deleteNonlocal(f *Frame, n symbol.Name) error {
	o := vm.cellsWith(f.closure, n)
	if o == nil {
		return vm.nameError(n)
	}
	o.Attr.Delete(n)
	return nil
}

func (vm *VM) loadGlobal(f *Frame, n symbol.Name) (Value, error) {
	if v, ok := f.Globals.Get(n); ok {
		return v, nil
	}
	if v, ok := vm.builtins.Get(n); ok {
		return v, nil
	}
	return Nil, vm.nameError(n)
}
