package vm

import (
	"krait/internal/object"
	"krait/internal/symbol"
)

var (
	nameArgs    = symbol.Intern("args")
	nameBase    = symbol.Intern("__base__")
	nameQual    = symbol.Intern("__qualname__")
	nameFunc    = symbol.Intern("__func__")
	nameSelfAtt = symbol.Intern("__self__")
	nameCause   = symbol.Intern("__cause__")
	nameStart   = symbol.Intern("start")
	nameStop    = symbol.Intern("stop")
	nameStep    = symbol.Intern("step")
	closeName   = symbol.Intern("close")
	nameFile    = symbol.Intern("__file__")
)

// bindMethod creates a bound method object.
func (vm *VM) bindMethod(self, fn Value) Value {
	v, _ := vm.Heap.NewData(object.KBoundMethod, vm.types.method, &object.BoundMethod{Self: self, Func: fn})
	return v
}

// bindsSelf reports whether a class attribute becomes a bound method when
// read through an instance.
func (vm *VM) bindsSelf(fn Value) bool {
	o := vm.obj(fn)
	if o == nil {
		return false
	}
	switch o.Kind {
	case object.KFunction:
		return true
	case object.KNative:
		return o.Data.(*object.NativeFunc).BindsSelf
	}
	return false
}

// bindAttr applies the descriptor rules to a value found on a type.
func (vm *VM) bindAttr(v, self, typ Value) (Value, error) {
	o := vm.obj(v)
	if o == nil {
		return v, nil
	}
	switch o.Kind {
	case object.KStaticMethod:
		return o.Data.(*object.Wrapped).Func, nil
	case object.KClassMethod:
		return vm.bindMethod(typ, o.Data.(*object.Wrapped).Func), nil
	case object.KProperty:
		if self == Nil {
			return v, nil
		}
		g := o.Data.(*object.Property).Getter
		if g == Nil || g == None {
			return Nil, vm.raisef(vm.types.attributeError, "unreadable attribute")
		}
		return vm.Call(g, self)
	}
	if self != Nil && vm.bindsSelf(v) {
		return vm.bindMethod(self, v), nil
	}
	return v, nil
}

func (vm *VM) attributeError(obj Value, n symbol.Name) error {
	switch o := vm.obj(obj); {
	case o != nil && o.Kind == object.KModule:
		return vm.raisef(vm.types.attributeError, "module '%s' has no attribute '%s'", o.Data.(*object.ModuleInfo).Name, n)
	case o != nil && o.Kind == object.KType:
		return vm.raisef(vm.types.attributeError, "type object '%s' has no attribute '%s'", vm.typeInfo(obj).Name, n)
	}
	return vm.raisef(vm.types.attributeError, "'%s' object has no attribute '%s'", vm.typeName(obj), n)
}

// getattr reads obj.n.
func (vm *VM) getattr(obj Value, n symbol.Name) (Value, error) {
	v, found, err := vm.lookupAttr(obj, n)
	if err != nil || found {
		return v, err
	}
	return Nil, vm.attributeError(obj, n)
}

// lookupAttr is getattr that reports a missing attribute instead of raising.
func (vm *VM) lookupAttr(obj Value, n symbol.Name) (Value, bool, error) {
	o := vm.obj(obj)
	if o != nil {
		switch o.Kind {
		case object.KModule:
			v, ok := o.Attr.Get(n)
			return v, ok, nil
		case object.KType:
			return vm.typeAttr(obj, n)
		case object.KSuper:
			return vm.superAttr(o.Data.(*object.Super), n)
		}
	}
	if n == symbol.Class {
		return vm.typeOf(obj), true, nil
	}

	t := vm.typeOf(obj)
	tv, inType := vm.lookupType(t, n)
	if inType && vm.is(tv, object.KProperty) {
		v, err := vm.bindAttr(tv, obj, t)
		return v, err == nil, err
	}
	if o != nil && o.Attr != nil {
		if v, ok := o.Attr.Get(n); ok {
			return v, true, nil
		}
	}
	if inType {
		v, err := vm.bindAttr(tv, obj, t)
		return v, err == nil, err
	}
	if v, ok := vm.specialAttr(obj, o, n); ok {
		return v, true, nil
	}

	if ti := vm.typeInfo(t); ti != nil && ti.HasGetAttr {
		if ga, ok := vm.lookupType(t, symbol.GetAttr); ok {
			v, err := vm.Call(ga, obj, vm.NewStr(n.String()))
			if err != nil {
				return Nil, false, err
			}
			return v, true, nil
		}
	}
	return Nil, false, nil
}

// specialAttr serves the attributes that live in object payloads.
func (vm *VM) specialAttr(obj Value, o *object.Object, n symbol.Name) (Value, bool) {
	if o == nil {
		return Nil, false
	}
	switch o.Kind {
	case object.KInstance:
		if n == symbol.Dict {
			return vm.attrDict(o.Attr), true
		}
	case object.KFunction:
		fn := o.Data.(*object.Function)
		switch n {
		case symbol.NameAttr, nameQual:
			return vm.NewStr(fn.Decl.Name), true
		case symbol.Doc:
			if fn.Decl.Doc == "" {
				return None, true
			}
			return vm.NewStr(fn.Decl.Doc), true
		case symbol.Module:
			if mi, ok := vm.obj(fn.Module).Data.(*object.ModuleInfo); ok {
				return vm.NewStr(mi.Name), true
			}
		}
	case object.KNative:
		switch n {
		case symbol.NameAttr, nameQual:
			return vm.NewStr(o.Data.(*object.NativeFunc).Name), true
		case symbol.Doc:
			return None, true
		}
	case object.KBoundMethod:
		bm := o.Data.(*object.BoundMethod)
		switch n {
		case nameFunc:
			return bm.Func, true
		case nameSelfAtt:
			return bm.Self, true
		}
		if v, found, err := vm.lookupAttr(bm.Func, n); err == nil && found {
			return v, true
		}
		vm.exc = Nil
	case object.KException:
		info := o.Data.(*object.ExcInfo)
		switch n {
		case nameArgs:
			return info.Args, true
		case nameCause:
			return info.Cause, true
		}
	case object.KProperty:
		if n == nameFunc {
			return o.Data.(*object.Property).Getter, true
		}
	case object.KSlice:
		s := o.Data.(*object.Slice)
		switch n {
		case nameStart:
			return s.Start, true
		case nameStop:
			return s.Stop, true
		case nameStep:
			return s.Step, true
		}
	case object.KRange:
		r := o.Data.(*object.Range)
		switch n {
		case nameStart:
			return vm.NewInt(r.Start), true
		case nameStop:
			return vm.NewInt(r.Stop), true
		case nameStep:
			return vm.NewInt(r.Step), true
		}
	case object.KGenerator:
		if n == symbol.NameAttr {
			if g, ok := o.Data.(*Generator); ok {
				return vm.NewStr(g.name), true
			}
		}
	}
	return Nil, false
}

// attrDict snapshots an attribute table as a dict.
func (vm *VM) attrDict(attrs *object.NameDict) Value {
	v := vm.NewDict()
	if attrs == nil {
		return v
	}
	d, _ := vm.dictOf(v)
	n := vm.pin(v)
	defer vm.unpinTo(n)
	attrs.Each(func(k symbol.Name, x Value) bool {
		// string keys never call back into script code
		_ = d.Set(vm, vm.NewStr(k.String()), x)
		return true
	})
	return v
}

// typeAttr reads an attribute of a class object.
func (vm *VM) typeAttr(typ Value, n symbol.Name) (Value, bool, error) {
	ti := vm.typeInfo(typ)
	switch n {
	case symbol.NameAttr, nameQual:
		return vm.NewStr(ti.Name), true, nil
	case nameBase:
		if ti.Base == Nil {
			return None, true, nil
		}
		return ti.Base, true, nil
	case symbol.Class:
		return vm.typeOf(typ), true, nil
	case symbol.Dict:
		return vm.attrDict(vm.obj(typ).Attr), true, nil
	}
	v, ok := vm.lookupType(typ, n)
	if !ok {
		if n == symbol.Module {
			return vm.NewStr(ti.Module), true, nil
		}
		if n == symbol.Doc {
			return None, true, nil
		}
		// methods of type itself, e.g. type.mro
		if tv, ok := vm.lookupType(vm.typeOf(typ), n); ok {
			v, err := vm.bindAttr(tv, typ, vm.typeOf(typ))
			return v, err == nil, err
		}
		return Nil, false, nil
	}
	r, err := vm.bindAttr(v, Nil, typ)
	return r, err == nil, err
}

// superAttr looks n up past the class recorded in the proxy.
func (vm *VM) superAttr(s *object.Super, n symbol.Name) (Value, bool, error) {
	start := Nil
	if ti := vm.typeInfo(s.Start); ti != nil {
		start = ti.Base
	}
	v, ok := vm.lookupType(start, n)
	if !ok {
		return Nil, false, nil
	}
	self := s.Self
	typ := vm.typeOf(self)
	if vm.isType(self) {
		// super() inside a classmethod
		typ = self
		if o := vm.obj(v); o != nil && o.Kind != object.KClassMethod && o.Kind != object.KStaticMethod {
			return v, true, nil
		}
	}
	r, err := vm.bindAttr(v, self, typ)
	return r, err == nil, err
}

// loadMethod resolves obj.n for a call. Plain functions found on the type
// come back unbound with obj as the receiver, saving the bound method.
func (vm *VM) loadMethod(obj Value, n symbol.Name) (fn, self Value, err error) {
	o := vm.obj(obj)
	if o == nil || (o.Kind != object.KModule && o.Kind != object.KType && o.Kind != object.KSuper) {
		t := vm.typeOf(obj)
		if v, ok := vm.lookupType(t, n); ok && vm.bindsSelf(v) {
			shadowed := false
			if o != nil && o.Attr != nil {
				_, shadowed = o.Attr.Get(n)
			}
			if !shadowed {
				return v, obj, nil
			}
		}
	}
	v, err := vm.getattr(obj, n)
	return v, Nil, err
}

// setattr performs obj.n = v.
func (vm *VM) setattr(obj Value, n symbol.Name, v Value) error {
	o := vm.obj(obj)
	if o == nil {
		return vm.raisef(vm.types.attributeError, "'%s' object attribute '%s' is read-only", vm.typeName(obj), n)
	}
	switch o.Kind {
	case object.KModule:
		o.Attr.Set(n, v)
		return nil
	case object.KType:
		if vm.typeInfo(obj).Module == "builtins" {
			return vm.typeError("cannot set '%s' attribute of immutable type '%s'", n, vm.typeInfo(obj).Name)
		}
		vm.storeClassAttr(obj, n, v)
		return nil
	}
	if tv, ok := vm.lookupType(o.Type, n); ok {
		if po := vm.obj(tv); po != nil && po.Kind == object.KProperty {
			s := po.Data.(*object.Property).Setter
			if s == Nil || s == None {
				return vm.raisef(vm.types.attributeError, "can't set attribute '%s'", n)
			}
			_, err := vm.Call(s, obj, v)
			return err
		}
	}
	switch o.Kind {
	case object.KInstance, object.KException, object.KFunction:
		if o.Attr == nil {
			o.Attr = object.NewNameDict(0)
		}
		o.Attr.Set(n, v)
		return nil
	}
	return vm.raisef(vm.types.attributeError, "'%s' object has no attribute '%s'", vm.typeName(obj), n)
}

// delattr performs del obj.n.
func (vm *VM) delattr(obj Value, n symbol.Name) error {
	o := vm.obj(obj)
	if o == nil || o.Attr == nil {
		return vm.attributeError(obj, n)
	}
	if o.Kind == object.KType && vm.typeInfo(obj).Module == "builtins" {
		return vm.typeError("cannot delete '%s' attribute of immutable type '%s'", n, vm.typeInfo(obj).Name)
	}
	if !o.Attr.Delete(n) {
		return vm.attributeError(obj, n)
	}
	return nil
}

// hasattr reports whether getattr would succeed; errors other than
// AttributeError propagate.
func (vm *VM) hasattr(obj Value, n symbol.Name) (bool, error) {
	_, found, err := vm.lookupAttr(obj, n)
	if err == errThrown && vm.isInstance(vm.exc, vm.types.attributeError) {
		vm.exc = Nil
		return false, nil
	}
	return found, err
}
