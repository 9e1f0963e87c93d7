package vm

import (
	"strings"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/object"
	"krait/internal/source"
	"krait/internal/symbol"
	"krait/internal/trace"
)

// newModule creates a module object that is not yet registered.
func (vm *VM) newModule(name, path string) Value {
	v, o := vm.Heap.NewData(object.KModule, vm.types.module, &object.ModuleInfo{Name: name, Path: path})
	o.Attr = object.NewNameDict(16)
	o.Attr.Set(symbol.NameAttr, vm.NewStr(name))
	o.Attr.Set(symbol.Doc, None)
	return v
}

// NewModule creates an empty module and registers it under name, replacing
// any module of that name.
func (vm *VM) NewModule(name string) Value {
	m := vm.newModule(name, "")
	vm.register(name, m)
	return m
}

func (vm *VM) register(name string, m Value) {
	if _, ok := vm.modules[name]; !ok {
		vm.modOrder = append(vm.modOrder, name)
	}
	vm.modules[name] = m
}

func (vm *VM) unregister(name string) {
	delete(vm.modules, name)
	for i, n := range vm.modOrder {
		if n == name {
			vm.modOrder = append(vm.modOrder[:i], vm.modOrder[i+1:]...)
			break
		}
	}
}

// Module returns a loaded module, instantiating a builtin one on first use.
func (vm *VM) Module(name string) (Value, bool) {
	if m, ok := vm.modules[name]; ok {
		return m, true
	}
	if f, ok := vm.factories[name]; ok {
		m := f(vm)
		vm.register(name, m)
		return m, true
	}
	return Nil, false
}

// Modules lists the loaded module names in load order.
func (vm *VM) Modules() []string { return append([]string(nil), vm.modOrder...) }

// BindNative stores a native function as attribute nm of target, which may
// be a module, a class or an instance.
func (vm *VM) BindNative(target Value, nm string, argc int, fn NativeFn, bindsSelf bool) (Value, error) {
	o := vm.obj(target)
	if o == nil || (o.Kind != object.KModule && o.Kind != object.KType && o.Kind != object.KInstance) {
		return Nil, vm.escape(vm.typeError("cannot bind '%s' to a '%s' object", nm, vm.typeName(target)))
	}
	var f Value
	if bindsSelf {
		f = vm.newMethod(nm, argc, fn)
	} else {
		f = vm.NewNative(nm, argc, fn)
	}
	n := symbol.Intern(nm)
	if o.Kind == object.KType {
		vm.storeClassAttr(target, n, f)
		return f, nil
	}
	if o.Attr == nil {
		o.Attr = object.NewNameDict(0)
	}
	o.Attr.Set(n, f)
	return f, nil
}

// modFn describes one function of a builtin module.
type modFn struct {
	argc int
	fn   NativeFn
	kw   []object.NameArg
}

// nativeModule builds a module from a table of functions.
func (vm *VM) nativeModule(name string, fns map[string]modFn) Value {
	m := vm.newModule(name, "")
	attr := vm.obj(m).Attr
	for nm, f := range fns {
		attr.Set(symbol.Intern(nm), vm.NewNative(nm, f.argc, f.fn, f.kw...))
	}
	return m
}

func (vm *VM) initModules() {
	vm.factories["math"] = (*VM).mathModule
	vm.factories["json"] = (*VM).jsonModule
	vm.factories["gc"] = (*VM).gcModule
	if vm.osMods {
		vm.factories["os"] = (*VM).osModule
		vm.factories["sys"] = (*VM).sysModule
		vm.factories["time"] = (*VM).timeModule
	}
}

// importModule loads a module by its dotted name. Parent packages are
// loaded first and receive the child as an attribute.
func (vm *VM) importModule(name string) (Value, error) {
	if m, ok := vm.Module(name); ok {
		return m, nil
	}
	if name == "" || strings.HasPrefix(name, ".") {
		return Nil, vm.raisef(vm.types.importError, "relative imports are not supported")
	}
	var parent Value = Nil
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		p, err := vm.importModule(name[:i])
		if err != nil {
			return Nil, err
		}
		parent = p
	}
	m, err := vm.loadSource(name)
	if err != nil {
		return Nil, err
	}
	if parent != Nil {
		vm.obj(parent).Attr.Set(symbol.Intern(name[strings.LastIndexByte(name, '.')+1:]), m)
	}
	return m, nil
}

// loadSource compiles and runs the source the importer returns for name.
func (vm *VM) loadSource(name string) (Value, error) {
	if vm.importer == nil {
		return Nil, vm.raisef(vm.types.importError, "No module named '%s'", name)
	}
	src, ok := vm.importer(name)
	if !ok {
		return Nil, vm.raisef(vm.types.importError, "No module named '%s'", name)
	}
	span := trace.Begin(vm.Tracer, trace.ScopeModule, "import", 0).WithExtra("module", name)
	path := strings.ReplaceAll(name, ".", "/") + ".kr"
	u, err := compiler.Compile(source.NewFile(path, src), compiler.Options{Mode: code.ModeExec})
	if err != nil {
		span.End("compile error")
		return Nil, err
	}
	defer u.Release()

	m := vm.newModule(name, path)
	vm.obj(m).Attr.Set(nameFile, vm.NewStr(path))
	// registered before running so circular imports see the partial module
	vm.register(name, m)
	if err := vm.pushModuleFrame(u, m, -1); err != nil {
		vm.unregister(name)
		span.End("error")
		return Nil, err
	}
	if _, err := vm.run(len(vm.frames) - 1); err != nil {
		vm.unregister(name)
		span.End("error")
		return Nil, err
	}
	span.End("")
	return m, nil
}

// importFrom reads one name for "from m import n", falling back to the
// submodule m.n.
func (vm *VM) importFrom(mod Value, n symbol.Name) (Value, error) {
	o := vm.obj(mod)
	if v, ok := o.Attr.Get(n); ok {
		return v, nil
	}
	mi := o.Data.(*object.ModuleInfo)
	sub := mi.Name + "." + n.String()
	if _, ok := vm.Module(sub); ok || vm.importer != nil {
		m, err := vm.importModule(sub)
		if err == nil {
			return m, nil
		}
		if !vm.caught(err, vm.types.importError) {
			return Nil, err
		}
	}
	return Nil, vm.raisef(vm.types.importError, "cannot import name '%s' from '%s'", n, mi.Name)
}

// importStar binds the public names of mod in the globals of f: those
// listed in __all__, or every name without a leading underscore.
func (vm *VM) importStar(f *Frame, mod Value) error {
	o := vm.obj(mod)
	if all, ok := o.Attr.Get(symbol.All); ok {
		names, err := vm.sequence(all)
		if err != nil {
			return err
		}
		for _, nv := range names {
			s, ok := vm.strOf(nv)
			if !ok {
				return vm.typeError("Item in %s.__all__ must be str, not %s", o.Data.(*object.ModuleInfo).Name, vm.typeName(nv))
			}
			n := symbol.Intern(s)
			v, ok := o.Attr.Get(n)
			if !ok {
				return vm.attributeError(mod, n)
			}
			f.Globals.Set(n, v)
		}
		return nil
	}
	o.Attr.Each(func(n symbol.Name, v Value) bool {
		if !strings.HasPrefix(n.String(), "_") {
			f.Globals.Set(n, v)
		}
		return true
	})
	return nil
}
