package vm

import (
	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/source"
	"krait/internal/symbol"
)

func builtinEval(vm *VM, args, kw []Value) (Value, error) {
	return vm.evalString("eval", code.ModeEval, args[0], kw[0])
}

func builtinExec(vm *VM, args, kw []Value) (Value, error) {
	if _, err := vm.evalString("exec", code.ModeExec, args[0], kw[0]); err != nil {
		return Nil, err
	}
	return None, nil
}

// evalString runs source text in the caller's scope. With an explicit
// globals dict the text runs in a scratch module whose names are copied
// back into the dict afterwards.
func (vm *VM) evalString(fn string, mode code.Mode, src, globals Value) (Value, error) {
	s, ok := vm.strOf(src)
	if !ok {
		return Nil, vm.typeError("%s() arg 1 must be a string, not %s", fn, vm.typeName(src))
	}
	if len(vm.frames) == 0 {
		return Nil, vm.raisef(vm.types.runtimeError, "%s() called without a running frame", fn)
	}
	u, err := compiler.Compile(source.NewFile("<string>", []byte(s)), compiler.Options{Mode: mode, Dynamic: true})
	if err != nil {
		return Nil, err
	}
	defer u.Release()

	caller := len(vm.frames) - 1
	if globals == None {
		if err := vm.pushModuleFrame(u, vm.frames[caller].Module, caller); err != nil {
			return Nil, err
		}
		return vm.run(len(vm.frames) - 1)
	}

	d, ok := vm.dictOf(globals)
	if !ok {
		return Nil, vm.typeError("%s() globals must be a dict, not %s", fn, vm.typeName(globals))
	}
	mod := vm.newModule("__main__", "<string>")
	n := vm.pin(mod)
	defer vm.unpinTo(n)
	attr := vm.obj(mod).Attr
	var keyErr error
	d.Each(func(k, v Value) bool {
		ks, ok := vm.strOf(k)
		if !ok {
			keyErr = vm.typeError("globals keys must be str, not %s", vm.typeName(k))
			return false
		}
		attr.Set(symbol.Intern(ks), v)
		return true
	})
	if keyErr != nil {
		return Nil, keyErr
	}
	if err := vm.pushModuleFrame(u, mod, -1); err != nil {
		return Nil, err
	}
	r, err := vm.run(len(vm.frames) - 1)
	if err != nil {
		return Nil, err
	}
	rn := vm.pin(r)
	defer vm.unpinTo(rn)
	attr.Each(func(k symbol.Name, v Value) bool {
		keyErr = d.Set(vm, vm.NewStr(k.String()), v)
		return keyErr == nil
	})
	return r, keyErr
}

// globalsDict snapshots the globals of the running frame.
func (vm *VM) globalsDict() Value {
	if len(vm.frames) == 0 {
		return vm.NewDict()
	}
	return vm.attrDict(vm.top().Globals)
}
